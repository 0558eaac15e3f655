package fbx

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	binaryMagic   = "Kaydara FBX Binary  \x00"
	binaryVersion = 7400
	// arrays larger than this are deflated.
	compressThreshold = 128
)

var (
	footerID    = []byte{0xfa, 0xbc, 0xab, 0x09, 0xd0, 0xc8, 0xd4, 0x66, 0xb1, 0x76, 0xfb, 0x83, 0x1c, 0xf7, 0x26, 0x7e}
	footerMagic = []byte{0xf8, 0x5a, 0x8c, 0x6a, 0xde, 0xf5, 0xd9, 0x7e, 0xec, 0xe9, 0x0c, 0xe3, 0x75, 0x8f, 0x29, 0x0b}
	nullRecord  = make([]byte, 13)
)

type binaryWriter struct {
	buf bytes.Buffer
	err error
}

func (w *binaryWriter) write(v interface{}) {
	if w.err == nil {
		w.err = binary.Write(&w.buf, binary.LittleEndian, v)
	}
}

func (w *binaryWriter) writeArray(typ byte, count int, data interface{}) {
	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, data)
	w.write(typ)
	w.write(uint32(count))
	if raw.Len() <= compressThreshold {
		w.write(uint32(0))
		w.write(uint32(raw.Len()))
		w.buf.Write(raw.Bytes())
		return
	}
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(raw.Bytes()); err != nil && w.err == nil {
		w.err = err
	}
	if err := zw.Close(); err != nil && w.err == nil {
		w.err = err
	}
	w.write(uint32(1))
	w.write(uint32(z.Len()))
	w.buf.Write(z.Bytes())
}

func (w *binaryWriter) writeAttribute(a *Attribute) {
	switch v := a.Value.(type) {
	case bool:
		w.write(byte('C'))
		w.write(v)
	case int16:
		w.write(byte('Y'))
		w.write(v)
	case int:
		w.write(byte('I'))
		w.write(int32(v))
	case int32:
		w.write(byte('I'))
		w.write(v)
	case int64:
		w.write(byte('L'))
		w.write(v)
	case float32:
		w.write(byte('F'))
		w.write(v)
	case float64:
		w.write(byte('D'))
		w.write(v)
	case string:
		w.write(byte('S'))
		w.write(uint32(len(v)))
		w.buf.WriteString(v)
	case []byte:
		w.write(byte('R'))
		w.write(uint32(len(v)))
		w.buf.Write(v)
	case []bool:
		w.writeArray('b', len(v), v)
	case []int32:
		w.writeArray('i', len(v), v)
	case []int64:
		w.writeArray('l', len(v), v)
	case []float32:
		w.writeArray('f', len(v), v)
	case []float64:
		w.writeArray('d', len(v), v)
	default:
		if w.err == nil {
			w.err = fmt.Errorf("unsupported attribute type: %T", a.Value)
		}
	}
}

func (w *binaryWriter) writeNode(n *Node) {
	if len(n.Name) > 255 {
		w.err = fmt.Errorf("node name too long: %v", n.Name)
		return
	}
	start := w.buf.Len()
	w.write(uint32(0)) // end offset
	w.write(uint32(len(n.Attributes)))
	w.write(uint32(0)) // attribute list length
	w.write(uint8(len(n.Name)))
	w.buf.WriteString(n.Name)

	attrStart := w.buf.Len()
	for _, a := range n.Attributes {
		w.writeAttribute(a)
	}
	attrLen := w.buf.Len() - attrStart

	if len(n.Children) > 0 || len(n.Attributes) == 0 {
		for _, c := range n.Children {
			w.writeNode(c)
		}
		w.buf.Write(nullRecord)
	}
	b := w.buf.Bytes()
	binary.LittleEndian.PutUint32(b[start:], uint32(w.buf.Len()))
	binary.LittleEndian.PutUint32(b[start+8:], uint32(attrLen))
}

func (w *binaryWriter) writeFooter() {
	w.buf.Write(footerID)
	w.buf.Write(make([]byte, 4))
	ofs := w.buf.Len()
	pad := ((ofs + 15) &^ 15) - ofs
	if pad == 0 {
		pad = 16
	}
	w.buf.Write(make([]byte, pad))
	w.write(uint32(binaryVersion))
	w.buf.Write(make([]byte, 120))
	w.buf.Write(footerMagic)
}

// WriteNode writes the children of root as a binary FBX 7.4 file.
func WriteNode(dst io.Writer, root *Node) error {
	w := &binaryWriter{}
	w.buf.WriteString(binaryMagic)
	w.buf.Write([]byte{0x1a, 0x00})
	w.write(uint32(binaryVersion))
	for _, n := range root.Children {
		w.writeNode(n)
	}
	w.buf.Write(nullRecord)
	w.writeFooter()
	if w.err != nil {
		return w.err
	}
	_, err := w.buf.WriteTo(dst)
	return err
}

// Write writes the document as a binary FBX file.
func Write(w io.Writer, doc *Document) error {
	return WriteNode(w, doc.BuildNode())
}
