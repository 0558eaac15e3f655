// Package fbx reads and writes Autodesk FBX files.
package fbx

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
)

var ErrUnknownFormat = errors.New("unknown fbx format")

func Load(path string) (*Document, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Parse(r)
}

// ParseNode reads a binary or ASCII FBX file as a node tree.
func ParseNode(r io.Reader) (*Node, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(binaryMagic))
	if bytes.Equal(head, []byte(binaryMagic)) {
		p := binaryParser{r: &positionReader{r: br}}
		return p.Parse()
	}
	if len(head) == 0 {
		return nil, ErrUnknownFormat
	}
	return newTextParser(br).Parse()
}

func Parse(r io.Reader) (*Document, error) {
	root, err := ParseNode(r)
	if err != nil {
		return nil, err
	}
	return BuildDocument(root)
}

// Save writes the document as a binary FBX file.
func Save(doc *Document, path string) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(w, doc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Dump writes a node tree in the ASCII FBX syntax.
func Dump(w io.Writer, root *Node, full bool) {
	io.WriteString(w, "; FBX 7.4.0 project file\n")
	io.WriteString(w, "; ----------------------------------------------------\n\n")
	for _, n := range root.Children {
		n.Dump(w, 0, full)
	}
}
