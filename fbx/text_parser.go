package fbx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type tokenType int

const (
	Ident tokenType = iota
	Number
	String
	Operator
	BlockStart
	BlockEnd
	EOL
	EOF
)

// textParser reads the ASCII FBX syntax written by Node.Dump.
type textParser struct {
	r   *bufio.Reader
	err error
}

func newTextParser(r io.Reader) *textParser {
	return &textParser{r: bufio.NewReader(r)}
}

func (p *textParser) errorf(f string, a ...interface{}) error {
	if p.err == nil {
		p.err = fmt.Errorf(f, a...)
	}
	return p.err
}

func (p *textParser) read() byte {
	if p.err != nil {
		return 0
	}
	b, err := p.r.ReadByte()
	if err != nil {
		p.err = err
		return 0
	}
	return b
}

func (p *textParser) unread() {
	if p.err == nil {
		p.r.UnreadByte()
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdent(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_' || c == '|'
}

func (p *textParser) getToken() (tokenType, string) {
	for p.err == nil {
		c := p.read()
		switch {
		case c == ';':
			for p.err == nil && c != '\n' {
				c = p.read()
			}
			return EOL, ""
		case c == '\n':
			return EOL, ""
		case c == '{':
			return BlockStart, "{"
		case c == '}':
			return BlockEnd, "}"
		case c == '*' || c == ':' || c == ',':
			return Operator, string(c)
		case isDigit(c) || c == '.' || c == '-':
			buf := []byte{c}
			for c = p.read(); isDigit(c) || c == '.' || c == 'e' || c == 'E' || c == '-' || c == '+'; c = p.read() {
				buf = append(buf, c)
			}
			p.unread()
			return Number, string(buf)
		case c == '"':
			var buf []byte
			for c = p.read(); c != '"' && p.err == nil; c = p.read() {
				buf = append(buf, c)
			}
			return String, binaryName(strings.ReplaceAll(string(buf), "&quot;", "\""))
		case isIdent(c):
			var buf []byte
			for ; isIdent(c) || isDigit(c) || c == '-'; c = p.read() {
				buf = append(buf, c)
			}
			p.unread()
			return Ident, string(buf)
		}
	}
	return EOF, ""
}

func (p *textParser) expect(t tokenType) bool {
	typ, s := p.getToken()
	for typ == EOL && t != EOL {
		typ, s = p.getToken()
	}
	if typ != t {
		p.errorf("unexpected token: %q", s)
	}
	return typ == t
}

func parseNumber(s string) (interface{}, error) {
	if strings.ContainsAny(s, ".eE") {
		return strconv.ParseFloat(s, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func (p *textParser) parseArray() *Attribute {
	_, s := p.getToken()
	size, err := strconv.Atoi(s)
	if err != nil {
		p.errorf("invalid array size: %q", s)
		return nil
	}
	if !p.expect(BlockStart) {
		return nil
	}
	var values []float64
	float := false
	for p.err == nil {
		typ, s := p.getToken()
		if typ == BlockEnd {
			break
		} else if typ == Number {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				p.errorf("invalid number: %q", s)
			}
			values = append(values, v)
			float = float || strings.ContainsAny(s, ".eE")
		} else if typ == String || typ == BlockStart {
			p.errorf("unexpected token in array: %q", s)
		}
	}
	if len(values) != size {
		p.errorf("array size mismatch: %v != %v", size, len(values))
	}
	if float {
		return &Attribute{Value: values, ArraySize: uint(size)}
	}
	ints := make([]int32, len(values))
	for i, v := range values {
		ints[i] = int32(v)
	}
	return &Attribute{Value: ints, ArraySize: uint(size)}
}

func (p *textParser) parseNodeList() []*Node {
	var nodes []*Node
	for p.err == nil {
		typ, s := p.getToken()
		if typ == EOL {
			continue
		} else if typ == EOF || typ == BlockEnd {
			break
		} else if typ != Ident {
			p.errorf("unexpected token: %q", s)
			break
		}
		if !p.expect(Operator) {
			break
		}
		node := &Node{Name: s}
		nodes = append(nodes, node)
	attrs:
		for p.err == nil {
			typ, s := p.getToken()
			switch typ {
			case EOL, EOF:
				break attrs
			case BlockStart:
				node.Children = p.parseNodeList()
				break attrs
			case Number:
				v, err := parseNumber(s)
				if err != nil {
					p.errorf("invalid number: %q", s)
				}
				node.Attributes = append(node.Attributes, &Attribute{Value: v})
			case String:
				node.Attributes = append(node.Attributes, &Attribute{Value: s})
			case Ident:
				node.Attributes = append(node.Attributes, &Attribute{Value: s == "T" || s == "Y"})
			case Operator:
				if s == "*" {
					node.Attributes = append(node.Attributes, p.parseArray())
				}
			}
		}
	}
	return nodes
}

func (p *textParser) Parse() (*Node, error) {
	root := &Node{Name: "_FBX_ROOT"}
	root.Children = p.parseNodeList()
	if p.err != nil && p.err != io.EOF {
		return nil, p.err
	}
	return root, nil
}
