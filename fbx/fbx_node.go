package fbx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/binzume/unityfbx/geom"
)

type Node struct {
	Name       string
	Attributes AttributeList
	Children   []*Node
}

// NewNode creates a node. Slices become array attributes.
func NewNode(name string, values ...interface{}) *Node {
	node := &Node{Name: name}
	for _, v := range values {
		node.Attributes = append(node.Attributes, NewAttribute(v))
	}
	return node
}

func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

func (n *Node) FindChild(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) FindChildren(name string) []*Node {
	if n == nil {
		return nil
	}
	var r []*Node
	for _, c := range n.Children {
		if c.Name == name {
			r = append(r, c)
		}
	}
	return r
}

func (n *Node) GetChildren() []*Node {
	if n == nil {
		return nil
	}
	return n.Children
}

func (n *Node) Attr(i int) *Attribute {
	if n == nil {
		return nil
	}
	return n.Attributes.Get(i)
}

func (n *Node) GetInt() int {
	return int(n.Attr(0).ToInt64(0))
}

func (n *Node) GetInt64() int64 {
	return n.Attr(0).ToInt64(0)
}

func (n *Node) GetFloat() float32 {
	return n.Attr(0).ToFloat32(0)
}

func (n *Node) GetString() string {
	return n.Attr(0).ToString()
}

func (n *Node) GetInt32Array() []int32 {
	return n.Attr(0).ToInt32Array()
}

func (n *Node) GetFloat32Array() []float32 {
	return n.Attr(0).ToFloat32Array()
}

func (n *Node) GetVec3Array() []*geom.Vector3 {
	return n.Attr(0).ToVec3Array()
}

func (n *Node) GetVec2Array() []*geom.Vector2 {
	return n.Attr(0).ToVec2Array()
}

type Attribute struct {
	Value     interface{}
	ArraySize uint
}

func NewAttribute(v interface{}) *Attribute {
	a := &Attribute{Value: v}
	switch v := v.(type) {
	case []bool:
		a.ArraySize = uint(len(v))
	case []int32:
		a.ArraySize = uint(len(v))
	case []int64:
		a.ArraySize = uint(len(v))
	case []float32:
		a.ArraySize = uint(len(v))
	case []float64:
		a.ArraySize = uint(len(v))
	}
	return a
}

type AttributeList []*Attribute

func (l AttributeList) Get(i int) *Attribute {
	if i >= len(l) {
		return nil
	}
	return l[i]
}

func (l AttributeList) ToFloat32(def float32) float32 {
	return l.Get(0).ToFloat32(def)
}

func (l AttributeList) ToInt64(def int64) int64 {
	return l.Get(0).ToInt64(def)
}

func (l AttributeList) ToString() string {
	return l.Get(0).ToString()
}

func (l AttributeList) ToVector3(x, y, z float32) *geom.Vector3 {
	return &geom.Vector3{X: l.Get(0).ToFloat32(x), Y: l.Get(1).ToFloat32(y), Z: l.Get(2).ToFloat32(z)}
}

func (a *Attribute) ToInt64(def int64) int64 {
	if a == nil {
		return def
	}
	switch v := a.Value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case byte:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	}
	return def
}

func (a *Attribute) ToFloat32(def float32) float32 {
	return float32(a.ToFloat64(float64(def)))
}

func (a *Attribute) ToFloat64(def float64) float64 {
	if a == nil {
		return def
	}
	switch v := a.Value.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int16:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func (a *Attribute) ToString() string {
	if a == nil {
		return ""
	}
	switch v := a.Value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (a *Attribute) ToInt32Array() []int32 {
	if a == nil {
		return nil
	}
	var r []int32
	switch vv := a.Value.(type) {
	case []int32:
		return vv
	case []int64:
		for _, v := range vv {
			r = append(r, int32(v))
		}
	case []byte:
		for _, v := range vv {
			r = append(r, int32(v))
		}
	}
	return r
}

func (a *Attribute) ToFloat32Array() []float32 {
	if a == nil {
		return nil
	}
	var r []float32
	switch vv := a.Value.(type) {
	case []float32:
		return vv
	case []float64:
		for _, v := range vv {
			r = append(r, float32(v))
		}
	case []int32:
		for _, v := range vv {
			r = append(r, float32(v))
		}
	case []int64:
		for _, v := range vv {
			r = append(r, float32(v))
		}
	}
	return r
}

func (a *Attribute) ToVec3Array() []*geom.Vector3 {
	v := a.ToFloat32Array()
	var vv []*geom.Vector3
	for i := 0; i+2 < len(v); i += 3 {
		vv = append(vv, &geom.Vector3{X: v[i], Y: v[i+1], Z: v[i+2]})
	}
	return vv
}

func (a *Attribute) ToVec2Array() []*geom.Vector2 {
	v := a.ToFloat32Array()
	var vv []*geom.Vector2
	for i := 0; i+1 < len(v); i += 2 {
		vv = append(vv, &geom.Vector2{X: v[i], Y: v[i+1]})
	}
	return vv
}

// ASCII files write "Class::Name" where binary files store "Name\x00\x01Class".
func asciiName(s string) string {
	if p := strings.SplitN(s, "\x00\x01", 2); len(p) == 2 {
		return p[1] + "::" + p[0]
	}
	return s
}

func binaryName(s string) string {
	if p := strings.SplitN(s, "::", 2); len(p) == 2 {
		return p[1] + "\x00\x01" + p[0]
	}
	return s
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (a *Attribute) String() string {
	switch v := a.Value.(type) {
	case string:
		return "\"" + strings.ReplaceAll(asciiName(v), "\"", "&quot;") + "\""
	case []byte:
		return fmt.Sprintf("\"%x\"", v)
	case bool:
		if v {
			return "T"
		}
		return "F"
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case []bool:
		var s []string
		for _, b := range v {
			if b {
				s = append(s, "1")
			} else {
				s = append(s, "0")
			}
		}
		return strings.Join(s, ",")
	case []float32:
		var s []string
		for _, f := range v {
			s = append(s, formatFloat(float64(f)))
		}
		return strings.Join(s, ",")
	case []float64:
		var s []string
		for _, f := range v {
			s = append(s, formatFloat(f))
		}
		return strings.Join(s, ",")
	case []int32:
		var s []string
		for _, i := range v {
			s = append(s, strconv.Itoa(int(i)))
		}
		return strings.Join(s, ",")
	case []int64:
		var s []string
		for _, i := range v {
			s = append(s, strconv.FormatInt(i, 10))
		}
		return strings.Join(s, ",")
	default:
		return fmt.Sprint(v)
	}
}

// Dump writes the node in the ASCII FBX syntax. Arrays longer than 16
// elements are elided unless full is set.
func (n *Node) Dump(w io.Writer, d int, full bool) {
	indent := strings.Repeat("\t", d)
	fmt.Fprint(w, indent, n.Name, ":")
	for i, a := range n.Attributes {
		sep := ", "
		if i == 0 {
			sep = " "
		}
		if isArray(a.Value) {
			if !full && a.ArraySize > 16 {
				fmt.Fprintf(w, "%s*%d { SKIPPED }", sep, a.ArraySize)
				continue
			}
			fmt.Fprintf(w, "%s*%d {\n%s\ta: %s\n%s}", sep, a.ArraySize, indent, a.String(), indent)
			continue
		}
		fmt.Fprint(w, sep, a.String())
	}
	if len(n.Children) > 0 || len(n.Attributes) == 0 {
		fmt.Fprintln(w, " {")
		for _, c := range n.Children {
			c.Dump(w, d+1, full)
		}
		fmt.Fprintln(w, indent+"}")
	} else {
		fmt.Fprintln(w)
	}
}

func isArray(v interface{}) bool {
	switch v.(type) {
	case []bool, []int32, []int64, []float32, []float64:
		return true
	}
	return false
}
