package fbx

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Property is an entry of a Properties70 block.
type Property struct {
	AttributeList
	Type  string
	Label string
	Flag  string
}

type Connection struct {
	Type string
	To   int64
	From int64
	Prop string
}

type Object interface {
	GetNode() *Node
	NodeName() string
	ID() int64
	Name() string
	Kind() string
	GetProperty(name string) *Property
	SetProperty(name string, prop *Property) *Property
	FindRefs(name string) []Object
	AddRef(o Object)
}

type Obj struct {
	*Node
	Template   *Obj
	Refs       []Object
	properties map[string]*Property // lazy initialized
}

// newObj creates an object node. name is NFC normalized since importers
// compare names byte-wise.
func newObj(typ, name, class, kind string, nodes []*Node) *Obj {
	children := append(nodes, &Node{Name: "Properties70"})
	return &Obj{Node: &Node{
		Name:       typ,
		Attributes: AttributeList{{Value: int64(0)}, {Value: norm.NFC.String(name) + "\x00\x01" + class}, {Value: kind}},
		Children:   children,
	}}
}

func (o *Obj) GetNode() *Node {
	return o.Node
}

func (o *Obj) NodeName() string {
	return o.Node.Name
}

func (o *Obj) ID() int64 {
	return o.Attr(0).ToInt64(0)
}

func (o *Obj) setID(id int64) {
	o.Attributes[0] = &Attribute{Value: id}
}

func (o *Obj) Name() string {
	return strings.SplitN(o.Attr(1).ToString(), "\x00\x01", 2)[0]
}

func (o *Obj) Kind() string {
	return o.Attr(2).ToString()
}

func (o *Obj) GetProperty(name string) *Property {
	if o.properties == nil {
		o.properties = map[string]*Property{}
		for _, node := range o.FindChild("Properties70").GetChildren() {
			if len(node.Attributes) < 4 {
				continue
			}
			o.properties[node.Attr(0).ToString()] = &Property{
				AttributeList: node.Attributes[4:],
				Type:          node.Attr(1).ToString(),
				Label:         node.Attr(2).ToString(),
				Flag:          node.Attr(3).ToString()}
		}
	}
	if p, ok := o.properties[name]; ok {
		return p
	} else if o.Template != nil {
		return o.Template.GetProperty(name)
	}
	return &Property{}
}

func (o *Obj) SetProperty(name string, prop *Property) *Property {
	if o.properties != nil {
		o.properties[name] = prop
	}
	attrs := AttributeList{
		&Attribute{Value: name},
		&Attribute{Value: prop.Type},
		&Attribute{Value: prop.Label},
		&Attribute{Value: prop.Flag},
	}
	attrs = append(attrs, prop.AttributeList...)
	properties70 := o.FindChild("Properties70")
	if properties70 == nil {
		properties70 = o.AddChild(&Node{Name: "Properties70"})
	}
	for _, node := range properties70.GetChildren() {
		if node.Attr(0).ToString() == name {
			node.Attributes = attrs
			return prop
		}
	}
	properties70.Children = append(properties70.Children, &Node{Name: "P", Attributes: attrs})
	return prop
}

func (o *Obj) SetIntProperty(name string, v int) *Property {
	return o.SetProperty(name, &Property{Type: "int", Label: "Integer", AttributeList: AttributeList{{Value: int32(v)}}})
}

func (o *Obj) SetEnumProperty(name string, v int) *Property {
	return o.SetProperty(name, &Property{Type: "enum", AttributeList: AttributeList{{Value: int32(v)}}})
}

func (o *Obj) SetBoolProperty(name string, v bool) *Property {
	i := int32(0)
	if v {
		i = 1
	}
	return o.SetProperty(name, &Property{Type: "bool", AttributeList: AttributeList{{Value: i}}})
}

func (o *Obj) SetFloatProperty(name string, v float64) *Property {
	return o.SetProperty(name, &Property{Type: "double", Label: "Number", AttributeList: AttributeList{{Value: v}}})
}

func (o *Obj) SetStringProperty(name string, v string) *Property {
	return o.SetProperty(name, &Property{Type: "KString", AttributeList: AttributeList{{Value: v}}})
}

func (o *Obj) SetColorProperty(name string, r, g, b float32) *Property {
	return o.SetProperty(name, &Property{Type: "ColorRGB", Label: "Color", AttributeList: AttributeList{{Value: float64(r)}, {Value: float64(g)}, {Value: float64(b)}}})
}

// SetUserProperty sets a custom property. It returns false for unsupported value types.
func (o *Obj) SetUserProperty(name string, value interface{}) bool {
	var prop *Property
	switch v := value.(type) {
	case bool:
		i := int32(0)
		if v {
			i = 1
		}
		prop = &Property{Type: "bool", AttributeList: AttributeList{{Value: i}}}
	case int:
		prop = &Property{Type: "int", Label: "Integer", AttributeList: AttributeList{{Value: int32(v)}}}
	case int64:
		prop = &Property{Type: "int", Label: "Integer", AttributeList: AttributeList{{Value: int32(v)}}}
	case float32:
		prop = &Property{Type: "double", Label: "Number", AttributeList: AttributeList{{Value: float64(v)}}}
	case float64:
		prop = &Property{Type: "double", Label: "Number", AttributeList: AttributeList{{Value: v}}}
	case string:
		prop = &Property{Type: "KString", AttributeList: AttributeList{{Value: v}}}
	default:
		return false
	}
	prop.Flag = "U"
	o.SetProperty(name, prop)
	return true
}

func (o *Obj) FindRefs(typ string) []Object {
	var refs []Object
	for _, o := range o.Refs {
		if o.NodeName() == typ {
			refs = append(refs, o)
		}
	}
	return refs
}

func (o *Obj) AddRef(ref Object) {
	o.Refs = append(o.Refs, ref)
}

func (o *Obj) AddOrReplaceChild(node *Node) bool {
	for i, c := range o.Children {
		if c.Name == node.Name {
			o.Children[i] = node
			return false
		}
	}
	o.Children = append(o.Children, node)
	return true
}

// NodeAttribute carries the type specific data of a Model (Null, LimbNode).
type NodeAttribute struct {
	Obj
}

func NewNodeAttribute(name, kind string) *NodeAttribute {
	attr := &NodeAttribute{Obj: *newObj("NodeAttribute", name, "NodeAttribute", kind, nil)}
	switch kind {
	case "LimbNode":
		attr.AddChild(NewNode("TypeFlags", "Skeleton"))
	case "Null":
		attr.AddChild(NewNode("TypeFlags", "Null"))
	}
	return attr
}
