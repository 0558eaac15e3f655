package fbx

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type Document struct {
	FileId       []byte
	Creator      string
	CreationTime string

	GlobalSettings *Obj
	Objects        map[int64]Object
	Scene          *Model
	Connections    []*Connection

	RawNode *Node

	objects []Object // insertion order
	nextID  int64
}

func NewDocument() *Document {
	id := uuid.New()
	doc := &Document{
		FileId:       id[:],
		Creator:      "unityfbx",
		CreationTime: time.Now().Format("2006-01-02 15:04:05:000"),
		Objects:      map[int64]Object{},
		nextID:       1000000,
	}
	doc.Scene = &Model{Obj: Obj{Node: &Node{Name: "Model", Attributes: AttributeList{{Value: int64(0)}, {Value: "Scene\x00\x01Model"}, {Value: "Null"}}}}}
	doc.Objects[0] = doc.Scene

	gs := &Obj{Node: &Node{Name: "GlobalSettings", Children: []*Node{NewNode("Version", 1000), {Name: "Properties70"}}}}
	gs.SetIntProperty("UpAxis", 1)
	gs.SetIntProperty("UpAxisSign", 1)
	gs.SetIntProperty("FrontAxis", 2)
	gs.SetIntProperty("FrontAxisSign", 1)
	gs.SetIntProperty("CoordAxis", 0)
	gs.SetIntProperty("CoordAxisSign", 1)
	gs.SetIntProperty("OriginalUpAxis", -1)
	gs.SetIntProperty("OriginalUpAxisSign", 1)
	gs.SetFloatProperty("UnitScaleFactor", 1)
	gs.SetFloatProperty("OriginalUnitScaleFactor", 1)
	gs.SetColorProperty("AmbientColor", 0, 0, 0)
	gs.SetStringProperty("DefaultCamera", "Producer Perspective")
	gs.SetEnumProperty("TimeMode", 11)
	doc.GlobalSettings = gs
	return doc
}

// AddObject assigns a unique id to the object and adds it to the document.
func (doc *Document) AddObject(o Object) Object {
	if ob, ok := o.(interface{ setID(int64) }); ok && o.ID() == 0 {
		ob.setID(doc.nextID)
		doc.nextID++
	}
	doc.Objects[o.ID()] = o
	doc.objects = append(doc.objects, o)
	return o
}

// AddConnection connects child to parent ("OO").
func (doc *Document) AddConnection(parent, child Object) {
	doc.Connections = append(doc.Connections, &Connection{Type: "OO", From: child.ID(), To: parent.ID()})
	parent.AddRef(child)
	if p, ok := parent.(*Model); ok && p != doc.Scene {
		if c, ok := child.(*Model); ok {
			c.Parent = p
		}
	}
}

// AddPropertyConnection connects child to a property of parent ("OP").
func (doc *Document) AddPropertyConnection(parent, child Object, prop string) {
	doc.Connections = append(doc.Connections, &Connection{Type: "OP", From: child.ID(), To: parent.ID(), Prop: prop})
	parent.AddRef(child)
}

// FindObjects returns objects of the node type in id order.
func (doc *Document) FindObjects(typ string) []Object {
	var r []Object
	for _, o := range doc.Objects {
		if o.NodeName() == typ && o.ID() != 0 {
			r = append(r, o)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].ID() < r[j].ID() })
	return r
}

func (doc *Document) FindModel(name string) *Model {
	for _, o := range doc.FindObjects("Model") {
		if m, ok := o.(*Model); ok && m.Name() == name {
			return m
		}
	}
	return nil
}

func (doc *Document) orderedObjects() []Object {
	if len(doc.objects) > 0 {
		return doc.objects
	}
	var r []Object
	for _, o := range doc.Objects {
		if o.ID() != 0 {
			r = append(r, o)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].ID() < r[j].ID() })
	return r
}

func (doc *Document) buildDefinitions(objects []Object) *Node {
	counts := map[string]int{}
	var types []string
	for _, o := range objects {
		if counts[o.NodeName()] == 0 {
			types = append(types, o.NodeName())
		}
		counts[o.NodeName()]++
	}
	defs := &Node{Name: "Definitions", Children: []*Node{
		NewNode("Version", 100),
		NewNode("Count", len(objects)+1),
		{Name: "ObjectType", Attributes: AttributeList{{Value: "GlobalSettings"}}, Children: []*Node{NewNode("Count", 1)}},
	}}
	for _, t := range types {
		defs.AddChild(&Node{Name: "ObjectType", Attributes: AttributeList{{Value: t}}, Children: []*Node{NewNode("Count", counts[t])}})
	}
	return defs
}

func (doc *Document) buildHeader() *Node {
	t, err := time.Parse("2006-01-02 15:04:05:000", doc.CreationTime)
	if err != nil {
		t = time.Time{}
	}
	return &Node{Name: "FBXHeaderExtension", Children: []*Node{
		NewNode("FBXHeaderVersion", 1003),
		NewNode("FBXVersion", binaryVersion),
		NewNode("EncryptionType", 0),
		{Name: "CreationTimeStamp", Children: []*Node{
			NewNode("Version", 1000),
			NewNode("Year", t.Year()),
			NewNode("Month", int(t.Month())),
			NewNode("Day", t.Day()),
			NewNode("Hour", t.Hour()),
			NewNode("Minute", t.Minute()),
			NewNode("Second", t.Second()),
			NewNode("Millisecond", t.Nanosecond()/1000000),
		}},
		NewNode("Creator", doc.Creator),
	}}
}

// BuildNode converts the document to a node tree.
func (doc *Document) BuildNode() *Node {
	objects := doc.orderedObjects()
	root := &Node{Name: "_FBX_ROOT"}
	root.AddChild(doc.buildHeader())
	root.AddChild(NewNode("FileId", doc.FileId))
	root.AddChild(NewNode("CreationTime", doc.CreationTime))
	root.AddChild(NewNode("Creator", doc.Creator))
	root.AddChild(doc.GlobalSettings.Node)

	document := &Obj{Node: &Node{Name: "Document", Attributes: AttributeList{{Value: doc.nextID}, {Value: "Scene"}, {Value: "Scene"}},
		Children: []*Node{{Name: "Properties70"}, NewNode("RootNode", int64(0))}}}
	document.SetProperty("SourceObject", &Property{Type: "object"})
	document.SetStringProperty("ActiveAnimStackName", "")
	root.AddChild(&Node{Name: "Documents", Children: []*Node{NewNode("Count", 1), document.Node}})
	root.AddChild(&Node{Name: "References"})
	root.AddChild(doc.buildDefinitions(objects))

	objs := root.AddChild(&Node{Name: "Objects"})
	for _, o := range objects {
		objs.AddChild(o.GetNode())
	}

	conns := root.AddChild(&Node{Name: "Connections"})
	for _, c := range doc.Connections {
		if c.Type == "OP" {
			conns.AddChild(NewNode("C", c.Type, c.From, c.To, c.Prop))
		} else {
			conns.AddChild(NewNode("C", c.Type, c.From, c.To))
		}
	}
	root.AddChild(&Node{Name: "Takes", Children: []*Node{NewNode("Current", "")}})
	return root
}

func parseGeometry(base *Obj) *Geometry {
	g := &Geometry{Obj: *base}
	g.Vertices = g.GetVertices()
	g.Polygons = g.GetPolygons()
	return g
}

func parseConnection(node *Node) *Connection {
	c := &Connection{
		Type: node.Attr(0).ToString(),
		From: node.Attr(1).ToInt64(0),
		To:   node.Attr(2).ToInt64(0),
	}
	if c.Type == "OP" {
		c.Prop = node.Attr(3).ToString()
	}
	return c
}

// BuildDocument converts a parsed node tree to a document.
func BuildDocument(root *Node) (*Document, error) {
	doc := NewDocument()
	doc.RawNode = root
	doc.Creator = root.FindChild("Creator").GetString()
	doc.CreationTime = root.FindChild("CreationTime").GetString()
	if a := root.FindChild("FileId").Attr(0); a != nil {
		doc.FileId, _ = a.Value.([]byte)
	}

	templates := map[string]*Obj{}
	for _, node := range root.FindChild("Definitions").FindChildren("ObjectType") {
		if t := node.FindChild("PropertyTemplate"); t != nil {
			templates[node.GetString()] = &Obj{Node: t}
		}
	}
	if gs := root.FindChild("GlobalSettings"); gs != nil {
		doc.GlobalSettings = &Obj{Node: gs, Template: templates["GlobalSettings"]}
	}

	for _, node := range root.FindChild("Objects").GetChildren() {
		base := &Obj{Node: node, Template: templates[node.Name]}
		var obj Object = base
		switch node.Name {
		case "Geometry":
			obj = parseGeometry(base)
		case "Model":
			obj = &Model{Obj: *base}
		case "NodeAttribute":
			obj = &NodeAttribute{Obj: *base}
		case "Deformer":
			obj = &Deformer{Obj: *base}
		case "Pose":
			obj = &Pose{Obj: *base}
		}
		doc.Objects[obj.ID()] = obj
		doc.objects = append(doc.objects, obj)
		if obj.ID() >= doc.nextID {
			doc.nextID = obj.ID() + 1
		}
	}

	for _, node := range root.FindChild("Connections").FindChildren("C") {
		c := parseConnection(node)
		if c.Type != "OO" && c.Type != "OP" {
			continue
		}
		doc.Connections = append(doc.Connections, c)
		from := doc.Objects[c.From]
		to := doc.Objects[c.To]
		if to == nil || from == nil {
			continue
		}
		to.AddRef(from)
		if p, ok := to.(*Model); ok {
			if m, ok := from.(*Model); ok && p != doc.Scene {
				m.Parent = p
			}
		}
	}
	return doc, nil
}
