// Package scene implements a small Z-up scene graph modeled after the data
// layout of DCC tools: objects, shared geometry datablocks, nested collections
// and a view layer. Everything is addressed by ids so that graph edits are
// explicit and can be recorded and reverted.
package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/binzume/unityfbx/geom"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrNotVisible = errors.New("object is not visible")
	ErrMultiUser  = errors.New("cannot apply to a multi user datablock")
	ErrCycle      = errors.New("dependency cycle")
	ErrNoUndo     = errors.New("nothing to undo")
)

// Nil is the invalid id for every id type.
const Nil = 0

type ObjectID int
type DataID int
type CollectionID int

type ObjectType string

const (
	TypeEmpty    ObjectType = "EMPTY"
	TypeMesh     ObjectType = "MESH"
	TypeArmature ObjectType = "ARMATURE"
	TypeCurve    ObjectType = "CURVE"
	TypeSurface  ObjectType = "SURFACE"
	TypeFont     ObjectType = "FONT"
	TypeCamera   ObjectType = "CAMERA"
	TypeLight    ObjectType = "LIGHT"
)

type Mode string

const (
	ModeObject Mode = "OBJECT"
	ModeEdit   Mode = "EDIT"
	ModePose   Mode = "POSE"
)

type Object struct {
	ID           ObjectID
	Name         string
	Type         ObjectType
	Data         DataID
	Hidden       bool
	HideViewport bool
	Selected     bool
	Modifiers    []*Modifier
	Properties   map[string]interface{}

	parent        ObjectID
	basis         *geom.Matrix4
	parentInverse *geom.Matrix4
	world         *geom.Matrix4 // cached. nil if dirty
}

func (o *Object) Parent() ObjectID {
	return o.parent
}

// HasModifier reports whether the object has a modifier of the type.
func (o *Object) HasModifier(typ ModifierType) bool {
	for _, m := range o.Modifiers {
		if m.Type == typ {
			return true
		}
	}
	return false
}

func (o *Object) clone() *Object {
	c := *o
	c.basis = o.basis.Clone()
	c.parentInverse = o.parentInverse.Clone()
	if o.world != nil {
		c.world = o.world.Clone()
	}
	c.Modifiers = nil
	for _, m := range o.Modifiers {
		c.Modifiers = append(c.Modifiers, m.Clone())
	}
	if o.Properties != nil {
		c.Properties = map[string]interface{}{}
		for k, v := range o.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

type Scene struct {
	Name      string
	UnitScale float32
	Mode      Mode

	objects     []*Object
	datas       []*Datablock
	collections []*Collection
	layers      map[CollectionID]*LayerCollection
	root        CollectionID
	active      CollectionID

	history    []*Scene
	historyPos int
	labels     []string
}

func NewScene(name string) *Scene {
	s := &Scene{
		Name:        name,
		UnitScale:   1,
		Mode:        ModeObject,
		objects:     []*Object{nil},
		datas:       []*Datablock{nil},
		collections: []*Collection{nil},
		layers:      map[CollectionID]*LayerCollection{},
	}
	root := &Collection{ID: 1, Name: "Scene Collection"}
	s.collections = append(s.collections, root)
	s.root = root.ID
	s.active = root.ID
	return s
}

func (s *Scene) SetMode(mode Mode) error {
	switch mode {
	case ModeObject, ModeEdit, ModePose:
		s.Mode = mode
		return nil
	}
	return fmt.Errorf("unknown mode: %v", mode)
}

func (s *Scene) uniqueObjectName(name string) string {
	if s.ObjectByName(name) == nil {
		return name
	}
	for i := 1; ; i++ {
		n := fmt.Sprintf("%s.%03d", name, i)
		if s.ObjectByName(n) == nil {
			return n
		}
	}
}

// NewObject creates an unlinked object at the origin. The name gets a numeric
// suffix if it is already in use.
func (s *Scene) NewObject(name string, typ ObjectType, data DataID) *Object {
	o := &Object{
		ID:            ObjectID(len(s.objects)),
		Name:          s.uniqueObjectName(name),
		Type:          typ,
		Data:          data,
		basis:         geom.NewMatrix4(),
		parentInverse: geom.NewMatrix4(),
	}
	s.objects = append(s.objects, o)
	return o
}

// RemoveObject unlinks and deletes an object. Children lose their parent.
func (s *Scene) RemoveObject(id ObjectID) error {
	o := s.Object(id)
	if o == nil {
		return fmt.Errorf("object %d: %w", id, ErrNotFound)
	}
	for _, c := range s.collections {
		if c != nil {
			c.unlink(id)
		}
	}
	for _, child := range s.Children(id) {
		s.objects[child].parent = Nil
		s.invalidate(child)
	}
	s.objects[id] = nil
	return nil
}

func (s *Scene) Object(id ObjectID) *Object {
	if id <= 0 || int(id) >= len(s.objects) {
		return nil
	}
	return s.objects[id]
}

func (s *Scene) ObjectByName(name string) *Object {
	for _, o := range s.objects {
		if o != nil && o.Name == name {
			return o
		}
	}
	return nil
}

// Objects returns all objects in id order.
func (s *Scene) Objects() []*Object {
	var objs []*Object
	for _, o := range s.objects {
		if o != nil {
			objs = append(objs, o)
		}
	}
	return objs
}

func (s *Scene) Children(id ObjectID) []ObjectID {
	var children []ObjectID
	for _, o := range s.objects {
		if o != nil && o.parent == id && id != Nil {
			children = append(children, o.ID)
		}
	}
	return children
}

// SetParent changes the parent link only. Basis and parent inverse are kept.
func (s *Scene) SetParent(id, parent ObjectID) error {
	o := s.Object(id)
	if o == nil {
		return fmt.Errorf("object %d: %w", id, ErrNotFound)
	}
	if parent != Nil {
		if s.Object(parent) == nil {
			return fmt.Errorf("parent %d: %w", parent, ErrNotFound)
		}
		for p := parent; p != Nil; p = s.objects[p].parent {
			if p == id {
				return fmt.Errorf("parent %v of %v: %w", s.objects[parent].Name, o.Name, ErrCycle)
			}
		}
	}
	o.parent = parent
	s.invalidate(id)
	return nil
}

func (s *Scene) SelectedObjects() []ObjectID {
	var ids []ObjectID
	for _, o := range s.objects {
		if o != nil && o.Selected {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (s *Scene) DeselectAll() {
	for _, o := range s.objects {
		if o != nil {
			o.Selected = false
		}
	}
}

// Clone returns a deep copy of the scene without undo history.
func (s *Scene) Clone() *Scene {
	c := &Scene{
		Name:      s.Name,
		UnitScale: s.UnitScale,
		Mode:      s.Mode,
		layers:    map[CollectionID]*LayerCollection{},
		root:      s.root,
		active:    s.active,
	}
	for _, o := range s.objects {
		if o == nil {
			c.objects = append(c.objects, nil)
			continue
		}
		c.objects = append(c.objects, o.clone())
	}
	for _, d := range s.datas {
		if d == nil {
			c.datas = append(c.datas, nil)
			continue
		}
		c.datas = append(c.datas, d.Clone())
	}
	for _, col := range s.collections {
		if col == nil {
			c.collections = append(c.collections, nil)
			continue
		}
		c.collections = append(c.collections, col.clone())
	}
	for id, l := range s.layers {
		lc := *l
		c.layers[id] = &lc
	}
	return c
}

func sortObjectIDs(ids []ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
