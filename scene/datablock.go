package scene

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/binzume/unityfbx/geom"
)

type DataKind string

const (
	DataMesh     DataKind = "MESH"
	DataArmature DataKind = "ARMATURE"
	DataCurve    DataKind = "CURVE"
	DataText     DataKind = "TEXT"
)

// Datablock is a geometry payload which can be shared by several objects.
// Exactly one of the payload fields is set.
type Datablock struct {
	ID   DataID
	Name string

	// ExtraUsers counts references that are not objects (e.g. fake users).
	ExtraUsers int

	Mesh     *Mesh
	Armature *Armature
	Curve    *Curve
	Text     *Text
}

func (d *Datablock) Kind() DataKind {
	switch {
	case d.Mesh != nil:
		return DataMesh
	case d.Armature != nil:
		return DataArmature
	case d.Curve != nil:
		return DataCurve
	case d.Text != nil:
		return DataText
	}
	return ""
}

func (d *Datablock) Clone() *Datablock {
	c := *d
	if d.Mesh != nil {
		c.Mesh = d.Mesh.Clone()
	}
	if d.Armature != nil {
		c.Armature = d.Armature.Clone()
	}
	if d.Curve != nil {
		c.Curve = d.Curve.Clone()
	}
	if d.Text != nil {
		t := *d.Text
		c.Text = &t
	}
	return &c
}

// Transform applies m to the geometry in place.
func (d *Datablock) Transform(m *geom.Matrix4) {
	if d.Mesh != nil {
		for _, v := range d.Mesh.Vertices {
			*v = *m.ApplyTo(v)
		}
	}
	if d.Armature != nil {
		for _, b := range d.Armature.Bones {
			b.Head = m.ApplyTo(b.Head)
			b.Tail = m.ApplyTo(b.Tail)
		}
	}
	if d.Curve != nil {
		for _, sp := range d.Curve.Splines {
			for _, p := range sp.Points {
				*p = *m.ApplyTo(p)
			}
		}
	}
}

type Mesh struct {
	Vertices []*geom.Vector3
	Faces    [][]int
	Edges    [][2]int // loose edges
	// UVs holds one coordinate per face corner. Either nil or len(UVs) == len(Faces).
	UVs    [][]*geom.Vector2
	Groups []*VertexGroup
}

type VertexGroup struct {
	Name    string
	Weights map[int]float32
}

func (m *Mesh) Clone() *Mesh {
	c := &Mesh{}
	for _, v := range m.Vertices {
		c.Vertices = append(c.Vertices, v.Clone())
	}
	for _, f := range m.Faces {
		c.Faces = append(c.Faces, append([]int(nil), f...))
	}
	c.Edges = append(c.Edges, m.Edges...)
	for _, uvs := range m.UVs {
		var face []*geom.Vector2
		for _, uv := range uvs {
			face = append(face, &geom.Vector2{X: uv.X, Y: uv.Y})
		}
		c.UVs = append(c.UVs, face)
	}
	for _, g := range m.Groups {
		ng := &VertexGroup{Name: g.Name, Weights: map[int]float32{}}
		for i, w := range g.Weights {
			ng.Weights[i] = w
		}
		c.Groups = append(c.Groups, ng)
	}
	return c
}

func (m *Mesh) Group(name string) *VertexGroup {
	for _, g := range m.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func sortGroups(groups []*VertexGroup) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
}

type Armature struct {
	Bones []*Bone
}

// Bone is a rest pose bone in armature space.
type Bone struct {
	Name   string
	Parent int // index in Armature.Bones or -1
	Head   *geom.Vector3
	Tail   *geom.Vector3
	Deform bool
}

func (b *Bone) Length() float32 {
	return b.Tail.Sub(b.Head).Len()
}

// Matrix returns the rest matrix in armature space. The Y axis points from
// head to tail with zero roll.
func (b *Bone) Matrix() *geom.Matrix4 {
	dir := b.Tail.Sub(b.Head)
	rot := geom.NewMatrix4()
	if dir.LenSqr() > 0 {
		dir = dir.Normalize()
		axis := (&geom.Vector3{Y: 1}).Cross(dir)
		if axis.LenSqr() > 1e-12 {
			rot = geom.NewAxisAngleMatrix4(axis.Normalize(), math.Acos(math.Max(-1, math.Min(1, float64(dir.Y)))))
		} else if dir.Y < 0 {
			rot = geom.NewRotationZMatrix4(180)
		}
	}
	rot[12], rot[13], rot[14] = b.Head.X, b.Head.Y, b.Head.Z
	return rot
}

func (a *Armature) Clone() *Armature {
	c := &Armature{}
	for _, b := range a.Bones {
		nb := *b
		nb.Head = b.Head.Clone()
		nb.Tail = b.Tail.Clone()
		c.Bones = append(c.Bones, &nb)
	}
	return c
}

func (a *Armature) Children(bone int) []int {
	var r []int
	for i, b := range a.Bones {
		if b.Parent == bone {
			r = append(r, i)
		}
	}
	return r
}

type Curve struct {
	Splines []*Spline
}

type Spline struct {
	Points []*geom.Vector3
	Cyclic bool
}

func (c *Curve) Clone() *Curve {
	r := &Curve{}
	for _, sp := range c.Splines {
		ns := &Spline{Cyclic: sp.Cyclic}
		for _, p := range sp.Points {
			ns.Points = append(ns.Points, p.Clone())
		}
		r.Splines = append(r.Splines, ns)
	}
	return r
}

type Text struct {
	Body string
	Size float32
}

func (s *Scene) uniqueDataName(name string) string {
	if s.DataByName(name) == nil {
		return name
	}
	base := name
	if i := strings.LastIndex(name, "."); i > 0 && len(name)-i == 4 {
		base = name[:i]
	}
	for i := 1; ; i++ {
		n := fmt.Sprintf("%s.%03d", base, i)
		if s.DataByName(n) == nil {
			return n
		}
	}
}

// AddData registers a datablock and assigns its id.
func (s *Scene) AddData(d *Datablock) *Datablock {
	d.ID = DataID(len(s.datas))
	d.Name = s.uniqueDataName(d.Name)
	s.datas = append(s.datas, d)
	return d
}

func (s *Scene) Data(id DataID) *Datablock {
	if id <= 0 || int(id) >= len(s.datas) {
		return nil
	}
	return s.datas[id]
}

func (s *Scene) DataByName(name string) *Datablock {
	for _, d := range s.datas {
		if d != nil && d.Name == name {
			return d
		}
	}
	return nil
}

func (s *Scene) RemoveData(id DataID) {
	if s.Data(id) != nil {
		s.datas[id] = nil
	}
}

// CopyData duplicates a datablock. The copy has no users.
func (s *Scene) CopyData(id DataID) (*Datablock, error) {
	d := s.Data(id)
	if d == nil {
		return nil, fmt.Errorf("data %d: %w", id, ErrNotFound)
	}
	c := d.Clone()
	c.ExtraUsers = 0
	return s.AddData(c), nil
}

// ObjectUsers returns the objects referencing the datablock.
func (s *Scene) ObjectUsers(id DataID) int {
	n := 0
	for _, o := range s.objects {
		if o != nil && o.Data == id {
			n++
		}
	}
	return n
}

// Users counts every reference, including non-object ones.
func (s *Scene) Users(id DataID) int {
	d := s.Data(id)
	if d == nil {
		return 0
	}
	return s.ObjectUsers(id) + d.ExtraUsers
}
