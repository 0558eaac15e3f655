package scene

import (
	"fmt"
	"log"
	"unicode"

	"github.com/binzume/unityfbx/geom"
)

const (
	glyphAdvance = 0.6
	glyphWidth   = 0.5
)

// ConvertToMesh turns CURVE, SURFACE and FONT objects into MESH objects and
// bakes the viewport modifiers of every object in ids. ARMATURE modifiers are
// kept. Single user data is converted in place, shared data is copied first.
func (s *Scene) ConvertToMesh(ids []ObjectID) error {
	for _, id := range ids {
		o := s.Object(id)
		if o == nil {
			return fmt.Errorf("convert object %d: %w", id, ErrNotFound)
		}
		if err := s.convertObject(o); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) convertObject(o *Object) error {
	switch o.Type {
	case TypeMesh, TypeCurve, TypeSurface, TypeFont:
	default:
		return nil
	}
	d := s.Data(o.Data)
	if d == nil {
		return fmt.Errorf("convert %v: data %d: %w", o.Name, o.Data, ErrNotFound)
	}
	if o.Type == TypeMesh && !hasBakeable(o) {
		return nil
	}
	if s.Users(d.ID) > 1 {
		c, err := s.CopyData(d.ID)
		if err != nil {
			return err
		}
		o.Data = c.ID
		d = c
	}

	mesh, err := toMesh(o.Type, d)
	if err != nil {
		return fmt.Errorf("convert %v: %w", o.Name, err)
	}
	var kept []*Modifier
	for _, m := range o.Modifiers {
		if !m.Bakeable() {
			if m.Type != ModifierArmature {
				log.Printf("%v: modifier %v (%v) is not supported. skipped.", o.Name, m.Name, m.Type)
			}
			kept = append(kept, m)
			continue
		}
		if !m.ShowViewport {
			continue
		}
		if err := m.apply(mesh); err != nil {
			return fmt.Errorf("convert %v: %w", o.Name, err)
		}
	}
	o.Modifiers = kept
	*d = Datablock{ID: d.ID, Name: d.Name, ExtraUsers: d.ExtraUsers, Mesh: mesh}
	o.Type = TypeMesh
	return nil
}

// EvaluatedMesh returns a copy of the object's geometry as a mesh with the
// viewport modifiers applied. The object is not modified.
func (s *Scene) EvaluatedMesh(id ObjectID) (*Mesh, error) {
	o := s.Object(id)
	if o == nil {
		return nil, fmt.Errorf("object %d: %w", id, ErrNotFound)
	}
	d := s.Data(o.Data)
	if d == nil {
		return nil, fmt.Errorf("evaluate %v: data %d: %w", o.Name, o.Data, ErrNotFound)
	}
	mesh, err := toMesh(o.Type, d.Clone())
	if err != nil {
		return nil, fmt.Errorf("evaluate %v: %w", o.Name, err)
	}
	for _, m := range o.Modifiers {
		if !m.Bakeable() || !m.ShowViewport {
			continue
		}
		if err := m.apply(mesh); err != nil {
			return nil, fmt.Errorf("evaluate %v: %w", o.Name, err)
		}
	}
	return mesh, nil
}

func hasBakeable(o *Object) bool {
	for _, m := range o.Modifiers {
		if m.Bakeable() {
			return true
		}
	}
	return false
}

func toMesh(typ ObjectType, d *Datablock) (*Mesh, error) {
	switch {
	case d.Mesh != nil:
		return d.Mesh, nil
	case d.Text != nil:
		return textMesh(d.Text), nil
	case d.Curve != nil && typ == TypeSurface:
		return surfaceMesh(d.Curve), nil
	case d.Curve != nil:
		return curveMesh(d.Curve), nil
	}
	return nil, fmt.Errorf("%v data can not be converted to mesh", d.Kind())
}

func curveMesh(c *Curve) *Mesh {
	m := &Mesh{}
	for _, sp := range c.Splines {
		base := len(m.Vertices)
		for i, p := range sp.Points {
			m.Vertices = append(m.Vertices, p.Clone())
			if i > 0 {
				m.Edges = append(m.Edges, [2]int{base + i - 1, base + i})
			}
		}
		if sp.Cyclic && len(sp.Points) > 2 {
			m.Edges = append(m.Edges, [2]int{base + len(sp.Points) - 1, base})
		}
	}
	return m
}

// surfaceMesh lofts quads between consecutive splines with the same point count.
func surfaceMesh(c *Curve) *Mesh {
	m := &Mesh{}
	var prev *Spline
	prevBase := 0
	for _, sp := range c.Splines {
		base := len(m.Vertices)
		for _, p := range sp.Points {
			m.Vertices = append(m.Vertices, p.Clone())
		}
		if prev != nil && len(prev.Points) == len(sp.Points) {
			n := len(sp.Points)
			segs := n - 1
			if sp.Cyclic {
				segs = n
			}
			for i := 0; i < segs; i++ {
				j := (i + 1) % n
				m.Faces = append(m.Faces, []int{prevBase + i, prevBase + j, base + j, base + i})
			}
		}
		prev, prevBase = sp, base
	}
	return m
}

func textMesh(t *Text) *Mesh {
	m := &Mesh{}
	size := t.Size
	if size == 0 {
		size = 1
	}
	for i, r := range []rune(t.Body) {
		if unicode.IsSpace(r) {
			continue
		}
		x := geom.Element(i) * size * glyphAdvance
		w := size * glyphWidth
		base := len(m.Vertices)
		m.Vertices = append(m.Vertices,
			&geom.Vector3{X: x, Y: 0},
			&geom.Vector3{X: x + w, Y: 0},
			&geom.Vector3{X: x + w, Y: size},
			&geom.Vector3{X: x, Y: size},
		)
		m.Faces = append(m.Faces, []int{base, base + 1, base + 2, base + 3})
	}
	return m
}
