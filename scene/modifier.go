package scene

import (
	"fmt"

	"github.com/binzume/unityfbx/geom"
)

type ModifierType string

const (
	ModifierArmature    ModifierType = "ARMATURE"
	ModifierMirror      ModifierType = "MIRROR"
	ModifierArray       ModifierType = "ARRAY"
	ModifierTriangulate ModifierType = "TRIANGULATE"
	ModifierDisplace    ModifierType = "DISPLACE"
)

type Modifier struct {
	Name         string
	Type         ModifierType
	ShowViewport bool

	// ARMATURE: deforming armature object.
	Object ObjectID
	// MIRROR: mirror axis (sign ignored).
	Axis geom.Axis
	// ARRAY: number of copies.
	Count int
	// ARRAY: constant offset between copies. DISPLACE: translation.
	Offset *geom.Vector3
}

func (m *Modifier) Clone() *Modifier {
	c := *m
	if m.Offset != nil {
		c.Offset = m.Offset.Clone()
	}
	return &c
}

// Bakeable reports whether the modifier can be applied to mesh data.
func (m *Modifier) Bakeable() bool {
	switch m.Type {
	case ModifierMirror, ModifierArray, ModifierTriangulate, ModifierDisplace:
		return true
	}
	return false
}

func (m *Modifier) apply(mesh *Mesh) error {
	switch m.Type {
	case ModifierMirror:
		idx := m.Axis.Index()
		if idx < 0 {
			return fmt.Errorf("modifier %v: invalid axis %q", m.Name, m.Axis)
		}
		mirror(mesh, idx)
	case ModifierArray:
		if m.Count < 1 {
			return fmt.Errorf("modifier %v: invalid count %d", m.Name, m.Count)
		}
		offset := m.Offset
		if offset == nil {
			offset = &geom.Vector3{}
		}
		array(mesh, m.Count, offset)
	case ModifierTriangulate:
		triangulate(mesh)
	case ModifierDisplace:
		if m.Offset != nil {
			for _, v := range mesh.Vertices {
				*v = *v.Add(m.Offset)
			}
		}
	default:
		return fmt.Errorf("modifier %v: unsupported type %v", m.Name, m.Type)
	}
	return nil
}

// appendCopy duplicates every element of src into dst with vertex positions
// mapped by fn. Faces are reversed when flip is set.
func appendCopy(dst, src *Mesh, fn func(v *geom.Vector3) *geom.Vector3, flip bool) {
	base := len(dst.Vertices)
	nverts := len(src.Vertices)
	for i := 0; i < nverts; i++ {
		dst.Vertices = append(dst.Vertices, fn(src.Vertices[i]))
	}
	nfaces := len(src.Faces)
	for fi := 0; fi < nfaces; fi++ {
		f := src.Faces[fi]
		nf := make([]int, len(f))
		for i, v := range f {
			if flip {
				nf[len(f)-1-i] = v + base
			} else {
				nf[i] = v + base
			}
		}
		dst.Faces = append(dst.Faces, nf)
		if src.UVs != nil {
			uvs := src.UVs[fi]
			nuv := make([]*geom.Vector2, len(uvs))
			for i, uv := range uvs {
				c := &geom.Vector2{X: uv.X, Y: uv.Y}
				if flip {
					nuv[len(uvs)-1-i] = c
				} else {
					nuv[i] = c
				}
			}
			dst.UVs = append(dst.UVs, nuv)
		}
	}
	nedges := len(src.Edges)
	for i := 0; i < nedges; i++ {
		e := src.Edges[i]
		dst.Edges = append(dst.Edges, [2]int{e[0] + base, e[1] + base})
	}
	for _, g := range dst.Groups {
		for vi := 0; vi < nverts; vi++ {
			if w, ok := g.Weights[vi]; ok {
				g.Weights[vi+base] = w
			}
		}
	}
}

func mirror(mesh *Mesh, axis int) {
	src := mesh.Clone()
	appendCopy(mesh, src, func(v *geom.Vector3) *geom.Vector3 {
		r := v.Clone()
		switch axis {
		case 0:
			r.X = -r.X
		case 1:
			r.Y = -r.Y
		case 2:
			r.Z = -r.Z
		}
		return r
	}, true)
}

func array(mesh *Mesh, count int, offset *geom.Vector3) {
	src := mesh.Clone()
	for i := 1; i < count; i++ {
		d := offset.Scale(geom.Element(i))
		appendCopy(mesh, src, func(v *geom.Vector3) *geom.Vector3 { return v.Add(d) }, false)
	}
}

// Triangulate splits every polygon with more than three corners.
func (m *Mesh) Triangulate() {
	triangulate(m)
}

func triangulate(mesh *Mesh) {
	var faces [][]int
	var uvs [][]*geom.Vector2
	for fi, f := range mesh.Faces {
		if len(f) <= 3 {
			faces = append(faces, f)
			if mesh.UVs != nil {
				uvs = append(uvs, mesh.UVs[fi])
			}
			continue
		}
		var poly []*geom.Vector3
		for _, v := range f {
			poly = append(poly, mesh.Vertices[v])
		}
		for _, t := range geom.Triangulate(poly) {
			faces = append(faces, []int{f[t[0]], f[t[1]], f[t[2]]})
			if mesh.UVs != nil {
				uv := mesh.UVs[fi]
				uvs = append(uvs, []*geom.Vector2{uv[t[0]], uv[t[1]], uv[t[2]]})
			}
		}
	}
	mesh.Faces = faces
	if mesh.UVs != nil {
		mesh.UVs = uvs
	}
}
