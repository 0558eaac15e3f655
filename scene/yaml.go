package scene

import (
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"

	"github.com/binzume/unityfbx/geom"
	yaml "gopkg.in/yaml.v2"
)

type yamlScene struct {
	Name             string            `yaml:"name"`
	UnitScale        float32           `yaml:"unit_scale"`
	ActiveCollection string            `yaml:"active_collection"`
	Meshes           []*yamlMesh       `yaml:"meshes"`
	Armatures        []*yamlArmature   `yaml:"armatures"`
	Curves           []*yamlCurve      `yaml:"curves"`
	Texts            []*yamlText       `yaml:"texts"`
	Collections      []*yamlCollection `yaml:"collections"`
	Objects          []*yamlObject     `yaml:"objects"`
}

type yamlMesh struct {
	Name     string                     `yaml:"name"`
	FakeUser bool                       `yaml:"fake_user"`
	Vertices [][3]float32               `yaml:"vertices"`
	Faces    [][]int                    `yaml:"faces"`
	Edges    [][2]int                   `yaml:"edges"`
	UVs      [][][2]float32             `yaml:"uvs"`
	Groups   map[string]map[int]float32 `yaml:"groups"`
}

type yamlArmature struct {
	Name  string `yaml:"name"`
	Bones []struct {
		Name   string     `yaml:"name"`
		Parent string     `yaml:"parent"`
		Head   [3]float32 `yaml:"head"`
		Tail   [3]float32 `yaml:"tail"`
		Deform *bool      `yaml:"deform"`
	} `yaml:"bones"`
}

type yamlCurve struct {
	Name    string `yaml:"name"`
	Splines []struct {
		Points [][3]float32 `yaml:"points"`
		Cyclic bool         `yaml:"cyclic"`
	} `yaml:"splines"`
}

type yamlText struct {
	Name string  `yaml:"name"`
	Body string  `yaml:"body"`
	Size float32 `yaml:"size"`
}

type yamlCollection struct {
	Name     string            `yaml:"name"`
	Hidden   bool              `yaml:"hidden"`
	Disabled bool              `yaml:"disabled"`
	Exclude  bool              `yaml:"exclude"`
	Objects  []string          `yaml:"objects"`
	Children []*yamlCollection `yaml:"children"`
}

type yamlObject struct {
	Name       string                 `yaml:"name"`
	Type       ObjectType             `yaml:"type"`
	Data       string                 `yaml:"data"`
	Parent     string                 `yaml:"parent"`
	Location   *[3]float32            `yaml:"location"`
	Rotation   *[3]float32            `yaml:"rotation"` // XYZ euler in degrees
	Scale      *[3]float32            `yaml:"scale"`
	Hidden     bool                   `yaml:"hidden"`
	Disabled   bool                   `yaml:"disabled"`
	Selected   bool                   `yaml:"selected"`
	Modifiers  []*yamlModifier        `yaml:"modifiers"`
	Properties map[string]interface{} `yaml:"properties"`
}

type yamlModifier struct {
	Name         string       `yaml:"name"`
	Type         ModifierType `yaml:"type"`
	ShowViewport *bool        `yaml:"show_viewport"`
	Object       string       `yaml:"object"`
	Axis         geom.Axis    `yaml:"axis"`
	Count        int          `yaml:"count"`
	Offset       *[3]float32  `yaml:"offset"`
}

func vec3(v [3]float32) *geom.Vector3 {
	return &geom.Vector3{X: v[0], Y: v[1], Z: v[2]}
}

// LoadYAML builds a scene from a YAML scene description.
func LoadYAML(r io.Reader) (*Scene, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc yamlScene
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, err
	}
	return doc.build()
}

func LoadYAMLFile(path string) (*Scene, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return LoadYAML(r)
}

func (doc *yamlScene) build() (*Scene, error) {
	s := NewScene(doc.Name)
	if doc.UnitScale != 0 {
		s.UnitScale = doc.UnitScale
	}
	dataNames := map[string]DataID{}
	addData := func(name string, d *Datablock) error {
		if _, exists := dataNames[name]; exists {
			return fmt.Errorf("duplicated data name: %v", name)
		}
		d.Name = name
		dataNames[name] = s.AddData(d).ID
		return nil
	}

	for _, m := range doc.Meshes {
		mesh := &Mesh{Faces: m.Faces, Edges: m.Edges}
		for _, v := range m.Vertices {
			mesh.Vertices = append(mesh.Vertices, vec3(v))
		}
		for _, f := range mesh.Faces {
			for _, vi := range f {
				if vi < 0 || vi >= len(mesh.Vertices) {
					return nil, fmt.Errorf("mesh %v: vertex index out of range: %d", m.Name, vi)
				}
			}
		}
		if len(m.UVs) > 0 {
			if len(m.UVs) != len(m.Faces) {
				return nil, fmt.Errorf("mesh %v: uvs must have one entry per face", m.Name)
			}
			for fi, face := range m.UVs {
				if len(face) != len(m.Faces[fi]) {
					return nil, fmt.Errorf("mesh %v: face %d: uv count mismatch", m.Name, fi)
				}
				var uvs []*geom.Vector2
				for _, uv := range face {
					uvs = append(uvs, &geom.Vector2{X: uv[0], Y: uv[1]})
				}
				mesh.UVs = append(mesh.UVs, uvs)
			}
		}
		for name, w := range m.Groups {
			mesh.Groups = append(mesh.Groups, &VertexGroup{Name: name, Weights: w})
		}
		sortGroups(mesh.Groups)
		d := &Datablock{Mesh: mesh}
		if m.FakeUser {
			d.ExtraUsers = 1
		}
		if err := addData(m.Name, d); err != nil {
			return nil, err
		}
	}
	for _, a := range doc.Armatures {
		arm := &Armature{}
		index := map[string]int{}
		for i, b := range a.Bones {
			parent := -1
			if b.Parent != "" {
				p, ok := index[b.Parent]
				if !ok {
					return nil, fmt.Errorf("armature %v: bone %v: parent %v must be defined first", a.Name, b.Name, b.Parent)
				}
				parent = p
			}
			index[b.Name] = i
			arm.Bones = append(arm.Bones, &Bone{
				Name:   b.Name,
				Parent: parent,
				Head:   vec3(b.Head),
				Tail:   vec3(b.Tail),
				Deform: b.Deform == nil || *b.Deform,
			})
		}
		if err := addData(a.Name, &Datablock{Armature: arm}); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Curves {
		curve := &Curve{}
		for _, sp := range c.Splines {
			spline := &Spline{Cyclic: sp.Cyclic}
			for _, p := range sp.Points {
				spline.Points = append(spline.Points, vec3(p))
			}
			curve.Splines = append(curve.Splines, spline)
		}
		if err := addData(c.Name, &Datablock{Curve: curve}); err != nil {
			return nil, err
		}
	}
	for _, t := range doc.Texts {
		if err := addData(t.Name, &Datablock{Text: &Text{Body: t.Body, Size: t.Size}}); err != nil {
			return nil, err
		}
	}

	for _, yo := range doc.Objects {
		if s.ObjectByName(yo.Name) != nil {
			return nil, fmt.Errorf("duplicated object name: %v", yo.Name)
		}
		typ := yo.Type
		if typ == "" {
			typ = TypeEmpty
		}
		var data DataID
		if yo.Data != "" {
			id, ok := dataNames[yo.Data]
			if !ok {
				return nil, fmt.Errorf("object %v: data %v: %w", yo.Name, yo.Data, ErrNotFound)
			}
			data = id
		}
		o := s.NewObject(yo.Name, typ, data)
		o.Hidden = yo.Hidden
		o.HideViewport = yo.Disabled
		o.Selected = yo.Selected
		o.Properties = yo.Properties
		s.SetMatrixBasis(o.ID, yo.basis())
	}
	for _, yo := range doc.Objects {
		o := s.ObjectByName(yo.Name)
		if yo.Parent != "" {
			p := s.ObjectByName(yo.Parent)
			if p == nil {
				return nil, fmt.Errorf("object %v: parent %v: %w", yo.Name, yo.Parent, ErrNotFound)
			}
			if err := s.SetParent(o.ID, p.ID); err != nil {
				return nil, err
			}
		}
		for _, ym := range yo.Modifiers {
			m := &Modifier{
				Name:         ym.Name,
				Type:         ym.Type,
				ShowViewport: ym.ShowViewport == nil || *ym.ShowViewport,
				Axis:         ym.Axis,
				Count:        ym.Count,
			}
			if m.Name == "" {
				m.Name = string(m.Type)
			}
			if ym.Object != "" {
				target := s.ObjectByName(ym.Object)
				if target == nil {
					return nil, fmt.Errorf("object %v: modifier %v: %v: %w", yo.Name, m.Name, ym.Object, ErrNotFound)
				}
				m.Object = target.ID
			}
			if ym.Offset != nil {
				m.Offset = vec3(*ym.Offset)
			}
			o.Modifiers = append(o.Modifiers, m)
		}
	}

	linked := map[string]bool{}
	var addCollection func(yc *yamlCollection, parent CollectionID) error
	addCollection = func(yc *yamlCollection, parent CollectionID) error {
		c := s.CollectionByName(yc.Name)
		if c != nil {
			if err := s.LinkCollection(parent, c.ID); err != nil {
				return err
			}
		} else {
			var err error
			if c, err = s.NewCollection(yc.Name, parent); err != nil {
				return err
			}
		}
		c.HideViewport = c.HideViewport || yc.Disabled
		l := s.LayerCollection(c.ID)
		l.HideViewport = l.HideViewport || yc.Hidden
		l.Exclude = l.Exclude || yc.Exclude
		for _, name := range yc.Objects {
			o := s.ObjectByName(name)
			if o == nil {
				return fmt.Errorf("collection %v: object %v: %w", yc.Name, name, ErrNotFound)
			}
			s.LinkObject(c.ID, o.ID)
			linked[name] = true
		}
		for _, child := range yc.Children {
			if err := addCollection(child, c.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, yc := range doc.Collections {
		if err := addCollection(yc, s.root); err != nil {
			return nil, err
		}
	}
	for _, o := range s.Objects() {
		if !linked[o.Name] {
			s.LinkObject(s.root, o.ID)
		}
	}
	if doc.ActiveCollection != "" {
		c := s.CollectionByName(doc.ActiveCollection)
		if c == nil {
			return nil, fmt.Errorf("active collection %v: %w", doc.ActiveCollection, ErrNotFound)
		}
		s.active = c.ID
	}
	return s, nil
}

func (yo *yamlObject) basis() *geom.Matrix4 {
	m := geom.NewMatrix4()
	if yo.Scale != nil {
		m = geom.NewScaleMatrix4(yo.Scale[0], yo.Scale[1], yo.Scale[2])
	}
	if yo.Rotation != nil {
		r := yo.Rotation
		rad := func(deg float32) geom.Element { return geom.Element(float64(deg) * math.Pi / 180) }
		m = geom.NewEulerRotationMatrix4(rad(r[0]), rad(r[1]), rad(r[2]), 1).Mul(m)
	}
	if yo.Location != nil {
		m = geom.NewTranslateMatrix4(yo.Location[0], yo.Location[1], yo.Location[2]).Mul(m)
	}
	return m
}
