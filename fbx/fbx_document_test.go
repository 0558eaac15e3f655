package fbx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/binzume/unityfbx/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument()

	model := NewModel("model01", "Mesh")
	model.SetTranslation(&geom.Vector3{X: 1, Y: 0, Z: 0})
	model.SetScaling(&geom.Vector3{X: 1, Y: 2, Z: 1})
	model.SetUserProperty("tag", "hello")
	doc.AddObject(model)

	child := NewModel("child", "Null")
	child.SetRotation(&geom.Vector3{X: -90})
	doc.AddObject(child)
	attr := NewNodeAttribute("child", "Null")
	doc.AddObject(attr)

	var verts []*geom.Vector3
	var faces [][]int
	for i := 0; i < 100; i++ {
		verts = append(verts, &geom.Vector3{X: float32(i), Y: 0, Z: 0}, &geom.Vector3{X: float32(i), Y: 1, Z: 0}, &geom.Vector3{X: float32(i) + 1, Y: 1, Z: 0})
		faces = append(faces, []int{i * 3, i*3 + 1, i*3 + 2})
	}
	g := NewGeometry("model01mesh", verts, faces)
	g.SetLayerElementNormal(verts, ByPolygonVertex)
	doc.AddObject(g)

	doc.AddConnection(doc.Scene, model) // add model to scene
	doc.AddConnection(model, g)         // set geometry to model
	doc.AddConnection(model, child)
	doc.AddConnection(child, attr)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))
	assert.True(t, strings.HasPrefix(buf.String(), "Kaydara FBX Binary  \x00\x1a\x00"))
	assert.Equal(t, footerMagic, buf.Bytes()[buf.Len()-16:])

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.FileId, parsed.FileId)

	m := parsed.FindModel("model01")
	require.NotNil(t, m)
	assert.Equal(t, "Mesh", m.Kind())
	assert.Equal(t, &geom.Vector3{X: 1, Y: 0, Z: 0}, m.GetTranslation())
	assert.Equal(t, &geom.Vector3{X: 1, Y: 2, Z: 1}, m.GetScaling())
	assert.Equal(t, "hello", m.GetProperty("tag").ToString())
	assert.Equal(t, "U", m.GetProperty("tag").Flag)

	pg := m.GetGeometry()
	require.NotNil(t, pg)
	assert.Equal(t, faces, pg.Polygons)
	assert.Equal(t, verts, pg.Vertices)
	assert.Len(t, pg.GetLayerElementNormal().Array.GetVec3Array(), 300)

	children := m.GetChildModels()
	require.Len(t, children, 1)
	assert.Equal(t, m, children[0].Parent)
	assert.Equal(t, "Null", children[0].GetNodeAttribute().Kind())

	p := children[0].GetWorldMatrix().ApplyTo(&geom.Vector3{Y: 1})
	assert.True(t, p.ApproxEqual(&geom.Vector3{X: 1, Z: -1}, 1e-5), "%v", p)
}

func TestModelSetMatrix(t *testing.T) {
	mat := geom.NewTranslateMatrix4(1, 2, 3).
		Mul(geom.NewEulerRotationMatrix4(0.3, -0.2, 1.1, 1)).
		Mul(geom.NewScaleMatrix4(1, 2, 3))
	m := NewModel("m", "Null")
	m.SetMatrix(mat)
	assert.True(t, m.GetMatrix().ApproxEqual(mat, 1e-5), "%v %v", m.GetMatrix(), mat)
}

func TestTextFormat(t *testing.T) {
	root := &Node{Name: "_FBX_ROOT", Children: []*Node{
		{Name: "Objects", Children: []*Node{
			NewModel("Cube", "Mesh").Node,
			NewNode("Vertices", []float64{0, 1.5, 2}),
			NewNode("Indexes", []int32{1, 2, -3}),
		}},
	}}
	var buf bytes.Buffer
	Dump(&buf, root, true)

	parsed, err := ParseNode(&buf)
	require.NoError(t, err)
	objects := parsed.FindChild("Objects")
	require.NotNil(t, objects)
	model := objects.FindChild("Model")
	assert.Equal(t, "Cube\x00\x01Model", model.Attr(1).ToString())
	assert.Equal(t, "Mesh", model.Attr(2).ToString())
	assert.Equal(t, "CullingOff", model.FindChild("Culling").GetString())
	assert.True(t, model.FindChild("Shading").Attr(0).Value.(bool))
	assert.Equal(t, []float32{0, 1.5, 2}, objects.FindChild("Vertices").GetFloat32Array())
	assert.Equal(t, []int32{1, 2, -3}, objects.FindChild("Indexes").GetInt32Array())
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ParseNode(strings.NewReader("Kaydara FBX Binary  \x00\x1a\x00\xe8\x1c"))
	assert.Error(t, err)
}
