package converter

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/binzume/unityfbx/fbx"
	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadMesh() *scene.Mesh {
	return &scene.Mesh{
		Vertices: []*geom.Vector3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}},
		Faces:    [][]int{{0, 1, 2, 3}},
		UVs:      [][]*geom.Vector2{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
	}
}

func addObject(t *testing.T, s *scene.Scene, name string, typ scene.ObjectType, d *scene.Datablock) *scene.Object {
	var data scene.DataID
	if d != nil {
		data = s.AddData(d).ID
	}
	o := s.NewObject(name, typ, data)
	require.NoError(t, s.LinkObject(s.Root().ID, o.ID))
	return o
}

func testOption() *FBXExportOption {
	opts := DefaultFBXExportOption()
	opts.ObjectTypes = []scene.ObjectType{scene.TypeEmpty, scene.TypeMesh, scene.TypeArmature}
	opts.ApplyScaleOptions = ScaleUnits
	opts.AddLeafBones = false
	return opts
}

func TestFBXExportOptionValidate(t *testing.T) {
	assert.NoError(t, DefaultFBXExportOption().Validate())

	cases := map[string]func(o *FBXExportOption){
		"same bone axis":  func(o *FBXExportOption) { o.SecondaryBoneAxis = geom.AxisNegY },
		"bad bone axis":   func(o *FBXExportOption) { o.PrimaryBoneAxis = "W" },
		"same up forward": func(o *FBXExportOption) { o.AxisUp = geom.AxisZ },
		"scale option":    func(o *FBXExportOption) { o.ApplyScaleOptions = "FBX_SCALE_METERS" },
		"global scale":    func(o *FBXExportOption) { o.GlobalScale = 0 },
		"no types":        func(o *FBXExportOption) { o.ObjectTypes = nil },
		"font type":       func(o *FBXExportOption) { o.ObjectTypes = []scene.ObjectType{scene.TypeFont} },
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			opts := DefaultFBXExportOption()
			modify(opts)
			err := opts.Validate()
			assert.True(t, errors.Is(err, ErrInvalidOption), "%v", err)
		})
	}

	_, err := NewSceneToFBXConverter(&FBXExportOption{}).Convert(scene.NewScene("empty"))
	assert.True(t, errors.Is(err, ErrInvalidOption))
}

func TestSceneToFBXMesh(t *testing.T) {
	s := scene.NewScene("test")
	quad := addObject(t, s, "Quad", scene.TypeMesh, &scene.Datablock{Name: "QuadMesh", Mesh: quadMesh()})
	quad.Properties = map[string]interface{}{"tag": "floor", "weight": 2.5, "skip": []int{1}}
	child := addObject(t, s, "Child", scene.TypeEmpty, nil)
	require.NoError(t, s.SetParent(child.ID, quad.ID))
	s.SetMatrixBasis(child.ID, geom.NewTranslateMatrix4(0, 0, 2))
	addObject(t, s, "Light", scene.TypeLight, nil)

	opts := testOption()
	opts.UseCustomProps = true
	opts.UseTSpace = true
	doc, err := NewSceneToFBXConverter(opts).Convert(s)
	require.NoError(t, err)

	assert.Nil(t, doc.FindModel("Light"))
	assert.Equal(t, int64(1), doc.GlobalSettings.GetProperty("UpAxis").ToInt64(0))
	assert.Equal(t, int64(2), doc.GlobalSettings.GetProperty("OriginalUpAxis").ToInt64(0))
	assert.InDelta(t, 100, doc.GlobalSettings.GetProperty("UnitScaleFactor").ToFloat32(0), 1e-6)

	m := doc.FindModel("Quad")
	require.NotNil(t, m)
	assert.Equal(t, "Mesh", m.Kind())
	assert.InDelta(t, -90, m.GetRotation().X, 1e-4)
	assert.Equal(t, "floor", m.GetProperty("tag").ToString())
	assert.Equal(t, "U", m.GetProperty("tag").Flag)
	assert.Nil(t, m.GetProperty("skip").Get(0))

	g := m.GetGeometry()
	require.NotNil(t, g)
	assert.Equal(t, "QuadMesh", g.Name())
	assert.Equal(t, [][]int{{0, 1, 2, 3}}, g.Polygons)
	assert.Len(t, g.GetLayerElementNormal().Array.GetVec3Array(), 4)
	assert.Len(t, g.GetLayerElementUV().GetIndexes(), 4)
	tangents := g.GetLayerElementTangent().Array.GetVec3Array()
	require.Len(t, tangents, 4)
	assert.True(t, tangents[0].ApproxEqual(&geom.Vector3{X: 1}, 1e-5), "%v", tangents[0])
	assert.Equal(t, []int32{0, 1, 2, 3}, g.FindChild("Edges").GetInt32Array())

	c := doc.FindModel("Child")
	require.NotNil(t, c)
	assert.Same(t, m, c.Parent)
	// child of a rotated root keeps its Z up local offset.
	assert.True(t, c.GetTranslation().ApproxEqual(&geom.Vector3{Z: 2}, 1e-5), "%v", c.GetTranslation())
	assert.True(t, c.GetWorldMatrix().Translation().ApproxEqual(&geom.Vector3{Y: 2}, 1e-5))
}

func TestSceneToFBXTriangles(t *testing.T) {
	s := scene.NewScene("test")
	mesh := quadMesh()
	mesh.Edges = [][2]int{{0, 2}}
	addObject(t, s, "Quad", scene.TypeMesh, &scene.Datablock{Name: "Quad", Mesh: mesh})

	opts := testOption()
	opts.UseTriangles = true
	doc, err := NewSceneToFBXConverter(opts).Convert(s)
	require.NoError(t, err)
	g := doc.FindModel("Quad").GetGeometry()
	require.NotNil(t, g)
	require.Len(t, g.Polygons, 3)
	assert.Len(t, g.Polygons[0], 3)
	assert.Len(t, g.Polygons[1], 3)
	assert.Equal(t, []int{0, 2}, g.Polygons[2])
}

func TestSceneToFBXSelection(t *testing.T) {
	s := scene.NewScene("test")
	a := addObject(t, s, "A", scene.TypeEmpty, nil)
	addObject(t, s, "B", scene.TypeEmpty, nil)
	col, err := s.NewCollection("Sub", s.Root().ID)
	require.NoError(t, err)
	c := s.NewObject("C", scene.TypeEmpty, scene.Nil)
	require.NoError(t, s.LinkObject(col.ID, c.ID))
	a.Selected = true

	opts := testOption()
	opts.UseSelection = true
	doc, err := NewSceneToFBXConverter(opts).Convert(s)
	require.NoError(t, err)
	assert.NotNil(t, doc.FindModel("A"))
	assert.Nil(t, doc.FindModel("B"))

	opts = testOption()
	opts.UseActiveCollection = true
	require.NoError(t, s.SetActiveCollection(col.ID))
	doc, err = NewSceneToFBXConverter(opts).Convert(s)
	require.NoError(t, err)
	assert.Nil(t, doc.FindModel("A"))
	assert.NotNil(t, doc.FindModel("C"))
}

func armatureScene(t *testing.T) *scene.Scene {
	s := scene.NewScene("test")
	arm := addObject(t, s, "Armature", scene.TypeArmature, &scene.Datablock{Name: "Armature", Armature: &scene.Armature{Bones: []*scene.Bone{
		{Name: "Root", Parent: -1, Head: &geom.Vector3{}, Tail: &geom.Vector3{Z: 1}, Deform: false},
		{Name: "Child", Parent: 0, Head: &geom.Vector3{Z: 1}, Tail: &geom.Vector3{Z: 2}, Deform: true},
		{Name: "Helper", Parent: 0, Head: &geom.Vector3{Z: 1}, Tail: &geom.Vector3{X: 1, Z: 1}, Deform: false},
	}}})
	mesh := quadMesh()
	mesh.Groups = []*scene.VertexGroup{
		{Name: "Child", Weights: map[int]float32{2: 1, 3: 0.5, 0: 0}},
		{Name: "Missing", Weights: map[int]float32{0: 1}},
	}
	body := addObject(t, s, "Body", scene.TypeMesh, &scene.Datablock{Name: "Body", Mesh: mesh})
	body.Modifiers = []*scene.Modifier{{Name: "Armature", Type: scene.ModifierArmature, ShowViewport: true, Object: arm.ID}}
	require.NoError(t, s.SetParent(body.ID, arm.ID))
	return s
}

func TestSceneToFBXArmature(t *testing.T) {
	s := armatureScene(t)
	opts := testOption()
	opts.AddLeafBones = true
	opts.ArmatureDeformOnly = true
	doc, err := NewSceneToFBXConverter(opts).Convert(s)
	require.NoError(t, err)

	root := doc.FindModel("Root")
	child := doc.FindModel("Child")
	require.NotNil(t, root)
	require.NotNil(t, child)
	assert.Nil(t, doc.FindModel("Helper"))
	assert.Nil(t, doc.FindModel("Root_end"))
	leaf := doc.FindModel("Child_end")
	require.NotNil(t, leaf)
	assert.Equal(t, "LimbNode", child.Kind())
	assert.Same(t, child, leaf.Parent)
	assert.Same(t, doc.FindModel("Armature"), root.Parent)

	// Z up bone heads end up Y up.
	assert.True(t, child.GetWorldMatrix().Translation().ApproxEqual(&geom.Vector3{Y: 1}, 1e-4), "%v", child.GetWorldMatrix().Translation())
	assert.True(t, leaf.GetWorldMatrix().Translation().ApproxEqual(&geom.Vector3{Y: 2}, 1e-4), "%v", leaf.GetWorldMatrix().Translation())

	g := doc.FindModel("Body").GetGeometry()
	require.NotNil(t, g)
	clusters := g.GetDeformers()
	require.Len(t, clusters, 1)
	assert.Equal(t, "Cluster", clusters[0].Kind())
	assert.Equal(t, []int32{2, 3}, clusters[0].GetIndexes())
	assert.Equal(t, []float32{1, 0.5}, clusters[0].GetWeights())
	assert.Same(t, child, clusters[0].GetTarget())

	poses := doc.FindObjects("Pose")
	require.Len(t, poses, 1)
	pose := poses[0].(*fbx.Pose)
	assert.NotNil(t, pose.GetPoseMatrix(child.ID()))
	assert.NotNil(t, pose.GetPoseMatrix(doc.FindModel("Body").ID()))
}

func TestSceneToFBXBoneAxis(t *testing.T) {
	s := armatureScene(t)
	opts := testOption()
	opts.PrimaryBoneAxis = geom.AxisX
	opts.SecondaryBoneAxis = geom.AxisNegY
	doc, err := NewSceneToFBXConverter(opts).Convert(s)
	require.NoError(t, err)

	// the bone's primary axis points along the bone.
	child := doc.FindModel("Child")
	require.NotNil(t, child)
	dir := child.GetWorldMatrix().ApplyToDirection(&geom.Vector3{X: 1})
	// rotations go through Euler angles, which lose precision near 90 degrees.
	assert.True(t, dir.ApproxEqual(&geom.Vector3{Y: 1}, 1e-3), "%v", dir)
	assert.NotNil(t, doc.FindModel("Helper"))
}

func TestExportReadBack(t *testing.T) {
	s := armatureScene(t)
	path := filepath.Join(t.TempDir(), "out.fbx")
	require.NoError(t, NewSceneToFBXConverter(testOption()).Export(s, path))

	doc, err := fbx.Load(path)
	require.NoError(t, err)
	body := doc.FindModel("Body")
	require.NotNil(t, body)
	assert.Same(t, doc.FindModel("Armature"), body.Parent)
	g := body.GetGeometry()
	require.NotNil(t, g)
	assert.Len(t, g.Vertices, 4)
	assert.Len(t, g.GetDeformers(), 1)
}
