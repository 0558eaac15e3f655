package converter

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/binzume/unityfbx/fbx"
	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
)

var ErrInvalidOption = errors.New("invalid export option")

type ScaleOption string

const (
	ScaleNone   ScaleOption = "FBX_SCALE_NONE"
	ScaleUnits  ScaleOption = "FBX_SCALE_UNITS"
	ScaleCustom ScaleOption = "FBX_SCALE_CUSTOM"
	ScaleAll    ScaleOption = "FBX_SCALE_ALL"
)

var exportableTypes = map[scene.ObjectType]bool{
	scene.TypeEmpty:    true,
	scene.TypeMesh:     true,
	scene.TypeArmature: true,
	scene.TypeCamera:   true,
	scene.TypeLight:    true,
}

type FBXExportOption struct {
	// Object types to export. CAMERA and LIGHT are written as null nodes.
	ObjectTypes []scene.ObjectType

	UseActiveCollection bool
	UseSelection        bool
	UseCustomProps      bool
	UseTSpace           bool
	UseTriangles        bool
	ArmatureDeformOnly  bool
	AddLeafBones        bool
	PrimaryBoneAxis     geom.Axis
	SecondaryBoneAxis   geom.Axis

	GlobalScale       float32
	ApplyScaleOptions ScaleOption
	AxisForward       geom.Axis
	AxisUp            geom.Axis
}

func DefaultFBXExportOption() *FBXExportOption {
	return &FBXExportOption{
		ObjectTypes:       []scene.ObjectType{scene.TypeEmpty, scene.TypeMesh, scene.TypeArmature, scene.TypeCamera, scene.TypeLight},
		AddLeafBones:      true,
		PrimaryBoneAxis:   geom.AxisY,
		SecondaryBoneAxis: geom.AxisX,
		GlobalScale:       1,
		ApplyScaleOptions: ScaleNone,
		AxisForward:       geom.AxisNegZ,
		AxisUp:            geom.AxisY,
	}
}

func (o *FBXExportOption) Validate() error {
	if len(o.ObjectTypes) == 0 {
		return fmt.Errorf("%w: no object types", ErrInvalidOption)
	}
	for _, t := range o.ObjectTypes {
		if !exportableTypes[t] {
			return fmt.Errorf("%w: object type %q", ErrInvalidOption, t)
		}
	}
	if o.PrimaryBoneAxis.Index() < 0 || o.SecondaryBoneAxis.Index() < 0 {
		return fmt.Errorf("%w: bone axis %q, %q", ErrInvalidOption, o.PrimaryBoneAxis, o.SecondaryBoneAxis)
	}
	if o.PrimaryBoneAxis.Index() == o.SecondaryBoneAxis.Index() {
		return fmt.Errorf("%w: primary and secondary bone axes must differ", ErrInvalidOption)
	}
	if _, err := geom.NewAxisConversionMatrix4(geom.AxisY, geom.AxisZ, o.AxisForward, o.AxisUp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	switch o.ApplyScaleOptions {
	case ScaleNone, ScaleUnits, ScaleCustom, ScaleAll:
	default:
		return fmt.Errorf("%w: apply scale options %q", ErrInvalidOption, o.ApplyScaleOptions)
	}
	if o.GlobalScale <= 0 {
		return fmt.Errorf("%w: global scale %v", ErrInvalidOption, o.GlobalScale)
	}
	return nil
}

type sceneToFBX struct {
	options *FBXExportOption
}

func NewSceneToFBXConverter(options *FBXExportOption) *sceneToFBX {
	if options == nil {
		options = DefaultFBXExportOption()
	}
	return &sceneToFBX{
		options: options,
	}
}

type fbxExport struct {
	options *FBXExportOption
	src     *scene.Scene
	doc     *fbx.Document

	global         *geom.Matrix4
	boneCorrection *geom.Matrix4

	models map[scene.ObjectID]*fbx.Model
	worlds map[*fbx.Model]*geom.Matrix4 // FBX space
	bones  map[scene.ObjectID]map[string]*fbx.Model
	pose   *fbx.Pose
	posed  map[*fbx.Model]bool
}

// Convert builds an FBX document from the scene. The scene is not modified.
func (c *sceneToFBX) Convert(s *scene.Scene) (*fbx.Document, error) {
	opts := c.options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	axis, _ := geom.NewAxisConversionMatrix4(geom.AxisY, geom.AxisZ, opts.AxisForward, opts.AxisUp)
	boneCorrection, _ := geom.NewAxisConversionMatrix4(opts.SecondaryBoneAxis, opts.PrimaryBoneAxis, geom.AxisX, geom.AxisY)

	unitScale := 100 * s.UnitScale
	if unitScale == 0 {
		unitScale = 100
	}
	var matrixScale, unitScaleFactor float32
	switch opts.ApplyScaleOptions {
	case ScaleNone:
		matrixScale, unitScaleFactor = unitScale*opts.GlobalScale, 1
	case ScaleUnits:
		matrixScale, unitScaleFactor = opts.GlobalScale, unitScale
	case ScaleCustom:
		matrixScale, unitScaleFactor = unitScale, opts.GlobalScale
	default:
		matrixScale, unitScaleFactor = 1, opts.GlobalScale*unitScale
	}

	e := &fbxExport{
		options:        opts,
		src:            s,
		doc:            fbx.NewDocument(),
		global:         geom.NewScaleMatrix4(matrixScale, matrixScale, matrixScale).Mul(axis),
		boneCorrection: boneCorrection,
		models:         map[scene.ObjectID]*fbx.Model{},
		worlds:         map[*fbx.Model]*geom.Matrix4{},
		bones:          map[scene.ObjectID]map[string]*fbx.Model{},
		posed:          map[*fbx.Model]bool{},
	}
	e.writeGlobalSettings(unitScaleFactor)

	targets := c.targetObjects(s)
	for _, o := range targets {
		kind := "Null"
		if o.Type == scene.TypeMesh {
			kind = "Mesh"
		}
		model := fbx.NewModel(o.Name, kind)
		e.doc.AddObject(model)
		e.models[o.ID] = model
		e.worlds[model] = e.global.Mul(s.MatrixWorld(o.ID))
	}

	for _, o := range targets {
		model := e.models[o.ID]
		parent := e.doc.Scene
		local := e.worlds[model]
		if p, ok := e.models[o.Parent()]; ok {
			parent = p
			local = e.worlds[p].Inverse().Mul(local)
		}
		model.SetMatrix(local)
		e.doc.AddConnection(parent, model)
		if opts.UseCustomProps {
			e.writeUserProperties(model, o)
		}
		if o.Type == scene.TypeArmature {
			if err := e.convertArmature(o, model); err != nil {
				return nil, err
			}
		} else if o.Type != scene.TypeMesh {
			attr := fbx.NewNodeAttribute(o.Name, "Null")
			e.doc.AddObject(attr)
			e.doc.AddConnection(model, attr)
		}
	}

	// meshes after armatures so that skin clusters can find their bones.
	for _, o := range targets {
		if o.Type == scene.TypeMesh {
			if err := e.convertMesh(o, e.models[o.ID]); err != nil {
				return nil, err
			}
		}
	}
	return e.doc, nil
}

// Export converts the scene and writes a binary FBX file.
func (c *sceneToFBX) Export(s *scene.Scene, path string) error {
	doc, err := c.Convert(s)
	if err != nil {
		return err
	}
	return fbx.Save(doc, path)
}

func (c *sceneToFBX) targetObjects(s *scene.Scene) []*scene.Object {
	types := map[scene.ObjectType]bool{}
	for _, t := range c.options.ObjectTypes {
		types[t] = true
	}

	var candidates []scene.ObjectID
	if c.options.UseActiveCollection {
		seen := map[scene.ObjectID]bool{}
		active := s.ActiveCollection()
		for _, cid := range append([]scene.CollectionID{active}, s.ChildrenRecursive(active)...) {
			for _, id := range s.Collection(cid).Objects {
				if !seen[id] {
					seen[id] = true
					candidates = append(candidates, id)
				}
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	} else {
		candidates = s.ViewLayerObjects()
	}

	var objects []*scene.Object
	for _, id := range candidates {
		o := s.Object(id)
		if o == nil || !types[o.Type] || (c.options.UseSelection && !o.Selected) {
			continue
		}
		objects = append(objects, o)
	}
	return objects
}

func axisSign(a geom.Axis) int {
	v := a.Vector()
	if v.X+v.Y+v.Z < 0 {
		return -1
	}
	return 1
}

func (e *fbxExport) writeGlobalSettings(unitScaleFactor float32) {
	gs := e.doc.GlobalSettings
	up := e.options.AxisUp
	front := geom.Axis("-" + string(e.options.AxisForward))
	if e.options.AxisForward[0] == '-' {
		front = e.options.AxisForward[1:]
	}
	coord := up.Vector().Cross(front.Vector())
	coordAxis, coordSign := 0, 1
	for i, v := range []float32{coord.X, coord.Y, coord.Z} {
		if v != 0 {
			coordAxis = i
			if v < 0 {
				coordSign = -1
			}
		}
	}
	gs.SetIntProperty("UpAxis", up.Index())
	gs.SetIntProperty("UpAxisSign", axisSign(up))
	gs.SetIntProperty("FrontAxis", front.Index())
	gs.SetIntProperty("FrontAxisSign", axisSign(front))
	gs.SetIntProperty("CoordAxis", coordAxis)
	gs.SetIntProperty("CoordAxisSign", coordSign)
	gs.SetIntProperty("OriginalUpAxis", 2)
	gs.SetIntProperty("OriginalUpAxisSign", 1)
	gs.SetFloatProperty("UnitScaleFactor", float64(unitScaleFactor))
	gs.SetFloatProperty("OriginalUnitScaleFactor", float64(unitScaleFactor))
}

func (e *fbxExport) writeUserProperties(model *fbx.Model, o *scene.Object) {
	var keys []string
	for k := range o.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !model.SetUserProperty(k, o.Properties[k]) {
			log.Printf("%v: custom property %v (%T) is not supported", o.Name, k, o.Properties[k])
		}
	}
}

func (e *fbxExport) addPoseNode(model *fbx.Model) {
	if e.pose == nil {
		e.pose = fbx.NewBindPose("BindPose")
		e.doc.AddObject(e.pose)
	}
	if !e.posed[model] {
		e.posed[model] = true
		e.pose.AddPoseNode(model, e.worlds[model])
	}
}

// exportedBones returns the bones to write. With ArmatureDeformOnly, non
// deforming bones are kept only when a descendant deforms.
func (e *fbxExport) exportedBones(arm *scene.Armature) []bool {
	keep := make([]bool, len(arm.Bones))
	for i, b := range arm.Bones {
		if !e.options.ArmatureDeformOnly || b.Deform {
			for p := i; p >= 0 && !keep[p]; p = arm.Bones[p].Parent {
				keep[p] = true
			}
		}
	}
	return keep
}

func (e *fbxExport) convertArmature(o *scene.Object, model *fbx.Model) error {
	attr := fbx.NewNodeAttribute(o.Name, "Null")
	e.doc.AddObject(attr)
	e.doc.AddConnection(model, attr)

	d := e.src.Data(o.Data)
	if d == nil || d.Armature == nil {
		return fmt.Errorf("armature %v: no armature data", o.Name)
	}
	arm := d.Armature
	keep := e.exportedBones(arm)
	bones := map[string]*fbx.Model{}
	e.bones[o.ID] = bones

	var addBone func(name string, parent *fbx.Model, parentMat, mat *geom.Matrix4) *fbx.Model
	addBone = func(name string, parent *fbx.Model, parentMat, mat *geom.Matrix4) *fbx.Model {
		bm := fbx.NewModel(name, "LimbNode")
		e.doc.AddObject(bm)
		battr := fbx.NewNodeAttribute(name, "LimbNode")
		e.doc.AddObject(battr)
		bm.SetMatrix(parentMat.Inverse().Mul(mat))
		e.doc.AddConnection(parent, bm)
		e.doc.AddConnection(bm, battr)
		e.worlds[bm] = e.worlds[model].Mul(mat)
		return bm
	}

	var visit func(i int, parent *fbx.Model, parentMat *geom.Matrix4)
	visit = func(i int, parent *fbx.Model, parentMat *geom.Matrix4) {
		b := arm.Bones[i]
		mat := b.Matrix().Mul(e.boneCorrection)
		bm := addBone(b.Name, parent, parentMat, mat)
		bones[b.Name] = bm
		children := 0
		for _, c := range arm.Children(i) {
			if keep[c] {
				visit(c, bm, mat)
				children++
			}
		}
		if children == 0 && e.options.AddLeafBones {
			tail := b.Matrix().Mul(geom.NewTranslateMatrix4(0, b.Length(), 0)).Mul(e.boneCorrection)
			addBone(b.Name+"_end", bm, mat, tail)
		}
	}
	for i, b := range arm.Bones {
		if b.Parent < 0 && keep[i] {
			visit(i, model, geom.NewMatrix4())
		}
	}
	return nil
}

func faceNormal(verts []*geom.Vector3, f []int) *geom.Vector3 {
	n := &geom.Vector3{}
	for i := range f {
		a := verts[f[i]]
		b := verts[f[(i+1)%len(f)]]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	if n.LenSqr() == 0 {
		return n
	}
	return n.Normalize()
}

// faceTangent returns the tangent and binormal of a polygon from its first triangle.
func faceTangent(verts []*geom.Vector3, f []int, uv []*geom.Vector2, n *geom.Vector3) (*geom.Vector3, *geom.Vector3) {
	e1 := verts[f[1]].Sub(verts[f[0]])
	e2 := verts[f[2]].Sub(verts[f[0]])
	d1 := uv[1].Sub(uv[0])
	d2 := uv[2].Sub(uv[0])
	r := d1.X*d2.Y - d2.X*d1.Y
	var t, b *geom.Vector3
	if geom.Abs(r) < 1e-12 {
		t = e1
		b = n.Cross(e1)
	} else {
		t = e1.Scale(d2.Y).Sub(e2.Scale(d1.Y)).Scale(1 / r)
		b = e2.Scale(d1.X).Sub(e1.Scale(d2.X)).Scale(1 / r)
	}
	t = t.Sub(n.Scale(n.Dot(t)))
	if t.LenSqr() == 0 {
		return &geom.Vector3{}, &geom.Vector3{}
	}
	t = t.Normalize()
	sign := geom.Element(1)
	if n.Cross(t).Dot(b) < 0 {
		sign = -1
	}
	return t, n.Cross(t).Scale(sign)
}

func (e *fbxExport) convertMesh(o *scene.Object, model *fbx.Model) error {
	mesh, err := e.src.EvaluatedMesh(o.ID)
	if err != nil {
		return err
	}
	if e.options.UseTriangles {
		mesh.Triangulate()
	}

	// loose edges are written as two corner polygons.
	polygons := append([][]int(nil), mesh.Faces...)
	for _, edge := range mesh.Edges {
		polygons = append(polygons, []int{edge[0], edge[1]})
	}

	name := o.Name
	if d := e.src.Data(o.Data); d != nil {
		name = d.Name
	}
	g := fbx.NewGeometry(name, mesh.Vertices, polygons)

	var normals []*geom.Vector3
	var edges []int32
	seen := map[[2]int]bool{}
	corner := 0
	for _, f := range polygons {
		n := &geom.Vector3{}
		if len(f) > 2 {
			n = faceNormal(mesh.Vertices, f)
		}
		nedges := len(f)
		if nedges == 2 {
			nedges = 1
		}
		for i := range f {
			normals = append(normals, n)
			if i < nedges {
				a, b := f[i], f[(i+1)%len(f)]
				if a > b {
					a, b = b, a
				}
				if !seen[[2]int{a, b}] {
					seen[[2]int{a, b}] = true
					edges = append(edges, int32(corner+i))
				}
			}
		}
		corner += len(f)
	}
	g.SetEdges(edges)
	g.SetLayerElementNormal(normals, fbx.ByPolygonVertex)

	if mesh.UVs != nil {
		var uvs []*geom.Vector2
		var indices []int32
		for fi, f := range polygons {
			for i := range f {
				uv := &geom.Vector2{}
				if fi < len(mesh.UVs) {
					uv = mesh.UVs[fi][i]
				}
				indices = append(indices, int32(len(uvs)))
				uvs = append(uvs, uv)
			}
		}
		g.SetLayerElementUVIndexed(uvs, indices, fbx.ByPolygonVertex)
	}

	if e.options.UseTSpace {
		e.writeTangentSpace(o, g, mesh, polygons)
	}

	e.doc.AddObject(g)
	e.doc.AddConnection(model, g)

	for _, m := range o.Modifiers {
		if m.Type == scene.ModifierArmature {
			e.convertSkin(o, model, g, mesh, m.Object)
			break
		}
	}
	return nil
}

func (e *fbxExport) writeTangentSpace(o *scene.Object, g *fbx.Geometry, mesh *scene.Mesh, polygons [][]int) {
	if mesh.UVs == nil {
		log.Printf("%v: tangent space needs UVs. skipped.", o.Name)
		return
	}
	for _, f := range mesh.Faces {
		if len(f) > 4 {
			log.Printf("%v: tangent space can only be computed for tris/quads. skipped.", o.Name)
			return
		}
	}
	var tangents, binormals []*geom.Vector3
	for fi, f := range polygons {
		t, b := &geom.Vector3{}, &geom.Vector3{}
		if fi < len(mesh.Faces) && len(f) >= 3 {
			t, b = faceTangent(mesh.Vertices, f, mesh.UVs[fi], faceNormal(mesh.Vertices, f))
		}
		for range f {
			tangents = append(tangents, t)
			binormals = append(binormals, b)
		}
	}
	g.SetLayerElementTangent(tangents, fbx.ByPolygonVertex)
	g.SetLayerElementBinormal(binormals, fbx.ByPolygonVertex)
}

func (e *fbxExport) convertSkin(o *scene.Object, model *fbx.Model, g *fbx.Geometry, mesh *scene.Mesh, armature scene.ObjectID) {
	bones := e.bones[armature]
	if bones == nil {
		log.Printf("%v: armature is not exported. skin skipped.", o.Name)
		return
	}
	skin := fbx.NewSkin(o.Name)
	e.doc.AddObject(skin)
	e.doc.AddConnection(g, skin)

	meshWorld := e.worlds[model]
	e.addPoseNode(model)
	e.addPoseNode(e.models[armature])
	for _, group := range mesh.Groups {
		bone := bones[group.Name]
		if bone == nil {
			continue
		}
		var vertices []int
		for v, w := range group.Weights {
			if w != 0 {
				vertices = append(vertices, v)
			}
		}
		sort.Ints(vertices)
		indexes := make([]int32, len(vertices))
		weights := make([]float64, len(vertices))
		for i, v := range vertices {
			indexes[i] = int32(v)
			weights[i] = float64(group.Weights[v])
		}
		boneWorld := e.worlds[bone]
		cluster := fbx.NewCluster(group.Name, indexes, weights, boneWorld.Inverse().Mul(meshWorld), boneWorld)
		e.doc.AddObject(cluster)
		e.doc.AddConnection(skin, cluster)
		e.doc.AddConnection(cluster, bone)
		e.addPoseNode(bone)
	}
}
