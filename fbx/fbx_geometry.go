package fbx

import (
	"github.com/binzume/unityfbx/geom"
)

type Geometry struct {
	Obj
	Vertices []*geom.Vector3
	Polygons [][]int
}

type MappingType string

const (
	AllSame         MappingType = "AllSame"
	ByPolygon       MappingType = "ByPolygon"
	ByVertice       MappingType = "ByVertice"
	ByPolygonVertex MappingType = "ByPolygonVertex"
	ByEdge          MappingType = "ByEdge"
)

type LayerElement struct {
	*Node
	Array     *Node
	IndexNode *Node
}

func NewGeometry(name string, verts []*geom.Vector3, faces [][]int) *Geometry {
	varray := make([]float64, 0, len(verts)*3)
	for _, v := range verts {
		varray = append(varray, float64(v.X), float64(v.Y), float64(v.Z))
	}
	indices := []int32{}
	for _, f := range faces {
		for _, i := range f {
			indices = append(indices, int32(i))
		}
		if len(f) > 0 {
			indices[len(indices)-1] = ^indices[len(indices)-1]
		}
	}

	g := &Geometry{
		Obj: *newObj("Geometry", name, "Geometry", "Mesh", []*Node{
			NewNode("GeometryVersion", 124),
			NewNode("Vertices", varray),
			NewNode("PolygonVertexIndex", indices),
			NewNode("Layer", 0),
		}),
		Vertices: verts,
		Polygons: faces,
	}
	g.FindChild("Layer").AddChild(NewNode("Version", 100))
	return g
}

// SetEdges writes loose and polygon edges as indices into PolygonVertexIndex.
func (g *Geometry) SetEdges(edges []int32) {
	g.AddOrReplaceChild(NewNode("Edges", edges))
}

func (g *Geometry) setLayerElementNode(name string, version int, children []*Node) {
	node := NewNode(name, 0)
	node.Children = append([]*Node{NewNode("Version", version), NewNode("Name", "")}, children...)
	if g.AddOrReplaceChild(node) {
		layer := g.FindChild("Layer")
		layer.AddChild(&Node{Name: "LayerElement", Children: []*Node{
			NewNode("Type", name),
			NewNode("TypedIndex", 0),
		}})
	}
}

func vec3Array(vv []*geom.Vector3) []float64 {
	a := make([]float64, 0, len(vv)*3)
	for _, v := range vv {
		a = append(a, float64(v.X), float64(v.Y), float64(v.Z))
	}
	return a
}

func (g *Geometry) SetLayerElementNormal(normals []*geom.Vector3, mappingType MappingType) {
	g.setLayerElementNode("LayerElementNormal", 101, []*Node{
		NewNode("MappingInformationType", string(mappingType)),
		NewNode("ReferenceInformationType", "Direct"),
		NewNode("Normals", vec3Array(normals)),
	})
}

func (g *Geometry) SetLayerElementTangent(tangents []*geom.Vector3, mappingType MappingType) {
	g.setLayerElementNode("LayerElementTangent", 101, []*Node{
		NewNode("MappingInformationType", string(mappingType)),
		NewNode("ReferenceInformationType", "Direct"),
		NewNode("Tangents", vec3Array(tangents)),
	})
}

func (g *Geometry) SetLayerElementBinormal(binormals []*geom.Vector3, mappingType MappingType) {
	g.setLayerElementNode("LayerElementBinormal", 101, []*Node{
		NewNode("MappingInformationType", string(mappingType)),
		NewNode("ReferenceInformationType", "Direct"),
		NewNode("Binormals", vec3Array(binormals)),
	})
}

func (g *Geometry) SetLayerElementUVIndexed(uv []*geom.Vector2, indices []int32, mappingType MappingType) {
	floatArray := make([]float64, 0, len(uv)*2)
	for _, v := range uv {
		floatArray = append(floatArray, float64(v.X), float64(v.Y))
	}
	g.setLayerElementNode("LayerElementUV", 101, []*Node{
		NewNode("MappingInformationType", string(mappingType)),
		NewNode("ReferenceInformationType", "IndexToDirect"),
		NewNode("UV", floatArray),
		NewNode("UVIndex", indices),
	})
}

func (g *Geometry) SetLayerElementMaterialIndex(mat []int32, mappingType MappingType) {
	g.setLayerElementNode("LayerElementMaterial", 101, []*Node{
		NewNode("MappingInformationType", string(mappingType)),
		NewNode("ReferenceInformationType", "IndexToDirect"),
		NewNode("Materials", mat),
	})
}

func (g *Geometry) GetVertices() []*geom.Vector3 {
	return g.FindChild("Vertices").GetVec3Array()
}

func (g *Geometry) GetPolygons() [][]int {
	var faces [][]int
	var face []int
	for _, index := range g.FindChild("PolygonVertexIndex").GetInt32Array() {
		if index < 0 {
			faces = append(faces, append(face, int(^index)))
			face = nil
			continue
		}
		face = append(face, int(index))
	}
	return faces
}

func (g *Geometry) GetLayerElement(name string, arrayName string, indexName string) *LayerElement {
	node := g.FindChild(name)
	if node == nil {
		return nil
	}
	return &LayerElement{node, node.FindChild(arrayName), node.FindChild(indexName)}
}

func (g *Geometry) GetLayerElementUV() *LayerElement {
	return g.GetLayerElement("LayerElementUV", "UV", "UVIndex")
}

func (g *Geometry) GetLayerElementNormal() *LayerElement {
	return g.GetLayerElement("LayerElementNormal", "Normals", "NormalsIndex")
}

func (g *Geometry) GetLayerElementTangent() *LayerElement {
	return g.GetLayerElement("LayerElementTangent", "Tangents", "TangentsIndex")
}

func (g *Geometry) GetLayerElementBinormal() *LayerElement {
	return g.GetLayerElement("LayerElementBinormal", "Binormals", "BinormalsIndex")
}

func (e *LayerElement) GetMappingInformationType() MappingType {
	return MappingType(e.FindChild("MappingInformationType").GetString())
}

func (e *LayerElement) GetReferenceInformationType() string {
	return e.FindChild("ReferenceInformationType").GetString()
}

func (e *LayerElement) GetIndexes() []int32 {
	return e.IndexNode.GetInt32Array()
}

func (g *Geometry) GetDeformers() []*Deformer {
	var r []*Deformer
	for _, skin := range g.FindRefs("Deformer") {
		for _, sub := range skin.FindRefs("Deformer") {
			if d, ok := sub.(*Deformer); ok {
				r = append(r, d)
			}
		}
	}
	return r
}

// Deformer is a Skin or one of its Clusters.
type Deformer struct {
	Obj
}

func NewSkin(name string) *Deformer {
	return &Deformer{Obj: *newObj("Deformer", name, "Deformer", "Skin", []*Node{
		NewNode("Version", 101),
		NewNode("Link_DeformAcuracy", 50.0),
	})}
}

// NewCluster creates a skin cluster. transformLink is the bone bind matrix in
// world space and transform maps mesh space to bone space at bind time.
func NewCluster(name string, indexes []int32, weights []float64, transform, transformLink *geom.Matrix4) *Deformer {
	return &Deformer{Obj: *newObj("Deformer", name, "SubDeformer", "Cluster", []*Node{
		NewNode("Version", 100),
		NewNode("UserData", "", ""),
		NewNode("Indexes", indexes),
		NewNode("Weights", weights),
		NewNode("Transform", matrixArray(transform)),
		NewNode("TransformLink", matrixArray(transformLink)),
	})}
}

func matrixArray(m *geom.Matrix4) []float64 {
	a := make([]float64, 16)
	for i, v := range m {
		a[i] = float64(v)
	}
	return a
}

func arrayMatrix(a []float32) *geom.Matrix4 {
	if len(a) != 16 {
		return geom.NewMatrix4()
	}
	return geom.NewMatrix4FromSlice(a)
}

func (d *Deformer) GetWeights() []float32 {
	return d.FindChild("Weights").GetFloat32Array()
}

func (d *Deformer) GetIndexes() []int32 {
	return d.FindChild("Indexes").GetInt32Array()
}

func (d *Deformer) GetTransform() *geom.Matrix4 {
	return arrayMatrix(d.FindChild("Transform").GetFloat32Array())
}

func (d *Deformer) GetTransformLink() *geom.Matrix4 {
	return arrayMatrix(d.FindChild("TransformLink").GetFloat32Array())
}

func (d *Deformer) GetTarget() *Model {
	for _, o := range d.FindRefs("Model") {
		if m, ok := o.(*Model); ok {
			return m
		}
	}
	return nil
}

// Pose is a bind pose listing world matrices of skinned models and bones.
type Pose struct {
	Obj
}

func NewBindPose(name string) *Pose {
	p := &Pose{Obj: *newObj("Pose", name, "Pose", "BindPose", []*Node{
		NewNode("Type", "BindPose"),
		NewNode("Version", 100),
		NewNode("NbPoseNodes", 0),
	})}
	return p
}

func (p *Pose) AddPoseNode(model Object, world *geom.Matrix4) {
	p.AddChild(&Node{Name: "PoseNode", Children: []*Node{
		NewNode("Node", model.ID()),
		NewNode("Matrix", matrixArray(world)),
	}})
	p.FindChild("NbPoseNodes").Attributes[0] = &Attribute{Value: int32(len(p.FindChildren("PoseNode")))}
}

func (p *Pose) GetPoseMatrix(id int64) *geom.Matrix4 {
	for _, n := range p.FindChildren("PoseNode") {
		if n.FindChild("Node").GetInt64() == id {
			return arrayMatrix(n.FindChild("Matrix").GetFloat32Array())
		}
	}
	return nil
}
