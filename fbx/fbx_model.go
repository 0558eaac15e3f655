package fbx

import (
	"math"

	"github.com/binzume/unityfbx/geom"
)

type Model struct {
	Obj
	Parent       *Model
	cachedMatrix *geom.Matrix4
}

// NewModel creates a model. kind is one of Null, Mesh, LimbNode.
func NewModel(name, kind string) *Model {
	model := &Model{
		Obj: *newObj("Model", name, "Model", kind, []*Node{
			NewNode("Version", 232),
		}),
	}
	model.AddChild(NewNode("Shading", true))
	model.AddChild(NewNode("Culling", "CullingOff"))
	return model
}

func (m *Model) setVector3(name string, v *geom.Vector3) {
	m.SetProperty(name, &Property{Type: name, Flag: "A", AttributeList: AttributeList{{Value: float64(v.X)}, {Value: float64(v.Y)}, {Value: float64(v.Z)}}})
	m.cachedMatrix = nil
}

func (m *Model) GetTranslation() *geom.Vector3 {
	return m.GetProperty("Lcl Translation").ToVector3(0, 0, 0)
}

func (m *Model) SetTranslation(v *geom.Vector3) {
	m.setVector3("Lcl Translation", v)
}

// GetRotation returns the euler angles in degrees. Rotation order is XYZ
// (the matrix is Rz * Ry * Rx).
func (m *Model) GetRotation() *geom.Vector3 {
	return m.GetProperty("Lcl Rotation").ToVector3(0, 0, 0)
}

func (m *Model) SetRotation(v *geom.Vector3) {
	m.setVector3("Lcl Rotation", v)
}

func (m *Model) GetScaling() *geom.Vector3 {
	return m.GetProperty("Lcl Scaling").ToVector3(1, 1, 1)
}

func (m *Model) SetScaling(v *geom.Vector3) {
	m.setVector3("Lcl Scaling", v)
}

// SetMatrix decomposes mat into Lcl Translation, Rotation and Scaling.
func (m *Model) SetMatrix(mat *geom.Matrix4) {
	pos, rot, scale := mat.Decompose()
	euler := geom.NewEulerFromQuaternion(rot, geom.RotationOrderZYX)
	m.SetTranslation(pos)
	m.SetRotation(euler.Vector3.Scale(180 / math.Pi))
	m.SetScaling(scale)
}

func (m *Model) UpdateMatrix() {
	prerotEuler := m.GetProperty("PreRotation").ToVector3(0, 0, 0).Scale(math.Pi / 180)
	prerot := geom.NewEulerRotationMatrix4(prerotEuler.X, prerotEuler.Y, prerotEuler.Z, 1)
	translation := m.GetTranslation()
	rotationEuler := m.GetRotation().Scale(math.Pi / 180)
	scale := m.GetScaling()
	tr := geom.NewTranslateMatrix4(translation.X, translation.Y, translation.Z)
	rot := geom.NewEulerRotationMatrix4(rotationEuler.X, rotationEuler.Y, rotationEuler.Z, 1)
	sc := geom.NewScaleMatrix4(scale.X, scale.Y, scale.Z)
	m.cachedMatrix = tr.Mul(prerot).Mul(rot).Mul(sc)
}

func (m *Model) GetMatrix() *geom.Matrix4 {
	if m.cachedMatrix == nil {
		m.UpdateMatrix()
	}
	return m.cachedMatrix
}

func (m *Model) GetWorldMatrix() *geom.Matrix4 {
	if m.Parent == nil {
		return m.GetMatrix()
	}
	return m.Parent.GetWorldMatrix().Mul(m.GetMatrix())
}

func (m *Model) GetChildModels() []*Model {
	var r []*Model
	for _, o := range m.FindRefs("Model") {
		if c, ok := o.(*Model); ok {
			r = append(r, c)
		}
	}
	return r
}

func (m *Model) GetGeometry() *Geometry {
	for _, o := range m.FindRefs("Geometry") {
		if g, ok := o.(*Geometry); ok {
			return g
		}
	}
	return nil
}

func (m *Model) GetNodeAttribute() *NodeAttribute {
	for _, o := range m.FindRefs("NodeAttribute") {
		if a, ok := o.(*NodeAttribute); ok {
			return a
		}
	}
	return nil
}
