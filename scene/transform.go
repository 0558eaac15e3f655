package scene

import (
	"fmt"

	"github.com/binzume/unityfbx/geom"
)

// MatrixBasis returns a copy of the object's own transform (without parent inverse).
func (s *Scene) MatrixBasis(id ObjectID) *geom.Matrix4 {
	return s.objects[id].basis.Clone()
}

func (s *Scene) SetMatrixBasis(id ObjectID, m *geom.Matrix4) {
	s.objects[id].basis = m.Clone()
	s.invalidate(id)
}

func (s *Scene) MatrixParentInverse(id ObjectID) *geom.Matrix4 {
	return s.objects[id].parentInverse.Clone()
}

func (s *Scene) SetMatrixParentInverse(id ObjectID, m *geom.Matrix4) {
	s.objects[id].parentInverse = m.Clone()
	s.invalidate(id)
}

// MatrixLocal is the transform relative to the parent: ParentInverse * Basis.
func (s *Scene) MatrixLocal(id ObjectID) *geom.Matrix4 {
	o := s.objects[id]
	return o.parentInverse.Mul(o.basis)
}

func (s *Scene) SetMatrixLocal(id ObjectID, m *geom.Matrix4) {
	o := s.objects[id]
	if o.parentInverse.IsIdentity() {
		s.SetMatrixBasis(id, m)
		return
	}
	s.SetMatrixBasis(id, o.parentInverse.Inverse().Mul(m))
}

// MatrixWorld returns the evaluated world transform. It is computed lazily and
// cached until the object or one of its ancestors changes.
func (s *Scene) MatrixWorld(id ObjectID) *geom.Matrix4 {
	return s.world(id).Clone()
}

func (s *Scene) world(id ObjectID) *geom.Matrix4 {
	o := s.objects[id]
	if o.world == nil {
		local := s.MatrixLocal(id)
		if o.parent != Nil {
			o.world = s.world(o.parent).Mul(local)
		} else {
			o.world = local
		}
	}
	return o.world
}

func (s *Scene) SetMatrixWorld(id ObjectID, m *geom.Matrix4) {
	o := s.objects[id]
	if o.parent == Nil {
		s.SetMatrixLocal(id, m)
		return
	}
	s.SetMatrixLocal(id, s.world(o.parent).Inverse().Mul(m))
}

func (s *Scene) invalidate(id ObjectID) {
	o := s.objects[id]
	if o == nil {
		return
	}
	o.world = nil
	for _, c := range s.Children(id) {
		s.invalidate(c)
	}
}

// Update evaluates every world matrix.
func (s *Scene) Update() {
	for _, o := range s.objects {
		if o != nil {
			s.world(o.ID)
		}
	}
}

type ApplyFlags struct {
	Location bool
	Rotation bool
	Scale    bool
}

var ApplyRotation = ApplyFlags{Rotation: true}

// ApplyTransform bakes the selected parts of the object's basis into its
// datablock and resets them on the object. Children keep their world transform.
func (s *Scene) ApplyTransform(id ObjectID, flags ApplyFlags) error {
	o := s.Object(id)
	if o == nil {
		return fmt.Errorf("object %d: %w", id, ErrNotFound)
	}
	if !s.Visible(id) {
		return fmt.Errorf("apply transform %v: %w", o.Name, ErrNotVisible)
	}
	if o.Data != Nil && s.ObjectUsers(o.Data) > 1 {
		return fmt.Errorf("apply transform %v: %w", o.Name, ErrMultiUser)
	}

	pos, rot, scale := o.basis.Decompose()
	one := &geom.Vector3{X: 1, Y: 1, Z: 1}
	identity := &geom.Quaternion{W: 1}

	bake := geom.NewMatrix4()
	keepPos, keepRot, keepScale := pos, rot, scale
	if flags.Location {
		bake = bake.Mul(geom.NewTranslateMatrix4(pos.X, pos.Y, pos.Z))
		keepPos = &geom.Vector3{}
	}
	if flags.Rotation {
		bake = bake.Mul(geom.NewRotationMatrix4FromQuaternion(rot))
		keepRot = identity
	}
	if flags.Scale {
		bake = bake.Mul(geom.NewScaleMatrix4(scale.X, scale.Y, scale.Z))
		keepScale = one
	}

	if d := s.Data(o.Data); d != nil {
		d.Transform(bake)
	}

	children := s.Children(id)
	oldWorld := s.MatrixWorld(id)
	s.SetMatrixBasis(id, geom.NewTRSMatrix4(keepPos, keepRot, keepScale))
	newWorldInv := s.world(id).Inverse()
	for _, c := range children {
		co := s.objects[c]
		s.SetMatrixParentInverse(c, newWorldInv.Mul(oldWorld).Mul(co.parentInverse))
	}
	return nil
}
