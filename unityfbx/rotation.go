package unityfbx

import (
	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
)

var (
	rotXNeg90 = geom.NewRotationXMatrix4(-90)
	rotXPos90 = geom.NewRotationXMatrix4(90)
)

// resetParentInverse folds the parent inverse into the basis. The world
// matrix is kept.
func resetParentInverse(tx *TransactionContext, id scene.ObjectID) {
	s := tx.Scene
	o := s.Object(id)
	if o.Parent() == scene.Nil {
		return
	}
	world := s.MatrixWorld(id)
	s.SetMatrixParentInverse(id, geom.NewMatrix4())
	s.SetMatrixBasis(id, s.MatrixWorld(o.Parent()).Inverse().Mul(world))
}

// applyRotation bakes the object's rotation into its data.
func applyRotation(tx *TransactionContext, id scene.ObjectID) error {
	s := tx.Scene
	o := s.Object(id)
	tx.recordData(o.Data)
	for _, c := range s.Children(id) {
		tx.recordObject(c)
	}
	s.DeselectAll()
	o.Selected = true
	if err := s.ApplyTransform(id, scene.ApplyRotation); err != nil {
		return err
	}
	tx.baked[o.Data] = true
	return nil
}

// fixObject moves a -90 degree X rotation from the object's transform into
// its data and compensates it on the transform. World transforms are kept.
// Children are visited even if the object itself is not in the view layer.
func fixObject(tx *TransactionContext, id scene.ObjectID) error {
	s := tx.Scene
	if tx.fixed[id] {
		return nil
	}
	tx.fixed[id] = true

	if s.InViewLayer(id) {
		tx.recordObject(id)
		resetParentInverse(tx, id)

		original := s.MatrixLocal(id)
		s.SetMatrixLocal(id, rotXNeg90)
		if err := applyRotation(tx, id); err != nil {
			return err
		}
		s.SetMatrixLocal(id, original.Mul(rotXPos90))
	}

	for _, c := range s.Children(id) {
		if err := fixObject(tx, c); err != nil {
			return err
		}
	}
	return nil
}
