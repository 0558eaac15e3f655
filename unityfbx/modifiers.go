package unityfbx

import (
	"github.com/binzume/unityfbx/scene"
)

// applyModifiers converts every view layer object without an ARMATURE
// modifier to a mesh, baking its modifiers. Skinned objects keep their
// modifiers so the exporter can write the deformation.
func applyModifiers(tx *TransactionContext) error {
	s := tx.Scene
	tx.recordSelection()
	s.DeselectAll()

	var selected []scene.ObjectID
	var names []string
	for _, id := range s.ViewLayerObjects() {
		o := s.Object(id)
		if o.HasModifier(scene.ModifierArmature) {
			continue
		}
		o.Selected = true
		selected = append(selected, id)
		names = append(names, o.Name)
	}
	if len(selected) == 0 {
		tx.logf("No objects to convert.")
		return nil
	}

	before := map[scene.ObjectID]scene.DataID{}
	for _, id := range selected {
		o := s.Object(id)
		tx.recordObject(id)
		tx.recordData(o.Data)
		before[id] = o.Data
	}
	tx.logf("Converting to meshes: %v", names)
	err := s.ConvertToMesh(selected)
	for _, id := range selected {
		if d := s.Object(id).Data; d != before[id] {
			tx.recordNewData(d)
		}
	}
	return err
}
