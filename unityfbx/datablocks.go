package unityfbx

import (
	"github.com/binzume/unityfbx/scene"
)

// makeSingleUserData gives every user of a shared datablock a private copy.
// Users are counted live, so the last user of a datablock keeps the original,
// which is processed by the rotation pass like any single user datablock.
// Shared meshes without viewport modifiers are recorded to be shared again
// after the rotation pass.
func makeSingleUserData(tx *TransactionContext) error {
	s := tx.Scene
	for _, o := range s.Objects() {
		if o.Data == scene.Nil || s.Users(o.Data) <= 1 {
			continue
		}
		var users []*scene.Object
		for _, u := range s.Objects() {
			if u.Data == o.Data {
				users = append(users, u)
			}
		}
		if len(users) <= 1 {
			continue
		}
		if o.Type == scene.TypeMesh {
			modifiers := 0
			for _, u := range users {
				for _, m := range u.Modifiers {
					if m.ShowViewport {
						modifiers++
					}
				}
			}
			if modifiers == 0 {
				tx.sharedData[o.Name] = o.Data
			}
		}
		c, err := s.CopyData(o.Data)
		if err != nil {
			return err
		}
		tx.recordNewData(c.ID)
		tx.recordObject(o.ID)
		o.Data = c.ID
	}
	return nil
}

// restoreSharedData points the recorded objects back to the original
// datablock. Copies left without users are removed. An object keeps its copy
// when only one of the copy and the original went through the rotation pass.
func restoreSharedData(tx *TransactionContext) {
	s := tx.Scene
	for name, data := range tx.sharedData {
		o := s.ObjectByName(name)
		if o == nil || s.Data(data) == nil {
			tx.logf("shared data of %v not restored", name)
			continue
		}
		copied := o.Data
		if tx.baked[copied] != tx.baked[data] {
			tx.logf("shared data of %v not restored: %v", name, s.Data(data).Name)
			continue
		}
		tx.recordObject(o.ID)
		o.Data = data
		if s.Users(copied) == 0 {
			s.RemoveData(copied)
		}
	}
	tx.sharedData = map[string]scene.DataID{}
}
