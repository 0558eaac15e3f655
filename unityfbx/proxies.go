package unityfbx

import (
	"github.com/binzume/unityfbx/scene"
	"golang.org/x/text/unicode/norm"
)

func proxyName(c *scene.Collection) string {
	return norm.NFC.String("Collection: " + c.Name)
}

// buildProxies creates an empty for each relevant collection and mirrors the
// collection tree with them. With useSelection, only collections holding a
// selected object (directly or below) are relevant and only selected objects
// are moved under the proxies. Objects which already have a parent keep it.
func buildProxies(tx *TransactionContext, useSelection bool) ([]scene.ObjectID, error) {
	s := tx.Scene
	collections := s.ViewLayerCollections()

	relevant := map[scene.CollectionID]bool{}
	for _, id := range collections {
		if !useSelection {
			relevant[id] = true
			continue
		}
		for _, c := range append([]scene.CollectionID{id}, s.ChildrenRecursive(id)...) {
			if hasSelected(s, s.Collection(c)) {
				relevant[id] = true
				break
			}
		}
	}

	proxyOf := map[scene.CollectionID]scene.ObjectID{}
	claimed := map[scene.ObjectID]bool{}
	var proxies []scene.ObjectID
	for _, id := range collections {
		if !relevant[id] {
			continue
		}
		c := s.Collection(id)
		empty := s.NewObject(proxyName(c), scene.TypeEmpty, scene.Nil)
		tx.recordNewObject(empty.ID)
		if err := s.LinkObject(s.Root().ID, empty.ID); err != nil {
			return proxies, err
		}
		empty.Selected = useSelection
		proxies = append(proxies, empty.ID)
		proxyOf[id] = empty.ID

		for _, parent := range s.ParentCollections(id) {
			if p, ok := proxyOf[parent]; ok {
				if err := s.SetParent(empty.ID, p); err != nil {
					return proxies, err
				}
				break
			}
		}

		for _, oid := range c.Objects {
			o := s.Object(oid)
			if o == nil || claimed[oid] || o.Parent() != scene.Nil {
				continue
			}
			if useSelection && !o.Selected {
				continue
			}
			claimed[oid] = true
			tx.recordObject(oid)
			if err := s.SetParent(oid, empty.ID); err != nil {
				return proxies, err
			}
		}
	}
	return proxies, nil
}

func hasSelected(s *scene.Scene, c *scene.Collection) bool {
	for _, id := range c.Objects {
		if o := s.Object(id); o != nil && o.Selected {
			return true
		}
	}
	return false
}

// removeProxies deletes the proxies created by buildProxies. Proxies which are
// already gone are skipped.
func removeProxies(tx *TransactionContext, proxies []scene.ObjectID) {
	s := tx.Scene
	for _, id := range proxies {
		o := s.Object(id)
		if o == nil || o.Type != scene.TypeEmpty {
			continue
		}
		for _, c := range s.Children(id) {
			if err := s.SetParent(c, scene.Nil); err != nil {
				tx.logf("unparent %v: %v", s.Object(c).Name, err)
			}
		}
		if err := s.UnlinkObject(s.Root().ID, id); err != nil {
			tx.logf("unlink %v: %v", o.Name, err)
		}
		if err := s.RemoveObject(id); err != nil {
			tx.logf("remove %v: %v", o.Name, err)
		}
	}
}
