package unityfbx

import (
	"github.com/binzume/unityfbx/scene"
)

// normalizeVisibility makes every collection and object of the view layer
// visible and editable, remembering what has to be hidden again.
func normalizeVisibility(tx *TransactionContext) {
	s := tx.Scene
	visited := map[scene.CollectionID]bool{}
	var unhide func(id scene.CollectionID)
	unhide = func(id scene.CollectionID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, child := range s.Collection(id).Children {
			l := s.LayerCollection(child)
			if l.Exclude {
				// not part of the view layer
				continue
			}
			c := s.Collection(child)
			if l.HideViewport {
				tx.recordCollection(child)
				l.HideViewport = false
				tx.hiddenCollections = append(tx.hiddenCollections, child)
			}
			if c.HideViewport {
				tx.recordCollection(child)
				c.HideViewport = false
				tx.disabledCollections = append(tx.disabledCollections, child)
			}
			unhide(child)
		}
	}
	unhide(s.Root().ID)

	for _, id := range s.ViewLayerObjects() {
		o := s.Object(id)
		if o.Hidden {
			tx.recordObject(id)
			o.Hidden = false
			tx.hiddenObjects = append(tx.hiddenObjects, id)
		}
		if o.HideViewport {
			tx.recordObject(id)
			o.HideViewport = false
			tx.disabledObjects = append(tx.disabledObjects, id)
		}
	}
}

func restoreVisibility(tx *TransactionContext) {
	s := tx.Scene
	for _, id := range tx.hiddenObjects {
		if o := s.Object(id); o != nil {
			o.Hidden = true
		}
	}
	for _, id := range tx.disabledObjects {
		if o := s.Object(id); o != nil {
			o.HideViewport = true
		}
	}
	for _, id := range tx.hiddenCollections {
		if s.Collection(id) != nil {
			s.LayerCollection(id).HideViewport = true
		}
	}
	for _, id := range tx.disabledCollections {
		if c := s.Collection(id); c != nil {
			c.HideViewport = true
		}
	}
	tx.hiddenObjects, tx.disabledObjects = nil, nil
	tx.hiddenCollections, tx.disabledCollections = nil, nil
}
