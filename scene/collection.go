package scene

import (
	"fmt"
)

type Collection struct {
	ID   CollectionID
	Name string
	// HideViewport disables the collection in every view layer.
	HideViewport bool

	Objects  []ObjectID
	Children []CollectionID
}

func (c *Collection) clone() *Collection {
	r := *c
	r.Objects = append([]ObjectID(nil), c.Objects...)
	r.Children = append([]CollectionID(nil), c.Children...)
	return &r
}

func (c *Collection) unlink(id ObjectID) bool {
	for i, o := range c.Objects {
		if o == id {
			c.Objects = append(c.Objects[:i:i], c.Objects[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Collection) Has(id ObjectID) bool {
	for _, o := range c.Objects {
		if o == id {
			return true
		}
	}
	return false
}

// LayerCollection holds the per view layer state of a collection.
type LayerCollection struct {
	Exclude      bool
	HideViewport bool
}

// Root returns the scene's master collection.
func (s *Scene) Root() *Collection {
	return s.collections[s.root]
}

func (s *Scene) Collection(id CollectionID) *Collection {
	if id <= 0 || int(id) >= len(s.collections) {
		return nil
	}
	return s.collections[id]
}

func (s *Scene) CollectionByName(name string) *Collection {
	for _, c := range s.collections {
		if c != nil && c.Name == name {
			return c
		}
	}
	return nil
}

// NewCollection creates a collection as a child of parent.
func (s *Scene) NewCollection(name string, parent CollectionID) (*Collection, error) {
	p := s.Collection(parent)
	if p == nil {
		return nil, fmt.Errorf("collection %d: %w", parent, ErrNotFound)
	}
	c := &Collection{ID: CollectionID(len(s.collections)), Name: name}
	s.collections = append(s.collections, c)
	p.Children = append(p.Children, c.ID)
	return c, nil
}

// LinkCollection adds child to parent. A collection can have several parents.
func (s *Scene) LinkCollection(parent, child CollectionID) error {
	p, c := s.Collection(parent), s.Collection(child)
	if p == nil || c == nil {
		return fmt.Errorf("link collection %d -> %d: %w", parent, child, ErrNotFound)
	}
	if child == parent || child == s.root {
		return fmt.Errorf("link collection %v -> %v: %w", p.Name, c.Name, ErrCycle)
	}
	for _, id := range s.ChildrenRecursive(child) {
		if id == parent {
			return fmt.Errorf("link collection %v -> %v: %w", p.Name, c.Name, ErrCycle)
		}
	}
	for _, id := range p.Children {
		if id == child {
			return nil
		}
	}
	p.Children = append(p.Children, child)
	return nil
}

func (s *Scene) LinkObject(coll CollectionID, id ObjectID) error {
	c := s.Collection(coll)
	if c == nil || s.Object(id) == nil {
		return fmt.Errorf("link object %d to %d: %w", id, coll, ErrNotFound)
	}
	if !c.Has(id) {
		c.Objects = append(c.Objects, id)
	}
	return nil
}

func (s *Scene) UnlinkObject(coll CollectionID, id ObjectID) error {
	c := s.Collection(coll)
	if c == nil || !c.unlink(id) {
		return fmt.Errorf("unlink object %d from %d: %w", id, coll, ErrNotFound)
	}
	return nil
}

// ChildrenRecursive returns every collection nested under id, parents first.
// A collection reachable through several parents appears once.
func (s *Scene) ChildrenRecursive(id CollectionID) []CollectionID {
	var r []CollectionID
	visited := map[CollectionID]bool{id: true}
	var walk func(c *Collection)
	walk = func(c *Collection) {
		for _, child := range c.Children {
			if visited[child] {
				continue
			}
			visited[child] = true
			r = append(r, child)
		}
		for _, child := range c.Children {
			walk(s.collections[child])
		}
	}
	walk(s.collections[id])
	return r
}

// ParentCollections returns the collections having id as a direct child.
func (s *Scene) ParentCollections(id CollectionID) []CollectionID {
	var r []CollectionID
	for _, c := range s.collections {
		if c == nil {
			continue
		}
		for _, child := range c.Children {
			if child == id {
				r = append(r, c.ID)
			}
		}
	}
	return r
}

// UsersCollection returns the collections the object is linked to.
func (s *Scene) UsersCollection(id ObjectID) []CollectionID {
	var r []CollectionID
	for _, c := range s.collections {
		if c != nil && c.Has(id) {
			r = append(r, c.ID)
		}
	}
	return r
}

// LayerCollection returns the view layer state of a collection, creating it on demand.
func (s *Scene) LayerCollection(id CollectionID) *LayerCollection {
	l, ok := s.layers[id]
	if !ok {
		l = &LayerCollection{}
		s.layers[id] = l
	}
	return l
}

func (s *Scene) ActiveCollection() CollectionID {
	return s.active
}

func (s *Scene) SetActiveCollection(id CollectionID) error {
	if s.Collection(id) == nil {
		return fmt.Errorf("collection %d: %w", id, ErrNotFound)
	}
	s.active = id
	return nil
}

// walkLayer visits collections reachable through non-excluded layer collections.
// visible is false below a hidden or disabled collection.
func (s *Scene) walkLayer(fn func(c *Collection, visible bool)) {
	var walk func(id CollectionID, visible bool, path map[CollectionID]bool)
	walk = func(id CollectionID, visible bool, path map[CollectionID]bool) {
		c := s.collections[id]
		if id != s.root {
			l := s.LayerCollection(id)
			if l.Exclude {
				return
			}
			visible = visible && !l.HideViewport && !c.HideViewport
		}
		fn(c, visible)
		path[id] = true
		for _, child := range c.Children {
			if !path[child] {
				walk(child, visible, path)
			}
		}
		delete(path, id)
	}
	walk(s.root, true, map[CollectionID]bool{})
}

// ViewLayerCollections returns the non-excluded collections below the master
// collection, parents first.
func (s *Scene) ViewLayerCollections() []CollectionID {
	var ids []CollectionID
	seen := map[CollectionID]bool{}
	s.walkLayer(func(c *Collection, visible bool) {
		if c.ID != s.root && !seen[c.ID] {
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	})
	return ids
}

// InViewLayer reports whether the object is linked to a non-excluded collection.
func (s *Scene) InViewLayer(id ObjectID) bool {
	in := false
	s.walkLayer(func(c *Collection, visible bool) {
		if !in && c.Has(id) {
			in = true
		}
	})
	return in
}

// ViewLayerObjects returns the objects in the view layer in id order.
func (s *Scene) ViewLayerObjects() []ObjectID {
	set := map[ObjectID]bool{}
	s.walkLayer(func(c *Collection, visible bool) {
		for _, id := range c.Objects {
			set[id] = true
		}
	})
	var ids []ObjectID
	for id := range set {
		ids = append(ids, id)
	}
	sortObjectIDs(ids)
	return ids
}

// Visible reports whether the object can be edited by operators.
func (s *Scene) Visible(id ObjectID) bool {
	o := s.Object(id)
	if o == nil || o.Hidden || o.HideViewport {
		return false
	}
	vis := false
	s.walkLayer(func(c *Collection, visible bool) {
		if visible && c.Has(id) {
			vis = true
		}
	})
	return vis
}
