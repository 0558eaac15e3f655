package unityfbx

import (
	"fmt"
	"log"
	"os"

	"github.com/binzume/unityfbx/geom"
	"github.com/binzume/unityfbx/scene"
	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Prepared
	RotationFixed
	ProxiesBuilt
	Exported
	Failed
	Reverted
)

var stateNames = [...]string{"Idle", "Prepared", "RotationFixed", "ProxiesBuilt", "Exported", "Failed", "Reverted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// TransactionContext holds the bookkeeping of a single export call.
type TransactionContext struct {
	ID       uuid.UUID
	Scene    *scene.Scene
	Settings *Settings
	State    State
	States   []State

	hiddenCollections   []scene.CollectionID
	disabledCollections []scene.CollectionID
	hiddenObjects       []scene.ObjectID
	disabledObjects     []scene.ObjectID

	// object name -> original shared datablock
	sharedData map[string]scene.DataID
	selection  []scene.ObjectID
	proxies    []scene.ObjectID
	fixed      map[scene.ObjectID]bool
	// datablocks rotated by the rotation pass
	baked      map[scene.DataID]bool

	journal        []action
	recordedObject map[scene.ObjectID]bool
	recordedData   map[scene.DataID]bool
	recordedColl   map[scene.CollectionID]bool

	logger *log.Logger
}

type action struct {
	label  string
	revert func(s *scene.Scene)
}

func NewTransactionContext(s *scene.Scene, settings *Settings) *TransactionContext {
	if settings == nil {
		settings = DefaultSettings()
	}
	id := uuid.New()
	return &TransactionContext{
		ID:             id,
		Scene:          s,
		Settings:       settings,
		State:          Idle,
		States:         []State{Idle},
		sharedData:     map[string]scene.DataID{},
		fixed:          map[scene.ObjectID]bool{},
		baked:          map[scene.DataID]bool{},
		recordedObject: map[scene.ObjectID]bool{},
		recordedData:   map[scene.DataID]bool{},
		recordedColl:   map[scene.CollectionID]bool{},
		logger:         log.New(os.Stderr, "["+id.String()[:8]+"] ", log.LstdFlags),
	}
}

func (tx *TransactionContext) setState(st State) {
	tx.State = st
	tx.States = append(tx.States, st)
}

func (tx *TransactionContext) logf(format string, v ...interface{}) {
	tx.logger.Printf(format, v...)
}

// SharedData returns a copy of the shared datablock restore map.
func (tx *TransactionContext) SharedData() map[string]scene.DataID {
	m := map[string]scene.DataID{}
	for k, v := range tx.sharedData {
		m[k] = v
	}
	return m
}

func (tx *TransactionContext) Proxies() []scene.ObjectID {
	return append([]scene.ObjectID(nil), tx.proxies...)
}

func (tx *TransactionContext) record(label string, revert func(s *scene.Scene)) {
	tx.journal = append(tx.journal, action{label: label, revert: revert})
}

// Rollback reverts every recorded change, newest first, and clears the journal.
func (tx *TransactionContext) Rollback() {
	for i := len(tx.journal) - 1; i >= 0; i-- {
		tx.journal[i].revert(tx.Scene)
	}
	tx.journal = nil
	tx.recordedObject = map[scene.ObjectID]bool{}
	tx.recordedData = map[scene.DataID]bool{}
	tx.recordedColl = map[scene.CollectionID]bool{}
}

type objectState struct {
	typ           scene.ObjectType
	data          scene.DataID
	hidden        bool
	hideViewport  bool
	modifiers     []*scene.Modifier
	parent        scene.ObjectID
	basis         *geom.Matrix4
	parentInverse *geom.Matrix4
}

// recordObject saves the object's state before its first change in this transaction.
func (tx *TransactionContext) recordObject(id scene.ObjectID) {
	o := tx.Scene.Object(id)
	if o == nil || tx.recordedObject[id] {
		return
	}
	tx.recordedObject[id] = true
	st := &objectState{
		typ:           o.Type,
		data:          o.Data,
		hidden:        o.Hidden,
		hideViewport:  o.HideViewport,
		parent:        o.Parent(),
		basis:         tx.Scene.MatrixBasis(id),
		parentInverse: tx.Scene.MatrixParentInverse(id),
	}
	for _, m := range o.Modifiers {
		st.modifiers = append(st.modifiers, m.Clone())
	}
	tx.record("object "+o.Name, func(s *scene.Scene) {
		o := s.Object(id)
		if o == nil {
			return
		}
		o.Type = st.typ
		o.Data = st.data
		o.Hidden = st.hidden
		o.HideViewport = st.hideViewport
		o.Modifiers = nil
		for _, m := range st.modifiers {
			o.Modifiers = append(o.Modifiers, m.Clone())
		}
		parent := st.parent
		if s.Object(parent) == nil {
			parent = scene.Nil
		}
		if err := s.SetParent(id, parent); err != nil {
			log.Println("rollback:", err)
		}
		s.SetMatrixParentInverse(id, st.parentInverse)
		s.SetMatrixBasis(id, st.basis)
	})
}

// recordData saves the datablock content before its first change.
func (tx *TransactionContext) recordData(id scene.DataID) {
	d := tx.Scene.Data(id)
	if d == nil || tx.recordedData[id] {
		return
	}
	tx.recordedData[id] = true
	saved := d.Clone()
	tx.record("data "+d.Name, func(s *scene.Scene) {
		if d := s.Data(id); d != nil {
			*d = *saved.Clone()
		}
	})
}

// recordNewData removes a datablock created during the transaction.
func (tx *TransactionContext) recordNewData(id scene.DataID) {
	tx.recordedData[id] = true
	tx.record(fmt.Sprintf("new data %d", id), func(s *scene.Scene) {
		s.RemoveData(id)
	})
}

// recordNewObject removes an object created during the transaction.
func (tx *TransactionContext) recordNewObject(id scene.ObjectID) {
	tx.recordedObject[id] = true
	tx.record(fmt.Sprintf("new object %d", id), func(s *scene.Scene) {
		if s.Object(id) != nil {
			s.RemoveObject(id)
		}
	})
}

func (tx *TransactionContext) recordCollection(id scene.CollectionID) {
	c := tx.Scene.Collection(id)
	if c == nil || tx.recordedColl[id] {
		return
	}
	tx.recordedColl[id] = true
	disabled := c.HideViewport
	hidden := tx.Scene.LayerCollection(id).HideViewport
	tx.record("collection "+c.Name, func(s *scene.Scene) {
		if c := s.Collection(id); c != nil {
			c.HideViewport = disabled
			s.LayerCollection(id).HideViewport = hidden
		}
	})
}

func (tx *TransactionContext) recordSelection() {
	selected := tx.Scene.SelectedObjects()
	tx.record("selection", func(s *scene.Scene) {
		s.DeselectAll()
		for _, id := range selected {
			if o := s.Object(id); o != nil {
				o.Selected = true
			}
		}
	})
}

func (tx *TransactionContext) recordMode() {
	mode := tx.Scene.Mode
	tx.record("mode", func(s *scene.Scene) {
		s.Mode = mode
	})
}
