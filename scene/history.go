package scene

// UndoPush stores a checkpoint of the current state. Steps after the current
// position are discarded.
func (s *Scene) UndoPush(label string) {
	if len(s.history) > 0 {
		s.history = s.history[:s.historyPos+1]
		s.labels = s.labels[:s.historyPos+1]
	}
	s.history = append(s.history, s.Clone())
	s.labels = append(s.labels, label)
	s.historyPos = len(s.history) - 1
}

// Undo restores the checkpoint before the current one.
func (s *Scene) Undo() error {
	if s.historyPos <= 0 || len(s.history) == 0 {
		return ErrNoUndo
	}
	s.historyPos--
	s.restore(s.history[s.historyPos])
	return nil
}

// UndoHistory returns the checkpoint labels, oldest first.
func (s *Scene) UndoHistory() []string {
	return append([]string(nil), s.labels[:len(s.history)]...)
}

func (s *Scene) restore(snapshot *Scene) {
	c := snapshot.Clone()
	s.Name = c.Name
	s.UnitScale = c.UnitScale
	s.Mode = c.Mode
	s.objects = c.objects
	s.datas = c.datas
	s.collections = c.collections
	s.layers = c.layers
	s.root = c.root
	s.active = c.active
}
