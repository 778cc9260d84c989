package host

// RecordingTrail keeps the undo records of value changes so that a batch
// of changes can be rolled back.
type RecordingTrail struct {
	undo []func()
}

// Push records an undo function.
func (t *RecordingTrail) Push(undo func()) { t.undo = append(t.undo, undo) }

// Mark returns the current trail position.
func (t *RecordingTrail) Mark() int { return len(t.undo) }

// Rollback undoes every change recorded after mark, newest first.
func (t *RecordingTrail) Rollback(mark int) {
	for i := len(t.undo) - 1; i >= mark; i-- {
		t.undo[i]()
		t.undo[i] = nil
	}
	t.undo = t.undo[:mark]
}

// Commit forgets every record; the changes can no longer be undone.
func (t *RecordingTrail) Commit() {
	clear(t.undo)
	t.undo = t.undo[:0]
}

// Len returns the number of recorded changes.
func (t *RecordingTrail) Len() int { return len(t.undo) }
