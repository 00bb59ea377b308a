package mmcm

// stack is a single-slot save area for the compiled state. A second save
// before a restore overwrites the first.
//
// The slot holds the whole state, not only the target output and register
// image, because recompiling the precise output also rewrites the feedback
// path and every sibling output.
type stack struct {
	saved state
	valid bool
}

func (t *stack) save(s *state) {
	t.saved = *s
	t.valid = true
}

// restore copies the saved state back and empties the slot. It reports
// false, leaving s untouched, when nothing was saved.
func (t *stack) restore(s *state) bool {
	if !t.valid {
		return false
	}
	*s = t.saved
	t.valid = false
	return true
}

// discard empties the slot after a successful compilation.
func (t *stack) discard() {
	t.valid = false
}
