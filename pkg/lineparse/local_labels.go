package lineparse

import "fmt"

// LocalLabelTracker rewrites purely numeric labels (GCC-style "1:") into
// names unique within a file, per spec.md §4.2. Each successive
// definition of the same digit sequence gets its own suffix. Resolve
// maps a digit sequence to its most recently defined instance, but the
// parser does not call it: an operand spelled as digits parses as an
// integer literal.
type LocalLabelTracker struct {
	seen map[string]int
}

// NewLocalLabelTracker returns an empty tracker.
func NewLocalLabelTracker() *LocalLabelTracker {
	return &LocalLabelTracker{seen: make(map[string]int)}
}

// Define registers a new definition of a numeric label and returns its
// unique rewritten name.
func (t *LocalLabelTracker) Define(numeric string) string {
	t.seen[numeric]++
	return fmt.Sprintf(".L%s$%d", numeric, t.seen[numeric])
}

// Resolve returns the rewritten name of the most recent definition of a
// numeric label, for use in an operand reference.
func (t *LocalLabelTracker) Resolve(numeric string) string {
	n := t.seen[numeric]
	if n == 0 {
		n = 1
	}
	return fmt.Sprintf(".L%s$%d", numeric, n)
}
