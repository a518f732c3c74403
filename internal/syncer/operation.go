package syncer

// operation is one in-flight parse attempt. At most one is outstanding. The
// id is a monotonically increasing generation counter: continuations compare
// ids against the engine's latest to decide whether a just-finished attempt
// is still relevant, instead of relying on referential identity. Waiters
// re-check engine state after done closes rather than reading a result off
// the operation.
type operation struct {
	id   uint64
	done chan struct{}
}

// newOperation allocates the next attempt. Caller must hold e.mu.
func (e *Engine) newOperation() *operation {
	e.opSeq++
	return &operation{
		id:   e.opSeq,
		done: make(chan struct{}),
	}
}
