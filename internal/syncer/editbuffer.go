package syncer

import "github.com/bethropolis/treesync/internal/types"

// editBuffer is the ordered queue of pending edits accumulated since the
// last drain. It is append-only between parses and cleared atomically when
// its contents are handed off for application to the tree. The engine's
// mutex guards all access; no operation observes a partially drained buffer.
type editBuffer struct {
	edits []types.EditInfo
}

func newEditBuffer() editBuffer {
	return editBuffer{edits: make([]types.EditInfo, 0, 5)}
}

func (b *editBuffer) append(edit types.EditInfo) {
	b.edits = append(b.edits, edit)
}

func (b *editBuffer) len() int {
	return len(b.edits)
}

// drain returns all buffered edits in delivery order and clears the buffer.
func (b *editBuffer) drain() []types.EditInfo {
	if len(b.edits) == 0 {
		return nil
	}
	drained := make([]types.EditInfo, len(b.edits))
	copy(drained, b.edits)
	b.edits = b.edits[:0]
	return drained
}

func (b *editBuffer) reset() {
	b.edits = b.edits[:0]
}
