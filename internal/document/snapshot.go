package document

import sitter "github.com/smacker/go-tree-sitter"

// Snapshot is an immutable point-in-time copy of document content. It exists
// so a multi-slice parse is insulated from the live document changing
// mid-attempt; it is never mutated after creation.
type Snapshot struct {
	content []byte
}

// NewSnapshot freezes the given content. The slice is copied.
func NewSnapshot(content []byte) *Snapshot {
	frozen := make([]byte, len(content))
	copy(frozen, content)
	return &Snapshot{content: frozen}
}

// Len returns the total byte length of the snapshot.
func (s *Snapshot) Len() uint32 {
	return uint32(len(s.content))
}

// PositionAt converts a byte offset to a zero-based row/column point.
func (s *Snapshot) PositionAt(offset uint32) sitter.Point {
	if offset > uint32(len(s.content)) {
		offset = uint32(len(s.content))
	}
	var row, lineStart uint32
	for i := uint32(0); i < offset; i++ {
		if s.content[i] == '\n' {
			row++
			lineStart = i + 1
		}
	}
	return sitter.Point{Row: row, Column: offset - lineStart}
}

// ValueInRange returns the bytes in [start, end), clamped to the snapshot.
func (s *Snapshot) ValueInRange(start, end uint32) []byte {
	length := uint32(len(s.content))
	if start > length {
		start = length
	}
	if end > length {
		end = length
	}
	if start >= end {
		return nil
	}
	return s.content[start:end]
}

// Bytes returns the frozen content. Callers must treat it as read-only.
func (s *Snapshot) Bytes() []byte {
	return s.content
}
