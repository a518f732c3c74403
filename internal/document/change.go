package document

import sitter "github.com/smacker/go-tree-sitter"

// Range is a pair of zero-based row/column points.
type Range struct {
	Start sitter.Point
	End   sitter.Point
}

// Change describes one contiguous text replacement, delivered in document
// order. Range holds the replaced span in pre-change coordinates; offsets are
// bytes into the pre-change document.
type Change struct {
	RangeOffset uint32 // Start byte of the replaced span
	RangeLength uint32 // Byte length of the replaced span
	Range       Range  // Replaced span as row/column points (pre-change)
	Text        []byte // Replacement text
}

// NewEndOffset returns the end byte of the replacement text in post-change
// coordinates.
func (c Change) NewEndOffset() uint32 {
	return c.RangeOffset + uint32(len(c.Text))
}

// OldEndOffset returns the end byte of the replaced span in pre-change
// coordinates.
func (c Change) OldEndOffset() uint32 {
	return c.RangeOffset + c.RangeLength
}
