package types

import sitter "github.com/smacker/go-tree-sitter"

// EditInfo describes one contiguous text replacement as a position delta, in
// both byte-offset and row/column coordinates, matching what tree-sitter's
// Edit function needs to shift node spans.
//
// Invariants: StartIndex <= OldEndIndex and StartIndex <= NewEndIndex.
// Points are zero-based rows and byte columns. Edits are produced in
// document-change order and must be applied to a tree in that same order.
type EditInfo struct {
	StartIndex     uint32       // Start byte of the edit
	OldEndIndex    uint32       // End byte of the replaced text
	NewEndIndex    uint32       // End byte of the replacement text
	StartPosition  sitter.Point // Start position (row, column)
	OldEndPosition sitter.Point // Old end position
	NewEndPosition sitter.Point // New end position
}
