package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/bethropolis/treesync/internal/types"
)

// Tree is an opaque syntax tree. It supports in-place application of edits
// (shifting internal node spans) and is otherwise immutable until the next
// parse. Exactly one live tree exists at a time; the previous tree is the
// baseline for the next parse and is released when superseded.
type Tree interface {
	// Edit shifts the tree's node spans in place per one edit record. Edits
	// must be applied in document-change order before the tree is read or
	// used as a parse baseline.
	Edit(edit types.EditInfo)
	// Close releases the tree's resources.
	Close()
}

// SitterTree wraps a tree-sitter tree with the engine's Tree contract.
type SitterTree struct {
	raw *sitter.Tree
}

// Raw returns the underlying tree-sitter tree.
func (t *SitterTree) Raw() *sitter.Tree {
	if t == nil {
		return nil
	}
	return t.raw
}

// RootNode returns the root node of the parse tree.
func (t *SitterTree) RootNode() *sitter.Node {
	if t == nil || t.raw == nil {
		return nil
	}
	return t.raw.RootNode()
}

// Edit applies one position delta to the tree's internal spans.
func (t *SitterTree) Edit(edit types.EditInfo) {
	if t == nil || t.raw == nil {
		return
	}
	t.raw.Edit(sitter.EditInput{
		StartIndex:  edit.StartIndex,
		OldEndIndex: edit.OldEndIndex,
		NewEndIndex: edit.NewEndIndex,
		StartPoint:  edit.StartPosition,
		OldEndPoint: edit.OldEndPosition,
		NewEndPoint: edit.NewEndPosition,
	})
}

// Close releases the tree-sitter tree resources.
func (t *SitterTree) Close() {
	if t != nil && t.raw != nil {
		t.raw.Close()
	}
}

var _ Tree = (*SitterTree)(nil)
