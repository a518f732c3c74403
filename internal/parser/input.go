package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/bethropolis/treesync/internal/document"
)

// NewInput adapts a text source to the parser's text-provider callback. Each
// read is bounded to chunkSize bytes so per-call cost stays predictable. The
// adapter is pure with respect to its bound source and works identically for
// a live document or a frozen snapshot.
func NewInput(src document.Source, chunkSize uint32) sitter.Input {
	return sitter.Input{
		Encoding: sitter.InputEncodingUTF8,
		Read: func(offset uint32, position sitter.Point) []byte {
			end := offset + chunkSize
			if length := src.Len(); end > length {
				end = length
			}
			return src.ValueInRange(offset, end)
		},
	}
}
