// Package parser wraps the tree-sitter incremental parser behind a small
// black-box contract: given an old tree plus a text provider, produce a new
// tree, optionally bounded by a time budget.
package parser

import (
	"context"
	"fmt"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/bethropolis/treesync/internal/config"
	"github.com/bethropolis/treesync/internal/document"
	"github.com/bethropolis/treesync/internal/logger"
)

// Parser is the incremental parse capability used by the sync engine.
type Parser interface {
	// Parse derives a new tree from oldTree (nil for a full parse) plus the
	// text in src. A positive budget bounds the attempt; exceeding it fails
	// with ErrBudgetExceeded. Zero budget runs the parser to completion.
	Parse(ctx context.Context, oldTree Tree, src document.Source, budget time.Duration) (Tree, error)
	// Close releases the parser's resources.
	Close()
}

// SitterParser is the tree-sitter backed implementation.
type SitterParser struct {
	parser    *sitter.Parser
	chunkSize uint32
}

// New creates a parser for the given grammar. chunkSize bounds each
// text-provider read; values <= 0 use the default.
func New(lang *sitter.Language, chunkSize int) *SitterParser {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return &SitterParser{
		parser:    p,
		chunkSize: uint32(chunkSize),
	}
}

// Parse runs one incremental parse attempt.
func (p *SitterParser) Parse(ctx context.Context, oldTree Tree, src document.Source, budget time.Duration) (Tree, error) {
	var raw *sitter.Tree
	if oldTree != nil {
		st, ok := oldTree.(*SitterTree)
		if !ok {
			return nil, fmt.Errorf("unsupported baseline tree type %T", oldTree)
		}
		raw = st.raw
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
		// The binding's input-callback parse path does not watch the context;
		// the operation limit is what actually halts a long parse.
		limit := int(budget.Microseconds())
		if limit <= 0 {
			limit = 1
		}
		p.parser.SetOperationLimit(limit)
		defer p.parser.SetOperationLimit(0)
	}

	newTree, err := p.parser.ParseInputCtx(ctx, raw, NewInput(src, p.chunkSize))
	if err != nil {
		if isAbortError(err) {
			// A halted parse leaves the parser mid-document; reset so the
			// next attempt starts from the beginning.
			p.parser.Reset()
			logger.DebugTagf("parser", "Parse aborted after budget %v: %v", budget, err)
			return nil, fmt.Errorf("%w (%v)", ErrBudgetExceeded, err)
		}
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	return &SitterTree{raw: newTree}, nil
}

// Close releases the underlying parser.
func (p *SitterParser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

var _ Parser = (*SitterParser)(nil)
