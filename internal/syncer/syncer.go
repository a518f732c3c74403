// Package syncer keeps a syntax tree continuously synchronized with a
// mutable document. It buffers incremental edits, feeds them to the parser
// as position deltas, chooses between bounded and unbounded parse attempts,
// and falls back to cooperative idle-sliced re-parsing against a frozen
// snapshot when a bounded attempt cannot finish in time.
//
// Mutation discipline: document mutation and edit registration belong to a
// single owning context. While the engine waits in the fallback loop the
// document may keep changing; those edits accumulate and are folded in
// before a result is returned. The document must not be mutated while a
// bounded attempt is reading from it.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bethropolis/treesync/internal/config"
	"github.com/bethropolis/treesync/internal/document"
	"github.com/bethropolis/treesync/internal/event"
	"github.com/bethropolis/treesync/internal/idle"
	"github.com/bethropolis/treesync/internal/logger"
	"github.com/bethropolis/treesync/internal/parser"
	"github.com/bethropolis/treesync/internal/types"
)

// Mode selects how much time a parse attempt may take.
type Mode int

const (
	// ModeSync runs the parser to completion with no time budget. Only a
	// structural parser failure can make it error.
	ModeSync Mode = iota
	// ModeAsync bounds the attempt by the configured budget and falls back
	// to cooperative idle slicing when the budget is exhausted, trading
	// determinism for responsiveness.
	ModeAsync
)

// ErrDisposed is returned for requests against a disposed engine.
var ErrDisposed = errors.New("syncer: engine disposed")

// Options configures an Engine.
type Options struct {
	// AsyncBudget bounds a ModeAsync attempt. Zero uses the default.
	AsyncBudget time.Duration
	// Idle supplies fallback slices. Nil uses a TimerScheduler with the
	// default delay and slice length.
	Idle idle.Scheduler
	// Events, if set, receives TypeTreeUpdated and TypeEngineDisposed.
	Events *event.Manager
}

// Engine is the parse scheduler. It owns the single current tree, the edit
// buffer, and the at-most-one in-flight parse operation.
type Engine struct {
	parser      parser.Parser
	doc         *document.Document
	idle        idle.Scheduler
	events      *event.Manager
	asyncBudget time.Duration

	mu         sync.Mutex
	edits      editBuffer
	tree       parser.Tree
	inflight   *operation
	opSeq      uint64
	calls      uint64
	disposed   bool
	parserDone bool
}

// NewEngine creates an engine bound to a live document and a parser.
func NewEngine(doc *document.Document, p parser.Parser, opts Options) *Engine {
	budget := opts.AsyncBudget
	if budget <= 0 {
		budget = time.Duration(config.DefaultAsyncBudgetMicros) * time.Microsecond
	}
	scheduler := opts.Idle
	if scheduler == nil {
		scheduler = idle.NewTimerScheduler(config.DefaultIdleDelay, config.DefaultIdleSliceLength)
	}
	return &Engine{
		parser:      p,
		doc:         doc,
		idle:        scheduler,
		events:      opts.Events,
		asyncBudget: budget,
		edits:       newEditBuffer(),
	}
}

// RegisterEdit converts a change notification into a position delta, using
// the live document's coordinate system at the moment the change fires, and
// appends it to the edit buffer. It never triggers a parse; parse requests
// are pulled by callers.
func (e *Engine) RegisterEdit(change document.Change) {
	edit := types.EditInfo{
		StartIndex:     change.RangeOffset,
		OldEndIndex:    change.OldEndOffset(),
		NewEndIndex:    change.NewEndOffset(),
		StartPosition:  e.doc.PositionAt(change.RangeOffset),
		OldEndPosition: change.Range.End,
		NewEndPosition: e.doc.PositionAt(change.NewEndOffset()),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.edits.append(edit)
	logger.DebugTagf("syncer", "Buffered edit: %+v", edit)
}

// ParseTree returns the tree for the document's current content, parsing
// only if edits arrived since the last parse (or no tree exists yet). The
// returned tree is owned by the engine and valid until the next successful
// parse or disposal; callers must not Close it.
func (e *Engine) ParseTree(ctx context.Context, mode Mode) (parser.Tree, error) {
	for {
		e.mu.Lock()
		if e.disposed {
			e.mu.Unlock()
			return nil, ErrDisposed
		}

		// Never start a second concurrent attempt: await the one in flight,
		// then re-check whether its result already covers this request.
		if op := e.inflight; op != nil {
			e.mu.Unlock()
			select {
			case <-op.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		// Cache hit: a tree exists and no edits arrived since it was built.
		if e.tree != nil && e.edits.len() == 0 {
			tree := e.tree
			e.mu.Unlock()
			return tree, nil
		}

		op := e.newOperation()
		e.inflight = op
		pending := e.edits.drain()
		baseline := e.tree
		e.calls++
		e.mu.Unlock()

		logger.DebugTagf("syncer", "Parse attempt %d: %d pending edits, baseline=%v", op.id, len(pending), baseline != nil)
		tree, err := e.runAttempt(ctx, mode, baseline, pending)
		e.finishOperation(op, tree, err)
		if err != nil {
			return nil, err
		}
		// Loop: edits that arrived during the attempt are folded in by the
		// next iteration; otherwise the stored tree is returned as a hit.
	}
}

// ParseTreeAndCountCalls behaves like ParseTree but returns the number of
// logical parse invocations performed to satisfy this request. Diagnostic.
func (e *Engine) ParseTreeAndCountCalls(ctx context.Context, mode Mode) (uint64, error) {
	e.mu.Lock()
	before := e.calls
	e.mu.Unlock()

	if _, err := e.ParseTree(ctx, mode); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls - before, nil
}

// Calls returns the total number of logical parse invocations so far.
func (e *Engine) Calls() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// runAttempt applies the drained edits to the baseline tree in delivery
// order, then parses against the live document. On budget exhaustion it
// switches to the snapshot fallback. Structural parser failures are
// surfaced to the caller rather than retried.
func (e *Engine) runAttempt(ctx context.Context, mode Mode, baseline parser.Tree, pending []types.EditInfo) (parser.Tree, error) {
	if baseline != nil {
		for _, edit := range pending {
			baseline.Edit(edit)
		}
	}

	var budget time.Duration
	if mode == ModeAsync {
		budget = e.asyncBudget
	}

	tree, err := e.parser.Parse(ctx, baseline, e.doc, budget)
	if err == nil {
		return tree, nil
	}
	if !parser.IsBudgetExceeded(err) {
		return nil, err
	}
	return e.runFallback(ctx, baseline)
}

// runFallback re-parses against a snapshot frozen at entry, one idle slice
// at a time. Edits arriving meanwhile accumulate against the live document
// and are folded in by ParseTree's re-check once this attempt completes, so
// nothing is lost. There is deliberately no retry cap: a slice long enough
// eventually succeeds.
func (e *Engine) runFallback(ctx context.Context, baseline parser.Tree) (parser.Tree, error) {
	snapshot := e.doc.Snapshot()
	logger.DebugTagf("syncer", "Budget exhausted, entering idle fallback (snapshot: %d bytes)", snapshot.Len())

	for {
		slice, err := e.idle.Next(ctx)
		if err != nil {
			return nil, err
		}
		tree, err := e.parser.Parse(ctx, baseline, snapshot, slice.Remaining())
		if err == nil {
			return tree, nil
		}
		if !parser.IsBudgetExceeded(err) {
			return nil, err
		}
		logger.DebugTagf("syncer", "Fallback slice expired, requesting another")
	}
}

// finishOperation publishes an attempt's outcome. The generation guard
// makes continuations of a superseded or post-disposal attempt no-ops: the
// produced tree is discarded instead of mutating shared state.
func (e *Engine) finishOperation(op *operation, tree parser.Tree, err error) {
	var stale parser.Tree
	var closeParser bool

	e.mu.Lock()
	if e.inflight != nil && e.inflight.id == op.id {
		e.inflight = nil
	}
	disposed := e.disposed
	if disposed {
		if !e.parserDone {
			e.parserDone = true
			closeParser = true
		}
	} else if err != nil {
		// The baseline has already absorbed the drained edits, so after a
		// failed attempt it no longer matches any future drain. Drop it and
		// let the next request parse from scratch.
		stale = e.tree
		e.tree = nil
	} else if tree != nil {
		if e.tree != nil && e.tree != tree {
			stale = e.tree
		}
		e.tree = tree
	}
	e.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	if disposed && tree != nil {
		tree.Close()
	}
	if closeParser {
		e.parser.Close()
	}

	close(op.done)

	if err == nil && !disposed && e.events != nil {
		e.events.Dispatch(event.TypeTreeUpdated, event.TreeUpdatedData{Generation: op.id})
	}
}

// Dispose releases the tree, parser and buffered edits. Idempotent. An
// in-flight attempt is not interrupted; when it finishes, the generation
// guard discards its result and closes the parser.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	tree := e.tree
	e.tree = nil
	e.edits.reset()
	var closeParser bool
	if e.inflight == nil && !e.parserDone {
		e.parserDone = true
		closeParser = true
	}
	e.mu.Unlock()

	if tree != nil {
		tree.Close()
	}
	if closeParser {
		e.parser.Close()
	}
	if e.events != nil {
		e.events.Dispatch(event.TypeEngineDisposed, nil)
	}
	logger.DebugTagf("syncer", "Engine disposed")
}

// Attach subscribes the engine to document-change events, so host wiring
// can dispatch a single event per mutation instead of calling RegisterEdit
// directly.
func Attach(e *Engine, events *event.Manager) {
	events.Subscribe(event.TypeDocumentChanged, func(ev event.Event) bool {
		if data, ok := ev.Data.(event.DocumentChangedData); ok {
			e.RegisterEdit(data.Change)
		}
		return false
	})
}
