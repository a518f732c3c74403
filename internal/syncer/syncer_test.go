package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bethropolis/treesync/internal/document"
	"github.com/bethropolis/treesync/internal/idle"
	"github.com/bethropolis/treesync/internal/parser"
	"github.com/bethropolis/treesync/internal/types"
)

// fakeTree records the edits applied to it; text is the source content the
// tree was parsed from.
type fakeTree struct {
	text   string
	edits  []types.EditInfo
	closed bool
}

func (t *fakeTree) Edit(edit types.EditInfo) { t.edits = append(t.edits, edit) }
func (t *fakeTree) Close()                   { t.closed = true }

// fakeParser scripts parser behavior: the first budgetFailures invocations
// fail with a budget error, failWith forces a structural failure, gate
// blocks every invocation until closed.
type fakeParser struct {
	budgetFailures int
	failWith       error
	gate           chan struct{}
	entered        chan struct{}

	mu           sync.Mutex
	calls        int
	seenText     []string
	seenBaseline []parser.Tree
	seenBudget   []time.Duration
	produced     []*fakeTree
	closed       bool
}

func (p *fakeParser) Parse(ctx context.Context, old parser.Tree, src document.Source, budget time.Duration) (parser.Tree, error) {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.gate != nil {
		<-p.gate
	}

	p.mu.Lock()
	p.calls++
	n := p.calls
	text := string(src.ValueInRange(0, src.Len()))
	p.seenText = append(p.seenText, text)
	p.seenBaseline = append(p.seenBaseline, old)
	p.seenBudget = append(p.seenBudget, budget)
	p.mu.Unlock()

	if p.failWith != nil {
		return nil, p.failWith
	}
	if n <= p.budgetFailures {
		return nil, parser.ErrBudgetExceeded
	}

	tree := &fakeTree{text: text}
	p.mu.Lock()
	p.produced = append(p.produced, tree)
	p.mu.Unlock()
	return tree, nil
}

func (p *fakeParser) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakeParser) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestParseTreeCachesUntilEdit(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("a=1;"))
	fp := &fakeParser{}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	calls, err := engine.ParseTreeAndCountCalls(ctx, ModeSync)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), calls)

	// No intervening edits: same tree, no parser invocation.
	calls, err = engine.ParseTreeAndCountCalls(ctx, ModeSync)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), calls)
	assert.Equal(t, 1, fp.callCount())

	tree1, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)
	tree2, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)
	assert.Same(t, tree1, tree2)

	// An edit invalidates the cache.
	change, err := doc.Replace(3, 1, []byte("2"))
	require.NoError(t, err)
	engine.RegisterEdit(change)

	calls, err = engine.ParseTreeAndCountCalls(ctx, ModeSync)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), calls)
	assert.Equal(t, 2, fp.callCount())
}

func TestEditsAppliedInDeliveryOrder(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("abcdef"))
	fp := &fakeParser{}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	first, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)
	baseline := first.(*fakeTree)

	for _, step := range []struct {
		offset uint32
		text   string
	}{{1, "X"}, {3, "Y"}} {
		change, err := doc.Replace(step.offset, 1, []byte(step.text))
		require.NoError(t, err)
		engine.RegisterEdit(change)
	}

	next, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)

	require.Len(t, baseline.edits, 2)
	assert.Equal(t, uint32(1), baseline.edits[0].StartIndex)
	assert.Equal(t, uint32(3), baseline.edits[1].StartIndex)
	assert.Equal(t, "aXcYef", next.(*fakeTree).text)

	// The old tree served as the incremental baseline.
	require.Len(t, fp.seenBaseline, 2)
	assert.Nil(t, fp.seenBaseline[0])
	assert.Same(t, first, fp.seenBaseline[1])
}

func TestRegisterEditDerivesPositions(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("ab\ncd"))
	fp := &fakeParser{}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	first, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)

	// "ab\ncd" -> "ab\ncxyz": replace the final byte with three.
	change, err := doc.Replace(4, 1, []byte("xyz"))
	require.NoError(t, err)
	engine.RegisterEdit(change)

	_, err = engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)

	edits := first.(*fakeTree).edits
	require.Len(t, edits, 1)
	assert.Equal(t, uint32(4), edits[0].StartIndex)
	assert.Equal(t, uint32(5), edits[0].OldEndIndex)
	assert.Equal(t, uint32(7), edits[0].NewEndIndex)
	assert.Equal(t, sitter.Point{Row: 1, Column: 1}, edits[0].StartPosition)
	assert.Equal(t, sitter.Point{Row: 1, Column: 2}, edits[0].OldEndPosition)
	assert.Equal(t, sitter.Point{Row: 1, Column: 4}, edits[0].NewEndPosition)
}

func TestSingleFlight(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("a=1;"))
	fp := &fakeParser{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	type result struct {
		tree parser.Tree
		err  error
	}
	results := make(chan result, 2)
	run := func() {
		tree, err := engine.ParseTree(ctx, ModeSync)
		results <- result{tree, err}
	}

	go run()
	<-fp.entered // first caller is inside the parser
	go run()
	time.Sleep(20 * time.Millisecond) // let the second caller block on the operation
	close(fp.gate)

	a := <-results
	b := <-results
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.tree, b.tree)
	assert.Equal(t, 1, fp.callCount())
}

func TestFallbackKeepsLateEditsAndSnapshotIsolation(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("a=1;"))
	fp := &fakeParser{budgetFailures: 1}
	sched := idle.NewManualScheduler()
	engine := NewEngine(doc, fp, Options{Idle: sched})
	ctx := context.Background()

	type result struct {
		tree parser.Tree
		err  error
	}
	done := make(chan result, 1)
	go func() {
		tree, err := engine.ParseTree(ctx, ModeAsync)
		done <- result{tree, err}
	}()

	// The bounded attempt fails on budget; the engine freezes a snapshot and
	// waits for an idle slice. Mutate the live document while it waits.
	<-sched.Waiting()
	change, err := doc.Replace(3, 1, []byte("2;"))
	require.NoError(t, err)
	engine.RegisterEdit(change)

	sched.Grant(time.Second)

	res := <-done
	require.NoError(t, res.err)

	// Three parser invocations: the bounded attempt, the snapshot slice, and
	// the follow-up attempt folding in the late edit. Two logical calls.
	require.Equal(t, 3, fp.callCount())
	assert.Equal(t, []string{"a=1;", "a=1;", "a=12;"}, fp.seenText)
	assert.Equal(t, uint64(2), engine.Calls())

	// The slice read the frozen snapshot, not the mutated live document, and
	// the final tree still reflects the late edit.
	assert.Equal(t, "a=1;", fp.seenText[1])
	assert.Equal(t, "a=12;", res.tree.(*fakeTree).text)
}

func TestFallbackRetriesUntilSliceSucceeds(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("x"))
	fp := &fakeParser{budgetFailures: 3} // bounded attempt + two short slices
	sched := idle.NewManualScheduler()
	engine := NewEngine(doc, fp, Options{Idle: sched})

	done := make(chan error, 1)
	go func() {
		_, err := engine.ParseTree(context.Background(), ModeAsync)
		done <- err
	}()

	for i := 0; i < 3; i++ {
		<-sched.Waiting()
		sched.Grant(10 * time.Millisecond)
	}

	require.NoError(t, <-done)
	assert.Equal(t, 4, fp.callCount())
	assert.Equal(t, uint64(1), engine.Calls())
}

func TestModeSelectsBudget(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("x"))
	fp := &fakeParser{}
	engine := NewEngine(doc, fp, Options{AsyncBudget: 42 * time.Millisecond})
	ctx := context.Background()

	_, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)

	change, err := doc.Insert(1, []byte("y"))
	require.NoError(t, err)
	engine.RegisterEdit(change)
	_, err = engine.ParseTree(ctx, ModeAsync)
	require.NoError(t, err)

	require.Len(t, fp.seenBudget, 2)
	assert.Equal(t, time.Duration(0), fp.seenBudget[0])
	assert.Equal(t, 42*time.Millisecond, fp.seenBudget[1])
}

func TestStructuralFailureDoesNotServeStaleTree(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("a=1;"))
	boom := errors.New("grammar rejected input")
	fp := &fakeParser{}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	first, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)

	change, err := doc.Replace(3, 1, []byte("2;"))
	require.NoError(t, err)
	engine.RegisterEdit(change)

	fp.failWith = boom
	_, err = engine.ParseTree(ctx, ModeSync)
	require.ErrorIs(t, err, boom)
	assert.True(t, first.(*fakeTree).closed)

	// The failed attempt consumed the edit and mutated the baseline, so the
	// retry must re-parse the document from scratch instead of serving the
	// pre-edit tree as a cache hit.
	fp.failWith = nil
	tree, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)
	assert.Equal(t, "a=12;", tree.(*fakeTree).text)
	require.Len(t, fp.seenBaseline, 3)
	assert.Nil(t, fp.seenBaseline[2])
}

func TestStructuralFailureSurfaces(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("x"))
	boom := errors.New("grammar rejected input")
	fp := &fakeParser{failWith: boom}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	_, err := engine.ParseTree(ctx, ModeAsync)
	assert.ErrorIs(t, err, boom)

	// The engine stays usable once the parser recovers.
	fp.failWith = nil
	_, err = engine.ParseTree(ctx, ModeSync)
	assert.NoError(t, err)
}

func TestDisposeIsIdempotent(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("x"))
	fp := &fakeParser{}
	engine := NewEngine(doc, fp, Options{})
	ctx := context.Background()

	tree, err := engine.ParseTree(ctx, ModeSync)
	require.NoError(t, err)

	engine.Dispose()
	engine.Dispose()

	assert.True(t, tree.(*fakeTree).closed)
	assert.True(t, fp.closed)

	_, err = engine.ParseTree(ctx, ModeSync)
	assert.ErrorIs(t, err, ErrDisposed)

	// Edits against a disposed engine are dropped, not buffered.
	change, err := doc.Insert(0, []byte("y"))
	require.NoError(t, err)
	engine.RegisterEdit(change)
	assert.Equal(t, 0, engine.edits.len())
}

func TestDisposeDuringParseDiscardsResult(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("x"))
	fp := &fakeParser{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	engine := NewEngine(doc, fp, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := engine.ParseTree(context.Background(), ModeSync)
		done <- err
	}()

	<-fp.entered
	engine.Dispose()
	close(fp.gate)

	assert.ErrorIs(t, <-done, ErrDisposed)

	fp.mu.Lock()
	defer fp.mu.Unlock()
	require.Len(t, fp.produced, 1)
	assert.True(t, fp.produced[0].closed)
	assert.True(t, fp.closed)
}

func TestParseWaiterHonorsContext(t *testing.T) {
	doc := document.NewDocumentFromBytes([]byte("x"))
	fp := &fakeParser{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	engine := NewEngine(doc, fp, Options{})

	go func() {
		_, _ = engine.ParseTree(context.Background(), ModeSync)
	}()
	<-fp.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := engine.ParseTree(ctx, ModeSync)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(fp.gate)
}
