package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pavelanni/cotgame/internal/model"
)

type fakeCatalog struct {
	calls     atomic.Int32
	questions []model.Question
	err       error
}

func (f *fakeCatalog) ListQuestions(ctx context.Context) ([]model.Question, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

type fakeSolver struct {
	calls atomic.Int32
	mu    sync.Mutex
	reqs  []model.SolveRequest
	resp  *model.SolveResponse
	err   error
}

func (f *fakeSolver) Solve(ctx context.Context, req model.SolveRequest) (*model.SolveResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// queue is a Runner that holds effects until flushed, so tests control
// when completions arrive.
type queue struct {
	mu      sync.Mutex
	pending []func()
}

func (q *queue) run(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, f)
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// flush runs queued effects in order, including any they enqueue.
func (q *queue) flush() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		f := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		f()
	}
}

func inline(f func()) { f() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func catalogOf(qs ...model.Question) *fakeCatalog {
	return &fakeCatalog{questions: qs}
}

func TestControllerHappyPath(t *testing.T) {
	zero := 0.0
	cat := catalogOf(model.Question{ID: 1, Level: 2})
	sol := &fakeSolver{resp: &model.SolveResponse{Score: 95, AnswerNumber: &zero}}
	c := New(cat, sol, WithRunner(inline), WithLogger(quietLogger()), WithModel("test-model"))

	c.Load(1)
	if s := c.Snapshot(); s.State != StateReady {
		t.Fatalf("state = %v, want ready", s.State)
	}

	c.Edit("think step by step")
	if !c.Submit() {
		t.Fatal("Submit() = false, want accepted")
	}

	s := c.Snapshot()
	if s.State != StateResult {
		t.Fatalf("state = %v, want result", s.State)
	}
	if s.Result.Score != 95 || !s.Result.HasAnswerNumber() || *s.Result.AnswerNumber != 0 {
		t.Errorf("Result = %+v", s.Result)
	}
	if n := sol.calls.Load(); n != 1 {
		t.Errorf("solver calls = %d, want 1", n)
	}
	if got := sol.reqs[0]; got.QuestionID != 1 || got.Prompt != "think step by step" || got.Model != "test-model" {
		t.Errorf("request = %+v", got)
	}

	// Retry keeps the question and does not refetch the catalog.
	c.Retry()
	s = c.Snapshot()
	if s.State != StateEditing || s.Prompt != "" || s.Result != nil {
		t.Errorf("after retry: %+v", s)
	}
	if n := cat.calls.Load(); n != 1 {
		t.Errorf("catalog calls = %d, want 1", n)
	}
}

func TestControllerNotFound(t *testing.T) {
	sol := &fakeSolver{}
	c := New(catalogOf(model.Question{ID: 1, Level: 2}), sol, WithRunner(inline), WithLogger(quietLogger()))

	c.Load(99)
	s := c.Snapshot()
	if s.State != StateNotFound {
		t.Fatalf("state = %v, want not_found", s.State)
	}
	c.Edit("x")
	c.Submit()
	if n := sol.calls.Load(); n != 0 {
		t.Errorf("solver calls = %d, want 0", n)
	}
}

func TestControllerInvalidPromptNeverSubmits(t *testing.T) {
	sol := &fakeSolver{resp: &model.SolveResponse{}}
	c := New(catalogOf(model.Question{ID: 1}), sol, WithRunner(inline), WithLogger(quietLogger()))
	c.Load(1)

	for _, text := range []string{"", "   ", strings.Repeat("x", 2001)} {
		c.Edit(text)
		c.Submit()
	}
	if n := sol.calls.Load(); n != 0 {
		t.Errorf("solver calls = %d, want 0", n)
	}
}

func TestControllerSubmitFailureThenResubmit(t *testing.T) {
	sol := &fakeSolver{err: errors.New("rate limited")}
	c := New(catalogOf(model.Question{ID: 1}), sol, WithRunner(inline), WithLogger(quietLogger()))
	c.Load(1)
	c.Edit("my prompt")
	c.Submit()

	s := c.Snapshot()
	if s.State != StateEditing || s.Prompt != "my prompt" {
		t.Fatalf("state = %v prompt = %q", s.State, s.Prompt)
	}
	if s.InlineError() == nil || s.InlineError().Error() != "rate limited" {
		t.Errorf("InlineError() = %v", s.InlineError())
	}

	sol.err = nil
	sol.resp = &model.SolveResponse{Score: 60}
	c.Submit()
	if s := c.Snapshot(); s.State != StateResult || s.Result.Score != 60 {
		t.Errorf("state = %v result = %+v", s.State, s.Result)
	}
	if n := sol.calls.Load(); n != 2 {
		t.Errorf("solver calls = %d, want 2", n)
	}
}

func TestControllerSingleInFlightSubmit(t *testing.T) {
	q := &queue{}
	sol := &fakeSolver{resp: &model.SolveResponse{Score: 80}}
	c := New(catalogOf(model.Question{ID: 1}), sol, WithRunner(q.run), WithLogger(quietLogger()))

	c.Load(1)
	q.flush()
	c.Edit("p")

	if !c.Submit() {
		t.Fatal("first Submit() rejected")
	}
	if c.Submit() {
		t.Error("second Submit() accepted while submitting")
	}
	if c.Edit("changed") {
		t.Error("Edit() accepted while submitting")
	}
	if n := q.len(); n != 1 {
		t.Fatalf("queued effects = %d, want 1", n)
	}
	q.flush()

	if n := sol.calls.Load(); n != 1 {
		t.Errorf("solver calls = %d, want 1", n)
	}
	if s := c.Snapshot(); s.State != StateResult {
		t.Errorf("state = %v, want result", s.State)
	}
}

func TestControllerStaleCompletions(t *testing.T) {
	t.Run("catalog after close", func(t *testing.T) {
		q := &queue{}
		c := New(catalogOf(model.Question{ID: 1}), &fakeSolver{}, WithRunner(q.run), WithLogger(quietLogger()))
		c.Load(1)
		c.Close()
		q.flush()
		if s := c.Snapshot(); s.State != StateClosed {
			t.Errorf("state = %v, want closed", s.State)
		}
	})

	t.Run("catalog after reload of another question", func(t *testing.T) {
		q := &queue{}
		c := New(catalogOf(model.Question{ID: 1}, model.Question{ID: 2, Level: 4}), &fakeSolver{}, WithRunner(q.run), WithLogger(quietLogger()))
		c.Load(1)
		c.Load(2)
		q.flush()
		s := c.Snapshot()
		if s.State != StateReady || s.Question.ID != 2 {
			t.Errorf("state = %v question = %+v, want ready with 2", s.State, s.Question)
		}
	})

	t.Run("submit after load", func(t *testing.T) {
		q := &queue{}
		sol := &fakeSolver{resp: &model.SolveResponse{Score: 100}}
		c := New(catalogOf(model.Question{ID: 1}), sol, WithRunner(q.run), WithLogger(quietLogger()))
		c.Load(1)
		q.flush()
		c.Edit("p")
		c.Submit()
		c.Load(1)
		q.flush()

		s := c.Snapshot()
		if s.State != StateReady || s.Result != nil {
			t.Errorf("state = %v result = %+v, want ready without result", s.State, s.Result)
		}
	})
}

func TestControllerReloadAfterLoadError(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("connection refused")}
	c := New(cat, &fakeSolver{}, WithRunner(inline), WithLogger(quietLogger()))

	c.Load(1)
	s := c.Snapshot()
	if s.State != StateLoadError {
		t.Fatalf("state = %v, want load_error", s.State)
	}
	if s.Err() == nil || s.Err().Error() != "connection refused" {
		t.Errorf("Err() = %v", s.Err())
	}

	cat.err = nil
	cat.questions = []model.Question{{ID: 1}}
	if !c.Reload() {
		t.Fatal("Reload() rejected")
	}
	if s := c.Snapshot(); s.State != StateReady {
		t.Errorf("state = %v, want ready", s.State)
	}
	if n := cat.calls.Load(); n != 2 {
		t.Errorf("catalog calls = %d, want 2", n)
	}
}

func TestControllerOnChange(t *testing.T) {
	c := New(catalogOf(model.Question{ID: 1}), &fakeSolver{}, WithRunner(inline), WithLogger(quietLogger()))

	var states []State
	c.OnChange(func(s Snapshot) { states = append(states, s.State) })

	c.Load(1)
	c.Edit("p")
	c.Retry() // ignored, not in result

	want := []State{StateLoading, StateReady, StateEditing}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestControllerWaitWithGoroutines(t *testing.T) {
	sol := &fakeSolver{resp: &model.SolveResponse{Score: 72}}
	c := New(catalogOf(model.Question{ID: 3, Level: 1}), sol, WithLogger(quietLogger()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Load(3)
	s, err := c.Wait(ctx, Settled)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.State != StateReady {
		t.Fatalf("state = %v, want ready", s.State)
	}

	c.Edit("p")
	c.Submit()
	s, err = c.Wait(ctx, Settled)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.State != StateResult || s.Result.Score != 72 {
		t.Errorf("state = %v result = %+v", s.State, s.Result)
	}
}

func TestControllerWaitHonoursContext(t *testing.T) {
	q := &queue{}
	c := New(catalogOf(model.Question{ID: 1}), &fakeSolver{}, WithRunner(q.run), WithLogger(quietLogger()))
	c.Load(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s, err := c.Wait(ctx, Settled)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v, want deadline exceeded", err)
	}
	if s.State != StateLoading {
		t.Errorf("state = %v, want loading", s.State)
	}
}

func TestControllerCloseCancelsContext(t *testing.T) {
	started := make(chan struct{})
	done := make(chan error, 1)
	cat := blockingCatalog{started: started, done: done}
	c := New(cat, &fakeSolver{}, WithLogger(quietLogger()))

	c.Load(1)
	<-started
	c.Close()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("catalog ctx err = %v, want canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("catalog call was not cancelled")
	}
	if s := c.Snapshot(); s.State != StateClosed {
		t.Errorf("state = %v, want closed", s.State)
	}
}

func TestParentContextCancelsCalls(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	c := New(blockingCatalog{started: started, done: done}, &fakeSolver{},
		WithLogger(quietLogger()), WithContext(parent))
	defer c.Close()

	c.Load(1)
	<-started
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	s, err := c.Wait(ctx, Settled)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.State != StateLoadError || !errors.Is(s.LoadErr, context.Canceled) {
		t.Errorf("state = %v, err = %v; want load error from cancellation", s.State, s.LoadErr)
	}
}

type blockingCatalog struct {
	started chan struct{}
	done    chan error
}

func (b blockingCatalog) ListQuestions(ctx context.Context) ([]model.Question, error) {
	close(b.started)
	<-ctx.Done()
	b.done <- ctx.Err()
	return nil, ctx.Err()
}
