package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pavelanni/cotgame/internal/model"
)

// DefaultModel is the model identifier sent when none is configured.
const DefaultModel = "gemini-2.0-flash-lite"

// Catalog fetches the full question catalog.
type Catalog interface {
	ListQuestions(ctx context.Context) ([]model.Question, error)
}

// Solver submits one prompt for evaluation.
type Solver interface {
	Solve(ctx context.Context, req model.SolveRequest) (*model.SolveResponse, error)
}

// Runner executes effect work. The default starts a goroutine per effect.
type Runner func(func())

// Controller drives one workflow instance. All transitions are serialised
// under mu; network calls run outside it.
type Controller struct {
	catalog Catalog
	solver  Solver
	run     Runner
	logger  *slog.Logger

	mu        sync.Mutex
	snap      Snapshot
	changed   chan struct{} // closed and replaced on every accepted transition
	listeners []func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithRunner replaces the goroutine-per-effect runner.
func WithRunner(r Runner) Option {
	return func(c *Controller) {
		c.run = r
	}
}

// WithLogger sets the logger used for transition traces.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithContext makes ctx the parent of the context handed to network calls.
// Cancelling it has the same effect on pending calls as Close.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.ctx = ctx
	}
}

// WithModel sets the model identifier sent with each submission.
func WithModel(name string) Option {
	return func(c *Controller) {
		c.snap.Model = name
	}
}

// New creates a controller in the Loading state. Call Load to start it.
func New(catalog Catalog, solver Solver, opts ...Option) *Controller {
	c := &Controller{
		catalog: catalog,
		solver:  solver,
		run:     func(f func()) { go f() },
		logger:  slog.Default(),
		snap:    NewSnapshot(DefaultModel),
		changed: make(chan struct{}),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(c.ctx)
	return c
}

// OnChange registers fn to be called with every accepted snapshot.
// Calls may come from effect goroutines; use Version to drop older snapshots.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Dispatch applies ev and starts any resulting effect. It reports whether
// the event was accepted.
func (c *Controller) Dispatch(ev Event) bool {
	c.mu.Lock()
	prev := c.snap
	next, eff := Transition(prev, ev)
	if next.Version == prev.Version {
		c.mu.Unlock()
		c.logger.Debug("workflow event ignored", "event", eventName(ev), "state", prev.State)
		return false
	}
	c.snap = next
	close(c.changed)
	c.changed = make(chan struct{})
	listeners := append([]func(Snapshot){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Debug("workflow transition",
		"event", eventName(ev),
		"from", prev.State,
		"to", next.State,
		"question_id", next.QuestionID,
		"version", next.Version,
	)

	for _, fn := range listeners {
		fn(next)
	}
	if eff != nil {
		c.execute(eff)
	}
	return true
}

func (c *Controller) execute(eff Effect) {
	switch e := eff.(type) {
	case FetchCatalog:
		c.run(func() {
			qs, err := c.catalog.ListQuestions(c.ctx)
			if err != nil {
				c.Dispatch(CatalogFailed{Token: e.Token, Err: err})
				return
			}
			c.Dispatch(CatalogLoaded{Token: e.Token, Questions: qs})
		})
	case SubmitSolve:
		c.run(func() {
			resp, err := c.solver.Solve(c.ctx, e.Request)
			if err != nil {
				c.Dispatch(SubmitFailed{Token: e.Token, Err: err})
				return
			}
			c.Dispatch(SubmitSucceeded{Token: e.Token, Response: resp})
		})
	}
}

// Load starts the workflow for questionID, superseding any earlier load.
func (c *Controller) Load(questionID int64) bool {
	return c.Dispatch(Load{QuestionID: questionID})
}

// Reload retries a failed catalog fetch.
func (c *Controller) Reload() bool {
	return c.Dispatch(ReloadCatalog{})
}

// Edit replaces the prompt and revalidates it.
func (c *Controller) Edit(text string) bool {
	return c.Dispatch(Edit{Text: text})
}

// Submit submits the current prompt. It is a no-op while the prompt is
// invalid or a submission is already pending.
func (c *Controller) Submit() bool {
	return c.Dispatch(Submit{})
}

// Retry clears the result and the prompt, keeping the question.
func (c *Controller) Retry() bool {
	return c.Dispatch(Retry{})
}

// Close ends the workflow and cancels pending network calls.
func (c *Controller) Close() {
	c.Dispatch(Close{})
	c.cancel()
}

// Wait blocks until pred holds for the current snapshot or ctx is done.
func (c *Controller) Wait(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		c.mu.Lock()
		s, ch := c.snap, c.changed
		c.mu.Unlock()

		if pred(s) {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// Settled reports whether no network call is pending.
func Settled(s Snapshot) bool {
	return s.State != StateLoading && s.State != StateSubmitting
}

func eventName(ev Event) string {
	return fmt.Sprintf("%T", ev)
}
