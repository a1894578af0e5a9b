// Package workflow sequences loading a question, editing a prompt,
// submitting it and showing the result.
//
// Transition is a pure function over Snapshot. Controller owns a Snapshot,
// runs the effects Transition asks for and feeds their completions back.
// Every completion carries the token of the request that produced it; a
// completion whose token is no longer pending is dropped, so a slow response
// can never overwrite a later reset, reload or close.
package workflow

import (
	"errors"

	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/prompt"
)

// ErrNotFoundInCatalog is reported when the catalog has no question with the requested id.
var ErrNotFoundInCatalog = errors.New("question not found in catalog")

// State is the workflow's resting state.
type State int

const (
	StateLoading State = iota
	StateReady
	StateEditing
	StateSubmitting
	StateResult
	StateNotFound
	StateLoadError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateResult:
		return "result"
	case StateNotFound:
		return "not_found"
	case StateLoadError:
		return "load_error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is the complete visible state of one workflow instance.
type Snapshot struct {
	State      State
	QuestionID int64           // requested id
	Question   *model.Question // nil until the catalog is loaded
	Prompt     string
	Validation error // prompt.ErrEmptyPrompt, prompt.ErrTooLong or nil
	SubmitErr  error // last submission failure, cleared by the next edit
	LoadErr    error
	Result     *model.SolveResponse
	Model      string // model identifier sent with each submission

	// Version increases on every accepted transition.
	Version uint64

	lastToken    uint64
	catalogToken uint64 // 0 when no fetch is pending
	submitToken  uint64 // 0 when no submission is pending
}

// NewSnapshot returns the initial snapshot for a workflow that submits with modelName.
func NewSnapshot(modelName string) Snapshot {
	return Snapshot{State: StateLoading, Model: modelName}
}

// InlineError is the error shown under the prompt: a submission failure
// takes the place of the validation error.
func (s Snapshot) InlineError() error {
	if s.SubmitErr != nil {
		return s.SubmitErr
	}
	return s.Validation
}

// Editable reports whether the prompt form is shown and enabled.
func (s Snapshot) Editable() bool {
	return s.State == StateReady || s.State == StateEditing
}

// CanSubmit reports whether a Submit event would start a submission.
func (s Snapshot) CanSubmit() bool {
	return s.Editable() &&
		s.Question != nil &&
		s.submitToken == 0 &&
		prompt.Validate(s.Prompt) == nil
}

// Err returns the error that explains a terminal or failed state.
func (s Snapshot) Err() error {
	switch s.State {
	case StateNotFound:
		return ErrNotFoundInCatalog
	case StateLoadError:
		return s.LoadErr
	default:
		return nil
	}
}

// Event is an input to Transition.
type Event interface{ isEvent() }

// Load starts (or restarts) the workflow for a question id.
type Load struct{ QuestionID int64 }

// ReloadCatalog retries a failed catalog fetch.
type ReloadCatalog struct{}

// CatalogLoaded completes a catalog fetch.
type CatalogLoaded struct {
	Token     uint64
	Questions []model.Question
}

// CatalogFailed completes a catalog fetch with an error.
type CatalogFailed struct {
	Token uint64
	Err   error
}

// Edit replaces the prompt text.
type Edit struct{ Text string }

// Submit asks to submit the current prompt.
type Submit struct{}

// SubmitSucceeded completes a submission.
type SubmitSucceeded struct {
	Token    uint64
	Response *model.SolveResponse
}

// SubmitFailed completes a submission with an error.
type SubmitFailed struct {
	Token uint64
	Err   error
}

// Retry discards the result and starts a fresh prompt for the same question.
type Retry struct{}

// Close ends the workflow. Later completions are ignored.
type Close struct{}

func (Load) isEvent()            {}
func (ReloadCatalog) isEvent()   {}
func (CatalogLoaded) isEvent()   {}
func (CatalogFailed) isEvent()   {}
func (Edit) isEvent()            {}
func (Submit) isEvent()          {}
func (SubmitSucceeded) isEvent() {}
func (SubmitFailed) isEvent()    {}
func (Retry) isEvent()           {}
func (Close) isEvent()           {}

// Effect is work Transition asks the caller to perform. A nil Effect means none.
type Effect interface{ isEffect() }

// FetchCatalog asks for the full question catalog.
type FetchCatalog struct{ Token uint64 }

// SubmitSolve asks for one solve submission.
type SubmitSolve struct {
	Token   uint64
	Request model.SolveRequest
}

func (FetchCatalog) isEffect() {}
func (SubmitSolve) isEffect()  {}

// Transition applies ev to s. Events that do not apply in the current state,
// and completions with a stale token, return s unchanged and no effect.
func Transition(s Snapshot, ev Event) (Snapshot, Effect) {
	if s.State == StateClosed {
		return s, nil
	}

	next := s
	var eff Effect

	switch e := ev.(type) {
	case Load:
		next = Snapshot{
			State:      StateLoading,
			QuestionID: e.QuestionID,
			Model:      s.Model,
			lastToken:  s.lastToken,
		}
		next.catalogToken = next.newToken()
		eff = FetchCatalog{Token: next.catalogToken}

	case ReloadCatalog:
		if s.State != StateLoadError {
			return s, nil
		}
		next.State = StateLoading
		next.LoadErr = nil
		next.catalogToken = next.newToken()
		eff = FetchCatalog{Token: next.catalogToken}

	case CatalogLoaded:
		if s.State != StateLoading || e.Token != s.catalogToken {
			return s, nil
		}
		next.catalogToken = 0
		if q, ok := findQuestion(e.Questions, s.QuestionID); ok {
			next.State = StateReady
			next.Question = &q
		} else {
			next.State = StateNotFound
		}

	case CatalogFailed:
		if s.State != StateLoading || e.Token != s.catalogToken {
			return s, nil
		}
		next.catalogToken = 0
		next.State = StateLoadError
		next.LoadErr = e.Err

	case Edit:
		if !s.Editable() {
			return s, nil
		}
		next.State = StateEditing
		next.Prompt = e.Text
		next.Validation = prompt.Validate(e.Text)
		next.SubmitErr = nil

	case Submit:
		if !s.Editable() || s.Question == nil || s.submitToken != 0 {
			return s, nil
		}
		if err := prompt.Validate(s.Prompt); err != nil {
			if s.State == StateEditing && errors.Is(s.Validation, err) && s.SubmitErr == nil {
				return s, nil
			}
			next.State = StateEditing
			next.Validation = err
			next.SubmitErr = nil
			break
		}
		next.State = StateSubmitting
		next.Validation = nil
		next.SubmitErr = nil
		next.submitToken = next.newToken()
		eff = SubmitSolve{
			Token: next.submitToken,
			Request: model.SolveRequest{
				QuestionID: s.Question.ID,
				Prompt:     s.Prompt,
				Model:      s.Model,
			},
		}

	case SubmitSucceeded:
		if s.State != StateSubmitting || e.Token != s.submitToken {
			return s, nil
		}
		next.submitToken = 0
		next.State = StateResult
		next.Result = e.Response

	case SubmitFailed:
		if s.State != StateSubmitting || e.Token != s.submitToken {
			return s, nil
		}
		next.submitToken = 0
		next.State = StateEditing
		next.SubmitErr = e.Err

	case Retry:
		if s.State != StateResult {
			return s, nil
		}
		next.State = StateEditing
		next.Result = nil
		next.Prompt = ""
		next.Validation = nil
		next.SubmitErr = nil

	case Close:
		next.State = StateClosed
		next.catalogToken = 0
		next.submitToken = 0

	default:
		return s, nil
	}

	next.Version = s.Version + 1
	return next, eff
}

func (s *Snapshot) newToken() uint64 {
	s.lastToken++
	return s.lastToken
}

func findQuestion(qs []model.Question, id int64) (model.Question, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}
