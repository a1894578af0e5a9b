package model

import (
	"encoding/json"
	"time"
)

// Question is a challenge as the client sees it. The problem statement and
// the correct answer never leave the server.
type Question struct {
	ID        int64     `json:"id"`
	Level     int       `json:"level"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SolveRequest is the body of POST /api/v1/solve.
type SolveRequest struct {
	QuestionID int64  `json:"question_id"`
	Prompt     string `json:"prompt"`
	Model      string `json:"model,omitempty"` // empty means the server default
}

// SolveResponse is the evaluated result of one accepted SolveRequest.
type SolveResponse struct {
	QuestionID   int64      `json:"question_id"`
	Prompt       string     `json:"prompt"`
	ModelVendor  string     `json:"model_vendor"`
	ModelName    string     `json:"model_name"`
	AIOutput     string     `json:"ai_output"`
	AnswerNumber *float64   `json:"answer_number"`
	Score        int        `json:"score"`
	Evaluation   Evaluation `json:"evaluation"`
	ElapsedMs    int64      `json:"elapsed_ms"`
	Saved        bool       `json:"saved"`
}

// HasAnswerNumber reports whether the server extracted a number from the AI output.
// A present zero is still a number.
func (r *SolveResponse) HasAnswerNumber() bool {
	return r.AnswerNumber != nil
}

// EvaluationMode returns the evaluation mode, or "" when the server sent none.
func (r *SolveResponse) EvaluationMode() string {
	return r.Evaluation.Mode
}

// Evaluation carries the evaluation mode plus whatever detail fields the
// server chose to attach. Unknown keys are preserved in Extra.
type Evaluation struct {
	Mode  string
	Extra map[string]any
}

// MarshalJSON flattens Mode and Extra back into a single object.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		m[k] = v
	}
	if e.Mode != "" {
		m["mode"] = e.Mode
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts any object. A non-string "mode" is kept in Extra.
func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.Mode = ""
	e.Extra = nil
	if mode, ok := m["mode"].(string); ok {
		e.Mode = mode
		delete(m, "mode")
	}
	if len(m) > 0 {
		e.Extra = m
	}
	return nil
}

// User is the account returned by the auth endpoints.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by both signup and login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ErrorResponse is the error body shape on any non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// Attempt is one solve result recorded locally.
type Attempt struct {
	ID             string    `json:"id"`
	QuestionID     int64     `json:"question_id"`
	Prompt         string    `json:"prompt"`
	Model          string    `json:"model"`
	Score          int       `json:"score"`
	Tier           string    `json:"tier"`
	EvaluationMode string    `json:"evaluation_mode"`
	AnswerNumber   *float64  `json:"answer_number,omitempty"`
	ElapsedMs      int64     `json:"elapsed_ms"`
	Saved          bool      `json:"saved"`
	CreatedAt      time.Time `json:"created_at"`
}

// QuestionBest summarises local attempts on a single question.
type QuestionBest struct {
	QuestionID int64
	BestScore  int
	Attempts   int
}
