// Package devserver is a small stand-in for the puzzle backend. It serves
// questions from a fixture file and scores prompts either with a
// deterministic echo model or with an injected Answerer, so the CLI can be
// exercised without the real service.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pavelanni/cotgame/internal/api"
	"github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/prompt"
)

// Evaluation modes reported by the echo model.
const (
	ModeExactMatch = "exact_match"
	ModeNoMatch    = "no_match"
	ModeNoNumeric  = "no_numeric"
)

// EchoVendor is the model vendor the dev server reports.
const EchoVendor = "devserver"

// Answerer produces the AI output for a prompt and a hidden statement.
type Answerer interface {
	Answer(ctx context.Context, userPrompt, statement string) (string, error)
	Model() string
}

// Server holds fixtures and in-memory accounts.
type Server struct {
	fixtures []Fixture
	byID     map[int64]Fixture
	users    *userStore
	answerer Answerer // nil means echo the prompt
	vendor   string
	lang     string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLang sets the fallback language for error messages.
func WithLang(lang string) Option {
	return func(s *Server) {
		s.lang = lang
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAnswerer replaces the echo model with a real one.
func WithAnswerer(a Answerer, vendor string) Option {
	return func(s *Server) {
		s.answerer = a
		s.vendor = vendor
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.users.cost = cost
	}
}

// New creates a server for the given fixtures.
func New(fixtures []Fixture, opts ...Option) *Server {
	s := &Server{
		fixtures: fixtures,
		byID:     make(map[int64]Fixture, len(fixtures)),
		users:    newUserStore(),
		vendor:   EchoVendor,
		lang:     "en",
		logger:   slog.Default(),
	}
	for _, f := range fixtures {
		s.byID[f.ID] = f
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(i18n.Middleware(s.lang))
	s.Routes(r)
	return r
}

// Routes registers the API routes.
func (s *Server) Routes(r chi.Router) {
	r.Get(api.PathQuestions, s.handleListQuestions)
	r.Post(api.PathSolve, s.handleSolve)
	r.Post(api.PathSignup, s.handleSignup)
	r.Post(api.PathLogin, s.handleLogin)
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions := make([]model.Question, 0, len(s.fixtures))
	for _, f := range s.fixtures {
		questions = append(questions, f.Public())
	}
	s.writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "InvalidRequest", nil)
		return
	}

	if err := prompt.Validate(req.Prompt); err != nil {
		switch {
		case errors.Is(err, prompt.ErrEmptyPrompt):
			s.writeError(w, r, http.StatusBadRequest, "invalid_prompt", "ServerPromptEmpty", nil)
		default:
			s.writeError(w, r, http.StatusBadRequest, "prompt_too_long", "ServerPromptTooLong", map[string]any{"Max": prompt.MaxLength})
		}
		return
	}

	fixture, ok := s.byID[req.QuestionID]
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "question_not_found", "ServerQuestionNotFound", nil)
		return
	}

	modelName := req.Model
	if modelName == "" {
		modelName = "echo"
	}
	output := req.Prompt
	if s.answerer != nil {
		out, err := s.answerer.Answer(r.Context(), req.Prompt, fixture.Statement)
		if err != nil {
			s.logger.Error("model answer failed", "question_id", req.QuestionID, "error", err)
			s.writeError(w, r, http.StatusBadGateway, "model_error", "ModelFailed", nil)
			return
		}
		output = out
		modelName = s.answerer.Model()
	}

	resp := model.SolveResponse{
		QuestionID:  req.QuestionID,
		Prompt:      req.Prompt,
		ModelVendor: s.vendor,
		ModelName:   modelName,
		AIOutput:    output,
		Saved:       s.users.fromRequest(r) != nil,
	}

	answer, found := LastNumber(output)
	switch {
	case !found:
		resp.Evaluation = model.Evaluation{Mode: ModeNoNumeric}
	case answer == fixture.Answer:
		resp.AnswerNumber = &answer
		resp.Score = 100
		resp.Evaluation = model.Evaluation{Mode: ModeExactMatch}
	default:
		resp.AnswerNumber = &answer
		resp.Evaluation = model.Evaluation{Mode: ModeNoMatch}
	}
	resp.ElapsedMs = time.Since(start).Milliseconds()

	s.logger.Debug("solve",
		"question_id", req.QuestionID,
		"model", modelName,
		"score", resp.Score,
		"mode", resp.Evaluation.Mode,
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

// Commas only count inside proper thousands groups, so "3,4,5" is three numbers.
var numberRe = regexp.MustCompile(`[-+]?(?:\d{1,3}(?:,\d{3})+\b|\d+)(?:\.\d+)?`)

// LastNumber returns the last number written in text. Thousands separators
// are accepted. A sign directly after a digit or letter is a hyphen, as in
// "3-5", not a minus.
func LastNumber(text string) (float64, bool) {
	locs := numberRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return 0, false
	}
	start, end := locs[len(locs)-1][0], locs[len(locs)-1][1]
	if c := text[start]; (c == '-' || c == '+') && start > 0 && isWordByte(text[start-1]) {
		start++
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text[start:end], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isWordByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, msgID string, data map[string]any) {
	s.writeJSON(w, status, model.ErrorResponse{
		Error:   code,
		Message: i18n.Td(r.Context(), msgID, data),
	})
}
