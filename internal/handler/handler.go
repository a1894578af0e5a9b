// Package handler serves the browser front end. Every page talks to the
// puzzle API through api.Client and runs solves through workflow.Controller.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/cotgame/internal/api"
	"github.com/pavelanni/cotgame/internal/handler/views"
	"github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/present"
	"github.com/pavelanni/cotgame/internal/store"
	"github.com/pavelanni/cotgame/internal/workflow"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	apiURL        string
	timeout       time.Duration
	userAgent     string
	modelName     string
	store         *store.Store // nil disables local history
	lang          string
	basePath      string
	secureCookies bool
	logger        *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStore records every scored solve and shows best scores on the list.
func WithStore(s *store.Store) Option {
	return func(h *Handler) {
		h.store = s
	}
}

// WithModel sets the model identifier sent with each submission.
func WithModel(name string) Option {
	return func(h *Handler) {
		h.modelName = name
	}
}

// WithTimeout bounds each API call.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// WithUserAgent sets the User-Agent sent to the API.
func WithUserAgent(ua string) Option {
	return func(h *Handler) {
		h.userAgent = ua
	}
}

// WithLang sets the language used when the browser asks for none we have.
func WithLang(lang string) Option {
	return func(h *Handler) {
		h.lang = lang
	}
}

// WithBasePath mounts the pages under a path prefix such as "/cot".
func WithBasePath(p string) Option {
	return func(h *Handler) {
		h.basePath = p
	}
}

// WithSecureCookies marks cookies Secure, for deployments behind HTTPS.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secureCookies = secure
	}
}

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// New creates a handler that talks to the API at apiURL.
func New(apiURL string, opts ...Option) *Handler {
	h := &Handler{
		apiURL:    apiURL,
		timeout:   api.DefaultTimeout,
		modelName: workflow.DefaultModel,
		lang:      "en",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler returns the router with all middleware applied.
func (h *Handler) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(i18n.Middleware(h.lang))
	r.Use(h.withBasePath)
	r.Use(h.csrfMiddleware)
	r.Use(h.loadUser)
	if h.basePath != "" {
		r.Route(h.basePath, h.Routes)
	} else {
		h.Routes(r)
	}
	return r
}

// Routes registers all page routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/questions/{id}", h.handleSolvePage)
	r.Post("/questions/{id}", h.handleSolve)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.handleSignupPage)
	r.Post("/signup", h.handleSignup)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) path(p string) string {
	return h.basePath + p
}

func (h *Handler) withBasePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(model.ContextWithBasePath(r.Context(), h.basePath)))
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("render error", "path", r.URL.Path, "error", err)
	}
}

// client builds an API client carrying the browser's login token, if any.
func (h *Handler) client(r *http.Request) *api.Client {
	opts := []api.Option{api.WithTimeout(h.timeout)}
	if h.userAgent != "" {
		opts = append(opts, api.WithUserAgent(h.userAgent))
	}
	if token := sessionToken(r); token != "" {
		opts = append(opts, api.WithToken(token))
	}
	return api.New(h.apiURL, opts...)
}

// controller returns a workflow whose effects run inline, so every event
// has settled by the time Dispatch returns.
func (h *Handler) controller(r *http.Request) *workflow.Controller {
	c := h.client(r)
	return workflow.New(c, c,
		workflow.WithRunner(func(f func()) { f() }),
		workflow.WithContext(r.Context()),
		workflow.WithModel(h.modelName),
		workflow.WithLogger(h.logger),
	)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	qs, err := h.client(r).ListQuestions(r.Context())
	if err != nil {
		h.renderLoadError(w, r, err, "/")
		return
	}

	level, _ := strconv.Atoi(r.URL.Query().Get("level"))
	if level < 0 || level > present.MaxLevel {
		level = 0
	}
	data := views.IndexData{
		Questions: present.FilterByLevel(present.SortByLevel(qs), level),
		Total:     len(qs),
		Levels:    present.UniqueLevels(qs),
		Level:     level,
	}
	if h.store != nil {
		best, err := h.store.BestScores()
		if err != nil {
			h.logger.Warn("failed to read best scores", "error", err)
		}
		data.Best = best
	}
	h.render(w, r, http.StatusOK, views.IndexPage(data))
}

func (h *Handler) handleSolvePage(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(r)
	if !ok {
		h.render(w, r, http.StatusNotFound, views.NotFoundPage())
		return
	}
	ctrl := h.controller(r)
	defer ctrl.Close()

	ctrl.Load(id)
	h.renderSnapshot(w, r, ctrl.Snapshot())
}

func (h *Handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	id, ok := questionID(r)
	if !ok {
		h.render(w, r, http.StatusNotFound, views.NotFoundPage())
		return
	}
	ctrl := h.controller(r)
	defer ctrl.Close()

	ctrl.Load(id)
	ctrl.Edit(r.FormValue("prompt"))
	ctrl.Submit()

	snap := ctrl.Snapshot()
	if snap.State == workflow.StateResult {
		h.record(snap)
	}
	h.renderSnapshot(w, r, snap)
}

func (h *Handler) renderSnapshot(w http.ResponseWriter, r *http.Request, snap workflow.Snapshot) {
	switch snap.State {
	case workflow.StateNotFound:
		h.render(w, r, http.StatusNotFound, views.NotFoundPage())
	case workflow.StateLoadError:
		h.renderLoadError(w, r, snap.LoadErr, r.URL.Path[len(h.basePath):])
	case workflow.StateEditing:
		status := http.StatusOK
		switch {
		case snap.SubmitErr != nil:
			status = http.StatusBadGateway
		case snap.Validation != nil:
			status = http.StatusUnprocessableEntity
		}
		h.render(w, r, status, views.SolvePage(snap))
	default:
		h.render(w, r, http.StatusOK, views.SolvePage(snap))
	}
}

func (h *Handler) renderLoadError(w http.ResponseWriter, r *http.Request, err error, retryPath string) {
	h.logger.Warn("failed to load questions", "error", err)
	h.render(w, r, http.StatusBadGateway, views.LoadErrorPage(errorMessage(err), retryPath))
}

func (h *Handler) record(snap workflow.Snapshot) {
	if h.store == nil || snap.Result == nil {
		return
	}
	id, err := h.store.RecordAttempt(present.NewAttempt(snap.Question.ID, snap.Prompt, snap.Model, snap.Result))
	if err != nil {
		h.logger.Warn("failed to record attempt", "question_id", snap.Question.ID, "error", err)
		return
	}
	h.logger.Debug("recorded attempt", "id", id, "question_id", snap.Question.ID, "score", snap.Result.Score)
}

func questionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// errorMessage is the text shown for a failed API call.
func errorMessage(err error) string {
	if rf, ok := api.IsRequestFailed(err); ok {
		return rf.Message
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return api.UnknownErrorMessage
	}
	return err.Error()
}

// errorStatus maps a failed API call to the status of the page reporting it.
func errorStatus(err error) int {
	if rf, ok := api.IsRequestFailed(err); ok && rf.StatusCode >= 400 && rf.StatusCode < 500 {
		return rf.StatusCode
	}
	return http.StatusBadGateway
}
