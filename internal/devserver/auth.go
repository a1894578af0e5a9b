package devserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/cotgame/internal/model"
)

type account struct {
	user         model.User
	passwordHash []byte
}

// userStore keeps accounts and bearer tokens in memory.
type userStore struct {
	mu      sync.Mutex
	cost    int
	nextID  int64
	byEmail map[string]*account
	tokens  map[string]*account
}

func newUserStore() *userStore {
	return &userStore{
		cost:    bcrypt.DefaultCost,
		byEmail: make(map[string]*account),
		tokens:  make(map[string]*account),
	}
}

func (u *userStore) issueToken(a *account) string {
	token := uuid.NewString()
	u.tokens[token] = a
	return token
}

// fromRequest returns the user owning the request's bearer token, or nil.
func (u *userStore) fromRequest(r *http.Request) *model.User {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if a, ok := u.tokens[token]; ok {
		user := a.user
		return &user
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "InvalidRequest", nil)
		return
	}
	email := normalizeEmail(req.Email)
	if strings.TrimSpace(req.Username) == "" || email == "" || req.Password == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing_fields", "MissingFields", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.users.cost)
	if err != nil {
		s.logger.Error("hash password", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", "InvalidRequest", nil)
		return
	}

	u := s.users
	u.mu.Lock()
	if _, exists := u.byEmail[email]; exists {
		u.mu.Unlock()
		s.writeError(w, r, http.StatusConflict, "user_exists", "UserExists", nil)
		return
	}
	u.nextID++
	a := &account{
		user:         model.User{ID: u.nextID, Username: strings.TrimSpace(req.Username), Email: email},
		passwordHash: hash,
	}
	u.byEmail[email] = a
	token := u.issueToken(a)
	u.mu.Unlock()

	s.logger.Info("created user", "id", a.user.ID, "username", a.user.Username)
	s.writeJSON(w, http.StatusCreated, model.LoginResponse{Token: token, User: a.user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "InvalidRequest", nil)
		return
	}

	u := s.users
	u.mu.Lock()
	a := u.byEmail[normalizeEmail(req.Email)]
	u.mu.Unlock()

	if a == nil || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) != nil {
		s.writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "InvalidCredentials", nil)
		return
	}

	u.mu.Lock()
	token := u.issueToken(a)
	u.mu.Unlock()

	s.logger.Info("user logged in", "id", a.user.ID)
	s.writeJSON(w, http.StatusOK, model.LoginResponse{Token: token, User: a.user})
}
