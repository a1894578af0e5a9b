package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/pavelanni/cotgame/internal/handler/views"
	"github.com/pavelanni/cotgame/internal/model"
)

const (
	sessionCookieName = "session"
	userCookieName    = "user"
	csrfCookieName    = "csrf_token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) cookiePath() string {
	if h.basePath != "" {
		return h.basePath + "/"
	}
	return "/"
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cookiePath(),
		HttpOnly: httpOnly,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
	})
}

// csrfMiddleware issues a fresh token on every request and, for unsafe
// methods, requires the form token to match the cookie.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				h.logger.Warn("CSRF cookie missing")
				http.Error(w, "csrf token missing", http.StatusForbidden)
				return
			}
			formToken := r.FormValue("csrf_token")
			if formToken == "" {
				h.logger.Warn("CSRF form token missing")
				http.Error(w, "csrf token missing", http.StatusForbidden)
				return
			}
			if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
				h.logger.Warn("CSRF token mismatch")
				http.Error(w, "invalid csrf token", http.StatusForbidden)
				return
			}
		}

		token, err := generateCSRFToken()
		if err != nil {
			h.logger.Error("failed to generate CSRF token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.setCookie(w, csrfCookieName, token, false)
		ctx := model.ContextWithCSRFToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadUser puts the logged-in user's name into the request context. The
// API token itself stays in an HttpOnly cookie and is read by client.
func (h *Handler) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionToken(r) != "" {
			if c, err := r.Cookie(userCookieName); err == nil {
				if name, err := url.QueryUnescape(c.Value); err == nil && name != "" {
					r = r.WithContext(model.ContextWithUsername(r.Context(), name))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, resp *model.LoginResponse) {
	h.setCookie(w, sessionCookieName, resp.Token, true)
	h.setCookie(w, userCookieName, url.QueryEscape(resp.User.Username), true)
	h.logger.Info("user logged in", "user_id", resp.User.ID)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.LoginPage("", ""))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req := model.LoginRequest{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	resp, err := h.client(r).Login(r.Context(), req)
	if err != nil {
		h.render(w, r, errorStatus(err), views.LoginPage(errorMessage(err), req.Email))
		return
	}
	h.startSession(w, r, resp)
}

func (h *Handler) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.SignupPage("", "", ""))
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	req := model.SignupRequest{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	resp, err := h.client(r).Signup(r.Context(), req)
	if err != nil {
		h.render(w, r, errorStatus(err), views.SignupPage(errorMessage(err), req.Username, req.Email))
		return
	}
	h.startSession(w, r, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, sessionCookieName)
	h.clearCookie(w, userCookieName)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}
