package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/cotgame/internal/api"
	"github.com/pavelanni/cotgame/internal/devserver"
	"github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newAPI starts a dev server and counts the solve calls it receives.
// failSolve makes every solve fail with a 429.
func newAPI(t *testing.T, failSolve bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	fixtures, err := devserver.LoadFixtures("")
	if err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	inner := devserver.New(fixtures,
		devserver.WithBcryptCost(bcrypt.MinCost),
		devserver.WithLogger(quietLogger()),
	).Handler()

	var solves atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == api.PathSolve {
			solves.Add(1)
			if failSolve {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				io.WriteString(w, `{"message":"rate limited"}`)
				return
			}
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &solves
}

// newSite starts the web front end and returns it with a cookie-keeping client.
func newSite(t *testing.T, apiURL string, opts ...Option) (*httptest.Server, *http.Client) {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	h := New(apiURL, append([]Option{WithLogger(quietLogger())}, opts...)...)
	ts := httptest.NewServer(h.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return ts, &http.Client{Jar: jar}
}

func get(t *testing.T, c *http.Client, u string) (int, string) {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

// post submits form to site+path with the CSRF token from the client's cookies.
func post(t *testing.T, c *http.Client, site, path string, form url.Values) (int, string) {
	t.Helper()
	form.Set("csrf_token", csrfToken(t, c, site+path))
	resp, err := c.PostForm(site+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func csrfToken(t *testing.T, c *http.Client, target string) string {
	t.Helper()
	u, _ := url.Parse(target)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	t.Fatal("no csrf cookie; GET a page first")
	return ""
}

func mustContain(t *testing.T, body string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q:\n%s", want, body)
		}
	}
}

func TestIndexListsAndFilters(t *testing.T) {
	apiSrv, _ := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL)

	status, body := get(t, c, site.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	mustContain(t, body, "6 questions", `href="/questions/1"`, "★☆☆☆☆", `href="/?level=5"`, "Log in")

	status, body = get(t, c, site.URL+"/?level=5")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	mustContain(t, body, "1 question", `href="/questions/5"`)
	if strings.Contains(body, `href="/questions/1"`) {
		t.Error("level filter kept a level 1 question")
	}

	_, body = get(t, c, site.URL+"/?level=9")
	mustContain(t, body, "6 questions")
}

func TestIndexJapanese(t *testing.T) {
	apiSrv, _ := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL)

	req, _ := http.NewRequest(http.MethodGet, site.URL+"/", nil)
	req.Header.Set("Accept-Language", "ja")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	mustContain(t, string(body), "全 6 問", "問題一覧")
}

func TestSolveRecordsAttempt(t *testing.T) {
	apiSrv, solves := newAPI(t, false)
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer db.Close()
	site, c := newSite(t, apiSrv.URL, WithStore(db), WithModel("test-model"))

	status, body := get(t, c, site.URL+"/questions/2")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	mustContain(t, body, "Question #2", `name="csrf_token"`, `<textarea id="prompt" name="prompt"></textarea>`)

	status, body = post(t, c, site.URL, "/questions/2", url.Values{"prompt": {"Taro has 36"}})
	if status != http.StatusOK {
		t.Fatalf("status = %d\n%s", status, body)
	}
	mustContain(t, body, "Your score: 100 pts Excellent!", "Taro has 36", "✗ not saved", `href="/questions/2">Try again`)
	if n := solves.Load(); n != 1 {
		t.Errorf("solve calls = %d, want 1", n)
	}

	attempts, err := db.ListAttempts(2, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Prompt != "Taro has 36" || attempts[0].Model != "test-model" || attempts[0].Tier != "excellent" {
		t.Fatalf("unexpected attempts %+v", attempts)
	}

	_, body = get(t, c, site.URL+"/")
	mustContain(t, body, "best 100 (1 tries)")
}

func TestSolveValidationNeverCallsAPI(t *testing.T) {
	apiSrv, solves := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL)
	get(t, c, site.URL+"/questions/1")

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"blank", "   ", "Please enter a prompt."},
		{"too long", strings.Repeat("a", 2001), "Prompts must be at most 2000 characters."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, c, site.URL, "/questions/1", url.Values{"prompt": {tt.prompt}})
			if status != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", status)
			}
			mustContain(t, body, tt.want)
		})
	}
	if n := solves.Load(); n != 0 {
		t.Errorf("solve calls = %d, want 0", n)
	}
}

func TestSubmitFailureKeepsPrompt(t *testing.T) {
	apiSrv, solves := newAPI(t, true)
	site, c := newSite(t, apiSrv.URL)
	get(t, c, site.URL+"/questions/1")

	status, body := post(t, c, site.URL, "/questions/1", url.Values{"prompt": {"my <long> prompt"}})
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	mustContain(t, body,
		"Submission failed: rate limited",
		`<textarea id="prompt" name="prompt">my &lt;long&gt; prompt</textarea>`,
	)
	if strings.Contains(body, "<long>") {
		t.Error("prompt was not escaped")
	}
	if n := solves.Load(); n != 1 {
		t.Errorf("solve calls = %d, want exactly 1", n)
	}
}

func TestNotFoundAndLoadError(t *testing.T) {
	apiSrv, _ := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL)

	for _, path := range []string{"/questions/999", "/questions/abc", "/questions/0"} {
		status, body := get(t, c, site.URL+path)
		if status != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, status)
		}
		mustContain(t, body, "The requested question was not found.")
	}

	down, c := newSite(t, "http://127.0.0.1:1", WithTimeout(2*time.Second))
	for _, path := range []string{"/", "/questions/1"} {
		status, body := get(t, c, down.URL+path)
		if status != http.StatusBadGateway {
			t.Errorf("%s: status = %d, want 502", path, status)
		}
		mustContain(t, body, "Failed to load questions: unknown error", `href="`+path+`">Reload`)
	}
}

func TestCSRFRequired(t *testing.T) {
	apiSrv, solves := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL)

	resp, err := http.PostForm(site.URL+"/questions/1", url.Values{"prompt": {"42"}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no cookie: status = %d, want 403", resp.StatusCode)
	}

	get(t, c, site.URL+"/")
	resp, err = c.PostForm(site.URL+"/questions/1", url.Values{"prompt": {"42"}, "csrf_token": {"forged"}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("forged token: status = %d, want 403", resp.StatusCode)
	}
	if n := solves.Load(); n != 0 {
		t.Errorf("solve calls = %d, want 0", n)
	}
}

func TestSignupLoginLogout(t *testing.T) {
	apiSrv, _ := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL)
	get(t, c, site.URL+"/signup")

	status, body := post(t, c, site.URL, "/signup", url.Values{
		"username": {"alice"},
		"email":    {"alice@example.com"},
		"password": {"pw"},
	})
	if status != http.StatusOK {
		t.Fatalf("signup: status = %d\n%s", status, body)
	}
	mustContain(t, body, "Logged in as alice.", "Log out")

	_, body = post(t, c, site.URL, "/questions/3", url.Values{"prompt": {"10"}})
	mustContain(t, body, "✓ saved")

	_, body = post(t, c, site.URL, "/logout", url.Values{})
	if strings.Contains(body, "Logged in as") {
		t.Error("still logged in after logout")
	}
	mustContain(t, body, "Log in")

	get(t, c, site.URL+"/login")
	status, body = post(t, c, site.URL, "/login", url.Values{"email": {"alice@example.com"}, "password": {"wrong"}})
	if status != http.StatusUnauthorized {
		t.Errorf("bad login: status = %d, want 401", status)
	}
	mustContain(t, body, "Invalid email or password.", `value="alice@example.com"`)

	_, body = post(t, c, site.URL, "/login", url.Values{"email": {"alice@example.com"}, "password": {"pw"}})
	mustContain(t, body, "Logged in as alice.")
}

func TestBasePath(t *testing.T) {
	apiSrv, _ := newAPI(t, false)
	site, c := newSite(t, apiSrv.URL, WithBasePath("/cot"))

	status, body := get(t, c, site.URL+"/cot/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	mustContain(t, body, `href="/cot/questions/1"`, `href="/cot/login"`)

	status, body = post(t, c, site.URL, "/cot/questions/2", url.Values{"prompt": {"36"}})
	if status != http.StatusOK {
		t.Fatalf("status = %d\n%s", status, body)
	}
	mustContain(t, body, `href="/cot/questions/2">Try again`)
}
