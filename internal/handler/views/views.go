// Package views renders the web pages. Components are plain templ
// components so handlers render them the same way whatever produced them.
package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/present"
	"github.com/pavelanni/cotgame/internal/workflow"
)

const style = `
body{font-family:system-ui,sans-serif;max-width:52rem;margin:0 auto;padding:1rem;color:#1f2937}
nav{display:flex;gap:1rem;align-items:center;border-bottom:1px solid #e5e7eb;padding-bottom:.5rem;margin-bottom:1rem}
nav .user{margin-left:auto}
form.inline{display:inline}
.levels a{margin-right:.5rem}.levels a.active{font-weight:bold}
ul.questions{list-style:none;padding:0}ul.questions li{padding:.5rem 0;border-bottom:1px solid #f3f4f6}
.stars{color:#f59e0b}.tag{border:1px solid #d1d5db;border-radius:.75rem;padding:0 .5rem;margin-right:.25rem;font-size:.85rem}
.best{color:#6b7280;font-size:.85rem}
textarea{width:100%;min-height:10rem}
.error{color:#b91c1c}
.score{font-size:1.5rem}.tier-excellent{color:#15803d}.tier-good{color:#2563eb}.tier-fair{color:#ca8a04}.tier-poor{color:#b91c1c}
pre{white-space:pre-wrap;background:#f9fafb;padding:.75rem}
`

// printer writes HTML and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

// rawf formats into HTML. Arguments must already be escaped.
func (p *printer) rawf(format string, args ...any) {
	p.raw(fmt.Sprintf(format, args...))
}

func (p *printer) text(s string) {
	p.raw(esc(s))
}

func (p *printer) render(ctx context.Context, c templ.Component) {
	if p.err == nil {
		p.err = c.Render(ctx, p.w)
	}
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// href prefixes path with the base path and escapes it for an attribute.
func href(ctx context.Context, path string) string {
	return esc(model.BasePathFromContext(ctx) + path)
}

func t(ctx context.Context, id string) string {
	return esc(i18n.T(ctx, id))
}

func questionPath(id int64) string {
	return fmt.Sprintf("/questions/%d", id)
}

// layout wraps body in the page shell. titleID names the page title message;
// empty means the application title alone.
func layout(titleID string, titleData map[string]any, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		full := i18n.T(ctx, "AppTitle")
		if titleID != "" {
			full = i18n.Td(ctx, titleID, titleData) + " | " + full
		}
		p.raw("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
		p.raw("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n<title>")
		p.text(full)
		p.raw("</title>\n<style>" + style + "</style>\n</head>\n<body>\n")
		nav(ctx, p)
		p.raw("<main>\n")
		p.render(ctx, body)
		p.raw("</main>\n</body>\n</html>\n")
		return p.err
	})
}

func nav(ctx context.Context, p *printer) {
	p.rawf(`<nav><a href="%s">%s</a>`, href(ctx, "/"), t(ctx, "NavQuestions"))
	if user := model.UsernameFromContext(ctx); user != "" {
		p.rawf(`<span class="user">%s</span>`, esc(i18n.Td(ctx, "LoggedIn", map[string]any{"User": user})))
		p.rawf(`<form method="post" action="%s" class="inline">`, href(ctx, "/logout"))
		csrfField(ctx, p)
		p.rawf(`<button type="submit">%s</button></form>`, t(ctx, "NavLogout"))
	} else {
		p.rawf(`<span class="user"><a href="%s">%s</a> <a href="%s">%s</a></span>`,
			href(ctx, "/login"), t(ctx, "NavLogin"), href(ctx, "/signup"), t(ctx, "NavSignup"))
	}
	p.raw("</nav>\n")
}

func csrfField(ctx context.Context, p *printer) {
	p.rawf(`<input type="hidden" name="csrf_token" value="%s">`, esc(model.CSRFTokenFromContext(ctx)))
}

func tagChips(p *printer, ids []string) {
	for _, id := range ids {
		if tag, ok := model.TagByID(id); ok {
			p.rawf(`<span class="tag" style="border-color:%s" title="%s">%s %s</span>`,
				esc(tag.Color), esc(tag.Description), esc(tag.Icon), esc(tag.Label))
		} else {
			p.rawf(`<span class="tag">%s</span>`, esc(id))
		}
	}
}

// IndexData is what the question list page shows.
type IndexData struct {
	Questions []model.Question // already filtered and sorted
	Total     int              // catalog size before filtering
	Levels    []int
	Level     int // selected level, 0 for all
	Best      map[int64]model.QuestionBest
}

// IndexPage lists questions with a level filter.
func IndexPage(data IndexData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.rawf("<h1>%s</h1>\n", t(ctx, "AppTitle"))

		p.rawf(`<p class="levels">%s: `, t(ctx, "Difficulty"))
		levelLink(ctx, p, 0, esc(i18n.T(ctx, "AllLevels")), data.Level == 0)
		for _, lvl := range data.Levels {
			levelLink(ctx, p, lvl, esc(present.Stars(lvl)), data.Level == lvl)
		}
		p.raw("</p>\n")

		switch {
		case data.Total == 0:
			p.rawf("<p>%s</p>\n", t(ctx, "NoQuestions"))
			return p.err
		case len(data.Questions) == 0:
			p.rawf("<p>%s</p>\n", t(ctx, "NoQuestionsForLevel"))
			return p.err
		}

		p.rawf("<p>%s</p>\n<ul class=\"questions\">\n", esc(i18n.Tp(ctx, "QuestionsCount", len(data.Questions))))
		for _, q := range data.Questions {
			p.rawf(`<li><a href="%s">%s</a> <span class="stars">%s</span> `,
				href(ctx, questionPath(q.ID)),
				esc(i18n.Td(ctx, "QuestionTitle", map[string]any{"ID": q.ID})),
				esc(present.Stars(q.Level)))
			tagChips(p, q.Tags)
			if b, ok := data.Best[q.ID]; ok {
				p.rawf(`<span class="best">%s</span>`,
					esc(i18n.Td(ctx, "BestScore", map[string]any{"Score": b.BestScore, "Attempts": b.Attempts})))
			}
			p.raw("</li>\n")
		}
		p.raw("</ul>\n")
		return p.err
	})
	return layout("", nil, body)
}

func levelLink(ctx context.Context, p *printer, level int, label string, active bool) {
	class := ""
	if active {
		class = ` class="active"`
	}
	path := "/"
	if level > 0 {
		path = fmt.Sprintf("/?level=%d", level)
	}
	p.rawf(`<a href="%s"%s>%s</a>`, href(ctx, path), class, label)
}

// SolvePage shows a loaded question with either the prompt form or the result.
func SolvePage(snap workflow.Snapshot) templ.Component {
	q := snap.Question
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.rawf("<h1>%s</h1>\n", esc(i18n.Td(ctx, "QuestionTitle", map[string]any{"ID": q.ID})))
		p.rawf(`<p>%s <span class="stars">%s</span></p>`+"\n", t(ctx, "Difficulty"), esc(present.Stars(q.Level)))
		if len(q.Tags) > 0 {
			p.raw("<p>")
			tagChips(p, q.Tags)
			p.raw("</p>\n")
		}
		p.rawf("<p>%s</p>\n", t(ctx, "Instructions"))
		if tips := model.PromptTips(q.Tags); len(tips) > 0 {
			p.rawf("<details><summary>%s</summary><ul>", t(ctx, "PromptTipsTitle"))
			for _, tip := range tips {
				p.rawf("<li>%s</li>", esc(tip))
			}
			p.raw("</ul></details>\n")
		}

		if snap.State == workflow.StateResult && snap.Result != nil {
			result(ctx, p, snap)
		} else {
			promptForm(ctx, p, snap)
		}
		p.rawf(`<p><a href="%s">%s</a></p>`+"\n", href(ctx, "/"), t(ctx, "BackToList"))
		return p.err
	})
	return layout("QuestionTitle", map[string]any{"ID": q.ID}, body)
}

func promptForm(ctx context.Context, p *printer, snap workflow.Snapshot) {
	p.rawf(`<form method="post" action="%s">`+"\n", href(ctx, questionPath(snap.Question.ID)))
	csrfField(ctx, p)
	p.rawf(`<label for="prompt">%s</label>`+"\n", t(ctx, "PromptLabel"))
	p.raw(`<textarea id="prompt" name="prompt">`)
	p.text(snap.Prompt)
	p.raw("</textarea>\n")
	p.rawf(`<p class="count">%s</p>`+"\n", esc(present.CharCount(ctx, snap.Prompt)))
	if snap.SubmitErr != nil {
		p.rawf(`<p class="error" role="alert">%s</p>`+"\n",
			esc(i18n.Td(ctx, "SubmitFailed", map[string]any{"Message": snap.SubmitErr.Error()})))
	} else if snap.Validation != nil {
		p.rawf(`<p class="error" role="alert">%s</p>`+"\n", esc(present.ValidationMessage(ctx, snap.Validation)))
	}
	p.rawf(`<button type="submit">%s</button>`+"\n</form>\n", t(ctx, "SubmitButton"))
}

func result(ctx context.Context, p *printer, snap workflow.Snapshot) {
	r := snap.Result
	tier := present.ScoreTier(r.Score)
	p.rawf(`<p class="score tier-%s">%s: %d %s %s</p>`+"\n",
		tier, t(ctx, "YourScore"), r.Score, t(ctx, "Points"), esc(present.TierMessage(ctx, r.Score)))

	p.rawf("<h2>%s</h2>\n<pre class=\"prompt\">", t(ctx, "PromptLabel"))
	p.text(snap.Prompt)
	p.rawf("</pre>\n<h2>%s</h2>\n<pre class=\"output\">", t(ctx, "AIOutput"))
	p.text(strings.TrimRight(r.AIOutput, "\n"))
	p.raw("</pre>\n")

	p.rawf("<h2>%s</h2>\n<dl>\n", t(ctx, "Details"))
	detail(ctx, p, "ModelLabel", fmt.Sprintf("%s (%s)", r.ModelVendor, r.ModelName))
	detail(ctx, p, "ElapsedLabel", fmt.Sprintf("%dms", r.ElapsedMs))
	if r.HasAnswerNumber() {
		detail(ctx, p, "AnswerNumberLabel", present.FormatAnswerNumber(*r.AnswerNumber))
	}
	detail(ctx, p, "EvalModeLabel", present.EvaluationModeLabel(ctx, r.EvaluationMode()))
	saved := i18n.T(ctx, "SavedNo")
	if r.Saved {
		saved = i18n.T(ctx, "SavedYes")
	}
	detail(ctx, p, "SavedLabel", saved)
	p.raw("</dl>\n")

	p.rawf(`<p><a href="%s">%s</a></p>`+"\n", href(ctx, questionPath(snap.Question.ID)), t(ctx, "TryAgainButton"))
}

func detail(ctx context.Context, p *printer, labelID, value string) {
	p.rawf("<dt>%s</dt><dd>%s</dd>\n", t(ctx, labelID), esc(value))
}

// NotFoundPage is shown when the catalog has no question with the requested id.
func NotFoundPage() templ.Component {
	return layout("", nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.rawf("<p class=\"error\">%s</p>\n", t(ctx, "QuestionNotFound"))
		p.rawf(`<p><a href="%s">%s</a></p>`+"\n", href(ctx, "/"), t(ctx, "BackToList"))
		return p.err
	}))
}

// LoadErrorPage is shown when the catalog could not be fetched. retryPath
// reloads the page that failed.
func LoadErrorPage(message, retryPath string) templ.Component {
	return layout("", nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.rawf("<p class=\"error\" role=\"alert\">%s</p>\n", esc(i18n.Td(ctx, "LoadFailed", map[string]any{"Message": message})))
		p.rawf(`<p><a href="%s">%s</a></p>`+"\n", href(ctx, retryPath), t(ctx, "ReloadButton"))
		return p.err
	}))
}

// LoginPage renders the login form. errMsg is shown above it when set.
func LoginPage(errMsg, email string) templ.Component {
	return layout("NavLogin", nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.rawf("<h1>%s</h1>\n", t(ctx, "NavLogin"))
		formError(p, errMsg)
		p.rawf(`<form method="post" action="%s">`+"\n", href(ctx, "/login"))
		csrfField(ctx, p)
		input(ctx, p, "email", "email", "EmailLabel", email)
		input(ctx, p, "password", "password", "PasswordLabel", "")
		p.rawf(`<button type="submit">%s</button>`+"\n</form>\n", t(ctx, "NavLogin"))
		return p.err
	}))
}

// SignupPage renders the signup form. errMsg is shown above it when set.
func SignupPage(errMsg, username, email string) templ.Component {
	return layout("NavSignup", nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.rawf("<h1>%s</h1>\n", t(ctx, "NavSignup"))
		formError(p, errMsg)
		p.rawf(`<form method="post" action="%s">`+"\n", href(ctx, "/signup"))
		csrfField(ctx, p)
		input(ctx, p, "username", "text", "UsernameLabel", username)
		input(ctx, p, "email", "email", "EmailLabel", email)
		input(ctx, p, "password", "password", "PasswordLabel", "")
		p.rawf(`<button type="submit">%s</button>`+"\n</form>\n", t(ctx, "NavSignup"))
		return p.err
	}))
}

func formError(p *printer, msg string) {
	if msg != "" {
		p.rawf("<p class=\"error\" role=\"alert\">%s</p>\n", esc(msg))
	}
}

func input(ctx context.Context, p *printer, name, typ, labelID, value string) {
	p.rawf(`<p><label for="%s">%s</label><br><input id="%s" name="%s" type="%s" value="%s" required></p>`+"\n",
		name, t(ctx, labelID), name, name, typ, esc(value))
}
