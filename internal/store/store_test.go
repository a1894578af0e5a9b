package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/cotgame/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func recordTestAttempt(t *testing.T, s *Store, questionID int64, score int, minutes int) string {
	t.Helper()
	id, err := s.RecordAttempt(model.Attempt{
		QuestionID: questionID,
		Prompt:     "prompt for question",
		Model:      "gemini-2.0-flash-lite",
		Score:      score,
		CreatedAt:  base.Add(time.Duration(minutes) * time.Minute),
	})
	if err != nil {
		t.Fatalf("recordTestAttempt: %v", err)
	}
	return id
}

func TestAttemptRoundTrip(t *testing.T) {
	s := newTestStore(t)

	// Empty DB.
	count, err := s.AttemptCount()
	if err != nil {
		t.Fatalf("AttemptCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 attempts, got %d", count)
	}

	answer := 42.5
	id, err := s.RecordAttempt(model.Attempt{
		QuestionID:     7,
		Prompt:         "計算してください",
		Model:          "gemini-2.0-flash-lite",
		Score:          95,
		Tier:           "excellent",
		EvaluationMode: "exact_match",
		AnswerNumber:   &answer,
		ElapsedMs:      812,
		Saved:          true,
		CreatedAt:      base,
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	list, err := s.ListAttempts(7, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(list))
	}
	a := list[0]
	if a.ID != id || a.QuestionID != 7 || a.Prompt != "計算してください" || a.Score != 95 {
		t.Errorf("unexpected attempt %+v", a)
	}
	if a.Tier != "excellent" || a.EvaluationMode != "exact_match" || a.ElapsedMs != 812 || !a.Saved {
		t.Errorf("unexpected attempt details %+v", a)
	}
	if a.AnswerNumber == nil || *a.AnswerNumber != 42.5 {
		t.Errorf("expected answer number 42.5, got %v", a.AnswerNumber)
	}
	if !a.CreatedAt.Equal(base) {
		t.Errorf("expected created_at %v, got %v", base, a.CreatedAt)
	}
}

func TestAttemptWithoutAnswerNumber(t *testing.T) {
	s := newTestStore(t)
	recordTestAttempt(t, s, 1, 0, 0)

	list, err := s.ListAttempts(1, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(list))
	}
	if list[0].AnswerNumber != nil {
		t.Errorf("expected nil answer number, got %v", *list[0].AnswerNumber)
	}
}

func TestListAttemptsFilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	first := recordTestAttempt(t, s, 1, 40, 0)
	recordTestAttempt(t, s, 2, 80, 1)
	last := recordTestAttempt(t, s, 1, 90, 2)

	all, err := s.ListAttempts(0, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(all))
	}
	if all[0].ID != last {
		t.Errorf("expected newest first, got %s", all[0].ID)
	}

	q1, err := s.ListAttempts(1, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(q1) != 2 || q1[0].ID != last || q1[1].ID != first {
		t.Errorf("unexpected question 1 attempts %+v", q1)
	}

	limited, err := s.ListAttempts(0, 1)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 attempt with limit, got %d", len(limited))
	}
}

func TestBestScores(t *testing.T) {
	s := newTestStore(t)
	recordTestAttempt(t, s, 1, 40, 0)
	recordTestAttempt(t, s, 1, 90, 1)
	recordTestAttempt(t, s, 1, 70, 2)
	recordTestAttempt(t, s, 3, 0, 3)

	best, err := s.BestScores()
	if err != nil {
		t.Fatalf("BestScores: %v", err)
	}
	if len(best) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(best))
	}
	if b := best[1]; b.BestScore != 90 || b.Attempts != 3 {
		t.Errorf("question 1: %+v", b)
	}
	if b := best[3]; b.BestScore != 0 || b.Attempts != 1 {
		t.Errorf("question 3: %+v", b)
	}
	if _, ok := best[2]; ok {
		t.Error("question 2 has no attempts")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata(KeyAuthToken)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value, got %q", v)
	}

	if err := s.SetMetadata("lang", "en"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("lang", "ja"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	if v, _ := s.GetMetadata("lang"); v != "ja" {
		t.Errorf("expected 'ja', got %q", v)
	}

	if err := s.DeleteMetadata("lang"); err != nil {
		t.Fatalf("DeleteMetadata: %v", err)
	}
	if v, _ := s.GetMetadata("lang"); v != "" {
		t.Errorf("expected deleted key, got %q", v)
	}
	if err := s.DeleteMetadata("missing"); err != nil {
		t.Errorf("DeleteMetadata on missing key: %v", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveLogin("tok-123", "alice"); err != nil {
		t.Fatalf("SaveLogin: %v", err)
	}
	if v, _ := s.GetMetadata(KeyAuthToken); v != "tok-123" {
		t.Errorf("expected token 'tok-123', got %q", v)
	}
	if v, _ := s.GetMetadata(KeyUsername); v != "alice" {
		t.Errorf("expected username 'alice', got %q", v)
	}

	if err := s.ClearLogin(); err != nil {
		t.Fatalf("ClearLogin: %v", err)
	}
	if v, _ := s.GetMetadata(KeyAuthToken); v != "" {
		t.Errorf("expected cleared token, got %q", v)
	}
}

func TestExportHistory(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.ExportHistory("http://localhost:8081", 0)
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if empty.NumAttempts != 0 || empty.Attempts == nil {
		t.Errorf("expected empty non-nil attempts, got %+v", empty)
	}

	recordTestAttempt(t, s, 1, 50, 0)
	recordTestAttempt(t, s, 2, 60, 1)

	exp, err := s.ExportHistory("http://localhost:8081", 2)
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if exp.APIURL != "http://localhost:8081" {
		t.Errorf("unexpected api url %q", exp.APIURL)
	}
	if exp.NumAttempts != 1 || exp.Attempts[0].QuestionID != 2 {
		t.Errorf("unexpected export %+v", exp)
	}
	if exp.ExportedAt.IsZero() {
		t.Error("expected exported_at to be set")
	}
}

func TestNewFailsOnUnusablePath(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(filepath.Join(dir, "missing", "history.db")); err == nil {
		t.Fatal("expected an error for a database in a missing directory")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failed open left files behind: %v", entries)
	}
}
