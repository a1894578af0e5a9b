package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pavelanni/cotgame/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		question_id INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		tier TEXT NOT NULL DEFAULT '',
		evaluation_mode TEXT NOT NULL DEFAULT '',
		answer_number REAL,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		saved INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_question ON attempts(question_id, created_at);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAttempt stores a solve result. An empty ID gets a fresh UUID and a
// zero CreatedAt gets the current time. It returns the attempt ID.
func (s *Store) RecordAttempt(a model.Attempt) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var answer sql.NullFloat64
	if a.AnswerNumber != nil {
		answer = sql.NullFloat64{Float64: *a.AnswerNumber, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO attempts (id, question_id, prompt, model, score, tier, evaluation_mode, answer_number, elapsed_ms, saved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.QuestionID, a.Prompt, a.Model, a.Score, a.Tier, a.EvaluationMode, answer, a.ElapsedMs, a.Saved, a.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return a.ID, nil
}

// ListAttempts returns attempts newest first. questionID 0 means all
// questions; limit <= 0 means no limit.
func (s *Store) ListAttempts(questionID int64, limit int) ([]model.Attempt, error) {
	query := `SELECT id, question_id, prompt, model, score, tier, evaluation_mode, answer_number, elapsed_ms, saved, created_at
		FROM attempts WHERE 1=1`
	var args []any
	if questionID != 0 {
		query += ` AND question_id = ?`
		args = append(args, questionID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var answer sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Prompt, &a.Model, &a.Score, &a.Tier, &a.EvaluationMode, &answer, &a.ElapsedMs, &a.Saved, &a.CreatedAt); err != nil {
			return nil, err
		}
		if answer.Valid {
			v := answer.Float64
			a.AnswerNumber = &v
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// BestScores returns the best score and attempt count per question.
func (s *Store) BestScores() (map[int64]model.QuestionBest, error) {
	rows, err := s.db.Query(`SELECT question_id, MAX(score), COUNT(*) FROM attempts GROUP BY question_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	best := make(map[int64]model.QuestionBest)
	for rows.Next() {
		var qb model.QuestionBest
		if err := rows.Scan(&qb.QuestionID, &qb.BestScore, &qb.Attempts); err != nil {
			return nil, err
		}
		best[qb.QuestionID] = qb
	}
	return best, rows.Err()
}

// AttemptCount returns the number of recorded attempts.
func (s *Store) AttemptCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts`).Scan(&n)
	return n, err
}
