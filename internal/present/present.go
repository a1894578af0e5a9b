// Package present derives display values from questions and solve results.
package present

import (
	"sort"
	"strings"

	"github.com/pavelanni/cotgame/internal/model"
)

// Tier is a four-bucket classification of a 0..100 score.
type Tier int

const (
	TierPoor Tier = iota
	TierFair
	TierGood
	TierExcellent
)

// Tier thresholds (inclusive lower bounds).
const (
	ExcellentMin = 90
	GoodMin      = 70
	FairMin      = 50
)

// MaxLevel is the highest question level.
const MaxLevel = 5

func (t Tier) String() string {
	switch t {
	case TierExcellent:
		return "excellent"
	case TierGood:
		return "good"
	case TierFair:
		return "fair"
	default:
		return "poor"
	}
}

// ScoreTier maps a score to its tier. Callers only pass 0..100.
func ScoreTier(score int) Tier {
	switch {
	case score >= ExcellentMin:
		return TierExcellent
	case score >= GoodMin:
		return TierGood
	case score >= FairMin:
		return TierFair
	default:
		return TierPoor
	}
}

// TierMessageID returns the i18n message id of the tier's message.
func TierMessageID(t Tier) string {
	switch t {
	case TierExcellent:
		return "TierExcellent"
	case TierGood:
		return "TierGood"
	case TierFair:
		return "TierFair"
	default:
		return "TierPoor"
	}
}

// Stars renders a level as five filled or empty stars, e.g. ★★★☆☆.
func Stars(level int) string {
	level = max(0, min(level, MaxLevel))
	return strings.Repeat("★", level) + strings.Repeat("☆", MaxLevel-level)
}

// SortByLevel returns a copy of qs ordered by level, easiest first.
// Questions of equal level keep their server order.
func SortByLevel(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	copy(out, qs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// FilterByLevel keeps questions of the given level. Level 0 keeps all.
func FilterByLevel(qs []model.Question, level int) []model.Question {
	if level == 0 {
		return qs
	}
	var out []model.Question
	for _, q := range qs {
		if q.Level == level {
			out = append(out, q)
		}
	}
	return out
}

// FilterByTag keeps questions carrying tag. An empty tag keeps all.
func FilterByTag(qs []model.Question, tag string) []model.Question {
	if tag == "" {
		return qs
	}
	var out []model.Question
	for _, q := range qs {
		for _, t := range q.Tags {
			if t == tag {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// UniqueLevels returns the distinct levels in qs, ascending.
func UniqueLevels(qs []model.Question) []int {
	seen := make(map[int]bool)
	var levels []int
	for _, q := range qs {
		if !seen[q.Level] {
			seen[q.Level] = true
			levels = append(levels, q.Level)
		}
	}
	sort.Ints(levels)
	return levels
}

// NewAttempt builds the local history record for a scored submission.
func NewAttempt(questionID int64, promptText, modelName string, r *model.SolveResponse) model.Attempt {
	return model.Attempt{
		QuestionID:     questionID,
		Prompt:         promptText,
		Model:          modelName,
		Score:          r.Score,
		Tier:           ScoreTier(r.Score).String(),
		EvaluationMode: r.EvaluationMode(),
		AnswerNumber:   r.AnswerNumber,
		ElapsedMs:      r.ElapsedMs,
		Saved:          r.Saved,
	}
}
