// Package prompt checks user prompts before they may be submitted.
package prompt

import (
	"strings"
	"unicode/utf8"
)

// MaxLength is the maximum prompt length in Unicode code points.
const MaxLength = 2000

// ValidationError is a local, display-only prompt error.
type ValidationError struct {
	Code      string
	MessageID string // i18n message id
}

func (e *ValidationError) Error() string {
	return e.Code
}

var (
	// ErrEmptyPrompt is returned for empty or whitespace-only prompts.
	ErrEmptyPrompt = &ValidationError{Code: "empty_prompt", MessageID: "PromptEmpty"}
	// ErrTooLong is returned when a prompt exceeds MaxLength code points.
	ErrTooLong = &ValidationError{Code: "prompt_too_long", MessageID: "PromptTooLong"}
)

// Validate returns nil, ErrEmptyPrompt or ErrTooLong.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrompt
	}
	if Length(text) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Length counts code points, which is what MaxLength limits.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}
