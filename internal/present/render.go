package present

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/prompt"
)

// TierMessage returns the localized message for the score's tier.
func TierMessage(ctx context.Context, score int) string {
	return i18n.T(ctx, TierMessageID(ScoreTier(score)))
}

// EvaluationModeLabel returns mode, or the localized "N/A" when it is empty.
func EvaluationModeLabel(ctx context.Context, mode string) string {
	if mode == "" {
		return i18n.T(ctx, "NotAvailable")
	}
	return mode
}

// ValidationMessage localizes a prompt validation error. Other errors are
// shown verbatim, nil gives "".
func ValidationMessage(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}
	var ve *prompt.ValidationError
	if errors.As(err, &ve) {
		return i18n.Td(ctx, ve.MessageID, map[string]any{"Max": prompt.MaxLength})
	}
	return err.Error()
}

// CharCount renders the "n / 2000" prompt counter.
func CharCount(ctx context.Context, text string) string {
	return i18n.Td(ctx, "CharCount", map[string]any{
		"Count": prompt.Length(text),
		"Max":   prompt.MaxLength,
	})
}

// FormatAnswerNumber renders a float without a trailing ".0" for integers.
func FormatAnswerNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatResult writes the result view for resp.
func FormatResult(ctx context.Context, w io.Writer, resp *model.SolveResponse) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: %d %s  %s\n", i18n.T(ctx, "YourScore"), resp.Score, i18n.T(ctx, "Points"), TierMessage(ctx, resp.Score))
	sb.WriteString("\n" + i18n.T(ctx, "AIOutput") + "\n")
	sb.WriteString(strings.TrimRight(resp.AIOutput, "\n") + "\n")

	sb.WriteString("\n" + i18n.T(ctx, "Details") + "\n")
	fmt.Fprintf(&sb, "  %s: %s (%s)\n", i18n.T(ctx, "ModelLabel"), resp.ModelVendor, resp.ModelName)
	fmt.Fprintf(&sb, "  %s: %dms\n", i18n.T(ctx, "ElapsedLabel"), resp.ElapsedMs)
	if resp.HasAnswerNumber() {
		fmt.Fprintf(&sb, "  %s: %s\n", i18n.T(ctx, "AnswerNumberLabel"), FormatAnswerNumber(*resp.AnswerNumber))
	}
	fmt.Fprintf(&sb, "  %s: %s\n", i18n.T(ctx, "EvalModeLabel"), EvaluationModeLabel(ctx, resp.EvaluationMode()))
	saved := i18n.T(ctx, "SavedNo")
	if resp.Saved {
		saved = i18n.T(ctx, "SavedYes")
	}
	fmt.Fprintf(&sb, "  %s: %s\n", i18n.T(ctx, "SavedLabel"), saved)

	_, err := io.WriteString(w, sb.String())
	return err
}
