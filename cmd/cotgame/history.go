package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/present"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show locally recorded attempts",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.Int64P("question", "q", 0, "Show only attempts for this question id")
	f.IntP("limit", "n", 20, "Maximum number of attempts to show (0 = all)")
	f.Bool("json", false, "Export all matching attempts as JSON")
	f.StringP("output", "o", "-", "Output file for --json (- for stdout)")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	questionID := e.v.GetInt64("question")
	if e.v.GetBool("json") {
		export, err := e.db.ExportHistory(e.v.GetString("api-url"), questionID)
		if err != nil {
			return fmt.Errorf("export history: %w", err)
		}
		return writeExport(cmd.OutOrStdout(), e.v.GetString("output"), export)
	}

	attempts, err := e.db.ListAttempts(questionID, e.v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	return printHistory(e.ctx, cmd.OutOrStdout(), attempts)
}

func printHistory(ctx context.Context, w io.Writer, attempts []model.Attempt) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, appI18n.T(ctx, "HistoryEmpty"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, a := range attempts {
		answer := appI18n.T(ctx, "NotAvailable")
		if a.AnswerNumber != nil {
			answer = present.FormatAnswerNumber(*a.AnswerNumber)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d %s\t%s\t%s\t%s\n",
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
			appI18n.Td(ctx, "QuestionTitle", map[string]any{"ID": a.QuestionID}),
			a.Score, appI18n.T(ctx, "Points"),
			present.TierMessage(ctx, a.Score),
			answer,
			a.Model,
		)
	}
	return tw.Flush()
}

func writeExport(stdout io.Writer, outPath string, export model.HistoryExport) error {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	w := stdout
	if outPath != "" && outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
