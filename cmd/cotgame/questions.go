package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/present"
)

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the question catalog",
		Args:  cobra.NoArgs,
		RunE:  runQuestions,
	}
	f := cmd.Flags()
	f.IntP("level", "L", 0, "Show only this difficulty level (1-5, 0 = all)")
	f.StringP("tag", "t", "", "Show only questions with this tag")
	return cmd
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	client, err := e.client()
	if err != nil {
		return err
	}
	qs, err := client.ListQuestions(e.ctx)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	best, err := e.db.BestScores()
	if err != nil {
		return fmt.Errorf("read best scores: %w", err)
	}
	return printQuestions(e.ctx, cmd.OutOrStdout(), qs, best, e.v.GetInt("level"), e.v.GetString("tag"))
}

// printQuestions writes the catalog sorted by level with the best local
// score next to each attempted question.
func printQuestions(ctx context.Context, w io.Writer, qs []model.Question, best map[int64]model.QuestionBest, level int, tag string) error {
	if len(qs) == 0 {
		_, err := fmt.Fprintln(w, appI18n.T(ctx, "NoQuestions"))
		return err
	}
	shown := present.FilterByTag(present.FilterByLevel(present.SortByLevel(qs), level), tag)
	if len(shown) == 0 {
		_, err := fmt.Fprintln(w, appI18n.T(ctx, "NoQuestionsForLevel"))
		return err
	}

	fmt.Fprintln(w, appI18n.Tp(ctx, "QuestionsCount", len(shown)))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, q := range shown {
		var labels []string
		for _, id := range q.Tags {
			if t, ok := model.TagByID(id); ok {
				labels = append(labels, t.Icon+" "+t.Label)
			} else {
				labels = append(labels, id)
			}
		}
		score := ""
		if b, ok := best[q.ID]; ok {
			score = appI18n.Td(ctx, "BestScore", map[string]any{"Score": b.BestScore, "Attempts": b.Attempts})
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			appI18n.Td(ctx, "QuestionTitle", map[string]any{"ID": q.ID}),
			present.Stars(q.Level),
			strings.Join(labels, ", "),
			score,
		)
	}
	return tw.Flush()
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Show question tags with prompt tips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer e.close()
			return printTags(e.ctx, cmd.OutOrStdout())
		},
	}
}

func printTags(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, appI18n.T(ctx, "PromptTipsTitle"))
	for _, t := range model.AllTags() {
		fmt.Fprintf(w, "\n%s %s (%s)\n  %s\n  → %s\n", t.Icon, t.Label, t.ID, t.Description, t.PromptTips)
	}
	return nil
}
