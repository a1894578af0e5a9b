package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
	"github.com/pavelanni/cotgame/internal/present"
	"github.com/pavelanni/cotgame/internal/store"
	"github.com/pavelanni/cotgame/internal/workflow"
)

func solveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve <question-id>",
		Short: "Write a prompt for a question and get it scored",
		Long: `Loads the question, reads a prompt and submits it for evaluation.

Without --prompt or --prompt-file the prompt is read interactively; finish it
with a line containing only ".". After each result you can try again.`,
		Args: cobra.ExactArgs(1),
		RunE: runSolve,
	}
	f := cmd.Flags()
	f.StringP("prompt", "p", "", "Prompt text (non-interactive)")
	f.String("prompt-file", "", "Read the prompt from a file (- for stdin)")
	f.StringP("model", "m", workflow.DefaultModel, "Model identifier sent with the submission")
	f.Bool("no-history", false, "Do not record the attempt locally")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompt-file")
	return cmd
}

func runSolve(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid question id %q", args[0])
	}

	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	client, err := e.client()
	if err != nil {
		return err
	}

	s := &solveSession{
		ctx:         e.ctx,
		in:          bufio.NewReader(cmd.InOrStdin()),
		out:         cmd.OutOrStdout(),
		interactive: true,
	}
	if !e.v.GetBool("no-history") {
		s.db = e.db
	}
	switch {
	case cmd.Flags().Changed("prompt"):
		s.promptText = e.v.GetString("prompt")
		s.interactive = false
	case e.v.GetString("prompt-file") != "":
		text, err := readPromptFile(e.v.GetString("prompt-file"), cmd.InOrStdin())
		if err != nil {
			return err
		}
		s.promptText = text
		s.interactive = false
	}

	ctrl := workflow.New(client, client,
		workflow.WithModel(e.v.GetString("model")),
		workflow.WithLogger(slog.Default()),
	)
	defer ctrl.Close()

	return s.run(ctrl, id)
}

func readPromptFile(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// solveSession drives one question from the terminal.
type solveSession struct {
	ctx         context.Context
	in          *bufio.Reader
	out         io.Writer
	db          *store.Store // nil disables history
	interactive bool
	promptText  string // used when not interactive
}

func (s *solveSession) run(ctrl *workflow.Controller, id int64) error {
	fmt.Fprintln(s.out, appI18n.T(s.ctx, "Loading"))
	ctrl.Load(id)

	for {
		snap, err := ctrl.Wait(s.ctx, workflow.Settled)
		if err != nil {
			return err
		}

		switch snap.State {
		case workflow.StateNotFound:
			fmt.Fprintln(s.out, appI18n.T(s.ctx, "QuestionNotFound"))
			return fmt.Errorf("question %d: %w", id, workflow.ErrNotFoundInCatalog)

		case workflow.StateLoadError:
			fmt.Fprintln(s.out, appI18n.Td(s.ctx, "LoadFailed", map[string]any{"Message": snap.LoadErr.Error()}))
			if !s.interactive {
				return fmt.Errorf("load questions: %w", snap.LoadErr)
			}
			again, err := s.confirm("ReloadPrompt")
			if err != nil || !again {
				return fmt.Errorf("load questions: %w", snap.LoadErr)
			}
			ctrl.Reload()

		case workflow.StateReady:
			s.printQuestion(snap.Question)
			if err := s.submitNext(ctrl, snap); err != nil {
				return err
			}

		case workflow.StateEditing:
			if inline := snap.InlineError(); inline != nil {
				s.printInlineError(snap)
				if !s.interactive {
					return inline
				}
			}
			if err := s.submitNext(ctrl, snap); err != nil {
				return err
			}

		case workflow.StateResult:
			if err := present.FormatResult(s.ctx, s.out, snap.Result); err != nil {
				return err
			}
			s.record(snap)
			if !s.interactive {
				return nil
			}
			again, err := s.confirm("TryAgain")
			if err != nil || !again {
				return nil
			}
			ctrl.Retry()

		case workflow.StateClosed:
			return nil
		}
	}
}

// submitNext reads the next prompt and submits it. In non-interactive mode
// the prompt from flags is submitted once; a second call means it was rejected.
// After a failed submission an empty entry resubmits the kept prompt.
func (s *solveSession) submitNext(ctrl *workflow.Controller, snap workflow.Snapshot) error {
	text := s.promptText
	if s.interactive {
		resubmit := snap.SubmitErr != nil && snap.Prompt != ""
		if resubmit {
			fmt.Fprintln(s.out, appI18n.T(s.ctx, "ResubmitHint"))
		}
		var err error
		text, err = s.readPrompt()
		if errors.Is(err, io.EOF) && text == "" {
			ctrl.Close()
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if resubmit && text == "" {
			fmt.Fprintln(s.out, appI18n.T(s.ctx, "Submitting"))
			ctrl.Submit()
			return nil
		}
		fmt.Fprintln(s.out, present.CharCount(s.ctx, text))
	}

	ctrl.Edit(text)
	if ctrl.Snapshot().CanSubmit() {
		fmt.Fprintln(s.out, appI18n.T(s.ctx, "Submitting"))
	}
	ctrl.Submit()
	return nil
}

// readPrompt reads lines until one containing only ".". io.EOF is returned
// with whatever was read if the input ends first.
func (s *solveSession) readPrompt() (string, error) {
	fmt.Fprintln(s.out, appI18n.T(s.ctx, "EnterPrompt"))
	var lines []string
	for {
		line, err := s.in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			return strings.Join(lines, "\n"), nil
		}
		if err != nil {
			if trimmed != "" {
				lines = append(lines, trimmed)
			}
			return strings.Join(lines, "\n"), err
		}
		lines = append(lines, trimmed)
	}
}

func (s *solveSession) confirm(msgID string) (bool, error) {
	fmt.Fprint(s.out, appI18n.T(s.ctx, msgID))
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(s.out)
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes" || answer == "はい", nil
}

func (s *solveSession) printQuestion(q *model.Question) {
	fmt.Fprintf(s.out, "\n%s  %s %s\n",
		appI18n.Td(s.ctx, "QuestionTitle", map[string]any{"ID": q.ID}),
		appI18n.T(s.ctx, "Difficulty"),
		present.Stars(q.Level),
	)
	if len(q.Tags) > 0 {
		fmt.Fprintf(s.out, "%s: %s\n", appI18n.T(s.ctx, "Tags"), strings.Join(q.Tags, ", "))
	}
	fmt.Fprintln(s.out, appI18n.T(s.ctx, "Instructions"))
	if tips := model.PromptTips(q.Tags); len(tips) > 0 {
		fmt.Fprintf(s.out, "\n%s\n", appI18n.T(s.ctx, "PromptTipsTitle"))
		for _, tip := range tips {
			fmt.Fprintf(s.out, "  • %s\n", tip)
		}
	}
	fmt.Fprintln(s.out)
}

func (s *solveSession) printInlineError(snap workflow.Snapshot) {
	if snap.SubmitErr != nil {
		fmt.Fprintln(s.out, appI18n.Td(s.ctx, "SubmitFailed", map[string]any{"Message": snap.SubmitErr.Error()}))
		return
	}
	fmt.Fprintln(s.out, present.ValidationMessage(s.ctx, snap.Validation))
}

func (s *solveSession) record(snap workflow.Snapshot) {
	if s.db == nil || snap.Result == nil {
		return
	}
	r := snap.Result
	id, err := s.db.RecordAttempt(present.NewAttempt(snap.Question.ID, snap.Prompt, snap.Model, r))
	if err != nil {
		slog.Warn("failed to record attempt", "question_id", snap.Question.ID, "error", err)
		return
	}
	slog.Debug("recorded attempt", "id", id, "question_id", snap.Question.ID, "score", r.Score)
}
