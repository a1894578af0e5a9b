package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/cotgame/internal/devserver"
	"github.com/pavelanni/cotgame/internal/llm"
)

func devserverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the puzzle API",
		Args:  cobra.NoArgs,
		RunE:  runDevserver,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8081", "HTTP listen address")
	f.String("fixtures", "", "YAML question fixtures (built-in set when empty)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (echo model when empty)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	return cmd
}

func runDevserver(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer e.close()

	fixtures, err := devserver.LoadFixtures(e.v.GetString("fixtures"))
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	lang := e.v.GetString("lang")
	opts := []devserver.Option{devserver.WithLang(lang)}
	if url := e.v.GetString("llm-url"); url != "" {
		llmClient := llm.New(url, e.v.GetString("llm-key"), e.v.GetString("llm-model"))
		if err := llmClient.Ping(e.ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", llmClient.Model())
		opts = append(opts, devserver.WithAnswerer(llmClient, llm.Vendor))
	}

	srv := &http.Server{
		Addr:              e.v.GetString("addr"),
		Handler:           devserver.New(fixtures, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting dev server", "addr", srv.Addr, "questions", len(fixtures), "lang", lang)
	return listenAndServe(e.ctx, srv, "dev server")
}
