package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/cotgame/internal/handler"
	"github.com/pavelanni/cotgame/internal/workflow"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser front end for the puzzle API",
		Long: `Serves the question list, solve and login pages. Pages call the API at
--api-url; scored solves are recorded in the local history database.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("model", "m", workflow.DefaultModel, "Model identifier sent with each submission")
	f.String("base-path", "", "URL path prefix, e.g. /cot")
	f.Bool("secure-cookies", false, "Mark cookies Secure (serve behind HTTPS)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	h := handler.New(e.v.GetString("api-url"),
		handler.WithStore(e.db),
		handler.WithModel(e.v.GetString("model")),
		handler.WithTimeout(e.v.GetDuration("timeout")),
		handler.WithUserAgent("cotgame/"+version),
		handler.WithLang(e.v.GetString("lang")),
		handler.WithBasePath(e.v.GetString("base-path")),
		handler.WithSecureCookies(e.v.GetBool("secure-cookies")),
	)
	srv := &http.Server{
		Addr:              e.v.GetString("addr"),
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting web server", "addr", srv.Addr, "api_url", e.v.GetString("api-url"))
	return listenAndServe(e.ctx, srv, "web server")
}

// listenAndServe runs srv until it fails or the process is interrupted,
// then shuts it down gracefully.
func listenAndServe(ctx context.Context, srv *http.Server, name string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
