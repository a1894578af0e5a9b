package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/cotgame/internal/api"
	appI18n "github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cotgame",
		Short:        "Solve hidden puzzles by writing prompts for an AI",
		Version:      version,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("api-url", api.DefaultBaseURL, "Puzzle API base URL")
	pf.String("db", "cotgame.db", "SQLite database for local history and login token")
	pf.StringP("lang", "l", "en", "Message language (en, ja)")
	pf.Duration("timeout", 60*time.Second, "HTTP request timeout")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	root.AddCommand(
		questionsCmd(),
		solveCmd(),
		tagsCmd(),
		historyCmd(),
		signupCmd(),
		loginCmd(),
		logoutCmd(),
		devserverCmd(),
		serveCmd(),
	)
	return root
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COTGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("cotgame")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/cotgame")
	v.AddConfigPath("/etc/cotgame")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// env is what every command needs after flags are resolved.
type env struct {
	v   *viper.Viper
	ctx context.Context
	db  *store.Store
}

// setup configures logging and i18n and opens the local store unless
// withStore is false. The caller must call close.
func setup(cmd *cobra.Command, withStore bool) (*env, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if !appI18n.Supported(lang) {
		slog.Warn("unsupported language, using en", "lang", lang)
		lang = "en"
	}
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e := &env{v: v, ctx: appI18n.WithLang(ctx, lang)}
	if withStore {
		db, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		e.db = db
	}
	return e, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
}

// client builds an API client, attaching the saved login token when a store is open.
func (e *env) client() (*api.Client, error) {
	opts := []api.Option{
		api.WithTimeout(e.v.GetDuration("timeout")),
		api.WithUserAgent("cotgame/" + version),
	}
	if e.db != nil {
		token, err := e.db.GetMetadata(store.KeyAuthToken)
		if err != nil {
			return nil, fmt.Errorf("read saved token: %w", err)
		}
		if token != "" {
			opts = append(opts, api.WithToken(token))
		}
	}
	return api.New(e.v.GetString("api-url"), opts...), nil
}
