package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/backscrobble/internal/config"
	"github.com/jfmyers9/backscrobble/internal/history"
	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	logLevel string
	logFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backscrobble",
	Short: "Bulk scrobbler for Last.fm",
	Long: `backscrobble submits plays to Last.fm in bulk.

Give it a list of tracks and how many times each was played, and it
fabricates backdated timestamps one step apart, then submits them in
batches of up to 50 while reporting progress.

It also provides track search, album lookups and a local history of
submissions so failed plays can be retried.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	level := zerolog.WarnLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	toStderr := true
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			output = f
			toStderr = false
		}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if toStderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}

// env bundles what most commands need.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &env{cfg: cfg, logger: setupLogger(logFile, logLevel)}, nil
}

// client creates a Last.fm client from the loaded configuration.
func (e *env) client() (*scrobbler.Client, error) {
	if e.cfg.LastFM.APIKey == "" {
		return nil, fmt.Errorf("no Last.fm API key configured. Run 'backscrobble auth' first")
	}
	return scrobbler.New(scrobbler.Options{
		APIKey:     e.cfg.LastFM.APIKey,
		APISecret:  e.cfg.LastFM.APISecret,
		SessionKey: e.cfg.LastFM.SessionKey,
		BaseURL:    e.cfg.LastFM.BaseURL,
		CacheTTL:   e.cfg.Cache.TTL,
		CacheSize:  e.cfg.Cache.Size,
		Logger:     e.logger,
	})
}

// authedClient is client, but fails early without a session key.
func (e *env) authedClient() (*scrobbler.Client, error) {
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	if !client.IsAuthenticated() {
		return nil, fmt.Errorf("not authenticated with Last.fm. Run 'backscrobble auth' first")
	}
	return client, nil
}

// submitter builds a Submitter from the configuration. The step override
// is ignored when zero.
func (e *env) submitter(api scrobbler.BatchAPI, step time.Duration) *scrobbler.Submitter {
	if step == 0 {
		step = e.cfg.Scrobble.Step
	}
	return scrobbler.NewSubmitter(api, scrobbler.SubmitOptions{
		BatchSize:      e.cfg.Scrobble.BatchSize,
		Step:           step,
		Delay:          orDisabled(e.cfg.Scrobble.BatchDelay),
		FailureBackoff: orDisabled(e.cfg.Scrobble.FailureBackoff),
	}, e.logger)
}

// orDisabled maps a configured zero to the Submitter's "disabled" value.
func orDisabled(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// openHistory opens the history store, or returns nil when history is
// disabled. Failure to open is logged and history is skipped.
func (e *env) openHistory() *history.Store {
	if !e.cfg.History {
		return nil
	}
	if err := os.MkdirAll(e.cfg.DataDir, 0755); err != nil {
		e.logger.Warn().Err(err).Str("data_dir", e.cfg.DataDir).Msg("Failed to create data directory, history disabled")
		return nil
	}
	store, err := history.Open(e.cfg.HistoryDB())
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to open history, continuing without it")
		return nil
	}
	return store
}
