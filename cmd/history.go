package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/backscrobble/internal/history"
	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

var (
	historyLimit  int
	historyFilter string
	cleanupAge    time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past submissions",
	Long: `List recent bulk submissions recorded in the local history database.

Use 'history show [id]' to see the outcome of every scrobble in a
submission, and 'retry [id]' to resubmit the ones that failed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the scrobbles of a submission",
	Long: `Show every scrobble of a submission with its outcome.

The id may be any unique prefix of a submission ID. Without an id the most
recent submission is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistoryShow,
}

var historyCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old submissions from the history",
	Args:  cobra.NoArgs,
	RunE:  runHistoryCleanup,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanupCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of submissions to list")
	historyShowCmd.Flags().StringVar(&historyFilter, "outcome", "", "Only show scrobbles with this outcome (accepted, ignored, failed, pending)")
	historyCleanupCmd.Flags().DurationVar(&cleanupAge, "older-than", 30*24*time.Hour, "Delete submissions older than this")
}

// requireHistory opens the history database for commands that cannot run
// without it.
func (e *env) requireHistory() (*history.Store, error) {
	if !e.cfg.History {
		return nil, fmt.Errorf("history is disabled in the configuration")
	}
	if err := os.MkdirAll(e.cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := history.Open(e.cfg.HistoryDB())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// openStore loads the configuration and opens the history database.
func openStore() (*history.Store, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, err
	}
	return e.requireHistory()
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	subs, err := store.ListSubmissions(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No submissions recorded yet.")
		return nil
	}

	rows := make([][]string, len(subs))
	for i, s := range subs {
		rows[i] = []string{
			shortID(s.ID),
			formatTime(s.CreatedAt),
			s.State,
			strconv.Itoa(s.Accepted),
			strconv.Itoa(s.Failed),
			fmt.Sprintf("%d/%d", s.Processed, s.Total),
		}
	}
	printTable(os.Stdout, []column{
		{title: "ID", width: 8},
		{title: "STARTED", width: 16},
		{title: "STATE", width: 9},
		{title: "ACCEPTED", width: 8},
		{title: "FAILED", width: 6},
		{title: "SENT"},
	}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	var filter []scrobbler.Outcome
	if historyFilter != "" {
		o, err := parseOutcome(historyFilter)
		if err != nil {
			return err
		}
		filter = append(filter, o)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	sub, err := store.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	events, err := store.Events(ctx, sub.ID, filter...)
	if err != nil {
		return err
	}

	fmt.Printf("Submission %s (%s)\n", sub.ID, sub.State)
	if sub.RetryOf != "" {
		fmt.Printf("Retry of %s\n", sub.RetryOf)
	}
	fmt.Printf("Started %s, finished %s\n", formatTime(sub.CreatedAt), formatTime(sub.FinishedAt))
	fmt.Printf("Accepted: %d | Failed: %d | Total: %d/%d\n\n", sub.Accepted, sub.Failed, sub.Processed, sub.Total)

	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{
			formatTime(ev.Event.Timestamp),
			ev.Event.Artist,
			ev.Event.Track,
			string(ev.Outcome),
			ev.Reason,
		}
	}
	printTable(os.Stdout, []column{
		{title: "TIME", width: 16},
		{title: "ARTIST", width: 24},
		{title: "TRACK", width: 32},
		{title: "OUTCOME", width: 8},
		{title: "REASON"},
	}, rows)
	return nil
}

func runHistoryCleanup(cmd *cobra.Command, args []string) error {
	if cleanupAge <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.Cleanup(context.Background(), cleanupAge)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d submission(s).\n", deleted)
	return nil
}

func parseOutcome(s string) (scrobbler.Outcome, error) {
	switch o := scrobbler.Outcome(s); o {
	case scrobbler.OutcomeAccepted, scrobbler.OutcomeIgnored, scrobbler.OutcomeFailed, history.OutcomePending:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}
