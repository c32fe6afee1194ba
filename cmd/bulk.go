package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/backscrobble/internal/scrobbler"
	"github.com/jfmyers9/backscrobble/internal/tui"
	"github.com/jfmyers9/backscrobble/pkg/lastfm"
)

var (
	bulkAt    string
	bulkStep  time.Duration
	bulkYes   bool
	bulkTUI   bool
	bulkQuiet bool
)

var bulkCmd = &cobra.Command{
	Use:   "bulk <file>",
	Short: "Scrobble a list of tracks in bulk",
	Long: `Scrobble every track listed in a CSV or YAML file.

CSV files have the columns artist,track,album,count; album and count are
optional and a header row is skipped. YAML files hold a list of entries
with the same keys, optionally under a top-level "requests" key.

Plays are backdated one step apart starting at --at (default: now) and
submitted in batches. Press Ctrl-C (or c in the TUI) to stop after the
current batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runBulk,
}

func init() {
	rootCmd.AddCommand(bulkCmd)
	bulkCmd.Flags().StringVar(&bulkAt, "at", "", "Timestamp of the most recent play")
	bulkCmd.Flags().DurationVar(&bulkStep, "step", 0, "Time between plays (default from config)")
	bulkCmd.Flags().BoolVarP(&bulkYes, "yes", "y", false, "Skip the confirmation prompt")
	bulkCmd.Flags().BoolVar(&bulkTUI, "tui", false, "Show an interactive progress view")
	bulkCmd.Flags().BoolVarP(&bulkQuiet, "quiet", "q", false, "Only print the final summary")
}

func runBulk(cmd *cobra.Command, args []string) error {
	reqs, err := scrobbler.LoadRequests(args[0])
	if err != nil {
		return err
	}
	if err := scrobbler.ValidateRequests(reqs); err != nil {
		return err
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	client, err := e.authedClient()
	if err != nil {
		return err
	}

	now := time.Now()
	base, err := parseWhen(bulkAt, now)
	if err != nil {
		return err
	}
	step := bulkStep
	if step == 0 {
		step = e.cfg.Scrobble.Step
	}

	events := scrobbler.Expand(reqs, base, step)
	if len(events) == 0 {
		fmt.Println("Nothing to scrobble.")
		return nil
	}

	printPreview(events, len(reqs), e.cfg.Scrobble.BatchSize, now)
	if !bulkYes && !confirm(bufio.NewReader(os.Stdin), "\nSubmit? [y/N]: ", false) {
		fmt.Println("Aborted.")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sub := e.submitter(client, step)
	if store := e.openHistory(); store != nil {
		defer store.Close()
		sub.SetRecorder(store)
	}

	return runEvents(ctx, sub, events)
}

// runEvents submits events through a Job, showing either the TUI or
// progress lines, and prints the final summary.
func runEvents(ctx context.Context, sub *scrobbler.Submitter, events []scrobbler.Event) error {
	job := sub.StartEvents(ctx, events)

	if bulkTUI {
		if err := tui.New().Run(ctx, job, len(events)); err != nil {
			job.Cancel()
			return err
		}
		// Quitting the TUI cancels the job; wait for the in-flight batch.
		job.Cancel()
	} else {
		for p := range job.Progress() {
			if !bulkQuiet {
				fmt.Println(p.Message)
			}
		}
	}

	result, err := job.Wait()
	if err != nil {
		return err
	}
	return printResult(result)
}

func printPreview(events []scrobbler.Event, requests, batchSize int, now time.Time) {
	if batchSize <= 0 || batchSize > lastfm.MaxBatchSize {
		batchSize = lastfm.MaxBatchSize
	}
	batches := (len(events) + batchSize - 1) / batchSize
	oldest := scrobbler.OldestTimestamp(events)

	fmt.Printf("Tracks:    %d\n", requests)
	fmt.Printf("Scrobbles: %d in %d batch(es)\n", len(events), batches)
	fmt.Printf("From:      %s\n", formatTime(oldest))
	fmt.Printf("To:        %s\n", formatTime(events[0].Timestamp))

	if n := scrobbler.CountTooOld(events, now); n > 0 {
		fmt.Printf("\nWarning: %d scrobble(s) are older than %d days and will likely be ignored by Last.fm.\n",
			n, int(scrobbler.MaxScrobbleAge/(24*time.Hour)))
	}
	if len(events) > scrobbler.DailyScrobbleLimit {
		fmt.Printf("\nWarning: Last.fm accepts about %d scrobbles per day; the rest may be ignored.\n",
			scrobbler.DailyScrobbleLimit)
	}
}
