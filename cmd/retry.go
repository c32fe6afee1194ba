package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var retryIncludeIgnored bool

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Resubmit the scrobbles a submission lost",
	Long: `Resubmit the scrobbles of a past submission that failed or were never
sent, keeping their original timestamps. Without an id the most recent
submission is retried. Outcomes of the retry are written back to the
original submission, so plays accepted on retry are not sent again.

Scrobbles Last.fm ignored are only resubmitted with --include-ignored;
they are usually ignored again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
	retryCmd.Flags().BoolVar(&retryIncludeIgnored, "include-ignored", false, "Also resubmit scrobbles Last.fm ignored")
	retryCmd.Flags().BoolVar(&bulkTUI, "tui", false, "Show an interactive progress view")
	retryCmd.Flags().BoolVarP(&bulkQuiet, "quiet", "q", false, "Only print the final summary")
}

func runRetry(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	client, err := e.authedClient()
	if err != nil {
		return err
	}
	store, err := e.requireHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	sub, err := store.GetSubmission(context.Background(), id)
	if err != nil {
		return err
	}
	retry, err := store.NewRetry(context.Background(), sub.ID, retryIncludeIgnored)
	if err != nil {
		return err
	}
	events := retry.Events()
	if len(events) == 0 {
		fmt.Printf("Nothing to retry in submission %s.\n", shortID(sub.ID))
		return nil
	}

	fmt.Printf("Retrying %d scrobble(s) from submission %s.\n", len(events), shortID(sub.ID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := e.submitter(client, 0)
	s.SetRecorder(retry)
	return runEvents(ctx, s, events)
}
