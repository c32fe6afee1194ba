package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

var (
	scrobbleAlbum      string
	scrobbleCount      int
	scrobbleAt         string
	scrobbleStep       time.Duration
	scrobbleNowPlaying bool
)

var scrobbleCmd = &cobra.Command{
	Use:   "scrobble <artist> <track>",
	Short: "Scrobble a single track one or more times",
	Long: `Scrobble a track to Last.fm.

With --count N the track is scrobbled N times, each play one step before
the previous one, starting at --at (default: now). --at accepts RFC 3339,
"YYYY-MM-DD HH:MM" in local time, or a duration like 3h meaning that long ago.

With --now-playing the track is only set as currently playing.`,
	Args: cobra.ExactArgs(2),
	RunE: runScrobble,
}

func init() {
	rootCmd.AddCommand(scrobbleCmd)
	scrobbleCmd.Flags().StringVar(&scrobbleAlbum, "album", "", "Album name")
	scrobbleCmd.Flags().IntVarP(&scrobbleCount, "count", "n", 1, "Number of plays to scrobble")
	scrobbleCmd.Flags().StringVar(&scrobbleAt, "at", "", "Timestamp of the most recent play")
	scrobbleCmd.Flags().DurationVar(&scrobbleStep, "step", 0, "Time between plays (default from config)")
	scrobbleCmd.Flags().BoolVar(&scrobbleNowPlaying, "now-playing", false, "Update now playing instead of scrobbling")
}

func runScrobble(cmd *cobra.Command, args []string) error {
	req := scrobbler.Request{Artist: args[0], Track: args[1], Album: scrobbleAlbum, Count: scrobbleCount}
	if err := scrobbler.ValidateRequests([]scrobbler.Request{req}); err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if scrobbleNowPlaying {
		if err := client.UpdateNowPlaying(ctx, req.Artist, req.Track, req.Album); err != nil {
			return fmt.Errorf("failed to update now playing: %w", err)
		}
		fmt.Printf("Now playing: %s - %s\n", req.Artist, req.Track)
		return nil
	}

	base, err := parseWhen(scrobbleAt, time.Now())
	if err != nil {
		return err
	}

	sub := e.submitter(client, scrobbleStep)
	if store := e.openHistory(); store != nil {
		defer store.Close()
		sub.SetRecorder(store)
	}

	result, err := sub.Submit(ctx, []scrobbler.Request{req}, base, nil)
	if err != nil {
		return err
	}
	return printResult(result)
}

// printResult writes the final summary and returns an error if nothing
// was accepted.
func printResult(r scrobbler.Result) error {
	// Failed includes scrobbles Last.fm ignored.
	fmt.Printf("Accepted: %d | Failed: %d | Total: %d/%d\n",
		r.Accepted, r.Failed, r.Processed, r.Total)
	if r.Cancelled() {
		fmt.Println("Submission cancelled.")
	}
	if r.SubmissionID != "" && r.Accepted < r.Total {
		fmt.Printf("Run 'backscrobble retry %s' to resubmit the rest.\n", shortID(r.SubmissionID))
	}
	if r.Total > 0 && r.Accepted == 0 && !r.Cancelled() {
		return fmt.Errorf("no scrobbles were accepted")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
