package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/backscrobble/internal/scrobbler"
	"github.com/jfmyers9/backscrobble/pkg/lastfm"
)

var (
	albumScrobble bool
	albumCount    int
	albumAt       string
	albumStep     time.Duration
)

var albumCmd = &cobra.Command{
	Use:   "album <artist> <album>",
	Short: "List an album's tracks, optionally scrobbling them",
	Long: `Look up an album on Last.fm and list its tracks.

With --scrobble every track is scrobbled --count times, in album order,
exactly as if the tracks were listed in a bulk file. The first play is at
--at (default: now) and each following play is one step earlier.`,
	Args: cobra.ExactArgs(2),
	RunE: runAlbum,
}

func init() {
	rootCmd.AddCommand(albumCmd)
	albumCmd.Flags().BoolVar(&albumScrobble, "scrobble", false, "Scrobble the album")
	albumCmd.Flags().IntVarP(&albumCount, "count", "n", 1, "Number of times to scrobble each track")
	albumCmd.Flags().StringVar(&albumAt, "at", "", "Timestamp of the most recent play")
	albumCmd.Flags().DurationVar(&albumStep, "step", 0, "Time between plays (default from config)")
	albumCmd.Flags().BoolVarP(&bulkYes, "yes", "y", false, "Skip the confirmation prompt")
	albumCmd.Flags().BoolVar(&bulkTUI, "tui", false, "Show an interactive progress view")
}

func runAlbum(cmd *cobra.Command, args []string) error {
	if albumCount <= 0 {
		return fmt.Errorf("--count must be positive, got %d", albumCount)
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	info, err := client.AlbumTracks(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("album lookup failed: %w", err)
	}
	if info == nil || len(info.Tracks) == 0 {
		return fmt.Errorf("no tracks found for %s - %s", args[0], args[1])
	}

	fmt.Printf("%s - %s\n\n", info.Artist, info.Name)
	rows := make([][]string, len(info.Tracks))
	for i, t := range info.Tracks {
		rows[i] = []string{strconv.Itoa(t.Rank), t.Name, formatSeconds(t.Duration)}
	}
	printTable(os.Stdout, []column{
		{title: "#", width: 3},
		{title: "TRACK", width: 50},
		{title: "LENGTH"},
	}, rows)

	if !albumScrobble {
		return nil
	}
	if !client.IsAuthenticated() {
		return fmt.Errorf("not authenticated with Last.fm. Run 'backscrobble auth' first")
	}

	now := time.Now()
	base, err := parseWhen(albumAt, now)
	if err != nil {
		return err
	}
	step := albumStep
	if step == 0 {
		step = e.cfg.Scrobble.Step
	}
	reqs := albumRequests(info, albumCount)
	if err := scrobbler.ValidateRequests(reqs); err != nil {
		return err
	}
	events := scrobbler.Expand(reqs, base, step)

	fmt.Println()
	printPreview(events, len(info.Tracks), e.cfg.Scrobble.BatchSize, now)
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

// albumRequests builds one request per track, in album order, each
// played count times.
func albumRequests(info *lastfm.AlbumInfo, count int) []scrobbler.Request {
	reqs := make([]scrobbler.Request, len(info.Tracks))
	for i, t := range info.Tracks {
		reqs[i] = scrobbler.Request{
			Artist: info.Artist,
			Track:  t.Name,
			Album:  info.Name,
			Count:  count,
		}
	}
	return reqs
}

func formatSeconds(s int) string {
	if s <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
