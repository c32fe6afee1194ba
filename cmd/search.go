package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <artist> <track>",
	Short: "Search Last.fm for a track",
	Long: `Search the Last.fm catalogue for a track.

Use this to check the exact artist and track names Last.fm knows before
scrobbling. The artist may be empty ("") to search by track name only.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 10, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", searchLimit)
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	results, err := client.Search(context.Background(), args[0], args[1], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matching tracks.")
		return nil
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.Name, r.Artist, strconv.Itoa(r.Listeners)}
	}
	printTable(os.Stdout, []column{
		{title: "TRACK", width: 40},
		{title: "ARTIST", width: 30},
		{title: "LISTENERS"},
	}, rows)
	return nil
}
