package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		const ellipsis = "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis

		// Wide runes may leave a gap of one column.
		if resultWidth := runewidth.StringWidth(result); resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text
}

// column describes one column of a printed table.
type column struct {
	title string
	width int // 0 means no padding, only valid for the last column
}

// printTable writes rows as fixed-width columns separated by two spaces.
func printTable(w io.Writer, cols []column, rows [][]string) {
	cells := make([]string, len(cols))
	line := func(values []string) {
		for i, c := range cols {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			cells[i] = padToWidth(v, c.width)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}

	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.title
	}
	line(titles)
	for _, row := range rows {
		line(row)
	}
}

// parseWhen parses the --at flag. It accepts RFC 3339, "2006-01-02 15:04"
// in local time, or a duration meaning that long before now.
func parseWhen(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration must not be negative: %s", value)
		}
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", value, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339, \"YYYY-MM-DD HH:MM\" or a duration like 2h", value)
}

// formatTime renders a timestamp for tables.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
