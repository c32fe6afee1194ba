package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

const maxRecentBatches = 5

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
	Title       string        // Shown in the header panel
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 500 * time.Millisecond,
		Title:       "Bulk scrobble",
	}
}

// Job is the part of a running submission the TUI needs.
type Job interface {
	Progress() <-chan scrobbler.Progress
	Done() <-chan struct{}
	Cancel()
}

// App is the TUI application for following a bulk submission
type App struct {
	app      *tview.Application
	header   *tview.TextView
	progress *tview.TextView
	stats    *tview.TextView
	recent   *tview.TextView
	status   *tview.TextView

	config Config
	job    Job

	// Mutex protects shared state accessed by both the progress consumer
	// goroutine and the ticker goroutine in handleUpdates.
	mu sync.Mutex

	// Current state (guarded by mu)
	state view

	// Ring buffer for recent batch messages
	recentBuf   [maxRecentBatches]string
	recentCount int

	// Last-rendered content for change detection
	lastProgress string
	lastStats    string
	lastRecent   string
	lastStatus   string

	// Cached progress bar width to stabilize change detection.
	lastBarWidth int

	cancelFunc context.CancelFunc
}

// view is a snapshot of everything rendered.
type view struct {
	latest     scrobbler.Progress
	total      int
	started    time.Time
	finishedAt time.Time
	cancelling bool
	finished   bool
}

// New creates a new TUI application with default config
func New() *App {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(cfg Config) *App {
	a := &App{
		app:    tview.NewApplication(),
		config: cfg,
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBorder(true).
		SetTitle(" backscrobble ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.stats = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.stats.SetBorder(true).
		SetTitle(" Totals ").
		SetTitleAlign(tview.AlignLeft)

	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Batches ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]c:cancel  q:quit[-]")

	// Header on top, progress bar, totals | recent batches, status bar.
	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.stats, 0, 1, false).
		AddItem(a.recent, 0, 2, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 1, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, 0, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.cancelJob()
		a.app.Stop()
		return nil
	case 'c', 'C':
		a.cancelJob()
		return nil
	}
	return event
}

// cancelJob asks the submission to stop at the next batch boundary.
func (a *App) cancelJob() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.job == nil || a.state.finished {
		return
	}
	a.state.cancelling = true
	a.job.Cancel()
}

// Run shows the progress of job until the user quits. The job keeps its
// own lifecycle: quitting cancels it, and the caller should still Wait.
func (a *App) Run(ctx context.Context, job Job, total int) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	a.mu.Lock()
	a.job = job
	a.state = view{total: total, started: time.Now()}
	a.mu.Unlock()

	a.header.SetText(fmt.Sprintf("[white::b]%s[-:-:-]  [gray]%d scrobbles[-]", tview.Escape(a.config.Title), total))

	go a.handleUpdates(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// handleUpdates consumes job progress and redraws on a single ticker.
func (a *App) handleUpdates(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-a.job.Progress():
				if !ok {
					<-a.job.Done()
					a.mu.Lock()
					a.state.finished = true
					a.state.finishedAt = time.Now()
					a.mu.Unlock()
					a.refresh()
					return
				}
				a.mu.Lock()
				a.state.latest = p
				a.addRecent(p.Message)
				a.mu.Unlock()
			}
		}
	}()

	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// addRecent must be called with a.mu held.
func (a *App) addRecent(msg string) {
	a.recentBuf[a.recentCount%maxRecentBatches] = msg
	a.recentCount++
}

// getRecent returns recent messages newest first. Must be called with
// a.mu held.
func (a *App) getRecent() []string {
	n := a.recentCount
	if n > maxRecentBatches {
		n = maxRecentBatches
	}
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = a.recentBuf[(a.recentCount-1-i)%maxRecentBatches]
	}
	return result
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateProgress()
		a.updateStats()
		a.updateRecent()
		a.updateStatus()
	})
}

func (a *App) updateProgress() {
	_, _, width, _ := a.progress.GetInnerRect()
	barWidth := width - 16
	if barWidth > 0 {
		a.lastBarWidth = barWidth
	}
	if a.lastBarWidth < 10 {
		a.lastBarWidth = 10
	}

	p := a.state.latest
	text := fmt.Sprintf("%s %s", buildProgressBar(p.Processed, a.state.total, a.lastBarWidth), formatPercent(p.Processed, a.state.total))
	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

func (a *App) updateStats() {
	now := time.Now()
	if a.state.finished {
		now = a.state.finishedAt
	}
	text := renderStats(a.state.latest, a.state.total, now.Sub(a.state.started))
	if text != a.lastStats {
		a.lastStats = text
		a.stats.SetText(text)
	}
}

func (a *App) updateRecent() {
	msgs := a.getRecent()
	text := "[gray]Waiting for first batch...[-]"
	if len(msgs) > 0 {
		text = tview.Escape(strings.Join(msgs, "\n"))
	}
	if text != a.lastRecent {
		a.lastRecent = text
		a.recent.SetText(text)
	}
}

func (a *App) updateStatus() {
	var text string
	switch {
	case a.state.finished && a.state.latest.Processed < a.state.total:
		text = "[yellow]Cancelled[-]  [gray]q:quit[-]"
	case a.state.finished:
		text = "[green]✓ Finished[-]  [gray]q:quit[-]"
	case a.state.cancelling:
		text = "[yellow]Cancelling after the current batch...[-]"
	default:
		text = "[gray]c:cancel  q:quit[-]"
	}
	if text != a.lastStatus {
		a.lastStatus = text
		a.status.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// renderStats formats the totals panel.
func renderStats(p scrobbler.Progress, total int, elapsed time.Duration) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[green]Accepted:[-] %d\n", p.Accepted))
	sb.WriteString(fmt.Sprintf("[red]Failed:[-]   %d\n", p.Failed))
	sb.WriteString(fmt.Sprintf("Sent:     %d/%d\n", p.Processed, total))
	if p.Batches > 0 {
		sb.WriteString(fmt.Sprintf("Batch:    %d/%d\n", p.Batch, p.Batches))
	}
	sb.WriteString(fmt.Sprintf("Elapsed:  %s", formatDuration(elapsed)))
	if eta, ok := estimateRemaining(p.Processed, total, elapsed); ok {
		sb.WriteString(fmt.Sprintf("\nETA:      %s", formatDuration(eta)))
	}
	return sb.String()
}

// estimateRemaining extrapolates the remaining time from the rate so far.
func estimateRemaining(done, total int, elapsed time.Duration) (time.Duration, bool) {
	if done <= 0 || done >= total || elapsed <= 0 {
		return 0, false
	}
	perEvent := elapsed / time.Duration(done)
	return perEvent * time.Duration(total-done), true
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return strings.Repeat("-", width)
	}

	progress := float64(done) / float64(total)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

func formatPercent(done, total int) string {
	if total <= 0 {
		return "  0%"
	}
	return fmt.Sprintf("%3d%%", done*100/total)
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
