// Package history records bulk submissions and the outcome of every event
// in a local SQLite database so failed plays can be retried later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jfmyers9/backscrobble/internal/scrobbler"
)

// OutcomePending marks an event that was never sent, usually because the
// submission was cancelled first.
const OutcomePending scrobbler.Outcome = "pending"

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// Store persists submissions using SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Submission is one recorded bulk submission.
type Submission struct {
	ID         string
	CreatedAt  time.Time
	FinishedAt time.Time // zero while running or if the process died
	Total      int
	Processed  int
	Accepted   int
	Failed     int
	State      string
	RetryOf    string // source submission when this is a retry
}

// StoredEvent is an event together with its recorded outcome.
type StoredEvent struct {
	Seq     int
	Event   scrobbler.Event
	Outcome scrobbler.Outcome
	Reason  string
}

// Open opens or creates the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases consistent and is
	// plenty for one CLI process.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			finished_at INTEGER,
			total INTEGER NOT NULL,
			processed INTEGER NOT NULL DEFAULT 0,
			accepted INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			retry_of TEXT REFERENCES submissions(id) ON DELETE SET NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT,
			timestamp INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT,
			source_seq INTEGER,
			PRIMARY KEY (submission_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
		CREATE INDEX IF NOT EXISTS idx_events_outcome ON events(submission_id, outcome);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := addMissingColumns(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// addMissingColumns upgrades databases created before retries were
// linked to their source.
func addMissingColumns(db *sql.DB) error {
	columns := []struct{ table, name, decl string }{
		{"submissions", "retry_of", "TEXT REFERENCES submissions(id) ON DELETE SET NULL"},
		{"events", "source_seq", "INTEGER"},
	}
	for _, c := range columns {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", c.table, c.name).Scan(&n); err != nil {
			return fmt.Errorf("failed to inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.decl)); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.table, c.name, err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Begin records a new submission with every event pending.
func (s *Store) Begin(ctx context.Context, events []scrobbler.Event) (string, error) {
	return s.begin(ctx, events, "", nil)
}

// begin inserts a submission. When source is set, sourceSeqs[i] is the
// seq of the source event that events[i] resubmits.
func (s *Store) begin(ctx context.Context, events []scrobbler.Event, source string, sourceSeqs []int) (string, error) {
	if source != "" && len(sourceSeqs) != len(events) {
		return "", fmt.Errorf("retry of %s: %d events for %d source events", source, len(events), len(sourceSeqs))
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO submissions (id, created_at, total, state, retry_of) VALUES (?, ?, ?, ?, ?)",
		id, s.now().Unix(), len(events), scrobbler.StateSubmitting.String(), nullString(source),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert submission: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (submission_id, seq, artist, track, album, timestamp, outcome, source_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		var sourceSeq sql.NullInt64
		if source != "" {
			sourceSeq = sql.NullInt64{Int64: int64(sourceSeqs[i]), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, i, e.Artist, e.Track, e.Album, e.Timestamp.Unix(), string(OutcomePending), sourceSeq); err != nil {
			return "", fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

// RecordBatch stores the outcomes of the events starting at offset. For a
// retry, each outcome is also written to the event it resubmits, and so
// on back to the first submission, so a play accepted on retry is no
// longer retryable anywhere.
func (s *Store) RecordBatch(ctx context.Context, id string, offset int, outcomes []scrobbler.EventOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE events SET outcome = ?, reason = ? WHERE submission_id = ? AND seq = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, o := range outcomes {
		result, err := stmt.ExecContext(ctx, string(o.Outcome), nullString(o.Reason), id, offset+i)
		if err != nil {
			return fmt.Errorf("failed to record event %d: %w", offset+i, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("event %d of submission %s not found", offset+i, id)
		}
		if err := propagateOutcome(ctx, tx, id, offset+i, o); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Finish stores the final tally of a submission.
func (s *Store) Finish(ctx context.Context, id string, result scrobbler.Result) error {
	query := `
		UPDATE submissions
		SET finished_at = ?, processed = ?, accepted = ?, failed = ?, state = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		s.now().Unix(),
		result.Processed,
		result.Accepted,
		result.Failed,
		result.State.String(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish submission: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// propagateOutcome follows the retry links of event (id, seq) and applies
// o to every earlier event it stands for.
func propagateOutcome(ctx context.Context, tx *sql.Tx, id string, seq int, o scrobbler.EventOutcome) error {
	for {
		var source sql.NullString
		var sourceSeq sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			SELECT s.retry_of, e.source_seq
			FROM events e JOIN submissions s ON s.id = e.submission_id
			WHERE e.submission_id = ? AND e.seq = ?
		`, id, seq).Scan(&source, &sourceSeq)
		if err != nil {
			return fmt.Errorf("failed to look up source of event %d: %w", seq, err)
		}
		if !source.Valid || !sourceSeq.Valid {
			return nil
		}

		id, seq = source.String, int(sourceSeq.Int64)
		_, err = tx.ExecContext(ctx,
			"UPDATE events SET outcome = ?, reason = ? WHERE submission_id = ? AND seq = ?",
			string(o.Outcome), nullString(o.Reason), id, seq,
		)
		if err != nil {
			return fmt.Errorf("failed to update source event %d of %s: %w", seq, id, err)
		}
	}
}

// ListSubmissions returns the most recent submissions first.
// Optionally limits the number of results
func (s *Store) ListSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	query := `
		SELECT id, created_at, COALESCE(finished_at, 0), total, processed, accepted, failed, state, COALESCE(retry_of, '')
		FROM submissions
		ORDER BY created_at DESC, rowid DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return subs, nil
}

// GetSubmission looks up a submission by ID or unique ID prefix. An empty
// id selects the most recent submission.
func (s *Store) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	query := `
		SELECT id, created_at, COALESCE(finished_at, 0), total, processed, accepted, failed, state, COALESCE(retry_of, '')
		FROM submissions
		WHERE id LIKE ? || '%'
		ORDER BY created_at DESC, rowid DESC
		LIMIT 2
	`

	rows, err := s.db.QueryContext(ctx, query, escapeLike(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query submission: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	switch {
	case len(subs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case len(subs) > 1 && id != "":
		return nil, fmt.Errorf("submission id %q is ambiguous", id)
	}
	return &subs[0], nil
}

// Events returns the events of a submission in order, optionally only
// those with one of the given outcomes.
func (s *Store) Events(ctx context.Context, id string, outcomes ...scrobbler.Outcome) ([]StoredEvent, error) {
	query := `
		SELECT seq, artist, track, COALESCE(album, ''), timestamp, outcome, COALESCE(reason, '')
		FROM events
		WHERE submission_id = ?
	`
	args := []interface{}{id}

	if len(outcomes) > 0 {
		placeholders := make([]string, len(outcomes))
		for i, o := range outcomes {
			placeholders[i] = "?"
			args = append(args, string(o))
		}
		query += " AND outcome IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var timestampUnix int64
		var outcome string

		err := rows.Scan(
			&e.Seq,
			&e.Event.Artist,
			&e.Event.Track,
			&e.Event.Album,
			&timestampUnix,
			&outcome,
			&e.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.Event.Timestamp = time.Unix(timestampUnix, 0)
		e.Outcome = scrobbler.Outcome(outcome)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// retryableOutcomes lists the outcomes worth sending again.
func retryableOutcomes(includeIgnored bool) []scrobbler.Outcome {
	outcomes := []scrobbler.Outcome{scrobbler.OutcomeFailed, OutcomePending}
	if includeIgnored {
		outcomes = append(outcomes, scrobbler.OutcomeIgnored)
	}
	return outcomes
}

// RetryableEvents returns the events of a submission that were lost to an
// error or never sent. Ignored events are included on request.
func (s *Store) RetryableEvents(ctx context.Context, id string, includeIgnored bool) ([]scrobbler.Event, error) {
	stored, err := s.Events(ctx, id, retryableOutcomes(includeIgnored)...)
	if err != nil {
		return nil, err
	}

	events := make([]scrobbler.Event, len(stored))
	for i, e := range stored {
		events[i] = e.Event
	}
	return events, nil
}

// Retry resubmits the retryable events of an earlier submission. Used as
// the Submitter's Recorder, it records the new submission as a retry of
// the source so outcomes flow back to the source events.
type Retry struct {
	store  *Store
	source string
	seqs   []int
	events []scrobbler.Event
}

// NewRetry collects the retryable events of submission id.
func (s *Store) NewRetry(ctx context.Context, id string, includeIgnored bool) (*Retry, error) {
	stored, err := s.Events(ctx, id, retryableOutcomes(includeIgnored)...)
	if err != nil {
		return nil, err
	}

	r := &Retry{
		store:  s,
		source: id,
		seqs:   make([]int, len(stored)),
		events: make([]scrobbler.Event, len(stored)),
	}
	for i, e := range stored {
		r.seqs[i] = e.Seq
		r.events[i] = e.Event
	}
	return r, nil
}

// Events returns the events to resubmit, in their original order.
func (r *Retry) Events() []scrobbler.Event {
	return r.events
}

// Begin records the retry submission. events must be the ones returned
// by Events.
func (r *Retry) Begin(ctx context.Context, events []scrobbler.Event) (string, error) {
	return r.store.begin(ctx, events, r.source, r.seqs)
}

// RecordBatch stores outcomes on the retry and its source.
func (r *Retry) RecordBatch(ctx context.Context, id string, offset int, outcomes []scrobbler.EventOutcome) error {
	return r.store.RecordBatch(ctx, id, offset, outcomes)
}

// Finish stores the final tally of the retry.
func (r *Retry) Finish(ctx context.Context, id string, result scrobbler.Result) error {
	return r.store.Finish(ctx, id, result)
}

// Cleanup removes submissions older than maxAge along with their events.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).Unix()

	result, err := s.db.ExecContext(ctx, "DELETE FROM submissions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old submissions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var createdUnix, finishedUnix int64

	err := row.Scan(
		&sub.ID,
		&createdUnix,
		&finishedUnix,
		&sub.Total,
		&sub.Processed,
		&sub.Accepted,
		&sub.Failed,
		&sub.State,
		&sub.RetryOf,
	)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to scan submission: %w", err)
	}

	sub.CreatedAt = time.Unix(createdUnix, 0)
	if finishedUnix > 0 {
		sub.FinishedAt = time.Unix(finishedUnix, 0)
	}
	return sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// escapeLike strips LIKE wildcards from a user supplied prefix.
func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}

var (
	_ scrobbler.Recorder = (*Store)(nil)
	_ scrobbler.Recorder = (*Retry)(nil)
)
