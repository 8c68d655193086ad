package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQLite driver for the listen history database
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"ragam/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS listens (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id    TEXT NOT NULL,
	title       TEXT NOT NULL,
	artist      TEXT NOT NULL,
	played_at   TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_listens_played_at ON listens (played_at DESC);
`

// Recorder stores listen events in SQLite and answers recent-history queries.
// A bounded seen set suppresses repeat plays of the same track within one
// session; restarting the process starts a fresh session.
type Recorder struct {
	db     *sql.DB
	seen   *SeenSet
	logger *zap.Logger
}

// NewRecorder opens (or creates) the history database at path.
func NewRecorder(path string, seenCapacity int, logger *zap.Logger) (*Recorder, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Recorder{
		db:     db,
		seen:   NewSeenSet(seenCapacity),
		logger: logger,
	}, nil
}

// Record persists one listen event. Repeat plays of a track already heard this
// session are dropped silently.
func (r *Recorder) Record(ctx context.Context, event core.ListenEvent) error {
	if r.seen.Has(event.TrackID) {
		r.logger.Debug("Skipping repeat listen", zap.String("trackID", event.TrackID))
		return nil
	}

	playedAt := event.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listens (track_id, title, artist, played_at, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		event.TrackID, event.Title, event.Artist, playedAt.UTC(), event.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record listen: %w", err)
	}

	r.seen.Add(event.TrackID)

	r.logger.Debug("Listen recorded",
		zap.String("trackID", event.TrackID),
		zap.String("title", event.Title),
		zap.String("artist", event.Artist))

	return nil
}

// Recent returns up to limit listen events, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]core.ListenEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT track_id, title, artist, played_at, duration_ms FROM listens ORDER BY played_at DESC, id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query listen history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []core.ListenEvent
	for rows.Next() {
		var event core.ListenEvent
		var durationMs int64
		if err := rows.Scan(&event.TrackID, &event.Title, &event.Artist, &event.PlayedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan listen row: %w", err)
		}
		event.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listen history: %w", err)
	}

	return events, nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
