package eventlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/repository"
)

// DefaultDBWriteTimeout bounds a single insert.
const DefaultDBWriteTimeout = 2 * time.Second

// DBSink appends events to the SQLite events table.
type DBSink struct {
	repo    *repository.EventRepository
	db      *sql.DB
	timeout time.Duration
}

// NewDBSink creates a sink over db. The sink closes db on Close.
func NewDBSink(db *sql.DB) *DBSink {
	return &DBSink{
		repo:    repository.NewEventRepository(db),
		db:      db,
		timeout: DefaultDBWriteTimeout,
	}
}

// Repository returns the repository the sink writes through.
func (s *DBSink) Repository() *repository.EventRepository {
	return s.repo
}

// Write inserts ev.
func (s *DBSink) Write(ev model.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Append(ctx, ev)
}

// Close closes the database.
func (s *DBSink) Close() error {
	return s.db.Close()
}
