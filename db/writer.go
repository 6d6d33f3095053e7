package db

import (
	"context"
	"database/sql"
	"fmt"

	"neofeed/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// PersistenceError is returned when a feed body could not be written
type PersistenceError struct {
	Range models.DateRange
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting response %s: %v", e.Range, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store is the append-only response store. Rows are never updated or
// removed and the same range may be stored any number of times.
type Store struct {
	db *sql.DB
}

// Open migrates the database at path and returns a store holding a single
// connection
func Open(path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	db, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores the raw body for a range and returns the new row id
func (s *Store) Append(ctx context.Context, r models.DateRange, raw string) (int64, error) {
	log.WithFields(log.Fields{
		"start_date": r.StartString(),
		"end_date":   r.EndString(),
		"bytes":      len(raw),
	}).Info("Saving feed response")

	insert := sqlbuilder.SQLite.NewInsertBuilder()
	query, args := insert.InsertInto("api_response").
		Cols("start_date", "end_date", "response").
		Values(r.StartString(), r.EndString(), raw).
		Build()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &PersistenceError{Range: r, Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &PersistenceError{Range: r, Err: fmt.Errorf("getting inserted id: %w", err)}
	}
	return id, nil
}

// QueryByStartDate returns rows for a start date in insertion order.
// A limit of zero or less returns every row.
func (s *Store) QueryByStartDate(ctx context.Context, date string, limit int) ([]models.StoredResponse, error) {
	return queryResponses(ctx, s.db, date, limit)
}

// All returns every stored row in insertion order
func (s *Store) All(ctx context.Context, limit int) ([]models.StoredResponse, error) {
	return queryResponses(ctx, s.db, "", limit)
}
