package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"neofeed/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

// Reader is a read-only view of the store for long running servers
type Reader struct {
	db *sql.DB
}

func NewReader(database string) (*Reader, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=query_only(1)", database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &Reader{db: db}, nil
}

func (reader *Reader) Close() error {
	return reader.db.Close()
}

func (reader *Reader) QueryByStartDate(ctx context.Context, date string, limit int) ([]models.StoredResponse, error) {
	return queryResponses(ctx, reader.db, date, limit)
}

func (reader *Reader) All(ctx context.Context, limit int) ([]models.StoredResponse, error) {
	return queryResponses(ctx, reader.db, "", limit)
}

// Count returns the number of stored rows
func (reader *Reader) Count(ctx context.Context) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("count(*)").From("api_response").Build()

	var count int64
	if err := reader.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query error: %w", err)
	}
	return count, nil
}

func queryResponses(ctx context.Context, db *sql.DB, startDate string, limit int) ([]models.StoredResponse, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "start_date", "end_date", "response").From("api_response")
	if startDate != "" {
		sb.Where(sb.Equal("start_date", startDate))
	}
	sb.OrderBy("id").Asc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	responses := []models.StoredResponse{}
	for rows.Next() {
		var row models.StoredResponse
		if err := rows.Scan(&row.ID, &row.StartDate, &row.EndDate, &row.Response); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		responses = append(responses, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	return responses, nil
}
