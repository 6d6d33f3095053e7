package db

import (
	"context"
	"database/sql"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// TidyReport describes the store after compaction
type TidyReport struct {
	Rows int64
	// Ranges is the number of distinct (start_date, end_date) pairs
	Ranges int64
	// Duplicates counts rows beyond the first for each stored range
	Duplicates int64
}

// Tidy compacts the database file. Rows are never removed, duplicate
// coverage is only reported.
func Tidy(ctx context.Context, database string) (TidyReport, error) {
	if err := Migrate(database); err != nil {
		return TidyReport{}, err
	}
	db, err := connection(database)
	if err != nil {
		return TidyReport{}, err
	}
	defer db.Close()

	return tidy(ctx, db)
}

func tidy(ctx context.Context, db *sql.DB) (TidyReport, error) {
	var report TidyReport

	rows := sqlbuilder.SQLite.NewSelectBuilder()
	rows.Select("COUNT(*)").From("api_response")
	query, args := rows.Build()
	if err := db.QueryRowContext(ctx, query, args...).Scan(&report.Rows); err != nil {
		return report, err
	}

	grouped := sqlbuilder.SQLite.NewSelectBuilder()
	grouped.Select("start_date").From("api_response").GroupBy("start_date", "end_date")
	ranges := sqlbuilder.SQLite.NewSelectBuilder()
	ranges.Select("COUNT(*)").From(ranges.BuilderAs(grouped, "r"))
	query, args = ranges.Build()
	if err := db.QueryRowContext(ctx, query, args...).Scan(&report.Ranges); err != nil {
		return report, err
	}
	report.Duplicates = report.Rows - report.Ranges

	log.WithFields(log.Fields{
		"rows":       report.Rows,
		"ranges":     report.Ranges,
		"duplicates": report.Duplicates,
	}).Info("Tidying database")

	for _, stmt := range []string{
		"PRAGMA wal_checkpoint(TRUNCATE)",
		"VACUUM",
		"PRAGMA optimize",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return report, err
		}
	}
	return report, nil
}
