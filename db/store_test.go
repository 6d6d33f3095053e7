package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"neofeed/db"
	"neofeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*db.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.db")
	store, err := db.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	r := models.MustDateRange("2020-01-01", "2020-01-08")

	id, err := store.Append(ctx, r, "X")
	require.NoError(t, err)
	assert.Positive(t, id)

	rows, err := store.QueryByStartDate(ctx, "2020-01-01", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "2020-01-01", rows[0].StartDate)
	assert.Equal(t, "2020-01-08", rows[0].EndDate)
	assert.Equal(t, "X", rows[0].Response)
}

func TestAppendKeepsDuplicatesInInsertionOrder(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	r := models.MustDateRange("2020-01-01", "2020-01-08")

	for _, body := range []string{"first", "second", "third"} {
		_, err := store.Append(ctx, r, body)
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, models.MustDateRange("2020-01-09", "2020-01-16"), "other")
	require.NoError(t, err)

	rows, err := store.QueryByStartDate(ctx, "2020-01-01", 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "first", rows[0].Response)
	assert.Equal(t, "second", rows[1].Response)
	assert.Equal(t, "third", rows[2].Response)

	limited, err := store.QueryByStartDate(ctx, "2020-01-01", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := store.All(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "other", all[3].Response)
}

func TestQueryUnknownDateIsEmpty(t *testing.T) {
	store, _ := openStore(t)

	rows, err := store.QueryByStartDate(context.Background(), "1999-01-01", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReaderSeesStoredRows(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	_, err := store.Append(ctx, models.MustDateRange("2021-06-01", "2021-06-08"), `{"element_count":0}`)
	require.NoError(t, err)

	reader, err := db.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	count, err := reader.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rows, err := reader.QueryByStartDate(ctx, "2021-06-01", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `{"element_count":0}`, rows[0].Response)
}

func TestAppendAfterCloseIsPersistenceError(t *testing.T) {
	store, _ := openStore(t)
	require.NoError(t, store.Close())

	_, err := store.Append(context.Background(), models.MustDateRange("2020-01-01", "2020-01-02"), "X")
	require.Error(t, err)

	var persistErr *db.PersistenceError
	assert.ErrorAs(t, err, &persistErr)
}

func TestTidyReportsDuplicatesWithoutRemovingRows(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	week := models.MustDateRange("2020-01-01", "2020-01-08")
	next := week.Next()

	for _, r := range []models.DateRange{week, week, next} {
		_, err := store.Append(ctx, r, "{}")
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	report, err := db.Tidy(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, db.TidyReport{Rows: 3, Ranges: 2, Duplicates: 1}, report)

	reader, err := db.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()
	count, err := reader.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
