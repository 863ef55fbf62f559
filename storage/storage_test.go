package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Minionjack/Trade-info-scraper/model"
	"github.com/Minionjack/Trade-info-scraper/signal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "signals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testRecord(url string, dir signal.Direction) model.Record {
	return model.Record{
		ObservedAt:    time.Date(2024, 5, 1, 9, 30, 15, 123456000, time.Local),
		PostedAtLabel: "2 hours ago",
		Title:         "Gold looks heavy",
		Text:          "XAUUSD\nsell at 2350, SL 2365",
		ImageURL:      url,
		ImagePath:     "images/20240501_093015_XAUUSD_Gold_looks_heavy.png",
		Signal: signal.Signal{
			Symbol:    "XAUUSD",
			Direction: dir,
			Entry:     "2350",
			StopLoss:  "2365",
		},
	}
}

func TestInsert_DuplicateImageURLIsIgnored(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	outcome, id, err := st.Insert(ctx, testRecord("https://cdn.example.com/a.png", signal.Sell))
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	assert.Equal(t, int64(1), id)

	dup := testRecord("https://cdn.example.com/a.png", signal.Buy)
	dup.Title = "Different title"
	outcome, _, err = st.Insert(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, outcome)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := st.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Gold looks heavy", recs[0].Title)
	assert.Equal(t, signal.Sell, recs[0].Direction)
}

func TestInsert_IDsIncrease(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		_, id, err := st.Insert(ctx, testRecord(fmt.Sprintf("https://cdn.example.com/%d.png", i), signal.Buy))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestInsert_RejectsEmptyImageURL(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, _, err := st.Insert(ctx, testRecord("", signal.Buy))
	require.ErrorIs(t, err, ErrUnprocessable)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIsKnown_ExactMatch(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, _, err := st.Insert(ctx, testRecord("https://cdn.example.com/a.png", signal.Buy))
	require.NoError(t, err)

	known, err := st.IsKnown(ctx, "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.True(t, known)

	for _, u := range []string{
		"https://cdn.example.com/a.png?v=1",
		"https://CDN.example.com/a.png",
		"https://cdn.example.com/a.png/",
		"",
	} {
		known, err := st.IsKnown(ctx, u)
		require.NoError(t, err)
		assert.False(t, known, u)
	}
}

func TestRecent_RoundTripsAllFields(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	want := testRecord("https://cdn.example.com/a.png", signal.Sell)
	want.RiskTrigger = "invalidation: 2380"
	want.TakeProfit = "2300.50"
	_, id, err := st.Insert(ctx, want)
	require.NoError(t, err)
	want.ID = id

	got, err := st.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, want.ObservedAt.Equal(got[0].ObservedAt))
	got[0].ObservedAt = want.ObservedAt
	assert.Equal(t, want, got[0])
}

func TestInsert_UnsetFieldsAreNull(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	r := testRecord("https://cdn.example.com/a.png", "")
	r.Signal = signal.Signal{}
	_, _, err := st.Insert(ctx, r)
	require.NoError(t, err)

	var nulls int
	err = st.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM signals
		WHERE symbol IS NULL AND direction IS NULL AND risk_trigger IS NULL
			AND entry IS NULL AND stop_loss IS NULL AND take_profit IS NULL
	`).Scan(&nulls)
	require.NoError(t, err)
	assert.Equal(t, 1, nulls)
}

func TestCountByDirection(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	counts, err := st.CountByDirection(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"BUY": 0, "SELL": 0, "UNKNOWN": 0}, counts)

	dirs := []signal.Direction{signal.Buy, signal.Sell, signal.Sell, "", signal.Buy, signal.Sell}
	for i, d := range dirs {
		_, _, err := st.Insert(ctx, testRecord(fmt.Sprintf("https://cdn.example.com/%d.png", i), d))
		require.NoError(t, err)
	}

	counts, err = st.CountByDirection(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"BUY": 2, "SELL": 3, "UNKNOWN": 1}, counts)
}

func TestSchema_ColumnsInOrder(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	rows, err := st.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('signals') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, append([]string{"id"}, model.Columns...), cols)
}

func TestOpen_ReusesExistingDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "signals.db")

	st, err := Open(ctx, path)
	require.NoError(t, err)
	_, _, err = st.Insert(ctx, testRecord("https://cdn.example.com/a.png", signal.Buy))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	known, err := st.IsKnown(ctx, "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.True(t, known)
}

func TestRecent_ReadsTimestampsWithoutMicroseconds(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx, `INSERT INTO signals (timestamp, title, image_url, direction)
		VALUES ('2025-03-01T10:00:00', 'older row', 'https://cdn.example.com/old.png', 'BUY')`)
	require.NoError(t, err)
	_, _, err = st.Insert(ctx, testRecord("https://cdn.example.com/new.png", signal.Sell))
	require.NoError(t, err)

	recs, err := st.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local), recs[1].ObservedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 15, 123456000, time.Local), recs[0].ObservedAt)
}
