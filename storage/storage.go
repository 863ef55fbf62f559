package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Minionjack/Trade-info-scraper/model"
	"github.com/Minionjack/Trade-info-scraper/signal"
)

// UnknownDirection is the CountByDirection key for records without a direction.
const UnknownDirection = "UNKNOWN"

var ErrUnprocessable = errors.New("record has no image url")

type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	}
	return fmt.Sprintf("InsertOutcome(%d)", int(o))
}

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: every write goes through the same handle.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	st := &Store{db: db}
	if err := st.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT,
			post_time TEXT,
			title TEXT,
			text TEXT,
			image_url TEXT UNIQUE,
			image_path TEXT,
			symbol TEXT,
			direction TEXT,
			risk_trigger TEXT,
			entry TEXT,
			stop_loss TEXT,
			take_profit TEXT
		)`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// IsKnown reports whether a record with exactly this image url exists.
func (s *Store) IsKnown(ctx context.Context, imageURL string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM signals WHERE image_url = ?`, imageURL)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("is known: %w", err)
	}
	return true, nil
}

// Insert adds r unless its image url is already stored. A duplicate is not an
// error: it reports AlreadyExists and leaves the existing row untouched.
func (s *Store) Insert(ctx context.Context, r model.Record) (InsertOutcome, int64, error) {
	if r.ImageURL == "" {
		return 0, 0, ErrUnprocessable
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals (
			timestamp, post_time, title, text, image_url, image_path,
			symbol, direction, risk_trigger, entry, stop_loss, take_profit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ObservedAt.Format(model.TimestampLayout), r.PostedAtLabel, r.Title, r.Text,
		r.ImageURL, r.ImagePath,
		nullable(r.Symbol), nullable(string(r.Direction)), nullable(r.RiskTrigger),
		nullable(r.Entry), nullable(r.StopLoss), nullable(r.TakeProfit),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("insert signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return AlreadyExists, 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, fmt.Errorf("last insert id: %w", err)
	}
	return Inserted, id, nil
}

// CountByDirection groups records by direction. BUY, SELL and UNKNOWN are
// always present.
func (s *Store) CountByDirection(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT direction, COUNT(*) FROM signals GROUP BY direction`)
	if err != nil {
		return nil, fmt.Errorf("count by direction: %w", err)
	}
	defer rows.Close()

	out := map[string]int{
		string(signal.Buy):  0,
		string(signal.Sell): 0,
		UnknownDirection:    0,
	}
	for rows.Next() {
		var dir sql.NullString
		var n int
		if err := rows.Scan(&dir, &n); err != nil {
			return nil, fmt.Errorf("scan direction count: %w", err)
		}
		key := dir.String
		if key == "" {
			key = UnknownDirection
		}
		out[key] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate direction counts: %w", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM signals`)
	var c int
	if err := row.Scan(&c); err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return c, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, post_time, title, text, image_url, image_path,
			symbol, direction, risk_trigger, entry, stop_loss, take_profit
		FROM signals
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent signals: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (model.Record, error) {
	var (
		r    model.Record
		cols [12]sql.NullString
	)
	dest := []any{&r.ID}
	for i := range cols {
		dest = append(dest, &cols[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return model.Record{}, fmt.Errorf("scan signal: %w", err)
	}
	if cols[0].Valid {
		t, err := time.ParseInLocation(model.ParseLayout, cols[0].String, time.Local)
		if err != nil {
			return model.Record{}, fmt.Errorf("parse timestamp %q: %w", cols[0].String, err)
		}
		r.ObservedAt = t
	}
	r.PostedAtLabel = cols[1].String
	r.Title = cols[2].String
	r.Text = cols[3].String
	r.ImageURL = cols[4].String
	r.ImagePath = cols[5].String
	r.Symbol = cols[6].String
	r.Direction = signal.Direction(cols[7].String)
	r.RiskTrigger = cols[8].String
	r.Entry = cols[9].String
	r.StopLoss = cols[10].String
	r.TakeProfit = cols[11].String
	return r, nil
}

// nullable stores unset signal fields as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
