// Package ingest runs the poll loop: fetch post cards, drop the ones already
// stored, extract a signal from the rest, save their image, persist, audit and
// notify.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Minionjack/Trade-info-scraper/model"
	"github.com/Minionjack/Trade-info-scraper/notify"
	"github.com/Minionjack/Trade-info-scraper/signal"
	"github.com/Minionjack/Trade-info-scraper/storage"
)

// Connector establishes an authenticated session with the source page.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

type Session interface {
	FetchBatch(ctx context.Context) ([]model.RawPost, error)
	Close() error
}

type AssetFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

type Store interface {
	IsKnown(ctx context.Context, imageURL string) (bool, error)
	Insert(ctx context.Context, r model.Record) (storage.InsertOutcome, int64, error)
}

type AuditLog interface {
	Append(r model.Record) error
}

type Notifier interface {
	Notify(ctx context.Context, text string, image []byte) error
}

type Config struct {
	PollInterval     time.Duration
	ReconnectBackoff time.Duration
	ConnectTimeout   time.Duration
	FetchTimeout     time.Duration
	AssetTimeout     time.Duration
	ImageDir         string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.AssetTimeout <= 0 {
		c.AssetTimeout = 30 * time.Second
	}
	if c.ImageDir == "" {
		c.ImageDir = "images"
	}
	return c
}

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// CycleStats counts what happened to the posts of one batch.
type CycleStats struct {
	Seen          int
	Unprocessable int
	Duplicates    int
	Ingested      int
	Failed        int
	Notified      int
}

func (s CycleStats) attrs() []any {
	return []any{
		"seen", s.Seen,
		"unprocessable", s.Unprocessable,
		"duplicates", s.Duplicates,
		"ingested", s.Ingested,
		"failed", s.Failed,
		"notified", s.Notified,
	}
}

// Loop owns the session for its lifetime. Notifier may be nil, in which case
// nothing is sent.
type Loop struct {
	Log       *slog.Logger
	Connector Connector
	Assets    AssetFetcher
	Store     Store
	Audit     AuditLog
	Notifier  Notifier
	Cfg       Config
	Now       func() time.Time

	mu    sync.Mutex
	state State
}

func (l *Loop) Validate() error {
	if l.Connector == nil || l.Assets == nil || l.Store == nil || l.Audit == nil {
		return fmt.Errorf("missing dependency")
	}
	return nil
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Run polls until ctx is cancelled. Connection and cycle failures never end
// the loop: the session is dropped and re-established after a backoff. The
// active session is closed before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Validate(); err != nil {
		return err
	}
	log := l.logger()
	cfg := l.Cfg.withDefaults()

	var sess Session
	defer func() {
		if sess != nil {
			l.closeSession(sess)
		}
		l.setState(Disconnected)
		log.Info("ingest loop stopped")
	}()

	log.Info("ingest loop start", "poll_interval", cfg.PollInterval.String(), "notifications", l.Notifier != nil)
	for ctx.Err() == nil {
		if sess == nil {
			s, err := l.connect(ctx, cfg)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				log.Warn("connect failed", "err", err, "retry_in", cfg.ReconnectBackoff.String())
				sleep(ctx, cfg.ReconnectBackoff)
				continue
			}
			sess = s
			l.setState(Connected)
		}

		stats, err := l.RunCycle(ctx, sess)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("cycle failed; reconnecting", "err", err, "retry_in", cfg.ReconnectBackoff.String())
			l.closeSession(sess)
			sess = nil
			l.setState(Disconnected)
			sleep(ctx, cfg.ReconnectBackoff)
			continue
		}
		log.Info("cycle done", stats.attrs()...)
		sleep(ctx, cfg.PollInterval)
	}
	return nil
}

// RunCycle processes one batch. It fails only when the batch itself cannot be
// read or ctx ends; errors on single posts are logged and counted.
func (l *Loop) RunCycle(ctx context.Context, sess Session) (CycleStats, error) {
	log := l.logger()
	cfg := l.Cfg.withDefaults()
	var stats CycleStats

	fctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	posts, err := sess.FetchBatch(fctx)
	cancel()
	if err != nil {
		return stats, fmt.Errorf("fetch batch: %w", err)
	}
	log.Debug("batch fetched", "posts", len(posts))

	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Seen++
		res, err := l.ingestPost(ctx, cfg, p)
		switch res {
		case resultUnprocessable:
			stats.Unprocessable++
			log.Warn("post without image url skipped", "title", p.Title)
		case resultDuplicate:
			stats.Duplicates++
		case resultIngested, resultNotified:
			stats.Ingested++
			if res == resultNotified {
				stats.Notified++
			}
		case resultFailed:
			stats.Failed++
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Warn("post failed", "image_url", p.ImageURL, "err", err)
		}
	}
	return stats, nil
}

type result int

const (
	resultUnprocessable result = iota
	resultDuplicate
	resultIngested
	resultNotified
	resultFailed
)

func (l *Loop) ingestPost(ctx context.Context, cfg Config, p model.RawPost) (result, error) {
	log := l.logger()
	if p.ImageURL == "" {
		return resultUnprocessable, nil
	}
	known, err := l.Store.IsKnown(ctx, p.ImageURL)
	if err != nil {
		return resultFailed, fmt.Errorf("duplicate check: %w", err)
	}
	if known {
		return resultDuplicate, nil
	}

	sig := signal.Extract(p.BodyText)
	observed := l.now()

	actx, cancel := context.WithTimeout(ctx, cfg.AssetTimeout)
	img, err := l.Assets.FetchBytes(actx, p.ImageURL)
	cancel()
	if err != nil {
		return resultFailed, fmt.Errorf("fetch asset: %w", err)
	}
	path, err := saveAsset(cfg.ImageDir, AssetFilename(observed, sig.Symbol, p.Title), img)
	if err != nil {
		return resultFailed, err
	}

	rec := newRecord(p, sig, observed, path)
	outcome, id, err := l.Store.Insert(ctx, rec)
	if err != nil {
		removeAsset(log, path)
		return resultFailed, fmt.Errorf("persist: %w", err)
	}
	if outcome == storage.AlreadyExists {
		// Another writer stored this url between the check and the insert.
		removeAsset(log, path)
		return resultDuplicate, nil
	}
	rec.ID = id
	log.Info("signal ingested", "id", id, "symbol", rec.Symbol, "direction", string(rec.Direction), "image_path", path)

	if err := l.Audit.Append(rec); err != nil {
		log.Warn("audit append failed", "id", id, "err", err)
	}
	if l.Notifier == nil {
		return resultIngested, nil
	}
	if err := l.Notifier.Notify(ctx, notify.FormatSignalHTML(rec), img); err != nil {
		log.Warn("notify failed", "id", id, "err", err)
		return resultIngested, nil
	}
	return resultNotified, nil
}

func newRecord(p model.RawPost, sig signal.Signal, observed time.Time, imagePath string) model.Record {
	return model.Record{
		ObservedAt:    observed,
		PostedAtLabel: p.PostedAtLabel,
		Title:         p.Title,
		Text:          p.BodyText,
		ImageURL:      p.ImageURL,
		ImagePath:     imagePath,
		Signal:        sig,
	}
}

func (l *Loop) connect(ctx context.Context, cfg Config) (Session, error) {
	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	return l.Connector.Connect(cctx)
}

func (l *Loop) closeSession(sess Session) {
	if err := sess.Close(); err != nil {
		l.logger().Warn("session close failed", "err", err)
	}
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()
	if prev != s {
		l.logger().Info("state changed", "from", prev.String(), "to", s.String())
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Log == nil {
		return slog.Default()
	}
	return l.Log
}

func (l *Loop) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
