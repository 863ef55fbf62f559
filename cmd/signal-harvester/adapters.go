package main

import (
	"context"
	"log/slog"

	"github.com/Minionjack/Trade-info-scraper/ingest"
	"github.com/Minionjack/Trade-info-scraper/notify"
	"github.com/Minionjack/Trade-info-scraper/portal"
	"github.com/Minionjack/Trade-info-scraper/storage"
)

// portalConnector binds the login credentials so the loop only sees Connect.
type portalConnector struct {
	client *portal.Client
	creds  portal.Credentials
}

func (p portalConnector) Connect(ctx context.Context) (ingest.Session, error) {
	s, err := p.client.Connect(ctx, p.creds)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type directionCounter interface {
	CountByDirection(ctx context.Context) (map[string]int, error)
}

// statsReport logs the per-direction counts and forwards them to the chat
// when notifications are on.
type statsReport struct {
	log      *slog.Logger
	store    directionCounter
	notifier ingest.Notifier
}

func (r statsReport) Run(ctx context.Context) error {
	counts, err := r.store.CountByDirection(ctx)
	if err != nil {
		return err
	}
	r.log.Info("signal stats",
		"buy", counts["BUY"],
		"sell", counts["SELL"],
		"unknown", counts[storage.UnknownDirection],
	)
	if r.notifier == nil {
		return nil
	}
	return r.notifier.Notify(ctx, notify.FormatStats(counts), nil)
}

type scheduleSettings struct{ spec, tz string }

func (s scheduleSettings) Schedule() string { return s.spec }
func (s scheduleSettings) Timezone() string { return s.tz }

type schedulerLogger struct{ log *slog.Logger }

func (s schedulerLogger) Info(msg string, keysAndValues ...any) { s.log.Debug(msg, keysAndValues...) }
func (s schedulerLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"err", err}, keysAndValues...)
	s.log.Error(msg, args...)
}
