package model

import (
	"time"

	"github.com/Minionjack/Trade-info-scraper/signal"
)

// TimestampLayout is how ObservedAt is written to the store and the audit log.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// ParseLayout reads TimestampLayout values as well as rows whose fractional
// seconds were omitted.
const ParseLayout = "2006-01-02T15:04:05"

// RawPost is one post card as read from the source page.
type RawPost struct {
	Title         string
	BodyText      string
	ImageURL      string
	PostedAtLabel string
}

// Record is an ingested post. ImageURL is unique across all records.
type Record struct {
	ID            int64
	ObservedAt    time.Time
	PostedAtLabel string
	Title         string
	Text          string
	ImageURL      string
	ImagePath     string
	signal.Signal
}

// Row returns the record's columns in declared order, excluding ID.
func (r Record) Row() []string {
	return []string{
		r.ObservedAt.Format(TimestampLayout),
		r.PostedAtLabel,
		r.Title,
		r.Text,
		r.ImageURL,
		r.ImagePath,
		r.Symbol,
		string(r.Direction),
		r.RiskTrigger,
		r.Entry,
		r.StopLoss,
		r.TakeProfit,
	}
}

// Columns names the values returned by Row.
var Columns = []string{
	"timestamp",
	"post_time",
	"title",
	"text",
	"image_url",
	"image_path",
	"symbol",
	"direction",
	"risk_trigger",
	"entry",
	"stop_loss",
	"take_profit",
}
