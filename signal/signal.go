// Package signal turns the free-text body of a trade-alert card into structured
// trading parameters.
package signal

import (
	"regexp"
	"strings"
)

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Signal holds the fields extracted from a post body. An empty string means the
// field was not found; nothing is ever inferred.
type Signal struct {
	Symbol      string    `json:"symbol,omitempty"`
	Direction   Direction `json:"direction,omitempty"`
	RiskTrigger string    `json:"risk_trigger,omitempty"`
	Entry       string    `json:"entry,omitempty"`
	StopLoss    string    `json:"stop_loss,omitempty"`
	TakeProfit  string    `json:"take_profit,omitempty"`
}

// IsEmpty reports whether no field was extracted.
func (s Signal) IsEmpty() bool {
	return s == Signal{}
}

var (
	symbolRe  = regexp.MustCompile(`^([A-Z]{3,6})\b`)
	bearishRe = regexp.MustCompile(`(?i)\b(short|sell|bearish|downside)\b`)
	bullishRe = regexp.MustCompile(`(?i)\b(buy|long|bullish|upside)\b`)

	// Evaluated in order; the first pattern that matches anywhere wins.
	riskRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)invalidation(?: level)?[:\s]*([^\n,;]+)`),
		regexp.MustCompile(`(?i)(stop[- ]?loss|risk trigger)[:\s]*([^\n,;]+)`),
		regexp.MustCompile(`(?i)if .*?close[sd]? (above|below|at) [^\n,;]+`),
		regexp.MustCompile(`(?i)(above|below|under|over) (resistance|support) at [^\n,;]+`),
	}

	entryRe      = regexp.MustCompile(`(?i)(?:entry|buy at|sell at)[:\s]*\$?(\d+\.?\d*)`)
	stopLossRe   = regexp.MustCompile(`(?i)(?:stop[- ]?loss|SL)[:\s]*\$?(\d+\.?\d*)`)
	takeProfitRe = regexp.MustCompile(`(?i)(?:take[- ]?profit|TP)[:\s]*\$?(\d+\.?\d*)`)
)

// Extract parses text into a Signal. Each field is matched on its own, so a
// missing field never prevents the others from being found.
func Extract(text string) Signal {
	return Signal{
		Symbol:      symbol(text),
		Direction:   direction(text),
		RiskTrigger: riskTrigger(text),
		Entry:       capture(entryRe, text),
		StopLoss:    capture(stopLossRe, text),
		TakeProfit:  capture(takeProfitRe, text),
	}
}

// symbol only looks at the start of the first line.
func symbol(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimSuffix(first, "\r")
	if m := symbolRe.FindStringSubmatch(first); m != nil {
		return m[1]
	}
	return ""
}

// direction checks bearish vocabulary first, so a text mentioning both sides
// resolves to SELL.
func direction(text string) Direction {
	switch {
	case bearishRe.MatchString(text):
		return Sell
	case bullishRe.MatchString(text):
		return Buy
	}
	return ""
}

func riskTrigger(text string) string {
	for _, re := range riskRes {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func capture(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
