package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/Minionjack/Trade-info-scraper/model"
	"github.com/Minionjack/Trade-info-scraper/storage"
)

// CaptionLimit is the longest photo caption Telegram accepts.
const CaptionLimit = 1024

// fieldLimit caps each escaped header value so the header alone always fits
// in a caption.
const fieldLimit = 120

func FormatSignalHTML(r model.Record) string {
	symbol := r.Symbol
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s", directionIcon(string(r.Direction)), fitEscaped(symbol, fieldLimit))
	if r.Direction != "" {
		fmt.Fprintf(&b, " %s", r.Direction)
	}
	b.WriteString("</b>\n")
	if r.Title != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", fitEscaped(r.Title, fieldLimit))
	}
	for _, f := range []struct{ label, value string }{
		{"Entry", r.Entry},
		{"SL", r.StopLoss},
		{"TP", r.TakeProfit},
		{"Risk", r.RiskTrigger},
	} {
		if f.value != "" {
			fmt.Fprintf(&b, "%s: <code>%s</code>\n", f.label, fitEscaped(f.value, fieldLimit))
		}
	}
	if r.PostedAtLabel != "" {
		fmt.Fprintf(&b, "\U0001F552 %s\n", fitEscaped(r.PostedAtLabel, fieldLimit))
	}

	head := b.String()
	budget := CaptionLimit - utf8.RuneCountInString(head) - 1
	body := fitEscaped(r.Text, budget)
	if body == "" {
		return strings.TrimSuffix(head, "\n")
	}
	return head + "\n" + body
}

// fitEscaped escapes s, cutting the raw text and adding an ellipsis when the
// escaped form would exceed limit runes.
func fitEscaped(s string, limit int) string {
	esc := html.EscapeString(s)
	if utf8.RuneCountInString(esc) <= limit {
		return esc
	}
	runes := []rune(s)
	keep := limit - 1
	if keep > len(runes) {
		keep = len(runes)
	}
	for keep > 0 {
		esc = html.EscapeString(string(runes[:keep]))
		over := utf8.RuneCountInString(esc) - (limit - 1)
		if over <= 0 {
			return esc + "…"
		}
		keep -= over
	}
	return ""
}

func FormatStats(counts map[string]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>\U0001F4CA Signal stats</b> (%d total)\n", total)
	for _, k := range []string{"BUY", "SELL", storage.UnknownDirection} {
		fmt.Fprintf(&b, "%s %s: %d\n", directionIcon(k), k, counts[k])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func directionIcon(dir string) string {
	switch dir {
	case "BUY":
		return "\U0001F4C8"
	case "SELL":
		return "\U0001F4C9"
	}
	return "❓"
}
