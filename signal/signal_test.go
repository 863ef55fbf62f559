package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Examples(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want Signal
	}{
		{
			name: "levels without direction",
			text: "EURUSD looking strong, entry: 1.085, stop-loss 1.080, TP 1.095",
			want: Signal{
				Symbol:      "EURUSD",
				RiskTrigger: "stop-loss 1.080",
				Entry:       "1.085",
				StopLoss:    "1.080",
				TakeProfit:  "1.095",
			},
		},
		{
			name: "mixed case first word is not a symbol",
			text: "Short GBP now, invalidation level: 1.30",
			want: Signal{Direction: Sell, RiskTrigger: "invalidation level: 1.30"},
		},
		{
			name: "currency marker and buy at",
			text: "BTC\nBuy at $64250.5\nSL: 63000 TP: 68000",
			want: Signal{
				Symbol:     "BTC",
				Direction:  Buy,
				Entry:      "64250.5",
				StopLoss:   "63000",
				TakeProfit: "68000",
			},
		},
		{
			name: "conditional close clause",
			text: "XAUUSD\nIf price closes below 2310 the idea is void",
			want: Signal{Symbol: "XAUUSD", RiskTrigger: "If price closes below 2310 the idea is void"},
		},
		{
			name: "support clause",
			text: "NASDAQ holding above support at 17800; next leg higher",
			want: Signal{Symbol: "NASDAQ", RiskTrigger: "above support at 17800"},
		},
		{
			name: "empty",
			text: "",
			want: Signal{},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Extract(tc.text))
		})
	}
}

func TestExtract_NoVocabularyLeavesEverythingUnset(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"nothing to see here today",
		"   \n\n  ",
		"Weekly recap of the markets. Have a great weekend!",
	} {
		got := Extract(text)
		assert.True(t, got.IsEmpty(), "text %q gave %+v", text, got)
	}
}

func TestExtract_SellWinsOverBuy(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"Bullish structure but watch the downside",
		"buy the dip? no, SELL the rip",
		"Long term upside, short term bearish",
	} {
		assert.Equal(t, Sell, Extract(text).Direction, text)
	}
}

func TestExtract_DirectionNeedsWholeWords(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Direction(""), Extract("Shortly after the open, buyers were absent").Direction)
	assert.Equal(t, Buy, Extract("Going long here").Direction)
}

func TestExtract_SymbolOnlyFromFirstLine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", Extract("Morning update\nUSDJPY pushing higher").Symbol)
	assert.Equal(t, "", Extract("EURUSDX breakout").Symbol)
	assert.Equal(t, "GBP", Extract("  GBP/USD sell").Symbol)
}

func TestExtract_RiskTriggerPatternOrder(t *testing.T) {
	t.Parallel()
	// The stop-loss clause appears first in the text, but invalidation is tried first.
	got := Extract("stop-loss 1.10, invalidation 1.20")
	assert.Equal(t, "invalidation 1.20", got.RiskTrigger)
	assert.Equal(t, "1.10", got.StopLoss)

	got = Extract("Risk trigger: daily close under 95")
	assert.Equal(t, "Risk trigger: daily close under 95", got.RiskTrigger)
}

func TestExtract_LevelsAreIndependent(t *testing.T) {
	t.Parallel()
	got := Extract("TP 1.2")
	assert.Equal(t, Signal{TakeProfit: "1.2"}, got)

	got = Extract("entry 100.")
	assert.Equal(t, "100.", got.Entry)
	assert.Empty(t, got.StopLoss)
}
