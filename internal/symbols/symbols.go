// Package symbols holds the pure utility functions for option symbol
// handling: normalization, underlying-ticker extraction, and the
// market-hours and mini-contract filters applied before ingestion.
package symbols

import (
	"strings"
	"time"
	"unicode"
)

var newYork *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// UTC keeps the filter functional if tzdata is unavailable.
		loc = time.UTC
	}
	newYork = loc
}

// NormalizeContract brings a raw feed symbol into canonical form: the
// leading option-marker dot is stripped and the symbol is uppercased.
func NormalizeContract(symbol string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(symbol), "."))
}

// Ticker extracts the underlying root from an option symbol: the
// leading run of letters before the expiration digits begin, plus the
// trailing '7' mini marker when present (AAPL7150117C100 -> AAPL7), so
// mini contracts keep their own root.
func Ticker(symbol string) string {
	symbol = strings.TrimPrefix(symbol, ".")
	i := 0
	for i < len(symbol) && unicode.IsLetter(rune(symbol[i])) {
		i++
	}
	if i > 0 && i < len(symbol) && symbol[i] == '7' {
		i++
	}
	return symbol[:i]
}

// IsMiniContract reports whether the ticker denotes a mini option
// contract (ticker suffixed with '7', e.g. AAPL7).
func IsMiniContract(ticker string) bool {
	return strings.HasSuffix(ticker, "7")
}

// DuringMarketHours reports whether the millisecond timestamp falls
// inside regular equity option trading hours, 09:30-16:00 New York,
// Monday through Friday.
func DuringMarketHours(millis int64) bool {
	t := time.UnixMilli(millis).In(newYork)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
