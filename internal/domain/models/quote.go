package models

import (
	"strings"
	"time"
)

// Symbol is an uppercase ticker, the unit of fetch granularity.
type Symbol string

// NormalizeSymbol trims and uppercases a configured ticker.
func NormalizeSymbol(s string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(s)))
}

// NormalizeSymbols maps a configured list onto symbols, dropping blanks left
// by trailing commas in the list.
func NormalizeSymbols(raw []string) []Symbol {
	out := make([]Symbol, 0, len(raw))
	for _, r := range raw {
		if s := NormalizeSymbol(r); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RawDailyQuote is one provider record, every field still a string.
type RawDailyQuote struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// RawQuoteSeries maps an ISO date string (2006-01-02) to the provider record.
type RawQuoteSeries map[string]RawDailyQuote

// QuoteRow is the normalized unit of persistence. (Symbol, Timestamp) is unique
// in storage.
type QuoteRow struct {
	Symbol    Symbol
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// RunBatch is every row accumulated during one run.
type RunBatch []QuoteRow
