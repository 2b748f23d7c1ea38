package usecase

import (
	"fmt"
	"sort"
	"strconv"

	"QuotePull/internal/domain/models"
	"QuotePull/pkg/logger"
	"QuotePull/pkg/util"
)

const DefaultMaxDays = 3

// ParseError describes one provider record that could not be converted.
type ParseError struct {
	Symbol models.Symbol
	Date   string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %s on %s: %v", e.Symbol, e.Field, e.Date, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NormalizeStats counts what happened to the selected dates.
type NormalizeStats struct {
	Selected int
	Kept     int
	Skipped  int
}

// Normalizer turns a raw provider series into typed rows.
type Normalizer struct {
	maxDays int
	log     *logger.Logger
}

func NewNormalizer(maxDays int, log *logger.Logger) *Normalizer {
	if maxDays < 1 {
		maxDays = DefaultMaxDays
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{maxDays: maxDays, log: log}
}

// Normalize keeps the maxDays most recent dates, newest first. A record that
// fails to parse is logged and dropped on its own.
func (n *Normalizer) Normalize(symbol models.Symbol, series models.RawQuoteSeries) ([]models.QuoteRow, NormalizeStats) {
	var stats NormalizeStats
	if len(series) == 0 {
		return nil, stats
	}

	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	// ISO dates order lexically
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > n.maxDays {
		dates = dates[:n.maxDays]
	}
	stats.Selected = len(dates)

	rows := make([]models.QuoteRow, 0, len(dates))
	for _, d := range dates {
		row, err := parseRecord(symbol, d, series[d])
		if err != nil {
			stats.Skipped++
			n.log.Error("parse error", logger.String("symbol", string(symbol)), logger.String("date", d), logger.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	stats.Kept = len(rows)
	return rows, stats
}

func parseRecord(symbol models.Symbol, date string, rec models.RawDailyQuote) (models.QuoteRow, error) {
	fail := func(field string, err error) (models.QuoteRow, error) {
		return models.QuoteRow{}, &ParseError{Symbol: symbol, Date: date, Field: field, Err: err}
	}

	ts, err := util.ParseDay(date)
	if err != nil {
		return fail("date", err)
	}

	row := models.QuoteRow{Symbol: symbol, Timestamp: ts}
	prices := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", rec.Open, &row.Open},
		{"high", rec.High, &row.High},
		{"low", rec.Low, &row.Low},
		{"close", rec.Close, &row.Close},
	}
	for _, p := range prices {
		v, err := strconv.ParseFloat(p.raw, 64)
		if err != nil {
			return fail(p.name, err)
		}
		*p.dst = v
	}

	row.Volume, err = strconv.ParseInt(rec.Volume, 10, 64)
	if err != nil {
		return fail("volume", err)
	}
	return row, nil
}
