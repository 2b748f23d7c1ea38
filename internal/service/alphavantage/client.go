package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"QuotePull/internal/domain/models"
	drepo "QuotePull/internal/domain/repository"
	"QuotePull/internal/service/retry"
	xhttp "QuotePull/pkg/http"
	"QuotePull/pkg/logger"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co/query"
	dailyFunction  = "TIME_SERIES_DAILY"
)

var _ drepo.QuoteSource = (*Client)(nil)

// Kind tags why an attempt did not produce a series.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindProvider   Kind = "provider"
	KindRateLimit  Kind = "rate_limit"
	KindUnexpected Kind = "unexpected"
)

// FetchError is the failure variant of a fetch.
type FetchError struct {
	Kind    Kind
	Symbol  models.Symbol
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Symbol, e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf digs the fetch error kind out of err; empty if err carries none.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// dailyResponse covers every top-level shape the endpoint returns.
type dailyResponse struct {
	ErrorMessage string                 `json:"Error Message,omitempty"`
	Note         string                 `json:"Note,omitempty"`
	Information  string                 `json:"Information,omitempty"`
	TimeSeries   *models.RawQuoteSeries `json:"Time Series (Daily),omitempty"`
}

// Options configures the retry behaviour of a Client.
type Options struct {
	BaseURL             string
	APIKey              string
	MaxAttempts         int
	BackoffDelay        time.Duration
	RateLimitDelay      time.Duration
	MaxRateLimitRetries int
}

// Client fetches TIME_SERIES_DAILY payloads with retry and rate-limit handling.
type Client struct {
	http    *xhttp.Client
	opts    Options
	sleeper retry.Sleeper
	metrics drepo.Metrics
	log     *logger.Logger
}

func New(httpClient *xhttp.Client, opts Options, sleeper retry.Sleeper, metrics drepo.Metrics, log *logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		http:    httpClient,
		opts:    opts,
		sleeper: sleeper,
		metrics: metrics,
		log:     log,
	}
}

// Fetch returns the daily series for symbol. When every attempt fails the
// series is nil and the error is a *retry.ExhaustedError wrapping the last
// *FetchError.
func (c *Client) Fetch(ctx context.Context, symbol models.Symbol) (models.RawQuoteSeries, error) {
	var series models.RawQuoteSeries
	policy := retry.Policy{
		MaxAttempts:    c.opts.MaxAttempts,
		MaxFreeRetries: c.opts.MaxRateLimitRetries,
		Sleeper:        c.sleeper,
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) retry.Decision {
		log := c.log.With(logger.String("symbol", string(symbol)), logger.Int("attempt", attempt))
		log.Info("fetching daily series")

		var body dailyResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    c.opts.BaseURL,
			QueryParams: map[string][]string{
				"function": {dailyFunction},
				"symbol":   {string(symbol)},
				"apikey":   {c.opts.APIKey},
			},
		}, &body)

		d := c.classify(symbol, body, err)
		c.record(d)

		switch {
		case d.Verdict == retry.Done:
			series = *body.TimeSeries
		case KindOf(d.Err) == KindRateLimit:
			log.Warn("rate limited", logger.Duration("delay", d.Delay), logger.Error(d.Err))
		default:
			log.Error("fetch error", logger.String("kind", string(KindOf(d.Err))), logger.Error(d.Err))
		}
		return d
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// classify maps one HTTP outcome to a retry decision. Order matters:
// transport, provider error, rate-limit note, series, anything else.
func (c *Client) classify(symbol models.Symbol, body dailyResponse, err error) retry.Decision {
	fail := func(kind Kind, msg string, err error) *FetchError {
		return &FetchError{Kind: kind, Symbol: symbol, Message: msg, Err: err}
	}

	switch {
	case err != nil:
		return retry.Decision{Verdict: retry.Retry, Delay: c.opts.BackoffDelay, Err: fail(KindTransport, "", err)}
	case body.ErrorMessage != "":
		return retry.Decision{Verdict: retry.Retry, Delay: c.opts.BackoffDelay, Err: fail(KindProvider, body.ErrorMessage, nil)}
	case body.Note != "":
		return retry.Decision{Verdict: retry.RetryFree, Delay: c.opts.RateLimitDelay, Err: fail(KindRateLimit, body.Note, nil)}
	case body.TimeSeries != nil:
		return retry.Decision{Verdict: retry.Done}
	case body.Information != "":
		return retry.Decision{Verdict: retry.Retry, Delay: c.opts.BackoffDelay, Err: fail(KindProvider, body.Information, nil)}
	default:
		return retry.Decision{Verdict: retry.Retry, Err: fail(KindUnexpected, "response carried no known key", nil)}
	}
}

func (c *Client) record(d retry.Decision) {
	if c.metrics == nil {
		return
	}
	if d.Verdict == retry.Done {
		c.metrics.RecordFetchAttempt("success")
		return
	}
	c.metrics.RecordFetchAttempt(string(KindOf(d.Err)))
}
