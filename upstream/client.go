// Package upstream retrieves the raw certificate collection from the
// external authority over mutual-TLS and flattens it into an ordered
// sequence of raw records.
package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/houzhh15/certindex/certs"
	"github.com/houzhh15/certindex/logging"
)

// Source labels where a fetch result came from.
const (
	SourceLive     = "live"     // the upstream authority answered
	SourceFallback = "fallback" // offline example records substituted
)

// FetchResult is one retrieved (or substituted) batch of raw records.
type FetchResult struct {
	Records   []certs.RawRecord
	Source    string
	FetchedAt time.Time
}

// Degraded reports whether the result carries substituted example
// records instead of live upstream data.
func (r *FetchResult) Degraded() bool { return r.Source == SourceFallback }

// Config contains configuration for the upstream client.
type Config struct {
	URL           string        // upstream index URL (e.g. https://authority.example/crtinfo/certindex.json)
	TLSConfig     *tls.Config   // client-certificate mTLS configuration
	Timeout       time.Duration // HTTP timeout (default: 30s)
	RetryAttempts int           // attempts per fetch (default: 3)
	RetryInterval time.Duration // initial interval between retries (default: 5s)
	Logger        logging.Logger
}

// Client fetches the certificate index from the upstream authority.
// The authority requires client-certificate authentication, so the
// underlying transport carries our mTLS configuration.
type Client struct {
	httpClient    *http.Client
	url           string
	retryAttempts int
	retryInterval time.Duration
	logger        logging.Logger
}

// NewClient creates a new upstream client.
func NewClient(config *Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logging.Nop()
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: config.TLSConfig,
			},
			Timeout: config.Timeout,
		},
		url:           config.URL,
		retryAttempts: config.RetryAttempts,
		retryInterval: config.RetryInterval,
		logger:        config.Logger,
	}
}

// Fetch retrieves and flattens the upstream index. Transport failures
// are retried with exponential backoff and surface as *TransportError
// once attempts are exhausted; a payload that is not usable JSON
// surfaces as *ParseError without retrying.
func (c *Client) Fetch(ctx context.Context) (*FetchResult, error) {
	var lastErr error
	interval := c.retryInterval

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		payload, err := c.get(ctx)
		if err == nil {
			records, perr := ExtractRecords(payload)
			if perr != nil {
				return nil, perr
			}
			return &FetchResult{
				Records:   records,
				Source:    SourceLive,
				FetchedAt: time.Now(),
			}, nil
		}

		lastErr = err
		c.logger.Warn("Upstream fetch attempt failed",
			"attempt", attempt, "url", c.url, "error", err)

		if attempt < c.retryAttempts {
			select {
			case <-time.After(interval):
				interval *= 2
			case <-ctx.Done():
				return nil, &TransportError{URL: c.url, Err: ctx.Err()}
			}
		}
	}

	return nil, lastErr
}

// FetchOrFallback behaves like Fetch but substitutes the documented
// example records when the upstream is unreachable, so the pipeline
// and the dashboard stay exercisable offline. The substitution is
// flagged on the result (Source, Degraded) and logged; it is never
// silently indistinguishable from live data. Parse errors are not
// substituted: a reachable upstream speaking garbage is a different
// failure class and propagates to the caller.
func (c *Client) FetchOrFallback(ctx context.Context) (*FetchResult, error) {
	result, err := c.Fetch(ctx)
	if err == nil {
		return result, nil
	}
	if _, ok := err.(*TransportError); !ok {
		return nil, err
	}

	c.logger.Warn("Upstream unreachable, serving fallback example records",
		"url", c.url, "error", err)
	return &FetchResult{
		Records:   FallbackRecords(),
		Source:    SourceFallback,
		FetchedAt: time.Now(),
	}, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{URL: c.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// ExtractRecords flattens a JSON payload of unknown top-level shape
// into an ordered record sequence. Shapes are tried in fixed priority
// order and the first match wins:
//
//  1. the payload is itself an array
//  2. an object with a "certificates" array
//  3. an object with a "certs" array
//  4. any other object is wrapped as a single record
//
// Array elements that are not objects are dropped.
func ExtractRecords(payload []byte) ([]certs.RawRecord, error) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &ParseError{Reason: "not JSON", Err: err}
	}

	switch v := decoded.(type) {
	case []any:
		return recordsFromArray(v), nil
	case map[string]any:
		if arr, ok := v["certificates"].([]any); ok {
			return recordsFromArray(arr), nil
		}
		if arr, ok := v["certs"].([]any); ok {
			return recordsFromArray(arr), nil
		}
		return []certs.RawRecord{certs.RawRecord(v)}, nil
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unexpected top-level %T", decoded)}
	}
}

func recordsFromArray(arr []any) []certs.RawRecord {
	records := make([]certs.RawRecord, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, certs.RawRecord(obj))
		}
	}
	return records
}
