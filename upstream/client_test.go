package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/houzhh15/certindex/logging"
)

func newTestClient(url string, attempts int) *Client {
	return NewClient(&Config{
		URL:           url,
		Timeout:       2 * time.Second,
		RetryAttempts: attempts,
		RetryInterval: 10 * time.Millisecond,
		Logger:        logging.Nop(),
	})
}

func TestExtractRecordsShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		first   string // expected "serno" of the first record, "" to skip
	}{
		{
			name:    "bare array",
			payload: `[{"serno":"A"},{"serno":"B"}]`,
			want:    2,
			first:   "A",
		},
		{
			name:    "certificates envelope",
			payload: `{"certificates":[{"serno":"C"}],"count":1}`,
			want:    1,
			first:   "C",
		},
		{
			name:    "certs envelope",
			payload: `{"certs":[{"serno":"D"},{"serno":"E"}]}`,
			want:    2,
			first:   "D",
		},
		{
			name:    "single object wrapped",
			payload: `{"serno":"F","dn":"/CN=solo/"}`,
			want:    1,
			first:   "F",
		},
		{
			name:    "empty array",
			payload: `[]`,
			want:    0,
		},
		{
			name:    "non-object array elements dropped",
			payload: `[{"serno":"G"},"noise",42,null,{"serno":"H"}]`,
			want:    2,
			first:   "G",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ExtractRecords([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ExtractRecords() error = %v", err)
			}
			if len(records) != tt.want {
				t.Fatalf("got %d records, want %d", len(records), tt.want)
			}
			if tt.first != "" && records[0]["serno"] != tt.first {
				t.Errorf("first record serno = %v, want %s", records[0]["serno"], tt.first)
			}
		})
	}
}

func TestExtractRecordsEnvelopePriority(t *testing.T) {
	// "certificates" wins when both envelope keys are present.
	payload := `{"certificates":[{"serno":"A"}],"certs":[{"serno":"B"},{"serno":"C"}]}`
	records, err := ExtractRecords([]byte(payload))
	if err != nil {
		t.Fatalf("ExtractRecords() error = %v", err)
	}
	if len(records) != 1 || records[0]["serno"] != "A" {
		t.Errorf("got %v, want single record with serno A", records)
	}
}

func TestExtractRecordsParseErrors(t *testing.T) {
	for _, payload := range []string{`not json at all`, `"just a string"`, `42`, `true`} {
		var perr *ParseError
		_, err := ExtractRecords([]byte(payload))
		if err == nil {
			t.Errorf("ExtractRecords(%q) expected error", payload)
			continue
		}
		if !errors.As(err, &perr) {
			t.Errorf("ExtractRecords(%q) error = %T, want *ParseError", payload, err)
		}
	}
}

func TestFetchLive(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"certificates":[{"serno":"X1"},{"serno":"X2"}]}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL, 1)
	result, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.Source != SourceLive {
		t.Errorf("Source = %q, want %q", result.Source, SourceLive)
	}
	if result.Degraded() {
		t.Error("live result reports degraded")
	}
	if len(result.Records) != 2 {
		t.Errorf("got %d records, want 2", len(result.Records))
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"serno":"OK"}]`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL, 3)
	result, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("upstream called %d times, want 3", calls)
	}
	if result.Source != SourceLive {
		t.Errorf("Source = %q, want %q", result.Source, SourceLive)
	}
}

func TestFetchTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL, 2)
	_, err := client.Fetch(context.Background())

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Fetch() error = %T, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", terr.StatusCode)
	}
}

func TestFetchParseErrorNotRetried(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`this is not json`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL, 3)
	_, err := client.Fetch(context.Background())

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Fetch() error = %T, want *ParseError", err)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1 (parse errors are not retried)", calls)
	}
}

func TestFetchOrFallbackOnTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL, 1)
	result, err := client.FetchOrFallback(context.Background())
	if err != nil {
		t.Fatalf("FetchOrFallback() error = %v", err)
	}
	if result.Source != SourceFallback {
		t.Errorf("Source = %q, want %q", result.Source, SourceFallback)
	}
	if !result.Degraded() {
		t.Error("fallback result does not report degraded")
	}
	if len(result.Records) == 0 {
		t.Fatal("fallback produced no records")
	}
}

func TestFetchOrFallbackPropagatesParseError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{{{`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL, 1)
	_, err := client.FetchOrFallback(context.Background())

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("FetchOrFallback() error = %T, want *ParseError (never substituted)", err)
	}
}

func TestFetchContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(&Config{
		URL:           ts.URL,
		RetryAttempts: 5,
		RetryInterval: 10 * time.Second, // cancellation must preempt this
		Logger:        logging.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Fetch(ctx)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		var terr *TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("Fetch() error = %T, want *TransportError", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error does not wrap context.Canceled: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not return after cancellation")
	}
}

func TestLoadClientTLSConfigMissingFiles(t *testing.T) {
	_, err := LoadClientTLSConfig(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	if err == nil {
		t.Fatal("expected error for missing certificate files")
	}
}

func TestLoadClientTLSConfigEmpty(t *testing.T) {
	cfg, err := LoadClientTLSConfig(&TLSConfig{})
	if err != nil {
		t.Fatalf("LoadClientTLSConfig() error = %v", err)
	}
	if len(cfg.Certificates) != 0 {
		t.Errorf("expected no client certificates, got %d", len(cfg.Certificates))
	}
}
