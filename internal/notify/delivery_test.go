package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func countingServer(t *testing.T, handler func(n int32, w http.ResponseWriter)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(atomic.AddInt32(&calls, 1), w)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestPosterRetriesServerErrors(t *testing.T) {
	server, calls := countingServer(t, func(n int32, w http.ResponseWriter) {
		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	p := newPoster(zerolog.Nop(), "slack", server.URL, fastRetry())

	if err := p.post(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestPosterClientErrorIsPermanent(t *testing.T) {
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid_payload"))
	})
	p := newPoster(zerolog.Nop(), "slack", server.URL, fastRetry())

	err := p.post(context.Background(), []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "invalid_payload") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}

func TestPosterGivesUpAfterBudget(t *testing.T) {
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	p := newPoster(zerolog.Nop(), "webhook", server.URL, []Option{
		WithRetry(time.Millisecond, 2*time.Millisecond, 15*time.Millisecond),
		WithMessageGap(time.Millisecond),
	})

	err := p.post(context.Background(), []byte(`{}`))
	var failed *attemptError
	if !errors.As(err, &failed) || !failed.retry {
		t.Fatalf("expected the last retryable attempt error, got %v", err)
	}
	if atomic.LoadInt32(calls) < 2 {
		t.Fatalf("expected several attempts before giving up")
	}
}

func TestSendReportsRetryAfter(t *testing.T) {
	server, _ := countingServer(t, func(_ int32, w http.ResponseWriter) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	p := newPoster(zerolog.Nop(), "slack", server.URL, fastRetry())

	err := p.send(context.Background(), []byte(`{}`))
	var failed *attemptError
	if !errors.As(err, &failed) {
		t.Fatalf("expected attempt error, got %v", err)
	}
	if !failed.retry || failed.after != time.Second {
		t.Fatalf("expected retryable with 1s hint, got %+v", failed)
	}
}

func TestHintedBackOffHonorsHintOnce(t *testing.T) {
	h := &hintedBackOff{BackOff: constantBackOff(time.Millisecond), hint: time.Second}
	if got := h.NextBackOff(); got != time.Second {
		t.Fatalf("expected the hint first, got %s", got)
	}
	if got := h.NextBackOff(); got != time.Millisecond {
		t.Fatalf("expected the base interval after the hint, got %s", got)
	}
}

type constantBackOff time.Duration

func (c constantBackOff) NextBackOff() time.Duration { return time.Duration(c) }

func (constantBackOff) Reset() {}

func TestPosterMessageGapBlocks(t *testing.T) {
	server, calls := countingServer(t, func(int32, http.ResponseWriter) {})
	p := newPoster(zerolog.Nop(), "slack", server.URL, []Option{WithMessageGap(500 * time.Millisecond)})

	if err := p.post(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("first post: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.post(ctx, []byte(`{}`)); err == nil {
		t.Fatalf("expected the second post to be held back")
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}
}

func TestPosterStopsOnCancel(t *testing.T) {
	server, _ := countingServer(t, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	p := newPoster(zerolog.Nop(), "slack", server.URL, []Option{
		WithRetry(100*time.Millisecond, 200*time.Millisecond, time.Second),
		WithMessageGap(time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	if err := p.post(ctx, []byte(`{}`)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"":     0,
		"0":    0,
		"-3":   0,
		"2":    2 * time.Second,
		"soon": 0,
	}
	for value, want := range cases {
		got, ok := parseRetryAfter(value)
		if got != want || ok != (want > 0) {
			t.Errorf("parseRetryAfter(%q) = %s, %v", value, got, ok)
		}
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got, ok := parseRetryAfter(future); !ok || got < 58*time.Minute {
		t.Errorf("expected about an hour for %q, got %s", future, got)
	}
}
