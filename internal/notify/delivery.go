package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const errorBodyLimit = 1024

// retryPolicy bounds the delivery of one payload.
type retryPolicy struct {
	requestTimeout time.Duration
	initial        time.Duration
	max            time.Duration
	budget         time.Duration
	gap            time.Duration
}

var defaultPolicy = retryPolicy{
	requestTimeout: 10 * time.Second,
	initial:        time.Second,
	max:            10 * time.Second,
	budget:         20 * time.Second,
	gap:            time.Second,
}

// Option tunes how a notifier delivers payloads.
type Option func(*retryPolicy)

// WithRetry sets the exponential backoff between attempts and the total
// time spent retrying one payload.
func WithRetry(initial, max, budget time.Duration) Option {
	return func(p *retryPolicy) {
		p.initial, p.max, p.budget = initial, max, budget
	}
}

// WithRequestTimeout bounds a single HTTP attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(p *retryPolicy) { p.requestTimeout = timeout }
}

// WithMessageGap sets the minimum spacing between two payloads sent by the
// same notifier. Slack incoming webhooks accept about one message per second.
func WithMessageGap(gap time.Duration) Option {
	return func(p *retryPolicy) { p.gap = gap }
}

// poster sends JSON payloads to one webhook URL. retryablehttp provides the
// transport only; retries are driven by backoff so that Retry-After hints
// and the retry budget apply together.
type poster struct {
	logger  zerolog.Logger
	channel string
	url     string
	client  *retryablehttp.Client
	policy  retryPolicy
	limiter *rate.Limiter
}

func newPoster(logger zerolog.Logger, channel, url string, opts []Option) *poster {
	policy := defaultPolicy
	for _, opt := range opts {
		opt(&policy)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) { return false, nil }
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: policy.requestTimeout}

	return &poster{
		logger:  logger.With().Str("channel", channel).Logger(),
		channel: channel,
		url:     url,
		client:  client,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Every(policy.gap), 1),
	}
}

// post delivers payload. Transport errors, 429 and 5xx responses are retried
// until the budget runs out; any other response fails immediately.
func (p *poster) post(ctx context.Context, payload []byte) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", p.channel, err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.policy.initial
	exp.MaxInterval = p.policy.max
	exp.MaxElapsedTime = p.policy.budget
	hinted := &hintedBackOff{BackOff: exp}

	attempt := 0
	operation := func() error {
		attempt++
		err := p.send(ctx, payload)
		if err == nil {
			return nil
		}
		var failed *attemptError
		if !errors.As(err, &failed) || !failed.retry {
			return backoff.Permanent(err)
		}
		hinted.hint = failed.after
		return err
	}
	logRetry := func(err error, wait time.Duration) {
		p.logger.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("delivery attempt failed")
	}
	return backoff.RetryNotify(operation, backoff.WithContext(hinted, ctx), logRetry)
}

func (p *poster) send(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.policy.requestTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", p.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &attemptError{channel: p.channel, err: err, retry: true}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return classify(p.channel, resp, strings.TrimSpace(string(body)))
}

func classify(channel string, resp *http.Response, body string) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		after, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &attemptError{channel: channel, status: resp.Status, retry: true, after: after}
	case code >= http.StatusInternalServerError:
		return &attemptError{channel: channel, status: resp.Status, retry: true}
	default:
		return &attemptError{channel: channel, status: resp.Status, body: body}
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	var wait time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(seconds) * time.Second
	} else if when, err := http.ParseTime(value); err == nil {
		wait = time.Until(when)
	}
	if wait <= 0 {
		return 0, false
	}
	return wait, true
}

// hintedBackOff waits at least as long as the last Retry-After hint while
// keeping the exponential budget.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if h.hint > next {
		next = h.hint
	}
	h.hint = 0
	return next
}

// attemptError is one failed delivery attempt.
type attemptError struct {
	channel string
	status  string
	body    string
	err     error
	retry   bool
	after   time.Duration
}

func (e *attemptError) Error() string {
	msg := e.channel + " delivery failed: "
	if e.err != nil {
		return msg + e.err.Error()
	}
	msg += e.status
	if e.body != "" {
		msg += " (" + e.body + ")"
	}
	if e.after > 0 {
		msg += fmt.Sprintf(", retry after %s", e.after)
	}
	return msg
}

func (e *attemptError) Unwrap() error { return e.err }
