// Package httpx retries outbound HTTP calls such as DOI lookups.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		body = "<empty body>"
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// Retryable reports whether err is worth another attempt: timeouts, 408, 429
// and 5xx. A cancelled context never is.
func Retryable(err error) bool {
	var se *StatusError
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.As(err, &se):
		return se.StatusCode == http.StatusRequestTimeout ||
			se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode >= 500
	case errors.As(err, &ne):
		return ne.Timeout()
	}
	return false
}

// Retry runs a call up to Retries+1 times with doubling, jittered waits.
// A Retry-After header on the failed response replaces the computed wait.
type Retry struct {
	Retries int
	Base    time.Duration
	Max     time.Duration
	// OnRetry is told about every wait before it starts.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func (r Retry) Do(ctx context.Context, call func(context.Context) (*http.Response, error)) error {
	wait := r.Base
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	for attempt := 1; ; attempt++ {
		resp, err := call(ctx)
		if err == nil || attempt > r.Retries || !Retryable(err) {
			return err
		}
		d := jitter(r.cap(retryAfter(resp, wait)))
		if r.OnRetry != nil {
			r.OnRetry(attempt, d, err)
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait *= 2
	}
}

func (r Retry) cap(d time.Duration) time.Duration {
	if r.Max > 0 && d > r.Max {
		return r.Max
	}
	return d
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}
	secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// jitter spreads d by +/-20%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}
