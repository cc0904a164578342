package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{&StatusError{StatusCode: 503}, true},
		{&StatusError{StatusCode: 429}, true},
		{fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 404}), false},
		{errors.New("malformed csl"), false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v): want=%v got=%v", tc.err, tc.want, got)
		}
	}
}

func TestRetryStopsAfterBudget(t *testing.T) {
	calls := 0
	var waits []time.Duration
	r := Retry{Retries: 2, Base: time.Millisecond, OnRetry: func(_ int, d time.Duration, _ error) { waits = append(waits, d) }}
	err := r.Do(context.Background(), func(context.Context) (*http.Response, error) {
		calls++
		return nil, &StatusError{StatusCode: 502}
	})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 502 {
		t.Fatalf("err: want=http 502 got=%v", err)
	}
	if calls != 3 || len(waits) != 2 {
		t.Fatalf("calls=%d waits=%v", calls, waits)
	}
}

func TestRetryHonoursRetryAfterUpToMax(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	if got := (Retry{Max: 10 * time.Second}).cap(retryAfter(resp, time.Second)); got != 10*time.Second {
		t.Fatalf("capped: want=10s got=%v", got)
	}
	if got := retryAfter(nil, time.Second); got != time.Second {
		t.Fatalf("fallback: want=1s got=%v", got)
	}
}

func TestJitterBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		if d := jitter(time.Second); d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
}
