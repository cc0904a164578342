package ctxutil

import "context"

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Trace ties a unit of work to the request or job that started it.
type Trace struct {
	TraceID   string
	RequestID string
	JobID     string
}

type traceKey struct{}

func WithTrace(ctx context.Context, t Trace) context.Context {
	return context.WithValue(Default(ctx), traceKey{}, t)
}

func TraceFrom(ctx context.Context) (Trace, bool) {
	if ctx == nil {
		return Trace{}, false
	}
	t, ok := ctx.Value(traceKey{}).(Trace)
	return t, ok
}

// Fields renders the non-empty ids as logger key/value pairs.
func (t Trace) Fields() []interface{} {
	out := make([]interface{}, 0, 6)
	if t.TraceID != "" {
		out = append(out, "trace_id", t.TraceID)
	}
	if t.RequestID != "" {
		out = append(out, "request_id", t.RequestID)
	}
	if t.JobID != "" {
		out = append(out, "job_id", t.JobID)
	}
	return out
}

// Stamp copies the request ids into a job payload so the worker can restore
// them. JobID is not carried; the job knows its own.
func (t Trace) Stamp(payload map[string]any) {
	if payload == nil {
		return
	}
	if t.TraceID != "" {
		payload["trace_id"] = t.TraceID
	}
	if t.RequestID != "" {
		payload["request_id"] = t.RequestID
	}
}
