// Package step drives chunk-oriented processing: read a chunk of items,
// process each one, write the survivors, then persist a checkpoint so a
// restarted job resumes at the next unread item.
package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// ErrStopped is returned when the stop check fires between chunks.
var ErrStopped = errors.New("step stopped")

// Reader yields items until io.EOF. Cursor reports the position after the
// last item read; Open receives the cursor saved by the previous run.
type Reader[I any] interface {
	Open(ctx context.Context, cursor int64) error
	Read(ctx context.Context) (I, error)
	Cursor() int64
	Close() error
}

// Result is the outcome of processing one item. Err carries a row error that
// the skip policy decides on. Filtered items are dropped silently.
type Result[T any] struct {
	Value    T
	Err      error
	Filtered bool
}

func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }
func Fail[T any](err error) Result[T] { return Result[T]{Err: err} }
func Filter[T any]() Result[T] { return Result[T]{Filtered: true} }

// Processor turns one item into a Result. A non-nil error aborts the step.
type Processor[I, O any] func(ctx context.Context, item I) (Result[O], error)

// Writer persists one chunk of processed items.
type Writer[O any] func(ctx context.Context, items []O) error

// SkipPolicy reports whether a row error may be skipped.
type SkipPolicy func(err error) bool

// AlwaysSkip skips every domain error (*apierr.Error) and nothing else.
func AlwaysSkip(err error) bool {
	var ae *apierr.Error
	return errors.As(err, &ae)
}

// NeverSkip fails the step on the first row error.
func NeverSkip(error) bool { return false }

type Listener[I any] interface {
	BeforeStep(ctx context.Context, name string) error
	AfterStep(ctx context.Context, name string, stats Stats) error
	OnSkip(ctx context.Context, name string, item I, err error) error
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are no-ops.
type ListenerFuncs[I any] struct {
	Before func(ctx context.Context, name string) error
	After  func(ctx context.Context, name string, stats Stats) error
	Skip   func(ctx context.Context, name string, item I, err error) error
}

func (l ListenerFuncs[I]) BeforeStep(ctx context.Context, name string) error {
	if l.Before == nil {
		return nil
	}
	return l.Before(ctx, name)
}

func (l ListenerFuncs[I]) AfterStep(ctx context.Context, name string, stats Stats) error {
	if l.After == nil {
		return nil
	}
	return l.After(ctx, name, stats)
}

func (l ListenerFuncs[I]) OnSkip(ctx context.Context, name string, item I, err error) error {
	if l.Skip == nil {
		return nil
	}
	return l.Skip(ctx, name, item, err)
}

// Stats are cumulative across restarts of the same step.
type Stats struct {
	Cursor     int64      `json:"cursor"`
	ReadCount  int64      `json:"read_count"`
	WriteCount int64      `json:"write_count"`
	SkipCount  int64      `json:"skip_count"`
	Commits    int64      `json:"commits"`
	Done       bool       `json:"done"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Checkpointer loads and stores Stats for a step.
type Checkpointer interface {
	Load(name string) Stats
	Save(ctx context.Context, name string, stats Stats) error
}

type Step[I, O any] struct {
	Name      string
	ChunkSize int
	Reader    Reader[I]
	Process   Processor[I, O]
	Write     Writer[O]
	Skip      SkipPolicy
	Listeners []Listener[I]

	// Stop is polled before every chunk.
	Stop func() bool

	Checkpoint Checkpointer
	Log        *logger.Logger
}

// Run executes the step to completion, to a stop request or to the first
// unskippable error. A step already marked done is a no-op.
func (s *Step[I, O]) Run(ctx context.Context) (Stats, error) {
	if err := s.validate(); err != nil {
		return Stats{}, err
	}
	stats := Stats{}
	if s.Checkpoint != nil {
		stats = s.Checkpoint.Load(s.Name)
	}
	if stats.Done {
		return stats, nil
	}
	log := s.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("step", s.Name)

	if stats.StartedAt == nil {
		now := time.Now().UTC()
		stats.StartedAt = &now
	}
	for _, l := range s.Listeners {
		if err := l.BeforeStep(ctx, s.Name); err != nil {
			return stats, fmt.Errorf("step %s: before: %w", s.Name, err)
		}
	}

	if err := s.Reader.Open(ctx, stats.Cursor); err != nil {
		return stats, fmt.Errorf("step %s: open reader: %w", s.Name, err)
	}
	defer func() { _ = s.Reader.Close() }()

	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}
	skip := s.Skip
	if skip == nil {
		skip = NeverSkip
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if s.Stop != nil && s.Stop() {
			log.Info("Step stop requested", "cursor", stats.Cursor)
			return stats, ErrStopped
		}

		out := make([]O, 0, chunkSize)
		eof := false
		var skipped int64
		var read int64
		for len(out)+int(skipped) < chunkSize {
			item, err := s.Reader.Read(ctx)
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				if !skip(err) {
					return stats, fmt.Errorf("step %s: read: %w", s.Name, err)
				}
				read++
				skipped++
				if err := s.notifySkip(ctx, item, err); err != nil {
					return stats, err
				}
				continue
			}
			read++

			res, err := s.Process(ctx, item)
			if err != nil {
				return stats, fmt.Errorf("step %s: process: %w", s.Name, err)
			}
			if res.Err != nil {
				if !skip(res.Err) {
					return stats, res.Err
				}
				skipped++
				if err := s.notifySkip(ctx, item, res.Err); err != nil {
					return stats, err
				}
				continue
			}
			if res.Filtered {
				skipped++
				continue
			}
			out = append(out, res.Value)
		}

		if len(out) > 0 && s.Write != nil {
			if err := s.Write(ctx, out); err != nil {
				return stats, fmt.Errorf("step %s: write: %w", s.Name, err)
			}
		}

		if read > 0 {
			stats.Cursor = s.Reader.Cursor()
			stats.ReadCount += read
			stats.WriteCount += int64(len(out))
			stats.SkipCount += skipped
			stats.Commits++
		}
		if eof {
			now := time.Now().UTC()
			stats.Done = true
			stats.FinishedAt = &now
		}
		if read > 0 || eof {
			if err := s.save(ctx, stats); err != nil {
				return stats, err
			}
		}
		if eof {
			break
		}
	}

	for _, l := range s.Listeners {
		if err := l.AfterStep(ctx, s.Name, stats); err != nil {
			return stats, fmt.Errorf("step %s: after: %w", s.Name, err)
		}
	}
	log.Info("Step finished", "read", stats.ReadCount, "written", stats.WriteCount, "skipped", stats.SkipCount)
	return stats, nil
}

func (s *Step[I, O]) notifySkip(ctx context.Context, item I, err error) error {
	for _, l := range s.Listeners {
		if lerr := l.OnSkip(ctx, s.Name, item, err); lerr != nil {
			return fmt.Errorf("step %s: on skip: %w", s.Name, lerr)
		}
	}
	return nil
}

func (s *Step[I, O]) save(ctx context.Context, stats Stats) error {
	if s.Checkpoint == nil {
		return nil
	}
	if err := s.Checkpoint.Save(ctx, s.Name, stats); err != nil {
		return fmt.Errorf("step %s: save checkpoint: %w", s.Name, err)
	}
	return nil
}

func (s *Step[I, O]) validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("nil step")
	case s.Name == "":
		return fmt.Errorf("step missing Name")
	case s.Reader == nil:
		return fmt.Errorf("step %s: missing Reader", s.Name)
	case s.Process == nil:
		return fmt.Errorf("step %s: missing Process", s.Name)
	}
	return nil
}
