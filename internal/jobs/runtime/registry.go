package runtime

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Handler runs one job kind, e.g. validate-paper-csv.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

var ErrUnknownJob = errors.New("unknown job")

// Registry maps job names to handlers. It is filled at wiring time and read
// by the worker pool and the job service.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Handler{}}
}

// Register adds handlers in order and stops at the first nil, unnamed or
// duplicate one.
func (r *Registry) Register(hs ...Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hs {
		if h == nil {
			return errors.New("register job: nil handler")
		}
		name := h.Type()
		if name == "" {
			return fmt.Errorf("register job: %T has no name", h)
		}
		if _, dup := r.byName[name]; dup {
			return fmt.Errorf("register job %q: already registered", name)
		}
		r.byName[name] = h
	}
	return nil
}

func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Lookup is Get with an ErrUnknownJob error for callers that report it.
func (r *Registry) Lookup(name string) (Handler, error) {
	if h, ok := r.Get(name); ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownJob, name)
}

// Types lists registered job names sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byName))
}
