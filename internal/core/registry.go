package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ModelRegistry loads every registered model at most once and remembers the outcome.
// A model that fails to load stays unavailable for the lifetime of the process.
type ModelRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	order   []string
	logger  *zap.Logger
}

type registryEntry struct {
	model   Loadable
	started atomic.Bool
	done    chan struct{}
	err     error
}

// NewModelRegistry creates an empty registry
func NewModelRegistry(logger *zap.Logger) *ModelRegistry {
	return &ModelRegistry{
		entries: make(map[string]*registryEntry),
		logger:  logger,
	}
}

// Register adds a model. Registering the same name twice replaces the first model.
func (r *ModelRegistry) Register(model Loadable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := model.Name()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &registryEntry{model: model, done: make(chan struct{})}
}

// Ensure loads the named model if that has not happened yet and reports whether it
// is usable. Concurrent callers wait for the single in-flight load.
func (r *ModelRegistry) Ensure(ctx context.Context, name string) error {
	entry, ok := r.entry(name)
	if !ok {
		return &ModelUnavailableError{Model: name, Err: fmt.Errorf("model is not registered")}
	}

	r.start(name, entry)

	select {
	case <-entry.done:
		return entry.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins loading the named model in the background and returns immediately
func (r *ModelRegistry) Start(name string) {
	if entry, ok := r.entry(name); ok {
		r.start(name, entry)
	}
}

func (r *ModelRegistry) entry(name string) (*registryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// start runs the load once. The load outlives the request that triggered it.
func (r *ModelRegistry) start(name string, entry *registryEntry) {
	if !entry.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		start := time.Now()
		err := entry.model.Load(context.Background())
		if err != nil {
			entry.err = &ModelUnavailableError{Model: name, Err: err}
			r.logger.Error("Failed to load model", zap.String("model", name), zap.Error(err))
		} else {
			r.logger.Info("Model loaded",
				zap.String("model", name),
				zap.Duration("duration", time.Since(start)))
		}
		close(entry.done)
	}()
}

// LoadAll loads every registered model and logs the ones that are unavailable
func (r *ModelRegistry) LoadAll(ctx context.Context) {
	for _, name := range r.Names() {
		if err := r.Ensure(ctx, name); err != nil {
			r.logger.Warn("Model unavailable, dependent endpoints will return 503",
				zap.String("model", name), zap.Error(err))
		}
	}
}

// Names returns the registered model names in registration order
func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Status reports the load state of a model without triggering a load
func (r *ModelRegistry) Status(name string) ModelStatus {
	entry, ok := r.entry(name)
	status := ModelStatus{Name: name}
	if !ok {
		status.Error = "not registered"
		return status
	}

	select {
	case <-entry.done:
		if entry.err != nil {
			status.Error = entry.err.Error()
		} else {
			status.Available = true
		}
	default:
		status.Error = "not loaded"
	}
	return status
}
