package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnknownInstance is returned when resolving an ID the registry does not
// hold.
var ErrUnknownInstance = errors.New("unknown instance")

// Registry tracks the live instances of one value type and dispatches calls
// against them by ID.
//
// The registry lock only guards the ID table. Calls run outside it, so a
// slow or reentrant call never blocks unrelated instances.
type Registry[T any] struct {
	mu        sync.RWMutex
	instances map[string]*Storage[T]
	log       *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption[T any] func(*Registry[T])

// WithRegistryLogger sets the logger passed to every registered storage.
func WithRegistryLogger[T any](log *slog.Logger) RegistryOption[T] {
	return func(r *Registry[T]) {
		r.log = log
	}
}

// NewRegistry creates an empty registry.
func NewRegistry[T any](opts ...RegistryOption[T]) *Registry[T] {
	r := &Registry[T]{
		instances: make(map[string]*Storage[T]),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates storage for value and tracks it. Returns the storage so
// the caller can keep a direct handle.
func (r *Registry[T]) Register(value T) *Storage[T] {
	s := NewStorage(value, WithLogger[T](r.log))

	r.mu.Lock()
	r.instances[s.ID()] = s
	r.mu.Unlock()

	return s
}

// Resolve returns the storage registered under id.
func (r *Registry[T]) Resolve(id string) (*Storage[T], error) {
	r.mu.RLock()
	s, ok := r.instances[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, ErrUnknownInstance)
	}
	return s, nil
}

// Len returns the number of tracked instances.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Free destroys the storage registered under id and forgets it. Fails if
// the instance is unknown or still bound; a failed destroy leaves the
// instance registered.
func (r *Registry[T]) Free(id string) error {
	s, err := r.Resolve(id)
	if err != nil {
		return err
	}
	if err := s.Destroy(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()

	r.log.Debug("instance freed", "instance", id)
	return nil
}

// CallShared runs fn against a shared borrow of the instance's value. The
// borrow is held exactly for the duration of fn.
func (r *Registry[T]) CallShared(id string, fn func(*T) error) error {
	s, err := r.Resolve(id)
	if err != nil {
		return err
	}
	g, err := s.Get()
	if err != nil {
		return err
	}

	fnErr := fn(g.Value())

	if err := g.Release(); err != nil {
		return fmt.Errorf("instance %s: releasing shared borrow: %w", id, err)
	}
	return fnErr
}

// CallMut runs fn against an exclusive borrow of the instance's value. fn
// receives the instance's storage as well, so it can reenter via
// Storage.Reenter.
func (r *Registry[T]) CallMut(id string, fn func(*Storage[T], *T) error) error {
	s, err := r.Resolve(id)
	if err != nil {
		return err
	}
	g, err := s.GetMut()
	if err != nil {
		return err
	}

	fnErr := fn(s, g.Value())

	if err := g.Release(); err != nil {
		return fmt.Errorf("instance %s: releasing exclusive borrow: %w", id, err)
	}
	return fnErr
}
