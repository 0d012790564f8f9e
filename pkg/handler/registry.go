// Package handler implements the handler registry: a mapping from
// transaction name to an invokable that accepts a Request and returns
// bytes.
package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pion/logging"
)

// Request is the handler-visible snapshot of one incoming Package.
// A handler observes only its own Request, never shared mutable
// state from the core.
type Request struct {
	// Transaction is the dispatch key that selected this handler.
	Transaction string

	// Content is the package's opaque payload bytes.
	Content []byte

	// UUID correlates this request to its response.
	UUID string

	// PeerAddr is the remote address of the connection the request
	// arrived on.
	PeerAddr string

	// ActiveConnections is the number of connections the server held
	// open when this request was dispatched.
	ActiveConnections int
}

// Func is a registered handler. It returns the raw result of invoking
// the user's callable; Dispatch enforces the []byte return contract,
// so a handler that returns anything else surfaces as a typed error
// sent back to the client rather than a silent coercion.
type Func func(ctx context.Context, req *Request) (any, error)

// Registry is a thread-safe transaction -> Func table. Registration is
// a startup-time activity; Dispatch only reads, so concurrent dispatch
// requires no additional locking beyond the registry's own RWMutex.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
	log      logging.LeveledLogger
}

// NewRegistry builds an empty Registry. log may be nil to disable the
// overwrite warning.
func NewRegistry(log logging.LeveledLogger) *Registry {
	return &Registry{
		handlers: make(map[string]Func),
		log:      log,
	}
}

// Register binds transaction to fn. A second Register call for the
// same transaction replaces the first; the registry logs a warning on
// overwrite rather than rejecting it.
func (r *Registry) Register(transaction string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[transaction]; exists && r.log != nil {
		r.log.Warnf("handler: overwriting existing registration for transaction %q", transaction)
	}
	r.handlers[transaction] = fn
}

// Has reports whether transaction has a registered handler.
func (r *Registry) Has(transaction string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[transaction]
	return ok
}

// Transactions returns the names of all registered transactions,
// sorted for stable introspection output.
func (r *Registry) Transactions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the handler registered for req.Transaction and
// awaits its result.
func (r *Registry) Dispatch(ctx context.Context, req *Request) ([]byte, error) {
	r.mu.RLock()
	fn, ok := r.handlers[req.Transaction]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("Unknown transaction: %s: %w", req.Transaction, ErrUnknownTransaction)
	}

	result, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}

	data, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("handler for %q returned %T, want []byte: %w", req.Transaction, result, ErrHandlerType)
	}
	return data, nil
}
