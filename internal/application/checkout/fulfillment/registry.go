package fulfillment

import (
	"context"
	"fmt"
	"sync"
)

// Handler runs the post-payment side effect of a checkout. Args is the
// JSON-decoded argument map persisted with the ledger entry, so handlers
// must tolerate JSON number decoding (float64 for numerics).
type Handler func(ctx context.Context, args map[string]interface{}) error

// Registry maps operation names to handlers. The ledger stores only the
// operation name and its arguments; resolving the name happens here at
// dispatch time, so fulfillment survives process restarts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(op string, h Handler) error {
	if op == "" {
		return fmt.Errorf("operation name is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required for operation %s", op)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[op]; exists {
		return fmt.Errorf("operation %s already registered", op)
	}
	r.handlers[op] = h
	return nil
}

func (r *Registry) MustRegister(op string, h Handler) {
	if err := r.Register(op, h); err != nil {
		panic(err)
	}
}

// Has reports whether op is registered. CreateCheckout rejects unknown
// operations up front rather than at dispatch time.
func (r *Registry) Has(op string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[op]
	return ok
}

func (r *Registry) Dispatch(ctx context.Context, op string, args map[string]interface{}) error {
	r.mu.RLock()
	h, ok := r.handlers[op]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown fulfillment operation: %s", op)
	}
	return h(ctx, args)
}
