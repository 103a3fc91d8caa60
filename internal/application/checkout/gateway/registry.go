package gateway

import (
	"fmt"
	"sync"

	vo "checkoutgo/internal/domain/checkout/valueobjects"
)

// Registry maps provider identifiers to their gateway adapters. It is
// populated once at startup and read concurrently by handlers.
type Registry struct {
	mu       sync.RWMutex
	gateways map[vo.Provider]PaymentGateway
}

func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[vo.Provider]PaymentGateway),
	}
}

func (r *Registry) Register(provider vo.Provider, gw PaymentGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[provider] = gw
}

func (r *Registry) Get(provider vo.Provider) (PaymentGateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for provider %s", provider)
	}
	return gw, nil
}

func (r *Registry) Providers() []vo.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]vo.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		providers = append(providers, p)
	}
	return providers
}
