package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spetr/tobedo/pkg/types"
)

// ReplyStoreFactory creates a ReplyStore from configuration.
type ReplyStoreFactory func(config ReplyStoreConfig) (ReplyStore, error)

// Registry holds factories for reply stores.
type Registry struct {
	mu sync.RWMutex

	replyStoreFactories map[string]ReplyStoreFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		replyStoreFactories: make(map[string]ReplyStoreFactory),
	}
}

// RegisterReplyStore registers a reply store factory.
func (r *Registry) RegisterReplyStore(name string, factory ReplyStoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replyStoreFactories[name] = factory
}

// CreateReplyStore creates a reply store by provider name.
func (r *Registry) CreateReplyStore(config ReplyStoreConfig) (ReplyStore, error) {
	r.mu.RLock()
	factory, ok := r.replyStoreFactories[config.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown reply store: %s (available: %v)", types.ErrInvalidConfig, config.Provider, r.ListReplyStores())
	}
	return factory(config)
}

// ListReplyStores returns all registered reply store names.
func (r *Registry) ListReplyStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.replyStoreFactories))
	for name := range r.replyStoreFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasReplyStore checks if a reply store is registered.
func (r *Registry) HasReplyStore(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.replyStoreFactories[name]
	return ok
}

// DefaultRegistry is the global default registry.
var DefaultRegistry = NewRegistry()

// RegisterReplyStore registers a reply store in the default registry.
func RegisterReplyStore(name string, factory ReplyStoreFactory) {
	DefaultRegistry.RegisterReplyStore(name, factory)
}
