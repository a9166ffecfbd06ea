package event

import (
	"strings"
	"sync"

	"github.com/taxcrm/backend/internal/domain/shared"
)

// HandlerRegistry maps event types to handlers. A subscription ending in ".*"
// matches every event type with that prefix ("backup.*" matches "backup.completed").
type HandlerRegistry struct {
	mu       sync.RWMutex
	exact    map[string][]shared.EventHandler
	prefixes map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		exact:    make(map[string][]shared.EventHandler),
		prefixes: make(map[string][]shared.EventHandler),
	}
}

// Register adds handler for the given types, or for every event when none are given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}
	for _, t := range eventTypes {
		if prefix, ok := strings.CutSuffix(t, "*"); ok {
			r.prefixes[prefix] = append(r.prefixes[prefix], handler)
			continue
		}
		r.exact[t] = append(r.exact[t], handler)
	}
}

// Unregister removes handler from every subscription
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for _, m := range []map[string][]shared.EventHandler{r.exact, r.prefixes} {
		for key, hs := range m {
			if rest := without(hs, handler); len(rest) > 0 {
				m[key] = rest
			} else {
				delete(m, key)
			}
		}
	}
}

// GetHandlers returns the handlers for eventType: exact, then prefix, then wildcard
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := append([]shared.EventHandler(nil), r.exact[eventType]...)
	for prefix, hs := range r.prefixes {
		if strings.HasPrefix(eventType, prefix) {
			result = append(result, hs...)
		}
	}
	return append(result, r.wildcard...)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := handlers[:0:0]
	for _, h := range handlers {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}
