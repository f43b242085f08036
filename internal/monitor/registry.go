package monitor

import (
	"context"
	"sort"
	"sync"
)

// Registry tracks the sessions currently running in this process, keyed the
// same way as the persisted session records. It only manages cancel funcs;
// session state stays inside each runner.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

// Add registers a running session. A previous entry under the same key is
// cancelled first; the store-level duplicate check should make that rare.
func (g *Registry) Add(key string, cancel context.CancelFunc) {
	g.mu.Lock()
	if prev, ok := g.cancels[key]; ok {
		prev()
	}
	g.cancels[key] = cancel
	g.mu.Unlock()
}

// Remove drops a session without cancelling it. Called by the runner's owner
// once Run returns.
func (g *Registry) Remove(key string) {
	g.mu.Lock()
	delete(g.cancels, key)
	g.mu.Unlock()
}

// Cancel stops a session early. Returns false when no such session runs
// here.
func (g *Registry) Cancel(key string) bool {
	g.mu.Lock()
	cancel, ok := g.cancels[key]
	if ok {
		delete(g.cancels, key)
	}
	g.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Active lists the keys of running sessions, sorted for stable output.
func (g *Registry) Active() []string {
	g.mu.Lock()
	keys := make([]string, 0, len(g.cancels))
	for key := range g.cancels {
		keys = append(keys, key)
	}
	g.mu.Unlock()

	sort.Strings(keys)
	return keys
}
