package retrieval

import (
	"errors"
	"log"
	"sync"

	"github.com/kildespor/kildespor/config"
)

// ErrClosed is returned by Instance lookups after Shutdown.
var ErrClosed = errors.New("retrieval registry closed")

// Registry hands out one engine instance per organization. Creation is lazy
// and idempotent under concurrent first access: the first caller creates the
// instance, everyone else observes the same one.
type Registry struct {
	cfg    config.EngineConfig
	logger *log.Logger

	mu        sync.Mutex
	instances map[string]*Instance
	closed    bool
}

func NewRegistry(cfg config.EngineConfig, logger *log.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		logger:    logger,
		instances: make(map[string]*Instance),
	}
}

// Instance returns the engine handle for the organization, creating it on
// first access.
func (r *Registry) Instance(orgID string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if ins, ok := r.instances[orgID]; ok {
		return ins, nil
	}
	ins := newInstance(r.cfg, orgID)
	r.instances[orgID] = ins
	if r.logger != nil {
		r.logger.Printf("created engine instance for organization %s", orgID)
	}
	return ins, nil
}

// Shutdown finalizes every instance. Safe to call once at process teardown;
// lookups afterwards fail with ErrClosed.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for orgID, ins := range r.instances {
		ins.http.CloseIdleConnections()
		if r.logger != nil {
			r.logger.Printf("finalized engine instance for organization %s", orgID)
		}
	}
	r.instances = make(map[string]*Instance)
	r.closed = true
}
