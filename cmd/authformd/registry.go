package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authform"
)

var errRegistryFull = errors.New("too many open forms")

type formEntry struct {
	form     *authform.Form
	lastSeen time.Time
}

// formRegistry holds open forms by ID and evicts the ones left idle.
type formRegistry struct {
	mu      sync.Mutex
	forms   map[string]*formEntry
	idleTTL time.Duration
	max     int
	now     func() time.Time
	logger  *zap.Logger
}

func newFormRegistry(idleTTL time.Duration, max int, logger *zap.Logger) *formRegistry {
	return &formRegistry{
		forms:   make(map[string]*formEntry),
		idleTTL: idleTTL,
		max:     max,
		now:     time.Now,
		logger:  logger,
	}
}

func (r *formRegistry) add(f *authform.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.forms) >= r.max {
		return errRegistryFull
	}
	r.forms[f.ID()] = &formEntry{form: f, lastSeen: r.now()}
	return nil
}

// get returns the form and marks it as recently used.
func (r *formRegistry) get(id string) (*authform.Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.forms[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.form, true
}

func (r *formRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.forms, id)
	r.mu.Unlock()
}

func (r *formRegistry) count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.forms))
}

// sweep drops forms idle for longer than idleTTL and returns how many went.
func (r *formRegistry) sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.forms {
		if e.lastSeen.Before(cutoff) {
			delete(r.forms, id)
			n++
		}
	}
	return n
}

// run sweeps every interval until ctx is done.
func (r *formRegistry) run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.sweep(); n > 0 {
				r.logger.Debug("evicted idle forms", zap.Int("count", n))
			}
		}
	}
}
