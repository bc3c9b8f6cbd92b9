package authform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type lookupResult struct {
	exists bool
	err    error
	panic  any
}

// fakeLookup serves queued results in order; once the queue is empty it
// answers "available".
type fakeLookup struct {
	mu      sync.Mutex
	calls   []string
	results []lookupResult
	block   chan struct{}
	entered chan string
}

func (l *fakeLookup) CheckEmailExists(ctx context.Context, normalizedEmail string) (bool, error) {
	l.mu.Lock()
	l.calls = append(l.calls, normalizedEmail)
	var res lookupResult
	if len(l.results) > 0 {
		res = l.results[0]
		l.results = l.results[1:]
	}
	block, entered := l.block, l.entered
	l.mu.Unlock()

	if entered != nil {
		entered <- normalizedEmail
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if res.panic != nil {
		panic(res.panic)
	}
	return res.exists, res.err
}

func (l *fakeLookup) push(results ...lookupResult) {
	l.mu.Lock()
	l.results = append(l.results, results...)
	l.mu.Unlock()
}

func (l *fakeLookup) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type backendCall struct {
	op       string
	email    string
	password string
	name     string
}

type fakeBackend struct {
	mu       sync.Mutex
	calls    []backendCall
	loginErr error
	regErr   error
	resetErr error
	panicOn  string
}

func (b *fakeBackend) record(c backendCall) {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	panicOn := b.panicOn
	b.mu.Unlock()
	if panicOn == c.op {
		panic("backend exploded")
	}
}

func (b *fakeBackend) Login(_ context.Context, email, password string) error {
	b.record(backendCall{op: "login", email: email, password: password})
	return b.loginErr
}

func (b *fakeBackend) Register(_ context.Context, email, password, name string) error {
	b.record(backendCall{op: "register", email: email, password: password, name: name})
	return b.regErr
}

func (b *fakeBackend) ResetPassword(_ context.Context, email string) error {
	b.record(backendCall{op: "reset", email: email})
	return b.resetErr
}

func (b *fakeBackend) Calls(op string) []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []backendCall
	for _, c := range b.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// manualScheduler captures delayed actions so tests fire them explicitly.
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

func (s *manualScheduler) fire(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		t.Fatal("expected a scheduled action")
	}
	for _, fn := range pending {
		fn()
	}
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

var errLookupDown = errors.New("lookup service down")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Locale = LocaleEN
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, lookup EmailLookup, backend Backend) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithEmailLookup(lookup).
		WithBackend(backend).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestForm(t *testing.T, engine *Engine, opts FormOptions) (*Form, *manualScheduler) {
	t.Helper()

	form, err := engine.NewForm(opts)
	if err != nil {
		t.Fatalf("NewForm failed: %v", err)
	}
	sched := &manualScheduler{}
	form.schedule = sched.schedule
	return form, sched
}

func registerForm(t *testing.T, lookup *fakeLookup, backend *fakeBackend) (*Engine, *Form, *manualScheduler) {
	t.Helper()

	engine := newTestEngine(t, testConfig(), lookup, backend)
	form, sched := newTestForm(t, engine, FormOptions{})
	if err := form.SwitchMode(context.Background(), ModeRegister); err != nil {
		t.Fatalf("SwitchMode failed: %v", err)
	}
	return engine, form, sched
}
