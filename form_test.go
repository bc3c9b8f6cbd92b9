package authform

import (
	"context"
	"strings"
	"testing"
)

func TestBlurOnlyChecksInRegisterMode(t *testing.T) {
	lookup := &fakeLookup{}
	engine := newTestEngine(t, testConfig(), lookup, &fakeBackend{})
	form, _ := newTestForm(t, engine, FormOptions{})

	form.SetEmail("user@example.com")
	view := form.BlurEmail(context.Background())

	if len(lookup.Calls()) != 0 {
		t.Fatalf("expected no lookup in login mode, got %v", lookup.Calls())
	}
	if view.Status != StatusIdle || view.Attempts != 0 {
		t.Fatalf("expected untouched gate, got status=%s attempts=%d", view.Status, view.Attempts)
	}
}

func TestBlurSkipsEmptyAndInvalidEmail(t *testing.T) {
	lookup := &fakeLookup{}
	_, form, _ := registerForm(t, lookup, &fakeBackend{})

	form.BlurEmail(context.Background())
	form.SetEmail("not-an-email")
	view := form.BlurEmail(context.Background())

	if len(lookup.Calls()) != 0 {
		t.Fatalf("expected no lookup, got %v", lookup.Calls())
	}
	if view.EmailValid || view.EmailError == "" {
		t.Fatalf("expected invalid email with message, got %+v", view)
	}
	if view.CanSubmit {
		t.Fatal("submit must be disabled for an invalid email")
	}
}

func TestBlurLooksUpNormalizedEmail(t *testing.T) {
	lookup := &fakeLookup{}
	engine, form, _ := registerForm(t, lookup, &fakeBackend{})

	form.SetEmail("  User@Example.COM ")
	view := form.BlurEmail(context.Background())

	calls := lookup.Calls()
	if len(calls) != 1 || calls[0] != "user@example.com" {
		t.Fatalf("expected one lookup of normalized email, got %v", calls)
	}
	if view.Status != StatusAvailable || view.Attempts != 1 {
		t.Fatalf("expected available after one attempt, got status=%s attempts=%d", view.Status, view.Attempts)
	}
	if !view.CanSubmit {
		t.Fatal("available email should allow submit")
	}
	if got := engine.metrics.Value(MetricEmailCheckAvailable); got != 1 {
		t.Fatalf("expected available metric 1, got %d", got)
	}

	// A resolved verdict is not re-checked on the next blur.
	form.BlurEmail(context.Background())
	if len(lookup.Calls()) != 1 {
		t.Fatalf("expected no second lookup, got %v", lookup.Calls())
	}
}

func TestEditAfterResolvedCheckResetsToIdle(t *testing.T) {
	for _, exists := range []bool{true, false} {
		lookup := &fakeLookup{}
		lookup.push(lookupResult{exists: exists})
		_, form, _ := registerForm(t, lookup, &fakeBackend{})

		form.SetEmail("taken@example.com")
		view := form.BlurEmail(context.Background())
		want := StatusAvailable
		if exists {
			want = StatusExists
		}
		if view.Status != want {
			t.Fatalf("expected %s, got %s", want, view.Status)
		}

		form.SetEmail("taken@example.co")
		view = form.View()
		if view.Status != StatusIdle {
			t.Fatalf("expected idle right after edit, got %s", view.Status)
		}
		if view.Attempts != 1 {
			t.Fatalf("edit must not reset attempts, got %d", view.Attempts)
		}
		if len(lookup.Calls()) != 1 {
			t.Fatalf("edit must not trigger a lookup, got %v", lookup.Calls())
		}
	}
}

func TestSetEmailSameValueKeepsVerdict(t *testing.T) {
	lookup := &fakeLookup{}
	_, form, _ := registerForm(t, lookup, &fakeBackend{})

	form.SetEmail("user@example.com")
	form.BlurEmail(context.Background())
	form.SetFields(Fields{Email: "user@example.com", Password: "secret1"})

	if got := form.View().Status; got != StatusAvailable {
		t.Fatalf("unchanged email should keep verdict, got %s", got)
	}
}

func TestAttemptCapBlocksFourthCheck(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.push(
		lookupResult{err: errLookupDown},
		lookupResult{err: errLookupDown},
		lookupResult{err: errLookupDown},
	)
	engine, form, _ := registerForm(t, lookup, &fakeBackend{})
	form.SetEmail("user@example.com")

	for i := 1; i <= 3; i++ {
		view := form.BlurEmail(context.Background())
		if view.Status != StatusIdle {
			t.Fatalf("attempt %d: failed lookup must return to idle, got %s", i, view.Status)
		}
		if view.Attempts != i {
			t.Fatalf("attempt %d: expected attempts=%d, got %d", i, i, view.Attempts)
		}
		if !strings.Contains(view.Error, errLookupDown.Error()) {
			t.Fatalf("attempt %d: expected lookup error surfaced, got %q", i, view.Error)
		}
	}

	view := form.BlurEmail(context.Background())
	if len(lookup.Calls()) != 3 {
		t.Fatalf("expected exactly 3 lookups, got %d", len(lookup.Calls()))
	}
	if view.Attempts != 3 {
		t.Fatalf("attempts must never exceed 3, got %d", view.Attempts)
	}
	if view.Error != MessagesFor(LocaleEN).CheckRateLimited {
		t.Fatalf("expected rate-limit message, got %q", view.Error)
	}
	if got := engine.metrics.Value(MetricEmailCheckExhausted); got != 1 {
		t.Fatalf("expected exhausted metric 1, got %d", got)
	}
}

func TestSwitchModeResetsAttemptsAndStatus(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.push(lookupResult{exists: true})
	_, form, _ := registerForm(t, lookup, &fakeBackend{})

	form.SetEmail("taken@example.com")
	form.SetPassword("secret1")
	form.BlurEmail(context.Background())
	if v := form.View(); v.Status != StatusExists || v.Attempts != 1 {
		t.Fatalf("setup: expected exists after 1 attempt, got %+v", v)
	}

	if err := form.SwitchMode(context.Background(), ModeLogin); err != nil {
		t.Fatalf("SwitchMode failed: %v", err)
	}
	view := form.View()
	if view.Mode != ModeLogin || view.Status != StatusIdle || view.Attempts != 0 {
		t.Fatalf("expected clean login form, got %+v", view)
	}
	if view.Email != "" || view.Error != "" || view.Success != "" || view.Loading {
		t.Fatalf("expected cleared fields and messages, got %+v", view)
	}
}

func TestSwitchModeRejectsUnknownMode(t *testing.T) {
	engine := newTestEngine(t, testConfig(), &fakeLookup{}, &fakeBackend{})
	form, _ := newTestForm(t, engine, FormOptions{})

	if err := form.SwitchMode(context.Background(), Mode("signup")); err != ErrInvalidMode {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestStaleLookupResultDiscardedAfterEdit(t *testing.T) {
	lookup := &fakeLookup{
		block:   make(chan struct{}),
		entered: make(chan string, 1),
	}
	lookup.push(lookupResult{exists: true})
	engine, form, _ := registerForm(t, lookup, &fakeBackend{})
	form.SetEmail("first@example.com")

	done := make(chan View, 1)
	go func() { done <- form.BlurEmail(context.Background()) }()

	<-lookup.entered
	if got := form.View().Status; got != StatusChecking {
		t.Fatalf("expected checking while lookup runs, got %s", got)
	}
	if form.CanSubmit() {
		t.Fatal("submit must be disabled while checking")
	}

	form.SetEmail("second@example.com")
	close(lookup.block)
	view := <-done

	if view.Status != StatusIdle {
		t.Fatalf("stale verdict must be discarded, got %s", view.Status)
	}
	if got := engine.metrics.Value(MetricEmailCheckStale); got != 1 {
		t.Fatalf("expected stale metric 1, got %d", got)
	}
}

func TestStaleLookupResultDiscardedAfterReset(t *testing.T) {
	lookup := &fakeLookup{
		block:   make(chan struct{}),
		entered: make(chan string, 1),
	}
	lookup.push(lookupResult{err: errLookupDown})
	_, form, _ := registerForm(t, lookup, &fakeBackend{})
	form.SetEmail("first@example.com")

	done := make(chan View, 1)
	go func() { done <- form.BlurEmail(context.Background()) }()
	<-lookup.entered

	if err := form.SwitchMode(context.Background(), ModeRegister); err != nil {
		t.Fatalf("SwitchMode failed: %v", err)
	}
	close(lookup.block)
	view := <-done

	if view.Error != "" || view.Attempts != 0 {
		t.Fatalf("result from before reset must not apply, got %+v", view)
	}
}

func TestLookupPanicSurfacedAsUnexpected(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.push(lookupResult{panic: "boom"})
	engine, form, _ := registerForm(t, lookup, &fakeBackend{})
	form.SetEmail("user@example.com")

	view := form.BlurEmail(context.Background())
	if view.Status != StatusIdle || view.Attempts != 1 {
		t.Fatalf("expected idle with attempt counted, got %+v", view)
	}
	if view.Error != MessagesFor(LocaleEN).CheckUnexpected {
		t.Fatalf("expected unexpected-fault message, got %q", view.Error)
	}
	if got := engine.metrics.Value(MetricUnexpectedFault); got != 1 {
		t.Fatalf("expected fault metric 1, got %d", got)
	}
}

func TestCloseResetsAndNotifies(t *testing.T) {
	closed := 0
	engine := newTestEngine(t, testConfig(), &fakeLookup{}, &fakeBackend{})
	form, _ := newTestForm(t, engine, FormOptions{OnClose: func() { closed++ }})

	_ = form.SwitchMode(context.Background(), ModeForgotPassword)
	form.SetEmail("user@example.com")
	form.Close(context.Background())

	if closed != 1 {
		t.Fatalf("expected close callback once, got %d", closed)
	}
	if v := form.View(); v.Mode != ModeLogin || v.Email != "" {
		t.Fatalf("expected reset login form, got %+v", v)
	}
}

func TestFormLocaleOverride(t *testing.T) {
	engine := newTestEngine(t, testConfig(), &fakeLookup{}, &fakeBackend{})
	form, _ := newTestForm(t, engine, FormOptions{Locale: LocalePTBR})

	form.SetEmail("sem-arroba")
	if got := form.View().EmailError; got != MessagesFor(LocalePTBR).EmailMissingAt {
		t.Fatalf("expected pt-BR message, got %q", got)
	}

	if _, err := engine.NewForm(FormOptions{Locale: "de"}); err == nil {
		t.Fatal("expected unsupported locale error")
	}
}
