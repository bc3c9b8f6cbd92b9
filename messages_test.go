package authform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/authform/email"
)

func TestNegotiateLocale(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: LocalePTBR},
		{header: "pt-BR,pt;q=0.9", want: LocalePTBR},
		{header: "pt", want: LocalePTBR},
		{header: "en-US,en;q=0.8", want: LocaleEN},
		{header: "en-GB", want: LocaleEN},
		{header: "fr-FR,en;q=0.5", want: LocaleEN},
		{header: "ja", want: LocalePTBR},
		{header: ";;;", want: LocalePTBR},
	}

	for _, tc := range tests {
		if got := NegotiateLocale(tc.header, LocalePTBR); got != tc.want {
			t.Fatalf("NegotiateLocale(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestCatalogsComplete(t *testing.T) {
	for locale, m := range catalogs {
		for name, v := range map[string]string{
			"EmailRequired":      m.EmailRequired,
			"CheckRateLimited":   m.CheckRateLimited,
			"InvalidCredentials": m.InvalidCredentials,
			"RaceGuardTaken":     m.RaceGuardTaken,
			"AlreadyRegistered":  m.AlreadyRegistered,
			"Unexpected":         m.Unexpected,
		} {
			if v == "" {
				t.Fatalf("%s: %s is empty", locale, name)
			}
		}
	}
	if MessagesFor("xx").EmailRequired != catalogs[LocalePTBR].EmailRequired {
		t.Fatal("unknown locale must fall back to pt-BR")
	}
}

func TestEmailErrorMapping(t *testing.T) {
	m := MessagesFor(LocaleEN)
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: m.EmailRequired},
		{raw: "user.example.com", want: m.EmailMissingAt},
		{raw: ".user@example.com", want: m.EmailBadLocal},
		{raw: "user@example", want: m.EmailBadDomain},
		{raw: "user@example.com", want: ""},
	}

	for _, tc := range tests {
		if got := m.EmailError(email.Validate(tc.raw)); got != tc.want {
			t.Fatalf("EmailError(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	if !isInvalidCredentials(fmt.Errorf("wrapped: %w", ErrInvalidLoginCredentials)) {
		t.Fatal("wrapped sentinel must classify")
	}
	if isInvalidCredentials(errors.New("invalid login")) {
		t.Fatal("unrelated text must not classify")
	}
	if !isAlreadyRegistered(errors.New("A user with this email address has already registered")) {
		t.Fatal("substring must classify")
	}
	m := MessagesFor(LocaleEN)
	if got := m.checkFailed(ErrLookupRateLimited); got != m.CheckRateLimited {
		t.Fatalf("unexpected message %q", got)
	}
	if got := m.checkFailed(fmt.Errorf("%w: boom", ErrUnexpectedFault)); got != m.CheckUnexpected {
		t.Fatalf("unexpected message %q", got)
	}
}
