package internal

import (
	"errors"
	"testing"
)

func TestResetTokenRoundTrip(t *testing.T) {
	id, token, hash, err := NewResetToken()
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}

	gotID, gotHash, err := DecodeResetToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotID != id {
		t.Fatalf("expected id %q, got %q", id, gotID)
	}
	if gotHash != hash {
		t.Fatal("secret hash mismatch")
	}

	_, other, _, err := NewResetToken()
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	if other == token {
		t.Fatal("expected unique tokens")
	}
}

func TestDecodeResetTokenRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "!!!!", "AAAAAAAAAAAAAAAAAAAAAA"} {
		if _, _, err := DecodeResetToken(in); !errors.Is(err, ErrMalformedResetToken) {
			t.Fatalf("%q: expected ErrMalformedResetToken, got %v", in, err)
		}
	}
}

func FuzzDecodeResetToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	if _, token, _, err := NewResetToken(); err == nil {
		f.Add(token)
	}

	f.Fuzz(func(t *testing.T, input string) {
		id, _, err := DecodeResetToken(input)
		if err == nil && id == "" {
			t.Fatal("decoded token without an id")
		}
	})
}
