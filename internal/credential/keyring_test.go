package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestTokenLifecycle(t *testing.T) {
	s := Store{Ring: keyring.NewArrayKeyring(nil)}
	if _, err := s.Token("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.SetToken("u1", "secret"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Token("u1")
	if err != nil || got != "secret" {
		t.Fatalf("unexpected token %q %v", got, err)
	}
	if _, err := s.Token("u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tokens must be per profile, got %v", err)
	}
	if err := s.DeleteToken("u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Token("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
