package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: []byte("test-secret"), TTL: ttl, Issuer: "algolearn"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	if _, err := NewManager(Config{TTL: time.Hour}); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := NewManager(Config{Secret: []byte("s")}); err == nil {
		t.Fatal("expected error without ttl")
	}
	if _, err := NewManager(Config{Secret: []byte("s"), TTL: time.Hour, Leeway: time.Hour}); err == nil {
		t.Fatal("expected error for excessive leeway")
	}
}

func TestIssueParseRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)

	tok, err := m.Issue("42", "alice", "student")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.UserID != "42" || claims.Username != "alice" || claims.Role != "student" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager(t, time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := m.Issue("1", "bob", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := newTestManager(t, time.Hour)
	other, err := NewManager(Config{Secret: []byte("other"), TTL: time.Hour, Issuer: "algolearn"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tok, err := issuer.Issue("1", "bob", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestInspectReadsClaimsWithoutKey(t *testing.T) {
	m := newTestManager(t, time.Hour)
	tok, err := m.Issue("7", "carol", "admin")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if claims.Username != "carol" {
		t.Fatalf("expected carol, got %q", claims.Username)
	}
	if claims.Expired(time.Now(), 0) {
		t.Fatal("fresh token reported expired")
	}
	if !claims.Expired(time.Now().Add(2*time.Hour), 0) {
		t.Fatal("expected token to be expired two hours later")
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	if _, err := Inspect("opaque-session-token"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
	if _, err := Inspect(strings.Repeat("a.", 2) + "a"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for garbage segments, got %v", err)
	}
}

func TestClaimsWithoutExpiryNeverExpire(t *testing.T) {
	var c Claims
	if c.Expired(time.Now().Add(100*365*24*time.Hour), 0) {
		t.Fatal("claims without exp should never expire")
	}
}
