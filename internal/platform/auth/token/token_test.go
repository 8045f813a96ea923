package token

import (
	"testing"
	"time"

	memclock "github.com/wesrides/rides-api/internal/adapters/memory/clock"
	"github.com/wesrides/rides-api/internal/domain"
)

func TestIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	iss := NewIssuer("test-secret", time.Hour, clk)

	raw, err := iss.Issue(domain.UserID("user-1"))
	if err != nil {
		t.Fatalf("Issue err=%v", err)
	}
	got, err := iss.Verify(raw)
	if err != nil {
		t.Fatalf("Verify err=%v", err)
	}
	if got != domain.UserID("user-1") {
		t.Fatalf("subject=%q, want user-1", got)
	}
}

func TestIssuer_Expired(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	iss := NewIssuer("test-secret", time.Hour, clk)

	raw, err := iss.Issue(domain.UserID("user-1"))
	if err != nil {
		t.Fatalf("Issue err=%v", err)
	}

	clk.Advance(2 * time.Hour)
	if _, err := iss.Verify(raw); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestIssuer_WrongSecret(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	raw, err := NewIssuer("secret-a", time.Hour, clk).Issue(domain.UserID("user-1"))
	if err != nil {
		t.Fatalf("Issue err=%v", err)
	}
	if _, err := NewIssuer("secret-b", time.Hour, clk).Verify(raw); err == nil {
		t.Fatalf("expected verification with wrong secret to fail")
	}
}
