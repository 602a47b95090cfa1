package application

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBoundedLifetimeMinutes(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	within := func(d time.Duration) *time.Time {
		end := now.Add(d)
		return &end
	}

	cases := []struct {
		name           string
		entitlementEnd *time.Time
		defaultMinutes int
		want           int
	}{
		{name: "unlimited uses default", entitlementEnd: nil, defaultMinutes: 60, want: 60},
		{name: "thirty seconds rounds up to one", entitlementEnd: within(30 * time.Second), defaultMinutes: 60, want: 1},
		{name: "far future capped at default", entitlementEnd: within(10 * 24 * time.Hour), defaultMinutes: 60, want: 60},
		{name: "shorter than default wins", entitlementEnd: within(25 * time.Minute), defaultMinutes: 60, want: 25},
		{name: "exact minute boundary", entitlementEnd: within(30 * time.Minute), defaultMinutes: 60, want: 30},
		{name: "already expired floors at zero", entitlementEnd: within(-time.Minute), defaultMinutes: 60, want: 0},
		{name: "expiring this instant floors at zero", entitlementEnd: &now, defaultMinutes: 60, want: 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := BoundedLifetimeMinutes(tc.entitlementEnd, tc.defaultMinutes, now)
			if got != tc.want {
				t.Fatalf("expected %d minutes, got %d", tc.want, got)
			}
		})
	}
}

func TestTokenIssuer_Issue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	secret := []byte("test-secret")
	issuer := NewTokenIssuer(secret, 60, func() time.Time { return now })

	end := now.Add(25 * time.Minute)
	token, err := issuer.Issue("teacher-1", "room-abc", &end)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if !token.IssuedAt.Equal(now) {
		t.Errorf("expected issue time %v, got %v", now, token.IssuedAt)
	}
	if !token.ExpiresAt.Equal(now.Add(25 * time.Minute)) {
		t.Errorf("expected expiry %v, got %v", now.Add(25*time.Minute), token.ExpiresAt)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token.Token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to parse issued token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("expected a valid token")
	}
	if claims.Subject != "teacher-1" {
		t.Errorf("expected subject teacher-1, got %q", claims.Subject)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "room-abc" {
		t.Errorf("expected audience room-abc, got %v", claims.Audience)
	}
}

func TestTokenIssuer_Issue_ExpiredEntitlement(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer([]byte("test-secret"), 60, func() time.Time { return now })

	end := now.Add(-time.Second)
	_, err := issuer.Issue("teacher-1", "room-abc", &end)
	if !errors.Is(err, ErrEntitlementExpired) {
		t.Fatalf("expected ErrEntitlementExpired, got %v", err)
	}
}

func TestTokenIssuer_Issue_UnlimitedEntitlement(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer([]byte("test-secret"), 45, func() time.Time { return now })

	token, err := issuer.Issue("teacher-1", "room-abc", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !token.ExpiresAt.Equal(now.Add(45 * time.Minute)) {
		t.Errorf("expected default 45m lifetime, got expiry %v", token.ExpiresAt)
	}
}
