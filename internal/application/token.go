package application

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BoundedLifetimeMinutes bounds a session-credential lifetime to the
// remaining entitlement. A nil entitlement end means the caller is not
// time-bounded (exempt) and receives the default. Remaining time is
// rounded up to whole minutes so a grant with seconds left still yields a
// usable credential; a grant already past its end yields zero. The result
// never exceeds defaultMinutes: a credential must not outlive the
// entitlement that justified issuing it.
func BoundedLifetimeMinutes(entitlementEnd *time.Time, defaultMinutes int, now time.Time) int {
	if defaultMinutes < 0 {
		defaultMinutes = 0
	}
	if entitlementEnd == nil {
		return defaultMinutes
	}

	remaining := entitlementEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}

	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes > defaultMinutes {
		return defaultMinutes
	}
	return minutes
}

// TokenIssuer signs join credentials for granted access decisions.
type TokenIssuer struct {
	secret         []byte
	defaultMinutes int
	now            func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. defaultMinutes falls back to 60
// when not positive.
func NewTokenIssuer(secret []byte, defaultMinutes int, now func() time.Time) *TokenIssuer {
	if defaultMinutes <= 0 {
		defaultMinutes = 60
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, defaultMinutes: defaultMinutes, now: now}
}

// Issue signs a join credential for the principal and room, with its
// lifetime bounded by the entitlement end. The returned token is an
// immutable value; expiry is checked by inspecting ExpiresAt, never by
// mutating the token.
func (i *TokenIssuer) Issue(principalID, roomID string, entitlementEnd *time.Time) (JoinToken, error) {
	if i == nil {
		return JoinToken{}, fmt.Errorf("TokenIssuer is nil")
	}

	issuedAt := i.now()
	minutes := BoundedLifetimeMinutes(entitlementEnd, i.defaultMinutes, issuedAt)
	if minutes == 0 {
		return JoinToken{}, ErrEntitlementExpired
	}
	expiresAt := issuedAt.Add(time.Duration(minutes) * time.Minute)

	claims := jwt.RegisteredClaims{
		Subject:   principalID,
		Audience:  jwt.ClaimStrings{roomID},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return JoinToken{}, fmt.Errorf("failed to sign join token: %w", err)
	}

	return JoinToken{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}
