package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Entitlement is one product record inside a signed entitlement claim set.
type Entitlement struct {
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
}

// Claims are the claims carried by a signed entitlement response. Only
// RequestID is relied upon; the rest is kept for diagnostics.
type Claims struct {
	jwt.RegisteredClaims

	// RequestID echoes the nonce the client sent with the request.
	RequestID string `json:"requestId"`

	// Entitlements mirrors the unsigned item list.
	Entitlements []Entitlement `json:"entitlements,omitempty"`

	// Signer identifies the service that produced the signature.
	Signer string `json:"signerId,omitempty"`
}

// NewEntitlementClaims builds claims for the given request nonce. Used by
// tests and fakes standing in for the publisher.
func NewEntitlementClaims(requestID string, names []string, ttl time.Duration, now time.Time) Claims {
	ents := make([]Entitlement, 0, len(names))
	for _, n := range names {
		ents = append(ents, Entitlement{Name: n})
	}

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
		RequestID:    requestID,
		Entitlements: ents,
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return c
}

// ValidateRequestID checks the signed nonce against the one that was sent.
func (c *Claims) ValidateRequestID(expected string) error {
	if expected == "" || c.RequestID != expected {
		return ErrRequestID
	}
	return nil
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	// Check After Leeway
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	// Check Before Leeway
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
