package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway tolerates clock skew between us and the signer.
const DefaultLeeway = 2 * time.Minute

// RS256Verifier validates JWTs signed with a single, pinned RSA key. There is
// no kid lookup: the publisher signs everything with one published key.
type RS256Verifier struct {
	key    *rsa.PublicKey
	leeway time.Duration
	now    func() time.Time
}

// NewVerifierRS256 creates a verifier pinned to pub.
func NewVerifierRS256(pub *rsa.PublicKey) *RS256Verifier {
	return &RS256Verifier{
		key:    pub,
		leeway: DefaultLeeway,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the verifier that reads time from now.
func (v *RS256Verifier) WithClock(now func() time.Time) *RS256Verifier {
	cp := *v
	cp.now = now
	return &cp
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *RS256Verifier) Verify(tokenStr string) (*Claims, error) {
	if v.key == nil {
		return nil, ErrInvalidKey
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(), // expiry is checked below against our clock
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			// Also covers a disallowed alg
			return nil, fmt.Errorf("%w: %w", ErrInvalidSig, err)
		default:
			return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}

	if err := claims.ValidateExpiryWithLeeway(v.now(), v.leeway); err != nil {
		return nil, err
	}

	return claims, nil
}
