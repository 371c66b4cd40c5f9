package jwtx

import (
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer signs entitlement claims with an RSA key. The client never
// signs anything itself; this exists so tests and local fakes can stand in
// for the publisher.
type RS256Signer struct {
	key *rsa.PrivateKey
}

// NewSignerRS256 loads an RSA private key from PEM bytes (PKCS1 or PKCS8).
func NewSignerRS256(pemKey []byte) (*RS256Signer, error) {
	key, err := ParseRSAPrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}
	return &RS256Signer{key: key}, nil
}

// NewSignerRS256FromKey wraps an already parsed key.
func NewSignerRS256FromKey(key *rsa.PrivateKey) *RS256Signer {
	return &RS256Signer{key: key}
}

// Sign takes your claims and turns them into a signed JWT string.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	if s.key == nil {
		return "", errors.New("jwtx: nil RSA key")
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return t.SignedString(s.key)
}

// Public returns the verification key matching this signer.
func (s *RS256Signer) Public() *rsa.PublicKey {
	if s.key == nil {
		return nil
	}
	return &s.key.PublicKey
}
