package authsdk

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/aussiebroadwan/mcauth/pkg/jwtx"
	"github.com/aussiebroadwan/mcauth/pkg/slogx"
)

// GameProducts are the entitlement names that prove ownership of the game.
var GameProducts = []string{"product_minecraft", "game_minecraft"}

// PublisherPublicKeyPEM is the game publisher's published key for entitlement signatures.
const PublisherPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIICIjANBgkqhkiG9w0BAQEFAAOCAg8AMIICCgKCAgEAtz7jy4jRH3psj5AbVS6W
NHjniqlr/f5JDly2M8OKGK81nPEq765tJuSILOWrC3KQRvHJIhf84+ekMGH7iGlO
4DPGDVb6hBGoMMBhCq2jkBjuJ7fVi3oOxy5EsA/IQqa69e55ugM+GJKUndLyHeNn
X6RzRzDT4tX/i68WJikwL8rR8Jq49aVJlIEFT6F+1rDQdU2qcpfT04CBYLM5gMxE
fWRl6u1PNQixz8vSOv8pA6hB2DU8Y08VvbK7X2ls+BiS3wqqj3nyVWqoxrwVKiXR
kIqIyIAedYDFSaIq5vbmnVtIonWQPeug4/0spLQoWnTUpXRZe2/+uAKN1RY9mmaB
pRFV/Osz3PDOoICGb5AZ0asLFf/qEvGJ+di6Ltt8/aaoBuVw+7fnTw2BhkhSq1S/
va6LxHZGXE9wsLj4CN8mZXHfwVD9QG0VNQTUgEGZ4ngf7+0u30p7mPt5sYy3H+Fm
sWXqFZn55pecmrgNLqtETPWMNpWc2fJu/qqnxE9o2tBGy/MqJiw3iLYxf7U+4le4
jM49AUKrO16bD1rdFwyVuNaTefObKjEMTX9gyVUF6o7oDEItp5NHxFm3CqnQRmch
HsMs+NxEnN4E9a8PDB23b4yjKOQ9VHDxBxuaZJU60GBCIOF9tslb7OAkheSJx5Xy
EYblHbogFGPRFU++NrSQRX0CAwEAAQ==
-----END PUBLIC KEY-----
`

func mustPublisherVerifier() jwtx.Verifier {
	pub, err := jwtx.ParseRSAPublicKeyPEM([]byte(PublisherPublicKeyPEM))
	if err != nil {
		panic(fmt.Sprintf("authsdk: publisher key: %v", err))
	}
	return jwtx.NewVerifierRS256(pub)
}

// CheckOwnership fetches the account's entitlements and verifies that the
// response is signed by the publisher for this very request and lists the game.
func (c *SDKClient) CheckOwnership(ctx context.Context, game GameCredential) error {
	log := slogx.FromContext(ctx)
	nonce := c.nonce()

	endpoint, err := url.Parse(c.Endpoints.Entitlements)
	if err != nil {
		return fmt.Errorf("invalid entitlements endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("requestId", nonce)
	endpoint.RawQuery = q.Encode()

	resp, err := c.getAuthorized(ctx, endpoint.String(), game.AccessToken)
	if err != nil {
		return err
	}

	var ent EntitlementsResponse
	if err := decodeJSON(resp, &ent); err != nil {
		return fmt.Errorf("entitlement request failed: %w", err)
	}

	if err := c.verifyEntitlements(ent, nonce); err != nil {
		log.Warn("entitlement signature rejected", "error", err)
		return err
	}

	for _, item := range ent.Items {
		if slices.Contains(GameProducts, item.Name) {
			return nil
		}
	}

	return newAuthError(ErrEntitlementMissing, "User does not own the game", nil)
}

// verifyEntitlements checks the detached signature and that it was issued for nonce.
func (c *SDKClient) verifyEntitlements(ent EntitlementsResponse, nonce string) error {
	if ent.Signature == "" {
		return newAuthError(ErrProtocolViolation, "Incorrect signature", nil)
	}

	verifier := c.EntitlementVerifier
	if verifier == nil {
		verifier = mustPublisherVerifier()
	}

	claims, err := verifier.Verify(ent.Signature)
	if err != nil {
		return newAuthError(ErrProtocolViolation, "Incorrect signature", err)
	}

	if err := claims.ValidateRequestID(nonce); err != nil {
		return newAuthError(ErrProtocolViolation, "Incorrect signature",
			fmt.Errorf("%w: signed %q, sent %q", err, claims.RequestID, nonce))
	}
	if ent.RequestID != nonce {
		return newAuthError(ErrProtocolViolation, "Incorrect signature",
			fmt.Errorf("response requestId %q, sent %q", ent.RequestID, nonce))
	}

	return nil
}
