package authsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/mcauth/pkg/slogx"
)

// ExchangeChain turns a Microsoft access token into a game credential by
// walking Xbox Live, XSTS and the game login in order. The first failing hop
// aborts the chain.
func (c *SDKClient) ExchangeChain(ctx context.Context, accountAccess Token) (GameCredential, error) {
	log := slogx.FromContext(ctx)

	log.Info("Logging in as an Xbox user")
	xblToken, userHash, err := c.AuthenticateXboxLive(ctx, accountAccess)
	if err != nil {
		return GameCredential{}, err
	}

	log.Info("Getting authorization to access Xbox services")
	xstsToken, err := c.AuthorizeXSTS(ctx, xblToken, userHash)
	if err != nil {
		return GameCredential{}, err
	}

	log.Info("Getting authorization to access game services")
	return c.LoginGame(ctx, xstsToken, userHash)
}

// AuthenticateXboxLive exchanges the Microsoft access token for an Xbox Live
// user token and the user hash that ties the following hops together.
func (c *SDKClient) AuthenticateXboxLive(ctx context.Context, accountAccess Token) (Token, string, error) {
	req := XboxLiveRequest{
		Properties: xblProperties{
			AuthMethod: "RPS",
			SiteName:   xblSiteName,
			RpsTicket:  "d=" + accountAccess.Value,
		},
		RelyingParty: xblRelyingParty,
		TokenType:    "JWT",
	}

	resp, err := c.postJSON(ctx, c.Endpoints.XboxLive, req)
	if err != nil {
		return Token{}, "", err
	}

	var xbl XboxTokenResponse
	if err := decodeJSON(resp, &xbl); err != nil {
		var xerr *XboxError
		if errors.As(err, &xerr) {
			return Token{}, "", newAuthError(ErrAuthorizationDenied,
				fmt.Sprintf("Xbox Live authentication failed: %d", xerr.XErr), xerr)
		}
		return Token{}, "", fmt.Errorf("xbox live authentication failed: %w", err)
	}

	userHash, ok := xbl.DisplayClaims.UserHash()
	if !ok {
		return Token{}, "", newAuthError(ErrMalformedResponse, "User hash not found", nil)
	}

	token, err := xboxToken(xbl)
	if err != nil {
		return Token{}, "", err
	}

	return token, userHash, nil
}

// AuthorizeXSTS exchanges the Xbox Live token for an XSTS token scoped to the
// game services. The user hash in the answer must match the one from the
// Xbox Live hop.
func (c *SDKClient) AuthorizeXSTS(ctx context.Context, xblToken Token, userHash string) (Token, error) {
	req := XSTSRequest{
		Properties: xstsProperties{
			SandboxID:  xstsSandbox,
			UserTokens: []string{xblToken.Value},
		},
		RelyingParty: xstsRelyingParty,
		TokenType:    "JWT",
	}

	resp, err := c.postJSON(ctx, c.Endpoints.XSTS, req)
	if err != nil {
		return Token{}, err
	}

	var body struct {
		XboxTokenResponse
		XErr int64 `json:"XErr"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		var xerr *XboxError
		if errors.As(err, &xerr) {
			return Token{}, newAuthError(ErrAuthorizationDenied, xstsMessage(xerr.XErr), xerr)
		}
		return Token{}, fmt.Errorf("xsts authorization failed: %w", err)
	}
	if body.XErr != 0 {
		return Token{}, newAuthError(ErrAuthorizationDenied, xstsMessage(body.XErr),
			&XboxError{StatusCode: resp.StatusCode, XErr: body.XErr})
	}

	got, ok := body.DisplayClaims.UserHash()
	if !ok {
		return Token{}, newAuthError(ErrMalformedResponse, "User hash not found", nil)
	}
	if got != userHash {
		return Token{}, newAuthError(ErrProtocolViolation,
			"User hash changed, something is wrong on the server side", nil)
	}

	return xboxToken(body.XboxTokenResponse)
}

// LoginGame exchanges the XSTS token for the game-service access token.
func (c *SDKClient) LoginGame(ctx context.Context, xstsToken Token, userHash string) (GameCredential, error) {
	req := GameLoginRequest{
		XToken:   IdentityToken(userHash, xstsToken),
		Platform: gamePlatform,
	}

	resp, err := c.postJSON(ctx, c.Endpoints.GameLogin, req)
	if err != nil {
		return GameCredential{}, err
	}

	var login GameLoginResponse
	if err := decodeJSON(resp, &login); err != nil {
		return GameCredential{}, fmt.Errorf("game login failed: %w", err)
	}
	if login.AccessToken == "" {
		return GameCredential{}, newAuthError(ErrMalformedResponse, "Game login returned no access token", nil)
	}

	return GameCredential{
		AccessToken: NewToken(login.AccessToken, c.now(), login.ExpiresIn),
	}, nil
}

// IdentityToken formats the compound credential the game login expects.
func IdentityToken(userHash string, xstsToken Token) string {
	return fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken.Value)
}

func xboxToken(resp XboxTokenResponse) (Token, error) {
	if resp.Token == "" {
		return Token{}, newAuthError(ErrMalformedResponse, "Token missing from Xbox response", nil)
	}

	notAfter, err := ParseTimestamp(resp.NotAfter)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: resp.Token, NotAfter: notAfter}, nil
}
