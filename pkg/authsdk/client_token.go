package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// RefreshGrant exchanges a Microsoft refresh token for a new account
// credential. The authority rotates the refresh token, so the returned
// credential replaces the old one entirely.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken Token) (AccountCredential, error) {
	if refreshToken.Value == "" {
		return AccountCredential{}, newAuthError(ErrAuthorizationDenied, "No refresh token available, login again", nil)
	}

	data := url.Values{
		"client_id":     {c.ClientID},
		"refresh_token": {refreshToken.Value},
		"grant_type":    {"refresh_token"},
		"scope":         {c.Scope},
	}

	tokenResp, err := c.requestToken(ctx, data)
	if err != nil {
		var oauthErr *OAuth2Error
		if errors.As(err, &oauthErr) {
			return AccountCredential{}, newAuthError(ErrAuthorizationDenied, deniedMessage(oauthErr), oauthErr)
		}
		return AccountCredential{}, err
	}

	return accountCredential(tokenResp, c.now())
}

// requestToken posts a grant to the token endpoint. Provider refusals come
// back as *OAuth2Error so callers can branch on the error code.
func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, c.Endpoints.Token, data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp); err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	// The error field decides, whatever the status code.
	if tokenResp.Error != "" {
		return nil, fmt.Errorf("token request failed: %w", &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        tokenResp.Error,
			Description: tokenResp.ErrorDescription,
		})
	}

	return &tokenResp, nil
}
