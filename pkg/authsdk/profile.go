package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetProfile fetches the game profile for the credential's owner. Fields the
// SDK does not model are kept in Profile.Extra.
func (c *SDKClient) GetProfile(ctx context.Context, game GameCredential) (*Profile, error) {
	resp, err := c.getAuthorized(ctx, c.Endpoints.Profile, game.AccessToken)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, newAuthError(ErrMalformedResponse, "Unexpected profile response", err)
	}
	if profile.ID == "" || profile.Name == "" {
		return nil, newAuthError(ErrMalformedResponse, "Profile is missing id or name", nil)
	}

	profile.GameToken = game.AccessToken
	return &profile, nil
}
