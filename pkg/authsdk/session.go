package authsdk

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/mcauth/pkg/slogx"
)

// PromptFunc shows the device code sign-in instruction to the user. It is
// called once, before the first poll.
type PromptFunc func(ctx context.Context, message string) error

// Authenticate runs the full interactive login: device code flow, the
// authority chain, the ownership check and the profile fetch.
func (c *SDKClient) Authenticate(ctx context.Context, prompt PromptFunc) (*Profile, error) {
	log := slogx.FromContext(ctx)

	log.Info("Logging in with Microsoft account")
	flow, err := c.BeginDeviceFlow(ctx)
	if err != nil {
		return nil, err
	}

	if prompt != nil {
		if err := prompt(ctx, flow.Message()); err != nil {
			return nil, fmt.Errorf("failed to show sign-in instructions: %w", err)
		}
	}

	log.Info("Waiting for authentication", "expires_at", flow.ExpiresAt())
	account, err := flow.Await(ctx)
	if err != nil {
		return nil, err
	}

	game, err := c.ExchangeChain(ctx, account.AccessToken)
	if err != nil {
		return nil, err
	}

	log.Info("Determining game ownership")
	if err := c.CheckOwnership(ctx, game); err != nil {
		return nil, err
	}

	profile, err := c.GetProfile(ctx, game)
	if err != nil {
		return nil, err
	}
	profile.RefreshToken = account.RefreshToken

	return profile, nil
}

// Refresh obtains a new game credential from the profile's refresh token and
// replaces both tokens in place. The profile is left untouched on failure.
// Ownership is not checked again.
func (c *SDKClient) Refresh(ctx context.Context, profile *Profile) error {
	log := slogx.FromContext(ctx)

	log.Info("Logging in with Microsoft refresh token")
	account, err := c.RefreshGrant(ctx, profile.RefreshToken)
	if err != nil {
		return err
	}

	game, err := c.ExchangeChain(ctx, account.AccessToken)
	if err != nil {
		return err
	}

	profile.GameToken = game.AccessToken
	profile.RefreshToken = account.RefreshToken
	return nil
}
