/*
Package authsdk signs a user in to the game services through the Microsoft
identity platform and Xbox Live.

# Overview

Getting a game access token takes four dependent token exchanges:

 1. Microsoft account: OAuth2 device code grant (or refresh token grant)
 2. Xbox Live: the Microsoft access token becomes an Xbox Live user token and a user hash
 3. XSTS: the Xbox Live token becomes an XSTS token for the game's relying party
 4. Game services: "XBL3.0 x=<user hash>;<xsts token>" becomes the game access token

The first failing hop aborts the chain; no partial credential is ever returned.

# Usage

	client := authsdk.NewSDKClient(clientID)

	profile, err := client.Authenticate(ctx, func(ctx context.Context, msg string) error {
		fmt.Println(msg)
		return nil
	})

	// Later, once profile.GameToken has expired:
	err = client.Refresh(ctx, profile)

Authenticate also verifies the signed entitlement list so that only accounts
owning the game get a profile. Refresh skips that step.

# Device Code Polling

DeviceFlow.Poll performs a single attempt and returns a PollResult:

	flow, err := client.BeginDeviceFlow(ctx)
	fmt.Println(flow.Message())

	for {
		res, err := flow.Poll(ctx)
		if err != nil {
			return err // ErrFlowExpired, ErrAuthorizationDenied, ...
		}
		if res.Status == authsdk.PollSuccess {
			break
		}
		time.Sleep(flow.Interval())
	}

slow_down adds five seconds to the interval; a transport timeout doubles it.
DeviceFlow.Await wraps this loop using the client's Clock.

# Errors

Terminal failures are *AuthError values whose Message is meant for the end
user. They match ErrAuthFailed and one of the kind sentinels:

	if errors.Is(err, authsdk.ErrProtocolViolation) {
		// user hash changed between hops or the entitlement signature is bad
	}

# Token Serialization

Token marshals to a tagged object so stored profiles can tell tokens apart
from plain values:

	{"type": "token", "value": "...", "not_after": "2024-01-02T03:04:05Z"}

Refresh tokens have no tracked expiry and marshal with "not_after": null.
*/
package authsdk
