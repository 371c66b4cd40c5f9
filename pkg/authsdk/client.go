package authsdk

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/idx"
	"github.com/aussiebroadwan/mcauth/pkg/jwtx"
)

const (
	// DefaultScope is what the Xbox Live sign-in needs plus a refresh token.
	DefaultScope = "XboxLive.signin offline_access"

	// DeviceCodeGrantType is the RFC 8628 grant type.
	DeviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	xblSiteName      = "user.auth.xboxlive.com"
	xblRelyingParty  = "http://auth.xboxlive.com"
	xstsRelyingParty = "rp://api.minecraftservices.com/"
	xstsSandbox      = "RETAIL"
	gamePlatform     = "PC_LAUNCHER"
)

// Endpoints lists every authority the chain talks to.
type Endpoints struct {
	DeviceCode   string
	Token        string
	XboxLive     string
	XSTS         string
	GameLogin    string
	Entitlements string
	Profile      string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		DeviceCode:   "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode",
		Token:        "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
		XboxLive:     "https://user.auth.xboxlive.com/user/authenticate",
		XSTS:         "https://xsts.auth.xboxlive.com/xsts/authorize",
		GameLogin:    "https://api.minecraftservices.com/launcher/login",
		Entitlements: "https://api.minecraftservices.com/entitlements/license",
		Profile:      "https://api.minecraftservices.com/minecraft/profile",
	}
}

// Clock abstracts wall time and sleeping so the poll loop can be driven
// deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SystemClock returns the real clock.
func SystemClock() Clock { return systemClock{} }

// SDKClient talks to the Microsoft identity platform, the Xbox Live and XSTS
// authorities and the game services. It holds no per-session state, so a
// single client can drive any number of independent logins.
type SDKClient struct {
	ClientID   string
	Scope      string
	Endpoints  Endpoints
	HTTPClient *http.Client

	// EntitlementVerifier checks the signature on entitlement responses.
	// Defaults to the game publisher's published RS256 key.
	EntitlementVerifier jwtx.Verifier

	// Clock drives token expiry and device code polling. Default: wall clock.
	Clock Clock

	// NewNonce generates the per-request entitlement requestId.
	NewNonce func() string
}

// NewSDKClient creates a client for the given Azure application client id
// using the production endpoints.
func NewSDKClient(clientID string) *SDKClient {
	return &SDKClient{
		ClientID:  clientID,
		Scope:     DefaultScope,
		Endpoints: DefaultEndpoints(),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		EntitlementVerifier: mustPublisherVerifier(),
		Clock:               SystemClock(),
		NewNonce:            func() string { return idx.New().String() },
	}
}

func (c *SDKClient) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now()
}

func (c *SDKClient) clock() Clock {
	if c.Clock == nil {
		return systemClock{}
	}
	return c.Clock
}

func (c *SDKClient) nonce() string {
	if c.NewNonce == nil {
		return idx.New().String()
	}
	return c.NewNonce()
}
