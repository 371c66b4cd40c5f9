package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/slogx"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultFlowLifetime = 15 * time.Minute
	slowDownIncrement   = 5 * time.Second
)

// PollStatus is the outcome of a single device code poll.
type PollStatus int

const (
	// PollPending means the user has not finished signing in yet.
	PollPending PollStatus = iota
	// PollSlowDown means the authority asked us to back off; the interval grew by 5s.
	PollSlowDown
	// PollTimedOut means the attempt hit a transport timeout; the interval doubled.
	PollTimedOut
	// PollSuccess means the credential is available.
	PollSuccess
)

func (s PollStatus) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollSlowDown:
		return "slow_down"
	case PollTimedOut:
		return "timed_out"
	case PollSuccess:
		return "success"
	default:
		return fmt.Sprintf("PollStatus(%d)", int(s))
	}
}

// PollResult is the tagged result of DeviceFlow.Poll. Credential is only set
// when Status is PollSuccess. Terminal failures come back as errors instead.
type PollResult struct {
	Status     PollStatus
	Credential AccountCredential
}

// DeviceFlow is one in-flight device code authorization. It is owned by a
// single caller and is not safe for concurrent use.
type DeviceFlow struct {
	client *SDKClient

	deviceCode      string
	userCode        string
	verificationURI string
	message         string

	startedAt time.Time
	expiresIn time.Duration
	interval  time.Duration
}

// BeginDeviceFlow requests a device code. The returned flow's Message must be
// shown to the user before polling starts.
func (c *SDKClient) BeginDeviceFlow(ctx context.Context) (*DeviceFlow, error) {
	data := url.Values{
		"client_id": {c.ClientID},
		"scope":     {c.Scope},
	}

	resp, err := c.postForm(ctx, c.Endpoints.DeviceCode, data)
	if err != nil {
		return nil, err
	}

	var dc DeviceCodeResponse
	if err := decodeJSON(resp, &dc); err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	if dc.DeviceCode == "" {
		return nil, newAuthError(ErrMalformedResponse, "Device code missing from response", nil)
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	expiresIn := time.Duration(dc.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = defaultFlowLifetime
	}

	return &DeviceFlow{
		client:          c,
		deviceCode:      dc.DeviceCode,
		userCode:        dc.UserCode,
		verificationURI: dc.VerificationURI,
		message:         dc.Message,
		startedAt:       c.now(),
		expiresIn:       expiresIn,
		interval:        interval,
	}, nil
}

// Message is the provider's sign-in instruction for the user.
func (f *DeviceFlow) Message() string {
	if f.message != "" {
		return f.message
	}
	return fmt.Sprintf("To sign in, use a web browser to open the page %s and enter the code %s to authenticate.",
		f.verificationURI, f.userCode)
}

// UserCode is the code the user types on the verification page.
func (f *DeviceFlow) UserCode() string { return f.userCode }

// VerificationURI is the page the user opens to authorize the device.
func (f *DeviceFlow) VerificationURI() string { return f.verificationURI }

// Interval is the current delay between polls.
func (f *DeviceFlow) Interval() time.Duration { return f.interval }

// ExpiresAt is the instant after which polling fails with ErrFlowExpired.
func (f *DeviceFlow) ExpiresAt() time.Time { return f.startedAt.Add(f.expiresIn) }

// Poll performs exactly one token request for the device code.
func (f *DeviceFlow) Poll(ctx context.Context) (PollResult, error) {
	c := f.client
	log := slogx.FromContext(ctx)

	now := c.now()
	if now.Sub(f.startedAt) >= f.expiresIn {
		return PollResult{}, newAuthError(ErrFlowExpired, "Authentication takes too long to finish", nil)
	}

	data := url.Values{
		"client_id":   {c.ClientID},
		"device_code": {f.deviceCode},
		"grant_type":  {DeviceCodeGrantType},
	}

	tokenResp, err := c.requestToken(ctx, data)
	if err != nil {
		if errors.Is(err, ErrTransportTimeout) {
			f.interval *= 2
			log.Warn("device code poll timed out", "error", err, "interval", f.interval)
			return PollResult{Status: PollTimedOut}, nil
		}

		var oauthErr *OAuth2Error
		if !errors.As(err, &oauthErr) {
			return PollResult{}, err
		}

		switch oauthErr.Code {
		case ErrorCodeAuthorizationPending:
			return PollResult{Status: PollPending}, nil
		case ErrorCodeSlowDown:
			f.interval += slowDownIncrement
			log.Debug("device code poll asked to slow down", "interval", f.interval)
			return PollResult{Status: PollSlowDown}, nil
		default:
			return PollResult{}, newAuthError(ErrAuthorizationDenied, deniedMessage(oauthErr), oauthErr)
		}
	}

	cred, err := accountCredential(tokenResp, c.now())
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{Status: PollSuccess, Credential: cred}, nil
}

// Await polls until the flow succeeds, fails or expires, sleeping the current
// interval between attempts.
func (f *DeviceFlow) Await(ctx context.Context) (AccountCredential, error) {
	log := slogx.FromContext(ctx)
	clock := f.client.clock()

	for {
		res, err := f.Poll(ctx)
		if err != nil {
			return AccountCredential{}, err
		}
		if res.Status == PollSuccess {
			return res.Credential, nil
		}

		log.Debug("waiting for device authorization", "status", res.Status.String(), "interval", f.interval)
		if err := clock.Sleep(ctx, f.interval); err != nil {
			return AccountCredential{}, err
		}
	}
}

func deniedMessage(e *OAuth2Error) string {
	if e.Description != "" {
		return "Login to Microsoft account failed: " + e.Description
	}
	return "Login to Microsoft account failed: " + e.Code
}

// accountCredential converts a token endpoint answer into an AccountCredential.
// The refresh token's lifetime is not reported, so its expiry is left untracked.
func accountCredential(resp *TokenResponse, now time.Time) (AccountCredential, error) {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return AccountCredential{}, newAuthError(ErrMalformedResponse, "Token response is missing access or refresh token", nil)
	}

	return AccountCredential{
		AccessToken:  NewToken(resp.AccessToken, now, resp.ExpiresIn),
		RefreshToken: NewUntrackedToken(resp.RefreshToken),
	}, nil
}
