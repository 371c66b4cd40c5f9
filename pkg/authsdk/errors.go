package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Failure Kinds
// ============================================================================

var (
	// ErrAuthFailed matches every terminal authentication failure.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrTransportTimeout is a single request timing out. Only the device
	// code poll loop treats it as recoverable.
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrFlowExpired is returned when the device code expired before the user
	// finished signing in.
	ErrFlowExpired = errors.New("device code flow expired")

	// ErrAuthorizationDenied is a terminal refusal from an authority.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrMalformedResponse means an expected field or claim was missing or
	// unparsable. Usually API drift.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrProtocolViolation is a security relevant inconsistency (user hash
	// changed between hops, entitlement signature did not verify). Never retried.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrEntitlementMissing means the account does not own the game.
	ErrEntitlementMissing = errors.New("entitlement missing")
)

// AuthError is a terminal failure with a human readable message suitable for
// the end user. Kind is one of the Err* sentinels above.
type AuthError struct {
	Kind    error
	Message string
	Err     error
}

func newAuthError(kind error, msg string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: msg, Err: cause}
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is makes every AuthError match ErrAuthFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailed
}

// ============================================================================
// XSTS Errors
// ============================================================================

// Known XSTS XErr codes.
const (
	XErrNoXboxAccount   int64 = 2148916233
	XErrCountryBlocked  int64 = 2148916235
	XErrChildNeedsAdult int64 = 2148916238
)

// XboxError is the error body returned by the Xbox Live and XSTS authorities.
type XboxError struct {
	StatusCode int    `json:"-"`
	XErr       int64  `json:"XErr"`
	Message    string `json:"Message"`
	Redirect   string `json:"Redirect"`
}

// Error implements the error interface.
func (e *XboxError) Error() string {
	return fmt.Sprintf("xbox error %d (HTTP %d)", e.XErr, e.StatusCode)
}

// xstsMessage maps an XErr code to the user-facing cause.
func xstsMessage(code int64) string {
	switch code {
	case XErrNoXboxAccount:
		return "The account doesn't have an Xbox account"
	case XErrCountryBlocked:
		return "The account is from a country where Xbox Live is not available/banned"
	case XErrChildNeedsAdult:
		return "The account is a child (under 18) and cannot proceed unless the account is added to a Family by an adult"
	default:
		return fmt.Sprintf("Unknown error from XSTS: %d", code)
	}
}

// ============================================================================
// Provider Errors
// ============================================================================

// OAuth2 error codes seen from the token endpoint. Only the first two are
// recoverable; every other code ends the flow.
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeInvalidGrant         = "invalid_grant"
)

// OAuth2Error represents a standard OAuth2 error response per RFC 6749, as
// returned by the Microsoft identity platform.
type OAuth2Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// APIError is a non-success answer from the game services.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Path, e.Body)
}

// parseErrorResponse turns a non-2xx response body into a typed error.
// Returns nil for success responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Microsoft OAuth2 endpoints
	var oauthResp ErrorResponse
	if err := json.Unmarshal(body, &oauthResp); err == nil && oauthResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        oauthResp.Error,
			Description: oauthResp.ErrorDescription,
		}
	}

	// Xbox Live / XSTS
	var xerr XboxError
	if err := json.Unmarshal(body, &xerr); err == nil && xerr.XErr != 0 {
		xerr.StatusCode = resp.StatusCode
		return &xerr
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       truncate(string(body), 256),
	}
	if resp.Request != nil {
		apiErr.Path = resp.Request.URL.Path
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
