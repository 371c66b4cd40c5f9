package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Tokens and Credentials
// ============================================================================

// tokenTag is the discriminant written into every serialized Token.
const tokenTag = "token"

// Token is an opaque credential value with the instant after which it is no
// longer valid. A zero NotAfter means the provider gave us no expiry (refresh
// tokens) and the token is treated as long-lived.
type Token struct {
	Value    string
	NotAfter time.Time
}

// NewToken builds a Token that expires expiresIn seconds after now.
func NewToken(value string, now time.Time, expiresIn int) Token {
	return Token{
		Value:    value,
		NotAfter: now.Add(time.Duration(expiresIn) * time.Second).UTC(),
	}
}

// NewUntrackedToken builds a Token with no tracked expiry.
func NewUntrackedToken(value string) Token {
	return Token{Value: value}
}

// HasExpiry reports whether the token carries a tracked expiry.
func (t Token) HasExpiry() bool { return !t.NotAfter.IsZero() }

// Expired reports whether NotAfter has passed at now. Tokens without a
// tracked expiry never expire.
func (t Token) Expired(now time.Time) bool {
	if !t.HasExpiry() {
		return false
	}
	return !now.Before(t.NotAfter)
}

// String returns the raw token value so a Token can be dropped straight into
// headers and identity strings.
func (t Token) String() string { return t.Value }

// tokenJSON is the wire schema for a Token.
type tokenJSON struct {
	Type     string     `json:"type"`
	Value    string     `json:"value"`
	NotAfter *time.Time `json:"not_after"`
}

// MarshalJSON encodes the token as a tagged object so it can be told apart
// from plain JSON values inside a profile.
func (t Token) MarshalJSON() ([]byte, error) {
	out := tokenJSON{Type: tokenTag, Value: t.Value}
	if t.HasExpiry() {
		na := t.NotAfter.UTC()
		out.NotAfter = &na
	}
	return json.Marshal(out)
}

// ErrNotAToken is returned when decoding a JSON object whose type tag is not "token".
var ErrNotAToken = errors.New("authsdk: json value is not a token")

// UnmarshalJSON decodes a tagged token object.
func (t *Token) UnmarshalJSON(data []byte) error {
	var in tokenJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("authsdk: decode token: %w", err)
	}
	if in.Type != tokenTag {
		return fmt.Errorf("%w: type %q", ErrNotAToken, in.Type)
	}

	t.Value = in.Value
	t.NotAfter = time.Time{}
	if in.NotAfter != nil {
		t.NotAfter = in.NotAfter.UTC()
	}
	return nil
}

// AccountCredential is the Microsoft account token pair returned by the
// device-code and refresh-token grants.
type AccountCredential struct {
	AccessToken  Token
	RefreshToken Token
}

// GameCredential is the terminal token usable against the game services.
type GameCredential struct {
	AccessToken Token
}

// ============================================================================
// Profile
// ============================================================================

// Profile is the persisted unit: the game profile as returned by the profile
// endpoint plus the credentials needed to keep using and refreshing it.
type Profile struct {
	ID   string
	Name string

	// Extra holds every other provider field verbatim (skins, capes, ...).
	Extra map[string]json.RawMessage

	GameToken    Token
	RefreshToken Token
}

const (
	profileKeyID           = "id"
	profileKeyName         = "name"
	profileKeyGameToken    = "mc_token"
	profileKeyRefreshToken = "refresh_token"
)

// MarshalJSON flattens the profile back into a single JSON object.
func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	out[profileKeyID] = p.ID
	out[profileKeyName] = p.Name
	out[profileKeyGameToken] = p.GameToken
	out[profileKeyRefreshToken] = p.RefreshToken
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat profile object into its known fields and Extra.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("authsdk: decode profile: %w", err)
	}

	var out Profile
	if v, ok := raw[profileKeyID]; ok {
		if err := json.Unmarshal(v, &out.ID); err != nil {
			return fmt.Errorf("authsdk: decode profile id: %w", err)
		}
	}
	if v, ok := raw[profileKeyName]; ok {
		if err := json.Unmarshal(v, &out.Name); err != nil {
			return fmt.Errorf("authsdk: decode profile name: %w", err)
		}
	}
	if v, ok := raw[profileKeyGameToken]; ok {
		if err := json.Unmarshal(v, &out.GameToken); err != nil {
			return fmt.Errorf("authsdk: decode game token: %w", err)
		}
	}
	if v, ok := raw[profileKeyRefreshToken]; ok {
		if err := json.Unmarshal(v, &out.RefreshToken); err != nil {
			return fmt.Errorf("authsdk: decode refresh token: %w", err)
		}
	}

	delete(raw, profileKeyID)
	delete(raw, profileKeyName)
	delete(raw, profileKeyGameToken)
	delete(raw, profileKeyRefreshToken)
	if len(raw) > 0 {
		out.Extra = raw
	}

	*p = out
	return nil
}

// NeedsRefresh reports whether the stored game credential has passed its
// NotAfter and must be refreshed before use.
func (p *Profile) NeedsRefresh(now time.Time) bool {
	return p.GameToken.Expired(now)
}

// ============================================================================
// Wire Types - Microsoft identity platform
// ============================================================================

// DeviceCodeResponse is returned by the device-authorization endpoint.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

// TokenResponse is returned by the token endpoint on success.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// Set when the authority answers a grant with an error body.
	ErrorResponse
}

// ErrorResponse is the OAuth2 error shape.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Wire Types - Xbox Live / XSTS
// ============================================================================

type xblProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

// XboxLiveRequest is the body of the Xbox Live user authenticate call.
type XboxLiveRequest struct {
	Properties   xblProperties `json:"Properties"`
	RelyingParty string        `json:"RelyingParty"`
	TokenType    string        `json:"TokenType"`
}

type xstsProperties struct {
	SandboxID  string   `json:"SandboxId"`
	UserTokens []string `json:"UserTokens"`
}

// XSTSRequest is the body of the XSTS authorize call.
type XSTSRequest struct {
	Properties   xstsProperties `json:"Properties"`
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
}

// XboxTokenResponse is the success shape shared by Xbox Live and XSTS.
type XboxTokenResponse struct {
	IssueInstant  string        `json:"IssueInstant"`
	NotAfter      string        `json:"NotAfter"`
	Token         string        `json:"Token"`
	DisplayClaims DisplayClaims `json:"DisplayClaims"`
}

// DisplayClaims carries the per-user claim list; the user hash lives under "uhs".
type DisplayClaims struct {
	XUI []map[string]any `json:"xui"`
}

// UserHash returns the first "uhs" claim found in the claim list.
func (d DisplayClaims) UserHash() (string, bool) {
	for _, claim := range d.XUI {
		if v, ok := claim["uhs"]; ok {
			s, isString := v.(string)
			return s, isString && s != ""
		}
	}
	return "", false
}

// ============================================================================
// Wire Types - Game services
// ============================================================================

// GameLoginRequest is the body of the game-service login call.
type GameLoginRequest struct {
	XToken   string `json:"xtoken"`
	Platform string `json:"platform"`
}

// GameLoginResponse is the game-service login result.
type GameLoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type,omitempty"`
}

// EntitlementItem is one entitlement record.
type EntitlementItem struct {
	Name      string `json:"name"`
	Source    string `json:"source,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// EntitlementsResponse is returned by the entitlement endpoint.
type EntitlementsResponse struct {
	Items     []EntitlementItem `json:"items"`
	Signature string            `json:"signature"`
	KeyID     string            `json:"keyId,omitempty"`
	RequestID string            `json:"requestId"`
}
