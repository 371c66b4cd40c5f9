package authsdk_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
	"github.com/aussiebroadwan/mcauth/pkg/jwtx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clockStart = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// fakeClock only moves when someone sleeps on it or the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{now: clockStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Scripted device code poll answers.
const (
	pollPending  = authsdk.ErrorCodeAuthorizationPending
	pollSlowDown = authsdk.ErrorCodeSlowDown
	pollSuccess  = "success"
	pollDenied   = authsdk.ErrorCodeAccessDenied
	pollHang     = "hang"
	pollStall    = "stall"
	pollPendOK   = "pending_ok"
)

const (
	testUserHash = "uhs-1234"
	testProfile  = `{"id":"069a79f444e94726a5befca90e38aaf5","name":"Notch","skins":[{"id":"s1","state":"ACTIVE"}],"capes":[]}`
)

// fakeAuthority serves every endpoint of the chain from one httptest server.
type fakeAuthority struct {
	t      *testing.T
	srv    *httptest.Server
	signer *jwtx.RS256Signer

	mu    sync.Mutex
	calls []string

	// Knobs, set before the first request
	deviceExpiresIn int
	deviceInterval  int
	pollScript      []string
	refreshError    string
	xblUserHash     string
	xstsUserHash    string
	xstsStatus      int
	xstsXErr        int64
	xstsXErrOn200   bool
	ownedItems      []string
	signedRequestID string
	omitSignature   bool
	tamperSignature bool
	gameLoginStatus int

	// Recorded requests
	deviceForm  url.Values
	pollForms   []url.Values
	refreshForm url.Values
	xblRequest  authsdk.XboxLiveRequest
	xstsRequest authsdk.XSTSRequest
	gameRequest authsdk.GameLoginRequest
	requestIDs  []string

}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fa := &fakeAuthority{
		t:               t,
		signer:          jwtx.NewSignerRS256FromKey(key),
		deviceExpiresIn: 900,
		deviceInterval:  5,
		pollScript:      []string{pollSuccess},
		xblUserHash:     testUserHash,
		xstsUserHash:    testUserHash,
		xstsStatus:      http.StatusUnauthorized,
		ownedItems:      []string{"product_minecraft", "game_minecraft"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /devicecode", fa.handleDeviceCode)
	mux.HandleFunc("POST /token", fa.handleToken)
	mux.HandleFunc("POST /xbl", fa.handleXboxLive)
	mux.HandleFunc("POST /xsts", fa.handleXSTS)
	mux.HandleFunc("POST /login", fa.handleGameLogin)
	mux.HandleFunc("GET /entitlements", fa.handleEntitlements)
	mux.HandleFunc("GET /profile", fa.handleProfile)

	fa.srv = httptest.NewServer(mux)
	t.Cleanup(fa.srv.Close)

	return fa
}

func (fa *fakeAuthority) endpoints() authsdk.Endpoints {
	return authsdk.Endpoints{
		DeviceCode:   fa.srv.URL + "/devicecode",
		Token:        fa.srv.URL + "/token",
		XboxLive:     fa.srv.URL + "/xbl",
		XSTS:         fa.srv.URL + "/xsts",
		GameLogin:    fa.srv.URL + "/login",
		Entitlements: fa.srv.URL + "/entitlements",
		Profile:      fa.srv.URL + "/profile",
	}
}

// client builds an SDK client wired to the fake and driven by clock.
func (fa *fakeAuthority) client(clock *fakeClock) *authsdk.SDKClient {
	c := authsdk.NewSDKClient("test-client")
	c.Endpoints = fa.endpoints()
	c.HTTPClient = fa.srv.Client()
	c.HTTPClient.Timeout = 5 * time.Second
	c.EntitlementVerifier = jwtx.NewVerifierRS256(fa.signer.Public()).WithClock(clock.Now)
	c.Clock = clock
	return c
}

func (fa *fakeAuthority) record(name string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.calls = append(fa.calls, name)
}

func (fa *fakeAuthority) Calls() []string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return append([]string(nil), fa.calls...)
}

func (fa *fakeAuthority) count(name string) int {
	n := 0
	for _, c := range fa.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func xboxBody(token, userHash string) map[string]any {
	claims := []map[string]any{}
	if userHash != "" {
		claims = append(claims, map[string]any{"uhs": userHash})
	} else {
		claims = append(claims, map[string]any{"gtg": "nobody"})
	}
	return map[string]any{
		"IssueInstant":  "2024-01-02T03:04:05.1234567Z",
		"NotAfter":      "2024-01-16T03:04:05.1234567Z",
		"Token":         token,
		"DisplayClaims": map[string]any{"xui": claims},
	}
}

func (fa *fakeAuthority) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	fa.record("devicecode")
	assert.NoError(fa.t, r.ParseForm())

	fa.mu.Lock()
	fa.deviceForm = r.PostForm
	fa.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":      "device-code-1",
		"user_code":        "ABCD-EFGH",
		"verification_uri": "https://www.microsoft.com/link",
		"expires_in":       fa.deviceExpiresIn,
		"interval":         fa.deviceInterval,
		"message":          "To sign in, use a web browser to open the page https://www.microsoft.com/link and enter the code ABCD-EFGH to authenticate.",
	})
}

func (fa *fakeAuthority) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case authsdk.DeviceCodeGrantType:
		fa.handlePoll(w, r)
	case "refresh_token":
		fa.handleRefresh(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (fa *fakeAuthority) handlePoll(w http.ResponseWriter, r *http.Request) {
	fa.record("poll")

	fa.mu.Lock()
	fa.pollForms = append(fa.pollForms, r.PostForm)
	idx := len(fa.pollForms) - 1
	if idx >= len(fa.pollScript) {
		idx = len(fa.pollScript) - 1
	}
	step := fa.pollScript[idx]
	fa.mu.Unlock()

	switch step {
	case pollSuccess:
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "ms-access",
			"refresh_token": "ms-refresh",
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	case pollHang:
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	case pollStall:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":`))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	case pollPendOK:
		writeJSON(w, http.StatusOK, map[string]string{"error": authsdk.ErrorCodeAuthorizationPending})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             step,
			"error_description": "scripted " + step,
		})
	}
}

func (fa *fakeAuthority) handleRefresh(w http.ResponseWriter, r *http.Request) {
	fa.record("refresh")

	fa.mu.Lock()
	fa.refreshForm = r.PostForm
	refreshErr := fa.refreshError
	fa.mu.Unlock()

	if refreshErr != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             refreshErr,
			"error_description": "The refresh token has expired.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "ms-access-2",
		"refresh_token": "ms-refresh-2",
		"expires_in":    3600,
	})
}

func (fa *fakeAuthority) handleXboxLive(w http.ResponseWriter, r *http.Request) {
	fa.record("xbl")

	var req authsdk.XboxLiveRequest
	assert.NoError(fa.t, json.NewDecoder(r.Body).Decode(&req))

	fa.mu.Lock()
	fa.xblRequest = req
	fa.mu.Unlock()

	writeJSON(w, http.StatusOK, xboxBody("xbl-token", fa.xblUserHash))
}

func (fa *fakeAuthority) handleXSTS(w http.ResponseWriter, r *http.Request) {
	fa.record("xsts")

	var req authsdk.XSTSRequest
	assert.NoError(fa.t, json.NewDecoder(r.Body).Decode(&req))

	fa.mu.Lock()
	fa.xstsRequest = req
	fa.mu.Unlock()

	if fa.xstsXErr != 0 {
		status := fa.xstsStatus
		if fa.xstsXErrOn200 {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{
			"Identity": "0",
			"XErr":     fa.xstsXErr,
			"Message":  "",
			"Redirect": "https://start.ui.xboxlive.com/CreateAccount",
		})
		return
	}

	writeJSON(w, http.StatusOK, xboxBody("xsts-token", fa.xstsUserHash))
}

func (fa *fakeAuthority) handleGameLogin(w http.ResponseWriter, r *http.Request) {
	fa.record("login")

	var req authsdk.GameLoginRequest
	assert.NoError(fa.t, json.NewDecoder(r.Body).Decode(&req))

	fa.mu.Lock()
	fa.gameRequest = req
	fa.mu.Unlock()

	if fa.gameLoginStatus != 0 {
		writeJSON(w, fa.gameLoginStatus, map[string]string{"path": "/launcher/login", "errorMessage": "nope"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":     "e0d1b4b0-0000-0000-0000-000000000000",
		"access_token": "game-token",
		"expires_in":   86400,
		"token_type":   "Bearer",
	})
}

func (fa *fakeAuthority) requireBearer(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer game-token"
}

func (fa *fakeAuthority) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	fa.record("entitlements")
	if !fa.requireBearer(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	requestID := r.URL.Query().Get("requestId")

	fa.mu.Lock()
	fa.requestIDs = append(fa.requestIDs, requestID)
	fa.mu.Unlock()

	signedID := requestID
	if fa.signedRequestID != "" {
		signedID = fa.signedRequestID
	}

	items := make([]map[string]string, 0, len(fa.ownedItems))
	for _, name := range fa.ownedItems {
		items = append(items, map[string]string{"name": name, "signature": "item-sig"})
	}

	body := map[string]any{
		"items":     items,
		"keyId":     "1",
		"requestId": requestID,
	}

	if !fa.omitSignature {
		sig, err := fa.signer.Sign(jwtx.NewEntitlementClaims(signedID, fa.ownedItems, 0, clockStart))
		assert.NoError(fa.t, err)
		if fa.tamperSignature {
			sig = sig[:len(sig)-4] + "AAAA"
		}
		body["signature"] = sig
	}

	writeJSON(w, http.StatusOK, body)
}

func (fa *fakeAuthority) handleProfile(w http.ResponseWriter, r *http.Request) {
	fa.record("profile")
	if !fa.requireBearer(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(testProfile))
}
