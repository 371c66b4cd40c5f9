package authsdk_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

var msAccess = authsdk.Token{Value: "ms-access", NotAfter: clockStart.Add(time.Hour)}

func TestExchangeChain(t *testing.T) {
	fa := newFakeAuthority(t)

	game, err := fa.client(newFakeClock()).ExchangeChain(context.Background(), msAccess)
	require.NoError(t, err)
	require.Equal(t, "game-token", game.AccessToken.Value)
	require.Equal(t, clockStart.Add(24*time.Hour), game.AccessToken.NotAfter)
	require.Equal(t, []string{"xbl", "xsts", "login"}, fa.Calls())
}

func TestAuthenticateXboxLive(t *testing.T) {
	fa := newFakeAuthority(t)

	token, userHash, err := fa.client(newFakeClock()).AuthenticateXboxLive(context.Background(), msAccess)
	require.NoError(t, err)
	require.Equal(t, "xbl-token", token.Value)
	require.Equal(t, testUserHash, userHash)
	// Fractional seconds beyond what RFC 3339 parsing accepts are dropped
	require.Equal(t, time.Date(2024, 1, 16, 3, 4, 5, 0, time.UTC), token.NotAfter)
}

func TestUserHashChangedBetweenHops(t *testing.T) {
	fa := newFakeAuthority(t)
	fa.xstsUserHash = "someone-else"

	_, err := fa.client(newFakeClock()).ExchangeChain(context.Background(), msAccess)
	require.ErrorIs(t, err, authsdk.ErrProtocolViolation)

	var authErr *authsdk.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "User hash changed, something is wrong on the server side", authErr.Message)

	require.Zero(t, fa.count("login"), "game login must not be attempted")
}

func TestMissingUserHash(t *testing.T) {
	fa := newFakeAuthority(t)
	fa.xblUserHash = ""

	_, err := fa.client(newFakeClock()).ExchangeChain(context.Background(), msAccess)
	require.ErrorIs(t, err, authsdk.ErrMalformedResponse)
	require.Zero(t, fa.count("xsts"))
}

func TestXSTSErrors(t *testing.T) {
	cases := []struct {
		name    string
		code    int64
		on200   bool
		message string
	}{
		{"no xbox account", authsdk.XErrNoXboxAccount, false, "The account doesn't have an Xbox account"},
		{"country blocked", authsdk.XErrCountryBlocked, false, "The account is from a country where Xbox Live is not available/banned"},
		{"child account", authsdk.XErrChildNeedsAdult, false, "The account is a child (under 18) and cannot proceed unless the account is added to a Family by an adult"},
		{"unknown code", 2148916999, false, "Unknown error from XSTS: 2148916999"},
		{"code on a 200 body", authsdk.XErrNoXboxAccount, true, "The account doesn't have an Xbox account"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fa := newFakeAuthority(t)
			fa.xstsXErr = tc.code
			fa.xstsXErrOn200 = tc.on200

			_, err := fa.client(newFakeClock()).ExchangeChain(context.Background(), msAccess)
			require.ErrorIs(t, err, authsdk.ErrAuthorizationDenied)

			var authErr *authsdk.AuthError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tc.message, authErr.Message)

			var xerr *authsdk.XboxError
			require.ErrorAs(t, err, &xerr)
			require.Equal(t, tc.code, xerr.XErr)

			require.Zero(t, fa.count("login"))
		})
	}
}

func TestGameLoginFailure(t *testing.T) {
	fa := newFakeAuthority(t)
	fa.gameLoginStatus = http.StatusForbidden

	_, err := fa.client(newFakeClock()).ExchangeChain(context.Background(), msAccess)
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "/login", apiErr.Path)
}

func TestIdentityToken(t *testing.T) {
	require.Equal(t, "XBL3.0 x=abc;xsts", authsdk.IdentityToken("abc", authsdk.NewUntrackedToken("xsts")))
}
