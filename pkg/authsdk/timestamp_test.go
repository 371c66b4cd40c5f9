package authsdk_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	valid := []string{
		"2024-01-02T03:04:05.1234567Z",
		"2024-01-02T03:04:05Z",
		"2024-01-02T03:04:05",
		"2024-01-02T03:04:05.5+02:00", // zone suffix is ignored, Xbox only sends UTC
	}
	for _, v := range valid {
		got, err := authsdk.ParseTimestamp(v)
		require.NoError(t, err, v)
		require.Equal(t, want, got, v)
	}

	invalid := []string{
		"",
		"yesterday",
		"2024-01-02 03:04:05",
		"2024-13-02T03:04:05Z",
		" 2024-01-02T03:04:05Z",
	}
	for _, v := range invalid {
		_, err := authsdk.ParseTimestamp(v)
		require.ErrorIs(t, err, authsdk.ErrMalformedResponse, v)
		require.ErrorContains(t, err, "Unrecognized timestamp", v)
	}
}
