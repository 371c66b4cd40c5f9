package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// doRequest performs an HTTP request with the SDKClient's HTTP client.
// A request that times out on its own is reported as ErrTransportTimeout; a
// cancelled or expired caller context is reported as the context error.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, endpoint string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to send request: %w", ctxErr)
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrTransportTimeout, err)
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// postForm sends a form-encoded POST, as the Microsoft OAuth2 endpoints expect.
func (c *SDKClient) postForm(ctx context.Context, endpoint string, data url.Values) (*http.Response, error) {
	return c.doRequest(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	})
}

// postJSON sends a JSON POST, as the Xbox and game-service endpoints expect.
func (c *SDKClient) postJSON(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return c.doRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
}

// getAuthorized performs a GET with the game credential as bearer token.
func (c *SDKClient) getAuthorized(ctx context.Context, endpoint string, token Token) (*http.Response, error) {
	return c.doRequest(ctx, http.MethodGet, endpoint, nil, map[string]string{
		"Authorization": "Bearer " + token.Value,
		"Accept":        "application/json",
	})
}

// decodeJSON decodes a JSON response into the target interface.
// Returns a typed OAuth2Error, XboxError or APIError if the response indicates an error.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %w", ErrTransportTimeout, err)
		}
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := parseErrorResponse(resp, bodyBytes); err != nil {
		return err
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return newAuthError(ErrMalformedResponse, "Unexpected response from "+resp.Request.URL.Host, err)
	}

	return nil
}
