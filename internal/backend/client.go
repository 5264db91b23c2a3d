// Package backend implements the HTTP client the agent uses to talk to the
// Ajime control plane: device activation, token refresh, workflow sync, and
// deployment polling/reporting.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// Client is a thin net/http wrapper around the backend's REST API.
// It implements internal/authn.Refresher, internal/syncer.Backend, and
// internal/deploy.Backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New returns a Client pointed at baseURL with a 30s request timeout,
// matching the original's reqwest client configuration.
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	url := c.baseURL + path
	log := alog.WithComponent("backend")

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return agenterr.New(agenterr.KindSerialization, "marshal request body", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return agenterr.New(agenterr.KindHTTP, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log.Debug().Str("method", method).Str("url", url).Msg("backend request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agenterr.New(agenterr.KindHTTP, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return agenterr.Newf(agenterr.KindHTTP, "%s %s: %d %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return agenterr.New(agenterr.KindSerialization, "decode response body", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, token string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

func (c *Client) post(ctx context.Context, path, token string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, token, body, out)
}

func (c *Client) patch(ctx context.Context, path, token string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, token, body, out)
}

// ActivationResponse is returned by ActivateDevice.
type ActivationResponse struct {
	DeviceID   string `json:"device_id"`
	OwnerID    string `json:"owner_id"`
	Token      string `json:"token"`
	DeviceName string `json:"device_name"`
}

// ActivateDevice exchanges an activation token for device credentials.
func (c *Client) ActivateDevice(ctx context.Context, activationToken, deviceName, deviceType string) (*ActivationResponse, error) {
	body := map[string]interface{}{
		"activation_token": activationToken,
		"device_name":      deviceName,
		"device_type":      deviceType,
	}
	var resp ActivationResponse
	if err := c.post(ctx, "/devices/activate", "", body, &resp); err != nil {
		return nil, agenterr.New(agenterr.KindAuth, "device activation failed", err)
	}
	return &resp, nil
}

// RefreshDeviceToken implements internal/authn.Refresher.
func (c *Client) RefreshDeviceToken(ctx context.Context, deviceID, currentToken string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	path := fmt.Sprintf("/agent/devices/%s/token/refresh", deviceID)
	if err := c.post(ctx, path, currentToken, nil, &resp); err != nil {
		return "", agenterr.New(agenterr.KindToken, "token refresh failed", err)
	}
	return resp.Token, nil
}
