// Package api is the REST client for the coach backend: device pairing
// and coaching template sync. The realtime session itself runs over the
// live websocket client, not through here.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/httputil"
)

// Client talks to the coach backend.
type Client struct {
	baseURL    string
	token      string
	deviceID   string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

// PairRequest asks the backend to bind this machine to the account that
// issued the pairing code.
type PairRequest struct {
	PairingCode  string    `json:"pairingCode"`
	Hostname     string    `json:"hostname"`
	OSType       string    `json:"osType"`
	OSVersion    string    `json:"osVersion"`
	Architecture string    `json:"architecture"`
	AgentVersion string    `json:"agentVersion,omitempty"`
	HostInfo     *HostInfo `json:"hostInfo,omitempty"`
}

// HostInfo carries optional hardware details shown on the dashboard's
// device page.
type HostInfo struct {
	CPUModel   string `json:"cpuModel,omitempty"`
	CPUCores   int    `json:"cpuCores,omitempty"`
	RAMTotalMB uint64 `json:"ramTotalMb,omitempty"`
}

// PairResponse carries the credentials the agent persists after pairing.
type PairResponse struct {
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
	LiveURL  string `json:"liveUrl"`
	Model    string `json:"model,omitempty"`
}

// NewClient creates a backend client. Token and deviceID may be empty
// for the pairing call itself.
func NewClient(baseURL, token, deviceID string) *Client {
	return &Client{
		baseURL:  baseURL,
		token:    token,
		deviceID: deviceID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: httputil.DefaultRetryConfig(),
	}
}

// Pair exchanges a pairing code for device credentials.
func (c *Client) Pair(ctx context.Context, req *PairRequest) (*PairResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pair request: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	resp, err := httputil.Do(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/devices/pair", body, headers, c.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to send pair request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pairing failed with status %d: %s", resp.StatusCode, string(detail))
	}

	var pairResp PairResponse
	if err := json.NewDecoder(resp.Body).Decode(&pairResp); err != nil {
		return nil, fmt.Errorf("failed to decode pair response: %w", err)
	}
	if pairResp.DeviceID == "" || pairResp.Token == "" {
		return nil, fmt.Errorf("pair response missing credentials")
	}
	return &pairResp, nil
}

// FetchTemplates downloads the account's coaching message templates as
// yaml, for saving next to the config so the notifier picks them up.
func (c *Client) FetchTemplates(ctx context.Context) ([]byte, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.token)
	if c.deviceID != "" {
		headers.Set("X-Device-ID", c.deviceID)
	}

	resp, err := httputil.Do(ctx, c.httpClient, http.MethodGet,
		c.baseURL+"/api/v1/coaching/templates", nil, headers, c.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("template fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	return data, nil
}
