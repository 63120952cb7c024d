package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/core"
)

const checkPath = "/v1/entitlements/check"

// Client asks the entitlement service whether a session may hold the host
// role. The service is authoritative; the controller caches positive
// verdicts per session.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zerolog.Logger
}

var _ core.EligibilityChecker = (*Client)(nil)

// New creates an entitlement client. timeout bounds each request on top of
// whatever deadline the caller's context carries.
func New(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

type checkRequest struct {
	Session string `json:"session_id"`
}

type checkResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CheckEligibility reports whether the session's owner is entitled to host.
// Any transport or decoding failure is an error, never a verdict.
func (c *Client) CheckEligibility(ctx context.Context, session core.SessionID) (bool, error) {
	body, err := json.Marshal(checkRequest{Session: string(session)})
	if err != nil {
		return false, fmt.Errorf("encode check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkPath, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("entitlement check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("entitlement check: unexpected status %d", resp.StatusCode)
	}

	var verdict checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return false, fmt.Errorf("decode check response: %w", err)
	}

	c.log.Debug().
		Str("session", string(session)).
		Bool("eligible", verdict.Eligible).
		Str("reason", verdict.Reason).
		Msg("entitlement verdict")
	return verdict.Eligible, nil
}
