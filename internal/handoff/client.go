// Package handoff notifies the human-transfer endpoint when a session
// escalates, so the telephony side can bridge the caller to a person.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

// Client posts escalation notices. A nil Client (no endpoint configured)
// silently accepts notifications.
type Client struct {
	url  string
	http *http.Client
	log  *logger.Logger
}

type transferRequest struct {
	CallID       string            `json:"callId"`
	BusinessID   string            `json:"businessId"`
	CallerNumber string            `json:"callerNumber"`
	Reason       string            `json:"reason"`
	Collected    map[string]string `json:"collected,omitempty"`
}

func NewClient(cfg config.HandoffConfig, log *logger.Logger) *Client {
	if !cfg.IsHandoffEnabled() {
		return nil
	}

	return &Client{
		url:  cfg.GetHandoffURL(),
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// Transfer requests a human takeover for the given call.
func (c *Client) Transfer(ctx context.Context, callID, businessID, callerNumber, reason string, collected map[string]string) error {
	if c == nil {
		return nil
	}

	body, err := json.Marshal(transferRequest{
		CallID:       callID,
		BusinessID:   businessID,
		CallerNumber: callerNumber,
		Reason:       reason,
		Collected:    collected,
	})
	if err != nil {
		return fmt.Errorf("marshal transfer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("handoff request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("handoff endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.WithCallID(callID).Info("transfer requested", "reason", reason)
	return nil
}
