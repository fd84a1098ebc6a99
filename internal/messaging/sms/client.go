// Package sms delivers quote summaries through an HTTP SMS gateway.
package sms

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

// Client posts messages to the configured gateway. A nil Client (no gateway
// configured) silently accepts sends, so callers never branch on setup.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func NewClient(cfg config.MessagingConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:  cfg.GetSMSGatewayKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Send delivers one text message to an E.164 number.
func (c *Client) Send(ctx context.Context, to, message string) error {
	if c == nil {
		return nil
	}

	body, err := json.Marshal(sendRequest{To: to, Message: message})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	url := c.baseURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "to", to)
	return nil
}
