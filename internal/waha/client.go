// Package waha is a client for the WAHA WhatsApp HTTP API. It implements
// the pipeline's Sender.
package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uemahub/sabia/internal/log"
)

const defaultTimeout = 15 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL string
	Session string
	APIKey  string
	Logger  log.Logger
}

// Client talks to one WAHA instance and session. Safe for concurrent use.
type Client struct {
	baseURL string
	session string
	apiKey  string
	http    *http.Client
	logger  log.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  cfg.Logger,
	}
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// Send delivers a text message to chatID via POST /api/sendText.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	if chatID == "" || text == "" {
		return fmt.Errorf("chatID and text are required")
	}

	body, err := json.Marshal(sendTextRequest{Session: c.session, ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshaling send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sendText", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sending message: status %d: %s", resp.StatusCode, snippet)
	}

	c.logger.Debug("message sent", "chat_id", chatID, "length", len(text))
	return nil
}

// SessionStatus returns the WAHA session status, e.g. WORKING or
// SCAN_QR_CODE. Used at startup to surface a disconnected session early.
func (c *Client) SessionStatus(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/sessions/"+c.session, nil)
	if err != nil {
		return "", fmt.Errorf("building session request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("checking session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("checking session: status %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding session response: %w", err)
	}
	if payload.Status == "" {
		return "UNKNOWN", nil
	}
	return payload.Status, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
