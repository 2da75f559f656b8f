// Package telegram is a minimal Telegram Bot API client covering what the
// relay needs: sending messages and managing the webhook.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiBase is the Bot API endpoint root.
const apiBase = "https://api.telegram.org"

// Client calls the Telegram Bot API on behalf of one bot.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:    apiBase,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// sendMessageRequest is the sendMessage call body.
type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send delivers plain text to a chat.
func (c *Client) Send(ctx context.Context, recipient int64, text string) error {
	return c.sendMessage(ctx, sendMessageRequest{ChatID: recipient, Text: text})
}

// SendMarkdown delivers Markdown-formatted text to a chat.
func (c *Client) SendMarkdown(ctx context.Context, recipient int64, text string) error {
	return c.sendMessage(ctx, sendMessageRequest{ChatID: recipient, Text: text, ParseMode: "Markdown"})
}

func (c *Client) sendMessage(ctx context.Context, req sendMessageRequest) error {
	return c.call(ctx, "sendMessage", req, nil)
}

// SetWebhook registers url as the bot's webhook endpoint.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]string{"url": url}, nil)
}

// DeleteWebhook removes the bot's webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

// BotInfo describes the bot account, from getMe.
type BotInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// GetMe fetches the bot's own account info; useful as a token check.
func (c *Client) GetMe(ctx context.Context) (*BotInfo, error) {
	info := &BotInfo{}
	if err := c.call(ctx, "getMe", struct{}{}, info); err != nil {
		return nil, err
	}
	return info, nil
}

// call performs one Bot API method call, decoding the result into out when
// out is non-nil.
func (c *Client) call(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram: %s failed: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}

	if out != nil {
		return json.Unmarshal(envelope.Result, out)
	}
	return nil
}
