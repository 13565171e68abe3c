// Package whatsapp sends text messages through the WhatsApp Cloud API and
// parses the webhook payloads it delivers.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const DefaultBaseURL = "https://graph.facebook.com"

// Config holds Cloud API credentials.
type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	Token         string
	Timeout       time.Duration
}

// Client posts messages to the Cloud API using fiber's HTTP agent.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg}
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.cfg.Token != "" && c.cfg.PhoneNumberID != ""
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

// SendText delivers a plain text message to an E.164 number without the plus sign.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if !c.Enabled() {
		return fmt.Errorf("whatsapp client is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)
	agent := fiber.Post(url)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.Token)
	agent.Timeout(c.cfg.Timeout)
	agent.JSON(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})

	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("whatsapp request failed: %v", errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("whatsapp API error (%d): %s", code, string(resp))
	}
	return nil
}
