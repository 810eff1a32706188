// Package webhook posts operational messages to a Discord-compatible chat
// webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxRetries = 3

// Message is the body accepted by Discord-compatible webhooks.
type Message struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
	Fields      []Field   `json:"fields,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Client struct {
	url            string
	httpClient     *http.Client
	initialBackoff time.Duration
}

func NewClient(url string) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		initialBackoff: 500 * time.Millisecond,
	}
}

// Send posts msg with a background context.
func (c *Client) Send(msg Message) error {
	return c.SendContext(context.Background(), msg)
}

// SendContext posts msg to the webhook, retrying rate limited and 5xx
// answers. A client without a URL is a no-op.
func (c *Client) SendContext(ctx context.Context, msg Message) error {
	if c.url == "" {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling webhook message: %w", err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.initialBackoff
	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, maxRetries), ctx)

	return backoff.Retry(func() error {
		return c.post(ctx, payload)
	}, b)
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("webhook request failed with status: %d", resp.StatusCode))
	}
}

// SendLogMessage wraps a log record in a single embed coloured by level.
func (c *Client) SendLogMessage(level, message string, fields map[string]interface{}) error {
	embed := Embed{
		Title:       fmt.Sprintf("%s: mybus-data", level),
		Description: message,
		Color:       colorForLevel(level),
		Timestamp:   time.Now(),
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		embed.Fields = append(embed.Fields, Field{
			Name:   key,
			Value:  fmt.Sprintf("%v", fields[key]),
			Inline: true,
		})
	}

	return c.Send(Message{Embeds: []Embed{embed}})
}

// DatabaseUpdated announces that a new bus stop database went live.
func (c *Client) DatabaseUpdated(ctx context.Context, schemaName, topologyID string) error {
	return c.SendContext(ctx, Message{Embeds: []Embed{{
		Title:       "Bus stop database updated",
		Description: fmt.Sprintf("Now serving topology %s", topologyID),
		Color:       0x2E8B57,
		Timestamp:   time.Now(),
		Fields: []Field{
			{Name: "schema", Value: schemaName, Inline: true},
			{Name: "topology_id", Value: topologyID, Inline: true},
		},
	}}})
}

func colorForLevel(level string) int {
	switch level {
	case "ERROR":
		return 0xFF0000
	case "FATAL":
		return 0x8B0000
	case "WARN":
		return 0xFFA500
	default:
		return 0x808080
	}
}
