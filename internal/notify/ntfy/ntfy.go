package ntfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/notify"
	"github.com/samber/lo"
)

var _ notify.Notifier = (*Client)(nil)

// Client represents a ntfy notification client.
type Client struct {
	serverURL  string
	topic      string
	username   string
	password   string
	token      string
	httpClient *http.Client
}

// Message represents a ntfy message.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewClient creates a new ntfy client.
func NewClient(cfg *config.NtfyConfig) *Client {
	if cfg.ServerURL != "" {
		if _, err := url.Parse(cfg.ServerURL); err != nil {
			log.Errorf("Invalid ntfy server URL: %v", err)
		}
	}

	return &Client{
		serverURL: cfg.ServerURL,
		topic:     cfg.Topic,
		username:  cfg.Username,
		password:  cfg.Password,
		token:     cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Name() string {
	return "ntfy"
}

// SendMessage publishes a message to the configured topic.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if c.topic != "" {
		msg.Topic = c.topic
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Markdown", "yes")

	// Token takes precedence over username/password
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if len(body) > 0 {
			return fmt.Errorf("ntfy server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("ntfy server returned status %d", resp.StatusCode)
	}

	log.Debug("Sent ntfy notification", "topic", msg.Topic, "title", msg.Title)
	return nil
}

// SendDigest publishes a markdown summary of the queued episodes.
func (c *Client) SendDigest(ctx context.Context, digest notify.Digest) error {
	if digest.TotalEpisodes() == 0 {
		log.Debug("Nothing queued, skipping ntfy notification")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Episodes queued:** %d (%s)\n\n", digest.TotalEpisodes(), humanize.IBytes(uint64(max(digest.TotalSize(), 0))))
	for _, s := range digest.Series {
		seasons := strings.Join(lo.Map(s.Seasons, func(n int32, _ int) string { return fmt.Sprintf("S%02d", n) }), ", ")
		fmt.Fprintf(&b, "- **%s** %s: %d episodes, %s (%s)\n", s.Title, seasons, s.Episodes, humanize.IBytes(uint64(max(s.Size, 0))), s.Reason)
	}
	b.WriteString("\nReview the pending deletions to approve or reject them.")
	if digest.RunID != "" {
		fmt.Fprintf(&b, "\n\nRun `%s`", digest.RunID)
	}

	tags := []string{"episweep", "pending-deletion"}
	if digest.DryRun {
		tags = append(tags, "dry-run")
	}

	return c.SendMessage(ctx, Message{
		Title:    fmt.Sprintf("episweep %s", digest.Kind),
		Message:  b.String(),
		Priority: 3,
		Tags:     tags,
	})
}
