package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Slack POSTs messages to an incoming-webhook URL with retry and
// exponential backoff.
type Slack struct {
	url         string
	client      *http.Client
	maxAttempts int
	logger      *slog.Logger
}

// SlackOption configures a Slack notifier.
type SlackOption func(*Slack)

// WithSlackRetries sets the total number of delivery attempts. Default: 3.
func WithSlackRetries(n int) SlackOption {
	return func(s *Slack) { s.maxAttempts = n }
}

// WithSlackLogger sets a custom logger.
func WithSlackLogger(l *slog.Logger) SlackOption {
	return func(s *Slack) { s.logger = l }
}

// WithSlackClient sets a custom HTTP client (tests).
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *Slack) { s.client = c }
}

// NewSlack creates a Slack notifier targeting the given webhook URL.
func NewSlack(url string, opts ...SlackOption) *Slack {
	s := &Slack{
		url:         url,
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: 3,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// slackPayload matches the incoming-webhook schema: top-level text plus
// optional mrkdwn blocks.
type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Slack) Notify(ctx context.Context, msg Message) error {
	payload := slackPayload{Text: msg.Text}
	for _, b := range msg.Blocks {
		sb := slackBlock{Type: b.Type}
		if b.Type == "section" {
			sb.Text = &slackText{Type: "mrkdwn", Text: b.Text}
		}
		payload.Blocks = append(payload.Blocks, sb)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-2)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("notify: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("notify: slack request failed", "attempt", attempt, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
		s.logger.Warn("notify: slack bad status", "attempt", attempt, "status", resp.StatusCode)
	}
	return fmt.Errorf("%w: %v", ErrDelivery, lastErr)
}
