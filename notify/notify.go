// Package notify delivers run summaries to an external channel. Delivery is
// fire-and-forget from the monitor's perspective: snapshots are persisted
// before notification, so a failed send is logged and reported upward but
// never undoes a check.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
)

// ErrDelivery wraps notification transport failures.
var ErrDelivery = errors.New("notify: delivery failed")

// Message is a channel-agnostic notification: plain text plus optional
// structured blocks for channels that render them.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is one Slack-style section. Divider blocks carry no text.
type Block struct {
	Type string `json:"type"`           // "section" | "divider"
	Text string `json:"text,omitempty"` // markdown body for sections
}

// Section returns a markdown section block.
func Section(text string) Block { return Block{Type: "section", Text: text} }

// Divider returns a divider block.
func Divider() Block { return Block{Type: "divider"} }

// Notifier sends a message to one channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Stdout writes messages as JSON lines, for local runs and debugging.
type Stdout struct {
	W io.Writer // defaults to os.Stdout
}

func (s *Stdout) Notify(_ context.Context, msg Message) error {
	w := s.W
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	return enc.Encode(msg)
}

// Multi fans a message out to several notifiers. All are attempted; errors
// are joined so a dead channel never starves the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
