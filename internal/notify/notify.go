// Package notify formats the final message and hands it to a notification channel.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Destination identifies where a message goes
type Destination struct {
	Workspace string
	Channel   string
}

func (d Destination) String() string {
	return d.Workspace + "/" + d.Channel
}

// Notifier posts text to a destination
type Notifier interface {
	Post(ctx context.Context, dest Destination, text string) error
}

// Format renders the delivered message. An empty summary still yields the issue link.
func Format(summary, issueURL string) string {
	return fmt.Sprintf("Issue Summary:\n%s\n%s", summary, issueURL)
}

// Deliver formats and posts the summary once; retries are the notifier's concern.
func Deliver(ctx context.Context, n Notifier, dest Destination, summary, issueURL string) error {
	if err := n.Post(ctx, dest, Format(summary, issueURL)); err != nil {
		return fmt.Errorf("failed to post summary to %s: %w", dest, err)
	}
	return nil
}

// WriterNotifier prints messages to an io.Writer
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Notifier = (*WriterNotifier)(nil)

// NewWriterNotifier creates a notifier that writes to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Post writes text followed by a newline
func (n *WriterNotifier) Post(_ context.Context, _ Destination, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintln(n.w, text)
	return err
}
