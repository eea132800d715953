package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/Attamusc/issue-summarizer/internal/logging"
)

// SlackNotifier posts messages with the Slack Web API
type SlackNotifier struct {
	client *slack.Client
}

var _ Notifier = (*SlackNotifier)(nil)

// NewSlackNotifier creates a notifier for a bot token. apiURL overrides the
// Slack API endpoint and may be empty.
func NewSlackNotifier(token, apiURL string) *SlackNotifier {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackNotifier{client: slack.New(token, opts...)}
}

// Post sends text to dest.Channel. The bot token determines the workspace;
// dest.Workspace is only used for logging.
func (n *SlackNotifier) Post(ctx context.Context, dest Destination, text string) error {
	if dest.Channel == "" {
		return errors.New("slack channel is not configured")
	}

	channel, ts, err := n.client.PostMessageContext(ctx, dest.Channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack chat.postMessage: %w", err)
	}

	logging.FromContext(ctx).Debug("Slack message posted", "workspace", dest.Workspace, "channel", channel, "ts", ts)
	return nil
}
