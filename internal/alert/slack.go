package alert

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts alerts to a Slack channel.
type SlackNotifier struct {
	client  slackPoster
	channel string
}

func NewSlackNotifier(token, channel string) (*SlackNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("slack channel is required")
	}
	return &SlackNotifier{client: slack.New(token), channel: channel}, nil
}

func (n *SlackNotifier) Notify(ctx context.Context, a Alert) error {
	if _, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(a.Text(), false)); err != nil {
		return fmt.Errorf("post slack alert: %w", err)
	}
	return nil
}
