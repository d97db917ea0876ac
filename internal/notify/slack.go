package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier posts run events to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// SlackMessage is the incoming webhook body.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is a legacy message attachment. TitleLink points at the run.
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	MrkdwnIn  []string     `json:"mrkdwn_in,omitempty"`
	Ts        int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// Slack attachment colors.
const (
	SlackColorGood    = "good"
	SlackColorWarning = "warning"
	SlackColorDanger  = "danger"
)

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier(webhookURL, channel, username string) *SlackNotifier {
	if username == "" {
		username = "branchsync"
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (s *SlackNotifier) Name() string {
	return "slack"
}

// Send sends a notification to Slack.
func (s *SlackNotifier) Send(ctx context.Context, event Event) error {
	msg := SlackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   ":twisted_rightwards_arrows:",
		Text:        FormatMessage(event),
		Attachments: []SlackAttachment{slackAttachment(renderCard(event), event.Timestamp)},
	}
	if err := postJSON(ctx, s.client, s.webhookURL, nil, msg); err != nil {
		return fmt.Errorf("failed to send to Slack: %w", err)
	}
	return nil
}

// Close cleans up resources.
func (s *SlackNotifier) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func slackAttachment(c card, ts time.Time) SlackAttachment {
	att := SlackAttachment{
		Color:     slackColor(c.Severity),
		Title:     c.Title,
		TitleLink: c.Link,
		Text:      c.Text,
		Footer:    c.Footer,
		MrkdwnIn:  []string{"fields"},
		Ts:        ts.Unix(),
	}
	for _, f := range c.Fields {
		att.Fields = append(att.Fields, SlackField{Title: f.Name, Value: f.Value, Short: f.Inline})
	}
	return att
}

func slackColor(sev severity) string {
	switch sev {
	case severityGood:
		return SlackColorGood
	case severityWarning:
		return SlackColorWarning
	case severityDanger:
		return SlackColorDanger
	default:
		return ""
	}
}
