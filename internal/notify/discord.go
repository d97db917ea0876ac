package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DiscordNotifier posts run events to a Discord channel webhook.
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
}

// DiscordMessage is the channel webhook body.
type DiscordMessage struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed is a rich embed. URL turns the title into a link to the run.
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
}

// DiscordEmbedField represents a field in a Discord embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter represents a footer in a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// Discord embed colors.
const (
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F
	ColorBlue   = 0x3498DB
)

// NewDiscordNotifier creates a new Discord notifier.
func NewDiscordNotifier(webhookURL, username string) *DiscordNotifier {
	if username == "" {
		username = "branchsync"
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (d *DiscordNotifier) Name() string {
	return "discord"
}

// Send sends a notification to Discord.
func (d *DiscordNotifier) Send(ctx context.Context, event Event) error {
	msg := DiscordMessage{
		Username: d.username,
		Embeds:   []DiscordEmbed{discordEmbed(renderCard(event), event.Timestamp)},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, nil, msg); err != nil {
		return fmt.Errorf("failed to send to Discord: %w", err)
	}
	return nil
}

// Close cleans up resources.
func (d *DiscordNotifier) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func discordEmbed(c card, ts time.Time) DiscordEmbed {
	embed := DiscordEmbed{
		Title:       c.Title,
		URL:         c.Link,
		Description: c.Text,
		Color:       discordColor(c.Severity),
		Timestamp:   ts.Format(time.RFC3339),
		Footer:      &DiscordEmbedFooter{Text: c.Footer},
	}
	for _, f := range c.Fields {
		embed.Fields = append(embed.Fields, DiscordEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return embed
}

func discordColor(sev severity) int {
	switch sev {
	case severityGood:
		return ColorGreen
	case severityWarning:
		return ColorYellow
	case severityDanger:
		return ColorRed
	default:
		return ColorBlue
	}
}
