package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts events as JSON to an arbitrary HTTP endpoint.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// WebhookPayload is the JSON body sent to webhooks. Fields that do not apply
// to an event type are omitted.
type WebhookPayload struct {
	Type      string  `json:"type"`
	Repo      string  `json:"repo"`
	Run       *RunRef `json:"run,omitempty"`
	Branch    string  `json:"branch,omitempty"`
	Mode      string  `json:"mode,omitempty"`
	Remote    string  `json:"remote,omitempty"`
	Status    string  `json:"status,omitempty"`
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`

	// Push carries the divergence that triggered a force-push.
	Push     *PushInfo     `json:"push,omitempty"`
	// Conflict lists the files a stopped rebase or merge left pending.
	Conflict *ConflictInfo `json:"conflict,omitempty"`
}

// RunRef identifies the run an event belongs to.
type RunRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// PushInfo describes a force-push.
type PushInfo struct {
	Ahead  int `json:"ahead"`
	Behind int `json:"behind"`
}

// ConflictInfo describes a stopped pull.
type ConflictInfo struct {
	Files []string `json:"files"`
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send sends a notification via HTTP POST.
func (w *WebhookNotifier) Send(ctx context.Context, event Event) error {
	if err := postJSON(ctx, w.client, w.url, w.headers, NewWebhookPayload(event)); err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	return nil
}

// Close cleans up resources.
func (w *WebhookNotifier) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// NewWebhookPayload builds the JSON body for event.
func NewWebhookPayload(event Event) WebhookPayload {
	p := WebhookPayload{
		Type:      string(event.Type),
		Repo:      event.Repo,
		Branch:    event.Branch,
		Mode:      event.Mode,
		Remote:    event.Remote,
		Status:    event.Status,
		Message:   FormatMessage(event),
		Timestamp: event.Timestamp.Format(time.RFC3339),
	}
	if event.RunID != "" {
		p.Run = &RunRef{ID: event.RunID, URL: event.RunURL}
	}

	switch event.Type {
	case EventBranchPushed:
		p.Push = &PushInfo{Ahead: event.Ahead, Behind: event.Behind}
	case EventConflict:
		files := event.Files
		if files == nil {
			files = []string{}
		}
		p.Conflict = &ConflictInfo{Files: files}
	}
	return p
}
