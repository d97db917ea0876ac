// Package notify provides notification backends for branchsync run events.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Event represents a notification event.
type Event struct {
	Type   EventType
	Repo   string
	RunID  string
	RunURL string // set by Manager from its run link template
	Branch string

	// Mode is the step that produced the event: rebase, merge or push.
	Mode   string
	Remote string
	Ahead  int
	Behind int
	// Files are the paths left pending by a stopped rebase or merge.
	Files  []string

	Status    string
	Message   string
	Timestamp time.Time
}

// RunPlaceholder is replaced by the run id in a run link template.
const RunPlaceholder = "{run}"

// EventType represents the type of notification event.
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventConflict      EventType = "conflict"
	EventBranchPushed  EventType = "branch_pushed"
	EventSyncSucceeded EventType = "sync_succeeded"
	EventSyncAborted   EventType = "sync_aborted"
	EventSyncFailed    EventType = "sync_failed"
)

// Notifier is the interface for notification backends.
type Notifier interface {
	// Name returns the name of the notifier.
	Name() string

	// Send sends a notification event.
	Send(ctx context.Context, event Event) error

	// Close cleans up any resources.
	Close() error
}

// Manager fans events out to multiple notification backends.
type Manager struct {
	notifiers []Notifier
	runURL    string
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
	}
}

// Register adds a notifier to the manager.
func (m *Manager) Register(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetRunURL sets the template events link their run to, e.g.
// "https://ci.example.com/branchsync/{run}". An empty template disables links.
func (m *Manager) SetRunURL(template string) {
	m.runURL = template
}

// Notify sends an event to all registered notifiers concurrently and waits for them.
func (m *Manager) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunURL == "" && event.RunID != "" && m.runURL != "" {
		event.RunURL = strings.ReplaceAll(m.runURL, RunPlaceholder, event.RunID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, n := range m.notifiers {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()
			if err := notifier.Send(ctx, event); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close closes all registered notifiers.
func (m *Manager) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Count returns the number of registered notifiers.
func (m *Manager) Count() int {
	return len(m.notifiers)
}

// FormatMessage creates a human-readable message from an event.
func FormatMessage(event Event) string {
	switch event.Type {
	case EventSyncStarted:
		return fmt.Sprintf("🔄 Sync started for %s", event.Repo)
	case EventConflict:
		return fmt.Sprintf("⚠️ Conflicts on %s (%s): %d pending file(s) in %s", event.Branch, modeOr(event.Mode, "pull"), len(event.Files), event.Repo)
	case EventBranchPushed:
		return fmt.Sprintf("⬆️ Force-pushed %s to %s in %s (%s)", event.Branch, event.Remote, event.Repo, Divergence(event.Ahead, event.Behind))
	case EventSyncSucceeded:
		return fmt.Sprintf("✅ Sync succeeded for %s", event.Repo)
	case EventSyncAborted:
		if event.Branch == "" {
			return fmt.Sprintf("⏹️ Sync aborted for %s: %s", event.Repo, event.Message)
		}
		return fmt.Sprintf("⏹️ Sync aborted on %s in %s: %s", event.Branch, event.Repo, event.Message)
	case EventSyncFailed:
		return fmt.Sprintf("❌ Sync failed for %s: %s", event.Repo, event.Message)
	default:
		return fmt.Sprintf("[%s] %s: %s", event.Type, event.Repo, event.Message)
	}
}

// GetEventTitle returns a human-readable title for an event type.
func GetEventTitle(event Event) string {
	switch event.Type {
	case EventSyncStarted:
		return "🔄 Sync Started"
	case EventConflict:
		return "⚠️ Conflicts Waiting"
	case EventBranchPushed:
		return "⬆️ Branch Pushed"
	case EventSyncSucceeded:
		return "✅ Sync Succeeded"
	case EventSyncAborted:
		return "⏹️ Sync Aborted"
	case EventSyncFailed:
		return "❌ Sync Failed"
	default:
		return string(event.Type)
	}
}

// Divergence renders ahead/behind counts the way git prints them.
func Divergence(ahead, behind int) string {
	return fmt.Sprintf("+%d/-%d", ahead, behind)
}

func modeOr(mode, fallback string) string {
	if mode == "" {
		return fallback
	}
	return mode
}

// postJSON marshals v and posts it to url, retrying server errors.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := retryableSend(ctx, client, req, 2)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// retryableSend executes an HTTP request with retry logic for transient failures.
func retryableSend(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Don't retry client errors (4xx), only server errors (5xx)
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
