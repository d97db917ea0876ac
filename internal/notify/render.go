package notify

import (
	"fmt"
	"strings"
)

// maxListedFiles caps the pending files shown in a chat message.
const maxListedFiles = 10

// severity picks the color a chat backend uses for an event.
type severity int

const (
	severityInfo severity = iota
	severityGood
	severityWarning
	severityDanger
)

// cardField is one name/value pair of a chat message.
type cardField struct {
	Name   string
	Value  string
	Inline bool
}

// card is an event rendered for chat. Slack attachments and Discord embeds are
// both built from it, so the two backends always show the same content.
type card struct {
	Title    string
	Text     string
	Link     string
	Severity severity
	Fields   []cardField
	Footer   string
}

func renderCard(event Event) card {
	c := card{
		Title:    GetEventTitle(event),
		Text:     event.Message,
		Link:     event.RunURL,
		Severity: eventSeverity(event.Type),
		Footer:   "branchsync",
	}

	c.add("Repository", event.Repo, true)
	c.add("Branch", event.Branch, true)

	switch event.Type {
	case EventConflict:
		c.add("Mode", event.Mode, true)
		c.add("Remote", event.Remote, true)
		c.add(fmt.Sprintf("Pending files (%d)", len(event.Files)), fileList(event.Files), false)
	case EventBranchPushed:
		c.add("Mode", event.Mode, true)
		c.add("Remote", event.Remote, true)
		c.add("Ahead/Behind", Divergence(event.Ahead, event.Behind), true)
	case EventSyncAborted, EventSyncFailed:
		c.add("Status", event.Status, true)
	}

	if event.RunID != "" {
		c.Footer = "branchsync run " + shortRunID(event.RunID)
	}
	return c
}

// add appends a field, skipping empty values.
func (c *card) add(name, value string, inline bool) {
	if value == "" {
		return
	}
	c.Fields = append(c.Fields, cardField{Name: name, Value: value, Inline: inline})
}

func eventSeverity(t EventType) severity {
	switch t {
	case EventSyncSucceeded, EventBranchPushed:
		return severityGood
	case EventSyncFailed, EventSyncAborted:
		return severityDanger
	case EventConflict:
		return severityWarning
	default:
		return severityInfo
	}
}

// fileList renders paths one per line as code spans, which both Slack and
// Discord markdown understand.
func fileList(files []string) string {
	if len(files) == 0 {
		return ""
	}
	shown := files
	if len(shown) > maxListedFiles {
		shown = shown[:maxListedFiles]
	}

	var b strings.Builder
	for i, f := range shown {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "`%s`", f)
	}
	if rest := len(files) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n… and %d more", rest)
	}
	return b.String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
