package runact

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/runact/runact/internal/errors"
)

// Notifier posts run summaries to a Discord webhook. Notification failures
// are logged, never fatal.
type Notifier struct {
	WebhookURL string
	Log        *Logger
}

func (n *Notifier) Notify(summary string) {
	if n == nil || n.WebhookURL == "" {
		return
	}
	id, token, err := parseWebhookURL(n.WebhookURL)
	if err != nil {
		n.Log.Logf("discord: %v", err)
		return
	}
	session, err := discordgo.New("")
	if err != nil {
		n.Log.Logf("discord: New: %v", err)
		return
	}
	_, err = session.WebhookExecute(id, token, false, &discordgo.WebhookParams{
		Content:  summary,
		Username: "run-action",
	})
	if err != nil {
		n.Log.Logf("discord: WebhookExecute: %v", err)
		return
	}
	n.Log.Verbosef("discord: notified")
}

// parseWebhookURL splits a Discord webhook URL of the form
// .../webhooks/{id}/{token} into its id and token.
func parseWebhookURL(raw string) (id, token string, err error) {
	parts := strings.Split(strings.TrimRight(raw, "/"), "/")
	for i := 0; i < len(parts)-2; i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", errors.Errorf("not a Discord webhook URL: %q", raw)
}
