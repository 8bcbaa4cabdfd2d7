package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Severity selects the embed color. Values mirror the notification levels
// the bot has always used.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

const (
	ColorInfo    = 3447003  // blue
	ColorWarning = 16776960 // yellow
	ColorError   = 15548997 // red
	ColorSuccess = 3066993  // green
)

func severityColor(s Severity) int {
	switch s {
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	case SeveritySuccess:
		return ColorSuccess
	default:
		return ColorInfo
	}
}

const embedTitle = "🤖 Trading Bot Notification"

// Notify sends a plain status message under the bot's standard embed title.
func (n *Notifier) Notify(ctx context.Context, message string, severity Severity) error {
	return n.SendEmbed(ctx, Embed{
		Title:       embedTitle,
		Description: message,
		Color:       severityColor(severity),
	})
}

// BatchSummary sends the per-batch rollup with counts broken out as fields.
func (n *Notifier) BatchSummary(ctx context.Context, overall, summary string, total, failed int, dryRun bool) error {
	severity := SeveritySuccess
	switch {
	case failed == total && total > 0:
		severity = SeverityError
	case failed > 0:
		severity = SeverityWarning
	case dryRun:
		severity = SeverityInfo
	}

	return n.SendEmbed(ctx, Embed{
		Title:       embedTitle,
		Description: summary,
		Color:       severityColor(severity),
		Fields: []Field{
			{Name: "Overall", Value: overall, Inline: true},
			{Name: "Trades", Value: fmt.Sprintf("%d", total), Inline: true},
			{Name: "Failed", Value: fmt.Sprintf("%d", failed), Inline: true},
		},
	})
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		telemetry.Warnf("discord: rate limited")
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}

	return nil
}
