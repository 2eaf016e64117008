// Package notify posts quiz events to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	ColorSuccess = 0x00FF00
	ColorInfo    = 0x3498DB
	ColorError   = 0xFF0000

	defaultUsername = "DocQuiz Notifier"
)

// Discord embed structures, trimmed to the fields we send.
type EmbedFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"` // ISO8601
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// WebhookPayload is the body Discord expects for webhook requests with embeds.
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Notifier sends embeds to one webhook. A nil Notifier, or one without a
// URL, drops everything.
type Notifier struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger
	wg         sync.WaitGroup
}

// New creates a Notifier. An empty webhookURL disables notifications.
func New(webhookURL string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log.Named("notify"),
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

// Send posts embed and waits for Discord's answer.
func (n *Notifier) Send(ctx context.Context, embed Embed) error {
	if !n.Enabled() {
		return nil
	}
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}

	payload, err := json.Marshal(WebhookPayload{
		Username: defaultUsername,
		Embeds:   []Embed{embed},
	})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord notification failed with status %d: %s", resp.StatusCode, body)
	}
	n.log.Debug("Sent discord notification", zap.String("title", embed.Title))
	return nil
}

// Notify sends embed in the background. Failures are logged.
func (n *Notifier) Notify(embed Embed) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Send(context.Background(), embed); err != nil {
			n.log.Error("Discord notification failed", zap.String("title", embed.Title), zap.Error(err))
		}
	}()
}

// Wait blocks until background notifications have finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// QuizGenerated reports a finished generation.
func (n *Notifier) QuizGenerated(workspaceID, source string, questions int, model string, latency time.Duration) {
	n.Notify(Embed{
		Title: "📝 Quiz Generated",
		Color: ColorSuccess,
		Fields: []EmbedField{
			{Name: "Source", Value: source, Inline: false},
			{Name: "Questions", Value: fmt.Sprintf("%d", questions), Inline: true},
			{Name: "Model", Value: model, Inline: true},
			{Name: "Latency", Value: latency.Round(time.Millisecond).String(), Inline: true},
			{Name: "Workspace", Value: fmt.Sprintf("`%s`", workspaceID), Inline: false},
		},
	})
}

// ItemRegenerated reports a single-question regeneration.
func (n *Notifier) ItemRegenerated(workspaceID string, index int) {
	n.Notify(Embed{
		Title: "🔁 Question Regenerated",
		Color: ColorInfo,
		Fields: []EmbedField{
			{Name: "Question", Value: fmt.Sprintf("#%d", index+1), Inline: true},
			{Name: "Workspace", Value: fmt.Sprintf("`%s`", workspaceID), Inline: true},
		},
	})
}

// Error reports a failed request.
func (n *Notifier) Error(action string, status int, path string, err error) {
	n.Notify(Embed{
		Title:       fmt.Sprintf("🚨 Error: %s", action),
		Description: fmt.Sprintf("**Error Details:**\n```%s```", err.Error()),
		Color:       ColorError,
		Fields: []EmbedField{
			{Name: "HTTP Status", Value: fmt.Sprintf("%d", status), Inline: true},
			{Name: "Path", Value: path, Inline: false},
		},
	})
}
