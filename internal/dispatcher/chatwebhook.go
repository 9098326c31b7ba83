package dispatcher

import (
	"fmt"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/pipeline"
	"github.com/wnt/tada/internal/utils"
)

// ChatWebhookSender posts a Discord-style embed for each OutputRecord.
// Chat webhooks are fire-and-forget: spec.md §4.5 does not require retry
// for this destination type, so a single failed attempt is logged and
// counted rather than resubmitted.
type ChatWebhookSender struct {
	client *utils.HTTPClient
}

func NewChatWebhookSender() *ChatWebhookSender {
	return &ChatWebhookSender{
		client: utils.NewHTTPClient(
			utils.WithRetryPolicy(pipeline.RetryPolicy{MaxAttempts: 1}),
			utils.WithDefaultHeaders(map[string]string{"Content-Type": "application/json"}),
		),
	}
}

type discordEmbed struct {
	Title  string                 `json:"title"`
	Fields []discordEmbedField    `json:"fields"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (s *ChatWebhookSender) Send(dest pipeline.Destination, rec pipeline.OutputRecord) error {
	msg := discordMessage{Embeds: []discordEmbed{{
		Title:  fmt.Sprintf("pipeline %s", rec.PipelineID),
		Fields: renderFields(rec.Data),
	}}}

	resp, err := s.client.Post(dest.URL, msg, nil)
	if err != nil {
		metrics.RecordDelivery("chat_webhook", "error")
		return fmt.Errorf("chat webhook: %w", err)
	}
	if !resp.IsSuccess() {
		metrics.RecordDelivery("chat_webhook", "rejected")
		return fmt.Errorf("chat webhook rejected with status %d", resp.StatusCode)
	}
	metrics.RecordDelivery("chat_webhook", "success")
	return nil
}

func renderFields(payload map[string]chain.Value) []discordEmbedField {
	keys := chain.SortedKeys(payload)
	out := make([]discordEmbedField, 0, len(keys))
	for _, k := range keys {
		out = append(out, discordEmbedField{Name: k, Value: renderScalar(payload[k]), Inline: true})
	}
	return out
}

func renderScalar(v chain.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if s, ok := v.AsBigInt(); ok {
		return s
	}
	if b, ok := v.AsBool(); ok {
		return fmt.Sprintf("%t", b)
	}
	if n, ok := v.AsNumber(); ok {
		return fmt.Sprintf("%v", n)
	}
	return ""
}
