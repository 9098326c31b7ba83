package dispatcher

import (
	"fmt"
	"strings"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/pipeline"
	"github.com/wnt/tada/internal/utils"
)

// BotPushSender posts a Telegram-style sendMessage for each OutputRecord.
// Like the chat webhook, spec.md §4.5 excludes this destination type from
// retry: a bot push is best-effort.
type BotPushSender struct {
	client *utils.HTTPClient
}

func NewBotPushSender() *BotPushSender {
	return &BotPushSender{
		client: utils.NewHTTPClient(
			utils.WithRetryPolicy(pipeline.RetryPolicy{MaxAttempts: 1}),
			utils.WithDefaultHeaders(map[string]string{"Content-Type": "application/json"}),
		),
	}
}

type telegramSendMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (s *BotPushSender) Send(dest pipeline.Destination, rec pipeline.OutputRecord) error {
	parseMode := dest.ParseMode
	if parseMode == "" {
		parseMode = "Markdown"
	}
	msg := telegramSendMessage{
		ChatID:                dest.ChatID,
		Text:                  renderMessage(rec),
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	}

	resp, err := s.client.Post(dest.URL, msg, nil)
	if err != nil {
		metrics.RecordDelivery("bot_push", "error")
		return fmt.Errorf("bot push: %w", err)
	}
	if !resp.IsSuccess() {
		metrics.RecordDelivery("bot_push", "rejected")
		return fmt.Errorf("bot push rejected with status %d", resp.StatusCode)
	}
	metrics.RecordDelivery("bot_push", "success")
	return nil
}

func renderMessage(rec pipeline.OutputRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*pipeline* %s\n", rec.PipelineID)
	for _, k := range chain.SortedKeys(rec.Data) {
		fmt.Fprintf(&b, "%s: %s\n", k, renderScalar(rec.Data[k]))
	}
	return b.String()
}
