package pipeline

import (
	"fmt"
	"time"
)

// DestinationType selects which delivery transport a Destination uses,
// per spec.md §4.5.
type DestinationType string

const (
	DestinationChatWebhook   DestinationType = "chat_webhook"
	DestinationBotPush       DestinationType = "bot_push"
	DestinationHTTPWebhook   DestinationType = "http_webhook"
	DestinationRealtimePush  DestinationType = "realtime_push"
)

// BackoffStrategy selects the retry delay progression for HTTP webhook
// destinations, per spec.md §4.5/§7.
type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy configures a generic HTTP webhook's retry behavior. 4xx
// responses abort immediately regardless of remaining attempts; 5xx and
// transport errors consume an attempt and back off.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    BackoffStrategy
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Strategy:    BackoffExponential,
	}
}

// Destination is one delivery target attached to a pipeline.
type Destination struct {
	Type DestinationType

	// DestinationChatWebhook / DestinationBotPush / DestinationHTTPWebhook
	URL string

	// DestinationBotPush
	ChatID    string
	ParseMode string // e.g. "Markdown" or "HTML"; empty is sent as "Markdown", so plain text is not selectable

	// DestinationHTTPWebhook
	SigningSecret string
	SigningHeader string // header name for the HMAC signature, default X-Tada-Signature
	Headers       map[string]string
	Retry         RetryPolicy

	// DestinationRealtimePush
	Topic string
}

func (d Destination) Validate() error {
	switch d.Type {
	case DestinationChatWebhook, DestinationBotPush, DestinationHTTPWebhook:
		if d.URL == "" {
			return fmt.Errorf("destination %s: url is required", d.Type)
		}
	case DestinationRealtimePush:
		if d.Topic == "" {
			return fmt.Errorf("destination %s: topic is required", d.Type)
		}
	default:
		return fmt.Errorf("destination: unknown type %q", d.Type)
	}
	if d.Type == DestinationBotPush && d.ChatID == "" {
		return fmt.Errorf("destination %s: chat id is required", d.Type)
	}
	return nil
}
