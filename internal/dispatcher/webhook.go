package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/pipeline"
)

// HTTPWebhookSender delivers an OutputRecord to a generic HTTP endpoint,
// HMAC-signing the body and retrying according to the destination's
// RetryPolicy. Adapted from the teacher's RPC fetcher retry loop
// (exponential backoff with a cap, 4xx/5xx branching instead of
// RPC-specific 429/503 handling).
type HTTPWebhookSender struct {
	pool   *HostPool
	logger zerolog.Logger
}

func NewHTTPWebhookSender(pool *HostPool, logger zerolog.Logger) *HTTPWebhookSender {
	return &HTTPWebhookSender{pool: pool, logger: logger.With().Str("component", "http_webhook").Logger()}
}

// Send delivers a signed POST request, retrying per dest.Retry. It returns
// nil only once a 2xx response is received; a 4xx response returns
// immediately without consuming further attempts (spec.md §4.5/§7).
func (s *HTTPWebhookSender) Send(ctx context.Context, dest pipeline.Destination, rec pipeline.OutputRecord) error {
	body, err := json.Marshal(webhookBody(rec))
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	host := hostOf(dest.URL)
	policy := dest.Retry
	if policy.MaxAttempts == 0 {
		policy = pipeline.DefaultRetryPolicy()
	}

	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(policy, attempt)
			s.logger.Debug().Str("pipeline", rec.PipelineID).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying webhook delivery")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, err := s.attempt(ctx, host, dest, rec, body)
		if err == nil {
			s.pool.MarkHealthy(host)
			metrics.RecordDelivery("http_webhook", "success")
			return nil
		}
		lastErr = err
		lastStatus = status

		if status >= 400 && status < 500 {
			metrics.RecordDelivery("http_webhook", "rejected")
			return fmt.Errorf("webhook delivery rejected by %s: %w", dest.URL, err)
		}
		metrics.RecordDelivery("http_webhook", "retry")
	}

	// The host's pool state is updated only once every attempt has failed,
	// so the retries above still reach the destination.
	if lastStatus == http.StatusTooManyRequests || lastStatus == http.StatusServiceUnavailable {
		s.pool.Cooldown(host, 2*time.Minute)
	} else {
		s.pool.MarkUnhealthy(host)
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}

func (s *HTTPWebhookSender) attempt(ctx context.Context, host string, dest pipeline.Destination, rec pipeline.OutputRecord, body []byte) (int, error) {
	client, allowed := s.pool.Acquire(host)
	if !allowed {
		return 0, fmt.Errorf("destination host %s is unhealthy or cooling down", host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tada-dispatcher/1.0")
	req.Header.Set("X-Tada-Pipeline-Id", rec.PipelineID)
	req.Header.Set("X-Tada-Event-Id", rec.ID)
	req.Header.Set("X-Tada-Timestamp", fmt.Sprintf("%d", rec.Timestamp))
	req.Header.Set("X-Tada-Delivery-Id", uuid.NewString())
	for k, v := range dest.Headers {
		req.Header.Set(k, v)
	}
	if dest.SigningSecret != "" {
		header := dest.SigningHeader
		if header == "" {
			header = "X-Tada-Signature"
		}
		req.Header.Set(header, sign(dest.SigningSecret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// webhookBody builds the generic HTTP webhook's JSON body: every field of
// the transformed record's data plus a "_meta" envelope, per spec.md §4.5.
func webhookBody(rec pipeline.OutputRecord) map[string]any {
	body := make(map[string]any, len(rec.Data)+1)
	for k, v := range rec.Data {
		body[k] = v
	}
	body["_meta"] = map[string]any{
		"pipelineId": rec.PipelineID,
		"eventId":    rec.ID,
		"timestamp":  rec.Timestamp,
	}
	return body
}

// sign computes the HMAC-SHA256 signature of body with secret, rendered
// as "sha256=<hex>" per spec.md §4.5's signature header format.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// backoffDelay computes the k-th retry's sleep per policy.Strategy: linear
// grows by policy.BaseDelay per attempt, exponential doubles it (2^(k-1) *
// BaseDelay after the k-th failure, per spec.md §7/P9), both capped at
// policy.MaxDelay. No jitter: P9/S5 require this delay exactly.
func backoffDelay(policy pipeline.RetryPolicy, attempt int) time.Duration {
	var d time.Duration
	switch policy.Strategy {
	case pipeline.BackoffLinear:
		d = policy.BaseDelay * time.Duration(attempt)
	default: // exponential
		d = policy.BaseDelay * time.Duration(1<<uint(attempt-1))
	}
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
