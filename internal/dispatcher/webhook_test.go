package dispatcher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/pipeline"
)

func sampleRecord() pipeline.OutputRecord {
	return pipeline.OutputRecord{
		ID:         "evt-1",
		PipelineID: "pipe-1",
		Program:    "prog",
		Signature:  "sig",
		Timestamp:  1700000000000,
		Data:       map[string]chain.Value{"foo": chain.String("bar")},
	}
}

func TestHTTPWebhookSenderSignsBody(t *testing.T) {
	var gotSig, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Tada-Signature")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := NewHostPool(zerolog.Nop())
	sender := NewHTTPWebhookSender(pool, zerolog.Nop())
	dest := pipeline.Destination{
		Type:          pipeline.DestinationHTTPWebhook,
		URL:           srv.URL,
		SigningSecret: "s3cr3t",
		Retry:         pipeline.DefaultRetryPolicy(),
	}

	err := sender.Send(context.Background(), dest, sampleRecord())
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("s3cr3t"))
	mac.Write([]byte(gotBody))
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, expected, gotSig)
}

func TestHTTPWebhookSenderBodyIncludesMeta(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := NewHostPool(zerolog.Nop())
	sender := NewHTTPWebhookSender(pool, zerolog.Nop())
	dest := pipeline.Destination{Type: pipeline.DestinationHTTPWebhook, URL: srv.URL}

	err := sender.Send(context.Background(), dest, sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, "bar", captured["foo"])
	meta, ok := captured["_meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pipe-1", meta["pipelineId"])
}

func TestHTTPWebhookSenderAbortsOn4xxWithoutRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	pool := NewHostPool(zerolog.Nop())
	sender := NewHTTPWebhookSender(pool, zerolog.Nop())
	dest := pipeline.Destination{
		Type:  pipeline.DestinationHTTPWebhook,
		URL:   srv.URL,
		Retry: pipeline.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: pipeline.BackoffExponential},
	}

	err := sender.Send(context.Background(), dest, sampleRecord())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestHTTPWebhookSenderRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := NewHostPool(zerolog.Nop())
	sender := NewHTTPWebhookSender(pool, zerolog.Nop())
	dest := pipeline.Destination{
		Type:  pipeline.DestinationHTTPWebhook,
		URL:   srv.URL,
		Retry: pipeline.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Strategy: pipeline.BackoffLinear},
	}

	err := sender.Send(context.Background(), dest, sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPWebhookSenderExhaustsRetriesOnPersistent5xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pool := NewHostPool(zerolog.Nop())
	sender := NewHTTPWebhookSender(pool, zerolog.Nop())
	dest := pipeline.Destination{
		Type:  pipeline.DestinationHTTPWebhook,
		URL:   srv.URL,
		Retry: pipeline.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: pipeline.BackoffExponential},
	}

	err := sender.Send(context.Background(), dest, sampleRecord())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestBackoffDelayLinearVsExponentialAndCap(t *testing.T) {
	linear := pipeline.RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Strategy: pipeline.BackoffLinear}
	assert.Equal(t, 200*time.Millisecond, backoffDelay(linear, 2))

	exp := pipeline.RetryPolicy{BaseDelay: 1 * time.Second, MaxDelay: time.Minute, Strategy: pipeline.BackoffExponential}
	assert.Equal(t, 1*time.Second, backoffDelay(exp, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(exp, 2))

	capped := pipeline.RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 12 * time.Millisecond, Strategy: pipeline.BackoffExponential}
	assert.Equal(t, 12*time.Millisecond, backoffDelay(capped, 5))
}

func TestHostOfParsesHostPort(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://example.com/path"))
	assert.Equal(t, "example.com:8080", hostOf("https://example.com:8080/webhook"))
}
