package dispatcher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/pipeline"
)

func TestBotPushSenderDefaultsToMarkdownParseMode(t *testing.T) {
	var captured telegramSendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewBotPushSender()
	rec := pipeline.OutputRecord{PipelineID: "pipe-1", Data: map[string]chain.Value{"k": chain.String("v")}}
	dest := pipeline.Destination{Type: pipeline.DestinationBotPush, URL: srv.URL, ChatID: "chat-123"}

	err := sender.Send(dest, rec)
	require.NoError(t, err)

	assert.Equal(t, "chat-123", captured.ChatID)
	assert.Equal(t, "Markdown", captured.ParseMode)
	assert.Contains(t, captured.Text, "pipe-1")
	assert.Contains(t, captured.Text, "k: v")
}

func TestBotPushSenderHonorsExplicitParseMode(t *testing.T) {
	var captured telegramSendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewBotPushSender()
	dest := pipeline.Destination{Type: pipeline.DestinationBotPush, URL: srv.URL, ChatID: "chat-123", ParseMode: "HTML"}

	err := sender.Send(dest, sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "HTML", captured.ParseMode)
}

func TestBotPushSenderReturnsErrorOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := NewBotPushSender()
	err := sender.Send(pipeline.Destination{Type: pipeline.DestinationBotPush, URL: srv.URL, ChatID: "x"}, sampleRecord())
	assert.Error(t, err)
}
