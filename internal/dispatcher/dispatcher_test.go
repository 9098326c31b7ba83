package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/pipeline"
)

func TestDispatcherDeliverFansOutIndependently(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()
	failSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer failSrv.Close()

	pool := NewHostPool(zerolog.Nop())
	bus := NewLocalBus(8)
	d := NewDispatcher(pool, bus, zerolog.Nop())

	destinations := []pipeline.Destination{
		{Type: pipeline.DestinationChatWebhook, URL: okSrv.URL},
		{Type: pipeline.DestinationBotPush, URL: failSrv.URL, ChatID: "c"},
		{Type: pipeline.DestinationRealtimePush, Topic: "pipeline:pipe-1"},
	}

	results := d.Deliver(context.Background(), sampleRecord(), destinations)
	require.Len(t, results, 3)

	byTag := make(map[string]DeliveryResult, len(results))
	for _, r := range results {
		byTag[r.Destination] = r
	}
	assert.True(t, byTag["chat_webhook:"+okSrv.URL].Success)
	assert.False(t, byTag["bot_push:c"].Success)
	assert.True(t, byTag["realtime_push:pipeline:pipe-1"].Success)
}

func TestDispatcherDeliverUnknownDestinationTypeReportsFailure(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	d := NewDispatcher(pool, nil, zerolog.Nop())

	results := d.Deliver(context.Background(), sampleRecord(), []pipeline.Destination{{Type: "bogus"}})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Error(t, results[0].Error)
}

func TestDispatcherRealtimePushWithoutBroadcasterFails(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	d := NewDispatcher(pool, nil, zerolog.Nop())

	results := d.Deliver(context.Background(), sampleRecord(), []pipeline.Destination{
		{Type: pipeline.DestinationRealtimePush, Topic: "t"},
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

type panicBroadcaster struct{}

func (panicBroadcaster) Publish(topic string, rec pipeline.OutputRecord) error {
	panic("broadcaster exploded")
}
func (panicBroadcaster) Health() error { return nil }

func TestDispatcherDeliverOnePanicReportsFailureInsteadOfCrashing(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	d := NewDispatcher(pool, panicBroadcaster{}, zerolog.Nop())

	var results []DeliveryResult
	assert.NotPanics(t, func() {
		results = d.Deliver(context.Background(), sampleRecord(), []pipeline.Destination{
			{Type: pipeline.DestinationRealtimePush, Topic: "t"},
			{Type: pipeline.DestinationBotPush, URL: "http://127.0.0.1:0", ChatID: "c"},
		})
	})
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Error(t, results[0].Error)
}

func TestDispatcherRealtimePushDefaultsTopicToPipelineID(t *testing.T) {
	pool := NewHostPool(zerolog.Nop())
	bus := NewLocalBus(8)
	d := NewDispatcher(pool, bus, zerolog.Nop())

	ch, unsubscribe := bus.Subscribe("sub-1", "pipeline:pipe-1")
	defer unsubscribe()

	rec := sampleRecord()
	results := d.Deliver(context.Background(), rec, []pipeline.Destination{{Type: pipeline.DestinationRealtimePush}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	select {
	case got := <-ch:
		assert.Equal(t, rec.ID, got.ID)
	default:
		t.Fatal("expected a delivered record on the subscribed channel")
	}
}
