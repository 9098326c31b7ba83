package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/decoder"
	"github.com/wnt/tada/internal/dispatcher"
	"github.com/wnt/tada/internal/pipeline"
	"github.com/wnt/tada/internal/pipelineindex"
	"github.com/wnt/tada/internal/schema"
)

type stubDecoder struct {
	events []chain.Event
}

func (s *stubDecoder) Decode(envelope *chain.TransactionEnvelope, program chain.Program, sch schema.ProgramSchema) ([]chain.Event, error) {
	return s.events, nil
}

type noopDeduper struct{ seen bool }

func (d *noopDeduper) Seen(ctx context.Context, key string) bool { return d.seen }

type panickyDeduper struct{ panicFor string }

func (d *panickyDeduper) Seen(ctx context.Context, key string) bool {
	if strings.HasSuffix(key, ":"+d.panicFor) {
		panic("dedup backend unavailable")
	}
	return false
}

func newTestRegistry(programID, address string, events []chain.Event) *decoder.Registry {
	catalog := chain.NewCatalog([]chain.Program{{ID: programID, Address: address}})
	schemas := map[string]schema.ProgramSchema{programID: schema.NewProgramSchema(programID, nil, nil)}
	registry := decoder.NewRegistry(catalog, schemas, chain.NewAggregatorCatalog(nil), zerolog.Nop())
	registry.Register(programID, &stubDecoder{events: events})
	return registry
}

func TestWorkerProcessDeliversMatchingPipelineToDestination(t *testing.T) {
	var delivered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := newTestRegistry("prog-a", "AddrA", []chain.Event{{
		Name:      "TradeEvent",
		ProgramID: "prog-a",
		Data:      map[string]chain.Value{"sol_amount": chain.BigInt("1000000000")},
	}})

	index := pipelineindex.New()
	require.NoError(t, index.Upsert(pipeline.Pipeline{
		ID:         "p1",
		ProgramIDs: []string{"prog-a"},
		Status:     pipeline.StatusActive,
		Transform:  pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateRaw},
		Destinations: []pipeline.Destination{
			{Type: pipeline.DestinationChatWebhook, URL: srv.URL},
		},
	}))

	pool := dispatcher.NewHostPool(zerolog.Nop())
	disp := dispatcher.NewDispatcher(pool, nil, zerolog.Nop())

	w := NewWorker("w1", nil, registry, index, disp, &noopDeduper{}, zerolog.Nop())

	envelope := &chain.TransactionEnvelope{
		Signature:   "sig1",
		AccountKeys: []chain.AccountKey{{Address: "AddrA"}},
	}
	w.process(context.Background(), envelope)

	assert.True(t, delivered)
}

func TestWorkerProcessSkipsDedupedEvents(t *testing.T) {
	registry := newTestRegistry("prog-a", "AddrA", []chain.Event{{Name: "TradeEvent", ProgramID: "prog-a", Data: map[string]chain.Value{}}})

	index := pipelineindex.New()
	require.NoError(t, index.Upsert(pipeline.Pipeline{
		ID:           "p1",
		ProgramIDs:   []string{"prog-a"},
		Status:       pipeline.StatusActive,
		Transform:    pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateRaw},
		Destinations: []pipeline.Destination{{Type: pipeline.DestinationRealtimePush, Topic: "t"}},
	}))

	pool := dispatcher.NewHostPool(zerolog.Nop())
	bus := dispatcher.NewLocalBus(4)
	disp := dispatcher.NewDispatcher(pool, bus, zerolog.Nop())

	ch, unsubscribe := bus.Subscribe("s1", "t")
	defer unsubscribe()

	w := NewWorker("w1", nil, registry, index, disp, &noopDeduper{seen: true}, zerolog.Nop())
	envelope := &chain.TransactionEnvelope{Signature: "sig1", AccountKeys: []chain.AccountKey{{Address: "AddrA"}}}
	w.process(context.Background(), envelope)

	select {
	case <-ch:
		t.Fatal("deduped event should not have been delivered")
	default:
	}
}

func TestWorkerProcessPipelinePanicDoesNotAbortOtherPipelines(t *testing.T) {
	var delivered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := newTestRegistry("prog-a", "AddrA", []chain.Event{{
		Name:      "TradeEvent",
		ProgramID: "prog-a",
		Data:      map[string]chain.Value{},
	}})

	index := pipelineindex.New()
	require.NoError(t, index.Upsert(pipeline.Pipeline{
		ID:           "p1",
		ProgramIDs:   []string{"prog-a"},
		Status:       pipeline.StatusActive,
		Transform:    pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateRaw},
		Destinations: []pipeline.Destination{{Type: pipeline.DestinationChatWebhook, URL: srv.URL}},
	}))
	require.NoError(t, index.Upsert(pipeline.Pipeline{
		ID:           "p2",
		ProgramIDs:   []string{"prog-a"},
		Status:       pipeline.StatusActive,
		Transform:    pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateRaw},
		Destinations: []pipeline.Destination{{Type: pipeline.DestinationChatWebhook, URL: srv.URL}},
	}))

	pool := dispatcher.NewHostPool(zerolog.Nop())
	disp := dispatcher.NewDispatcher(pool, nil, zerolog.Nop())

	// dedup panics for p1's key only, standing in for p1's filter/transform
	// exploding — process must keep routing the event to p2 instead of
	// taking the whole worker down.
	w := NewWorker("w1", nil, registry, index, disp, &panickyDeduper{panicFor: "p1"}, zerolog.Nop())

	envelope := &chain.TransactionEnvelope{
		Signature:   "sig1",
		AccountKeys: []chain.AccountKey{{Address: "AddrA"}},
	}
	assert.NotPanics(t, func() {
		w.process(context.Background(), envelope)
	})
	assert.True(t, delivered)
}

func TestWorkerStopEndsStartLoop(t *testing.T) {
	registry := newTestRegistry("prog-a", "AddrA", nil)
	index := pipelineindex.New()
	pool := dispatcher.NewHostPool(zerolog.Nop())
	disp := dispatcher.NewDispatcher(pool, nil, zerolog.Nop())

	inbox := make(chan *chain.TransactionEnvelope, 1)
	w := NewWorker("w1", inbox, registry, index, disp, nil, zerolog.Nop())
	w.Stop()
	inbox <- &chain.TransactionEnvelope{}

	err := w.Start(context.Background())
	assert.NoError(t, err)
}
