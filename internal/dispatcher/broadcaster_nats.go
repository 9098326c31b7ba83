package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/pipeline"
)

// NATSBroadcaster is the multi-process realtime backend named in
// SPEC_FULL.md §4: it implements the same Broadcaster interface LocalBus
// does, so the orchestrator's publish path is unaware which backend is
// active. Grounded on nevasik-swap_stats's NATS client wrapper (same
// connect options, same reconnect posture); publish/subscribe semantics
// are new since that wrapper only established the connection.
type NATSBroadcaster struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

func NewNATSBroadcaster(url string, logger zerolog.Logger) (*NATSBroadcaster, error) {
	if url == "" {
		return nil, fmt.Errorf("nats broadcaster: url is required")
	}
	nc, err := nats.Connect(url,
		nats.Name("tada"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats broadcaster: connect: %w", err)
	}
	return &NATSBroadcaster{nc: nc, logger: logger.With().Str("component", "nats_broadcaster").Logger()}, nil
}

func (b *NATSBroadcaster) Publish(topic string, rec pipeline.OutputRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("nats broadcaster: marshal: %w", err)
	}
	if err := b.nc.Publish("tada.realtime."+topic, data); err != nil {
		return fmt.Errorf("nats broadcaster: publish: %w", err)
	}
	return nil
}

func (b *NATSBroadcaster) Health() error {
	if b.nc == nil || b.nc.Status() != nats.CONNECTED {
		return fmt.Errorf("nats broadcaster: not connected")
	}
	return nil
}

// natsEnvelope carries an OutputRecord's provenance fields over the wire;
// Data is decoded separately as a plain map since chain.Value has no
// UnmarshalJSON; Subscribe converts it back into chain.Values with
// valuesFromAny.
type natsEnvelope struct {
	ID         string         `json:"ID"`
	PipelineID string         `json:"PipelineID"`
	Program    string         `json:"Program"`
	Signature  string         `json:"Signature"`
	Timestamp  int64          `json:"Timestamp"`
	Data       map[string]any `json:"Data"`
}

// Subscribe attaches a channel to a NATS subject, translating raw message
// bytes back into an OutputRecord, id included so WSHandler can log which
// client owns the subscription; NATS itself has no notion of a client id,
// since delivery is subject-based, not connection-based. Satisfies
// Subscriber, so WSHandler can be driven off this backend the same way it
// is driven off LocalBus.
func (b *NATSBroadcaster) Subscribe(id, topic string) (<-chan pipeline.OutputRecord, func()) {
	ch := make(chan pipeline.OutputRecord, 64)
	sub, err := b.nc.Subscribe("tada.realtime."+topic, func(msg *nats.Msg) {
		var env natsEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.logger.Warn().Err(err).Msg("failed to decode nats realtime message")
			return
		}
		rec := pipeline.OutputRecord{
			ID:         env.ID,
			PipelineID: env.PipelineID,
			Program:    env.Program,
			Signature:  env.Signature,
			Timestamp:  env.Timestamp,
			Data:       valuesFromAny(env.Data),
		}
		select {
		case ch <- rec:
		default:
		}
	})
	if err != nil {
		b.logger.Warn().Err(err).Str("client", id).Str("topic", topic).Msg("nats subscribe failed")
		close(ch)
		return ch, func() {}
	}
	unsubscribe := func() {
		_ = sub.Unsubscribe()
		close(ch)
	}
	return ch, unsubscribe
}

// valuesFromAny converts a NATS envelope's plain-JSON data map back into
// the chain.Value tree OutputRecord.Data carries everywhere else.
func valuesFromAny(m map[string]any) map[string]chain.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]chain.Value, len(m))
	for k, v := range m {
		out[k] = chain.FromAny(v)
	}
	return out
}

func (b *NATSBroadcaster) Close() error {
	if b.nc == nil {
		return nil
	}
	if b.nc.Status() == nats.CLOSED {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("nats broadcaster: drain: %w", err)
	}
	return nil
}
