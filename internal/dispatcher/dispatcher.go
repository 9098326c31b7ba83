package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wnt/tada/internal/pipeline"
)

// DeliveryResult is one destination's outcome from a Deliver call, per
// spec.md §4.5: "{destination-tag, success, error?}". Per-destination
// failure never blocks the others.
type DeliveryResult struct {
	Destination string
	Success     bool
	Error       error
}

// Dispatcher fans an OutputRecord out to every destination attached to
// the pipeline that produced it, each destination type independently and
// in parallel, per spec.md §4.5/§4.6.
type Dispatcher struct {
	chatWebhook *ChatWebhookSender
	botPush     *BotPushSender
	httpWebhook *HTTPWebhookSender
	realtime    Broadcaster
	logger      zerolog.Logger
}

func NewDispatcher(pool *HostPool, realtime Broadcaster, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		chatWebhook: NewChatWebhookSender(),
		botPush:     NewBotPushSender(),
		httpWebhook: NewHTTPWebhookSender(pool, logger),
		realtime:    realtime,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Deliver sends rec to every destination concurrently and returns every
// destination's result, in no particular order. A panic or error in one
// sender never prevents the others from running or reporting.
func (d *Dispatcher) Deliver(ctx context.Context, rec pipeline.OutputRecord, destinations []pipeline.Destination) []DeliveryResult {
	results := make([]DeliveryResult, len(destinations))
	var wg sync.WaitGroup
	wg.Add(len(destinations))
	for i, dest := range destinations {
		go func(i int, dest pipeline.Destination) {
			defer wg.Done()
			results[i] = d.deliverOne(ctx, dest, rec)
		}(i, dest)
	}
	wg.Wait()
	return results
}

// deliverOne recovers from a panic in a destination sender so that one
// destination's bug reports as a failed DeliveryResult rather than taking
// down the process running every other pipeline's deliveries, per
// spec.md §7's per-destination isolation requirement (the same guarantee
// internal/decoder/registry.go's safeDecode gives per-program decoding).
func (d *Dispatcher) deliverOne(ctx context.Context, dest pipeline.Destination, rec pipeline.OutputRecord) (result DeliveryResult) {
	tag := destinationTag(dest)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("destination panic: %v", r)
			d.logger.Warn().Str("pipeline", rec.PipelineID).Str("destination", tag).Err(err).Msg("delivery panicked")
			result = DeliveryResult{Destination: tag, Success: false, Error: err}
		}
	}()
	err := d.send(ctx, dest, rec)
	if err != nil {
		d.logger.Warn().Str("pipeline", rec.PipelineID).Str("destination", tag).Err(err).Msg("delivery failed")
	}
	return DeliveryResult{Destination: tag, Success: err == nil, Error: err}
}

func (d *Dispatcher) send(ctx context.Context, dest pipeline.Destination, rec pipeline.OutputRecord) error {
	switch dest.Type {
	case pipeline.DestinationChatWebhook:
		return d.chatWebhook.Send(dest, rec)
	case pipeline.DestinationBotPush:
		return d.botPush.Send(dest, rec)
	case pipeline.DestinationHTTPWebhook:
		return d.httpWebhook.Send(ctx, dest, rec)
	case pipeline.DestinationRealtimePush:
		return d.publishRealtime(dest, rec)
	default:
		return fmt.Errorf("dispatcher: unknown destination type %q", dest.Type)
	}
}

// publishRealtime broadcasts rec to "pipeline:{id}" per spec.md §4.5. If
// no realtime backend is wired, the destination reports failure.
func (d *Dispatcher) publishRealtime(dest pipeline.Destination, rec pipeline.OutputRecord) error {
	if d.realtime == nil {
		return fmt.Errorf("realtime push: no broadcaster configured")
	}
	topic := dest.Topic
	if topic == "" {
		topic = "pipeline:" + rec.PipelineID
	}
	return d.realtime.Publish(topic, rec)
}

func destinationTag(dest pipeline.Destination) string {
	switch dest.Type {
	case pipeline.DestinationChatWebhook, pipeline.DestinationHTTPWebhook:
		return fmt.Sprintf("%s:%s", dest.Type, dest.URL)
	case pipeline.DestinationBotPush:
		return fmt.Sprintf("%s:%s", dest.Type, dest.ChatID)
	case pipeline.DestinationRealtimePush:
		return fmt.Sprintf("%s:%s", dest.Type, dest.Topic)
	default:
		return string(dest.Type)
	}
}
