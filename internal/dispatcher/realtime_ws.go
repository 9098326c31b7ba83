package dispatcher

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler upgrades HTTP connections to WebSocket and streams a topic's
// realtime records to each connected client, per spec.md §6.4's client
// transport. Grounded on VladislavFirsov-solana-token-lab's WSClient
// shape, inverted here into a server since the runtime is the publisher.
// Driven off a Subscriber rather than a concrete *LocalBus so it tracks
// whichever realtime backend cfg.RealtimeBackend actually selected.
type WSHandler struct {
	sub      Subscriber
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(sub Subscriber, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		sub: sub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "realtime_ws").Logger(),
	}
}

// ServeHTTP implements the /realtime/{topic} endpoint named in spec.md §6.4.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	records, unsubscribe := h.sub.Subscribe(clientID, topic)
	defer unsubscribe()

	h.logger.Info().Str("client", clientID).Str("topic", topic).Msg("realtime subscriber connected")

	// Drain client-sent frames on a separate goroutine purely to detect
	// disconnects; the protocol here is server push only.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				h.logger.Debug().Err(err).Str("client", clientID).Msg("realtime write failed, closing")
				return
			}
		case <-closed:
			return
		}
	}
}
