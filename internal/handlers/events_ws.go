package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/services"
	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 64 * 1024
	wsPongWait     = 90 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

// EventStream pushes journal change events to the owner's WebSocket clients.
type EventStream struct {
	hub      *services.EventHub
	upgrader websocket.Upgrader
}

// NewEventStream accepts connections from the given origins. An empty list
// or "*" allows any origin.
func NewEventStream(hub *services.EventHub, allowedOrigins []string) *EventStream {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &EventStream{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeHTTP upgrades an authenticated request. Client messages are read only
// to keep the connection alive; nothing they send is acted on.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := logging.Ctx(r.Context()).With().Str("owner_id", ownerID).Logger()
	events, unsubscribe := s.hub.Subscribe(ownerID)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	log.Debug().Msg("event stream opened")
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	unsubscribe()
	<-done
	log.Debug().Msg("event stream closed")
}
