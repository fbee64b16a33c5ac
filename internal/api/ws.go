package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/markdingo/dnsbench/internal/apierr"
	"github.com/markdingo/dnsbench/internal/eventbus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// subscribeMessage is the single client->server message this endpoint
// understands: pick which run_id's events to relay.
type subscribeMessage struct {
	RunID string `json:"run_id"`
}

// handleWebSocket implements the real-time relay of spec.md §4.8: a client
// connects, sends {"run_id": "..."}, and from then on receives every Event
// Bus message for that run as a {type, payload} JSON frame, until the
// bus delivers a terminal event or the client disconnects.
//
// The read/write pump split and ping/pong keepalive are grounded on the
// pack sibling go-mizu-mizu/blueprints/chat's ws.Connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.error(w, r.RemoteAddr, apierr.Invalid("upgrade", "websocket upgrade failed: %s", err.Error()))
		return
	}
	defer conn.Close()

	// A WS push subscription outlives the single request that upgraded it, so
	// it is tracked as a session within its connection rather than folded
	// into the per-request concurrency counter.
	s.connTrk.SessionAdd(r.RemoteAddr)
	defer s.connTrk.SessionDone(r.RemoteAddr)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	var sub subscribeMessage
	if err := conn.ReadJSON(&sub); err != nil || sub.RunID == "" {
		_ = conn.WriteJSON(apierr.Invalid("run_id", "first message must be {\"run_id\": \"...\"}"))
		return
	}

	events, unsubscribe := s.bus.Subscribe(sub.RunID)
	defer unsubscribe()

	done := make(chan struct{})
	go s.wsReadPump(conn, done)

	s.wsWritePump(conn, events, done)
}

// wsReadPump discards client-originated frames (this endpoint is
// server-push only) but keeps the connection's read deadline alive and
// detects client disconnect.
func (s *Server) wsReadPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsWritePump relays Event Bus traffic to the client until the channel
// closes (terminal event delivered) or the client goes away.
func (s *Server) wsWritePump(conn *websocket.Conn, events <-chan eventbus.Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
