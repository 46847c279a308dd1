package ws

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// frame carries only the action tag; the full body is handed to the
// controller untouched, so request structs stay in the domain.
type frame struct {
	Action domain.Action `json:"action"`
}

// Gateway upgrades HTTP requests to websocket sessions, assigns
// connection handles, and feeds inbound frames to the dispatcher one
// invocation at a time per connection.
type Gateway struct {
	log        *slog.Logger
	hub        *Hub
	dispatcher contract.IDispatcher
	upgrader   websocket.Upgrader
}

func NewGateway(log *slog.Logger, hub *Hub, dispatcher contract.IDispatcher) *Gateway {
	return &Gateway{
		log:        log,
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; nickname
			// policy, not origin, is the admission control here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connectionID := uuid.NewString()
	g.hub.Attach(connectionID, conn)

	status, err := g.dispatcher.Dispatch(r.Context(), domain.Inbound{
		ConnectionID: connectionID,
		Action:       domain.ActionConnect,
		Nickname:     r.URL.Query().Get("nickname"),
	})
	if err != nil || status != domain.StatusOK {
		g.log.Info("connect refused", "connection_id", connectionID, "status", status, "error", err)
		g.refuse(conn, connectionID, status)
		return
	}

	g.readLoop(conn, connectionID)

	// The socket is gone, whether cleanly or not; the request context
	// may already be canceled, so the disconnect runs on its own.
	g.hub.Detach(connectionID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := g.dispatcher.Dispatch(ctx, domain.Inbound{
		ConnectionID: connectionID,
		Action:       domain.ActionDisconnect,
	}); err != nil {
		g.log.Error("disconnect invocation failed", "connection_id", connectionID, "error", err)
	}
}

func (g *Gateway) readLoop(conn *websocket.Conn, connectionID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			g.log.Debug("read loop ended", "connection_id", connectionID, "error", err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			// The action tag itself is unreadable: echo a bad-request
			// and keep the session alive.
			g.echoBadFrame(connectionID)
			continue
		}

		status, err := g.dispatcher.Dispatch(context.Background(), domain.Inbound{
			ConnectionID: connectionID,
			Action:       f.Action,
			Body:         data,
		})
		if err != nil {
			g.log.Error("invocation failed",
				"connection_id", connectionID,
				"action", f.Action,
				"status", status,
				"error", err)
			continue
		}
		g.log.Debug("invocation handled", "connection_id", connectionID, "action", f.Action, "status", status)
	}
}

func (g *Gateway) refuse(conn *websocket.Conn, connectionID string, status domain.Status) {
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, fmt.Sprintf("%d", status))
	_ = conn.WriteControl(websocket.CloseMessage, message, deadline)
	g.hub.Detach(connectionID)
}

func (g *Gateway) echoBadFrame(connectionID string) {
	payload, err := event.Encode(event.TypeError, event.ErrorValue{Kind: "BadRequest", Message: "malformed frame"})
	if err != nil {
		return
	}
	if pushErr := g.hub.Push(context.Background(), connectionID, payload); pushErr != nil {
		g.log.Debug("bad-frame echo not delivered", "connection_id", connectionID, "error", pushErr)
	}
}
