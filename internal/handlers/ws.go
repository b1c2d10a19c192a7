// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/mixdown-games/encore/internal/middleware"
)

// PartyWSHandler upgrades a player connection and streams party events to
// it: joins, lifecycle changes, leaderboard updates, and reveals. The client
// sends nothing of consequence; the socket exists for server push.
func (s *Server) PartyWSHandler(w http.ResponseWriter, r *http.Request) {
	partyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid party id", http.StatusBadRequest)
		return
	}
	playerID, ok := s.requirePlayer(w, r, partyID)
	if !ok {
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"party"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "party" {
		c.Close(websocket.StatusPolicyViolation, "client must speak the party subprotocol")
		return
	}
	middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	conn := &PartyConnection{
		PlayerID: playerID,
		Cancel:   cancel,
		OutChan:  make(chan map[string]interface{}, 16),
	}
	s.Hub.Register(partyID, conn)
	if err := s.Engine.SetPlayerConnected(ctx, partyID, playerID, true); err != nil {
		s.Log.WithError(err).Warn("failed to mark player connected")
	}

	defer func() {
		cancel()
		s.Hub.Unregister(partyID, conn)
		if err := s.Engine.SetPlayerConnected(context.Background(), partyID, playerID, false); err != nil {
			s.Log.WithError(err).Warn("failed to mark player disconnected")
		}
	}()

	// Writer: pump hub messages to the socket.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-conn.OutChan:
				if !ok {
					return
				}
				if err := wsjson.Write(ctx, c, msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader: drain until the client goes away.
	var readErr error
	for {
		var msg map[string]interface{}
		if readErr = wsjson.Read(ctx, c, &msg); readErr != nil {
			break
		}
	}
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, readErr)
	c.Close(websocket.StatusNormalClosure, "bye")
}
