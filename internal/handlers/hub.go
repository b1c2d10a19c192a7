package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PartyConnection is a single player's live WebSocket presence in a party.
type PartyConnection struct {
	PlayerID uuid.UUID
	Cancel   context.CancelFunc
	OutChan  chan map[string]interface{}
}

// Write pushes a message onto the connection's OutChan non-blockingly,
// dropping it if the channel is closed or full.
func (conn *PartyConnection) Write(log *logrus.Logger, msg map[string]interface{}) {
	select {
	case conn.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.WithFields(logrus.Fields{
			"player_id": conn.PlayerID,
			"msg_type":  msgType,
		}).Warn("OutChan closed or full, dropped message")
	}
}

// Hub tracks live connections per party and fans broadcasts out to them.
type Hub struct {
	mu      sync.Mutex
	parties map[uuid.UUID]map[uuid.UUID]*PartyConnection
	log     *logrus.Logger
}

// NewHub returns an empty Hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		parties: make(map[uuid.UUID]map[uuid.UUID]*PartyConnection),
		log:     log,
	}
}

// Register adds a player's connection, replacing any previous one.
func (h *Hub) Register(partyID uuid.UUID, conn *PartyConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.parties[partyID]
	if !ok {
		conns = make(map[uuid.UUID]*PartyConnection)
		h.parties[partyID] = conns
	}
	if old, ok := conns[conn.PlayerID]; ok {
		old.Cancel()
	}
	conns[conn.PlayerID] = conn
}

// Unregister drops a player's connection if it is still the registered one.
func (h *Hub) Unregister(partyID uuid.UUID, conn *PartyConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.parties[partyID]; ok {
		if cur, ok := conns[conn.PlayerID]; ok && cur == conn {
			delete(conns, conn.PlayerID)
		}
		if len(conns) == 0 {
			delete(h.parties, partyID)
		}
	}
}

// Broadcast sends a message to every connection in the party.
func (h *Hub) Broadcast(partyID uuid.UUID, msg map[string]interface{}) {
	h.mu.Lock()
	conns := make([]*PartyConnection, 0, len(h.parties[partyID]))
	for _, conn := range h.parties[partyID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Write(h.log, msg)
	}
}
