package party

import (
	"sync"

	"github.com/google/uuid"
)

// partySession is the in-process state for one active party: the lock that
// serializes its writers and the score snapshot frozen at the finale
// transition. Parties are otherwise fully backed by the store.
type partySession struct {
	mu sync.RWMutex

	// frozen holds each player's total at the moment the party entered the
	// finale, used as the movement baseline for later leaderboard reads.
	frozen map[uuid.UUID]float64
}

// SessionStore tracks the per-party sessions, keyed by party ID. Sessions are
// created lazily on first use and dropped when the party completes.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*partySession
}

// NewSessionStore returns an empty session registry.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*partySession)}
}

func (ss *SessionStore) get(partyID uuid.UUID) *partySession {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	sess, ok := ss.sessions[partyID]
	if !ok {
		sess = &partySession{}
		ss.sessions[partyID] = sess
	}
	return sess
}

func (ss *SessionStore) remove(partyID uuid.UUID) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, partyID)
}
