package service

import (
	"sort"
	"sync"
	"time"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"

	"github.com/rs/zerolog"
)

type sessionEntry struct {
	conn        ports.SessionConn
	keys        map[string]struct{}
	connectedAt time.Time
}

// SessionRegistry implements ports.SessionRegistry. One room exists per
// subscription key and holds the sessions that joined it.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	rooms    map[string]map[string]ports.SessionConn

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(m *metrics.Metrics, log zerolog.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		rooms:    make(map[string]map[string]ports.SessionConn),
		metrics:  m,
		log:      log,
	}
}

// Connect registers a session with no rooms.
func (r *SessionRegistry) Connect(conn ports.SessionConn) {
	id := conn.SessionID()

	r.mu.Lock()
	if old, ok := r.sessions[id]; ok {
		r.removeLocked(id, old)
	} else {
		r.metrics.SessionOpened()
	}
	r.sessions[id] = &sessionEntry{
		conn:        conn,
		keys:        make(map[string]struct{}),
		connectedAt: time.Now().UTC(),
	}
	r.mu.Unlock()

	r.log.Debug().Str("session_id", id).Msg("session connected")
}

// Join adds the session to each key's room and returns all rooms it is in.
func (r *SessionRegistry) Join(sessionID string, keys []string) ([]string, error) {
	keys = domain.NormalizeKeys(keys...)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionClosed
	}
	for _, k := range keys {
		s.keys[k] = struct{}{}
		room, ok := r.rooms[k]
		if !ok {
			room = make(map[string]ports.SessionConn)
			r.rooms[k] = room
		}
		room[sessionID] = s.conn
	}

	if len(keys) > 0 {
		r.log.Info().Str("session_id", sessionID).Strs("keys", keys).Msg("session joined")
	}
	return sortedKeys(s.keys), nil
}

// Leave removes the session from each key's room and returns the rooms it
// is still in. Leaving a room the session is not in is a no-op.
func (r *SessionRegistry) Leave(sessionID string, keys []string) ([]string, error) {
	keys = domain.NormalizeKeys(keys...)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionClosed
	}
	for _, k := range keys {
		delete(s.keys, k)
		r.leaveRoomLocked(k, sessionID)
	}
	return sortedKeys(s.keys), nil
}

// Disconnect drops the session and every membership it held.
func (r *SessionRegistry) Disconnect(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		r.removeLocked(sessionID, s)
		delete(r.sessions, sessionID)
		r.metrics.SessionClosed()
	}
	r.mu.Unlock()

	if ok {
		r.log.Debug().Str("session_id", sessionID).Msg("session disconnected")
	}
}

// Members returns a snapshot of the sessions in key's room.
func (r *SessionRegistry) Members(key string) []ports.SessionConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[key]
	out := make([]ports.SessionConn, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every connected session.
func (r *SessionRegistry) All() []ports.SessionConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.SessionConn, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.conn)
	}
	return out
}

// Session returns a copy of the session's state.
func (r *SessionRegistry) Session(sessionID string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return &domain.Session{
		ID:          sessionID,
		JoinedKeys:  sortedKeys(s.keys),
		ConnectedAt: s.connectedAt,
	}, true
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) removeLocked(sessionID string, s *sessionEntry) {
	for k := range s.keys {
		r.leaveRoomLocked(k, sessionID)
	}
}

func (r *SessionRegistry) leaveRoomLocked(key, sessionID string) {
	room, ok := r.rooms[key]
	if !ok {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, key)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
