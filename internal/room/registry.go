package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-room-server/internal/obslog"
	"github.com/park285/chess-room-server/internal/rules"
)

// Registry is the process-wide room id → session map. Its lock guards only
// the map itself, never a session's internals, so create/lookup/remove never
// contend with in-flight game operations.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Session
	engine rules.Engine
}

func NewRegistry(engine rules.Engine) *Registry {
	return &Registry{
		rooms:  make(map[string]*Session),
		engine: engine,
	}
}

// GetOrCreate returns the session for roomID, creating it in
// WaitingForPlayers when absent. Idempotent under concurrent first-joins:
// the race loser receives the winner's session.
func (r *Registry) GetOrCreate(roomID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rooms[roomID]; ok {
		return s
	}
	s := newSession(roomID, r.engine)
	r.rooms[roomID] = s
	obslog.L().Info("registry_create", zap.String("room", roomID), zap.Int("rooms", len(r.rooms)))
	return s
}

// Lookup returns the session for roomID or nil. Unknown rooms make every
// non-join operation a no-op.
func (r *Registry) Lookup(roomID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID]
}

// RemoveIfEmpty deletes the entry iff every seat is vacant. Invoked after
// each leave.
func (r *Registry) RemoveIfEmpty(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rooms[roomID]
	if !ok || !s.Empty() {
		return
	}
	delete(r.rooms, roomID)
	obslog.L().Info("registry_destroy", zap.String("room", roomID), zap.Int("rooms", len(r.rooms)))
}

// Snapshot lists every live room for the admin surface.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.rooms))
	for _, s := range r.rooms {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}
