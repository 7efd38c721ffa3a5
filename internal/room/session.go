package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-room-server/internal/obslog"
	"github.com/park285/chess-room-server/internal/rules"
	"github.com/park285/chess-room-server/pkg/relaydto"
)

// Outbound is an event plus the exact connection ids it must reach. The
// session decides recipients; the gateway only delivers.
type Outbound struct {
	To    []string
	Event relaydto.Event
}

// Session is the authoritative state machine for one room. Every operation
// runs under mu for its full duration, rules call included, so concurrent
// moves, resignations and disconnects against the same room apply in a total
// order. Distinct rooms never contend.
type Session struct {
	mu sync.Mutex

	roomID string
	engine rules.Engine

	seats    []string // conn ids; index 0 = White, index 1 = Black
	names    map[string]string
	position string
	moveLog  []string
	turn     Color
	status   Status
	outcome  *Outcome

	pendingDrawOffer string // offering conn id, "" when none
}

func newSession(roomID string, engine rules.Engine) *Session {
	return &Session{
		roomID:   roomID,
		engine:   engine,
		names:    make(map[string]string),
		position: engine.InitialPosition(),
		turn:     White,
		status:   StatusWaiting,
	}
}

// Join seats the connection or re-delivers the current snapshot when it is
// already seated. The returned bool reports whether connID holds a seat
// after the call.
func (s *Session) Join(connID, displayName string) ([]Outbound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seatIndex(connID) >= 0 {
		// Re-delivery only, no mutation.
		return []Outbound{s.joinedSnapshotLocked(connID)}, true
	}
	if len(s.seats) >= 2 {
		return []Outbound{{
			To:    []string{connID},
			Event: relaydto.Event{Type: relaydto.EventJoinRejected, Payload: &relaydto.JoinRejected{Reason: relaydto.RoomFull}},
		}}, false
	}

	s.seats = append(s.seats, connID)
	s.names[connID] = displayName

	events := []Outbound{
		s.joinedSnapshotLocked(connID),
		s.seatUpdateLocked(s.seats...),
	}
	if len(s.seats) == 2 && s.status == StatusWaiting {
		s.status = StatusInProgress
		events = append(events, Outbound{
			To:    s.members(),
			Event: relaydto.Event{Type: relaydto.EventGameStarted, Payload: &relaydto.GameStarted{Position: s.position}},
		})
		obslog.L().Info("room_game_start", zap.String("room", s.roomID), zap.Strings("seats", s.seats))
	}
	obslog.L().Info("room_join",
		zap.String("room", s.roomID),
		zap.String("conn", connID),
		zap.Int("seats", len(s.seats)),
	)
	return events, true
}

// Move applies notation for connID. Out-of-turn, not-seated, not-in-progress
// and rule-rejected moves are dropped with no mutation and no broadcast.
func (s *Session) Move(connID, notation string) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return nil
	}
	idx := s.seatIndex(connID)
	if idx < 0 {
		obslog.L().Debug("room_move_drop", zap.String("room", s.roomID), zap.String("conn", connID), zap.String("why", "not_seated"))
		return nil
	}
	if seatColor(idx) != s.turn {
		obslog.L().Debug("room_move_drop", zap.String("room", s.roomID), zap.String("conn", connID), zap.String("why", "out_of_turn"))
		return nil
	}

	out, ok := s.engine.ApplyMove(s.position, notation)
	if !ok {
		obslog.L().Debug("room_move_drop", zap.String("room", s.roomID), zap.String("conn", connID), zap.String("why", "illegal"))
		return nil
	}

	mover := s.turn
	s.moveLog = append(s.moveLog, notation)
	s.position = out.Position
	s.turn = Color(out.SideToMove)

	events := []Outbound{{
		To:    s.members(),
		Event: relaydto.Event{Type: relaydto.EventMoveAccepted, Payload: &relaydto.MoveAccepted{Notation: notation, Turn: string(s.turn)}},
	}}

	switch out.Terminal {
	case rules.TerminalCheckmate:
		s.setOverLocked(Outcome{Reason: ReasonCheckmate, Winner: connID, Loser: s.seatByColor(mover.Other())})
		events = append(events, s.gameOverLocked())
	case rules.TerminalStalemate:
		s.setOverLocked(Outcome{Reason: ReasonStalemate})
		events = append(events, s.gameOverLocked())
	}
	obslog.L().Info("room_move",
		zap.String("room", s.roomID),
		zap.String("conn", connID),
		zap.String("notation", notation),
		zap.String("turn", string(s.turn)),
		zap.Int("ply", len(s.moveLog)),
	)
	return events
}

// Resign ends the epoch in favor of the other seat. No-op when connID is not
// seated or the game is already over.
func (s *Session) Resign(connID string) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(connID)
	if idx < 0 || s.status == StatusOver {
		return nil
	}
	s.setOverLocked(Outcome{
		Reason: ReasonResignation,
		Winner: s.seatByColor(seatColor(idx).Other()),
		Loser:  connID,
	})
	obslog.L().Info("room_resign", zap.String("room", s.roomID), zap.String("conn", connID))
	return []Outbound{s.gameOverLocked()}
}

// OfferDraw records a pending offer and notifies only the other seat.
func (s *Session) OfferDraw(connID string) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seatIndex(connID) < 0 || s.status != StatusInProgress || s.pendingDrawOffer != "" {
		return nil
	}
	s.pendingDrawOffer = connID
	obslog.L().Info("room_draw_offer", zap.String("room", s.roomID), zap.String("conn", connID))

	other := s.otherSeat(connID)
	if other == "" {
		return nil
	}
	return []Outbound{{
		To:    []string{other},
		Event: relaydto.Event{Type: relaydto.EventDrawOffered, Payload: &relaydto.DrawOffered{From: connID}},
	}}
}

// DrawResponse settles a pending offer. The offer is cleared regardless of
// the answer; acceptance ends the epoch with no winner.
func (s *Session) DrawResponse(connID string, accepted bool) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seatIndex(connID) < 0 || s.pendingDrawOffer == "" {
		return nil
	}
	s.pendingDrawOffer = ""
	if accepted {
		s.setOverLocked(Outcome{Reason: ReasonDrawAgreement})
		obslog.L().Info("room_draw_agree", zap.String("room", s.roomID), zap.String("conn", connID))
		return []Outbound{s.gameOverLocked()}
	}
	obslog.L().Info("room_draw_decline", zap.String("room", s.roomID), zap.String("conn", connID))
	return []Outbound{{
		To:    s.members(),
		Event: relaydto.Event{Type: relaydto.EventDrawDeclined},
	}}
}

// Rematch starts a new epoch: fresh position, empty move log, White to move.
// Seats and names persist. Callable by any seated connection in any status;
// with a vacant seat it reverts to WaitingForPlayers instead of starting.
func (s *Session) Rematch(connID string) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seatIndex(connID) < 0 {
		return nil
	}
	s.moveLog = nil
	s.turn = White
	s.outcome = nil
	s.pendingDrawOffer = ""
	s.position = s.engine.InitialPosition()
	if len(s.seats) == 2 {
		s.status = StatusInProgress
	} else {
		s.status = StatusWaiting
	}
	obslog.L().Info("room_rematch", zap.String("room", s.roomID), zap.String("status", string(s.status)))

	return []Outbound{{
		To: s.members(),
		Event: relaydto.Event{Type: relaydto.EventRematchStarted, Payload: &relaydto.RematchStarted{
			Position: s.position,
			MoveLog:  []string{},
			Turn:     string(s.turn),
			Seats:    append([]string(nil), s.seats...),
			Names:    s.namesCopy(),
		}},
	}}
}

// Leave vacates connID's seat, if any. Status and outcome are untouched: an
// in-progress game with a departed seat simply has no legal mover on that
// side. The returned bool reports whether the room is now empty.
func (s *Session) Leave(connID string) ([]Outbound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.seatIndex(connID)
	if idx < 0 {
		return nil, len(s.seats) == 0
	}
	s.seats = append(s.seats[:idx], s.seats[idx+1:]...)
	delete(s.names, connID)
	obslog.L().Info("room_leave",
		zap.String("room", s.roomID),
		zap.String("conn", connID),
		zap.Int("seats", len(s.seats)),
	)
	if len(s.seats) == 0 {
		return nil, true
	}
	return []Outbound{s.seatUpdateLocked(s.seats...)}, false
}

// Timeout settles a flag fall reported from outside the coordinator; the
// relay itself runs no clock.
func (s *Session) Timeout(loser Color) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return nil
	}
	s.setOverLocked(Outcome{
		Reason: ReasonTimeout,
		Winner: s.seatByColor(loser.Other()),
		Loser:  s.seatByColor(loser),
	})
	obslog.L().Info("room_timeout", zap.String("room", s.roomID), zap.String("loser", string(loser)))
	return []Outbound{s.gameOverLocked()}
}

// Empty reports whether no seat is occupied.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats) == 0
}

// Info snapshots the session for the admin surface and result records.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *Outcome
	if s.outcome != nil {
		cp := *s.outcome
		out = &cp
	}
	return Info{
		RoomID:  s.roomID,
		Seats:   append([]string(nil), s.seats...),
		Names:   s.namesCopy(),
		Status:  s.status,
		Turn:    s.turn,
		Moves:   len(s.moveLog),
		MoveLog: append([]string(nil), s.moveLog...),
		Outcome: out,
	}
}

// internals; callers hold mu

func (s *Session) seatIndex(connID string) int {
	for i, id := range s.seats {
		if id == connID {
			return i
		}
	}
	return -1
}

func seatColor(idx int) Color {
	if idx == 0 {
		return White
	}
	return Black
}

func (s *Session) seatByColor(c Color) string {
	idx := 0
	if c == Black {
		idx = 1
	}
	if idx >= len(s.seats) {
		return ""
	}
	return s.seats[idx]
}

func (s *Session) otherSeat(connID string) string {
	for _, id := range s.seats {
		if id != connID {
			return id
		}
	}
	return ""
}

func (s *Session) members() []string {
	return append([]string(nil), s.seats...)
}

func (s *Session) namesCopy() map[string]string {
	cp := make(map[string]string, len(s.names))
	for k, v := range s.names {
		cp[k] = v
	}
	return cp
}

func (s *Session) setOverLocked(o Outcome) {
	s.status = StatusOver
	s.outcome = &o
	s.pendingDrawOffer = ""
}

func (s *Session) joinedSnapshotLocked(connID string) Outbound {
	return Outbound{
		To: []string{connID},
		Event: relaydto.Event{Type: relaydto.EventJoined, Payload: &relaydto.Joined{
			Room:     s.roomID,
			Position: s.position,
			MoveLog:  append([]string{}, s.moveLog...),
			Seat:     string(seatColor(s.seatIndex(connID))),
			Turn:     string(s.turn),
			Seats:    append([]string(nil), s.seats...),
			Names:    s.namesCopy(),
		}},
	}
}

func (s *Session) seatUpdateLocked(to ...string) Outbound {
	return Outbound{
		To: append([]string(nil), to...),
		Event: relaydto.Event{Type: relaydto.EventSeatUpdate, Payload: &relaydto.SeatUpdate{
			Count: len(s.seats),
			Names: s.namesCopy(),
		}},
	}
}

func (s *Session) gameOverLocked() Outbound {
	o := s.outcome
	return Outbound{
		To: s.members(),
		Event: relaydto.Event{Type: relaydto.EventGameOver, Payload: &relaydto.GameOver{
			Reason: string(o.Reason),
			Winner: o.Winner,
			Loser:  o.Loser,
		}},
	}
}
