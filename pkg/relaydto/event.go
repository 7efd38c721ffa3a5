package relaydto

// EventType names a server → client notification.
type EventType string

const (
	EventJoined         EventType = "joined"
	EventSeatUpdate     EventType = "seatUpdate"
	EventGameStarted    EventType = "gameStarted"
	EventMoveAccepted   EventType = "moveAccepted"
	EventJoinRejected   EventType = "joinRejected"
	EventDrawOffered    EventType = "drawOffered"
	EventDrawDeclined   EventType = "drawDeclined"
	EventGameOver       EventType = "gameOver"
	EventRematchStarted EventType = "rematchStarted"
)

// Event is the outbound envelope. Payload is one of the structs below,
// matching Type; it is omitted for payload-free events.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Joined is unicast to a connection that has taken (or re-requested) a seat.
type Joined struct {
	Room     string            `json:"room"`
	Position string            `json:"position"`
	MoveLog  []string          `json:"moveLog"`
	Seat     string            `json:"seat"` // "white" | "black"
	Turn     string            `json:"turn"`
	Seats    []string          `json:"seats"` // connection ids in seat order
	Names    map[string]string `json:"names"`
}

// SeatUpdate is broadcast whenever room occupancy or the name map changes.
type SeatUpdate struct {
	Count int               `json:"count"`
	Names map[string]string `json:"names"`
}

type GameStarted struct {
	Position string `json:"position"`
}

type MoveAccepted struct {
	Notation string `json:"notation"`
	Turn     string `json:"turn"` // side to move after the move
}

type JoinRejected struct {
	Reason string `json:"reason"`
}

type DrawOffered struct {
	From string `json:"from"`
}

// GameOver reports the terminal outcome of the current epoch. Winner and
// Loser are connection ids and are empty for drawn outcomes.
type GameOver struct {
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
	Loser  string `json:"loser,omitempty"`
}

type RematchStarted struct {
	Position string            `json:"position"`
	MoveLog  []string          `json:"moveLog"`
	Turn     string            `json:"turn"`
	Seats    []string          `json:"seats"`
	Names    map[string]string `json:"names"`
}

// RoomFull is the only join rejection reason the relay emits.
const RoomFull = "RoomFull"
