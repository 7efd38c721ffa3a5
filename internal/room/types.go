package room

// Color identifies a seat side. Seat order is fixed: the first occupant is
// White, the second Black.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the session lifecycle state for the current epoch.
type Status string

const (
	StatusWaiting    Status = "WAITING_FOR_PLAYERS"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOver       Status = "OVER"
)

// Reason records why an epoch ended.
type Reason string

const (
	ReasonCheckmate     Reason = "checkmate"
	ReasonStalemate     Reason = "stalemate"
	ReasonResignation   Reason = "resignation"
	ReasonDrawAgreement Reason = "draw-agreement"
	ReasonTimeout       Reason = "timeout"
)

// Outcome is present only while Status is OVER. Winner/Loser are connection
// ids and are empty for drawn outcomes.
type Outcome struct {
	Reason Reason
	Winner string
	Loser  string
}

// Info is a point-in-time snapshot of a session, safe to hand outside the
// session's critical section.
type Info struct {
	RoomID  string            `json:"room"`
	Seats   []string          `json:"seats"`
	Names   map[string]string `json:"names"`
	Status  Status            `json:"status"`
	Turn    Color             `json:"turn"`
	Moves   int               `json:"moves"`
	MoveLog []string          `json:"-"`
	Outcome *Outcome          `json:"-"`
}
