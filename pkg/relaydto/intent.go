package relaydto

// IntentType names a client → server command.
type IntentType string

const (
	IntentJoin         IntentType = "join"
	IntentMove         IntentType = "move"
	IntentResign       IntentType = "resign"
	IntentOfferDraw    IntentType = "offerDraw"
	IntentDrawResponse IntentType = "drawResponse"
	IntentRematch      IntentType = "rematch"
)

// Intent is the single inbound frame shape. Every intent is tagged with the
// room it targets; fields beyond Room are populated per type.
type Intent struct {
	Type IntentType `json:"type"`
	Room string     `json:"room"`

	// join
	Name string `json:"name,omitempty"`

	// move
	Notation string `json:"notation,omitempty"`

	// drawResponse
	Accepted bool `json:"accepted,omitempty"`
}
