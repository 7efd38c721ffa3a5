package rules

import (
	"math/rand/v2"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Terminal classifies the position reached after a move.
type Terminal string

const (
	TerminalNone      Terminal = "none"
	TerminalCheckmate Terminal = "checkmate"
	TerminalStalemate Terminal = "stalemate"
)

// MoveOutcome is what the coordinator learns from an accepted move. Position
// is an opaque token from its point of view; it only stores and forwards it.
type MoveOutcome struct {
	Position   string
	SideToMove string // "white" | "black"
	Terminal   Terminal
}

// Engine validates moves and produces position transitions. The session
// coordinator performs no legality reasoning of its own.
type Engine interface {
	// ApplyMove applies notation (UCI or SAN) to the position. ok=false
	// means the move was rejected and the outcome carries no information.
	ApplyMove(position, notation string) (MoveOutcome, bool)
	// LegalMoves enumerates every legal move from the position in UCI.
	LegalMoves(position string) []string
	// InitialPosition returns the standard start position.
	InitialPosition() string
}

type chessEngine struct{}

// NewEngine returns the corentings/chess backed engine.
func NewEngine() Engine { return chessEngine{} }

func (chessEngine) InitialPosition() string {
	return nchess.NewGame().FEN()
}

func (chessEngine) ApplyMove(position, notation string) (MoveOutcome, bool) {
	game := gameFrom(position)
	if game == nil {
		return MoveOutcome{}, false
	}
	raw := strings.TrimSpace(notation)
	if raw == "" {
		return MoveOutcome{}, false
	}

	// UCI first, SAN as fallback, like the bot command parser.
	pos := game.Position()
	if mv, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(raw)); err == nil {
		game.Move(mv, nil)
	} else if err := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
		return MoveOutcome{}, false
	}

	out := MoveOutcome{
		Position:   game.FEN(),
		SideToMove: sideName(game.Position().Turn()),
		Terminal:   TerminalNone,
	}
	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		out.Terminal = TerminalCheckmate
	case nchess.Draw:
		// only a dead side-to-move is stalemate; other draws (repetition,
		// insufficient material) are not terminal for the relay
		if len(game.ValidMoves()) == 0 {
			out.Terminal = TerminalStalemate
		}
	}
	return out, true
}

func (chessEngine) LegalMoves(position string) []string {
	game := gameFrom(position)
	if game == nil {
		return nil
	}
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, mv.String())
	}
	return out
}

// RandomMove picks a uniform-random legal move for the automated opponent.
// ok=false when the position has no legal moves.
func RandomMove(e Engine, position string) (string, bool) {
	moves := e.LegalMoves(position)
	if len(moves) == 0 {
		return "", false
	}
	return moves[rand.IntN(len(moves))], true
}

func gameFrom(position string) *nchess.Game {
	fen := strings.TrimSpace(position)
	if fen == "" {
		return nchess.NewGame()
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil
	}
	return nchess.NewGame(opt)
}

func sideName(c nchess.Color) string {
	if c == nchess.White {
		return "white"
	}
	return "black"
}
