package rules

import (
	"strings"
	"testing"
)

func TestInitialPosition(t *testing.T) {
	e := NewEngine()
	fen := e.InitialPosition()
	if !strings.HasPrefix(fen, "rnbqkbnr/pppppppp/") {
		t.Fatalf("unexpected start position: %s", fen)
	}
	if !strings.Contains(fen, " w ") {
		t.Fatalf("white must move first: %s", fen)
	}
}

func TestApplyMoveUCIAndSAN(t *testing.T) {
	e := NewEngine()
	start := e.InitialPosition()

	out, ok := e.ApplyMove(start, "e2e4")
	if !ok {
		t.Fatalf("e2e4 rejected")
	}
	if out.SideToMove != "black" {
		t.Fatalf("side to move after e4: %s", out.SideToMove)
	}
	if out.Terminal != TerminalNone {
		t.Fatalf("opening move reported terminal=%s", out.Terminal)
	}

	// SAN fallback
	out2, ok := e.ApplyMove(out.Position, "Nf6")
	if !ok {
		t.Fatalf("SAN Nf6 rejected")
	}
	if out2.SideToMove != "white" {
		t.Fatalf("side to move after Nf6: %s", out2.SideToMove)
	}
}

func TestApplyMoveRejections(t *testing.T) {
	e := NewEngine()
	start := e.InitialPosition()

	for _, bad := range []string{"", "   ", "e2e5", "e7e5", "Qh5", "zzzz"} {
		if _, ok := e.ApplyMove(start, bad); ok {
			t.Fatalf("notation %q should be rejected from the start position", bad)
		}
	}
	if _, ok := e.ApplyMove("not a fen", "e2e4"); ok {
		t.Fatalf("garbage position must be rejected")
	}
}

func TestCheckmateDetection(t *testing.T) {
	e := NewEngine()
	pos := e.InitialPosition()

	var out MoveOutcome
	var ok bool
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		out, ok = e.ApplyMove(pos, mv)
		if !ok {
			t.Fatalf("move %s rejected", mv)
		}
		pos = out.Position
	}
	if out.Terminal != TerminalCheckmate {
		t.Fatalf("fool's mate not reported: %s", out.Terminal)
	}
}

func TestStalemateDetection(t *testing.T) {
	e := NewEngine()
	// white queen to c7 leaves the black king on a8 with no move and no check
	out, ok := e.ApplyMove("k7/8/1Q6/8/8/8/8/7K w - - 0 1", "b6c7")
	if !ok {
		t.Fatalf("b6c7 rejected")
	}
	if out.Terminal != TerminalStalemate {
		t.Fatalf("stalemate not reported: %s", out.Terminal)
	}
}

func TestLegalMovesFromStart(t *testing.T) {
	e := NewEngine()
	moves := e.LegalMoves(e.InitialPosition())
	if len(moves) != 20 {
		t.Fatalf("start position has 20 legal moves, got %d", len(moves))
	}
}

func TestRandomMove(t *testing.T) {
	e := NewEngine()
	start := e.InitialPosition()
	legal := map[string]bool{}
	for _, mv := range e.LegalMoves(start) {
		legal[mv] = true
	}

	for range 10 {
		mv, ok := RandomMove(e, start)
		if !ok {
			t.Fatalf("no move from start position")
		}
		if !legal[mv] {
			t.Fatalf("RandomMove picked an illegal move: %s", mv)
		}
		if _, ok := e.ApplyMove(start, mv); !ok {
			t.Fatalf("engine rejected its own enumeration: %s", mv)
		}
	}

	// no moves in a finished position
	out, _ := e.ApplyMove("k7/8/1Q6/8/8/8/8/7K w - - 0 1", "b6c7")
	if _, ok := RandomMove(e, out.Position); ok {
		t.Fatalf("stalemated side has no legal move")
	}
}
