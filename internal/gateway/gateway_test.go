package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-room-server/internal/room"
	"github.com/park285/chess-room-server/internal/rules"
	"github.com/park285/chess-room-server/pkg/relaydto"
)

func newTestGateway() *Gateway {
	return New(room.NewRegistry(rules.NewEngine()), nil, nil, 16)
}

func attach(g *Gateway, id string) *conn {
	c := &conn{
		id:    id,
		send:  make(chan []byte, 16),
		rooms: make(map[string]struct{}),
	}
	g.register(c)
	return c
}

func drain(t *testing.T, c *conn) []relaydto.Event {
	t.Helper()
	var out []relaydto.Event
	for {
		select {
		case frame := <-c.send:
			var ev relaydto.Event
			require.NoError(t, json.Unmarshal(frame, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(events []relaydto.Event) []relaydto.EventType {
	out := make([]relaydto.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestJoinFlowFansOut(t *testing.T) {
	g := newTestGateway()
	a := attach(g, "a")
	b := attach(g, "b")

	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	got := types(drain(t, a))
	assert.Equal(t, []relaydto.EventType{relaydto.EventJoined, relaydto.EventSeatUpdate}, got)

	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	assert.Equal(t,
		[]relaydto.EventType{relaydto.EventJoined, relaydto.EventSeatUpdate, relaydto.EventGameStarted},
		types(drain(t, b)))
	// the seated member sees the occupancy change and the start
	assert.Equal(t,
		[]relaydto.EventType{relaydto.EventSeatUpdate, relaydto.EventGameStarted},
		types(drain(t, a)))
}

func TestRoomFullUnicast(t *testing.T) {
	g := newTestGateway()
	a := attach(g, "a")
	b := attach(g, "b")
	c := attach(g, "c")

	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	drain(t, a)
	drain(t, b)

	g.dispatch(c, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Cy"})
	got := drain(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, relaydto.EventJoinRejected, got[0].Type)
	// nobody else hears about the rejection
	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))
}

func TestMoveRoutingAndBroadcast(t *testing.T) {
	g := newTestGateway()
	a := attach(g, "a")
	b := attach(g, "b")
	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	drain(t, a)
	drain(t, b)

	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentMove, Room: "r1", Notation: "e2e4"})
	for _, c := range []*conn{a, b} {
		got := drain(t, c)
		require.Len(t, got, 1, "conn %s", c.id)
		assert.Equal(t, relaydto.EventMoveAccepted, got[0].Type)
	}

	// intents against rooms the session doesn't know are silent no-ops
	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentMove, Room: "nope", Notation: "e7e5"})
	assert.Empty(t, drain(t, a))
}

func TestDisconnectLeavesAndReclaims(t *testing.T) {
	g := newTestGateway()
	a := attach(g, "a")
	b := attach(g, "b")
	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	drain(t, a)
	drain(t, b)

	g.disconnect(a)
	got := drain(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, relaydto.EventSeatUpdate, got[0].Type)
	require.NotNil(t, g.reg.Lookup("r1"), "room with one seat must survive")

	g.disconnect(b)
	assert.Nil(t, g.reg.Lookup("r1"), "vacated room must be destroyed")
}

func TestResignAndRematchRouting(t *testing.T) {
	g := newTestGateway()
	a := attach(g, "a")
	b := attach(g, "b")
	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	drain(t, a)
	drain(t, b)

	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentResign, Room: "r1"})
	got := drain(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, relaydto.EventGameOver, got[0].Type)

	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentRematch, Room: "r1"})
	got = drain(t, a)
	require.Len(t, got, 2) // gameOver from the resign, then the reset
	assert.Equal(t, relaydto.EventRematchStarted, got[1].Type)
}

func TestDrawNegotiationRouting(t *testing.T) {
	g := newTestGateway()
	a := attach(g, "a")
	b := attach(g, "b")
	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	drain(t, a)
	drain(t, b)

	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentOfferDraw, Room: "r1"})
	assert.Empty(t, drain(t, a), "offerer hears nothing")
	got := drain(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, relaydto.EventDrawOffered, got[0].Type)

	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentDrawResponse, Room: "r1", Accepted: false})
	assert.Equal(t, []relaydto.EventType{relaydto.EventDrawDeclined}, types(drain(t, a)))
	assert.Equal(t, []relaydto.EventType{relaydto.EventDrawDeclined}, types(drain(t, b)))
}

func TestFullSendBufferDropsInsteadOfBlocking(t *testing.T) {
	g := New(room.NewRegistry(rules.NewEngine()), nil, nil, 1)
	a := attach(g, "a")
	a.send = make(chan []byte, 1)
	b := attach(g, "b")

	g.dispatch(a, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Ann"})
	// a's single-slot buffer now holds the joined snapshot; everything else
	// addressed to it must be dropped without stalling b's delivery
	g.dispatch(b, &relaydto.Intent{Type: relaydto.IntentJoin, Room: "r1", Name: "Bo"})
	got := types(drain(t, b))
	assert.Equal(t,
		[]relaydto.EventType{relaydto.EventJoined, relaydto.EventSeatUpdate, relaydto.EventGameStarted},
		got)
}
