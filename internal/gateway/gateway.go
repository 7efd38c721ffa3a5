package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-room-server/internal/archive"
	"github.com/park285/chess-room-server/internal/obslog"
	"github.com/park285/chess-room-server/internal/room"
	"github.com/park285/chess-room-server/pkg/relaydto"
)

const pingInterval = 15 * time.Second

// Gateway binds websocket connections to room memberships, routes inbound
// intents to the owning session and fans session events out to their
// recipients. Recipient sets come from the session; the gateway only
// delivers. Sends are fire-and-forget: a slow receiver's full buffer drops
// frames rather than blocking the room.
type Gateway struct {
	reg     *room.Registry
	arch    *archive.Archive // nil when no archive is configured
	origins map[string]bool
	sendBuf int

	mu    sync.RWMutex
	conns map[string]*conn
}

type conn struct {
	id   string
	send chan []byte

	mu    sync.Mutex
	rooms map[string]struct{}
}

func New(reg *room.Registry, arch *archive.Archive, allowedOrigins []string, sendBuf int) *Gateway {
	origins := map[string]bool{}
	for _, o := range allowedOrigins {
		if o != "" {
			origins[o] = true
		}
	}
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &Gateway{
		reg:     reg,
		arch:    arch,
		origins: origins,
		sendBuf: sendBuf,
		conns:   make(map[string]*conn),
	}
}

// ServeWS upgrades the request and runs the connection's read loop until the
// transport closes. Each connection's identity is a fresh uuid; there is no
// reconnection to a previous seat.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && len(g.origins) > 0 && !g.origins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}

	c := &conn{
		id:    uuid.NewString(),
		send:  make(chan []byte, g.sendBuf),
		rooms: make(map[string]struct{}),
	}
	g.register(c)
	obslog.L().Info("conn_open", zap.String("conn", c.id))

	// writer
	go func() {
		ping := time.NewTicker(pingInterval)
		defer func() {
			ping.Stop()
			_ = ws.Close(websocket.StatusNormalClosure, "bye")
		}()
		for {
			select {
			case frame, ok := <-c.send:
				if !ok {
					return
				}
				_ = ws.Write(r.Context(), websocket.MessageText, frame)
			case <-ping.C:
				_ = ws.Ping(r.Context())
			}
		}
	}()

	// reader
	for {
		var intent relaydto.Intent
		if err := wsjson.Read(r.Context(), ws, &intent); err != nil {
			break
		}
		g.dispatch(c, &intent)
	}

	g.disconnect(c)
	obslog.L().Info("conn_close", zap.String("conn", c.id))
}

// dispatch routes one intent to the session owning its room. Operations
// naming an unknown room, apart from join, are no-ops.
func (g *Gateway) dispatch(c *conn, in *relaydto.Intent) {
	if in.Room == "" {
		return
	}

	if in.Type == relaydto.IntentJoin {
		sess := g.reg.GetOrCreate(in.Room)
		events, seated := sess.Join(c.id, in.Name)
		if seated {
			c.mu.Lock()
			c.rooms[in.Room] = struct{}{}
			c.mu.Unlock()
		}
		g.deliver(events)
		return
	}

	sess := g.reg.Lookup(in.Room)
	if sess == nil {
		obslog.L().Debug("intent_drop", zap.String("conn", c.id), zap.String("room", in.Room), zap.String("why", "unknown_room"))
		return
	}

	var events []room.Outbound
	switch in.Type {
	case relaydto.IntentMove:
		events = sess.Move(c.id, in.Notation)
	case relaydto.IntentResign:
		events = sess.Resign(c.id)
	case relaydto.IntentOfferDraw:
		events = sess.OfferDraw(c.id)
	case relaydto.IntentDrawResponse:
		events = sess.DrawResponse(c.id, in.Accepted)
	case relaydto.IntentRematch:
		events = sess.Rematch(c.id)
	default:
		obslog.L().Debug("intent_drop", zap.String("conn", c.id), zap.String("type", string(in.Type)), zap.String("why", "unknown_type"))
		return
	}
	g.deliver(events)
	g.maybeArchive(in.Room, sess, events)
}

// disconnect vacates every membership. Leave runs through the same per-room
// critical section as any in-flight move, so a move can never be accepted
// for a seat that has just been emptied.
func (g *Gateway) disconnect(c *conn) {
	c.mu.Lock()
	memberships := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		memberships = append(memberships, id)
	}
	c.rooms = make(map[string]struct{})
	c.mu.Unlock()

	for _, roomID := range memberships {
		sess := g.reg.Lookup(roomID)
		if sess == nil {
			continue
		}
		events, empty := sess.Leave(c.id)
		g.deliver(events)
		if empty {
			g.reg.RemoveIfEmpty(roomID)
		}
	}
	g.unregister(c)
}

// deliver encodes each event once and pushes it to every recipient's send
// buffer, dropping on overflow.
func (g *Gateway) deliver(events []room.Outbound) {
	for _, ev := range events {
		frame, err := json.Marshal(ev.Event)
		if err != nil {
			continue
		}
		g.mu.RLock()
		for _, id := range ev.To {
			c, ok := g.conns[id]
			if !ok {
				continue
			}
			select {
			case c.send <- frame:
			default:
				obslog.L().Warn("send_drop", zap.String("conn", id), zap.String("event", string(ev.Event.Type)))
			}
		}
		g.mu.RUnlock()
	}
}

// maybeArchive records the finished epoch when the op emitted gameOver.
func (g *Gateway) maybeArchive(roomID string, sess *room.Session, events []room.Outbound) {
	if g.arch == nil {
		return
	}
	for _, ev := range events {
		over, ok := ev.Event.Payload.(*relaydto.GameOver)
		if !ok || ev.Event.Type != relaydto.EventGameOver {
			continue
		}
		info := sess.Info()
		rec := &archive.Result{
			Room:       roomID,
			Reason:     over.Reason,
			Winner:     over.Winner,
			Loser:      over.Loser,
			Names:      info.Names,
			Moves:      info.MoveLog,
			FinishedAt: time.Now(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = g.arch.SaveResult(ctx, rec)
		}()
		return
	}
}

func (g *Gateway) register(c *conn) {
	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()
}

func (g *Gateway) unregister(c *conn) {
	g.mu.Lock()
	if _, ok := g.conns[c.id]; ok {
		delete(g.conns, c.id)
		close(c.send)
	}
	g.mu.Unlock()
}
