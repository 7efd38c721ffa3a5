package adminapi

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-room-server/internal/obslog"
	"github.com/park285/chess-room-server/internal/room"
)

// Server exposes operational read-only endpoints on a listener separate from
// the game socket: /healthz and /rooms.
type Server struct {
	reg *room.Registry
	srv *fasthttp.Server
}

func NewServer(reg *room.Registry) *Server {
	s := &Server{reg: reg}
	s.srv = &fasthttp.Server{
		Handler: s.handle,
		Name:    "chess-room-server-admin",
	}
	return s
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	obslog.L().Info("admin_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/rooms":
		infos := s.reg.Snapshot()
		body, err := json.Marshal(infos)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
