package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-room-server/internal/adminapi"
	"github.com/park285/chess-room-server/internal/archive"
	appcfg "github.com/park285/chess-room-server/internal/config"
	"github.com/park285/chess-room-server/internal/gateway"
	"github.com/park285/chess-room-server/internal/obslog"
	"github.com/park285/chess-room-server/internal/room"
	"github.com/park285/chess-room-server/internal/rules"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	engine := rules.NewEngine()
	registry := room.NewRegistry(engine)

	var arch *archive.Archive
	if cfg.RedisURL != "" {
		arch, err = archive.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
	}

	gw := gateway.New(registry, arch, cfg.AllowedOrigins, cfg.SendBuffer)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeWS)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		obslog.L().Info("relay_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("relay_listen_error", zap.Error(err))
		}
	}()

	var admin *adminapi.Server
	if cfg.AdminAddr != "" {
		admin = adminapi.NewServer(registry)
		go func() {
			if err := admin.ListenAndServe(cfg.AdminAddr); err != nil {
				obslog.L().Error("admin_listen_error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("relay_shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if admin != nil {
		_ = admin.Shutdown()
	}
	_ = arch.Close()
}
