// Package main provides the relay server binary: the realtime
// multiplayer session server that accepts game WebSocket connections,
// groups players into capacity-bounded sessions, and relays traffic
// among session members.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/blockforge/relay/internal/config"
	"github.com/blockforge/relay/internal/game/protocol"
	"github.com/blockforge/relay/internal/game/ratelimit"
	"github.com/blockforge/relay/internal/game/session"
	"github.com/blockforge/relay/internal/gateway"
	"github.com/blockforge/relay/internal/httpapi"
	"github.com/blockforge/relay/internal/liveness"
	"github.com/blockforge/relay/internal/observability"
	"github.com/blockforge/relay/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty uses built-in defaults")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	rates := ratelimit.Rates{
		protocol.TypePositionUpdate: cfg.Limits.PositionPerSecond,
		protocol.TypeChat:           cfg.Limits.ChatPerSecond,
		protocol.TypeAction:         cfg.Limits.ActionPerSecond,
	}

	directory := session.NewDirectory(cfg.Session.MaxPlayers, logger, metrics)
	gw := gateway.NewGateway(directory, rates, logger, metrics)
	monitor := liveness.NewMonitor(directory, logger,
		cfg.Session.AFKSweepInterval,
		cfg.Session.AFKTimeout,
		cfg.Session.HeartbeatInterval,
		cfg.Session.PongTimeout,
	)
	api := httpapi.NewAPI(directory, logger, cfg.Server.PublicWSURL)

	router := mux.NewRouter()
	gw.Register(router)
	api.Register(router)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	logger.Info("starting relay server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_players", cfg.Session.MaxPlayers),
	)

	lc := server.NewLifecycle(logger)
	lc.Add("http", &server.FuncService{
		StartFn: func() error {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(ctx)
		},
	})
	lc.Add("liveness", &server.FuncService{
		StartFn: func() error { monitor.Start(); return nil },
		StopFn:  monitor.Stop,
	})
	lc.Add("directory", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  directory.Shutdown,
	})

	if err := lc.Run(context.Background()); err != nil {
		logger.Error("lifecycle exited with error", zap.Error(err))
		os.Exit(1)
	}
}
