// Package main is the demo entry point for the graphql-transport-ws gateway:
// it wires ServerEngine over a real net/http + gorilla/websocket upgrade,
// backed by a trivial echo Executor and a ticking-clock Subscriber.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nasnetconnect/gqlwsengine/internal/auth"
	"github.com/nasnetconnect/gqlwsengine/internal/bootstrap"
	"github.com/nasnetconnect/gqlwsengine/internal/graphql/subscription"
	"github.com/nasnetconnect/gqlwsengine/internal/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dev := flag.Bool("dev", false, "development mode (console logging, dev runtime profile)")
	dataSync := flag.Bool("datasync", false, "enable the DataSync extension (client-pushed Next frames)")
	tickInterval := flag.Duration("tick", time.Second, "clock subscription tick interval")
	flag.Parse()

	// 1. Initialize structured logging.
	logCfg := logger.DefaultConfig()
	if *dev {
		logCfg = logger.DevelopmentConfig()
	}
	logger.Init(logCfg)
	zlog := logger.L()
	defer logger.Sync()

	// 2. Apply runtime configuration (GOMAXPROCS, GC percent, memory limit).
	runtimeCfg := bootstrap.DefaultProdRuntimeConfig()
	if *dev {
		runtimeCfg = bootstrap.DefaultDevRuntimeConfig()
	}
	if err := bootstrap.ApplyRuntimeConfig(runtimeCfg, zlog.Sugar()); err != nil {
		log.Fatalf("failed to apply runtime configuration: %v", err)
	}

	// 3. Initialize the in-process event bus and the subscription manager
	// that adapts it into protocol.EventSource.
	bus := newInProcessBus()
	mgr := subscription.NewManager(bus)
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runClockTicker(ctx, bus, *tickInterval, zlog)

	// 4. Mint the demo JWT signing key and a sample token, and build the
	// connection_init AuthHook that validates it. A real deployment would
	// load PrivateKey/PublicKey from its secret store rather than
	// generating a throwaway pair on every start.
	jwtKey, err := generateDemoKeypair()
	if err != nil {
		log.Fatalf("failed to generate JWT signing key: %v", err)
	}
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{
		PrivateKey: jwtKey,
		PublicKey:  &jwtKey.PublicKey,
		Issuer:     "wsgatewayd",
	})
	if err != nil {
		log.Fatalf("failed to construct JWT service: %v", err)
	}
	demoToken, _, err := jwtSvc.GenerateToken("demo-user")
	if err != nil {
		log.Fatalf("failed to mint demo token: %v", err)
	}
	zlog.Info("minted demo bearer token for connection_init",
		zap.String("authorization", "Bearer "+demoToken))

	// 5. Wire HTTP routes: the WebSocket gateway and a health endpoint.
	mux := http.NewServeMux()
	mux.Handle("/graphql", newWSHandler(mgr, *dataSync, jwtAuthHook(jwtSvc, zlog), zlog))
	mux.Handle("/healthz", healthHandler(mgr))

	srv := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	// 6. Serve until interrupted, then drain in-flight connections.
	go func() {
		zlog.Info("wsgatewayd listening",
			zap.String("addr", *addr),
			zap.Bool("dataSync", *dataSync),
			zap.Bool("dev", *dev),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zlog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("graceful shutdown failed", zap.Error(err))
	}
}
