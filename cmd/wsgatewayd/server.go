package main

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nasnetconnect/gqlwsengine/internal/graphql/protocol"
	"github.com/nasnetconnect/gqlwsengine/internal/graphql/subscription"
)

// wsHandler upgrades every request to a graphql-transport-ws session and
// drives it with a fresh ServerEngine. One handler instance is shared across
// all connections; per-connection state lives entirely in the engine.
type wsHandler struct {
	upgrader func(w http.ResponseWriter, r *http.Request) (*protocol.GorillaMessenger, error)
	mgr      *subscription.Manager
	dataSync bool
	auth     protocol.AuthHook
	logger   *zap.Logger
}

func newWSHandler(mgr *subscription.Manager, dataSync bool, auth protocol.AuthHook, logger *zap.Logger) *wsHandler {
	upgrader := protocol.Upgrader(nil)
	return &wsHandler{
		mgr:      mgr,
		dataSync: dataSync,
		auth:     auth,
		logger:   logger,
		upgrader: func(w http.ResponseWriter, r *http.Request) (*protocol.GorillaMessenger, error) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return nil, err
			}
			return protocol.NewGorillaMessenger(conn, protocol.MessengerConfig{Logger: logger}), nil
		},
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	messenger, err := h.upgrader(w, r)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cfg := protocol.ServerConfig{
		Executor:   newEchoExecutor(h.logger),
		Subscriber: clockSubscriber(h.mgr),
		Auth:       h.auth,
		Logger:     h.logger,
	}
	if h.dataSync {
		cfg = protocol.DefaultDataSyncServerConfig(cfg)
	} else {
		cfg = protocol.DefaultServerConfig(cfg)
	}

	protocol.NewServerEngine(messenger, cfg)
	// The engine and its Messenger run on their own goroutines for the life
	// of the connection; ServeHTTP need not block on them.
}

func healthHandler(mgr *subscription.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mgr.Stats())
	}
}

const shutdownTimeout = 5 * time.Second
