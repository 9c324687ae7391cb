package protocol

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Messenger is the opaque duplex text-message transport the engine is built
// against (§4.1). Implementations may be backed by a real WebSocket, an
// in-memory pipe (for tests), or anything else that can deliver and accept
// UTF-8 text frames.
//
// Send is non-blocking and fire-and-forget; FIFO order is preserved per
// session. OnReceive registers a single callback, invoked at most once at a
// time, per inbound text message; registering again replaces the previous
// callback. Error transmits a textual diagnostic and signals the given
// protocol close code to the peer. Close initiates transport shutdown.
// Messages arriving after Close may be silently dropped.
type Messenger interface {
	Send(text string)
	OnReceive(callback func(text string))
	Error(message string, code int)
	Close()
}

// GorillaMessenger adapts a *websocket.Conn to the Messenger contract,
// grounded on the teacher's subscription.wsClient read/write pump pair.
type GorillaMessenger struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64

	send     chan []byte
	closeMsg chan closeFrame
	done     chan struct{}

	receiveMu sync.Mutex // serializes callback invocation (Messenger contract)
	onReceive func(text string)

	closeOnce sync.Once
}

type closeFrame struct {
	code int
	text string
}

// MessengerConfig tunes the underlying WebSocket's keep-alive and framing
// limits. Zero values fall back to GraphQLWSDefaults.
type MessengerConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	Logger         *zap.Logger
}

// GraphQLWSDefaults mirrors the teacher's defaultWriteWait/defaultPongWait/
// defaultPingPeriod/defaultMaxMessageSize constants.
var GraphQLWSDefaults = MessengerConfig{
	WriteWait:      10 * time.Second,
	PongWait:       60 * time.Second,
	PingPeriod:     30 * time.Second,
	MaxMessageSize: 1024 * 1024,
}

// Upgrader returns a websocket.Upgrader pre-configured with the
// "graphql-transport-ws" subprotocol, ready for ServeHTTP use.
func Upgrader(checkOrigin func(r *http.Request) bool) websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
		Subprotocols:    []string{"graphql-transport-ws"},
	}
}

// NewGorillaMessenger wraps conn and starts its read/write pumps. The
// returned Messenger is ready for Send/OnReceive/Error/Close immediately.
func NewGorillaMessenger(conn *websocket.Conn, cfg MessengerConfig) *GorillaMessenger {
	if cfg.WriteWait == 0 {
		cfg.WriteWait = GraphQLWSDefaults.WriteWait
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = GraphQLWSDefaults.PongWait
	}
	if cfg.PingPeriod == 0 {
		cfg.PingPeriod = GraphQLWSDefaults.PingPeriod
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = GraphQLWSDefaults.MaxMessageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &GorillaMessenger{
		conn:           conn,
		logger:         logger,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		maxMessageSize: cfg.MaxMessageSize,
		send:           make(chan []byte, 256),
		closeMsg:       make(chan closeFrame, 1),
		done:           make(chan struct{}),
	}

	go m.readPump()
	go m.writePump()

	return m
}

func (m *GorillaMessenger) Send(text string) {
	select {
	case m.send <- []byte(text):
	case <-m.done:
	}
}

func (m *GorillaMessenger) OnReceive(callback func(text string)) {
	m.receiveMu.Lock()
	defer m.receiveMu.Unlock()
	m.onReceive = callback
}

func (m *GorillaMessenger) Error(message string, code int) {
	m.closeOnce.Do(func() {
		select {
		case m.closeMsg <- closeFrame{code: code, text: message}:
		default:
		}
		close(m.done)
	})
}

func (m *GorillaMessenger) Close() {
	m.closeOnce.Do(func() {
		select {
		case m.closeMsg <- closeFrame{code: websocket.CloseNormalClosure, text: "session closed"}:
		default:
		}
		close(m.done)
	})
}

func (m *GorillaMessenger) readPump() {
	defer m.conn.Close()

	m.conn.SetReadLimit(m.maxMessageSize)
	m.conn.SetReadDeadline(time.Now().Add(m.pongWait))
	m.conn.SetPongHandler(func(string) error {
		m.conn.SetReadDeadline(time.Now().Add(m.pongWait))
		return nil
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				m.logger.Debug("websocket read error", zap.Error(err))
			}
			m.Close()
			return
		}

		m.receiveMu.Lock()
		cb := m.onReceive
		m.receiveMu.Unlock()
		if cb != nil {
			cb(string(data))
		}
	}
}

func (m *GorillaMessenger) writePump() {
	ticker := time.NewTicker(m.pingPeriod)
	defer ticker.Stop()
	defer m.conn.Close()

	for {
		select {
		case data := <-m.send:
			m.conn.SetWriteDeadline(time.Now().Add(m.writeWait))
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case cf := <-m.closeMsg:
			// Flush anything already queued before the close handshake, so a
			// diagnostic sent just before Error/Close is not dropped.
		drain:
			for {
				select {
				case data := <-m.send:
					m.conn.SetWriteDeadline(time.Now().Add(m.writeWait))
					if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						break drain
					}
				default:
					break drain
				}
			}
			m.conn.SetWriteDeadline(time.Now().Add(m.writeWait))
			m.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(cf.code, cf.text))
			return

		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(m.writeWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-m.done:
			return
		}
	}
}
