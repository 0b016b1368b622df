package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Входящие управляющие сообщения клиента.
const (
	ActionJoinIntegration  = "joinIntegration"
	ActionLeaveIntegration = "leaveIntegration"
	ActionJoinBroadcast    = "joinBroadcast"
	ActionLeaveBroadcast   = "leaveBroadcast"
)

// ClientMessage управляющее сообщение от клиента.
type ClientMessage struct {
	Action        string `json:"action"`
	IntegrationID int64  `json:"integrationId,omitempty"`
}

// controlReply ответ на управляющее сообщение.
type controlReply struct {
	Event         string `json:"event"`
	IntegrationID int64  `json:"integrationId,omitempty"`
	Error         string `json:"error,omitempty"`
}

const maxClientMessage = 4096

// connObserver адаптер соединения под Observer.
type connObserver struct {
	id   string
	conn *websocket.Conn

	// gorilla/websocket не допускает конкурентной записи
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (o *connObserver) ID() string { return o.id }

func (o *connObserver) Deliver(ctx context.Context, a Announcement) error {
	return o.writeJSON(ctx, a)
}

func (o *connObserver) writeJSON(ctx context.Context, v any) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	deadline := time.Now().Add(o.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = o.conn.SetWriteDeadline(deadline)
	return o.conn.WriteJSON(v)
}

func (o *connObserver) ping() error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	return o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(o.writeTimeout))
}

type SocketOptions struct {
	BroadcastByDefault bool
	InboundRate        float64 // сообщений в секунду на соединение
	InboundBurst       int
	PingInterval       time.Duration
	WriteTimeout       time.Duration
}

// SocketHandler переводит одно WebSocket-соединение в одного наблюдателя маршрутизатора.
type SocketHandler struct {
	router   *Router
	opts     SocketOptions
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewSocketHandler(router *Router, opts SocketOptions, logger *zap.Logger) *SocketHandler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.InboundRate <= 0 {
		opts.InboundRate = 10
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = 20
	}
	return &SocketHandler{
		router: router,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Клиент дашборда обслуживается с другого origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Named("socket"),
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	obs := &connObserver{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: h.opts.WriteTimeout,
	}
	log := h.logger.With(zap.String("observer", obs.id))
	log.Info("client connected", zap.String("remote", r.RemoteAddr))

	if h.opts.BroadcastByDefault {
		h.router.JoinBroadcast(obs)
	}

	done := make(chan struct{})
	defer func() {
		close(done)
		// отписка до закрытия соединения: новых доставок уже не будет
		h.router.Disconnect(obs.id)
		conn.Close()
		log.Info("client disconnected")
	}()

	go h.keepAlive(obs, done)
	h.readLoop(obs, log)
}

func (h *SocketHandler) keepAlive(obs *connObserver, done <-chan struct{}) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := obs.ping(); err != nil {
				// обрыв увидит readLoop по дедлайну
				return
			}
		}
	}
}

func (h *SocketHandler) readLoop(obs *connObserver, log *zap.Logger) {
	conn := obs.conn
	pongWait := 2 * h.opts.PingInterval
	limiter := rate.NewLimiter(rate.Limit(h.opts.InboundRate), h.opts.InboundBurst)

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !limiter.Allow() {
			log.Warn("client message rate exceeded")
			h.reply(obs, controlReply{Event: "error", Error: "rate limit exceeded"})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(obs, controlReply{Event: "error", Error: "malformed message"})
			continue
		}
		h.reply(obs, h.apply(obs, msg))
	}
}

// apply переводит управляющее сообщение в вызов маршрутизатора.
func (h *SocketHandler) apply(obs Observer, msg ClientMessage) controlReply {
	switch msg.Action {
	case ActionJoinIntegration:
		if msg.IntegrationID <= 0 {
			return controlReply{Event: "error", Error: "integrationId is required"}
		}
		h.router.Join(obs, msg.IntegrationID)
		return controlReply{Event: "joined", IntegrationID: msg.IntegrationID}
	case ActionLeaveIntegration:
		h.router.Leave(obs.ID(), msg.IntegrationID)
		return controlReply{Event: "left", IntegrationID: msg.IntegrationID}
	case ActionJoinBroadcast:
		h.router.JoinBroadcast(obs)
		return controlReply{Event: "joinedBroadcast"}
	case ActionLeaveBroadcast:
		h.router.LeaveBroadcast(obs.ID())
		return controlReply{Event: "leftBroadcast"}
	}
	return controlReply{Event: "error", Error: "unknown action " + msg.Action}
}

func (h *SocketHandler) reply(obs *connObserver, r controlReply) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.WriteTimeout)
	defer cancel()
	if err := obs.writeJSON(ctx, r); err != nil {
		h.logger.Debug("control reply failed", zap.String("observer", obs.id), zap.Error(err))
	}
}
