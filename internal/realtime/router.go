// Package realtime маршрутизирует анонсы подписчикам: глобальный канал
// плюс комнаты по интеграциям.
package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/monitor"
)

// Announcement сообщение, уходящее подписчику.
type Announcement struct {
	Kind          domain.EventKind `json:"event"`
	IntegrationID int64            `json:"integrationId,omitempty"`
	Data          any              `json:"data"`
	At            time.Time        `json:"at"`
}

// Observer один внешний получатель (обычно одно соединение).
// Deliver вызывается из одной горутины на наблюдателя, последовательно.
type Observer interface {
	ID() string
	Deliver(ctx context.Context, a Announcement) error
}

type subscriber struct {
	obs         Observer
	mailbox     chan Announcement
	quit        chan struct{}
	rooms       map[int64]struct{}
	inBroadcast bool
}

type Router struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	rooms       map[int64]map[string]*subscriber
	broadcast   map[string]*subscriber
	closed      bool

	mailboxSize     int
	deliveryTimeout time.Duration
	metrics         *monitor.Metrics
	logger          *zap.Logger
	wg              sync.WaitGroup
}

type Options struct {
	MailboxSize     int
	DeliveryTimeout time.Duration
}

func NewRouter(opts Options, metrics *monitor.Metrics, logger *zap.Logger) *Router {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = 64
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = monitor.NewMetrics(nil)
	}
	return &Router{
		subscribers:     make(map[string]*subscriber),
		rooms:           make(map[int64]map[string]*subscriber),
		broadcast:       make(map[string]*subscriber),
		mailboxSize:     opts.MailboxSize,
		deliveryTimeout: opts.DeliveryTimeout,
		metrics:         metrics,
		logger:          logger.Named("router"),
	}
}

// ensure регистрирует наблюдателя при первом обращении. Вызывать под r.mu.Lock.
func (r *Router) ensure(o Observer) *subscriber {
	if s, ok := r.subscribers[o.ID()]; ok {
		return s
	}
	s := &subscriber{
		obs:     o,
		mailbox: make(chan Announcement, r.mailboxSize),
		quit:    make(chan struct{}),
		rooms:   make(map[int64]struct{}),
	}
	r.subscribers[o.ID()] = s
	r.metrics.Observers.Set(float64(len(r.subscribers)))

	r.wg.Add(1)
	go r.pump(s)
	return s
}

// Join добавляет наблюдателя в комнату интеграции. Повторный вызов ничего не меняет.
func (r *Router) Join(o Observer, integrationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	s := r.ensure(o)
	room, ok := r.rooms[integrationID]
	if !ok {
		room = make(map[string]*subscriber)
		r.rooms[integrationID] = room
	}
	room[o.ID()] = s
	s.rooms[integrationID] = struct{}{}
}

// Leave убирает наблюдателя из комнаты; если его там нет, ничего не делает.
func (r *Router) Leave(observerID string, integrationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscribers[observerID]
	if !ok {
		return
	}
	r.leaveRoom(s, integrationID)
}

func (r *Router) leaveRoom(s *subscriber, integrationID int64) {
	delete(s.rooms, integrationID)
	room, ok := r.rooms[integrationID]
	if !ok {
		return
	}
	delete(room, s.obs.ID())
	if len(room) == 0 {
		delete(r.rooms, integrationID)
	}
}

func (r *Router) JoinBroadcast(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	s := r.ensure(o)
	s.inBroadcast = true
	r.broadcast[o.ID()] = s
}

func (r *Router) LeaveBroadcast(observerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.subscribers[observerID]; ok {
		s.inBroadcast = false
		delete(r.broadcast, observerID)
	}
}

// Disconnect снимает все подписки наблюдателя и останавливает его доставку.
// После возврата ни один новый анонс ему не попадет.
func (r *Router) Disconnect(observerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscribers[observerID]
	if !ok {
		return
	}
	for id := range s.rooms {
		r.leaveRoom(s, id)
	}
	delete(r.broadcast, observerID)
	delete(r.subscribers, observerID)
	close(s.quit)
	r.metrics.Observers.Set(float64(len(r.subscribers)))
}

// Rooms интеграции, на которые подписан наблюдатель.
func (r *Router) Rooms(observerID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.subscribers[observerID]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

// Announce рассылает событие глобальному каналу и, если integrationID != Unscoped,
// комнате интеграции. Наблюдатель из обоих множеств получает событие один раз.
// Не блокируется на медленных получателях: при полном ящике событие сбрасывается.
func (r *Router) Announce(kind domain.EventKind, payload any, integrationID int64) {
	a := Announcement{
		Kind:          kind,
		IntegrationID: integrationID,
		Data:          payload,
		At:            time.Now(),
	}
	r.metrics.Announcements.WithLabelValues(string(kind)).Inc()

	// Удаление: сначала доставка комнате, затем снос комнаты, под одной блокировкой
	if kind == domain.EventIntegrationDeleted && integrationID != domain.Unscoped {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fanout(a)
		if room, ok := r.rooms[integrationID]; ok {
			for _, s := range room {
				delete(s.rooms, integrationID)
			}
			delete(r.rooms, integrationID)
		}
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	r.fanout(a)
}

func (r *Router) fanout(a Announcement) {
	if r.closed {
		return
	}
	for _, s := range r.broadcast {
		r.enqueue(s, a)
	}
	if a.IntegrationID == domain.Unscoped {
		return
	}
	for _, s := range r.rooms[a.IntegrationID] {
		if s.inBroadcast {
			continue
		}
		r.enqueue(s, a)
	}
}

func (r *Router) enqueue(s *subscriber, a Announcement) {
	select {
	case s.mailbox <- a:
	default:
		r.metrics.DroppedDeliveries.Inc()
		r.logger.Warn("observer mailbox full, announcement dropped",
			zap.String("observer", s.obs.ID()),
			zap.String("event", string(a.Kind)),
			zap.Int64("integration_id", a.IntegrationID),
		)
	}
}

// pump последовательно доставляет содержимое ящика: порядок FIFO на наблюдателя.
func (r *Router) pump(s *subscriber) {
	defer r.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case a := <-s.mailbox:
			r.deliver(s, a)
		}
	}
}

func (r *Router) deliver(s *subscriber, a Announcement) {
	ctx, cancel := context.WithTimeout(context.Background(), r.deliveryTimeout)
	defer cancel()

	if err := s.obs.Deliver(ctx, a); err != nil {
		r.metrics.DeliveryFailures.Inc()
		r.logger.Warn("delivery failed",
			zap.String("observer", s.obs.ID()),
			zap.String("event", string(a.Kind)),
			zap.Error(err),
		)
		return
	}
	r.metrics.Deliveries.Inc()
}

// Close отключает всех наблюдателей и ждет завершения их доставщиков.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, s := range r.subscribers {
		close(s.quit)
		delete(r.subscribers, id)
	}
	clear(r.rooms)
	clear(r.broadcast)
	r.metrics.Observers.Set(0)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("router stopped")
}
