package realtime

/*
RedisRelay ретранслирует анонсы в канал Redis для других процессов хаба.

- Подписан на глобальный канал маршрутизатора как обычный наблюдатель.
- Deliver не блокируется: событие кладется в буфер, при переполнении сбрасывается.
- Воркер копит пачку и публикует ее одним pipeline по размеру или по таймеру.
- Публикация идет через circuit breaker: при недоступном Redis пачки
  отбрасываются сразу, не тормозя воркер.
- Stop закрывает буфер и дожидается финального сброса (drain).
*/

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/monitor"
)

const relayObserverID = "redis-relay"

var errRelayStopped = errors.New("relay: stopped")

// Publisher отправляет пачку сообщений в канал.
type Publisher interface {
	Publish(ctx context.Context, channel string, messages [][]byte) error
}

// RedisPublisher публикует пачку одним pipeline.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, messages [][]byte) error {
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range messages {
			pipe.Publish(ctx, channel, msg)
		}
		return nil
	})
	return err
}

type RelayOptions struct {
	Channel       string
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type RedisRelay struct {
	ch      chan []byte
	pub     Publisher
	cb      *gobreaker.CircuitBreaker
	opts    RelayOptions
	metrics *monitor.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup

	// mu защищает ch от отправки после закрытия
	mu      sync.RWMutex
	stopped bool
}

func NewRedisRelay(pub Publisher, opts RelayOptions, metrics *monitor.Metrics, logger *zap.Logger) *RedisRelay {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = opts.BatchSize * 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if metrics == nil {
		metrics = monitor.NewMetrics(nil)
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-relay",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("relay breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &RedisRelay{
		ch:      make(chan []byte, opts.BufferSize),
		pub:     pub,
		cb:      cb,
		opts:    opts,
		metrics: metrics,
		logger:  logger.Named("relay"),
	}
}

func (r *RedisRelay) ID() string { return relayObserverID }

// Deliver кладет анонс в буфер. Переполнение не ошибка доставки, а сброс нагрузки.
func (r *RedisRelay) Deliver(ctx context.Context, a Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return errRelayStopped
	}
	select {
	case r.ch <- data:
		r.metrics.RelayBufferFill.Set(float64(len(r.ch)))
	default:
		r.metrics.DroppedDeliveries.Inc()
		r.logger.Error("relay_buffer_overflow", zap.String("event", string(a.Kind)))
	}
	return nil
}

func (r *RedisRelay) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop закрывает вход и ждет, пока воркер опубликует остаток.
func (r *RedisRelay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.ch)
	r.mu.Unlock()

	r.logger.Info("stopping relay: buffer closed, flushing...")
	r.wg.Wait()
	r.logger.Info("relay stopped gracefully")
}

func (r *RedisRelay) worker() {
	defer r.wg.Done()

	batch := make([][]byte, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: при остановке внешний контекст уже отменен
		_, err := r.cb.Execute(func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return nil, r.pub.Publish(ctx, r.opts.Channel, batch)
		})
		if err != nil {
			r.logger.Error("relay flush failed", zap.Int("batch", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		r.metrics.RelayBufferFill.Set(float64(len(r.ch)))
	}

	for {
		select {
		case msg, ok := <-r.ch:
			if !ok {
				flush() // Финальный сброс
				return
			}
			batch = append(batch, msg)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
