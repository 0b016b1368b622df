package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// Sink получатель событий из внешних каналов.
type Sink interface {
	Ingest(ctx context.Context, ev domain.MetricEvent) (*domain.Metric, error)
}

// RedisListener второй вход приема: события в JSON из канала Redis.
// Результат тот же, что и у HTTP: ошибки логируются, а не возвращаются отправителю.
type RedisListener struct {
	rdb     *redis.Client
	sink    Sink
	channel string
	logger  *zap.Logger

	retryDelay     time.Duration
	reconnectDelay time.Duration
}

func NewRedisListener(rdb *redis.Client, sink Sink, channel string, logger *zap.Logger) *RedisListener {
	return &RedisListener{
		rdb:            rdb,
		sink:           sink,
		channel:        channel,
		logger:         logger.Named("ingest-listener"),
		retryDelay:     5 * time.Second,
		reconnectDelay: time.Second,
	}
}

// Run живучий цикл подписки: переподключается при обрыве, выходит по ctx.
func (l *RedisListener) Run(ctx context.Context) {
	for {
		pubsub := l.rdb.Subscribe(ctx, l.channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("failed to subscribe", zap.String("chan", l.channel), zap.Error(err))
			if !sleepCtx(ctx, l.retryDelay) {
				return
			}
			continue
		}
		l.logger.Info("ingest listener subscribed", zap.String("chan", l.channel))

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				l.handleMessage(ctx, msg.Payload)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, l.reconnectDelay) {
			return
		}
	}
}

func (l *RedisListener) handleMessage(ctx context.Context, payload string) {
	var ev domain.MetricEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Warn("invalid ingest payload", zap.String("payload", payload), zap.Error(err))
		return
	}
	if _, err := l.sink.Ingest(ctx, ev); err != nil {
		l.logger.Warn("ingest from redis failed",
			zap.Int64("integration_id", ev.IntegrationID),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
