package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
	"github.com/xela07ax/integrationhub/internal/infra"
)

// SQLSTATE нарушения внешнего ключа: метрика ссылается на удаленную интеграцию.
const foreignKeyViolation = "23503"

// Store хранилище интеграций и метрик поверх PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore оборачивает уже открытое соединение (в тестах это sqlmock).
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("postgres")}
}

// Open открывает пул и ждет готовности базы с экспоненциальным бэкоффом.
func Open(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewStore(db, logger)

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
	)
	err = r.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			s.logger.Warn("database not ready", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres: ping: %w", domain.ErrUnavailable, err)
	}
	return s, nil
}

// Ping проверяет доступность базы при старте
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// unavailable помечает ошибку драйвера как недоступность хранилища.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: postgres: %s: %w", domain.ErrUnavailable, op, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
