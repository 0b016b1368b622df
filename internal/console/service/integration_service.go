package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

// IntegrationRepository описывает требования сервиса к хранилищу интеграций
type IntegrationRepository interface {
	CreateIntegration(ctx context.Context, in *domain.Integration) (*domain.Integration, error)
	GetIntegration(ctx context.Context, id int64) (*domain.Integration, error)
	ListIntegrations(ctx context.Context) ([]domain.Integration, error)
	UpdateIntegration(ctx context.Context, id int64, mutate domain.IntegrationMutation) (*domain.Integration, error)
	DeleteIntegration(ctx context.Context, id int64) error
}

// Announcer публикует события жизненного цикла подписчикам.
type Announcer interface {
	Announce(kind domain.EventKind, payload any, integrationID int64)
}

type IntegrationService struct {
	repo      IntegrationRepository
	announcer Announcer
	logger    *zap.Logger
	now       func() time.Time
}

func NewIntegrationService(repo IntegrationRepository, announcer Announcer, logger *zap.Logger) *IntegrationService {
	return &IntegrationService{
		repo:      repo,
		announcer: announcer,
		logger:    logger.Named("integration-service"),
		now:       time.Now,
	}
}

func (s *IntegrationService) List(ctx context.Context) ([]domain.Integration, error) {
	return s.repo.ListIntegrations(ctx)
}

func (s *IntegrationService) Get(ctx context.Context, id int64) (*domain.Integration, error) {
	return s.repo.GetIntegration(ctx, id)
}

// Create сохраняет интеграцию и анонсирует ее в глобальный канал.
func (s *IntegrationService) Create(ctx context.Context, input domain.IntegrationInput) (*domain.Integration, error) {
	in, err := input.Build(s.now())
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateIntegration(ctx, in)
	if err != nil {
		s.logger.Error("failed to create integration", zap.String("name", in.Name), zap.Error(err))
		return nil, fmt.Errorf("create integration: %w", err)
	}

	s.announcer.Announce(domain.EventIntegrationCreated, created, domain.Unscoped)
	s.logger.Info("integration created",
		zap.Int64("integration_id", created.ID),
		zap.String("type", string(created.Type)),
	)
	return created, nil
}

// Update применяет частичное обновление. Статус Error через CRUD не выставляется.
// 1. Хранилище блокирует текущее состояние (404, если нет)
// 2. Патч применяется к свежей копии внутри той же блокировки
// 3. Запись и анонс в глобальный канал и комнату интеграции
func (s *IntegrationService) Update(ctx context.Context, id int64, patch domain.IntegrationPatch) (*domain.Integration, error) {
	now := s.now()
	updated, err := s.repo.UpdateIntegration(ctx, id, func(cur domain.Integration) (*domain.Integration, error) {
		return patch.Apply(cur, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("update integration %d: %w", id, err)
	}

	s.announcer.Announce(domain.EventIntegrationUpdated, updated, updated.ID)
	s.logger.Info("integration updated",
		zap.Int64("integration_id", updated.ID),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// Delete удаляет интеграцию вместе с метриками. Анонс уходит комнате до ее сноса.
func (s *IntegrationService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteIntegration(ctx, id); err != nil {
		return err
	}

	s.announcer.Announce(domain.EventIntegrationDeleted, domain.IntegrationDeleted{ID: id}, id)
	s.logger.Info("integration deleted", zap.Int64("integration_id", id))
	return nil
}
