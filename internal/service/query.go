package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// ErrClearDisabled — полная очистка не разрешена конфигурацией.
// Операция необратима и предназначена для стендов, поэтому в проде
// закрыта отдельным флагом engine.allow_clear.
var ErrClearDisabled = errors.New("clear is disabled by configuration")

// EventReader описывает контракт чтения и сброса хранилища.
type EventReader interface {
	ListFaceEvents(ctx context.Context, limit int) ([]domain.FaceEvent, error)
	ListEpiEvents(ctx context.Context, limit int) ([]domain.EpiEvent, error)
	ListDecisions(ctx context.Context, limit int, status domain.DecisionStatus) ([]domain.Decision, error)
	Stats(ctx context.Context) (domain.Stats, error)
	ClearAll(ctx context.Context) error
}

// QueryService — read-сторона: история, выборка решений, статистика,
// сброс. Вся бизнес-логика на write-стороне, здесь только нормализация
// limit и маппинг ошибок.
type QueryService struct {
	store        EventReader
	defaultLimit int
	maxLimit     int
	allowClear   bool
	logger       *zap.Logger
}

func NewQueryService(store EventReader, defaultLimit, maxLimit int, allowClear bool, logger *zap.Logger) *QueryService {
	return &QueryService{
		store:        store,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		allowClear:   allowClear,
		logger:       logger.Named("query-service"),
	}
}

// normalizeLimit: 0 — "не задан", берем дефолт; отрицательный — ошибка
// входа; больше потолка — прижимаем к потолку.
func (s *QueryService) normalizeLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, &domain.ValidationError{Field: "limit", Message: "must be positive"}
	}
	if limit == 0 {
		return s.defaultLimit, nil
	}
	if limit > s.maxLimit {
		return s.maxLimit, nil
	}
	return limit, nil
}

// History возвращает по limit последних записей каждой из трех коллекций.
func (s *QueryService) History(ctx context.Context, limit int) (*domain.History, error) {
	limit, err := s.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	faceEvents, err := s.store.ListFaceEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query: failed to fetch face events: %w", err)
	}
	epiEvents, err := s.store.ListEpiEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query: failed to fetch epi events: %w", err)
	}
	decisions, err := s.store.ListDecisions(ctx, limit, "")
	if err != nil {
		return nil, fmt.Errorf("query: failed to fetch decisions: %w", err)
	}

	return &domain.History{
		FaceEvents: faceEvents,
		EpiEvents:  epiEvents,
		Decisions:  decisions,
	}, nil
}

// Decisions возвращает решения, опционально отфильтрованные по статусу.
// Валидный, но ничему не соответствующий статус — это пустой список,
// не ошибка.
func (s *QueryService) Decisions(ctx context.Context, limit int, statusRaw string) ([]domain.Decision, error) {
	limit, err := s.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseDecisionStatus(statusRaw)
	if err != nil {
		return nil, err
	}

	decisions, err := s.store.ListDecisions(ctx, limit, status)
	if err != nil {
		return nil, fmt.Errorf("query: failed to fetch decisions: %w", err)
	}
	return decisions, nil
}

func (s *QueryService) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("query: failed to fetch stats: %w", err)
	}
	return stats, nil
}

// ClearAll необратимо удаляет все события и решения.
func (s *QueryService) ClearAll(ctx context.Context) error {
	if !s.allowClear {
		return ErrClearDisabled
	}

	if err := s.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("query: %w", err)
	}

	s.logger.Warn("all events and decisions cleared")
	return nil
}
