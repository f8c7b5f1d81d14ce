package engine

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/infra"
)

// DecisionPublisher транслирует зафиксированные решения в Redis Pub/Sub.
// Подписчики — табло/индикаторы у турникетов и дашборды. Сбой доставки
// логируем на Warn и не роняем запрос: источник истины — хранилище.
type DecisionPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewDecisionPublisher(rdb *redis.Client, logger *zap.Logger) *DecisionPublisher {
	return &DecisionPublisher{
		rdb:    rdb,
		logger: logger.Named("decision-publisher"),
	}
}

func (p *DecisionPublisher) NotifyDecision(ctx context.Context, d *domain.Decision) {
	payload, err := json.Marshal(d)
	if err != nil {
		p.logger.Error("failed to encode decision for broadcast", zap.Error(err))
		return
	}

	if err := p.rdb.Publish(ctx, infra.RedisChanDecisions, payload).Err(); err != nil {
		p.logger.Warn("decision broadcast delivery failed",
			zap.String("decision_id", d.ID),
			zap.String("channel", infra.RedisChanDecisions),
			zap.Error(err))
		return
	}

	p.logger.Debug("decision broadcasted",
		zap.String("decision_id", d.ID),
		zap.String("decision", string(d.Decision)))
}
