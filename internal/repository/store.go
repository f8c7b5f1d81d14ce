package repository

import (
	"context"
	"errors"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// ErrUnavailable маркирует отказ хранилища (недоступность, таймаут,
// открытый предохранитель). Для вызывающего это retryable-ошибка: сам
// шлюз повторов не делает, политика ретраев — на стороне клиента.
var ErrUnavailable = errors.New("event store unavailable")

// Writer — операции вставки трех видов записей. Записи append-only:
// операций обновления в интерфейсе нет принципиально.
type Writer interface {
	InsertFaceEvent(ctx context.Context, ev *domain.FaceEvent) error
	InsertEpiEvent(ctx context.Context, ev *domain.EpiEvent) error
	InsertDecision(ctx context.Context, d *domain.Decision) error
}

// TxScope — транзакционная область для многозаписной оркестрации.
// Движок берет одну область на вызов и гарантирует Commit или Rollback
// на каждом пути выхода; до Commit записи не видны чтениям.
type TxScope interface {
	Writer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store — единый интерфейс хранилища событий и решений. Две
// взаимозаменяемые реализации: postgres (prod) и memory (dev/тесты).
type Store interface {
	Writer

	// Begin открывает транзакционную область для оркестрации.
	Begin(ctx context.Context) (TxScope, error)

	// Чтения отдают записи по времени по убыванию; при равных
	// timestamp первее более поздняя вставка.
	ListFaceEvents(ctx context.Context, limit int) ([]domain.FaceEvent, error)
	ListEpiEvents(ctx context.Context, limit int) ([]domain.EpiEvent, error)
	// ListDecisions с пустым status возвращает решения без фильтра.
	ListDecisions(ctx context.Context, limit int, status domain.DecisionStatus) ([]domain.Decision, error)

	Stats(ctx context.Context) (domain.Stats, error)

	// ClearAll удаляет все записи всех трех коллекций. Частичного
	// успеха не бывает: либо все, либо ошибка с именем коллекции.
	ClearAll(ctx context.Context) error
}
