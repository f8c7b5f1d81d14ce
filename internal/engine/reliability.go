package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/repository"
)

// ReliabilitySettings — параметры защиты хранилища.
type ReliabilitySettings struct {
	// StoreTimeout ограничивает каждый вызов хранилища. Таймаут наружу
	// уходит как retryable-ошибка, а не как частичное решение.
	StoreTimeout time.Duration

	CBMaxRequests uint32
	CBInterval    time.Duration
	CBTimeout     time.Duration
}

// ReliableStore оборачивает repository.Store предохранителем и таймаутом
// на вызов. Когда база лежит, запросы отваливаются быстро, а не копятся
// на исчерпании пула.
type ReliableStore struct {
	next    repository.Store
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewReliableStore(next repository.Store, set ReliabilitySettings, metrics *Metrics) *ReliableStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "event-store",
		MaxRequests: set.CBMaxRequests,
		Interval:    set.CBInterval,
		Timeout:     set.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.StoreBreakerState.Set(1)
			} else {
				metrics.StoreBreakerState.Set(0)
			}
		},
	})

	return &ReliableStore{
		next:    next,
		cb:      cb,
		timeout: set.StoreTimeout,
	}
}

// run выполняет один вызов хранилища под предохранителем и таймаутом.
func (r *ReliableStore) run(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.cb.Execute(func() (any, error) {
		return fn(cctx)
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify маркирует отказы хранилища как retryable.
func classify(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", repository.ErrUnavailable, err)
	}
	return err
}

func (r *ReliableStore) InsertFaceEvent(ctx context.Context, ev *domain.FaceEvent) error {
	_, err := r.run(ctx, func(c context.Context) (any, error) {
		return nil, r.next.InsertFaceEvent(c, ev)
	})
	return err
}

func (r *ReliableStore) InsertEpiEvent(ctx context.Context, ev *domain.EpiEvent) error {
	_, err := r.run(ctx, func(c context.Context) (any, error) {
		return nil, r.next.InsertEpiEvent(c, ev)
	})
	return err
}

func (r *ReliableStore) InsertDecision(ctx context.Context, d *domain.Decision) error {
	_, err := r.run(ctx, func(c context.Context) (any, error) {
		return nil, r.next.InsertDecision(c, d)
	})
	return err
}

func (r *ReliableStore) Begin(ctx context.Context) (repository.TxScope, error) {
	out, err := r.run(ctx, func(c context.Context) (any, error) {
		return r.next.Begin(c)
	})
	if err != nil {
		return nil, err
	}
	return &reliableScope{next: out.(repository.TxScope), r: r}, nil
}

// reliableScope пропускает операции транзакционной области через тот же
// предохранитель и таймаут, что и одиночные вызовы.
type reliableScope struct {
	next repository.TxScope
	r    *ReliableStore
}

func (s *reliableScope) InsertFaceEvent(ctx context.Context, ev *domain.FaceEvent) error {
	_, err := s.r.run(ctx, func(c context.Context) (any, error) {
		return nil, s.next.InsertFaceEvent(c, ev)
	})
	return err
}

func (s *reliableScope) InsertEpiEvent(ctx context.Context, ev *domain.EpiEvent) error {
	_, err := s.r.run(ctx, func(c context.Context) (any, error) {
		return nil, s.next.InsertEpiEvent(c, ev)
	})
	return err
}

func (s *reliableScope) InsertDecision(ctx context.Context, d *domain.Decision) error {
	_, err := s.r.run(ctx, func(c context.Context) (any, error) {
		return nil, s.next.InsertDecision(c, d)
	})
	return err
}

func (s *reliableScope) Commit(ctx context.Context) error {
	_, err := s.r.run(ctx, func(c context.Context) (any, error) {
		return nil, s.next.Commit(c)
	})
	return err
}

func (s *reliableScope) Rollback(ctx context.Context) error {
	// Rollback не гоняем через предохранитель: освобождение области
	// должно отработать и при открытом CB.
	cctx, cancel := context.WithTimeout(ctx, s.r.timeout)
	defer cancel()
	return s.next.Rollback(cctx)
}

func (r *ReliableStore) ListFaceEvents(ctx context.Context, limit int) ([]domain.FaceEvent, error) {
	out, err := r.run(ctx, func(c context.Context) (any, error) {
		return r.next.ListFaceEvents(c, limit)
	})
	if err != nil {
		return nil, err
	}
	return out.([]domain.FaceEvent), nil
}

func (r *ReliableStore) ListEpiEvents(ctx context.Context, limit int) ([]domain.EpiEvent, error) {
	out, err := r.run(ctx, func(c context.Context) (any, error) {
		return r.next.ListEpiEvents(c, limit)
	})
	if err != nil {
		return nil, err
	}
	return out.([]domain.EpiEvent), nil
}

func (r *ReliableStore) ListDecisions(ctx context.Context, limit int, status domain.DecisionStatus) ([]domain.Decision, error) {
	out, err := r.run(ctx, func(c context.Context) (any, error) {
		return r.next.ListDecisions(c, limit, status)
	})
	if err != nil {
		return nil, err
	}
	return out.([]domain.Decision), nil
}

func (r *ReliableStore) Stats(ctx context.Context) (domain.Stats, error) {
	out, err := r.run(ctx, func(c context.Context) (any, error) {
		return r.next.Stats(c)
	})
	if err != nil {
		return domain.Stats{}, err
	}
	return out.(domain.Stats), nil
}

func (r *ReliableStore) ClearAll(ctx context.Context) error {
	_, err := r.run(ctx, func(c context.Context) (any, error) {
		return nil, r.next.ClearAll(c)
	})
	return err
}
