package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/repository"
	"github.com/xela07ax/epi-orchestrator/internal/repository/memory"
)

func testSettings() ReliabilitySettings {
	return ReliabilitySettings{
		StoreTimeout:  200 * time.Millisecond,
		CBMaxRequests: 1,
		CBInterval:    time.Minute,
		CBTimeout:     time.Minute,
	}
}

func TestReliableStorePassThrough(t *testing.T) {
	rs := NewReliableStore(memory.New(), testSettings(), NewMetrics(nil))
	ctx := context.Background()

	ev := domain.FaceEvent{ID: "f1", Timestamp: time.Now().UTC(), Detected: true, Confidence: 0.9}
	if err := rs.InsertFaceEvent(ctx, &ev); err != nil {
		t.Fatalf("InsertFaceEvent() error = %v", err)
	}

	got, err := rs.ListFaceEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListFaceEvents() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "f1" {
		t.Errorf("events = %v", got)
	}

	st, err := rs.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.TotalFaceEvents != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestReliableStoreScopeCommit(t *testing.T) {
	inner := memory.New()
	rs := NewReliableStore(inner, testSettings(), NewMetrics(nil))
	ctx := context.Background()

	scope, err := rs.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	d := domain.Decision{ID: "d1", Timestamp: time.Now().UTC(), Decision: domain.DecisionApproved}
	if err := scope.InsertDecision(ctx, &d); err != nil {
		t.Fatalf("InsertDecision() error = %v", err)
	}
	if err := scope.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	st, _ := inner.Stats(ctx)
	if st.TotalDecisions != 1 {
		t.Errorf("stats after commit = %+v", st)
	}
}

// slowStore зависает дольше таймаута вызова.
type slowStore struct {
	*memory.Store
}

func (s *slowStore) InsertFaceEvent(ctx context.Context, ev *domain.FaceEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
		return s.Store.InsertFaceEvent(ctx, ev)
	}
}

func TestReliableStoreTimeoutIsRetryable(t *testing.T) {
	set := testSettings()
	set.StoreTimeout = 10 * time.Millisecond
	rs := NewReliableStore(&slowStore{Store: memory.New()}, set, NewMetrics(nil))

	ev := domain.FaceEvent{ID: "f1", Timestamp: time.Now().UTC()}
	err := rs.InsertFaceEvent(context.Background(), &ev)
	if !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

// brokenStore всегда отвечает отказом.
type brokenStore struct {
	*memory.Store
}

func (s *brokenStore) InsertFaceEvent(context.Context, *domain.FaceEvent) error {
	return errors.New("connection refused")
}

func TestReliableStoreBreakerOpens(t *testing.T) {
	rs := NewReliableStore(&brokenStore{Store: memory.New()}, testSettings(), NewMetrics(nil))
	ctx := context.Background()
	ev := domain.FaceEvent{ID: "f1", Timestamp: time.Now().UTC()}

	// Предохранитель выбивает после серии последовательных отказов.
	for i := 0; i < 6; i++ {
		if err := rs.InsertFaceEvent(ctx, &ev); err == nil {
			t.Fatal("expected store failure")
		}
	}

	err := rs.InsertFaceEvent(ctx, &ev)
	if !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable once the breaker is open", err)
	}
}
