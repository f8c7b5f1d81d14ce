package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/repository"
)

// Store — in-memory реализация repository.Store. Используется в dev-режиме
// без Postgres и как дублер хранилища в тестах. Потокобезопасна.
type Store struct {
	mu sync.Mutex

	seq        uint64
	faceEvents []faceRecord
	epiEvents  []epiRecord
	decisions  []decisionRecord
}

type faceRecord struct {
	seq uint64
	ev  domain.FaceEvent
}

type epiRecord struct {
	seq uint64
	ev  domain.EpiEvent
}

type decisionRecord struct {
	seq uint64
	d   domain.Decision
}

func New() *Store {
	return &Store{}
}

func (s *Store) InsertFaceEvent(_ context.Context, ev *domain.FaceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.faceEvents = append(s.faceEvents, faceRecord{seq: s.seq, ev: *ev})
	return nil
}

func (s *Store) InsertEpiEvent(_ context.Context, ev *domain.EpiEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.epiEvents = append(s.epiEvents, epiRecord{seq: s.seq, ev: *ev})
	return nil
}

func (s *Store) InsertDecision(_ context.Context, d *domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.decisions = append(s.decisions, decisionRecord{seq: s.seq, d: *d})
	return nil
}

// Begin возвращает область, которая копит записи в буфере и публикует их
// атомарно на Commit. До Commit чтения этих записей не видят.
func (s *Store) Begin(_ context.Context) (repository.TxScope, error) {
	return &txScope{store: s}, nil
}

type txScope struct {
	store *Store
	done  bool

	faceEvents []domain.FaceEvent
	epiEvents  []domain.EpiEvent
	decisions  []domain.Decision
}

func (t *txScope) InsertFaceEvent(_ context.Context, ev *domain.FaceEvent) error {
	t.faceEvents = append(t.faceEvents, *ev)
	return nil
}

func (t *txScope) InsertEpiEvent(_ context.Context, ev *domain.EpiEvent) error {
	t.epiEvents = append(t.epiEvents, *ev)
	return nil
}

func (t *txScope) InsertDecision(_ context.Context, d *domain.Decision) error {
	t.decisions = append(t.decisions, *d)
	return nil
}

func (t *txScope) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range t.faceEvents {
		s.seq++
		s.faceEvents = append(s.faceEvents, faceRecord{seq: s.seq, ev: t.faceEvents[i]})
	}
	for i := range t.epiEvents {
		s.seq++
		s.epiEvents = append(s.epiEvents, epiRecord{seq: s.seq, ev: t.epiEvents[i]})
	}
	for i := range t.decisions {
		s.seq++
		s.decisions = append(s.decisions, decisionRecord{seq: s.seq, d: t.decisions[i]})
	}
	return nil
}

func (t *txScope) Rollback(_ context.Context) error {
	// После Commit — no-op, буфер уже опубликован.
	t.done = true
	t.faceEvents, t.epiEvents, t.decisions = nil, nil, nil
	return nil
}

func (s *Store) ListFaceEvents(_ context.Context, limit int) ([]domain.FaceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]faceRecord, len(s.faceEvents))
	copy(recs, s.faceEvents)
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].ev.Timestamp.Equal(recs[j].ev.Timestamp) {
			return recs[i].ev.Timestamp.After(recs[j].ev.Timestamp)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]domain.FaceEvent, 0)
	for _, r := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, r.ev)
	}
	return out, nil
}

func (s *Store) ListEpiEvents(_ context.Context, limit int) ([]domain.EpiEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]epiRecord, len(s.epiEvents))
	copy(recs, s.epiEvents)
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].ev.Timestamp.Equal(recs[j].ev.Timestamp) {
			return recs[i].ev.Timestamp.After(recs[j].ev.Timestamp)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]domain.EpiEvent, 0)
	for _, r := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, r.ev)
	}
	return out, nil
}

func (s *Store) ListDecisions(_ context.Context, limit int, status domain.DecisionStatus) ([]domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]decisionRecord, 0, len(s.decisions))
	for _, r := range s.decisions {
		if status != "" && r.d.Decision != status {
			continue
		}
		recs = append(recs, r)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].d.Timestamp.Equal(recs[j].d.Timestamp) {
			return recs[i].d.Timestamp.After(recs[j].d.Timestamp)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]domain.Decision, 0)
	for _, r := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, r.d)
	}
	return out, nil
}

func (s *Store) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.Stats{
		TotalFaceEvents: int64(len(s.faceEvents)),
		TotalEpiEvents:  int64(len(s.epiEvents)),
		TotalDecisions:  int64(len(s.decisions)),
	}
	for _, r := range s.decisions {
		switch r.d.Decision {
		case domain.DecisionApproved:
			st.ApprovedDecisions++
		case domain.DecisionRejected:
			st.RejectedDecisions++
		case domain.DecisionPending:
			st.PendingDecisions++
		}
	}
	return st, nil
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faceEvents = nil
	s.epiEvents = nil
	s.decisions = nil
	return nil
}
