package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/repository"
)

// Store — реализация repository.Store поверх PostgreSQL (pgxpool).
// Многозаписная оркестрация идет через одну pgx-транзакцию, поэтому
// частично записанных наборов face/epi/decision в базе не бывает.
type Store struct {
	pool *pgxpool.Pool
}

// New создает пул соединений. Доступность базы проверяется отдельно
// через Ping — в main, с ретраями.
func New(ctx context.Context, connString string, maxConns, minConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping проверяет доступность базы при старте.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// querier покрывает и пул, и транзакцию — вставки используют один код.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) InsertFaceEvent(ctx context.Context, ev *domain.FaceEvent) error {
	return insertFaceEvent(ctx, s.pool, ev)
}

func (s *Store) InsertEpiEvent(ctx context.Context, ev *domain.EpiEvent) error {
	return insertEpiEvent(ctx, s.pool, ev)
}

func (s *Store) InsertDecision(ctx context.Context, d *domain.Decision) error {
	return insertDecision(ctx, s.pool, d)
}

// Begin открывает транзакционную область для оркестрации.
func (s *Store) Begin(ctx context.Context) (repository.TxScope, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	return &txScope{tx: tx}, nil
}

// txScope — repository.TxScope поверх pgx.Tx.
type txScope struct {
	tx pgx.Tx
}

func (t *txScope) InsertFaceEvent(ctx context.Context, ev *domain.FaceEvent) error {
	return insertFaceEvent(ctx, t.tx, ev)
}

func (t *txScope) InsertEpiEvent(ctx context.Context, ev *domain.EpiEvent) error {
	return insertEpiEvent(ctx, t.tx, ev)
}

func (t *txScope) InsertDecision(ctx context.Context, d *domain.Decision) error {
	return insertDecision(ctx, t.tx, d)
}

func (t *txScope) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit: %w", err)
	}
	return nil
}

func (t *txScope) Rollback(ctx context.Context) error {
	// Rollback после Commit — no-op, это позволяет держать его в defer.
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("postgres: failed to rollback: %w", err)
	}
	return nil
}

func insertFaceEvent(ctx context.Context, q querier, ev *domain.FaceEvent) error {
	meta, err := marshalMeta(ev.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode face event metadata: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO face_events (id, timestamp, detected, confidence, quality_score, person_id, location, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.Timestamp, ev.Detected, ev.Confidence, ev.QualityScore, ev.PersonID, ev.Location, meta,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert face event: %w", err)
	}
	return nil
}

func insertEpiEvent(ctx context.Context, q querier, ev *domain.EpiEvent) error {
	meta, err := marshalMeta(ev.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode epi event metadata: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO epi_events (id, timestamp, epi_type, detected, confidence, properly_worn, person_id, location, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.Timestamp, string(ev.EpiType), ev.Detected, ev.Confidence, ev.ProperlyWorn, ev.PersonID, ev.Location, meta,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert epi event: %w", err)
	}
	return nil
}

func insertDecision(ctx context.Context, q querier, d *domain.Decision) error {
	meta, err := marshalMeta(d.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode decision metadata: %w", err)
	}
	epiIDs, err := json.Marshal(d.EpiEventIDs)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode epi event ids: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO decisions (id, timestamp, decision, person_id, location, face_event_id, epi_event_ids, reason, confidence_score, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Timestamp, string(d.Decision), d.PersonID, d.Location, d.FaceEventID, epiIDs, d.Reason, d.ConfidenceScore, meta,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert decision: %w", err)
	}
	return nil
}

func (s *Store) ListFaceEvents(ctx context.Context, limit int) ([]domain.FaceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, detected, confidence, quality_score, person_id, location, metadata
		FROM face_events
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query face events: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]domain.FaceEvent, 0)
	for rows.Next() {
		var ev domain.FaceEvent
		var personID, location sql.NullString
		var meta []byte

		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Detected, &ev.Confidence, &ev.QualityScore, &personID, &location, &meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan face event: %w", err)
		}
		ev.PersonID = nullable(personID)
		ev.Location = nullable(location)
		if ev.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode face event metadata: %w", err)
		}
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func (s *Store) ListEpiEvents(ctx context.Context, limit int) ([]domain.EpiEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, epi_type, detected, confidence, properly_worn, person_id, location, metadata
		FROM epi_events
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query epi events: %w", err)
	}
	defer rows.Close()

	results := make([]domain.EpiEvent, 0)
	for rows.Next() {
		var ev domain.EpiEvent
		var epiType string
		var personID, location sql.NullString
		var meta []byte

		if err := rows.Scan(&ev.ID, &ev.Timestamp, &epiType, &ev.Detected, &ev.Confidence, &ev.ProperlyWorn, &personID, &location, &meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan epi event: %w", err)
		}
		ev.EpiType = domain.EpiType(epiType)
		ev.PersonID = nullable(personID)
		ev.Location = nullable(location)
		if ev.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode epi event metadata: %w", err)
		}
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func (s *Store) ListDecisions(ctx context.Context, limit int, status domain.DecisionStatus) ([]domain.Decision, error) {
	query := `
		SELECT id, timestamp, decision, person_id, location, face_event_id, epi_event_ids, reason, confidence_score, metadata
		FROM decisions`

	args := []any{limit}
	if status != "" {
		query += ` WHERE decision = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY timestamp DESC, seq DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query decisions: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Decision, 0)
	for rows.Next() {
		var d domain.Decision
		var decision string
		var personID, location sql.NullString
		var epiIDs, meta []byte

		if err := rows.Scan(&d.ID, &d.Timestamp, &decision, &personID, &location, &d.FaceEventID, &epiIDs, &d.Reason, &d.ConfidenceScore, &meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan decision: %w", err)
		}
		d.Decision = domain.DecisionStatus(decision)
		d.PersonID = nullable(personID)
		d.Location = nullable(location)
		d.EpiEventIDs = make([]string, 0)
		if len(epiIDs) > 0 {
			if err := json.Unmarshal(epiIDs, &d.EpiEventIDs); err != nil {
				return nil, fmt.Errorf("postgres: failed to decode epi event ids: %w", err)
			}
		}
		if d.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode decision metadata: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// Stats собирает сводные счетчики. Разбивку по статусам решений делаем
// одним проходом через COUNT(*) FILTER.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM face_events),
			(SELECT COUNT(*) FROM epi_events)`).
		Scan(&st.TotalFaceEvents, &st.TotalEpiEvents)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: failed to count events: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE decision = 'approved'),
			COUNT(*) FILTER (WHERE decision = 'rejected'),
			COUNT(*) FILTER (WHERE decision = 'pending')
		FROM decisions`).
		Scan(&st.TotalDecisions, &st.ApprovedDecisions, &st.RejectedDecisions, &st.PendingDecisions)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: failed to count decisions: %w", err)
	}

	return st, nil
}

// ClearAll удаляет все записи трех коллекций в одной транзакции:
// частичная очистка снаружи не видна, при ошибке называем коллекцию.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin clear tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"decisions", "epi_events", "face_events"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("postgres: failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit clear: %w", err)
	}
	return nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	val := v.String
	return &val
}

func marshalMeta(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMeta(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
