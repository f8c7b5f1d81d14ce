package postgres

import (
	"context"
	"fmt"
)

// Колонка seq — тай-брейк сортировки: при равных timestamp первее
// более поздняя вставка.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS face_events (
		seq           bigserial,
		id            text PRIMARY KEY,
		timestamp     timestamptz NOT NULL,
		detected      boolean NOT NULL,
		confidence    double precision NOT NULL,
		quality_score double precision NOT NULL,
		person_id     text,
		location      text,
		metadata      jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS epi_events (
		seq           bigserial,
		id            text PRIMARY KEY,
		timestamp     timestamptz NOT NULL,
		epi_type      text NOT NULL,
		detected      boolean NOT NULL,
		confidence    double precision NOT NULL,
		properly_worn boolean NOT NULL,
		person_id     text,
		location      text,
		metadata      jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS decisions (
		seq              bigserial,
		id               text PRIMARY KEY,
		timestamp        timestamptz NOT NULL,
		decision         text NOT NULL,
		person_id        text,
		location         text,
		face_event_id    text,
		epi_event_ids    jsonb,
		reason           text NOT NULL,
		confidence_score double precision NOT NULL,
		metadata         jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS idx_face_events_ts ON face_events (timestamp DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_epi_events_ts ON epi_events (timestamp DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions (timestamp DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions (decision)`,
}

// Migrate накатывает схему при старте. Идемпотентно.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migration failed: %w", err)
		}
	}
	return nil
}
