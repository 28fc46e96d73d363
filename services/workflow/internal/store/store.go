package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/idempotency"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

var (
	_ workflow.Store    = (*Store)(nil)
	_ idempotency.Store = (*Store)(nil)
)

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// View runs fn in a read-only repeatable-read transaction so every query
// sees the same snapshot.
func (s *Store) View(ctx context.Context, fn func(workflow.Reader) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update runs fn in a read-write transaction. Single-row reads inside it
// take row locks.
func (s *Store) Update(ctx context.Context, fn func(workflow.Tx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{q: tx, lock: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) UserByTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, selectUser+` WHERE token_hash=$1`, tokenHash))
	return u, notFound(err, "user")
}

func (s *Store) GetIdempotencyRecord(ctx context.Context, actorID, key, endpoint string) (*idempotency.Record, error) {
	var rec idempotency.Record
	err := s.DB.QueryRow(ctx, `
SELECT actor_id,idempotency_key,endpoint,response_status,response_body
FROM workflow_idempotency_records
WHERE actor_id=$1 AND idempotency_key=$2 AND endpoint=$3
`, actorID, key, endpoint).Scan(&rec.ActorID, &rec.IdempotencyKey, &rec.Endpoint, &rec.ResponseStatus, &rec.ResponseBody)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveIdempotencyRecord(ctx context.Context, rec idempotency.Record) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO workflow_idempotency_records(actor_id,idempotency_key,endpoint,response_status,response_body)
VALUES($1,$2,$3,$4,$5::jsonb)
ON CONFLICT (actor_id,idempotency_key,endpoint) DO NOTHING
`, rec.ActorID, rec.IdempotencyKey, rec.Endpoint, rec.ResponseStatus, string(rec.ResponseBody))
	return err
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

// conflict maps unique violations to domain.ErrConflict.
func conflict(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", what, domain.ErrConflict)
	}
	return err
}
