package kvstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbliss/medbliss/internal/platform/db"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PostgresStore keeps slots in the kv_slots table. It joins a transaction
// opened by db.PoolTransactor when one is in the context.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) Get(ctx context.Context, sessionID, slot string) ([]byte, error) {
	var v []byte
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT value FROM kv_slots WHERE session_id = $1 AND slot = $2`,
		sessionID, slot).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *PostgresStore) Put(ctx context.Context, sessionID, slot string, value []byte) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO kv_slots (session_id, slot, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, slot)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		sessionID, slot, string(value))
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID, slot string) error {
	_, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM kv_slots WHERE session_id = $1 AND slot = $2`, sessionID, slot)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
