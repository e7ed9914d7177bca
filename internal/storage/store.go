package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ratebench/internal/pricing"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

//go:embed schema.sql
var schemaSQL string

const (
	upsertAggregateSQL = `INSERT INTO aggregated_market_prices (
        date,
        origin,
        destination,
        min_price,
        percentile_10_price,
        median_price,
        percentile_90_price,
        max_price
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (date, origin, destination) DO UPDATE
    SET
        min_price           = EXCLUDED.min_price,
        percentile_10_price = EXCLUDED.percentile_10_price,
        median_price        = EXCLUDED.median_price,
        percentile_90_price = EXCLUDED.percentile_90_price,
        max_price           = EXCLUDED.max_price,
        updated_at          = now();`

	loadObservationsSQL = `SELECT
        date,
        origin,
        destination,
        price
    FROM market_rates
    ORDER BY date, origin, destination, id;`

	loadUserRatesSQL = `SELECT
        user_email,
        origin,
        destination,
        effective_date,
        expiry_date,
        price,
        annual_volume
    FROM user_rates
    WHERE user_email = $1
    ORDER BY effective_date, origin, destination, id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store gives access to market rates, aggregates and user rates.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables and indexes used by the store.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a single transaction. Any error or panic from fn rolls
// the transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(RecordStore) error) (err error) {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	if err = fn(records{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertObservations appends market quotes under one import batch.
func (s *Store) InsertObservations(ctx context.Context, batchID uuid.UUID, observations []pricing.PriceObservation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return records{q: pool}.InsertObservations(ctx, batchID, observations)
}

// LoadObservations scans every stored market quote.
func (s *Store) LoadObservations(ctx context.Context) ([]pricing.PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return records{q: pool}.LoadObservations(ctx)
}

// SaveAggregate inserts or replaces the aggregate of one group.
func (s *Store) SaveAggregate(ctx context.Context, record pricing.AggregateRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return records{q: pool}.SaveAggregate(ctx, record)
}

// LoadAggregates lists aggregates, restricted to one day when date is set.
func (s *Store) LoadAggregates(ctx context.Context, date *time.Time) ([]pricing.AggregateRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return records{q: pool}.LoadAggregates(ctx, date)
}

// ListAggregates lists aggregates matching filter.
func (s *Store) ListAggregates(ctx context.Context, filter AggregateFilter) ([]pricing.AggregateRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return records{q: pool}.ListAggregates(ctx, filter)
}

// InsertUserRates appends user rates under one import batch.
func (s *Store) InsertUserRates(ctx context.Context, batchID uuid.UUID, rates []pricing.UserRate) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return records{q: pool}.InsertUserRates(ctx, batchID, rates)
}

// LoadUserRates lists every rate stored for userEmail.
func (s *Store) LoadUserRates(ctx context.Context, userEmail string) ([]pricing.UserRate, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	return records{q: pool}.LoadUserRates(ctx, userEmail)
}

var (
	_ RecordStore    = (*Store)(nil)
	_ Transactor     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
