package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ratebench/internal/pricing"
)

// ObservationStore persists raw market quotes.
type ObservationStore interface {
	InsertObservations(ctx context.Context, batchID uuid.UUID, observations []pricing.PriceObservation) error
	LoadObservations(ctx context.Context) ([]pricing.PriceObservation, error)
}

// AggregateStore persists per-group price statistics.
type AggregateStore interface {
	SaveAggregate(ctx context.Context, record pricing.AggregateRecord) error
	LoadAggregates(ctx context.Context, date *time.Time) ([]pricing.AggregateRecord, error)
	ListAggregates(ctx context.Context, filter AggregateFilter) ([]pricing.AggregateRecord, error)
}

// UserRateStore persists contracted user rates.
type UserRateStore interface {
	InsertUserRates(ctx context.Context, batchID uuid.UUID, rates []pricing.UserRate) error
	LoadUserRates(ctx context.Context, userEmail string) ([]pricing.UserRate, error)
}

// RecordStore is the full record boundary used by the aggregation and matching passes.
type RecordStore interface {
	ObservationStore
	AggregateStore
	UserRateStore
}

// Transactor runs fn against a transaction-scoped RecordStore. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	WithTx(ctx context.Context, fn func(RecordStore) error) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// AggregateFilter narrows ListAggregates. Zero values mean no restriction.
type AggregateFilter struct {
	Origin      string
	Destination string
	From        *time.Time
	To          *time.Time
	Limit       uint64
}
