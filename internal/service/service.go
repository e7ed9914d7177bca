package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ratebench/internal/alerting"
	"ratebench/internal/cache"
	"ratebench/internal/config"
	"ratebench/internal/metrics"
	"ratebench/internal/pricing"
	"ratebench/internal/storage"
)

// ErrNoNotifier is returned when a digest is requested without a configured channel.
var ErrNoNotifier = errors.New("no digest channel configured")

// AggregationResult describes one aggregation run.
type AggregationResult struct {
	Observations int
	Groups       int
	DryRun       bool
	// Skipped is set when another writer held the aggregation lock.
	Skipped    bool
	Aggregates []pricing.AggregateRecord
}

// ImportResult describes one file import.
type ImportResult struct {
	BatchID     uuid.UUID
	Rows        int
	Aggregation *AggregationResult
}

// Service orchestrates ingestion, aggregation, and savings matching.
type Service struct {
	store    storage.Transactor
	locker   storage.AdvisoryLocker
	lockKey  int64
	cache    cache.SavingsCache
	notifier alerting.Notifier
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

// New constructs the service. savingsCache, notifier and recorder may be nil.
func New(cfg *config.Config, store storage.Transactor, savingsCache cache.SavingsCache, notifier alerting.Notifier, recorder *metrics.Recorder, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		store:    store,
		locker:   locker,
		lockKey:  cfg.Scheduler.AdvisoryLockKey,
		cache:    savingsCache,
		notifier: notifier,
		metrics:  recorder,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// RunAggregation recomputes the aggregate of every observed group and upserts
// the results in a single transaction. With dryRun the aggregates are computed
// and returned without being written.
func (s *Service) RunAggregation(ctx context.Context, dryRun bool) (result AggregationResult, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveRun("aggregate", started, err) }()

	result.DryRun = dryRun
	if !dryRun {
		unlock, proceed, lockErr := s.acquireLock(ctx)
		if lockErr != nil {
			return result, lockErr
		}
		if !proceed {
			s.logger.Warn().Msg("skip aggregation because the lock is held by another writer")
			result.Skipped = true
			return result, nil
		}
		if unlock != nil {
			defer unlock()
		}
	}

	err = s.store.WithTx(ctx, func(tx storage.RecordStore) error {
		observations, err := tx.LoadObservations(ctx)
		if err != nil {
			return err
		}

		aggregates, err := pricing.Aggregate(observations)
		if err != nil {
			return err
		}

		result.Observations = len(observations)
		result.Groups = len(aggregates)
		result.Aggregates = aggregates
		if dryRun {
			return nil
		}

		for _, rec := range aggregates {
			if err := tx.SaveAggregate(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("aggregation run: %w", err)
	}

	s.logger.Info().
		Int("observations", result.Observations).
		Int("groups", result.Groups).
		Bool("dry_run", dryRun).
		Dur("elapsed", time.Since(started)).
		Msg("aggregation finished")

	if !dryRun {
		s.metrics.SetAggregation(result.Observations, result.Groups)
		s.invalidateSavings(ctx)
	}
	return result, nil
}

// Aggregate is a scheduler job that runs a full aggregation for the slot.
func (s *Service) Aggregate(ctx context.Context, slot time.Time) error {
	_, err := s.RunAggregation(ctx, false)
	return err
}

// Savings compares the user's rates valid on asOf with that day's aggregates.
// A nil asOf matches nothing and returns an empty result.
func (s *Service) Savings(ctx context.Context, userEmail string, asOf *time.Time) (records []pricing.SavingsRecord, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveRun("match", started, err) }()

	if asOf == nil {
		s.logger.Debug().Str("user_email", userEmail).Msg("no as-of date; nothing to match")
		return pricing.Match(pricing.MatchRequest{UserEmail: userEmail}), nil
	}
	day := pricing.Day(*asOf)

	if s.cache != nil {
		cached, cacheErr := s.cache.GetSavings(ctx, userEmail, day)
		switch {
		case cacheErr == nil:
			s.metrics.AddSavings("cache", len(cached))
			return cached, nil
		case !errors.Is(cacheErr, cache.ErrCacheMiss):
			s.logger.Warn().Err(cacheErr).Msg("savings cache read failed")
		}
	}

	err = s.store.WithTx(ctx, func(tx storage.RecordStore) error {
		aggregates, err := tx.LoadAggregates(ctx, &day)
		if err != nil {
			return err
		}
		rates, err := tx.LoadUserRates(ctx, userEmail)
		if err != nil {
			return err
		}

		records = pricing.Match(pricing.MatchRequest{
			UserEmail:  userEmail,
			AsOf:       &day,
			Aggregates: aggregates,
			UserRates:  rates,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("savings for %s: %w", userEmail, err)
	}

	s.metrics.AddSavings("store", len(records))
	s.logger.Info().
		Str("user_email", userEmail).
		Str("as_of", day.Format(pricing.DateLayout)).
		Int("records", len(records)).
		Msg("savings matched")

	if s.cache != nil {
		if err := s.cache.SetSavings(ctx, userEmail, day, records); err != nil {
			s.logger.Warn().Err(err).Msg("savings cache write failed")
		}
	}
	return records, nil
}

// ImportMarket stores observations under a new batch and, when aggregate is
// set, refreshes the aggregates afterwards.
func (s *Service) ImportMarket(ctx context.Context, observations []pricing.PriceObservation, aggregate bool) (ImportResult, error) {
	result := ImportResult{BatchID: uuid.New(), Rows: len(observations)}

	err := s.store.WithTx(ctx, func(tx storage.RecordStore) error {
		return tx.InsertObservations(ctx, result.BatchID, observations)
	})
	if err != nil {
		return result, fmt.Errorf("import market data: %w", err)
	}
	s.metrics.AddImported("market", len(observations))
	s.logger.Info().Str("batch_id", result.BatchID.String()).Int("rows", result.Rows).Msg("market data imported")

	if aggregate {
		agg, err := s.RunAggregation(ctx, false)
		if err != nil {
			return result, err
		}
		result.Aggregation = &agg
	}
	return result, nil
}

// ImportUserRates stores a user's contracted rates under a new batch.
func (s *Service) ImportUserRates(ctx context.Context, rates []pricing.UserRate) (ImportResult, error) {
	result := ImportResult{BatchID: uuid.New(), Rows: len(rates)}

	err := s.store.WithTx(ctx, func(tx storage.RecordStore) error {
		return tx.InsertUserRates(ctx, result.BatchID, rates)
	})
	if err != nil {
		return result, fmt.Errorf("import user rates: %w", err)
	}
	s.metrics.AddImported("user_rates", len(rates))
	s.logger.Info().Str("batch_id", result.BatchID.String()).Int("rows", result.Rows).Msg("user rates imported")

	s.invalidateSavings(ctx)
	return result, nil
}

// SendDigest notifies the configured channel with a summary of records.
func (s *Service) SendDigest(ctx context.Context, userEmail string, asOf time.Time, records []pricing.SavingsRecord) error {
	if s.notifier == nil {
		return ErrNoNotifier
	}
	return s.notifier.Notify(ctx, alerting.NewDigest(userEmail, pricing.Day(asOf), records))
}

func (s *Service) invalidateSavings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSavings(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate cached savings")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
