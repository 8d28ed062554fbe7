package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	apperrors "github.com/ls5986/habexa-backend/internal/pkg/errors"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// QuotaService tracks per-account monthly analysis usage. Counters live in
// Redis so concurrent runs on the same account never double-spend.
type QuotaService interface {
	// Reserve atomically charges n items against the account's period
	// allowance. Returns ErrQuotaExceeded (with the charge rolled back) when
	// the allowance would be exceeded.
	Reserve(ctx context.Context, accountID uuid.UUID, n int) error
	// Release returns n reserved items that were never analyzed.
	Release(ctx context.Context, accountID uuid.UUID, n int) error
	// Usage reports items used and the configured limit for the current period.
	Usage(ctx context.Context, accountID uuid.UUID) (used int64, limit int64, err error)
}

type quotaService struct {
	log   *logger.Logger
	store rediscl.Store
	limit int64
	// periodKey returns the current billing period suffix, injectable for tests.
	periodKey func() string
}

func NewQuotaService(baseLog *logger.Logger, store rediscl.Store, limit int64, periodKey func() string) QuotaService {
	if periodKey == nil {
		periodKey = func() string { return time.Now().UTC().Format("2006-01") }
	}
	return &quotaService{
		log:       baseLog.With("service", "QuotaService"),
		store:     store,
		limit:     limit,
		periodKey: periodKey,
	}
}

func (s *quotaService) key(accountID uuid.UUID) string {
	return fmt.Sprintf("quota:%s:%s", accountID, s.periodKey())
}

// Reserve charges up front with an atomic increment so two concurrent runs
// on the same account cannot both pass a read-then-check and overshoot.
func (s *quotaService) Reserve(ctx context.Context, accountID uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}
	used, err := s.store.IncrBy(ctx, s.key(accountID), int64(n))
	if err != nil {
		return fmt.Errorf("quota reserve: %w", err)
	}
	if s.limit > 0 && used > s.limit {
		if _, rbErr := s.store.IncrBy(ctx, s.key(accountID), -int64(n)); rbErr != nil {
			s.log.Error("Quota rollback failed", "account_id", accountID, "error", rbErr)
		}
		s.log.Warn("Quota exceeded",
			"account_id", accountID,
			"used", used-int64(n),
			"requested", n,
			"limit", s.limit,
		)
		return apperrors.ErrQuotaExceeded
	}
	return nil
}

func (s *quotaService) Release(ctx context.Context, accountID uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := s.store.IncrBy(ctx, s.key(accountID), -int64(n)); err != nil {
		return fmt.Errorf("quota release: %w", err)
	}
	return nil
}

func (s *quotaService) Usage(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	used, _, err := s.store.GetInt(ctx, s.key(accountID))
	if err != nil {
		return 0, s.limit, fmt.Errorf("quota read: %w", err)
	}
	return used, s.limit, nil
}
