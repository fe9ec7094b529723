package service

import (
	"context"
	"time"

	"quote-service/internal/redisclient"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// QuotaService enforces the monthly item-send quota for quota-limited
// accounts, backed by atomic redis counters
type QuotaService struct {
	redis        *redisclient.Client
	monthlyLimit int
	logger       *zap.Logger
}

// NewQuotaService creates a quota service
func NewQuotaService(redis *redisclient.Client, monthlyLimit int) *QuotaService {
	return &QuotaService{
		redis:        redis,
		monthlyLimit: monthlyLimit,
		logger:       util.GetLogger(),
	}
}

// CanSendItems consumes count items from the requester's monthly quota and
// reports whether the send is allowed. Consumption is atomic so concurrent
// submissions cannot both pass on the last remaining slot.
func (qs *QuotaService) CanSendItems(ctx context.Context, userID int64, count int) (bool, error) {
	remaining, ok, err := qs.redis.ConsumeQuota(ctx, userID, count, qs.monthlyLimit, monthTTL())
	if err != nil {
		return false, err
	}
	if !ok {
		qs.logger.Info("Monthly send quota exceeded",
			zap.Int64("user_id", userID),
			zap.Int("requested", count))
		return false, nil
	}
	qs.logger.Debug("Quota consumed",
		zap.Int64("user_id", userID),
		zap.Int("requested", count),
		zap.Int("remaining", remaining))
	return true, nil
}

// ReleaseItems gives consumed quota back after a submit that claimed it
// failed to commit
func (qs *QuotaService) ReleaseItems(ctx context.Context, userID int64, count int) error {
	if err := qs.redis.ReleaseQuota(ctx, userID, count); err != nil {
		return err
	}
	qs.logger.Info("Quota released",
		zap.Int64("user_id", userID),
		zap.Int("count", count))
	return nil
}

// GetRemainingItems reports the requester's unconsumed monthly quota
func (qs *QuotaService) GetRemainingItems(ctx context.Context, userID int64) (int, error) {
	return qs.redis.RemainingQuota(ctx, userID, qs.monthlyLimit)
}

// monthTTL returns the time until the current UTC month rolls over, which
// bounds the quota counter's lifetime
func monthTTL() time.Duration {
	now := time.Now().UTC()
	nextMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return nextMonth.Sub(now)
}
