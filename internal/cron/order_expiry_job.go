package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

const defaultPendingOrderTTL = 30 * time.Minute

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderExpirer interface {
	Expire(ctx context.Context, order *models.Order) (bool, error)
}

// OrderExpiryJobParams configure the pending order sweep.
type OrderExpiryJobParams struct {
	Logger     *logger.Logger
	Reader     pendingOrderReader
	Expirer    orderExpirer
	PendingTTL time.Duration
}

// NewOrderExpiryJob builds the job that expires pending orders whose payment
// window elapsed and puts their bags back on sale.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		reader:  params.Reader,
		expirer: params.Expirer,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	reader  pendingOrderReader
	expirer orderExpirer
	ttl     time.Duration
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

// Run expires each stale order in its own transaction, so one poisoned row
// cannot block the rest of the sweep. Errors are collected and reported
// together.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.reader.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale pending orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	expired := 0
	for i := range stale {
		order := &stale[i]
		applied, err := j.expirer.Expire(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if applied {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return errs
}
