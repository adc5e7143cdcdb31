package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

type fakePendingReader struct {
	orders     []models.Order
	err        error
	lastCutoff time.Time
}

func (r *fakePendingReader) FindPendingBefore(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	r.lastCutoff = cutoff
	return r.orders, r.err
}

type fakeExpirer struct {
	expired []uuid.UUID
	failOn  map[uuid.UUID]error
	skipOn  map[uuid.UUID]bool
}

func (e *fakeExpirer) Expire(_ context.Context, order *models.Order) (bool, error) {
	if err, ok := e.failOn[order.ID]; ok {
		return false, err
	}
	if e.skipOn[order.ID] {
		return false, nil
	}
	e.expired = append(e.expired, order.ID)
	return true, nil
}

func TestOrderExpiryJobExpiresStaleOrders(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	stale := []models.Order{{ID: uuid.New()}, {ID: uuid.New()}}
	reader := &fakePendingReader{orders: stale}
	expirer := &fakeExpirer{}

	job := newOrderExpiryJob(t, reader, expirer, 30*time.Minute)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-30 * time.Minute)
	if !reader.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.lastCutoff)
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("expected 2 orders expired, got %d", len(expirer.expired))
	}
}

func TestOrderExpiryJobContinuesPastFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	reader := &fakePendingReader{orders: []models.Order{{ID: bad}, {ID: good}}}
	expirer := &fakeExpirer{failOn: map[uuid.UUID]error{bad: errors.New("boom")}}

	job := newOrderExpiryJob(t, reader, expirer, 30*time.Minute)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !strings.Contains(err.Error(), bad.String()) {
		t.Fatalf("expected error to name the failed order, got %v", err)
	}
	if len(expirer.expired) != 1 || expirer.expired[0] != good {
		t.Fatalf("expected the healthy order to still expire, got %v", expirer.expired)
	}
}

func TestOrderExpiryJobSkipsSettledOrders(t *testing.T) {
	settled := uuid.New()
	reader := &fakePendingReader{orders: []models.Order{{ID: settled}}}
	expirer := &fakeExpirer{skipOn: map[uuid.UUID]bool{settled: true}}

	job := newOrderExpiryJob(t, reader, expirer, 30*time.Minute)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.expired) != 0 {
		t.Fatalf("expected no expiries, got %v", expirer.expired)
	}
}

func TestOrderExpiryJobReaderError(t *testing.T) {
	reader := &fakePendingReader{err: errors.New("db down")}
	job := newOrderExpiryJob(t, reader, &fakeExpirer{}, 30*time.Minute)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newOrderExpiryJob(t *testing.T, reader pendingOrderReader, expirer orderExpirer, ttl time.Duration) *orderExpiryJob {
	t.Helper()
	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reader:     reader,
		Expirer:    expirer,
		PendingTTL: ttl,
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	job, ok := jobIface.(*orderExpiryJob)
	if !ok {
		t.Fatalf("expected orderExpiryJob, got %T", jobIface)
	}
	return job
}
