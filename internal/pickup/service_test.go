package pickup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(
		testTxRunner{db: db},
		orders.NewRepository(db),
		outbox.NewService(outbox.NewRepository(db), nil),
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRedeem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusReady)

	redemption, err := svc.Redeem(ctx, order.RestaurantID, order.RedemptionCode)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.Status != enums.OrderStatusRedeemed {
		t.Fatalf("expected redeemed, got %s", redemption.Status)
	}
	if redemption.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected order number %s", redemption.OrderNumber)
	}

	var stored models.Order
	if err := db.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != enums.OrderStatusRedeemed {
		t.Fatalf("expected stored status redeemed, got %s", stored.Status)
	}
	if stored.RedeemedAt == nil {
		t.Fatal("expected redeemed_at set")
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderRedeemed, order.ID).
		Count(&events).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one order.redeemed event, got %d", events)
	}
}

func TestRedeemPaidOrderWithoutReadyStep(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusPaid)

	redemption, err := svc.Redeem(ctx, order.RestaurantID, order.RedemptionCode)
	if err != nil {
		t.Fatalf("redeem paid order: %v", err)
	}
	if redemption.Status != enums.OrderStatusRedeemed {
		t.Fatalf("expected redeemed, got %s", redemption.Status)
	}
}

func TestRedeemCodeIsSingleUse(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)
	order := seedOrder(t, db, enums.OrderStatusReady)

	if _, err := svc.Redeem(ctx, order.RestaurantID, order.RedemptionCode); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := svc.Redeem(ctx, order.RestaurantID, order.RedemptionCode)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on second scan, got %v", err)
	}
}

func TestRedeemGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Redeem(ctx, uuid.New(), "NOSUCHCODE")
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("foreign restaurant is forbidden", func(t *testing.T) {
		order := seedOrder(t, db, enums.OrderStatusReady)
		_, err := svc.Redeem(ctx, uuid.New(), order.RedemptionCode)
		if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("expected forbidden for foreign restaurant, got %v", err)
		}

		var stored models.Order
		if err := db.First(&stored, "id = ?", order.ID).Error; err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if stored.Status != enums.OrderStatusReady {
			t.Fatalf("foreign scan must not move the order, got %s", stored.Status)
		}
	})

	t.Run("pending order not redeemable", func(t *testing.T) {
		order := seedOrder(t, db, enums.OrderStatusPending)
		_, err := svc.Redeem(ctx, order.RestaurantID, order.RedemptionCode)
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict, got %v", err)
		}
	})

	t.Run("cancelled order not redeemable", func(t *testing.T) {
		order := seedOrder(t, db, enums.OrderStatusCancelled)
		_, err := svc.Redeem(ctx, order.RestaurantID, order.RedemptionCode)
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict, got %v", err)
		}
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := svc.Redeem(ctx, uuid.New(), "  ")
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	now := time.Now().UTC()
	number, err := orders.NewOrderNumber(now)
	if err != nil {
		t.Fatalf("order number: %v", err)
	}
	code, err := orders.NewRedemptionCode()
	if err != nil {
		t.Fatalf("redemption code: %v", err)
	}
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      number,
		BuyerID:          uuid.New(),
		ListingID:        uuid.New(),
		RestaurantID:     uuid.New(),
		Quantity:         2,
		Currency:         enums.CurrencyEUR,
		SubtotalCents:    998,
		PlatformFeeCents: 75,
		TotalCents:       1073,
		PickupStart:      now.Add(-time.Hour),
		PickupEnd:        now.Add(2 * time.Hour),
		RedemptionCode:   code,
		Status:           status,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:pickup_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.Payment{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
