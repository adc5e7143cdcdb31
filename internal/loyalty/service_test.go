package loyalty

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/pkg/db/models"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
)

func TestAwardIsIdempotentPerOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	buyerID := uuid.New()
	orderID := uuid.New()

	awarded, err := svc.Award(ctx, nil, buyerID, orderID, 10)
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if !awarded {
		t.Fatal("expected first award to create a credit")
	}

	awarded, err = svc.Award(ctx, nil, buyerID, orderID, 10)
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if awarded {
		t.Fatal("expected duplicate award to no-op")
	}

	var count int64
	if err := db.Model(&models.LoyaltyCredit{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		t.Fatalf("count credits: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one credit, got %d", count)
	}
}

func TestAwardValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Award(ctx, nil, uuid.Nil, uuid.New(), 10); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil buyer, got %v", err)
	}
	if _, err := svc.Award(ctx, nil, uuid.New(), uuid.New(), 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero points, got %v", err)
	}
}

func TestBalanceSumsCredits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	buyerID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := svc.Award(ctx, nil, buyerID, uuid.New(), 10); err != nil {
			t.Fatalf("award %d: %v", i, err)
		}
	}
	if _, err := svc.Award(ctx, nil, uuid.New(), uuid.New(), 10); err != nil {
		t.Fatalf("award other buyer: %v", err)
	}

	total, err := svc.Balance(ctx, buyerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if total != 30 {
		t.Fatalf("expected %d points, got %d", 30, total)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:loyalty_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.LoyaltyCredit{}); err != nil {
		t.Fatalf("migrate loyalty credits: %v", err)
	}
	return db
}
