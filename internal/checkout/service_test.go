package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/internal/inventory"
	"github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/pkg/config"
	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/gateway"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGateway struct {
	session *gateway.CheckoutSession
	err     error
	calls   int
	last    gateway.CheckoutParams
}

func (g *stubGateway) CreateCheckout(_ context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	g.calls++
	g.last = params
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

func testConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		PlatformFeePercent: "7.5",
		PendingOrderTTL:    30 * time.Minute,
	}
}

func TestExecuteCreatesPendingOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	listing := seedListing(t, db, 3, 499)
	gw := &stubGateway{session: &gateway.CheckoutSession{
		SessionID:   "cs_test_1",
		RedirectURL: "https://pay.example.com/cs_test_1",
	}}

	svc := newTestService(t, db, gw)
	result, err := svc.Execute(ctx, uuid.New(), Input{ListingID: listing.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.PaymentPageURL != "https://pay.example.com/cs_test_1" {
		t.Fatalf("unexpected payment page url %q", result.PaymentPageURL)
	}
	// 2 x 499 = 998; 7.5% of 998 = 74.85 -> 75.
	if result.TotalCents != 998+75 {
		t.Fatalf("unexpected total %d", result.TotalCents)
	}

	var order models.Order
	if err := db.Preload("Payment").First(&order, "id = ?", result.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected order status %s", order.Status)
	}
	if order.SubtotalCents != 998 || order.PlatformFeeCents != 75 {
		t.Fatalf("unexpected pricing: subtotal=%d fee=%d", order.SubtotalCents, order.PlatformFeeCents)
	}
	if order.RedemptionCode == "" || order.OrderNumber == "" {
		t.Fatal("expected generated order number and redemption code")
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %+v", order.Payment)
	}
	if order.Payment.ProviderSessionID == nil || *order.Payment.ProviderSessionID != "cs_test_1" {
		t.Fatalf("expected provider session recorded, got %v", order.Payment.ProviderSessionID)
	}
	if order.Payment.AmountCents != result.TotalCents {
		t.Fatalf("payment amount %d != order total %d", order.Payment.AmountCents, result.TotalCents)
	}

	var stored models.Listing
	if err := db.First(&stored, "id = ?", listing.ID).Error; err != nil {
		t.Fatalf("reload listing: %v", err)
	}
	if stored.QuantityRemaining != 1 {
		t.Fatalf("expected remaining 1, got %d", stored.QuantityRemaining)
	}

	if gw.last.OrderRef != order.OrderNumber {
		t.Fatalf("gateway got reference %q, want %q", gw.last.OrderRef, order.OrderNumber)
	}
	if gw.last.RedirectTargets.SuccessURL == "" || gw.last.RedirectTargets.CancelURL == "" || gw.last.RedirectTargets.FailureURL == "" {
		t.Fatalf("expected all three redirect targets, got %+v", gw.last.RedirectTargets)
	}
}

func TestExecuteGatewayFailureCompensates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	listing := seedListing(t, db, 2, 500)
	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")}

	svc := newTestService(t, db, gw)
	_, err := svc.Execute(ctx, uuid.New(), Input{ListingID: listing.ID, Quantity: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	var stored models.Listing
	if err := db.First(&stored, "id = ?", listing.ID).Error; err != nil {
		t.Fatalf("reload listing: %v", err)
	}
	if stored.QuantityRemaining != 2 {
		t.Fatalf("expected stock restored to 2, got %d", stored.QuantityRemaining)
	}

	var orderCount, paymentCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if err := db.Model(&models.Payment{}).Count(&paymentCount).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if orderCount != 0 || paymentCount != 0 {
		t.Fatalf("expected compensation to remove order and payment, got %d/%d", orderCount, paymentCount)
	}
}

func TestExecuteInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	listing := seedListing(t, db, 1, 500)
	gw := &stubGateway{session: &gateway.CheckoutSession{SessionID: "cs", RedirectURL: "https://pay.example.com/cs"}}

	svc := newTestService(t, db, gw)
	_, err := svc.Execute(ctx, uuid.New(), Input{ListingID: listing.ID, Quantity: 2})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatal("gateway must not be called when the reservation fails")
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no order rows, got %d", orderCount)
	}
}

func TestExecuteValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	gw := &stubGateway{}
	svc := newTestService(t, db, gw)

	cases := []struct {
		name    string
		buyerID uuid.UUID
		input   Input
		code    pkgerrors.Code
	}{
		{"missing buyer", uuid.Nil, Input{ListingID: uuid.New(), Quantity: 1}, pkgerrors.CodeUnauthorized},
		{"missing listing", uuid.New(), Input{Quantity: 1}, pkgerrors.CodeValidation},
		{"zero quantity", uuid.New(), Input{ListingID: uuid.New()}, pkgerrors.CodeValidation},
		{"over cap", uuid.New(), Input{ListingID: uuid.New(), Quantity: MaxBagsPerOrder + 1}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Execute(ctx, tc.buyerID, tc.input)
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestPlatformFeeCents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		subtotal int
		percent  string
		want     int
	}{
		{1000, "7.5", 75},
		{998, "7.5", 75},
		{999, "7.5", 75},
		{100, "0", 0},
		{1, "7.5", 0},
		{10, "7.5", 1},
	}
	for _, tc := range cases {
		got, err := PlatformFeeCents(tc.subtotal, tc.percent)
		if err != nil {
			t.Fatalf("fee(%d, %s): %v", tc.subtotal, tc.percent, err)
		}
		if got != tc.want {
			t.Fatalf("fee(%d, %s) = %d, want %d", tc.subtotal, tc.percent, got, tc.want)
		}
	}

	if _, err := PlatformFeeCents(100, "abc"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad percent, got %v", err)
	}
	if _, err := PlatformFeeCents(100, "-1"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative percent, got %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB, gw checkoutGateway) Service {
	t.Helper()
	svc, err := NewService(
		testTxRunner{db: db},
		orders.NewRepository(db),
		inventory.NewLedger(nil),
		gw,
		testConfig(),
		"http://localhost:8080",
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedListing(t *testing.T, db *gorm.DB, qty, priceCents int) *models.Listing {
	t.Helper()
	now := time.Now().UTC()
	listing := &models.Listing{
		ID:                 uuid.New(),
		RestaurantID:       uuid.New(),
		Title:              "surprise bag",
		Currency:           enums.CurrencyEUR,
		OriginalPriceCents: priceCents * 3,
		PriceCents:         priceCents,
		QuantityTotal:      qty,
		QuantityRemaining:  qty,
		PickupStart:        now.Add(-time.Hour),
		PickupEnd:          now.Add(4 * time.Hour),
		Active:             true,
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Listing{}, &models.Order{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
