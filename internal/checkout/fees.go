package checkout

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
)

// PlatformFeeCents computes the marketplace cut on a subtotal. The percent
// comes from config as a string so operators can set fractional rates
// ("7.5") without float drift; rounding is half-up to the nearest cent.
func PlatformFeeCents(subtotalCents int, percent string) (int, error) {
	if subtotalCents < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}
	rate, err := decimal.NewFromString(percent)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse platform fee percent")
	}
	if rate.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "platform fee percent cannot be negative")
	}
	fee := decimal.NewFromInt(int64(subtotalCents)).
		Mul(rate).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(fee.IntPart()), nil
}
