package orders

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
	"time"
)

// base32 without padding keeps redemption codes short and case-stable for
// manual entry at the counter.
var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderNumber returns the human-readable order reference shown to buyers
// and restaurants. Uniqueness is enforced by the orders table; the random
// suffix makes collisions within a day vanishingly unlikely.
func NewOrderNumber(now time.Time) (string, error) {
	suffix, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	return fmt.Sprintf("LB-%s-%06d", now.UTC().Format("20060102"), suffix.Int64()), nil
}

// NewRedemptionCode returns an unguessable single-use pickup code: 128 bits
// of crypto/rand entropy, base32-encoded.
func NewRedemptionCode() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("redemption code entropy: %w", err)
	}
	return codeEncoding.EncodeToString(raw[:]), nil
}
