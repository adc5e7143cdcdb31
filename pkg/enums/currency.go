package enums

// Currency is the ISO-4217 code orders are priced in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is a supported Currency.
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyEUR, CurrencyUSD:
		return true
	default:
		return false
	}
}
