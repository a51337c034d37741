package enums

import "fmt"

// CoinSource tags the origin of a coin ledger entry.
type CoinSource string

const (
	CoinSourceSpendOrder CoinSource = "SPEND_ORDER"
	CoinSourceRefund     CoinSource = "REFUND"
	CoinSourceReferral   CoinSource = "REFERRAL"
	CoinSourcePromotion  CoinSource = "PROMOTION"
	CoinSourceAdjustment CoinSource = "ADJUSTMENT"
)

var validCoinSources = []CoinSource{
	CoinSourceSpendOrder,
	CoinSourceRefund,
	CoinSourceReferral,
	CoinSourcePromotion,
	CoinSourceAdjustment,
}

// String implements fmt.Stringer.
func (c CoinSource) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CoinSource.
func (c CoinSource) IsValid() bool {
	for _, candidate := range validCoinSources {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCoinSource converts raw input into a CoinSource.
func ParseCoinSource(value string) (CoinSource, error) {
	for _, candidate := range validCoinSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coin source %q", value)
}
