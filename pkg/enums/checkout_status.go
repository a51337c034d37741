package enums

import "fmt"

// AbandonedCheckoutStatus tracks whether a saved checkout was recovered.
type AbandonedCheckoutStatus string

const (
	AbandonedCheckoutStatusOpen      AbandonedCheckoutStatus = "OPEN"
	AbandonedCheckoutStatusConverted AbandonedCheckoutStatus = "CONVERTED"
)

var validAbandonedCheckoutStatuses = []AbandonedCheckoutStatus{
	AbandonedCheckoutStatusOpen,
	AbandonedCheckoutStatusConverted,
}

// String implements fmt.Stringer.
func (a AbandonedCheckoutStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AbandonedCheckoutStatus.
func (a AbandonedCheckoutStatus) IsValid() bool {
	for _, candidate := range validAbandonedCheckoutStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAbandonedCheckoutStatus converts raw input into an AbandonedCheckoutStatus.
func ParseAbandonedCheckoutStatus(value string) (AbandonedCheckoutStatus, error) {
	for _, candidate := range validAbandonedCheckoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid abandoned checkout status %q", value)
}
