package enums

import "fmt"

// PaymentOrderStatus tracks a single gateway payment attempt.
type PaymentOrderStatus string

const (
	PaymentOrderStatusCreated   PaymentOrderStatus = "created"
	PaymentOrderStatusConfirmed PaymentOrderStatus = "confirmed"
	PaymentOrderStatusFailed    PaymentOrderStatus = "failed"
)

var validPaymentOrderStatuses = []PaymentOrderStatus{
	PaymentOrderStatusCreated,
	PaymentOrderStatusConfirmed,
	PaymentOrderStatusFailed,
}

// String implements fmt.Stringer.
func (s PaymentOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s PaymentOrderStatus) IsValid() bool {
	for _, candidate := range validPaymentOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentOrderStatus converts raw input into a PaymentOrderStatus.
func ParsePaymentOrderStatus(value string) (PaymentOrderStatus, error) {
	for _, candidate := range validPaymentOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment order status %q", value)
}
