package enums

import "fmt"

// InquirySource records how a lead entered the system.
type InquirySource string

const (
	InquirySourceDirectContact   InquirySource = "direct_contact"
	InquirySourcePaymentFallback InquirySource = "payment_fallback"
)

var validInquirySources = []InquirySource{
	InquirySourceDirectContact,
	InquirySourcePaymentFallback,
}

// IsValid reports whether the source is recognized.
func (s InquirySource) IsValid() bool {
	for _, candidate := range validInquirySources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInquirySource converts raw input into an InquirySource.
func ParseInquirySource(value string) (InquirySource, error) {
	for _, candidate := range validInquirySources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inquiry source %q", value)
}

// InquiryStatus is the staff follow-up state of an inquiry.
type InquiryStatus string

const (
	InquiryStatusNew        InquiryStatus = "new"
	InquiryStatusContacted  InquiryStatus = "contacted"
	InquiryStatusInProgress InquiryStatus = "in_progress"
	InquiryStatusCompleted  InquiryStatus = "completed"
	InquiryStatusClosed     InquiryStatus = "closed"
)

var validInquiryStatuses = []InquiryStatus{
	InquiryStatusNew,
	InquiryStatusContacted,
	InquiryStatusInProgress,
	InquiryStatusCompleted,
	InquiryStatusClosed,
}

// String implements fmt.Stringer.
func (s InquiryStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s InquiryStatus) IsValid() bool {
	for _, candidate := range validInquiryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s InquiryStatus) IsTerminal() bool {
	return s == InquiryStatusCompleted || s == InquiryStatusClosed
}

// ParseInquiryStatus converts raw input into an InquiryStatus.
func ParseInquiryStatus(value string) (InquiryStatus, error) {
	for _, candidate := range validInquiryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inquiry status %q", value)
}

// AllocationStatus tracks whether an inquiry has an owner.
type AllocationStatus string

const (
	AllocationStatusUnallocated AllocationStatus = "unallocated"
	AllocationStatusAllocated   AllocationStatus = "allocated"
)

// IsValid reports whether the allocation status is recognized.
func (s AllocationStatus) IsValid() bool {
	return s == AllocationStatusUnallocated || s == AllocationStatusAllocated
}

// ParseAllocationStatus converts raw input into an AllocationStatus.
func ParseAllocationStatus(value string) (AllocationStatus, error) {
	candidate := AllocationStatus(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid allocation status %q", value)
	}
	return candidate, nil
}
