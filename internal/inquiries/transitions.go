package inquiries

import "github.com/angelmondragon/stockyard-backend/pkg/enums"

var allowedTransitions = map[enums.InquiryStatus][]enums.InquiryStatus{
	enums.InquiryStatusNew:        {enums.InquiryStatusContacted, enums.InquiryStatusClosed},
	enums.InquiryStatusContacted:  {enums.InquiryStatusInProgress, enums.InquiryStatusClosed},
	enums.InquiryStatusInProgress: {enums.InquiryStatusCompleted, enums.InquiryStatusClosed},
}

// CanTransition reports whether an inquiry may move from one status to another.
func CanTransition(from, to enums.InquiryStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from enums.InquiryStatus) []enums.InquiryStatus {
	next := allowedTransitions[from]
	out := make([]enums.InquiryStatus, len(next))
	copy(out, next)
	return out
}
