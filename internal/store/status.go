package store

import "fmt"

// Status tracks where a logged application stands.
type Status string

const (
	StatusInterested         Status = "interested"
	StatusApplied            Status = "applied"
	StatusAppliedViaAgent    Status = "applied_via_agent"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusOffer              Status = "offer"
	StatusRejected           Status = "rejected"
)

// Statuses lists every known status, in rough lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusInterested,
		StatusApplied,
		StatusAppliedViaAgent,
		StatusInterviewScheduled,
		StatusOffer,
		StatusRejected,
	}
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	for _, known := range Statuses() {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", s)
}
