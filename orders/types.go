package orders

// Order statuses
const (
	StatusPending        = "pending"
	StatusDesigning      = "designing"
	StatusApproved       = "approved"
	StatusProduction     = "production"
	StatusQualityControl = "quality_control"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
)

// Order priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Lifecycle lists the statuses in stage order.
var Lifecycle = []string{
	StatusPending,
	StatusDesigning,
	StatusApproved,
	StatusProduction,
	StatusQualityControl,
	StatusCompleted,
	StatusCancelled,
}

// OpenStatuses are the stages an order can still be worked in, in board order.
var OpenStatuses = []string{
	StatusPending,
	StatusDesigning,
	StatusApproved,
	StatusProduction,
	StatusQualityControl,
}

// validTransitions defines which status transitions are allowed.
// cancelled -> pending reopens a cancelled order.
var validTransitions = map[string][]string{
	StatusPending:        {StatusDesigning, StatusCancelled},
	StatusDesigning:      {StatusApproved, StatusCancelled},
	StatusApproved:       {StatusProduction, StatusCancelled},
	StatusProduction:     {StatusQualityControl, StatusCancelled},
	StatusQualityControl: {StatusCompleted, StatusCancelled},
	StatusCancelled:      {StatusPending},
}

// IsValidStatus reports whether s is a recognized order status.
func IsValidStatus(s string) bool {
	for _, status := range Lifecycle {
		if status == s {
			return true
		}
	}
	return false
}

// IsValidTransition checks if a status transition is allowed.
func IsValidTransition(from, to string) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from status.
func AllowedTransitions(status string) []string {
	return append([]string(nil), validTransitions[status]...)
}

// IsTerminal returns true if the status is a terminal state.
func IsTerminal(status string) bool {
	return status == StatusCompleted
}

func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
