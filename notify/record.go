// Package notify fetches, normalizes and delivers marketplace
// notifications: the REST client, the visibility-aware poller, and the
// record model shared with the toast queue and the read-state aggregator.
package notify

import "time"

// Priority orders notification delivery. Unknown values deliver as normal.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the delivery order of p; lower delivers first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Record is a server-owned notification. The client holds a read-through
// cache of these plus a locally mutated IsRead flag.
type Record struct {
	ID               string
	Title            string
	Body             string
	Category         string // booking, message, payment, review, system
	Priority         Priority
	IsRead           bool
	CreatedAt        time.Time
	RelatedEntityRef string
}
