package models

import "time"

// Event types
const (
	EventTypeCommissionPaid    = "COMMISSION_PAID"
	EventTypeAgentRateUpdated  = "AGENT_RATE_UPDATED"
	EventTypeSecondaryUnlinked = "SECONDARY_UNLINKED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CommissionPaidEvent published when an administrator records a payout
type CommissionPaidEvent struct {
	BaseEvent
	AgentTier AgentTier `json:"agent_tier"`
	AgentID   int64     `json:"agent_id"`
	Amount    string    `json:"amount"`
	EnteredBy string    `json:"entered_by,omitempty"`
}

// AgentRateUpdatedEvent published when an administrator edits a commission rate
type AgentRateUpdatedEvent struct {
	BaseEvent
	AgentTier AgentTier `json:"agent_tier"`
	AgentID   int64     `json:"agent_id"`
	Rate      string    `json:"rate"`
}

// SecondaryUnlinkedEvent published when a primary severs a secondary's link
type SecondaryUnlinkedEvent struct {
	BaseEvent
	SecondaryID int64  `json:"secondary_id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}
