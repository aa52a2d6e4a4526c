package models

import "errors"

var (
	// ErrAgentNotFound is returned when no agent matches the requested id
	ErrAgentNotFound = errors.New("agent not found")
	// ErrCurrencyMismatch is returned when an order's payment method maps to
	// no known normalization rule; the amount must never be summed as-is
	ErrCurrencyMismatch = errors.New("payment method has no currency normalization rule")
	// ErrUnknownWindow is returned for an unrecognized report window name
	ErrUnknownWindow = errors.New("unknown report window")
	// ErrInvalidRate is returned when an admin submits a rate outside (0, 1]
	ErrInvalidRate = errors.New("commission rate must be a fraction in (0, 1]")
	// ErrInvalidAmount is returned when a payout amount is not positive
	ErrInvalidAmount = errors.New("payout amount must be positive")
	// ErrNotLinked is returned when unlinking a secondary that has no parent
	ErrNotLinked = errors.New("secondary agent has no parent link")
)
