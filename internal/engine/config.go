package engine

import (
	"time"

	"commission-service/internal/models"

	"github.com/shopspring/decimal"
)

// Config carries every rate and rule the engine needs. It is built once at
// startup and passed in explicitly; the engine never reads globals, so tests
// can override any value without touching process state.
type Config struct {
	// PrimaryDefaultRate is substituted when a primary agent has no
	// configured commission rate.
	PrimaryDefaultRate decimal.Decimal
	// SecondaryDefaultRate is substituted for independent secondaries.
	SecondaryDefaultRate decimal.Decimal
	// LinkedSecondaryDefaultRate is substituted for linked secondaries.
	LinkedSecondaryDefaultRate decimal.Decimal

	// ConversionRate divides alternate-rail amounts into the canonical
	// reporting currency.
	ConversionRate decimal.Decimal
	// CanonicalMethods settle in the reporting currency as-is.
	CanonicalMethods []string
	// AlternateMethods settle on the local-currency rail.
	AlternateMethods []string

	// EligibleStatuses is the set of order statuses that count toward
	// commission.
	EligibleStatuses []models.OrderStatus

	// ReportLocation fixes the calendar used for today/month windows. Agents
	// and operators sit in different zones; window boundaries must not
	// depend on where the server happens to run.
	ReportLocation *time.Location
}

// DefaultConfig returns the documented business defaults.
func DefaultConfig() Config {
	return Config{
		PrimaryDefaultRate:         decimal.NewFromFloat(0.40),
		SecondaryDefaultRate:       decimal.NewFromFloat(0.25),
		LinkedSecondaryDefaultRate: decimal.NewFromFloat(0.30),
		ConversionRate:             decimal.NewFromFloat(7.15),
		CanonicalMethods:           []string{models.PaymentMethodCard, models.PaymentMethodPaypal},
		AlternateMethods:           []string{models.PaymentMethodAlipay, models.PaymentMethodWechat},
		EligibleStatuses: []models.OrderStatus{
			models.OrderStatusPaid,
			models.OrderStatusConfigured,
			models.OrderStatusActive,
		},
		ReportLocation: time.FixedZone("UTC+8", 8*60*60),
	}
}

// DefaultRate returns the documented fallback rate for a tier.
func (c Config) DefaultRate(tier models.AgentTier) decimal.Decimal {
	switch tier {
	case models.TierPrimary:
		return c.PrimaryDefaultRate
	case models.TierSecondary:
		return c.LinkedSecondaryDefaultRate
	default:
		return c.SecondaryDefaultRate
	}
}
