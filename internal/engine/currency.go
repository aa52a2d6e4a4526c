package engine

import (
	"fmt"

	"commission-service/internal/models"

	"github.com/shopspring/decimal"
)

// Normalizer converts order amounts into the canonical reporting currency.
// It is pure: no agent or order-status knowledge, only payment method and
// conversion rate.
type Normalizer struct {
	rate      decimal.Decimal
	canonical map[string]struct{}
	alternate map[string]struct{}
}

// NewNormalizer builds a Normalizer from the engine config.
func NewNormalizer(cfg Config) *Normalizer {
	n := &Normalizer{
		rate:      cfg.ConversionRate,
		canonical: make(map[string]struct{}, len(cfg.CanonicalMethods)),
		alternate: make(map[string]struct{}, len(cfg.AlternateMethods)),
	}
	for _, m := range cfg.CanonicalMethods {
		n.canonical[m] = struct{}{}
	}
	for _, m := range cfg.AlternateMethods {
		n.alternate[m] = struct{}{}
	}
	return n
}

// Normalize returns amount in the canonical currency. An unmapped payment
// method is an error, never a pass-through: summing a raw alternate-currency
// amount inflates totals by the full conversion factor.
func (n *Normalizer) Normalize(amount decimal.Decimal, paymentMethod string) (decimal.Decimal, error) {
	if _, ok := n.canonical[paymentMethod]; ok {
		return amount, nil
	}
	if _, ok := n.alternate[paymentMethod]; ok {
		return amount.Div(n.rate), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", models.ErrCurrencyMismatch, paymentMethod)
}
