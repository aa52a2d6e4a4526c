package engine

import (
	"fmt"

	"commission-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AgentInput is everything the calculator needs to know about one agent.
// Rate is nil when the agent has no configured commission rate.
// LinkedSecondaryRates are the rates of the agent's currently-linked
// secondaries (primaries only); a nil entry means that secondary has no
// configured rate.
type AgentInput struct {
	Tier                 models.AgentTier
	Rate                 *decimal.Decimal
	LinkedSecondaryRates []*decimal.Decimal
}

// Snapshot is the calculator output for one agent over one order set.
// Paid/pending are settlement concerns layered on top by the reporter.
type Snapshot struct {
	DirectAmount       decimal.Decimal
	DirectCommission   decimal.Decimal
	SubordinateAmount  decimal.Decimal
	OverrideCommission decimal.Decimal
	TotalCommission    decimal.Decimal
	EffectiveRatePct   decimal.Decimal
	Warnings           []models.Warning
}

// Calculator turns classified orders into commission figures using the
// tier-specific formulas.
type Calculator struct {
	cfg        Config
	normalizer *Normalizer
}

// NewCalculator builds a Calculator from the engine config.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg, normalizer: NewNormalizer(cfg)}
}

// Compute applies the tier formula to one agent's classified orders.
//
//   - secondary (linked or independent): direct_amount × own_rate; the agent
//     keeps its full rate, a parent's override never reduces it
//   - primary: direct_amount × rate + subordinate_amount × (rate − mean rate
//     of currently-linked secondaries)
//
// A CurrencyMismatch on any order aborts the whole computation for this
// agent rather than producing a silently wrong total.
func (c *Calculator) Compute(agent AgentInput, orders Classified) (Snapshot, error) {
	var snap Snapshot

	rate := c.resolveRate(agent, &snap)

	directAmount, err := c.sumNormalized(orders.Direct)
	if err != nil {
		return Snapshot{}, err
	}
	snap.DirectAmount = directAmount
	snap.DirectCommission = directAmount.Mul(rate)

	if agent.Tier == models.TierPrimary {
		subAmount, err := c.sumNormalized(orders.Subordinate)
		if err != nil {
			return Snapshot{}, err
		}
		snap.SubordinateAmount = subAmount

		if len(agent.LinkedSecondaryRates) > 0 && subAmount.IsPositive() {
			spread := rate.Sub(c.averageSecondaryRate(agent.LinkedSecondaryRates, &snap))
			if spread.IsNegative() {
				snap.Warnings = append(snap.Warnings, models.Warning{
					Code:    models.WarnNegativeOverride,
					Message: fmt.Sprintf("secondary rates average above primary rate %s, override clamped to zero", rate),
				})
				spread = decimal.Zero
			}
			snap.OverrideCommission = subAmount.Mul(spread)
		}
	}

	snap.TotalCommission = snap.DirectCommission.Add(snap.OverrideCommission)

	totalAmount := snap.DirectAmount.Add(snap.SubordinateAmount)
	if totalAmount.IsZero() {
		// No eligible orders is not the same as a zero rate: fall back to
		// the agent's base rate instead of dividing by zero.
		snap.EffectiveRatePct = rate.Mul(hundred)
	} else {
		snap.EffectiveRatePct = snap.TotalCommission.Div(totalAmount).Mul(hundred)
	}

	return snap, nil
}

// sumNormalized sums orders in the canonical currency, normalizing each
// amount first. Mixing raw alternate-currency amounts into the sum is the
// historical inflate-by-7.15 bug; the normalizer makes that impossible here.
func (c *Calculator) sumNormalized(orders []models.Order) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, o := range orders {
		amount, err := c.normalizer.Normalize(o.Amount, o.PaymentMethod)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order %d: %w", o.ID, err)
		}
		sum = sum.Add(amount)
	}
	return sum, nil
}

func (c *Calculator) resolveRate(agent AgentInput, snap *Snapshot) decimal.Decimal {
	if agent.Rate != nil {
		return *agent.Rate
	}
	fallback := c.cfg.DefaultRate(agent.Tier)
	snap.Warnings = append(snap.Warnings, models.Warning{
		Code:    models.WarnDefaultRate,
		Message: fmt.Sprintf("no commission rate configured, using %s tier default %s", agent.Tier, fallback),
	})
	return fallback
}

// averageSecondaryRate is the simple unweighted mean across currently-linked
// secondaries. Missing rates are substituted with the linked-secondary
// default before averaging, each with its own warning.
func (c *Calculator) averageSecondaryRate(rates []*decimal.Decimal, snap *Snapshot) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rates {
		if r == nil {
			snap.Warnings = append(snap.Warnings, models.Warning{
				Code:    models.WarnDefaultRate,
				Message: fmt.Sprintf("linked secondary has no commission rate, using default %s", c.cfg.LinkedSecondaryDefaultRate),
			})
			sum = sum.Add(c.cfg.LinkedSecondaryDefaultRate)
			continue
		}
		sum = sum.Add(*r)
	}
	return sum.Div(decimal.NewFromInt(int64(len(rates))))
}
