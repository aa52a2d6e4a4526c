// Package engine is the commission computation core: it turns a snapshot of
// orders and the agent hierarchy into per-agent commission figures. It is
// pure and read-only; all persistence, caching, and transport live outside.
package engine

import (
	"fmt"

	"commission-service/internal/models"

	"github.com/shopspring/decimal"
)

// Engine bundles the classifier, calculator, and rollup behind one entry
// point so callers thread a single Config through the whole pipeline.
type Engine struct {
	cfg        Config
	classifier *Classifier
	calculator *Calculator
	rollup     *Rollup
}

// New builds an Engine from an explicit config.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		classifier: NewClassifier(cfg),
		calculator: NewCalculator(cfg),
		rollup:     NewRollup(cfg),
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Classifier returns the order classifier.
func (e *Engine) Classifier() *Classifier { return e.classifier }

// Rollup returns the time-window rollup.
func (e *Engine) Rollup() *Rollup { return e.rollup }

// Normalizer returns the currency normalizer.
func (e *Engine) Normalizer() *Normalizer { return e.calculator.normalizer }

// Snapshot classifies the order set for one agent, restricts it to the
// window, and computes the commission figures. It also reconciles any
// per-order stored commission columns against the fresh computation; the
// fresh figures always win, a disagreement only adds a warning.
func (e *Engine) Snapshot(agent AgentInput, agentCode string, subordinateCodes []string, orders []models.Order, w Window) (Snapshot, error) {
	classified := e.classifier.Classify(agentCode, subordinateCodes, orders)
	windowed := e.rollup.FilterClassified(classified, w)

	snap, err := e.calculator.Compute(agent, windowed)
	if err != nil {
		return Snapshot{}, err
	}

	if stored, ok := storedShareSum(agent.Tier, windowed); ok && !stored.Equal(snap.TotalCommission) {
		snap.Warnings = append(snap.Warnings, models.Warning{
			Code: models.WarnStaleAggregate,
			Message: fmt.Sprintf("stored per-order commission sums to %s but fresh computation is %s; using fresh figures",
				stored.StringFixed(2), snap.TotalCommission.StringFixed(2)),
		})
	}

	return snap, nil
}

// storedShareSum sums the legacy per-order commission columns that belong to
// this agent: the primary share for primaries (over direct and subordinate
// orders), the secondary share for secondaries. The comparison is only
// meaningful when every order in the window carries its column.
func storedShareSum(tier models.AgentTier, c Classified) (decimal.Decimal, bool) {
	share := func(o models.Order) *decimal.Decimal {
		if tier == models.TierPrimary {
			return o.StoredPrimaryShare
		}
		return o.StoredSecondaryShare
	}

	sum := decimal.Zero
	seen := false
	for _, bucket := range [][]models.Order{c.Direct, c.Subordinate} {
		for _, o := range bucket {
			s := share(o)
			if s == nil {
				return decimal.Zero, false
			}
			sum = sum.Add(*s)
			seen = true
		}
	}
	return sum, seen
}
