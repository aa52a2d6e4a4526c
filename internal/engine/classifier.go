package engine

import "commission-service/internal/models"

// Classified is an agent's eligible orders split into the two attribution
// buckets. The lists are disjoint: an order is direct or subordinate, never
// both.
type Classified struct {
	Direct      []models.Order
	Subordinate []models.Order
}

// Classifier filters orders down to the commission-eligible status set and
// partitions them per agent.
type Classifier struct {
	eligible map[models.OrderStatus]struct{}
}

// NewClassifier builds a Classifier from the engine config.
func NewClassifier(cfg Config) *Classifier {
	eligible := make(map[models.OrderStatus]struct{}, len(cfg.EligibleStatuses))
	for _, s := range cfg.EligibleStatuses {
		eligible[s] = struct{}{}
	}
	return &Classifier{eligible: eligible}
}

// Eligible reports whether an order's status counts toward commission.
func (c *Classifier) Eligible(o models.Order) bool {
	_, ok := c.eligible[o.Status]
	return ok
}

// Classify partitions the order set for one agent. agentCode is the agent's
// own sales code; subordinateCodes are the sales codes of secondaries
// attributed to this agent (empty for secondary agents). Orders outside the
// eligible status set are discarded first. Zero eligible orders yields two
// empty lists, not an error.
func (c *Classifier) Classify(agentCode string, subordinateCodes []string, orders []models.Order) Classified {
	subs := make(map[string]struct{}, len(subordinateCodes))
	for _, code := range subordinateCodes {
		subs[code] = struct{}{}
	}

	var out Classified
	for _, o := range orders {
		if !c.Eligible(o) {
			continue
		}
		switch {
		case o.SalesCode == agentCode:
			out.Direct = append(out.Direct, o)
		default:
			if _, ok := subs[o.SalesCode]; ok {
				out.Subordinate = append(out.Subordinate, o)
			}
		}
	}
	return out
}
