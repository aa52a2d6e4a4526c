package service

import (
	"context"
	"fmt"
	"time"

	"commission-service/internal/engine"
	"commission-service/internal/models"
	"commission-service/internal/redisclient"
	"commission-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Administrator mutations are single-row updates. None of them touch a
// derived aggregate: they invalidate the cache (locally and, via the event
// bus, on every replica) so the next read recomputes from orders.

// RecordPayout stores an administrator-entered payout for an agent.
func (s *SettlementService) RecordPayout(ctx context.Context, tier models.AgentTier, agentID int64, amount decimal.Decimal, note, enteredBy string) (*models.Payout, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.RecordPayout")
	defer span.End()

	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if err := s.checkAgentExists(ctx, tier, agentID); err != nil {
		return nil, err
	}

	payout := &models.Payout{
		AgentTier: payoutTier(tier),
		AgentID:   agentID,
		Amount:    amount,
		Note:      note,
		EnteredBy: enteredBy,
	}
	if err := s.store.AddPayout(ctx, payout); err != nil {
		return nil, fmt.Errorf("failed to record payout: %w", err)
	}

	util.PayoutsRecordedTotal.Inc()
	s.logger.Info("Payout recorded",
		zap.String("tier", string(tier)),
		zap.Int64("agent_id", agentID),
		zap.String("amount", amount.StringFixed(2)))

	s.InvalidateAgent(ctx, tier, agentID)

	event := &models.CommissionPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCommissionPaid,
			Timestamp: time.Now(),
		},
		AgentTier: tier,
		AgentID:   agentID,
		Amount:    amount.StringFixed(2),
		EnteredBy: enteredBy,
	}
	if err := s.events.PublishCommissionPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish CommissionPaid event", zap.Error(err))
	}

	return payout, nil
}

// UpdateRate sets an agent's commission rate. The rate is a fraction in
// (0, 1]; percentages are the display layer's business.
func (s *SettlementService) UpdateRate(ctx context.Context, tier models.AgentTier, agentID int64, rate decimal.Decimal) error {
	ctx, span := util.StartSpan(ctx, "SettlementService.UpdateRate")
	defer span.End()

	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return models.ErrInvalidRate
	}

	var err error
	if tier == models.TierPrimary {
		err = s.store.UpdatePrimaryRate(ctx, agentID, rate)
	} else {
		err = s.store.UpdateSecondaryRate(ctx, agentID, rate)
	}
	if err != nil {
		return err
	}

	util.RateUpdatesTotal.Inc()
	s.logger.Info("Commission rate updated",
		zap.String("tier", string(tier)),
		zap.Int64("agent_id", agentID),
		zap.String("rate", rate.String()))

	s.InvalidateAgent(ctx, tier, agentID)
	if tier != models.TierPrimary {
		// a linked secondary's rate feeds its parent's override spread
		s.invalidateParentOf(ctx, agentID)
	}

	event := &models.AgentRateUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAgentRateUpdated,
			Timestamp: time.Now(),
		},
		AgentTier: tier,
		AgentID:   agentID,
		Rate:      rate.String(),
	}
	if err := s.events.PublishAgentRateUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish AgentRateUpdated event", zap.Error(err))
	}

	return nil
}

// UnlinkSecondary severs a secondary's parent link. The secondary drops out
// of the live team immediately; its historical orders stay attributed.
func (s *SettlementService) UnlinkSecondary(ctx context.Context, secondaryID int64) error {
	ctx, span := util.StartSpan(ctx, "SettlementService.UnlinkSecondary")
	defer span.End()

	agent, err := s.store.GetSecondaryAgentByID(ctx, secondaryID)
	if err != nil {
		return err
	}
	if agent.ParentID == nil {
		return models.ErrNotLinked
	}

	if err := s.store.UnlinkSecondary(ctx, secondaryID); err != nil {
		return err
	}

	s.logger.Info("Secondary unlinked",
		zap.Int64("secondary_id", secondaryID),
		zap.Int64("parent_id", *agent.ParentID))

	s.InvalidateAgent(ctx, models.TierSecondary, secondaryID)
	s.InvalidateAgent(ctx, models.TierIndependent, secondaryID)
	s.InvalidateAgent(ctx, models.TierPrimary, *agent.ParentID)

	event := &models.SecondaryUnlinkedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSecondaryUnlinked,
			Timestamp: time.Now(),
		},
		SecondaryID: secondaryID,
		ParentID:    agent.ParentID,
	}
	if err := s.events.PublishSecondaryUnlinked(ctx, event); err != nil {
		s.logger.Error("Failed to publish SecondaryUnlinked event", zap.Error(err))
	}

	return nil
}

// InvalidateAgent drops every cached window for an agent plus the overview
// caches that aggregate it.
func (s *SettlementService) InvalidateAgent(ctx context.Context, tier models.AgentTier, agentID int64) {
	keys := make([]string, 0, 8)
	for _, w := range []engine.Window{engine.WindowToday, engine.WindowMonth, engine.WindowAll} {
		keys = append(keys, redisclient.SettlementKey(tier, agentID, string(w)))
		keys = append(keys, redisclient.OverviewKey(string(w)))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Cache invalidation failed",
			zap.String("tier", string(tier)),
			zap.Int64("agent_id", agentID),
			zap.Error(err))
		return
	}
	util.CacheInvalidationsTotal.Inc()
}

func (s *SettlementService) invalidateParentOf(ctx context.Context, secondaryID int64) {
	agent, err := s.store.GetSecondaryAgentByID(ctx, secondaryID)
	if err != nil || agent.ParentID == nil {
		return
	}
	s.InvalidateAgent(ctx, models.TierPrimary, *agent.ParentID)
}

func (s *SettlementService) checkAgentExists(ctx context.Context, tier models.AgentTier, agentID int64) error {
	if tier == models.TierPrimary {
		_, err := s.store.GetPrimaryAgentByID(ctx, agentID)
		return err
	}
	_, err := s.store.GetSecondaryAgentByID(ctx, agentID)
	return err
}

// Event handlers wired into the background worker so invalidations from
// other replicas land here too.

// HandleCommissionPaid reacts to a payout recorded elsewhere.
func (s *SettlementService) HandleCommissionPaid(ctx context.Context, event *models.CommissionPaidEvent) error {
	s.InvalidateAgent(ctx, event.AgentTier, event.AgentID)
	return nil
}

// HandleAgentRateUpdated reacts to a rate edited elsewhere.
func (s *SettlementService) HandleAgentRateUpdated(ctx context.Context, event *models.AgentRateUpdatedEvent) error {
	s.InvalidateAgent(ctx, event.AgentTier, event.AgentID)
	if event.AgentTier != models.TierPrimary {
		s.invalidateParentOf(ctx, event.AgentID)
	}
	return nil
}

// HandleSecondaryUnlinked reacts to a link severed elsewhere.
func (s *SettlementService) HandleSecondaryUnlinked(ctx context.Context, event *models.SecondaryUnlinkedEvent) error {
	s.InvalidateAgent(ctx, models.TierSecondary, event.SecondaryID)
	s.InvalidateAgent(ctx, models.TierIndependent, event.SecondaryID)
	if event.ParentID != nil {
		s.InvalidateAgent(ctx, models.TierPrimary, *event.ParentID)
	}
	return nil
}
