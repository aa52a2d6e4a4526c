package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commission-service/internal/engine"
	"commission-service/internal/models"
	"commission-service/internal/redisclient"
	"commission-service/internal/store"
	"commission-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementStore is the data the reporter reads and the single-row
// mutations administrators perform. Orders are never written through it.
type SettlementStore interface {
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
	GetPrimaryAgents(ctx context.Context) ([]models.PrimaryAgent, error)
	GetPrimaryAgentByID(ctx context.Context, id int64) (*models.PrimaryAgent, error)
	GetSecondaryAgents(ctx context.Context, parentID *int64) ([]models.SecondaryAgent, error)
	GetSecondaryAgentByID(ctx context.Context, id int64) (*models.SecondaryAgent, error)
	GetLinkedSecondaries(ctx context.Context, parentID int64) ([]models.SecondaryAgent, error)
	GetPaidTotal(ctx context.Context, tier models.AgentTier, agentID int64, from, to *time.Time) (decimal.Decimal, error)
	UpdatePrimaryRate(ctx context.Context, id int64, rate decimal.Decimal) error
	UpdateSecondaryRate(ctx context.Context, id int64, rate decimal.Decimal) error
	UnlinkSecondary(ctx context.Context, id int64) error
	AddPayout(ctx context.Context, payout *models.Payout) error
}

// SettlementCache caches computed reports.
type SettlementCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// EventPublisher publishes the events that force recomputation on next read.
type EventPublisher interface {
	PublishCommissionPaid(ctx context.Context, event *models.CommissionPaidEvent) error
	PublishAgentRateUpdated(ctx context.Context, event *models.AgentRateUpdatedEvent) error
	PublishSecondaryUnlinked(ctx context.Context, event *models.SecondaryUnlinkedEvent) error
}

// SettlementService composes the engine output into the shapes dashboards
// consume. Each request reads a snapshot of orders and agents and computes
// in-memory; the service holds no mutable state of its own.
type SettlementService struct {
	store    SettlementStore
	cache    SettlementCache
	events   EventPublisher
	engine   *engine.Engine
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	store SettlementStore,
	cache SettlementCache,
	events EventPublisher,
	eng *engine.Engine,
	cacheTTL time.Duration,
) *SettlementService {
	return &SettlementService{
		store:    store,
		cache:    cache,
		events:   events,
		engine:   eng,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// GetPrimarySettlement computes a primary agent's settlement for a window.
func (s *SettlementService) GetPrimarySettlement(ctx context.Context, agentID int64, window engine.Window) (*models.AgentSettlement, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.GetPrimarySettlement")
	defer span.End()

	cacheKey := redisclient.SettlementKey(models.TierPrimary, agentID, string(window))
	if cached := s.cachedSettlement(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	agent, err := s.store.GetPrimaryAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	// Every secondary ever linked keeps its order attribution; only the
	// active ones shape the live team and the override spread.
	allSubs, err := s.store.GetSecondaryAgents(ctx, &agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load secondaries: %w", err)
	}
	linked, err := s.store.GetLinkedSecondaries(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load linked team: %w", err)
	}

	subCodes := make([]string, 0, len(allSubs))
	for _, sub := range allSubs {
		subCodes = append(subCodes, sub.SalesCode)
	}
	linkedRates := make([]*decimal.Decimal, 0, len(linked))
	team := make([]models.AgentRef, 0, len(linked))
	for _, sub := range linked {
		linkedRates = append(linkedRates, sub.CommissionRate)
		team = append(team, models.AgentRef{
			AgentID:        sub.ID,
			SalesCode:      sub.SalesCode,
			Name:           sub.Name,
			CommissionRate: sub.CommissionRate,
		})
	}

	orders, err := s.store.ListOrders(ctx, store.OrderFilter{SalesCodes: append([]string{agent.SalesCode}, subCodes...)})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	input := engine.AgentInput{
		Tier:                 models.TierPrimary,
		Rate:                 agent.CommissionRate,
		LinkedSecondaryRates: linkedRates,
	}
	settlement, err := s.buildSettlement(ctx, models.TierPrimary, agentID, input, agent.SalesCode, subCodes, orders, window)
	if err != nil {
		return nil, err
	}
	settlement.LinkedTeam = team

	s.storeInCache(ctx, cacheKey, settlement)
	return settlement, nil
}

// GetSecondarySettlement computes a secondary agent's settlement. Linked
// and independent secondaries use the same formula; an unresolvable parent
// link demotes the agent to the independent bucket with a warning instead
// of dropping its orders.
func (s *SettlementService) GetSecondarySettlement(ctx context.Context, agentID int64, window engine.Window) (*models.AgentSettlement, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.GetSecondarySettlement")
	defer span.End()

	agent, err := s.store.GetSecondaryAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	tier, orphanWarning := s.secondaryTier(ctx, agent)

	cacheKey := redisclient.SettlementKey(tier, agentID, string(window))
	if cached := s.cachedSettlement(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	orders, err := s.store.ListOrders(ctx, store.OrderFilter{SalesCodes: []string{agent.SalesCode}})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	input := engine.AgentInput{Tier: tier, Rate: agent.CommissionRate}
	settlement, err := s.buildSettlement(ctx, tier, agentID, input, agent.SalesCode, nil, orders, window)
	if err != nil {
		return nil, err
	}
	if orphanWarning != nil {
		settlement.Warnings = append(settlement.Warnings, *orphanWarning)
	}

	s.storeInCache(ctx, cacheKey, settlement)
	return settlement, nil
}

// buildSettlement runs the engine and layers paid/pending on top. Pending
// is total minus paid, rederived here every time; it is never read from a
// stored column.
func (s *SettlementService) buildSettlement(
	ctx context.Context,
	tier models.AgentTier,
	agentID int64,
	input engine.AgentInput,
	agentCode string,
	subCodes []string,
	orders []models.Order,
	window engine.Window,
) (*models.AgentSettlement, error) {
	start := time.Now()
	defer func() {
		util.SettlementComputeLatency.Observe(time.Since(start).Seconds())
	}()

	snap, err := s.engine.Snapshot(input, agentCode, subCodes, orders, window)
	if err != nil {
		if errors.Is(err, models.ErrCurrencyMismatch) {
			util.CurrencyMismatchesTotal.Inc()
			s.logger.Error("Currency mismatch aborted settlement",
				zap.String("tier", string(tier)),
				zap.Int64("agent_id", agentID),
				zap.Error(err))
		}
		return nil, err
	}

	from, to := s.windowRange(window)
	paid, err := s.store.GetPaidTotal(ctx, payoutTier(tier), agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid total: %w", err)
	}

	countWarnings(snap.Warnings)
	util.SettlementsComputedTotal.WithLabelValues(string(tier), string(window)).Inc()
	s.logger.Info("Settlement computed",
		zap.String("tier", string(tier)),
		zap.Int64("agent_id", agentID),
		zap.String("window", string(window)),
		zap.String("total_commission", snap.TotalCommission.StringFixed(2)))

	warnings := snap.Warnings
	if warnings == nil {
		warnings = []models.Warning{}
	}

	return &models.AgentSettlement{
		AgentID:            agentID,
		Tier:               tier,
		Window:             string(window),
		DirectAmount:       snap.DirectAmount,
		DirectCommission:   snap.DirectCommission,
		SubordinateAmount:  snap.SubordinateAmount,
		OverrideCommission: snap.OverrideCommission,
		TotalCommission:    snap.TotalCommission,
		PaidCommission:     paid,
		PendingCommission:  snap.TotalCommission.Sub(paid),
		EffectiveRatePct:   snap.EffectiveRatePct,
		LinkedTeam:         []models.AgentRef{},
		Warnings:           warnings,
		ComputedAt:         time.Now().UTC(),
	}, nil
}

// GetSystemOverview aggregates across every agent for a window. A currency
// mismatch aborts only the affected agent; the overview carries a warning
// for it and keeps going.
func (s *SettlementService) GetSystemOverview(ctx context.Context, window engine.Window) (*models.SystemOverview, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.GetSystemOverview")
	defer span.End()

	cacheKey := redisclient.OverviewKey(string(window))
	var cached models.SystemOverview
	if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		util.SettlementCacheHits.Inc()
		return &cached, nil
	} else if err != nil {
		s.logger.Warn("Overview cache read failed", zap.Error(err))
	}
	util.SettlementCacheMisses.Inc()

	primaries, err := s.store.GetPrimaryAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary agents: %w", err)
	}
	secondaries, err := s.store.GetSecondaryAgents(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load secondary agents: %w", err)
	}
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	overview := &models.SystemOverview{
		ByTierCounts: map[models.AgentTier]int{},
		TimeWindow:   string(window),
		Warnings:     []models.Warning{},
		ComputedAt:   time.Now().UTC(),
	}

	primariesByID := make(map[int64]*models.PrimaryAgent, len(primaries))
	for i := range primaries {
		primariesByID[primaries[i].ID] = &primaries[i]
	}
	subsByParent := make(map[int64][]models.SecondaryAgent)
	for _, sub := range secondaries {
		if sub.ParentID != nil {
			subsByParent[*sub.ParentID] = append(subsByParent[*sub.ParentID], sub)
		}
	}

	s.sumEligibleOrders(orders, window, overview)

	for i := range primaries {
		p := &primaries[i]
		if p.Status == models.AgentStatusActive {
			overview.ByTierCounts[models.TierPrimary]++
		}

		var subCodes []string
		var linkedRates []*decimal.Decimal
		for _, sub := range subsByParent[p.ID] {
			subCodes = append(subCodes, sub.SalesCode)
			if sub.Status == models.AgentStatusActive {
				linkedRates = append(linkedRates, sub.CommissionRate)
			}
		}

		input := engine.AgentInput{Tier: models.TierPrimary, Rate: p.CommissionRate, LinkedSecondaryRates: linkedRates}
		snap, err := s.engine.Snapshot(input, p.SalesCode, subCodes, orders, window)
		if err != nil {
			s.skipAgent(overview, models.TierPrimary, p.ID, err)
			continue
		}
		overview.TotalCommission = overview.TotalCommission.Add(snap.TotalCommission)
	}

	for _, sub := range secondaries {
		tier := models.TierIndependent
		if sub.ParentID != nil {
			if _, ok := primariesByID[*sub.ParentID]; ok {
				tier = models.TierSecondary
			} else {
				util.OrphanedSecondariesTotal.Inc()
				overview.Warnings = append(overview.Warnings, models.Warning{
					Code:    models.WarnOrphanedOrder,
					Message: fmt.Sprintf("secondary %d references missing primary %d, reported as independent", sub.ID, *sub.ParentID),
				})
			}
		}
		if sub.Status == models.AgentStatusActive {
			overview.ByTierCounts[tier]++
		}

		input := engine.AgentInput{Tier: tier, Rate: sub.CommissionRate}
		snap, err := s.engine.Snapshot(input, sub.SalesCode, nil, orders, window)
		if err != nil {
			s.skipAgent(overview, tier, sub.ID, err)
			continue
		}
		overview.TotalCommission = overview.TotalCommission.Add(snap.TotalCommission)
	}

	s.storeOverviewInCache(ctx, cacheKey, overview)
	return overview, nil
}

// sumEligibleOrders fills TotalOrders and TotalAmount with the eligible,
// windowed order set. Orders that fail normalization are excluded from the
// totals and surfaced as warnings.
func (s *SettlementService) sumEligibleOrders(orders []models.Order, window engine.Window, overview *models.SystemOverview) {
	classifier := s.engine.Classifier()
	normalizer := s.engine.Normalizer()
	windowed := s.engine.Rollup().Filter(orders, window)

	for _, o := range windowed {
		if !classifier.Eligible(o) {
			continue
		}
		amount, err := normalizer.Normalize(o.Amount, o.PaymentMethod)
		if err != nil {
			util.CurrencyMismatchesTotal.Inc()
			overview.Warnings = append(overview.Warnings, models.Warning{
				Code:    models.WarnCurrencyMismatch,
				Message: fmt.Sprintf("order %d excluded from totals: %v", o.ID, err),
			})
			continue
		}
		overview.TotalOrders++
		overview.TotalAmount = overview.TotalAmount.Add(amount)
	}
}

func (s *SettlementService) skipAgent(overview *models.SystemOverview, tier models.AgentTier, agentID int64, err error) {
	code := models.WarnOrphanedOrder
	if errors.Is(err, models.ErrCurrencyMismatch) {
		util.CurrencyMismatchesTotal.Inc()
		code = models.WarnCurrencyMismatch
	}
	s.logger.Error("Agent skipped in overview",
		zap.String("tier", string(tier)),
		zap.Int64("agent_id", agentID),
		zap.Error(err))
	overview.Warnings = append(overview.Warnings, models.Warning{
		Code:    code,
		Message: fmt.Sprintf("%s agent %d skipped: %v", tier, agentID, err),
	})
}

// secondaryTier resolves linked vs independent, flagging orphaned links.
func (s *SettlementService) secondaryTier(ctx context.Context, agent *models.SecondaryAgent) (models.AgentTier, *models.Warning) {
	if agent.ParentID == nil {
		return models.TierIndependent, nil
	}
	if _, err := s.store.GetPrimaryAgentByID(ctx, *agent.ParentID); err != nil {
		if errors.Is(err, models.ErrAgentNotFound) {
			util.OrphanedSecondariesTotal.Inc()
			s.logger.Warn("Secondary references missing primary",
				zap.Int64("secondary_id", agent.ID),
				zap.Int64("parent_id", *agent.ParentID))
			return models.TierIndependent, &models.Warning{
				Code:    models.WarnOrphanedOrder,
				Message: fmt.Sprintf("parent primary %d not found, treated as independent", *agent.ParentID),
			}
		}
		s.logger.Error("Parent lookup failed", zap.Error(err))
	}
	return models.TierSecondary, nil
}

// windowRange maps a report window onto payout-filter bounds.
func (s *SettlementService) windowRange(window engine.Window) (*time.Time, *time.Time) {
	start, end, bounded := s.engine.Rollup().Bounds(window)
	if !bounded {
		return nil, nil
	}
	return &start, &end
}

// payoutTier maps the formula tier onto the payout ledger identity: all
// secondaries share one ledger, so a later link or unlink never strands
// historical payouts.
func payoutTier(tier models.AgentTier) models.AgentTier {
	if tier == models.TierIndependent {
		return models.TierSecondary
	}
	return tier
}

func (s *SettlementService) cachedSettlement(ctx context.Context, key string) *models.AgentSettlement {
	var cached models.AgentSettlement
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Settlement cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !hit {
		util.SettlementCacheMisses.Inc()
		return nil
	}
	util.SettlementCacheHits.Inc()
	return &cached
}

func (s *SettlementService) storeInCache(ctx context.Context, key string, settlement *models.AgentSettlement) {
	if err := s.cache.SetJSON(ctx, key, settlement, s.cacheTTL); err != nil {
		s.logger.Warn("Settlement cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *SettlementService) storeOverviewInCache(ctx context.Context, key string, overview *models.SystemOverview) {
	if err := s.cache.SetJSON(ctx, key, overview, s.cacheTTL); err != nil {
		s.logger.Warn("Overview cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func countWarnings(warnings []models.Warning) {
	for _, w := range warnings {
		switch w.Code {
		case models.WarnDefaultRate:
			util.DefaultRateSubstitutionsTotal.Inc()
		case models.WarnStaleAggregate:
			util.StaleAggregatesTotal.Inc()
		case models.WarnOrphanedOrder:
			util.OrphanedSecondariesTotal.Inc()
		}
	}
}
