package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"commission-service/internal/engine"
	"commission-service/internal/models"
	"commission-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeStore struct {
	primaries   []models.PrimaryAgent
	secondaries []models.SecondaryAgent
	orders      []models.Order
	payouts     []models.Payout

	listOrderCalls int
}

func (f *fakeStore) ListOrders(_ context.Context, filter store.OrderFilter) ([]models.Order, error) {
	f.listOrderCalls++
	if len(filter.SalesCodes) == 0 {
		return f.orders, nil
	}
	codes := make(map[string]struct{}, len(filter.SalesCodes))
	for _, c := range filter.SalesCodes {
		codes[c] = struct{}{}
	}
	var out []models.Order
	for _, o := range f.orders {
		if _, ok := codes[o.SalesCode]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPrimaryAgents(context.Context) ([]models.PrimaryAgent, error) {
	return f.primaries, nil
}

func (f *fakeStore) GetPrimaryAgentByID(_ context.Context, id int64) (*models.PrimaryAgent, error) {
	for i := range f.primaries {
		if f.primaries[i].ID == id {
			return &f.primaries[i], nil
		}
	}
	return nil, models.ErrAgentNotFound
}

func (f *fakeStore) GetSecondaryAgents(_ context.Context, parentID *int64) ([]models.SecondaryAgent, error) {
	if parentID == nil {
		return f.secondaries, nil
	}
	var out []models.SecondaryAgent
	for _, s := range f.secondaries {
		if s.ParentID != nil && *s.ParentID == *parentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSecondaryAgentByID(_ context.Context, id int64) (*models.SecondaryAgent, error) {
	for i := range f.secondaries {
		if f.secondaries[i].ID == id {
			return &f.secondaries[i], nil
		}
	}
	return nil, models.ErrAgentNotFound
}

func (f *fakeStore) GetLinkedSecondaries(_ context.Context, parentID int64) ([]models.SecondaryAgent, error) {
	var out []models.SecondaryAgent
	for _, s := range f.secondaries {
		if s.ParentID != nil && *s.ParentID == parentID && s.Status == models.AgentStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPaidTotal(_ context.Context, tier models.AgentTier, agentID int64, from, to *time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range f.payouts {
		if p.AgentTier != tier || p.AgentID != agentID {
			continue
		}
		if from != nil && p.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !p.CreatedAt.Before(*to) {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (f *fakeStore) UpdatePrimaryRate(_ context.Context, id int64, rate decimal.Decimal) error {
	for i := range f.primaries {
		if f.primaries[i].ID == id {
			f.primaries[i].CommissionRate = &rate
			return nil
		}
	}
	return models.ErrAgentNotFound
}

func (f *fakeStore) UpdateSecondaryRate(_ context.Context, id int64, rate decimal.Decimal) error {
	for i := range f.secondaries {
		if f.secondaries[i].ID == id {
			f.secondaries[i].CommissionRate = &rate
			return nil
		}
	}
	return models.ErrAgentNotFound
}

func (f *fakeStore) UnlinkSecondary(_ context.Context, id int64) error {
	for i := range f.secondaries {
		if f.secondaries[i].ID == id {
			f.secondaries[i].Status = models.AgentStatusRemoved
			return nil
		}
	}
	return models.ErrAgentNotFound
}

func (f *fakeStore) AddPayout(_ context.Context, payout *models.Payout) error {
	payout.ID = int64(len(f.payouts) + 1)
	payout.CreatedAt = time.Now()
	f.payouts = append(f.payouts, *payout)
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, v interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type fakePublisher struct {
	paid     []*models.CommissionPaidEvent
	rates    []*models.AgentRateUpdatedEvent
	unlinked []*models.SecondaryUnlinkedEvent
}

func (p *fakePublisher) PublishCommissionPaid(_ context.Context, e *models.CommissionPaidEvent) error {
	p.paid = append(p.paid, e)
	return nil
}

func (p *fakePublisher) PublishAgentRateUpdated(_ context.Context, e *models.AgentRateUpdatedEvent) error {
	p.rates = append(p.rates, e)
	return nil
}

func (p *fakePublisher) PublishSecondaryUnlinked(_ context.Context, e *models.SecondaryUnlinkedEvent) error {
	p.unlinked = append(p.unlinked, e)
	return nil
}

// --- fixtures ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func i64Ptr(v int64) *int64 { return &v }

func paidOrder(id int64, code, amount string) models.Order {
	return models.Order{
		ID:            id,
		SalesCode:     code,
		Amount:        dec(amount),
		PaymentMethod: models.PaymentMethodCard,
		Status:        models.OrderStatusPaid,
		CreatedAt:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func newTestService(fs *fakeStore) (*SettlementService, *fakeCache, *fakePublisher) {
	cache := newFakeCache()
	pub := &fakePublisher{}
	svc := NewSettlementService(fs, cache, pub, engine.New(engine.DefaultConfig()), time.Minute)
	return svc, cache, pub
}

// --- tests ---

func TestPrimarySettlementDirectOnly(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{
			ID: 1, SalesCode: "P1", Name: "Prime", CommissionRate: decPtr("0.40"),
			Status: models.AgentStatusActive,
		}},
		orders: []models.Order{paidOrder(1, "P1", "2000")},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetPrimarySettlement(context.Background(), 1, engine.WindowAll)
	require.NoError(t, err)

	assert.Equal(t, "800", got.TotalCommission.String())
	assert.Equal(t, "0", got.OverrideCommission.String())
	assert.Equal(t, "40", got.EffectiveRatePct.String())
	assert.Equal(t, models.TierPrimary, got.Tier)
	assert.Empty(t, got.LinkedTeam)
	assert.Empty(t, got.Warnings)
}

func TestPendingIsTotalMinusPaid(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{
			ID: 1, SalesCode: "P1", CommissionRate: decPtr("0.40"), Status: models.AgentStatusActive,
		}},
		orders: []models.Order{paidOrder(1, "P1", "2000")},
		payouts: []models.Payout{{
			AgentTier: models.TierPrimary, AgentID: 1, Amount: dec("300"),
			CreatedAt: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		}},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetPrimarySettlement(context.Background(), 1, engine.WindowAll)
	require.NoError(t, err)

	assert.Equal(t, "800", got.TotalCommission.String())
	assert.Equal(t, "300", got.PaidCommission.String())
	assert.True(t, got.PendingCommission.Equal(got.TotalCommission.Sub(got.PaidCommission)))
	assert.Equal(t, "500", got.PendingCommission.String())
}

func TestSeveredLinkKeepsOrderAttribution(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{
			ID: 1, SalesCode: "P1", CommissionRate: decPtr("0.40"), Status: models.AgentStatusActive,
		}},
		secondaries: []models.SecondaryAgent{
			{ID: 10, SalesCode: "S1", CommissionRate: decPtr("0.30"), ParentID: i64Ptr(1), Status: models.AgentStatusActive},
			{ID: 11, SalesCode: "S2", CommissionRate: decPtr("0.28"), ParentID: i64Ptr(1), Status: models.AgentStatusRemoved},
		},
		orders: []models.Order{
			paidOrder(1, "S1", "100"),
			paidOrder(2, "S2", "200"),
		},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetPrimarySettlement(context.Background(), 1, engine.WindowAll)
	require.NoError(t, err)

	// the removed secondary is out of the live team...
	require.Len(t, got.LinkedTeam, 1)
	assert.Equal(t, int64(10), got.LinkedTeam[0].AgentID)
	// ...but its historical orders still count toward the override volume,
	// and the spread averages only the active secondary's rate
	assert.Equal(t, "300", got.SubordinateAmount.String())
	assert.True(t, got.OverrideCommission.Equal(dec("300").Mul(dec("0.10"))))
}

func TestLinkedSecondaryKeepsOwnFullRate(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{
			ID: 1, SalesCode: "P1", CommissionRate: decPtr("0.40"), Status: models.AgentStatusActive,
		}},
		secondaries: []models.SecondaryAgent{{
			ID: 10, SalesCode: "S1", CommissionRate: decPtr("0.30"), ParentID: i64Ptr(1), Status: models.AgentStatusActive,
		}},
		orders: []models.Order{paidOrder(1, "S1", "1000")},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetSecondarySettlement(context.Background(), 10, engine.WindowAll)
	require.NoError(t, err)

	assert.Equal(t, models.TierSecondary, got.Tier)
	assert.Equal(t, "300", got.TotalCommission.String())
	assert.Empty(t, got.Warnings)
}

func TestIndependentSecondarySettlement(t *testing.T) {
	fs := &fakeStore{
		secondaries: []models.SecondaryAgent{{
			ID: 20, SalesCode: "I1", CommissionRate: decPtr("0.25"), Status: models.AgentStatusActive,
		}},
		orders: []models.Order{paidOrder(1, "I1", "400")},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetSecondarySettlement(context.Background(), 20, engine.WindowAll)
	require.NoError(t, err)

	assert.Equal(t, models.TierIndependent, got.Tier)
	assert.Equal(t, "100", got.TotalCommission.String())
}

func TestOrphanedSecondaryReportedAsIndependent(t *testing.T) {
	fs := &fakeStore{
		secondaries: []models.SecondaryAgent{{
			ID: 30, SalesCode: "S9", CommissionRate: decPtr("0.30"),
			ParentID: i64Ptr(999), Status: models.AgentStatusActive,
		}},
		orders: []models.Order{paidOrder(1, "S9", "100")},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetSecondarySettlement(context.Background(), 30, engine.WindowAll)
	require.NoError(t, err)

	assert.Equal(t, models.TierIndependent, got.Tier)
	assert.Equal(t, "30", got.TotalCommission.String())
	require.NotEmpty(t, got.Warnings)
	assert.Equal(t, models.WarnOrphanedOrder, got.Warnings[len(got.Warnings)-1].Code)
}

func TestSettlementCacheHitAndInvalidation(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{
			ID: 1, SalesCode: "P1", CommissionRate: decPtr("0.40"), Status: models.AgentStatusActive,
		}},
		orders: []models.Order{paidOrder(1, "P1", "2000")},
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	_, err := svc.GetPrimarySettlement(ctx, 1, engine.WindowAll)
	require.NoError(t, err)
	callsAfterFirst := fs.listOrderCalls

	_, err = svc.GetPrimarySettlement(ctx, 1, engine.WindowAll)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, fs.listOrderCalls, "second read should come from cache")

	// recording a payout must force recomputation on next read
	_, err = svc.RecordPayout(ctx, models.TierPrimary, 1, dec("100"), "", "admin")
	require.NoError(t, err)

	got, err := svc.GetPrimarySettlement(ctx, 1, engine.WindowAll)
	require.NoError(t, err)
	assert.Greater(t, fs.listOrderCalls, callsAfterFirst)
	assert.Equal(t, "700", got.PendingCommission.String())
}

func TestRecordPayoutValidation(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{ID: 1, SalesCode: "P1", Status: models.AgentStatusActive}},
	}
	svc, _, pub := newTestService(fs)
	ctx := context.Background()

	_, err := svc.RecordPayout(ctx, models.TierPrimary, 1, dec("-5"), "", "admin")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.RecordPayout(ctx, models.TierPrimary, 404, dec("5"), "", "admin")
	assert.ErrorIs(t, err, models.ErrAgentNotFound)

	_, err = svc.RecordPayout(ctx, models.TierPrimary, 1, dec("5"), "march", "admin")
	require.NoError(t, err)
	require.Len(t, pub.paid, 1)
	assert.Equal(t, "5.00", pub.paid[0].Amount)
}

func TestUpdateRateValidation(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{ID: 1, SalesCode: "P1", Status: models.AgentStatusActive}},
	}
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	assert.ErrorIs(t, svc.UpdateRate(ctx, models.TierPrimary, 1, dec("0")), models.ErrInvalidRate)
	assert.ErrorIs(t, svc.UpdateRate(ctx, models.TierPrimary, 1, dec("1.5")), models.ErrInvalidRate)
	require.NoError(t, svc.UpdateRate(ctx, models.TierPrimary, 1, dec("0.45")))
	assert.Equal(t, "0.45", fs.primaries[0].CommissionRate.String())
}

func TestUnlinkRequiresParent(t *testing.T) {
	fs := &fakeStore{
		secondaries: []models.SecondaryAgent{
			{ID: 10, SalesCode: "S1", ParentID: i64Ptr(1), Status: models.AgentStatusActive},
			{ID: 20, SalesCode: "I1", Status: models.AgentStatusActive},
		},
	}
	svc, _, pub := newTestService(fs)
	ctx := context.Background()

	assert.ErrorIs(t, svc.UnlinkSecondary(ctx, 20), models.ErrNotLinked)

	require.NoError(t, svc.UnlinkSecondary(ctx, 10))
	assert.Equal(t, models.AgentStatusRemoved, fs.secondaries[0].Status)
	require.Len(t, pub.unlinked, 1)
}

func TestSystemOverview(t *testing.T) {
	fs := &fakeStore{
		primaries: []models.PrimaryAgent{{
			ID: 1, SalesCode: "P1", CommissionRate: decPtr("0.40"), Status: models.AgentStatusActive,
		}},
		secondaries: []models.SecondaryAgent{
			{ID: 10, SalesCode: "S1", CommissionRate: decPtr("0.30"), ParentID: i64Ptr(1), Status: models.AgentStatusActive},
			{ID: 20, SalesCode: "I1", CommissionRate: decPtr("0.25"), Status: models.AgentStatusActive},
		},
		orders: []models.Order{
			paidOrder(1, "P1", "1000"),
			paidOrder(2, "S1", "500"),
			paidOrder(3, "I1", "400"),
			{ID: 4, SalesCode: "P1", Amount: dec("9999"), PaymentMethod: models.PaymentMethodCard,
				Status: models.OrderStatusRejected, CreatedAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		},
	}
	svc, _, _ := newTestService(fs)

	got, err := svc.GetSystemOverview(context.Background(), engine.WindowAll)
	require.NoError(t, err)

	assert.Equal(t, 3, got.TotalOrders)
	assert.Equal(t, "1900", got.TotalAmount.String())
	assert.Equal(t, 1, got.ByTierCounts[models.TierPrimary])
	assert.Equal(t, 1, got.ByTierCounts[models.TierSecondary])
	assert.Equal(t, 1, got.ByTierCounts[models.TierIndependent])

	// primary: 1000×0.40 + 500×(0.40−0.30) = 450
	// linked secondary: 500×0.30 = 150; independent: 400×0.25 = 100
	assert.Equal(t, "700", got.TotalCommission.String())
	assert.Empty(t, got.Warnings)
}
