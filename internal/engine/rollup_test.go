package engine

import (
	"testing"
	"time"

	"commission-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRollup(t *testing.T, now time.Time) *Rollup {
	t.Helper()
	r := NewRollup(DefaultConfig())
	r.now = func() time.Time { return now }
	return r
}

func TestBoundsUseReportOffsetNotServerLocal(t *testing.T) {
	// 2024-03-10 18:30 UTC is already 2024-03-11 02:30 in the report zone
	r := fixedRollup(t, time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC))

	start, end, ok := r.Bounds(WindowToday)
	require.True(t, ok)
	assert.Equal(t, "2024-03-11T00:00:00+08:00", start.Format(time.RFC3339))
	assert.Equal(t, "2024-03-12T00:00:00+08:00", end.Format(time.RFC3339))
}

func TestMonthBounds(t *testing.T) {
	r := fixedRollup(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	start, end, ok := r.Bounds(WindowMonth)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01T00:00:00+08:00", start.Format(time.RFC3339))
	assert.Equal(t, "2024-04-01T00:00:00+08:00", end.Format(time.RFC3339))
}

func TestQualifyingTimestampPrefersPaymentConfirmation(t *testing.T) {
	created := time.Date(2024, 2, 28, 10, 0, 0, 0, time.UTC)
	paid := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	o := order(1, "P1", models.OrderStatusPaid, "100")
	o.CreatedAt = created
	assert.Equal(t, created, QualifyingTime(o))

	o.PaidAt = &paid
	assert.Equal(t, paid, QualifyingTime(o))
}

func TestFilterWindowByQualifyingTime(t *testing.T) {
	r := fixedRollup(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	inMonth := order(1, "P1", models.OrderStatusPaid, "100")
	inMonth.CreatedAt = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	// created in February but payment confirmed in March: counts for March
	paidInMonth := order(2, "P1", models.OrderStatusPaid, "100")
	paidInMonth.CreatedAt = time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	paidInMonth.PaidAt = &paidAt

	lastMonth := order(3, "P1", models.OrderStatusPaid, "100")
	lastMonth.CreatedAt = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	got := r.Filter([]models.Order{inMonth, paidInMonth, lastMonth}, WindowMonth)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	all := r.Filter([]models.Order{inMonth, paidInMonth, lastMonth}, WindowAll)
	assert.Len(t, all, 3)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("today")
	require.NoError(t, err)
	assert.Equal(t, WindowToday, w)

	w, err = ParseWindow("")
	require.NoError(t, err)
	assert.Equal(t, WindowAll, w)

	_, err = ParseWindow("yesterday")
	assert.Error(t, err)
}
