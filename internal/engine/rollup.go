package engine

import (
	"fmt"
	"time"

	"commission-service/internal/models"
)

// Window is a reporting time window. Each window is an independent
// aggregate recomputed from scratch over the order set; "today" is never
// derived from an all-time figure minus a snapshot, because incrementally
// maintained counters are exactly what kept drifting historically.
type Window string

const (
	WindowToday Window = "today"
	WindowMonth Window = "month"
	WindowAll   Window = "all"
)

// ParseWindow validates a window name from the API layer.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case WindowToday, WindowMonth, WindowAll:
		return Window(s), nil
	case "":
		return WindowAll, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownWindow, s)
	}
}

// Rollup filters orders into calendar windows at a fixed offset.
type Rollup struct {
	loc *time.Location
	now func() time.Time
}

// NewRollup builds a Rollup from the engine config.
func NewRollup(cfg Config) *Rollup {
	return &Rollup{loc: cfg.ReportLocation, now: time.Now}
}

// QualifyingTime is the timestamp that places an order in a window: payment
// confirmation time when known, creation time otherwise.
func QualifyingTime(o models.Order) time.Time {
	if o.PaidAt != nil {
		return *o.PaidAt
	}
	return o.CreatedAt
}

// Bounds returns the half-open interval [start, end) for a window, in the
// report calendar. The all-time window has no bounds (ok is false).
func (r *Rollup) Bounds(w Window) (start, end time.Time, ok bool) {
	now := r.now().In(r.loc)
	switch w {
	case WindowToday:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
		return start, start.AddDate(0, 0, 1), true
	case WindowMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)
		return start, start.AddDate(0, 1, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// Filter keeps the orders whose qualifying timestamp falls inside the
// window. The all-time window keeps everything.
func (r *Rollup) Filter(orders []models.Order, w Window) []models.Order {
	start, end, bounded := r.Bounds(w)
	if !bounded {
		return orders
	}
	var out []models.Order
	for _, o := range orders {
		t := QualifyingTime(o)
		if !t.Before(start) && t.Before(end) {
			out = append(out, o)
		}
	}
	return out
}

// FilterClassified applies Filter to both attribution buckets.
func (r *Rollup) FilterClassified(c Classified, w Window) Classified {
	return Classified{
		Direct:      r.Filter(c.Direct, w),
		Subordinate: r.Filter(c.Subordinate, w),
	}
}
