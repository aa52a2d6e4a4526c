package store

import (
	"context"
	"time"

	"commission-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrderFilter narrows ListOrders. Nil/empty fields are not applied. The
// time range filters on payment confirmation time when set, creation time
// otherwise, matching the engine's qualifying-timestamp rule.
type OrderFilter struct {
	SalesCodes []string
	Statuses   []models.OrderStatus
	From       *time.Time
	To         *time.Time
}

// ListOrders retrieves orders matching the filter. The engine treats the
// result as an immutable snapshot; this store never updates order rows.
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := "SELECT * FROM orders WHERE 1=1"
	args := []interface{}{}

	if len(filter.SalesCodes) > 0 {
		query += " AND sales_code IN (?)"
		args = append(args, filter.SalesCodes)
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (?)"
		args = append(args, filter.Statuses)
	}
	if filter.From != nil {
		query += " AND COALESCE(paid_at, created_at) >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND COALESCE(paid_at, created_at) < ?"
		args = append(args, *filter.To)
	}
	query += " ORDER BY id"

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var orders []models.Order
	err = s.db.SelectContext(ctx, &orders, query, inArgs...)
	return orders, err
}

// CountOrdersBySalesCodes returns the number of orders (any status) for a
// set of codes, used by diagnostics.
func (s *Store) CountOrdersBySalesCodes(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("SELECT COUNT(*) FROM orders WHERE sales_code IN (?)", codes)
	if err != nil {
		return 0, err
	}
	query = s.db.Rebind(query)

	var count int64
	err = s.db.GetContext(ctx, &count, query, args...)
	return count, err
}
