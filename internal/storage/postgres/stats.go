package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catering-orders/internal/domain/stats"
)

// Menus that were deleted keep their orders under the snapshot title.
const menuAggregatesSQL = `SELECT o.menu_id, o.menu_title, count(*), COALESCE(sum(o.menu_price + o.delivery_price), 0)
	FROM orders o
	WHERE o.status <> 'cancelled'
	GROUP BY o.menu_id, o.menu_title
	ORDER BY count(*) DESC, sum(o.menu_price + o.delivery_price) DESC, o.menu_title`

const revenueSQL = `SELECT o.id, o.order_number, o.menu_id, o.menu_title, o.created_at, o.menu_price + o.delivery_price
	FROM orders o
	WHERE o.status <> 'cancelled'
	  AND ($1::bigint IS NULL OR o.menu_id = $1)
	  AND ($2::timestamptz IS NULL OR o.created_at >= $2)
	  AND ($3::timestamptz IS NULL OR o.created_at < $3)
	ORDER BY o.created_at, o.id`

const snapshotsSQL = `SELECT o.id, o.order_number, o.menu_id, o.menu_title, o.customer_id,
		c.first_name, c.last_name, o.created_at, o.service_date, o.guest_count,
		o.menu_price, o.delivery_price, o.status, o.version
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
	ORDER BY o.id`

var _ stats.Source = (*StatsSource)(nil)

// StatsSource answers reporting queries from the orders table.
type StatsSource struct {
	pool *pgxpool.Pool
}

// NewStatsSource returns a StatsSource that uses the given pool.
func NewStatsSource(pool *pgxpool.Pool) *StatsSource {
	return &StatsSource{pool: pool}
}

// MenuAggregates groups non-cancelled orders by menu.
func (s *StatsSource) MenuAggregates(ctx context.Context) ([]stats.MenuAggregate, error) {
	return retryRead(ctx, func(ctx context.Context) ([]stats.MenuAggregate, error) {
		rows, err := s.pool.Query(ctx, menuAggregatesSQL)
		if err != nil {
			return nil, fmt.Errorf("aggregating orders by menu: %w", err)
		}
		res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.MenuAggregate, error) {
			var a stats.MenuAggregate
			err := row.Scan(&a.MenuID, &a.MenuTitle, &a.Orders, &a.Revenue)
			return a, err
		})
		if err != nil {
			return nil, fmt.Errorf("scanning menu aggregates: %w", err)
		}
		return res, nil
	})
}

// Revenue lists non-cancelled orders matching f by order date.
func (s *StatsSource) Revenue(ctx context.Context, f stats.RevenueFilter) ([]stats.RevenueEntry, error) {
	return retryRead(ctx, func(ctx context.Context) ([]stats.RevenueEntry, error) {
		rows, err := s.pool.Query(ctx, revenueSQL, f.MenuID, nullTime(f.From), nullTime(f.To))
		if err != nil {
			return nil, fmt.Errorf("querying revenue: %w", err)
		}
		res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.RevenueEntry, error) {
			var e stats.RevenueEntry
			err := row.Scan(&e.OrderID, &e.OrderNumber, &e.MenuID, &e.MenuTitle, &e.OrderedAt, &e.Total)
			return e, err
		})
		if err != nil {
			return nil, fmt.Errorf("scanning revenue: %w", err)
		}
		return res, nil
	})
}

// Snapshots returns the reporting view of every order.
func (s *StatsSource) Snapshots(ctx context.Context) ([]stats.Snapshot, error) {
	return retryRead(ctx, func(ctx context.Context) ([]stats.Snapshot, error) {
		rows, err := s.pool.Query(ctx, snapshotsSQL)
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		res, err := pgx.CollectRows(rows, scanSnapshot)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshots: %w", err)
		}
		return res, nil
	})
}

func scanSnapshot(row pgx.CollectableRow) (stats.Snapshot, error) {
	var (
		s                   stats.Snapshot
		firstName, lastName string
	)
	err := row.Scan(&s.OrderID, &s.OrderNumber, &s.MenuID, &s.MenuTitle, &s.CustomerID,
		&firstName, &lastName, &s.OrderedAt, &s.ServiceDate, &s.GuestCount,
		&s.MenuPrice, &s.DeliveryPrice, &s.Status, &s.Version)
	s.CustomerName = firstName
	if lastName != "" {
		s.CustomerName += " " + lastName
	}
	s.Total = decimal.Sum(s.MenuPrice, s.DeliveryPrice)
	return s, err
}
