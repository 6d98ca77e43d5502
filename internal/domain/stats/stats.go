// Package stats is the reporting read side of orders.
//
// Snapshots of orders are pushed to a best-effort Mirror after each relevant
// mutation. The mirror is never a source of truth: queries fall back to the
// relational Source whenever the mirror cannot answer.
package stats

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrMirrorUnavailable is returned by mirrors that cannot serve a request.
var ErrMirrorUnavailable = errors.New("stats mirror unavailable")

// Snapshot is the denormalized reporting view of one order.
type Snapshot struct {
	OrderID       int64
	OrderNumber   string
	MenuID        *int64
	MenuTitle     string
	CustomerID    int64
	CustomerName  string
	OrderedAt     time.Time
	ServiceDate   time.Time
	GuestCount    int
	MenuPrice     decimal.Decimal
	DeliveryPrice decimal.Decimal
	Total         decimal.Decimal
	Status        string
	// Version is the order version the snapshot was taken at.
	Version int64
}

// Supersedes reports whether s should replace a stored snapshot of the same
// order taken at version stored. Mirror writes race, so an older snapshot
// must never overwrite a newer one.
func (s Snapshot) Supersedes(stored int64) bool {
	return s.Version > stored
}

// MenuAggregate summarizes the orders of one menu.
type MenuAggregate struct {
	MenuID    *int64
	MenuTitle string
	Orders    int64
	Revenue   decimal.Decimal
}

// RevenueFilter narrows revenue entries. Zero values mean "no bound".
type RevenueFilter struct {
	MenuID *int64
	From   time.Time
	To     time.Time
}

// Match reports whether a snapshot passes the filter.
func (f RevenueFilter) Match(s Snapshot) bool {
	if f.MenuID != nil && (s.MenuID == nil || *s.MenuID != *f.MenuID) {
		return false
	}
	if !f.From.IsZero() && s.OrderedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.OrderedAt.Before(f.To) {
		return false
	}
	return true
}

// RevenueEntry is one revenue-bearing order.
type RevenueEntry struct {
	OrderID     int64
	OrderNumber string
	MenuID      *int64
	MenuTitle   string
	OrderedAt   time.Time
	Total       decimal.Decimal
}

// Mirror is the secondary reporting store.
type Mirror interface {
	// UpsertSnapshot stores s unless the mirror already holds a snapshot of
	// the same order that s does not supersede.
	UpsertSnapshot(ctx context.Context, s Snapshot) error
	QueryAggregates(ctx context.Context) ([]MenuAggregate, error)
	QueryRevenue(ctx context.Context, f RevenueFilter) ([]RevenueEntry, error)
}

// Nop accepts snapshots and answers no queries.
type Nop struct{}

var _ Mirror = Nop{}

func (Nop) UpsertSnapshot(context.Context, Snapshot) error { return nil }

func (Nop) QueryAggregates(context.Context) ([]MenuAggregate, error) {
	return nil, ErrMirrorUnavailable
}

func (Nop) QueryRevenue(context.Context, RevenueFilter) ([]RevenueEntry, error) {
	return nil, ErrMirrorUnavailable
}

// Counted reports whether a snapshot contributes to aggregates and revenue.
// Cancelled orders are excluded.
func Counted(status string) bool {
	return status != "cancelled"
}

// Aggregate folds snapshots into per-menu aggregates sorted by order count,
// then revenue, descending. Mirrors without server-side grouping use it.
func Aggregate(snapshots []Snapshot) []MenuAggregate {
	type key struct {
		id    int64
		title string
	}
	index := make(map[key]int)
	var out []MenuAggregate
	for _, s := range snapshots {
		if !Counted(s.Status) {
			continue
		}
		k := key{title: s.MenuTitle}
		if s.MenuID != nil {
			k = key{id: *s.MenuID}
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, MenuAggregate{MenuID: s.MenuID, MenuTitle: s.MenuTitle, Revenue: decimal.Zero})
		}
		out[i].Orders++
		out[i].Revenue = out[i].Revenue.Add(s.Total)
	}
	SortAggregates(out)
	return out
}

// Revenue filters snapshots into revenue entries sorted by order date.
func Revenue(snapshots []Snapshot, f RevenueFilter) []RevenueEntry {
	var out []RevenueEntry
	for _, s := range snapshots {
		if !Counted(s.Status) || !f.Match(s) {
			continue
		}
		out = append(out, RevenueEntry{
			OrderID:     s.OrderID,
			OrderNumber: s.OrderNumber,
			MenuID:      s.MenuID,
			MenuTitle:   s.MenuTitle,
			OrderedAt:   s.OrderedAt,
			Total:       s.Total,
		})
	}
	SortRevenue(out)
	return out
}
