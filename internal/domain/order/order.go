// Package order implements the catering order lifecycle: creation with stock
// reservation, customer edits and cancellation, and staff-driven status
// transitions with an append-only history.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/domain/inventory"
)

// Order is one catering engagement.
type Order struct {
	ID         int64
	Number     string
	CustomerID int64
	// MenuID is nil once the referenced menu has been deleted.
	MenuID *int64
	// Menu is captured when the order is placed and drives later repricing.
	Menu               MenuSnapshot
	Customer           Customer
	ServiceDate        time.Time
	ServiceTime        string
	Address            string
	GuestCount         int
	MenuPrice          decimal.Decimal
	DeliveryPrice      decimal.Decimal
	Status             Status
	CancellationReason string
	ContactMode        ContactMode
	// Version starts at 1 and grows by one with every persisted change.
	Version   int64
	CreatedAt time.Time
	History   []HistoryEntry
}

// Total is the menu price plus the delivery price.
func (o *Order) Total() decimal.Decimal {
	return o.MenuPrice.Add(o.DeliveryPrice)
}

// HistoryEntry records one status the order entered.
type HistoryEntry struct {
	Status    Status
	EnteredAt time.Time
}

// MenuSnapshot is the subset of a menu copied onto an order.
type MenuSnapshot struct {
	Title          string
	PricePerPerson decimal.Decimal
	MinimumGuests  int
}

// Menu is a catalog menu as read by the lifecycle.
type Menu struct {
	ID             int64
	Title          string
	PricePerPerson decimal.Decimal
	MinimumGuests  int
	RemainingStock int
}

// Customer is the order owner.
type Customer struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Role      auth.Role
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	CustomerID int64
	Status     Status
}

// Store is the transactional store of record for orders.
type Store interface {
	// WithinTx runs fn in one transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get returns the order with customer and history loaded.
	Get(ctx context.Context, id int64) (*Order, error)
	// List returns matching orders, newest first.
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

// Tx is the unit of work of a single lifecycle operation.
type Tx interface {
	Customer(ctx context.Context, id int64) (*Customer, error)
	Menu(ctx context.Context, id int64) (*Menu, error)
	Inventory() inventory.Ledger
	// Insert assigns ID and sets Version to 1. A taken number yields
	// ErrDuplicateNumber.
	Insert(ctx context.Context, o *Order) error
	// LockForUpdate loads the order with customer and history and holds a row
	// lock until the transaction ends.
	LockForUpdate(ctx context.Context, id int64) (*Order, error)
	// Update persists the mutable columns of o and advances o.Version.
	Update(ctx context.Context, o *Order) error
	AppendHistory(ctx context.Context, orderID int64, e HistoryEntry) error
}

// Dispatcher runs best-effort side effects outside the request path.
// Go must not block and must not report fn's outcome to the caller.
type Dispatcher interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}
