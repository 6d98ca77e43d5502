// Package inventory defines the per-menu stock ledger used by order
// lifecycle operations.
package inventory

import (
	"context"
	"github.com/go-faster/errors"
)

// ErrOutOfStock is returned by Reserve when the menu has no remaining units.
var ErrOutOfStock = errors.New("menu is out of stock")

// ErrMenuNotFound is returned by Reserve when the menu does not exist.
var ErrMenuNotFound = errors.New("menu not found")

// Ledger reserves and releases single stock units of a menu.
//
// Implementations are bound to the caller's transaction so a reservation
// commits or rolls back together with the order row that caused it. Reserve
// must check and decrement in one atomic storage operation.
type Ledger interface {
	Reserve(ctx context.Context, menuID int64) error
	// Release returns one unit. Releasing against a deleted menu is a no-op.
	Release(ctx context.Context, menuID int64) error
}
