package postgres

import (
	"context"
	"fmt"

	"github.com/xenking/catering-orders/internal/domain/inventory"
)

// reserveStockSQL checks and decrements in one statement so two concurrent
// reservations of the last unit cannot both succeed.
const reserveStockSQL = `UPDATE menus SET remaining_stock = remaining_stock - 1
	WHERE id = $1 AND remaining_stock > 0`

const releaseStockSQL = `UPDATE menus SET remaining_stock = remaining_stock + 1 WHERE id = $1`

const menuExistsSQL = `SELECT EXISTS (SELECT 1 FROM menus WHERE id = $1)`

var _ inventory.Ledger = (*Ledger)(nil)

// Ledger is the menus.remaining_stock ledger bound to one transaction.
type Ledger struct {
	q querier
}

// Reserve takes one unit of stock.
func (l *Ledger) Reserve(ctx context.Context, menuID int64) error {
	tag, err := l.q.Exec(ctx, reserveStockSQL, menuID)
	if err != nil {
		return fmt.Errorf("reserving stock of menu %d: %w", menuID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := l.q.QueryRow(ctx, menuExistsSQL, menuID).Scan(&exists); err != nil {
		return fmt.Errorf("checking menu %d: %w", menuID, err)
	}
	if !exists {
		return inventory.ErrMenuNotFound
	}
	return inventory.ErrOutOfStock
}

// Release gives one unit back. A deleted menu is ignored.
func (l *Ledger) Release(ctx context.Context, menuID int64) error {
	if _, err := l.q.Exec(ctx, releaseStockSQL, menuID); err != nil {
		return fmt.Errorf("releasing stock of menu %d: %w", menuID, err)
	}
	return nil
}
