package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/domain/inventory"
	"github.com/xenking/catering-orders/internal/domain/order"
)

const selectOrderSQL = `SELECT o.id, o.order_number, o.customer_id, o.menu_id, o.menu_title,
		o.price_per_person, o.minimum_guests, o.service_date, o.service_time, o.address,
		o.guest_count, o.menu_price, o.delivery_price, o.status, o.cancellation_reason,
		o.contact_mode, o.version, o.created_at, c.email, c.first_name, c.last_name, c.role
	FROM orders o
	JOIN customers c ON c.id = o.customer_id`

const getOrderSQL = selectOrderSQL + ` WHERE o.id = $1`

const lockOrderSQL = selectOrderSQL + ` WHERE o.id = $1 FOR UPDATE OF o`

const listOrdersSQL = selectOrderSQL + `
	WHERE ($1::bigint = 0 OR o.customer_id = $1)
	  AND ($2::text = '' OR o.status = $2)
	ORDER BY o.created_at DESC, o.id DESC`

const historySQL = `SELECT order_id, status, entered_at
	FROM order_status_history
	WHERE order_id = ANY($1)
	ORDER BY order_id, entered_at, id`

const insertOrderSQL = `INSERT INTO orders (order_number, customer_id, menu_id, menu_title,
		price_per_person, minimum_guests, service_date, service_time, address, guest_count,
		menu_price, delivery_price, status, contact_mode, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id, version`

const updateOrderSQL = `UPDATE orders
	SET service_date = $2, service_time = $3, address = $4, guest_count = $5,
		menu_price = $6, delivery_price = $7, status = $8, cancellation_reason = $9,
		contact_mode = $10, version = version + 1
	WHERE id = $1
	RETURNING version`

const appendHistorySQL = `INSERT INTO order_status_history (order_id, status, entered_at)
	VALUES ($1, $2, $3)`

const getCustomerSQL = `SELECT id, email, first_name, last_name, role FROM customers WHERE id = $1`

const getMenuSQL = `SELECT id, title, price_per_person, minimum_guests, remaining_stock
	FROM menus WHERE id = $1`

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// WithinTx runs fn in a read-committed transaction. Row locks taken through
// Tx.LockForUpdate serialize concurrent mutations of the same order.
func (s *OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// Get returns an order with its customer and history.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	return retryRead(ctx, func(ctx context.Context) (*order.Order, error) {
		return loadOrder(ctx, s.pool, getOrderSQL, id)
	})
}

// List returns matching orders, newest first.
func (s *OrderStore) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	return retryRead(ctx, func(ctx context.Context) ([]order.Order, error) {
		rows, err := s.pool.Query(ctx, listOrdersSQL, f.CustomerID, string(f.Status))
		if err != nil {
			return nil, fmt.Errorf("listing orders: %w", err)
		}
		orders, err := pgx.CollectRows(rows, scanOrder)
		if err != nil {
			return nil, fmt.Errorf("scanning orders: %w", err)
		}
		if err := attachHistory(ctx, s.pool, orders); err != nil {
			return nil, err
		}
		return orders, nil
	})
}

type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

func (t *orderTx) Customer(ctx context.Context, id int64) (*order.Customer, error) {
	rows, err := t.tx.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Customer, error) {
		var (
			c    order.Customer
			role string
		)
		err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &role)
		c.Role = auth.Role(role)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Resource: "customer", ID: id}
		}
		return nil, fmt.Errorf("scanning customer %d: %w", id, err)
	}
	return &c, nil
}

func (t *orderTx) Menu(ctx context.Context, id int64) (*order.Menu, error) {
	rows, err := t.tx.Query(ctx, getMenuSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu %d: %w", id, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Menu, error) {
		var m order.Menu
		err := row.Scan(&m.ID, &m.Title, &m.PricePerPerson, &m.MinimumGuests, &m.RemainingStock)
		return m, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Resource: "menu", ID: id}
		}
		return nil, fmt.Errorf("scanning menu %d: %w", id, err)
	}
	return &m, nil
}

func (t *orderTx) Inventory() inventory.Ledger {
	return &Ledger{q: t.tx}
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.Number, o.CustomerID, o.MenuID, o.Menu.Title,
		o.Menu.PricePerPerson, o.Menu.MinimumGuests, o.ServiceDate, o.ServiceTime, o.Address, o.GuestCount,
		o.MenuPrice, o.DeliveryPrice, string(o.Status), string(o.ContactMode), o.CreatedAt,
	).Scan(&o.ID, &o.Version)
	if err != nil {
		if isUniqueViolation(err, orderNumberConstraint) {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

func (t *orderTx) LockForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return loadOrder(ctx, t.tx, lockOrderSQL, id)
}

func (t *orderTx) Update(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, updateOrderSQL,
		o.ID, o.ServiceDate, o.ServiceTime, o.Address, o.GuestCount,
		o.MenuPrice, o.DeliveryPrice, string(o.Status), o.CancellationReason, string(o.ContactMode),
	).Scan(&o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &order.NotFoundError{Resource: "order", ID: o.ID}
		}
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) AppendHistory(ctx context.Context, orderID int64, e order.HistoryEntry) error {
	if _, err := t.tx.Exec(ctx, appendHistorySQL, orderID, string(e.Status), e.EnteredAt); err != nil {
		return fmt.Errorf("appending history to order %d: %w", orderID, err)
	}
	return nil
}

func loadOrder(ctx context.Context, q querier, sql string, id int64) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Resource: "order", ID: id}
		}
		return nil, fmt.Errorf("scanning order %d: %w", id, err)
	}

	orders := []order.Order{o}
	if err := attachHistory(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                     order.Order
		status, contact, role string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.MenuID, &o.Menu.Title,
		&o.Menu.PricePerPerson, &o.Menu.MinimumGuests, &o.ServiceDate, &o.ServiceTime, &o.Address,
		&o.GuestCount, &o.MenuPrice, &o.DeliveryPrice, &status, &o.CancellationReason,
		&contact, &o.Version, &o.CreatedAt, &o.Customer.Email, &o.Customer.FirstName, &o.Customer.LastName, &role,
	)
	o.Status = order.Status(status)
	o.ContactMode = order.ContactMode(contact)
	o.Customer.ID = o.CustomerID
	o.Customer.Role = auth.Role(role)
	return o, err
}

// attachHistory loads the history of every order in one query.
func attachHistory(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, historySQL, ids)
	if err != nil {
		return fmt.Errorf("getting order history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID   int64
			status    string
			enteredAt time.Time
		)
		if err := rows.Scan(&orderID, &status, &enteredAt); err != nil {
			return fmt.Errorf("scanning order history: %w", err)
		}
		i := index[orderID]
		orders[i].History = append(orders[i].History, order.HistoryEntry{
			Status:    order.Status(status),
			EnteredAt: enteredAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading order history: %w", err)
	}
	return nil
}
