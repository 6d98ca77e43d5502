package order

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/catering-orders/internal/domain/inventory"
)

// memStore is an in-memory Store. Transactions are serialized by a single
// mutex and roll back by restoring a copy of the state.
type memStore struct {
	mu sync.Mutex

	customers map[int64]Customer
	menus     map[int64]Menu
	orders    map[int64]Order
	history   map[int64][]HistoryEntry
	numbers   map[string]bool
	nextID    int64

	// duplicateInserts makes the next N inserts fail with ErrDuplicateNumber.
	duplicateInserts int
	updateErr        error
	txCount          int
}

func newMemStore() *memStore {
	return &memStore{
		customers: make(map[int64]Customer),
		menus:     make(map[int64]Menu),
		orders:    make(map[int64]Order),
		history:   make(map[int64][]HistoryEntry),
		numbers:   make(map[string]bool),
	}
}

type memState struct {
	menus   map[int64]Menu
	orders  map[int64]Order
	history map[int64][]HistoryEntry
	numbers map[string]bool
	nextID  int64
}

func (s *memStore) save() memState {
	h := make(map[int64][]HistoryEntry, len(s.history))
	for k, v := range s.history {
		h[k] = slices.Clone(v)
	}
	return memState{
		menus:   maps.Clone(s.menus),
		orders:  maps.Clone(s.orders),
		history: h,
		numbers: maps.Clone(s.numbers),
		nextID:  s.nextID,
	}
}

func (s *memStore) restore(st memState) {
	s.menus, s.orders, s.history, s.numbers, s.nextID = st.menus, st.orders, st.history, st.numbers, st.nextID
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	saved := s.save()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *memStore) Get(_ context.Context, id int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Order
	for id, o := range s.orders {
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		loaded, _ := s.load(id)
		out = append(out, *loaded)
	}
	slices.SortFunc(out, func(a, b Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

func (s *memStore) load(id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	o.Customer = s.customers[o.CustomerID]
	o.History = slices.Clone(s.history[id])
	return &o, nil
}

func (s *memStore) stock(menuID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menus[menuID].RemainingStock
}

type memTx struct {
	s *memStore
}

func (t *memTx) Customer(_ context.Context, id int64) (*Customer, error) {
	c, ok := t.s.customers[id]
	if !ok {
		return nil, &NotFoundError{Resource: "customer", ID: id}
	}
	return &c, nil
}

func (t *memTx) Menu(_ context.Context, id int64) (*Menu, error) {
	m, ok := t.s.menus[id]
	if !ok {
		return nil, &NotFoundError{Resource: "menu", ID: id}
	}
	return &m, nil
}

func (t *memTx) Inventory() inventory.Ledger { return memLedger{s: t.s} }

func (t *memTx) Insert(_ context.Context, o *Order) error {
	if t.s.duplicateInserts > 0 {
		t.s.duplicateInserts--
		return ErrDuplicateNumber
	}
	if t.s.numbers[o.Number] {
		return ErrDuplicateNumber
	}
	t.s.nextID++
	o.ID = t.s.nextID
	o.Version = 1
	stored := *o
	stored.History = nil
	t.s.orders[o.ID] = stored
	t.s.numbers[o.Number] = true
	return nil
}

func (t *memTx) LockForUpdate(_ context.Context, id int64) (*Order, error) {
	return t.s.load(id)
}

func (t *memTx) Update(_ context.Context, o *Order) error {
	if t.s.updateErr != nil {
		return t.s.updateErr
	}
	prev, ok := t.s.orders[o.ID]
	if !ok {
		return &NotFoundError{Resource: "order", ID: o.ID}
	}
	o.Version = prev.Version + 1
	stored := *o
	stored.History = nil
	t.s.orders[o.ID] = stored
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, orderID int64, e HistoryEntry) error {
	t.s.history[orderID] = append(t.s.history[orderID], e)
	return nil
}

type memLedger struct {
	s *memStore
}

func (l memLedger) Reserve(_ context.Context, menuID int64) error {
	m, ok := l.s.menus[menuID]
	if !ok {
		return inventory.ErrMenuNotFound
	}
	if m.RemainingStock <= 0 {
		return inventory.ErrOutOfStock
	}
	m.RemainingStock--
	l.s.menus[menuID] = m
	return nil
}

func (l memLedger) Release(_ context.Context, menuID int64) error {
	m, ok := l.s.menus[menuID]
	if !ok {
		return nil
	}
	m.RemainingStock++
	l.s.menus[menuID] = m
	return nil
}

var errBoom = errors.New("boom")
