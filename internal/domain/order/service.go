package order

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/domain/inventory"
	"github.com/xenking/catering-orders/internal/domain/notify"
	"github.com/xenking/catering-orders/internal/domain/pricing"
	"github.com/xenking/catering-orders/internal/domain/stats"
)

// maxNumberAttempts bounds create retries on order number collisions.
const maxNumberAttempts = 3

// MaxGuestCount keeps prices and counts within their storage columns.
const MaxGuestCount = 100000

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	CustomerID  int64
	MenuID      int64
	GuestCount  int
	ServiceDate time.Time
	ServiceTime string
	Address     string
	ContactMode ContactMode
}

// ModifyRequest holds a customer edit. Nil fields are left unchanged.
type ModifyRequest struct {
	OrderID     int64
	CallerID    int64
	GuestCount  *int
	ServiceDate *time.Time
	ServiceTime *string
	Address     *string
}

// AdvanceRequest holds a staff status change.
type AdvanceRequest struct {
	OrderID            int64
	Actor              auth.Principal
	Status             Status
	CancellationReason string
	ContactMode        ContactMode
}

// Service orchestrates the order lifecycle.
type Service struct {
	store    Store
	calc     pricing.Calculator
	notifier notify.Notifier
	mirror   stats.Mirror
	effects  Dispatcher

	now       func() time.Time
	newNumber func() string

	created     metric.Int64Counter
	transitions metric.Int64Counter
	outOfStock  metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for history entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNumberGenerator overrides order number generation.
func WithNumberGenerator(fn func() string) Option {
	return func(s *Service) { s.newNumber = fn }
}

// WithMeterProvider records lifecycle counters on mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.initMetrics(mp.Meter("catering/order")) }
}

// NewService creates an order Service.
func NewService(
	store Store,
	notifier notify.Notifier,
	mirror stats.Mirror,
	effects Dispatcher,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		notifier:  notifier,
		mirror:    mirror,
		effects:   effects,
		now:       time.Now,
		newNumber: NewNumber,
	}
	s.initMetrics(noop.NewMeterProvider().Meter(""))
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) initMetrics(m metric.Meter) {
	// Instrument creation only fails on invalid names.
	s.created, _ = m.Int64Counter("orders.created")
	s.transitions, _ = m.Int64Counter("orders.transitions")
	s.outOfStock, _ = m.Int64Counter("orders.out_of_stock")
}

// NewNumber returns a fresh human-readable order number.
func NewNumber() string {
	return "CMD-" + strings.ToUpper(uuid.NewString()[:8])
}

// Create validates and prices a new order, reserves one stock unit and
// records the initial history entry, all in one transaction. Only customer
// accounts place orders.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var created *Order
	for attempt := 1; ; attempt++ {
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			o, err := s.create(ctx, tx, req)
			created = o
			return err
		})
		if errors.Is(err, ErrDuplicateNumber) && attempt < maxNumberAttempts {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrOutOfStock) {
				s.outOfStock.Add(ctx, 1)
			}
			return nil, err
		}
		break
	}

	s.created.Add(ctx, 1)
	s.notify(ctx, created, notify.KindOrderConfirmed)
	s.pushSnapshot(ctx, created)
	return created, nil
}

func (s *Service) create(ctx context.Context, tx Tx, req CreateRequest) (*Order, error) {
	customer, err := tx.Customer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.Role != auth.RoleCustomer {
		return nil, ErrForbidden
	}
	menu, err := tx.Menu(ctx, req.MenuID)
	if err != nil {
		return nil, err
	}
	if req.GuestCount < menu.MinimumGuests {
		return nil, &ValidationError{
			Field:  "guestCount",
			Reason: "must be at least the menu minimum of " + strconv.Itoa(menu.MinimumGuests),
		}
	}

	if err := tx.Inventory().Reserve(ctx, menu.ID); err != nil {
		if errors.Is(err, inventory.ErrMenuNotFound) {
			return nil, &NotFoundError{Resource: "menu", ID: menu.ID}
		}
		return nil, err
	}

	quote := s.calc.Quote(pricing.Input{
		PricePerPerson: menu.PricePerPerson,
		Guests:         req.GuestCount,
		MinimumGuests:  menu.MinimumGuests,
		Address:        req.Address,
	})
	now := s.timestamp()
	menuID := menu.ID
	o := &Order{
		Number:     s.newNumber(),
		CustomerID: customer.ID,
		MenuID:     &menuID,
		Menu: MenuSnapshot{
			Title:          menu.Title,
			PricePerPerson: menu.PricePerPerson,
			MinimumGuests:  menu.MinimumGuests,
		},
		Customer:      *customer,
		ServiceDate:   req.ServiceDate,
		ServiceTime:   strings.TrimSpace(req.ServiceTime),
		Address:       strings.TrimSpace(req.Address),
		GuestCount:    req.GuestCount,
		MenuPrice:     quote.MenuPrice,
		DeliveryPrice: quote.DeliveryPrice,
		Status:        StatusReceived,
		ContactMode:   req.ContactMode,
		CreatedAt:     now,
	}
	if err := tx.Insert(ctx, o); err != nil {
		return nil, err
	}

	entry := HistoryEntry{Status: StatusReceived, EnteredAt: now}
	if err := tx.AppendHistory(ctx, o.ID, entry); err != nil {
		return nil, err
	}
	o.History = []HistoryEntry{entry}
	return o, nil
}

// Modify applies a customer edit to an order that is still received,
// repricing from the menu snapshot taken at order time.
func (s *Service) Modify(ctx context.Context, req ModifyRequest) (*Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var updated *Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := s.lockOwned(ctx, tx, req.OrderID, req.CallerID)
		if err != nil {
			return err
		}

		if req.GuestCount != nil && *req.GuestCount != o.GuestCount {
			if *req.GuestCount < o.Menu.MinimumGuests {
				return &ValidationError{
					Field:  "guestCount",
					Reason: "must be at least the menu minimum of " + strconv.Itoa(o.Menu.MinimumGuests),
				}
			}
			o.GuestCount = *req.GuestCount
			o.MenuPrice = s.calc.MenuPrice(o.Menu.PricePerPerson, o.GuestCount, o.Menu.MinimumGuests)
		}
		if req.Address != nil {
			if addr := strings.TrimSpace(*req.Address); addr != o.Address {
				o.Address = addr
				o.DeliveryPrice = s.calc.DeliveryPrice(addr)
			}
		}
		if req.ServiceDate != nil {
			o.ServiceDate = *req.ServiceDate
		}
		if req.ServiceTime != nil {
			o.ServiceTime = strings.TrimSpace(*req.ServiceTime)
		}

		if err := tx.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushSnapshot(ctx, updated)
	return updated, nil
}

// Cancel is the customer cancellation path, allowed only while received.
// The reserved stock unit is released in the same transaction.
func (s *Service) Cancel(ctx context.Context, orderID, callerID int64) (*Order, error) {
	var cancelled *Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := s.lockOwned(ctx, tx, orderID, callerID)
		if err != nil {
			return err
		}
		if err := s.moveTo(ctx, tx, o, StatusCancelled); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusCancelled))))
	s.notify(ctx, cancelled, notify.KindOrderCancelled)
	s.pushSnapshot(ctx, cancelled)
	return cancelled, nil
}

// AdvanceStatus is the staff transition path. Reaching cancelled releases the
// reserved stock unit exactly like Cancel.
func (s *Service) AdvanceStatus(ctx context.Context, req AdvanceRequest) (*Order, error) {
	if !req.Actor.IsStaff() {
		return nil, ErrForbidden
	}
	if !req.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(req.Status)}
	}

	var advanced *Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(o.Status, req.Status, req.CancellationReason, req.ContactMode); err != nil {
			return err
		}
		if reason := strings.TrimSpace(req.CancellationReason); reason != "" {
			o.CancellationReason = reason
		}
		if req.ContactMode != "" {
			o.ContactMode = req.ContactMode
		}
		if err := s.moveTo(ctx, tx, o, req.Status); err != nil {
			return err
		}
		advanced = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(advanced.Status))))
	switch advanced.Status {
	case StatusAwaitingEquipmentReturn:
		s.notify(ctx, advanced, notify.KindEquipmentReturn)
	case StatusCompleted:
		s.notify(ctx, advanced, notify.KindReviewInvitation)
	case StatusCancelled:
		s.notify(ctx, advanced, notify.KindOrderCancelled)
	}
	s.pushSnapshot(ctx, advanced)
	return advanced, nil
}

// Get returns an order visible to p.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(o.CustomerID) {
		return nil, ErrForbidden
	}
	return o, nil
}

// List returns the orders visible to p, newest first. Customers only ever
// see their own orders.
func (s *Service) List(ctx context.Context, p auth.Principal, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(f.Status)}
	}
	if !p.IsStaff() {
		f.CustomerID = p.UserID
	}
	return s.store.List(ctx, f)
}

// lockOwned locks an order for a customer edit: it must belong to callerID
// and still be received.
func (s *Service) lockOwned(ctx context.Context, tx Tx, orderID, callerID int64) (*Order, error) {
	o, err := tx.LockForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != callerID {
		return nil, ErrForbidden
	}
	if o.Status != StatusReceived {
		return nil, ErrNotModifiable
	}
	return o, nil
}

// moveTo persists a status change and its history entry. Entering
// cancelled releases the order's stock unit.
func (s *Service) moveTo(ctx context.Context, tx Tx, o *Order, to Status) error {
	if to == StatusCancelled && o.MenuID != nil {
		if err := tx.Inventory().Release(ctx, *o.MenuID); err != nil {
			return errors.Wrap(err, "release stock")
		}
	}

	entry := HistoryEntry{Status: to, EnteredAt: s.nextEntryTime(o.History)}
	o.Status = to
	if err := tx.Update(ctx, o); err != nil {
		return err
	}
	if err := tx.AppendHistory(ctx, o.ID, entry); err != nil {
		return err
	}
	o.History = append(o.History, entry)
	return nil
}

// timestamp truncates to the storage precision so round trips are exact.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextEntryTime keeps history strictly increasing even if the clock stalls
// or steps backwards.
func (s *Service) nextEntryTime(history []HistoryEntry) time.Time {
	t := s.timestamp()
	if n := len(history); n > 0 {
		if last := history[n-1].EnteredAt; !t.After(last) {
			t = last.Add(time.Microsecond)
		}
	}
	return t
}

func (r CreateRequest) validate() error {
	switch {
	case r.CustomerID <= 0:
		return &ValidationError{Field: "customerId", Reason: "required"}
	case r.MenuID <= 0:
		return &ValidationError{Field: "menuId", Reason: "required"}
	case r.GuestCount < 1:
		return &ValidationError{Field: "guestCount", Reason: "must be at least 1"}
	case r.GuestCount > MaxGuestCount:
		return &ValidationError{Field: "guestCount", Reason: "must be at most " + strconv.Itoa(MaxGuestCount)}
	case r.ServiceDate.IsZero():
		return &ValidationError{Field: "serviceDate", Reason: "required"}
	case strings.TrimSpace(r.ServiceTime) == "":
		return &ValidationError{Field: "serviceTime", Reason: "required"}
	case strings.TrimSpace(r.Address) == "":
		return &ValidationError{Field: "address", Reason: "required"}
	}
	return nil
}

func (r ModifyRequest) validate() error {
	switch {
	case r.GuestCount != nil && *r.GuestCount < 1:
		return &ValidationError{Field: "guestCount", Reason: "must be at least 1"}
	case r.GuestCount != nil && *r.GuestCount > MaxGuestCount:
		return &ValidationError{Field: "guestCount", Reason: "must be at most " + strconv.Itoa(MaxGuestCount)}
	case r.ServiceDate != nil && r.ServiceDate.IsZero():
		return &ValidationError{Field: "serviceDate", Reason: "must not be empty"}
	case r.ServiceTime != nil && strings.TrimSpace(*r.ServiceTime) == "":
		return &ValidationError{Field: "serviceTime", Reason: "must not be empty"}
	case r.Address != nil && strings.TrimSpace(*r.Address) == "":
		return &ValidationError{Field: "address", Reason: "must not be empty"}
	}
	return nil
}
