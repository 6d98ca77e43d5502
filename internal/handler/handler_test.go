package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/domain/inventory"
	"github.com/xenking/catering-orders/internal/domain/notify"
	"github.com/xenking/catering-orders/internal/domain/order"
	"github.com/xenking/catering-orders/internal/domain/review"
	"github.com/xenking/catering-orders/internal/domain/stats"
)

type fakeStore struct {
	mu        sync.Mutex
	customers map[int64]order.Customer
	menus     map[int64]order.Menu
	orders    map[int64]order.Order
	nextID    int64
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, fakeTx{s})
}

func (s *fakeStore) Get(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *fakeStore) List(_ context.Context, f order.ListFilter) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for id, o := range s.orders {
		if (f.CustomerID == 0 || o.CustomerID == f.CustomerID) && (f.Status == "" || o.Status == f.Status) {
			loaded, _ := s.load(id)
			out = append(out, *loaded)
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int { return int(b.ID - a.ID) })
	return out, nil
}

func (s *fakeStore) load(id int64) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, &order.NotFoundError{Resource: "order", ID: id}
	}
	o.Customer = s.customers[o.CustomerID]
	o.History = slices.Clone(o.History)
	return &o, nil
}

type fakeTx struct{ s *fakeStore }

func (t fakeTx) Customer(_ context.Context, id int64) (*order.Customer, error) {
	c, ok := t.s.customers[id]
	if !ok {
		return nil, &order.NotFoundError{Resource: "customer", ID: id}
	}
	return &c, nil
}

func (t fakeTx) Menu(_ context.Context, id int64) (*order.Menu, error) {
	m, ok := t.s.menus[id]
	if !ok {
		return nil, &order.NotFoundError{Resource: "menu", ID: id}
	}
	return &m, nil
}

func (t fakeTx) Inventory() inventory.Ledger { return fakeLedger(t) }

func (t fakeTx) Insert(_ context.Context, o *order.Order) error {
	t.s.nextID++
	o.ID = t.s.nextID
	o.Version = 1
	t.s.orders[o.ID] = *o
	return nil
}

func (t fakeTx) LockForUpdate(_ context.Context, id int64) (*order.Order, error) {
	return t.s.load(id)
}

func (t fakeTx) Update(_ context.Context, o *order.Order) error {
	prev := t.s.orders[o.ID]
	o.Version = prev.Version + 1
	stored := *o
	stored.History = prev.History
	t.s.orders[o.ID] = stored
	return nil
}

func (t fakeTx) AppendHistory(_ context.Context, orderID int64, e order.HistoryEntry) error {
	o := t.s.orders[orderID]
	o.History = append(o.History, e)
	t.s.orders[orderID] = o
	return nil
}

type fakeLedger fakeTx

func (l fakeLedger) Reserve(_ context.Context, menuID int64) error {
	m, ok := l.s.menus[menuID]
	switch {
	case !ok:
		return inventory.ErrMenuNotFound
	case m.RemainingStock == 0:
		return inventory.ErrOutOfStock
	}
	m.RemainingStock--
	l.s.menus[menuID] = m
	return nil
}

func (l fakeLedger) Release(_ context.Context, menuID int64) error {
	m := l.s.menus[menuID]
	m.RemainingStock++
	l.s.menus[menuID] = m
	return nil
}

type inlineDispatcher struct{}

func (inlineDispatcher) Go(ctx context.Context, _ string, fn func(ctx context.Context) error) {
	_ = fn(ctx)
}

type fakeReviews struct {
	mu      sync.Mutex
	reviews []review.Review
}

func (f *fakeReviews) Create(_ context.Context, r *review.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reviews {
		if existing.OrderID == r.OrderID {
			return review.ErrAlreadyReviewed
		}
	}
	r.ID = int64(len(f.reviews) + 1)
	r.CreatedAt = time.Now().UTC()
	f.reviews = append(f.reviews, *r)
	return nil
}

func (f *fakeReviews) SetStatus(_ context.Context, id int64, s review.Status) (*review.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID == id {
			f.reviews[i].Status = s
			rv := f.reviews[i]
			return &rv, nil
		}
	}
	return nil, review.ErrNotFound
}

func (f *fakeReviews) ListByStatus(_ context.Context, s review.Status) ([]review.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []review.Review
	for _, rv := range f.reviews {
		if rv.Status == s {
			out = append(out, rv)
		}
	}
	return out, nil
}

// storeSource derives stats from the fake store.
type storeSource struct{ s *fakeStore }

func (src storeSource) Snapshots(ctx context.Context) ([]stats.Snapshot, error) {
	orders, err := src.s.List(ctx, order.ListFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]stats.Snapshot, len(orders))
	for i := range orders {
		out[i] = order.SnapshotOf(&orders[i])
	}
	return out, nil
}

func (src storeSource) MenuAggregates(ctx context.Context) ([]stats.MenuAggregate, error) {
	snaps, err := src.Snapshots(ctx)
	return stats.Aggregate(snaps), err
}

func (src storeSource) Revenue(ctx context.Context, f stats.RevenueFilter) ([]stats.RevenueEntry, error) {
	snaps, err := src.Snapshots(ctx)
	return stats.Revenue(snaps, f), err
}

const (
	aliceID    int64 = 1
	bobID      int64 = 2
	julieID    int64 = 10
	prestigeID int64 = 100
)

var testSecret = []byte("test-secret")

type testServer struct {
	t      *testing.T
	store  *fakeStore
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &fakeStore{
		customers: map[int64]order.Customer{
			aliceID: {ID: aliceID, Email: "alice@example.com", FirstName: "Alice", Role: auth.RoleCustomer},
			bobID:   {ID: bobID, Email: "bob@example.com", FirstName: "Bob", Role: auth.RoleCustomer},
			julieID: {ID: julieID, Email: "julie@example.com", FirstName: "Julie", Role: auth.RoleEmployee},
		},
		menus: map[int64]order.Menu{
			prestigeID: {ID: prestigeID, Title: "Menu Prestige", PricePerPerson: decimal.RequireFromString("65.00"), MinimumGuests: 8, RemainingStock: 2},
		},
		orders: map[int64]order.Order{},
	}
	orders := order.NewService(store, notify.Nop{}, stats.Nop{}, inlineDispatcher{})
	reviews := review.NewService(store, &fakeReviews{})
	statsSvc := stats.NewService(stats.Nop{}, storeSource{store})

	r := chi.NewRouter()
	NewHandler(orders, reviews, statsSvc).Register(r, NewAuthenticator(testSecret).Middleware)
	return &testServer{t: t, store: store, router: r}
}

func token(t *testing.T, id int64, role auth.Role) string {
	t.Helper()
	tok, err := Sign(testSecret, auth.Principal{UserID: id, Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, tok, body string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (s *testServer) createOrder(tok, address string, guests int) (int64, map[string]any) {
	s.t.Helper()
	body := `{"menuId":100,"guestCount":` + strconv.Itoa(guests) + `,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"` + address + `"}`
	w, out := s.do(http.MethodPost, "/api/orders", tok, body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return int64(out["id"].(float64)), out
}

func path(id int64, suffix string) string {
	return "/api/orders/" + strconv.FormatInt(id, 10) + suffix
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token(t, aliceID, auth.RoleCustomer), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"error":"Unauthorized"`)
			}
		})
	}
}

func TestAuthenticator_RejectsForeignSignatureAndRole(t *testing.T) {
	a := NewAuthenticator(testSecret)

	other, err := Sign([]byte("other"), auth.Principal{UserID: 1, Role: auth.RoleAdmin}, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = a.Authenticate(other)
	assert.Error(t, err)

	expired, err := Sign(testSecret, auth.Principal{UserID: 1, Role: auth.RoleAdmin}, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = a.Authenticate(expired)
	assert.Error(t, err)

	badRole, err := Sign(testSecret, auth.Principal{UserID: 1, Role: "chef"}, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = a.Authenticate(badRole)
	assert.Error(t, err)

	p, err := a.Authenticate(token(t, julieID, auth.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{UserID: julieID, Role: auth.RoleEmployee}, p)
}

func TestCreateOrder_Pricing(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)

	_, local := s.createOrder(alice, "Place de la Bourse, Bordeaux", 13)
	assert.Equal(t, 760.5, local["total"])
	assert.Equal(t, 0.0, local["deliveryPrice"])
	assert.Equal(t, "received", local["status"])
	assert.Regexp(t, `^CMD-[0-9A-F]{8}$`, local["orderNumber"])
	assert.Len(t, local["history"], 1)

	_, remote := s.createOrder(alice, "15 Rue X, 75000 Paris", 8)
	assert.Equal(t, 520.0, remote["menuPrice"])
	assert.Equal(t, 16.8, remote["deliveryPrice"])
	assert.Equal(t, 536.8, remote["total"])

	assert.Equal(t, 0, s.store.menus[prestigeID].RemainingStock)
}

func TestCreateOrder_Errors(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{name: "not json", body: `nope`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "array body", body: `[]`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "bad date", body: `{"menuId":100,"guestCount":8,"serviceDate":"24/12/2026"}`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "bad contact", body: `{"menuId":100,"contactMode":"fax"}`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "below minimum", body: `{"menuId":100,"guestCount":7,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"Bordeaux"}`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "too many guests", body: `{"menuId":100,"guestCount":100001,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"Bordeaux"}`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "guest count overflows", body: `{"menuId":100,"guestCount":99999999999999999999,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"Bordeaux"}`, wantCode: http.StatusBadRequest, wantKind: "InvalidRequest"},
		{name: "unknown menu", body: `{"menuId":999,"guestCount":8,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"Bordeaux"}`, wantCode: http.StatusNotFound, wantKind: "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := s.do(http.MethodPost, "/api/orders", alice, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantKind, out["error"])
			assert.Equal(t, float64(tt.wantCode), out["status"])
		})
	}
}

func TestCreateOrder_StaffForbidden(t *testing.T) {
	s := newTestServer(t)
	julie := token(t, julieID, auth.RoleEmployee)

	w, out := s.do(http.MethodPost, "/api/orders", julie,
		`{"menuId":100,"guestCount":8,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"Bordeaux"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", out["error"])
	assert.Equal(t, 2, s.store.menus[prestigeID].RemainingStock)
}

func TestCreateOrder_OutOfStock(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)
	s.createOrder(alice, "Bordeaux", 8)
	s.createOrder(alice, "Bordeaux", 8)

	w, out := s.do(http.MethodPost, "/api/orders", alice,
		`{"menuId":100,"guestCount":8,"serviceDate":"2026-12-24","serviceTime":"12:00","address":"Bordeaux"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "OutOfStock", out["error"])
}

func TestOrderVisibility(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)
	bob := token(t, bobID, auth.RoleCustomer)
	julie := token(t, julieID, auth.RoleEmployee)
	id, _ := s.createOrder(alice, "Bordeaux", 8)

	w, _ := s.do(http.MethodGet, path(id, ""), alice, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, out := s.do(http.MethodGet, path(id, ""), bob, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", out["error"])

	w, _ = s.do(http.MethodGet, path(id, ""), julie, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/orders/abc", alice, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/orders/404", alice, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/api/orders", bob, "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w, _ = s.do(http.MethodGet, "/api/orders?status=received", julie, "")
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w, out = s.do(http.MethodGet, "/api/orders?status=bogus", julie, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", out["error"])
}

func TestModifyAndCancel(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)
	bob := token(t, bobID, auth.RoleCustomer)
	id, _ := s.createOrder(alice, "Bordeaux", 8)

	w, out := s.do(http.MethodPut, path(id, ""), alice, `{"guestCount":13,"address":null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 760.5, out["total"])
	assert.Equal(t, "Bordeaux", out["address"])

	w, out = s.do(http.MethodDelete, path(id, ""), bob, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", out["error"])

	w, out = s.do(http.MethodDelete, path(id, ""), alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", out["status"])
	assert.Equal(t, 2, s.store.menus[prestigeID].RemainingStock)

	w, out = s.do(http.MethodPut, path(id, ""), alice, `{"guestCount":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NotModifiable", out["error"])
}

func TestAdvanceStatus(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)
	julie := token(t, julieID, auth.RoleEmployee)
	id, _ := s.createOrder(alice, "Bordeaux", 8)

	w, out := s.do(http.MethodPut, path(id, "/status"), alice, `{"status":"accepted"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", out["error"])

	w, out = s.do(http.MethodPut, path(id, "/status"), julie, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", out["error"])

	w, out = s.do(http.MethodPut, path(id, "/status"), julie, `{"status":"delivered"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidTransition", out["error"])

	w, out = s.do(http.MethodPut, path(id, "/status"), julie, `{"status":"cancelled","cancellationReason":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MissingCancellationReason", out["error"])

	w, out = s.do(http.MethodPut, path(id, "/status"), julie, `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", out["error"])

	w, out = s.do(http.MethodPut, path(id, "/status"), julie, `{"status":" Accepted "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", out["status"])
	assert.Len(t, out["history"], 2)

	w, out = s.do(http.MethodPut, path(id, "/status"), julie,
		`{"status":"cancelled","cancellationReason":"Client request","contactMode":"gsm"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", out["status"])
	assert.Equal(t, "Client request", out["cancellationReason"])
	assert.Equal(t, "phone", out["contactMode"])
}

func TestReviews(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)
	julie := token(t, julieID, auth.RoleEmployee)
	id, _ := s.createOrder(alice, "Bordeaux", 8)

	w, out := s.do(http.MethodPost, path(id, "/review"), alice, `{"rating":5,"comment":"Superb"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NotReviewable", out["error"])

	for _, st := range []string{"accepted", "in_preparation", "in_delivery", "delivered", "completed"} {
		w, _ = s.do(http.MethodPut, path(id, "/status"), julie, `{"status":"`+st+`"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, out = s.do(http.MethodPost, path(id, "/review"), alice, `{"rating":6,"comment":"Superb"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", out["error"])

	w, out = s.do(http.MethodPost, path(id, "/review"), alice, `{"rating":5,"comment":"Superb"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "pending", out["status"])
	reviewID := int64(out["id"].(float64))

	w, out = s.do(http.MethodPost, path(id, "/review"), alice, `{"rating":4,"comment":"Again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AlreadyReviewed", out["error"])

	w, _ = s.do(http.MethodGet, "/api/reviews", "", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	reviewPath := "/api/reviews/" + strconv.FormatInt(reviewID, 10)
	w, _ = s.do(http.MethodPut, reviewPath, alice, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out = s.do(http.MethodPut, reviewPath, julie, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", out["status"])

	w, _ = s.do(http.MethodGet, "/api/reviews", "", "")
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Superb", list[0]["comment"])
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	alice := token(t, aliceID, auth.RoleCustomer)
	julie := token(t, julieID, auth.RoleEmployee)
	s.createOrder(alice, "Place de la Bourse, Bordeaux", 13)
	cancelled, _ := s.createOrder(alice, "Bordeaux", 8)
	s.do(http.MethodDelete, path(cancelled, ""), alice, "")

	w, out := s.do(http.MethodGet, "/api/stats/menus", alice, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", out["error"])

	w, _ = s.do(http.MethodGet, "/api/stats/menus", julie, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[{"menuId":100,"menuTitle":"Menu Prestige","orders":1,"revenue":760.50}]`, w.Body.String())

	w, out = s.do(http.MethodGet, "/api/stats/revenue?menuId=100", julie, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 760.5, out["total"])
	assert.Len(t, out["entries"], 1)

	w, _ = s.do(http.MethodGet, "/api/stats/revenue?from=2000-01-01&to=2000-01-31", julie, "")
	assert.Contains(t, w.Body.String(), `"total":0.00`)

	w, out = s.do(http.MethodGet, "/api/stats/revenue?from=2026-02-01&to=2026-01-01", julie, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", out["error"])
}

func TestParseRevenueFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?menuId=3&from=2026-01-01&to=2026-01-31", nil)
	f, err := parseRevenueFilter(req)
	require.NoError(t, err)
	require.NotNil(t, f.MenuID)
	assert.Equal(t, int64(3), *f.MenuID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), f.To)

	req = httptest.NewRequest(http.MethodGet, "/?to=2026-01-31T10:00:00Z", nil)
	f, err = parseRevenueFilter(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC), f.To)

	for _, q := range []string{"menuId=x", "from=yesterday", "to=2026-13-01"} {
		_, err := parseRevenueFilter(httptest.NewRequest(http.MethodGet, "/?"+q, nil))
		assert.Error(t, err, q)
	}
}

func TestInternalErrorIsGeneric(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Internal"`)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
