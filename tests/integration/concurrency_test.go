//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"
)

// result is the outcome of one request sent from a worker goroutine, where
// t.Fatal is not allowed.
type result struct {
	code int
	kind string
	err  error
}

func send(method, path, email string, body any) result {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return result{err: err}
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, bytes.NewReader(data))
	if err != nil {
		return result{err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+tokens[email])

	resp, err := httpClient.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()

	r := result{code: resp.StatusCode}
	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			r.err = fmt.Errorf("decode error envelope: %w", err)
		}
		r.kind = e.Error
	}
	return r
}

// newMenu inserts a menu with the given stock straight into the database so
// no other test consumes it.
func newMenu(t *testing.T, stock int) int64 {
	t.Helper()
	title := fmt.Sprintf("%s %d", t.Name(), time.Now().UnixNano())
	out := psql(t, fmt.Sprintf(
		`INSERT INTO menus (title, price_per_person, minimum_guests, remaining_stock)
		 VALUES ('%s', 30.00, 1, %d) RETURNING id`, title, stock))
	id, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		t.Fatalf("parse menu id %q: %v", out, err)
	}
	return id
}

func remainingStock(t *testing.T, menuID int64) int {
	t.Helper()
	out := psql(t, fmt.Sprintf(`SELECT remaining_stock FROM menus WHERE id = %d`, menuID))
	n, err := strconv.Atoi(out)
	if err != nil {
		t.Fatalf("parse stock %q: %v", out, err)
	}
	return n
}

func TestConcurrentCreate_LastUnitSoldOnce(t *testing.T) {
	const buyers = 16
	menuID := newMenu(t, 1)

	results := make([]result, buyers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range buyers {
		email := aliceEmail
		if i%2 == 1 {
			email = bobEmail
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = send(http.MethodPost, "/api/orders", email, orderBody(menuID, 4, bordeauxAddress))
		}()
	}
	close(start)
	wg.Wait()

	created := 0
	for i, r := range results {
		switch {
		case r.err != nil:
			t.Fatalf("buyer %d: %v", i, r.err)
		case r.code == http.StatusCreated:
			created++
		case r.code == http.StatusBadRequest && r.kind == "OutOfStock":
		default:
			t.Errorf("buyer %d: got %d %s, want 201 or 400 OutOfStock", i, r.code, r.kind)
		}
	}
	if created != 1 {
		t.Errorf("created %d orders for a single unit, want exactly 1", created)
	}
	if got := remainingStock(t, menuID); got != 0 {
		t.Errorf("remaining stock: got %d, want 0", got)
	}
}

func TestConcurrentCancelAndAccept_OneWinner(t *testing.T) {
	const rounds = 8
	menuID := newMenu(t, rounds)

	cancelled := 0
	for round := range rounds {
		o := createOrder(t, aliceEmail, menuID, 4, bordeauxAddress)

		var cancel, accept result
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			cancel = send(http.MethodDelete, orderPath(o.ID), aliceEmail, nil)
		}()
		go func() {
			defer wg.Done()
			<-start
			accept = send(http.MethodPut, orderPath(o.ID)+"/status", julieEmail, map[string]any{"status": "accepted"})
		}()
		close(start)
		wg.Wait()

		if cancel.err != nil || accept.err != nil {
			t.Fatalf("round %d: cancel err %v, accept err %v", round, cancel.err, accept.err)
		}

		var want string
		switch {
		case cancel.code == http.StatusOK && accept.code == http.StatusBadRequest && accept.kind == "InvalidTransition":
			want = "cancelled"
			cancelled++
		case accept.code == http.StatusOK && cancel.code == http.StatusBadRequest && cancel.kind == "NotModifiable":
			want = "accepted"
		default:
			t.Fatalf("round %d: cancel %d %s, accept %d %s, want exactly one winner",
				round, cancel.code, cancel.kind, accept.code, accept.kind)
		}

		resp := do(t, http.MethodGet, orderPath(o.ID), aliceEmail, nil)
		expectStatus(t, resp, http.StatusOK)
		got := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()
		if got.Status != want {
			t.Errorf("round %d: status %q, want %q", round, got.Status, want)
		}
		if len(got.History) != 2 || got.History[1].Status != want {
			t.Errorf("round %d: history %+v, want received then %s", round, got.History, want)
		}
	}

	// Every cancellation returned its unit; accepted orders keep theirs.
	if got := remainingStock(t, menuID); got != cancelled {
		t.Errorf("remaining stock: got %d, want %d", got, cancelled)
	}
}
