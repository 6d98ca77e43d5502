package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catering-orders/internal/domain/order"
	"github.com/xenking/catering-orders/internal/domain/stats"
)

// MenuStats returns order counts and revenue per menu. Staff only.
func (h *Handler) MenuStats(w http.ResponseWriter, r *http.Request) {
	if !principal(r).IsStaff() {
		writeError(w, r, order.ErrForbidden)
		return
	}
	aggs, err := h.stats.MenuStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, a := range aggs {
			e.ObjStart()
			e.FieldStart("menuId")
			encodeOptionalID(e, a.MenuID)
			e.FieldStart("menuTitle")
			e.Str(a.MenuTitle)
			e.FieldStart("orders")
			e.Int64(a.Orders)
			e.FieldStart("revenue")
			encodeMoney(e, a.Revenue)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

// Revenue lists revenue-bearing orders filtered by menu and order date.
// Staff only.
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	if !principal(r).IsStaff() {
		writeError(w, r, order.ErrForbidden)
		return
	}
	f, err := parseRevenueFilter(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	entries, err := h.stats.Revenue(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total := decimal.Zero
	for _, en := range entries {
		total = total.Add(en.Total)
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("total")
		encodeMoney(e, total)
		e.FieldStart("entries")
		e.ArrStart()
		for _, en := range entries {
			e.ObjStart()
			e.FieldStart("orderId")
			e.Int64(en.OrderID)
			e.FieldStart("orderNumber")
			e.Str(en.OrderNumber)
			e.FieldStart("menuId")
			encodeOptionalID(e, en.MenuID)
			e.FieldStart("menuTitle")
			e.Str(en.MenuTitle)
			e.FieldStart("orderedAt")
			encodeTime(e, en.OrderedAt)
			e.FieldStart("total")
			encodeMoney(e, en.Total)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// parseRevenueFilter reads menuId, from and to. Bounds accept RFC 3339 or a
// plain date; a plain "to" date includes that whole day.
func parseRevenueFilter(r *http.Request) (stats.RevenueFilter, error) {
	var f stats.RevenueFilter
	q := r.URL.Query()

	if v := q.Get("menuId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, errors.Errorf("invalid menuId %q", v)
		}
		f.MenuID = &id
	}
	if v := q.Get("from"); v != "" {
		t, _, err := parseBound(v)
		if err != nil {
			return f, errors.Wrap(err, "from")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, dateOnly, err := parseBound(v)
		if err != nil {
			return f, errors.Wrap(err, "to")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, errors.New("from must be before to")
	}
	return f, nil
}

func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, errors.Errorf("invalid time %q", v)
	}
	return t.UTC(), false, nil
}
