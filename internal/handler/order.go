package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/domain/order"
)

// CreateOrder places an order for the authenticated customer.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	req := order.CreateRequest{CustomerID: p.UserID}
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "menuId":
			req.MenuID, err = d.Int64()
		case "guestCount":
			req.GuestCount, err = d.Int()
		case "serviceDate":
			req.ServiceDate, err = decodeDate(d)
		case "serviceTime":
			req.ServiceTime, err = d.Str()
		case "address":
			req.Address, err = d.Str()
		case "contactMode":
			var s string
			if s, err = d.Str(); err == nil && s != "" {
				req.ContactMode, err = order.ParseContactMode(s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders lists the caller's orders, or all orders for staff.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var f order.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f.Status = st
	}

	orders, err := h.orders.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

// GetOrder returns one order with its history.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ModifyOrder applies a customer edit to a received order.
func (h *Handler) ModifyOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	req := order.ModifyRequest{OrderID: id, CallerID: principal(r).UserID}
	err = readObject(r, func(d *jx.Decoder, key string) error {
		if null, err := isNull(d); null || err != nil {
			return err
		}
		switch key {
		case "guestCount":
			v, err := d.Int()
			req.GuestCount = &v
			return err
		case "serviceDate":
			v, err := decodeDate(d)
			req.ServiceDate = &v
			return err
		case "serviceTime":
			v, err := d.Str()
			req.ServiceTime = &v
			return err
		case "address":
			v, err := d.Str()
			req.Address = &v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	o, err := h.orders.Modify(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// CancelOrder cancels a received order of the caller.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), id, principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// AdvanceStatus moves an order along the state machine. Staff only.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	req := order.AdvanceRequest{OrderID: id, Actor: principal(r)}
	err = readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			var s string
			if s, err = d.Str(); err == nil && s != "" {
				req.Status, err = order.ParseStatus(s)
			}
		case "cancellationReason":
			req.CancellationReason, err = d.Str()
		case "contactMode":
			var s string
			if s, err = d.Str(); err == nil && s != "" {
				req.ContactMode, err = order.ParseContactMode(s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if req.Status == "" {
		writeBadRequest(w, r, errors.New("status is required"))
		return
	}

	o, err := h.orders.AdvanceStatus(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("orderNumber")
	e.Str(o.Number)
	e.FieldStart("customer")
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.CustomerID)
	e.FieldStart("email")
	e.Str(o.Customer.Email)
	e.FieldStart("firstName")
	e.Str(o.Customer.FirstName)
	e.FieldStart("lastName")
	e.Str(o.Customer.LastName)
	e.ObjEnd()
	e.FieldStart("menu")
	e.ObjStart()
	e.FieldStart("id")
	encodeOptionalID(e, o.MenuID)
	e.FieldStart("title")
	e.Str(o.Menu.Title)
	e.FieldStart("pricePerPerson")
	encodeMoney(e, o.Menu.PricePerPerson)
	e.FieldStart("minimumGuests")
	e.Int(o.Menu.MinimumGuests)
	e.ObjEnd()
	e.FieldStart("serviceDate")
	e.Str(o.ServiceDate.Format("2006-01-02"))
	e.FieldStart("serviceTime")
	e.Str(o.ServiceTime)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("guestCount")
	e.Int(o.GuestCount)
	e.FieldStart("menuPrice")
	encodeMoney(e, o.MenuPrice)
	e.FieldStart("deliveryPrice")
	encodeMoney(e, o.DeliveryPrice)
	e.FieldStart("total")
	encodeMoney(e, o.Total())
	e.FieldStart("status")
	e.Str(string(o.Status))
	if o.CancellationReason != "" {
		e.FieldStart("cancellationReason")
		e.Str(o.CancellationReason)
	}
	if o.ContactMode != "" {
		e.FieldStart("contactMode")
		e.Str(string(o.ContactMode))
	}
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("history")
	e.ArrStart()
	for _, h := range o.History {
		e.ObjStart()
		e.FieldStart("status")
		e.Str(string(h.Status))
		e.FieldStart("enteredAt")
		encodeTime(e, h.EnteredAt)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
