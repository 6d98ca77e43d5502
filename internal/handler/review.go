package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/catering-orders/internal/domain/review"
)

// CreateReview rates a completed order of the caller.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	req := review.CreateRequest{OrderID: id, CallerID: principal(r).UserID}
	err = readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rating":
			req.Rating, err = d.Int()
		case "comment":
			req.Comment, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	rv, err := h.reviews.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReview(e, rv) })
}

// ModerateReview approves or rejects a review. Staff only.
func (h *Handler) ModerateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	var decision review.Status
	err = readObject(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := d.Str()
		decision = review.Status(s)
		return err
	})
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	rv, err := h.reviews.Moderate(r.Context(), principal(r), id, decision)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReview(e, rv) })
}

// ListReviews returns approved reviews. It is public.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListApproved(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range reviews {
			encodeReview(e, &reviews[i])
		}
		e.ArrEnd()
	})
}

func encodeReview(e *jx.Encoder, rv *review.Review) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(rv.ID)
	e.FieldStart("orderId")
	e.Int64(rv.OrderID)
	e.FieldStart("customerName")
	e.Str(rv.CustomerName)
	e.FieldStart("rating")
	e.Int(rv.Rating)
	e.FieldStart("comment")
	e.Str(rv.Comment)
	e.FieldStart("status")
	e.Str(string(rv.Status))
	e.FieldStart("createdAt")
	encodeTime(e, rv.CreatedAt)
	e.ObjEnd()
}
