package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catering-orders/internal/domain/order"
	"github.com/xenking/catering-orders/internal/domain/review"
	"github.com/xenking/catering-orders/pkg/httpmiddleware"
)

// Error kinds of the response envelope.
const (
	kindNotFound                  = "NotFound"
	kindForbidden                 = "Forbidden"
	kindUnauthorized              = "Unauthorized"
	kindInvalidRequest            = "InvalidRequest"
	kindNotModifiable             = "NotModifiable"
	kindInvalidTransition         = "InvalidTransition"
	kindMissingCancellationReason = "MissingCancellationReason"
	kindOutOfStock                = "OutOfStock"
	kindAlreadyReviewed           = "AlreadyReviewed"
	kindNotReviewable             = "NotReviewable"
	kindInternal                  = "Internal"
)

type apiError struct {
	status int
	kind   string
}

// mapOrderError classifies lifecycle errors. Unknown errors are internal.
func mapOrderError(err error) (apiError, bool) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return apiError{http.StatusNotFound, kindNotFound}, true
	case errors.Is(err, order.ErrForbidden):
		return apiError{http.StatusForbidden, kindForbidden}, true
	case errors.Is(err, order.ErrInvalidRequest):
		return apiError{http.StatusBadRequest, kindInvalidRequest}, true
	case errors.Is(err, order.ErrNotModifiable):
		return apiError{http.StatusBadRequest, kindNotModifiable}, true
	case errors.Is(err, order.ErrInvalidTransition):
		return apiError{http.StatusBadRequest, kindInvalidTransition}, true
	case errors.Is(err, order.ErrMissingCancellationReason):
		return apiError{http.StatusBadRequest, kindMissingCancellationReason}, true
	case errors.Is(err, order.ErrOutOfStock):
		return apiError{http.StatusBadRequest, kindOutOfStock}, true
	}
	return apiError{}, false
}

func mapReviewError(err error) (apiError, bool) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		return apiError{http.StatusNotFound, kindNotFound}, true
	case errors.Is(err, review.ErrAlreadyReviewed):
		return apiError{http.StatusConflict, kindAlreadyReviewed}, true
	case errors.Is(err, review.ErrNotReviewable):
		return apiError{http.StatusBadRequest, kindNotReviewable}, true
	case errors.Is(err, review.ErrInvalid):
		return apiError{http.StatusBadRequest, kindInvalidRequest}, true
	}
	return mapOrderError(err)
}

// writeError renders err with the envelope. Internal errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := mapReviewError(err); ok {
		httpmiddleware.WriteError(r.Context(), w, e.status, e.kind, err.Error())
		return
	}
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	httpmiddleware.WriteError(r.Context(), w, http.StatusInternalServerError, kindInternal, "internal server error")
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	httpmiddleware.WriteError(r.Context(), w, http.StatusBadRequest, kindInvalidRequest, err.Error())
}
