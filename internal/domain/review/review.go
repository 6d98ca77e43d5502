// Package review manages customer reviews of completed orders and their
// moderation by staff.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/catering-orders/internal/domain/auth"
	"github.com/xenking/catering-orders/internal/domain/order"
)

var (
	// ErrNotFound is returned for unknown reviews.
	ErrNotFound = errors.New("review not found")
	// ErrAlreadyReviewed is returned when the order already has a review.
	ErrAlreadyReviewed = errors.New("order already reviewed")
	// ErrNotReviewable is returned when the order is not completed yet.
	ErrNotReviewable = errors.New("only completed orders can be reviewed")
	// ErrInvalid is returned for malformed ratings, comments or decisions.
	ErrInvalid = errors.New("invalid review")
)

// Status is the moderation state of a review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Review is a customer's rating of one completed order.
type Review struct {
	ID           int64
	OrderID      int64
	CustomerID   int64
	CustomerName string
	Rating       int
	Comment      string
	Status       Status
	CreatedAt    time.Time
}

// Repository persists reviews.
type Repository interface {
	// Create assigns ID and CreatedAt. A second review of the same order
	// yields ErrAlreadyReviewed.
	Create(ctx context.Context, r *Review) error
	SetStatus(ctx context.Context, id int64, s Status) (*Review, error)
	ListByStatus(ctx context.Context, s Status) ([]Review, error)
}

// Orders reads orders for eligibility checks.
type Orders interface {
	Get(ctx context.Context, id int64) (*order.Order, error)
}

// Service implements review operations.
type Service struct {
	orders  Orders
	reviews Repository
}

// NewService returns a review Service.
func NewService(orders Orders, reviews Repository) *Service {
	return &Service{orders: orders, reviews: reviews}
}

// CreateRequest holds a new review.
type CreateRequest struct {
	OrderID  int64
	CallerID int64
	Rating   int
	Comment  string
}

// Create records a pending review for a completed order owned by the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Review, error) {
	comment := strings.TrimSpace(req.Comment)
	if req.Rating < 1 || req.Rating > 5 {
		return nil, errors.Wrap(ErrInvalid, "rating must be between 1 and 5")
	}
	if comment == "" {
		return nil, errors.Wrap(ErrInvalid, "comment is required")
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != req.CallerID {
		return nil, order.ErrForbidden
	}
	if o.Status != order.StatusCompleted {
		return nil, ErrNotReviewable
	}

	r := &Review{
		OrderID:      o.ID,
		CustomerID:   o.CustomerID,
		CustomerName: o.Customer.FirstName,
		Rating:       req.Rating,
		Comment:      comment,
		Status:       StatusPending,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Moderate approves or rejects a review. Only staff may moderate.
func (s *Service) Moderate(ctx context.Context, actor auth.Principal, id int64, decision Status) (*Review, error) {
	if !actor.IsStaff() {
		return nil, order.ErrForbidden
	}
	if decision != StatusApproved && decision != StatusRejected {
		return nil, errors.Wrapf(ErrInvalid, "unknown decision %q", decision)
	}
	return s.reviews.SetStatus(ctx, id, decision)
}

// ListApproved returns published reviews, newest first.
func (s *Service) ListApproved(ctx context.Context) ([]Review, error) {
	return s.reviews.ListByStatus(ctx, StatusApproved)
}
