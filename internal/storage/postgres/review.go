package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catering-orders/internal/domain/review"
)

const insertReviewSQL = `INSERT INTO reviews (order_id, customer_id, rating, comment, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at`

const setReviewStatusSQL = `WITH updated AS (
		UPDATE reviews SET status = $2 WHERE id = $1
		RETURNING id, order_id, customer_id, rating, comment, status, created_at
	)
	SELECT u.id, u.order_id, u.customer_id, c.first_name, u.rating, u.comment, u.status, u.created_at
	FROM updated u
	JOIN customers c ON c.id = u.customer_id`

const listReviewsSQL = `SELECT r.id, r.order_id, r.customer_id, c.first_name, r.rating, r.comment, r.status, r.created_at
	FROM reviews r
	JOIN customers c ON c.id = r.customer_id
	WHERE r.status = $1
	ORDER BY r.created_at DESC, r.id DESC`

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review and fills its ID and CreatedAt.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	err := r.pool.QueryRow(ctx, insertReviewSQL,
		rv.OrderID, rv.CustomerID, rv.Rating, rv.Comment, string(rv.Status),
	).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, reviewOrderConstraint) {
			return review.ErrAlreadyReviewed
		}
		return fmt.Errorf("creating review for order %d: %w", rv.OrderID, err)
	}
	return nil
}

// SetStatus changes the moderation status of a review.
func (r *ReviewRepository) SetStatus(ctx context.Context, id int64, s review.Status) (*review.Review, error) {
	rows, err := r.pool.Query(ctx, setReviewStatusSQL, id, string(s))
	if err != nil {
		return nil, fmt.Errorf("updating review %d: %w", id, err)
	}
	rv, err := pgx.CollectExactlyOneRow(rows, scanReview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, review.ErrNotFound
		}
		return nil, fmt.Errorf("scanning review %d: %w", id, err)
	}
	return &rv, nil
}

// ListByStatus returns reviews in the given status, newest first.
func (r *ReviewRepository) ListByStatus(ctx context.Context, s review.Status) ([]review.Review, error) {
	return retryRead(ctx, func(ctx context.Context) ([]review.Review, error) {
		rows, err := r.pool.Query(ctx, listReviewsSQL, string(s))
		if err != nil {
			return nil, fmt.Errorf("listing %s reviews: %w", s, err)
		}
		reviews, err := pgx.CollectRows(rows, scanReview)
		if err != nil {
			return nil, fmt.Errorf("scanning reviews: %w", err)
		}
		return reviews, nil
	})
}

func scanReview(row pgx.CollectableRow) (review.Review, error) {
	var (
		rv     review.Review
		status string
	)
	err := row.Scan(&rv.ID, &rv.OrderID, &rv.CustomerID, &rv.CustomerName,
		&rv.Rating, &rv.Comment, &status, &rv.CreatedAt)
	rv.Status = review.Status(status)
	return rv, err
}
