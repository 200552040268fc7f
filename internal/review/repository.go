package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a review does not exist.
var ErrNotFound = errors.New("review not found")

const selectColumns = "id, visit_id, rating, comment, author, reply, created_at"

// Repository provides CRUD operations for reviews.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a review repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add attaches a review to a visit. A visit holds at most one review.
func (r *Repository) Add(ctx context.Context, visitID int64, rating int, comment, author string) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, fmt.Errorf("invalid rating %d (must be %d-%d)", rating, MinRating, MaxRating)
	}
	if author == "" {
		return nil, fmt.Errorf("review author is required")
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO reviews (visit_id, rating, comment, author) VALUES (?, ?, ?, ?)",
		visitID, rating, strings.TrimSpace(comment), author,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a single review.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Review, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM reviews WHERE id = ?", id)
	return scanOne(row, fmt.Sprintf("review %d", id))
}

// GetByVisitID returns the review attached to a visit, or ErrNotFound.
func (r *Repository) GetByVisitID(ctx context.Context, visitID int64) (*Review, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM reviews WHERE visit_id = ?", visitID)
	return scanOne(row, fmt.Sprintf("review for visit %d", visitID))
}

// Reply stores the listing owner's answer to a review.
func (r *Repository) Reply(ctx context.Context, id int64, text string) (*Review, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("reply text is required")
	}

	result, err := r.db.ExecContext(ctx, "UPDATE reviews SET reply = ? WHERE id = ?", text, id)
	if err != nil {
		return nil, fmt.Errorf("updating reply: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Delete removes a review by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting review: %w", err)
	}
	return requireRow(result, id)
}

// Categories returns the reasons a review can be reported for.
func (r *Repository) Categories(ctx context.Context) (cats []Category, err error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM report_categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing report categories: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}

	return cats, nil
}

func scanOne(row *sql.Row, what string) (*Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.VisitID, &rv.Rating, &rv.Comment, &rv.Author, &rv.Reply, &rv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading review: %w", err)
	}
	return &rv, nil
}

func requireRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("review %d: %w", id, ErrNotFound)
	}
	return nil
}
