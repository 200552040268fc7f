package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a listing does not exist.
var ErrNotFound = errors.New("listing not found")

const selectColumns = `id, address, owner_email, active, created_at`

// Repository provides CRUD operations for listings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a listing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add creates a new active listing.
func (r *Repository) Add(ctx context.Context, address, ownerEmail string) (*Listing, error) {
	address = strings.TrimSpace(address)
	ownerEmail = strings.ToLower(strings.TrimSpace(ownerEmail))
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if ownerEmail == "" {
		return nil, fmt.Errorf("owner email is required")
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO listings (address, owner_email) VALUES (?, ?)",
		address, ownerEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a listing by its ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = ?", selectColumns)
	row := r.db.QueryRowContext(ctx, query, id)

	var l Listing
	err := row.Scan(&l.ID, &l.Address, &l.OwnerEmail, &l.Active, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %d: %w", id, err)
	}

	return &l, nil
}

// List returns all listings, newest first.
func (r *Repository) List(ctx context.Context) (listings []*Listing, err error) {
	query := fmt.Sprintf("SELECT %s FROM listings ORDER BY id DESC", selectColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Address, &l.OwnerEmail, &l.Active, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	return listings, nil
}

// SetActive marks a listing active or withdrawn. Withdrawing a listing
// invalidates every visit scheduled against it.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx, "UPDATE listings SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}

	return nil
}
