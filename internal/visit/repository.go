package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/visit-desk/internal/review"
)

// Repository stores visits and answers for a given viewer.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a visit repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock replaces the time source used to decide which actions are open.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

const selectVisit = `SELECT v.id, v.listing_id, l.address, l.owner_email, l.active,
		v.visitor_email, v.visitor_role, v.status, v.start_date, v.end_date,
		rv.id, rv.rating, rv.comment, rv.author, rv.reply, rv.created_at
	FROM visits v
	JOIN listings l ON l.id = v.listing_id
	LEFT JOIN reviews rv ON rv.visit_id = v.id`

// Schedule creates a PENDING visit request on an active listing.
func (r *Repository) Schedule(ctx context.Context, listingID int64, visitorEmail string, role Role, start, end time.Time) (*Visit, error) {
	visitorEmail = strings.ToLower(strings.TrimSpace(visitorEmail))
	if visitorEmail == "" {
		return nil, fmt.Errorf("visitor email is required")
	}
	if !role.IsValid() || role.OwnerSide() {
		return nil, fmt.Errorf("invalid visitor role: %q", role)
	}
	if start.IsZero() || !end.After(start) {
		return nil, fmt.Errorf("invalid visit window: end must be after start")
	}

	var owner string
	var active bool
	err := r.db.QueryRowContext(ctx, "SELECT owner_email, active FROM listings WHERE id = ?", listingID).Scan(&owner, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d not found", listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("listing %d: %w", listingID, ErrInvalidVisit)
	}
	if owner == visitorEmail {
		return nil, fmt.Errorf("owner cannot request a visit to their own listing")
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO visits (listing_id, visitor_email, visitor_role, start_date, end_date) VALUES (?, ?, ?, ?, ?)",
		listingID, visitorEmail, role, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting visit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return r.GetForViewer(ctx, visitorEmail, id)
}

// GetForViewer returns a visit the viewer takes part in, as the listing
// owner or the visitor.
func (r *Repository) GetForViewer(ctx context.Context, viewer string, id int64) (*Visit, error) {
	row := r.db.QueryRowContext(ctx,
		selectVisit+" WHERE v.id = ? AND (l.owner_email = ? OR v.visitor_email = ?)",
		id, viewer, viewer,
	)

	v, err := r.scanVisit(row, viewer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("visit %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying visit %d: %w", id, err)
	}
	return v, nil
}

// ListForViewer returns one page of the viewer's visits, earliest first.
func (r *Repository) ListForViewer(ctx context.Context, viewer string, f Filter) (visits []*Visit, err error) {
	conds := []string{"(l.owner_email = ? OR v.visitor_email = ?)"}
	args := []interface{}{viewer, viewer}

	if !f.From.IsZero() {
		conds = append(conds, "v.start_date >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "v.start_date < ?")
		args = append(args, f.To.UTC())
	}
	if f.ListingID > 0 {
		conds = append(conds, "v.listing_id = ?")
		args = append(args, f.ListingID)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	args = append(args, limit, f.Offset)

	query := selectVisit + " WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY v.start_date ASC, v.id ASC LIMIT ? OFFSET ?"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		v, err := r.scanVisit(rows, viewer)
		if err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}

	return visits, nil
}

// Transition applies a status change requested by viewer. The change must
// be one of the viewer's allowed actions right now, and the listing must
// still be active.
func (r *Repository) Transition(ctx context.Context, viewer string, id int64, status Status) (*Visit, error) {
	v, err := r.GetForViewer(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !v.IsValidVisit {
		return nil, fmt.Errorf("visit %d: %w", id, ErrInvalidVisit)
	}

	code, ok := ActionFor(status)
	if !ok || !v.HasAction(code) {
		return nil, fmt.Errorf("visit %d: %s from %s: %w", id, status, v.Status, ErrTransitionNotAllowed)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE visits SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		status, id, v.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("updating visit status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("visit %d changed concurrently: %w", id, ErrTransitionNotAllowed)
	}

	return r.GetForViewer(ctx, viewer, id)
}

// Delete removes a visit by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("visit %d: %w", id, ErrNotFound)
	}

	return nil
}

// scanVisit reads one row of selectVisit and fills in the viewer-relative
// fields.
func (r *Repository) scanVisit(row interface{ Scan(...interface{}) error }, viewer string) (*Visit, error) {
	var v Visit
	var owner string
	var visitorRole Role
	var rvID, rvRating sql.NullInt64
	var rvComment, rvAuthor, rvReply sql.NullString
	var rvCreated sql.NullTime

	err := row.Scan(
		&v.ID, &v.ListingID, &v.Address, &owner, &v.IsValidVisit,
		&v.VisitorEmail, &visitorRole, &v.Status, &v.StartDate, &v.EndDate,
		&rvID, &rvRating, &rvComment, &rvAuthor, &rvReply, &rvCreated,
	)
	if err != nil {
		return nil, err
	}

	if owner == viewer {
		v.Role = RoleOwner
		v.IsAssetOwner = true
	} else {
		v.Role = visitorRole
	}

	if rvID.Valid {
		v.Review = &review.Review{
			ID:        rvID.Int64,
			VisitID:   v.ID,
			Rating:    int(rvRating.Int64),
			Comment:   rvComment.String,
			Author:    rvAuthor.String,
			Reply:     rvReply.String,
			CreatedAt: rvCreated.Time,
		}
	}

	v.Actions = AllowedActions(&v, r.now())
	return &v, nil
}
