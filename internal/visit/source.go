package visit

import (
	"context"
	"time"

	"github.com/evcraddock/visit-desk/internal/review"
)

// DefaultPageSize is the page size used when a filter leaves Limit unset.
const DefaultPageSize = 20

// MaxPageSize is the largest page a single fetch may ask for.
const MaxPageSize = 100

// Filter narrows a visit fetch. Zero values mean "no bound".
type Filter struct {
	From      time.Time
	To        time.Time
	ListingID int64
	Offset    int
	Limit     int
}

// Source is the backend the visit list talks to.
type Source interface {
	FetchVisits(ctx context.Context, f Filter) ([]Group, error)
	FetchVisit(ctx context.Context, id int64) (*Visit, error)
	SubmitVisitAction(ctx context.Context, id int64, status Status) error
	FetchReview(ctx context.Context, id int64) (*review.Review, error)
	DeleteReview(ctx context.Context, id int64) error
	FetchReportCategories(ctx context.Context) ([]review.Category, error)
}
