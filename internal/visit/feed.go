package visit

import (
	"context"
	"fmt"

	"github.com/evcraddock/visit-desk/internal/review"
)

// Feed is the in-memory visit list a front end renders. Source failures
// leave the list exactly as it was.
type Feed struct {
	source Source
	filter Filter
	pager  Pager
	groups []Group
	cards  []*Card
}

// NewFeed creates an empty feed over source.
func NewFeed(source Source, filter Filter) *Feed {
	size := filter.Limit
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Feed{source: source, filter: filter, pager: Pager{PageSize: size}}
}

// Groups returns the loaded groups.
func (f *Feed) Groups() []Group {
	return f.groups
}

// Len returns the number of loaded visits.
func (f *Feed) Len() int {
	return CountVisits(f.groups)
}

// Exhausted reports whether every page has been loaded.
func (f *Feed) Exhausted() bool {
	return f.pager.Exhausted()
}

// Visit finds a loaded visit by ID.
func (f *Feed) Visit(id int64) (*Visit, bool) {
	for _, g := range f.groups {
		for _, v := range g.Visits {
			if v.ID == id {
				return v, true
			}
		}
	}
	return nil, false
}

// Load replaces the list with the first page.
func (f *Feed) Load(ctx context.Context) error {
	pager := Pager{PageSize: f.pager.PageSize}
	groups, err := f.fetchPage(ctx, &pager)
	if err != nil {
		return err
	}
	f.pager = pager
	f.groups = groups
	f.syncCards()
	return nil
}

// More fetches the next page if visible has reached the loaded count.
// It reports whether a page was requested.
func (f *Feed) More(ctx context.Context, visible int) (bool, error) {
	if !f.pager.ShouldFetch(visible) {
		return false, nil
	}
	pager := f.pager
	groups, err := f.fetchPage(ctx, &pager)
	if err != nil {
		return true, err
	}
	f.pager = pager
	f.groups = MergeGroups(f.groups, groups)
	f.syncCards()
	return true, nil
}

func (f *Feed) fetchPage(ctx context.Context, pager *Pager) ([]Group, error) {
	filter := f.filter
	filter.Offset = pager.Offset()
	filter.Limit = pager.PageSize

	groups, err := f.source.FetchVisits(ctx, filter)
	if err != nil {
		return nil, wrapSource("fetching visits", err)
	}
	pager.Advance(CountVisits(groups))
	return groups, nil
}

// Submit sends a status change and then refreshes the visit from the
// source. An invalid visit never reaches the source.
func (f *Feed) Submit(ctx context.Context, s Submission) error {
	if !s.IsValidVisit {
		return ErrInvalidVisit
	}
	if err := f.source.SubmitVisitAction(ctx, s.VisitID, s.Status); err != nil {
		return wrapSource(fmt.Sprintf("submitting %s for visit %d", s.Status, s.VisitID), err)
	}
	return f.Refresh(ctx, s.VisitID)
}

// Refresh re-fetches one visit and swaps it into the list.
func (f *Feed) Refresh(ctx context.Context, id int64) error {
	v, err := f.source.FetchVisit(ctx, id)
	if err != nil {
		return wrapSource(fmt.Sprintf("refreshing visit %d", id), err)
	}
	f.replace(v)
	return nil
}

// Card returns a card for a loaded visit. Its submissions go through the
// feed, and every snapshot the feed swaps in reaches the card, so a prompt
// left open is confirmed against the latest copy.
func (f *Feed) Card(id int64, onCancel CancelFunc) (*Card, error) {
	v, ok := f.Visit(id)
	if !ok {
		return nil, fmt.Errorf("visit %d: %w", id, ErrNotFound)
	}
	card := NewCard(v, f.Submit, onCancel)
	f.cards = append(f.cards, card)
	return card, nil
}

// Open returns a card for id, fetching the visit first when it is not
// on a loaded page. A fetched visit is appended as its own group.
func (f *Feed) Open(ctx context.Context, id int64, onCancel CancelFunc) (*Card, error) {
	if _, ok := f.Visit(id); !ok {
		v, err := f.source.FetchVisit(ctx, id)
		if err != nil {
			return nil, wrapSource(fmt.Sprintf("fetching visit %d", id), err)
		}
		f.groups = append(f.groups, Group{Date: DateKey(v.StartDate, v.StartDate.Location()), Visits: []*Visit{v}})
	}
	return f.Card(id, onCancel)
}

// Review fetches the review attached to a visit.
func (f *Feed) Review(ctx context.Context, reviewID int64) (*review.Review, error) {
	rv, err := f.source.FetchReview(ctx, reviewID)
	if err != nil {
		return nil, wrapSource(fmt.Sprintf("fetching review %d", reviewID), err)
	}
	return rv, nil
}

// DeleteReview removes the review on a loaded visit and refreshes it.
func (f *Feed) DeleteReview(ctx context.Context, visitID int64) error {
	v, ok := f.Visit(visitID)
	if !ok {
		return fmt.Errorf("visit %d: %w", visitID, ErrNotFound)
	}
	if v.Review == nil {
		return fmt.Errorf("visit %d has no review: %w", visitID, review.ErrNotFound)
	}
	if err := f.source.DeleteReview(ctx, v.Review.ID); err != nil {
		return wrapSource(fmt.Sprintf("deleting review %d", v.Review.ID), err)
	}
	return f.Refresh(ctx, visitID)
}

// ReportCategories lists the reasons a review can be reported for.
func (f *Feed) ReportCategories(ctx context.Context) ([]review.Category, error) {
	cats, err := f.source.FetchReportCategories(ctx)
	if err != nil {
		return nil, wrapSource("fetching report categories", err)
	}
	return cats, nil
}

func (f *Feed) replace(v *Visit) {
	for gi := range f.groups {
		for vi, cur := range f.groups[gi].Visits {
			if cur.ID == v.ID {
				f.groups[gi].Visits[vi] = v
			}
		}
	}
	for _, c := range f.cards {
		if c.visit.ID == v.ID {
			c.Update(v)
		}
	}
}

// syncCards hands the loaded snapshots to the cards built from them.
func (f *Feed) syncCards() {
	for _, c := range f.cards {
		if v, ok := f.Visit(c.visit.ID); ok {
			c.Update(v)
		}
	}
}
