package visit

import "time"

const dateKeyLayout = "2006-01-02"

// DateKey is the group key for a visit's start date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateKeyLayout)
}

// GroupByDate splits visits into per-day groups, keeping input order.
// Visits are expected sorted by start date.
func GroupByDate(visits []*Visit, loc *time.Location) []Group {
	var groups []Group
	for _, v := range visits {
		key := DateKey(v.StartDate, loc)
		if n := len(groups); n > 0 && groups[n-1].Date == key {
			groups[n-1].Visits = append(groups[n-1].Visits, v)
			continue
		}
		groups = append(groups, Group{Date: key, Visits: []*Visit{v}})
	}
	return groups
}

// MergeGroups appends a fetched page to the groups already loaded. A day
// split across the page boundary becomes one group again.
func MergeGroups(existing, next []Group) []Group {
	out := make([]Group, 0, len(existing)+len(next))
	for _, g := range existing {
		out = append(out, Group{Date: g.Date, Visits: append([]*Visit(nil), g.Visits...)})
	}
	for _, g := range next {
		if n := len(out); n > 0 && out[n-1].Date == g.Date {
			out[n-1].Visits = append(out[n-1].Visits, g.Visits...)
			continue
		}
		out = append(out, Group{Date: g.Date, Visits: append([]*Visit(nil), g.Visits...)})
	}
	return out
}

// CountVisits returns the number of visits across groups.
func CountVisits(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Visits)
	}
	return n
}

// Pager is infinite-scroll bookkeeping: it asks for the next page once the
// viewer has scrolled through everything loaded so far.
type Pager struct {
	PageSize  int
	loaded    int
	exhausted bool
}

// Offset is where the next page starts.
func (p *Pager) Offset() int {
	return p.loaded
}

// ShouldFetch reports whether the next page is needed for visible results.
func (p *Pager) ShouldFetch(visible int) bool {
	return !p.exhausted && visible >= p.loaded
}

// Advance records a received page. A short page means the source is drained.
func (p *Pager) Advance(received int) {
	p.loaded += received
	if p.PageSize <= 0 || received < p.PageSize {
		p.exhausted = true
	}
}

// Exhausted reports whether the source has no more pages.
func (p *Pager) Exhausted() bool {
	return p.exhausted
}

// Reset forgets all loaded pages.
func (p *Pager) Reset() {
	p.loaded = 0
	p.exhausted = false
}
