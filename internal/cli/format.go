package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/visit-desk/internal/review"
	"github.com/evcraddock/visit-desk/internal/visit"
)

const (
	timeLayout = "2006-01-02 15:04"
	dayLayout  = "2006-01-02"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// displayOnly backs action descriptors that are listed but never run.
func displayOnly(context.Context, visit.Submission) error {
	return errors.New("action is display only")
}

// actionTitles lists the actions the viewer can take on v.
func actionTitles(v *visit.Visit) string {
	actions, err := visit.ResolveActions(v, visit.ActionOptions{Submit: displayOnly})
	if errors.Is(err, visit.ErrInvalidVisit) {
		return "no longer valid"
	}
	if err != nil || len(actions) == 0 {
		return "-"
	}
	titles := make([]string, 0, len(actions))
	for _, a := range actions {
		titles = append(titles, a.Title)
	}
	return strings.Join(titles, ", ")
}

// statusBadge returns the badge title, or "" for a status with no badge.
func statusBadge(s visit.Status) string {
	d, ok := visit.StatusDescriptor(s)
	if !ok {
		return ""
	}
	return d.Title
}

// reviewLabel describes the review affordance. A visitor's own review
// shows its stars.
func reviewLabel(v *visit.Visit, at time.Time) string {
	action := visit.ResolveReviewAction(v, at)
	if action == visit.ReviewShowRating && v.Review != nil {
		return formatRating(v.Review.Rating)
	}
	return action.Label()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printVisitGroups prints visits under their date headers.
func printVisitGroups(w io.Writer, groups []visit.Group, at time.Time) error {
	total := visit.CountVisits(groups)
	if total == 0 {
		_, err := fmt.Fprintln(w, "No visits found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, g := range groups {
		if i > 0 {
			if _, err := fmt.Fprintln(tw); err != nil {
				return fmt.Errorf("writing group separator: %w", err)
			}
		}
		if _, err := fmt.Fprintln(tw, g.Date); err != nil {
			return fmt.Errorf("writing group header: %w", err)
		}
		for _, v := range g.Visits {
			if _, err := fmt.Fprintf(tw, "  #%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				v.ID,
				v.StartDate.In(at.Location()).Format("15:04"),
				truncate(v.Address, 36),
				orDash(visit.Classify(v, at).Label()),
				orDash(statusBadge(v.Status)),
				actionTitles(v),
				orDash(reviewLabel(v, at)),
			); err != nil {
				return fmt.Errorf("writing visit row: %w", err)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nTotal: %d visits\n", total)
	return err
}

// printVisitDetail prints one visit. Rows with nothing to show are left out.
func printVisitDetail(w io.Writer, v *visit.Visit, at time.Time) error {
	loc := at.Location()
	lines := []struct{ label, value string }{
		{"Address", v.Address},
		{"Listing", fmt.Sprintf("#%d", v.ListingID)},
		{"Visitor", v.VisitorEmail},
		{"Role", string(v.Role)},
		{"Start", formatTime(v.StartDate, loc)},
		{"End", formatTime(v.EndDate, loc)},
		{"When", visit.Classify(v, at).Label()},
		{"Status", statusBadge(v.Status)},
		{"Actions", actionTitles(v)},
		{"Review", reviewLabel(v, at)},
	}

	if _, err := fmt.Fprintf(w, "Visit #%d\n", v.ID); err != nil {
		return err
	}
	for _, l := range lines {
		if l.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %-9s %s\n", l.label+":", l.value); err != nil {
			return err
		}
	}
	return nil
}

// printReview prints a review and the owner's reply, if any.
func printReview(w io.Writer, rv *review.Review) error {
	author := rv.Author
	if author == "" {
		author = "anonymous"
	}
	if _, err := fmt.Fprintf(w, "Review #%d  %s\n  By:      %s (%s)\n",
		rv.ID, formatRating(rv.Rating), author, rv.CreatedAt.Format(timeLayout)); err != nil {
		return err
	}
	if rv.Comment != "" {
		if _, err := fmt.Fprintf(w, "  Comment: %s\n", rv.Comment); err != nil {
			return err
		}
	}
	if rv.HasReply() {
		if _, err := fmt.Fprintf(w, "  Reply:   %s\n", rv.Reply); err != nil {
			return err
		}
	}
	return nil
}

// printCategories prints report categories as a table.
func printCategories(w io.Writer, cats []review.Category) error {
	if len(cats) == 0 {
		_, err := fmt.Fprintln(w, "No report categories.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tCATEGORY"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, c := range cats {
		if _, err := fmt.Fprintf(tw, "%d\t%s\n", c.ID, c.Name); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return tw.Flush()
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}

// formatRating returns a star representation of a rating (1-5).
func formatRating(rating int) string {
	if rating < review.MinRating {
		rating = review.MinRating
	}
	if rating > review.MaxRating {
		rating = review.MaxRating
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", review.MaxRating-rating)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
