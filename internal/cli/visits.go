package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visit-desk/internal/visit"
)

type visitsOptions struct {
	from      string
	to        string
	listingID int64
	limit     int
	all       bool
}

func newVisitsCmd() *cobra.Command {
	var opts visitsOptions

	cmd := &cobra.Command{
		Use:   "visits",
		Short: "List visits grouped by day",
		Long:  "List the visits you host or attend, grouped by day, with what you can do on each one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisits(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&opts.listingID, "listing", 0, "only visits for this listing ID")
	cmd.Flags().IntVar(&opts.limit, "limit", visit.DefaultPageSize, "visits per page")
	cmd.Flags().BoolVar(&opts.all, "all", false, "fetch every page instead of just the first")

	return cmd
}

func runVisits(cmd *cobra.Command, opts visitsOptions) error {
	filter, err := opts.filter(now().Location())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	feed := visit.NewFeed(newAPIClient(), filter)
	if err := feed.Load(ctx); err != nil {
		return err
	}
	if opts.all {
		for {
			fetched, err := feed.More(ctx, feed.Len())
			if err != nil {
				return err
			}
			if !fetched {
				break
			}
		}
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		groups := feed.Groups()
		if groups == nil {
			groups = []visit.Group{}
		}
		return printJSON(out, groups)
	}
	return printVisitGroups(out, feed.Groups(), now())
}

// filter turns the flags into a visit filter. The --to day is inclusive.
func (o visitsOptions) filter(loc *time.Location) (visit.Filter, error) {
	if o.limit < 1 || o.limit > visit.MaxPageSize {
		return visit.Filter{}, fmt.Errorf("--limit must be between 1 and %d, got %d", visit.MaxPageSize, o.limit)
	}
	f := visit.Filter{ListingID: o.listingID, Limit: o.limit}

	if o.from != "" {
		t, err := time.ParseInLocation(dayLayout, o.from, loc)
		if err != nil {
			return f, fmt.Errorf("invalid --from date %q (want YYYY-MM-DD)", o.from)
		}
		f.From = t
	}
	if o.to != "" {
		t, err := time.ParseInLocation(dayLayout, o.to, loc)
		if err != nil {
			return f, fmt.Errorf("invalid --to date %q (want YYYY-MM-DD)", o.to)
		}
		f.To = t.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, fmt.Errorf("--from %s is after --to %s", o.from, o.to)
	}
	return f, nil
}
