package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visit-desk/internal/review"
	"github.com/evcraddock/visit-desk/internal/visit"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Read, write and answer visit reviews",
	}

	cmd.AddCommand(
		newReviewShowCmd(),
		newReviewWriteCmd(),
		newReviewReplyCmd(),
		newReviewDeleteCmd(),
		newReviewCategoriesCmd(),
	)

	return cmd
}

func newReviewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <visit-id>",
		Short: "Show the review on a visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}

			c := newAPIClient()
			v, err := c.FetchVisit(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if v.Review == nil {
				if isJSON() {
					return printJSON(out, nil)
				}
				_, err := fmt.Fprintln(out, "No review.")
				return err
			}

			rv, err := c.FetchReview(cmd.Context(), v.Review.ID)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(out, rv)
			}
			return printReview(out, rv)
		},
	}
}

func newReviewWriteCmd() *cobra.Command {
	var (
		rating  int
		comment string
	)

	cmd := &cobra.Command{
		Use:   "write <visit-id>",
		Short: "Review a completed visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}
			if rating < review.MinRating || rating > review.MaxRating {
				return fmt.Errorf("rating must be between %d and %d", review.MinRating, review.MaxRating)
			}

			c := newAPIClient()
			v, err := c.FetchVisit(cmd.Context(), id)
			if err != nil {
				return err
			}
			if action := visit.ResolveReviewAction(v, now()); action != visit.ReviewWrite {
				return reviewActionError(id, visit.ReviewWrite)
			}

			rv, err := c.WriteReview(cmd.Context(), id, rating, comment)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, rv)
			}
			_, err = fmt.Fprintf(out, "✓ Review #%d added to visit #%d  %s\n", rv.ID, id, formatRating(rv.Rating))
			return err
		},
	}

	cmd.Flags().IntVarP(&rating, "rating", "r", 0, "rating from 1 to 5")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "review text")
	_ = cmd.MarkFlagRequired("rating")

	return cmd
}

func newReviewReplyCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "reply <visit-id>",
		Short: "Answer the review on a visit to your listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}
			if text == "" {
				return fmt.Errorf("reply text is required (--text)")
			}

			c := newAPIClient()
			v, err := c.FetchVisit(cmd.Context(), id)
			if err != nil {
				return err
			}
			if action := visit.ResolveReviewAction(v, now()); action != visit.ReviewReply {
				return reviewActionError(id, visit.ReviewReply)
			}

			rv, err := c.ReplyToReview(cmd.Context(), v.Review.ID, text)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, rv)
			}
			return printReview(out, rv)
		},
	}

	cmd.Flags().StringVarP(&text, "text", "m", "", "reply text")

	return cmd
}

func newReviewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <visit-id>",
		Short: "Delete your review on a visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("visit", args[0])
			if err != nil {
				return err
			}

			feed := visit.NewFeed(newAPIClient(), visit.Filter{})
			if _, err := feed.Open(cmd.Context(), id, nil); err != nil {
				return err
			}
			if err := feed.DeleteReview(cmd.Context(), id); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "✓ Review on visit #%d deleted\n", id)
			return err
		},
	}
}

func newReviewCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the reasons a review can be reported for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := newAPIClient().FetchReportCategories(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, cats)
			}
			return printCategories(out, cats)
		},
	}
}

func reviewActionError(id int64, want visit.ReviewAction) error {
	switch want {
	case visit.ReviewWrite:
		return fmt.Errorf("visit %d cannot be reviewed: it must be over and not yet reviewed by you", id)
	default:
		return fmt.Errorf("visit %d has no review on your listing to reply to", id)
	}
}
