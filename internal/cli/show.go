package cli

import (
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show visit details",
		Long:  "Show one visit with its status, the actions open to you and its review.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID("visit", args[0])
	if err != nil {
		return err
	}

	v, err := newAPIClient().FetchVisit(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, v)
	}

	if err := printVisitDetail(out, v, now()); err != nil {
		return err
	}
	if v.Review != nil {
		if _, err := out.Write([]byte("\n")); err != nil {
			return err
		}
		return printReview(out, v.Review)
	}
	return nil
}
