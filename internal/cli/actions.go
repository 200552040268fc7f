package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visit-desk/internal/visit"
)

func newAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a visit request on your listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, args[0], visit.ActionApprove)
		},
	}
}

func newRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a visit request on your listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, args[0], visit.ActionReject)
		},
	}
}

func newCancelCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a visit",
		Long:  "Cancel a pending or accepted visit. Asks for confirmation unless --yes is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// openCard loads a single visit into a feed backed by the API.
func openCard(cmd *cobra.Command, arg string) (*visit.Card, error) {
	id, err := parseID("visit", arg)
	if err != nil {
		return nil, err
	}
	feed := visit.NewFeed(newAPIClient(), visit.Filter{})
	return feed.Open(cmd.Context(), id, nil)
}

func runAction(cmd *cobra.Command, arg string, code visit.ActionCode) error {
	card, err := openCard(cmd, arg)
	if err != nil {
		return err
	}
	if err := card.Trigger(cmd.Context(), code); err != nil {
		return actionError(card.Visit().ID, err)
	}
	return printOutcome(cmd.OutOrStdout(), card.Visit())
}

func runCancel(cmd *cobra.Command, arg string, yes bool) error {
	card, err := openCard(cmd, arg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := card.Trigger(ctx, visit.ActionCancel); err != nil {
		return actionError(card.Visit().ID, err)
	}

	req := card.Pending()
	if req == nil {
		return fmt.Errorf("visit %d: no confirmation pending", card.Visit().ID)
	}

	out := cmd.OutOrStdout()
	confirmed := yes
	if !confirmed {
		confirmed, err = prompt(cmd.InOrStdin(), out, req)
		if err != nil {
			if derr := card.Decline(); derr != nil {
				return derr
			}
			return err
		}
	}

	if !confirmed {
		if err := card.Decline(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "Visit #%d was not cancelled.\n", card.Visit().ID)
		return err
	}

	if err := card.Confirm(ctx); err != nil {
		return actionError(card.Visit().ID, err)
	}
	return printOutcome(out, card.Visit())
}

// prompt shows a confirmation request and reads the answer. Only the
// confirming option's first letter (or "yes") counts as confirmation.
func prompt(in io.Reader, out io.Writer, req *visit.ConfirmationRequest) (bool, error) {
	var yes, no visit.ConfirmationOption
	for _, o := range req.Options {
		if o.Confirm {
			yes = o
		} else {
			no = o
		}
	}

	if _, err := fmt.Fprintf(out, "%s\n%s\n[y] %s  [N] %s: ", req.Title, req.Message, yes.Label, no.Label); err != nil {
		return false, err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading input: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func actionError(id int64, err error) error {
	if errors.Is(err, visit.ErrInvalidVisit) {
		return fmt.Errorf("visit %d can no longer be changed: %w", id, err)
	}
	return err
}

func printOutcome(w io.Writer, v *visit.Visit) error {
	if isJSON() {
		return printJSON(w, v)
	}
	badge := statusBadge(v.Status)
	if badge == "" {
		badge = string(v.Status)
	}
	_, err := fmt.Fprintf(w, "✓ Visit #%d: %s\n", v.ID, badge)
	return err
}
