package cli

import (
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visit-desk/internal/auth"
	"github.com/evcraddock/visit-desk/internal/listing"
	"github.com/evcraddock/visit-desk/internal/visit"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the local database",
		Long:  "Manage listings, visits and API keys directly in the server's SQLite database (see --db).",
	}

	cmd.AddCommand(
		newAdminListingCmd(),
		newAdminVisitCmd(),
		newAdminKeyCmd(),
	)

	return cmd
}

// withDB opens the database for the duration of fn.
func withDB(fn func(database *sql.DB) error) error {
	database, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDB(database)
	return fn(database)
}

func newAdminListingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Manage listings",
	}

	var owner string
	add := &cobra.Command{
		Use:   "add <address>",
		Short: "Add a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *sql.DB) error {
				l, err := listing.NewRepository(database).Add(cmd.Context(), args[0], owner)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if isJSON() {
					return printJSON(out, l)
				}
				_, err = fmt.Fprintf(out, "✓ Listing #%d added: %s (owner %s)\n", l.ID, l.Address, l.OwnerEmail)
				return err
			})
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "owner email")
	_ = add.MarkFlagRequired("owner")

	list := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *sql.DB) error {
				listings, err := listing.NewRepository(database).List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if isJSON() {
					if listings == nil {
						listings = []*listing.Listing{}
					}
					return printJSON(out, listings)
				}
				return printListingTable(cmd, listings)
			})
		},
	}

	cmd.AddCommand(add, list, newSetActiveCmd("activate", true), newSetActiveCmd("deactivate", false))
	return cmd
}

func newSetActiveCmd(use string, active bool) *cobra.Command {
	short := "Withdraw a listing, invalidating its visits"
	if active {
		short = "Put a withdrawn listing back on the market"
	}

	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("listing", args[0])
			if err != nil {
				return err
			}
			return withDB(func(database *sql.DB) error {
				if err := listing.NewRepository(database).SetActive(cmd.Context(), id, active); err != nil {
					return err
				}
				state := "inactive"
				if active {
					state = "active"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ Listing #%d is %s\n", id, state)
				return err
			})
		},
	}
}

func printListingTable(cmd *cobra.Command, listings []*listing.Listing) error {
	out := cmd.OutOrStdout()
	if len(listings) == 0 {
		_, err := fmt.Fprintln(out, "No listings found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tADDRESS\tOWNER\tACTIVE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, l := range listings {
		active := "yes"
		if !l.Active {
			active = "no"
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.ID, truncate(l.Address, 40), l.OwnerEmail, active); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

func newAdminVisitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visit",
		Short: "Manage visits",
	}

	var (
		listingID int64
		visitor   string
		role      string
		start     string
		duration  time.Duration
	)

	add := &cobra.Command{
		Use:   "add",
		Short: "Schedule a visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := visit.ParseRole(role)
			if err != nil {
				return err
			}
			startAt, err := time.ParseInLocation(timeLayout, start, now().Location())
			if err != nil {
				return fmt.Errorf("invalid --start %q (want %q)", start, timeLayout)
			}
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}

			return withDB(func(database *sql.DB) error {
				v, err := visit.NewRepository(database).Schedule(cmd.Context(), listingID, visitor, r, startAt, startAt.Add(duration))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if isJSON() {
					return printJSON(out, v)
				}
				_, err = fmt.Fprintf(out, "✓ Visit #%d scheduled at %s for %s\n", v.ID, formatTime(v.StartDate, now().Location()), v.VisitorEmail)
				return err
			})
		},
	}
	add.Flags().Int64Var(&listingID, "listing", 0, "listing ID")
	add.Flags().StringVar(&visitor, "visitor", "", "visitor email")
	add.Flags().StringVar(&role, "role", string(visit.RoleBuyer), "visitor role (BUYER|TENANT)")
	add.Flags().StringVar(&start, "start", "", "start time (YYYY-MM-DD HH:MM, local)")
	add.Flags().DurationVar(&duration, "duration", 30*time.Minute, "visit length")
	_ = add.MarkFlagRequired("listing")
	_ = add.MarkFlagRequired("visitor")
	_ = add.MarkFlagRequired("start")

	cmd.AddCommand(add)
	return cmd
}

func newAdminKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
	}

	var name, email string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for an email",
		Long:  "Create an API key. The key is shown once; the email becomes the identity of every request made with it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(database *sql.DB) error {
				raw, key, err := auth.NewAPIKeyStore(database).Create(cmd.Context(), name, email)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if isJSON() {
					return printJSON(out, struct {
						*auth.APIKey
						Key string `json:"key"`
					}{key, raw})
				}
				_, err = fmt.Fprintf(out, "✓ Key #%d created for %s\n\n  %s\n\nStore it now; it will not be shown again.\n", key.ID, key.Email, raw)
				return err
			})
		},
	}
	create.Flags().StringVar(&name, "name", "cli", "label for the key")
	create.Flags().StringVar(&email, "email", "", "email the key acts as")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}
