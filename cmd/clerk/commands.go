package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ledgerclerk/clerk/internal/linkserver"
	"github.com/ledgerclerk/clerk/internal/render"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var (
	printBegin string
	printUntil string

	accountsItemID string

	linkName   string
	linkUpdate string
)

func init() {
	printCmd.Flags().StringVar(&printBegin, "begin", "", "only print transactions on or after this date (YYYY-MM-DD)")
	printCmd.Flags().StringVar(&printUntil, "until", "", "only print transactions on or before this date (YYYY-MM-DD)")

	accountsCmd.Flags().StringVar(&accountsItemID, "item", "", "limit to one item id")

	linkCmd.Flags().StringVar(&linkName, "name", "", "alias for the new link")
	linkCmd.Flags().StringVar(&linkUpdate, "update", "", "item id of an existing link to re-authorize")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the change feed for every active link",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.syncService.SyncAll(cmd.Context())
		for _, result := range results {
			fmt.Printf("%s: %d added, %d modified, %d removed\n",
				result.Alias, result.Added, result.Modified, result.Removed)
		}
		return err
	},
}

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Write stored transactions as ledger records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		begin, err := parseDateFlag(printBegin)
		if err != nil {
			return fmt.Errorf("invalid --begin: %w", err)
		}
		until, err := parseDateFlag(printUntil)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.ledgerService.Print(cmd.Context(), os.Stdout, begin, until)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every link and whether it needs re-authorization",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		links, institutions, err := a.linkService.Status(cmd.Context())
		if err != nil {
			return err
		}
		return render.StatusTable(os.Stdout, links, institutions)
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List cached upstream accounts and their ledger names",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		accounts, err := a.linkService.ListAccounts(cmd.Context(), accountsItemID)
		if err != nil {
			return err
		}
		return render.AccountsTable(os.Stdout, accounts)
	},
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Authorize a new bank connection, or re-authorize a degraded one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if linkName == "" && linkUpdate == "" {
			return fmt.Errorf("either --name or --update is required")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		server := linkserver.New(a.client, a.linkService, a.repos.Links, a.cfg.CountryCodes, a.logger)
		return server.Run(cmd.Context(), a.cfg.LinkServerPort, linkName, linkUpdate)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Revoke a link's access grant and remove it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.linkService.DeleteLink(cmd.Context(), args[0])
	},
}

var institutionsCmd = &cobra.Command{
	Use:   "institutions",
	Short: "Refresh the cached institution directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.linkService.RefreshInstitutions(cmd.Context(), a.cfg.CountryCodes)
	},
}

func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
