package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blocks/internal/core"
	"blocks/internal/services"
)

func syncCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:       "sync [categories|transactions|all]",
		Short:     "Fetch the remote feed and reconcile the local store",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"categories", "transactions", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			kinds := []core.SyncKind{core.KindCategories, core.KindTransactions}
			if target != "all" {
				kind, err := core.ParseSyncKind(target)
				if err != nil {
					return err
				}
				kinds = []core.SyncKind{kind}
			}

			failed := false
			for _, kind := range kinds {
				out, err := wait(cmd.Context(), current.orchestrator.Sync(cmd.Context(), kind))
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				if out.Err != nil {
					failed = true
				}
			}
			if failed {
				return errors.New("sync failed")
			}
			if export {
				return exportReport(cmd)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "export the budget report to Google Sheets after a successful sync")
	return cmd
}

func budgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget <category-id> <amount>",
		Short: "Set the budget of a category on the remote and store the confirmed amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid category id %q", args[0])
			}
			amount, err := core.ParseCents(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			out, err := wait(cmd.Context(), current.orchestrator.SetCategoryBudget(cmd.Context(), id, amount))
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), out)
			if out.Err != nil {
				return errors.New("budget update failed")
			}
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every local category and transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			if err := current.orchestrator.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "local store cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all local data")
	return cmd
}

func overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Print budget, spending and remainder per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overview, err := current.spending.Overview(cmd.Context())
			if err != nil {
				return err
			}
			return printOverview(cmd.OutOrStdout(), overview)
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Export the budget overview to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exportReport(cmd)
		},
	}
}

func exportReport(cmd *cobra.Command) error {
	if !current.cfg.ReportEnabled() {
		return errors.New("report export disabled: set GOOGLE_SPREADSHEET_ID")
	}
	ref, err := current.worker.ExportReport(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", ref)
	return nil
}

func wait(ctx context.Context, ch <-chan services.Outcome) (services.Outcome, error) {
	select {
	case out := <-ch:
		return out, nil
	case <-ctx.Done():
		return services.Outcome{}, ctx.Err()
	}
}

func printOutcome(w io.Writer, out services.Outcome) {
	fmt.Fprintf(w, "%s: %s (created %d, updated %d, skipped %d)\n",
		out.Kind, out.Result(), out.Stats.Created, out.Stats.Updated, out.Stats.Skipped)
	if out.Message != "" {
		fmt.Fprintf(w, "  server message: %s\n", out.Message)
	}
	if out.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", out.Err)
	}
}

func printOverview(w io.Writer, o core.BudgetOverview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tCategory\tBudget\tSpent\tRemaining\t")
	for _, c := range o.Categories {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", c.CategoryID, c.Name, c.Budget, c.Spent, c.Remaining)
	}
	fmt.Fprintf(tw, "\tTotal\t%s\t%s\t%s\t\n", o.TotalBudget, o.TotalSpent, o.TotalBudget.Sub(o.TotalSpent))
	fmt.Fprintf(tw, "\tUncategorized\t\t%s\t\t\n", o.Unlinked)
	return tw.Flush()
}
