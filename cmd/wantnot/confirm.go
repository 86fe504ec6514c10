package main

import (
	"fmt"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/spf13/cobra"
)

// addContributeFlag registers --no-contribute, which keeps a confirmation
// out of the shared corpus.
func addContributeFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-contribute", false, "do not add this merchant to the shared corpus")
}

// contribute resolves whether learning should feed the shared corpus.
func contribute(cmd *cobra.Command) bool {
	if opt, _ := cmd.Flags().GetBool("no-contribute"); opt {
		return false
	}
	return cfg.Categorization.Contribute
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <txn-id> <category>",
		Short: "Categorize a transaction and learn from it",
		Long: `Assign a category to a transaction by hand. The merchant's rule is
reinforced so future transactions from it are categorized automatically.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := currentUser()
			if err != nil {
				return err
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			category, err := lookupCategory(ctx, a.store, userID, args[1])
			if err != nil {
				return err
			}

			result, err := a.engine.CategorizeManually(ctx, userID, args[0], category.ID, contribute(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatCategorization(result))
			return nil
		},
	}

	addContributeFlag(cmd)
	return cmd
}

func bulkCategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk-categorize <category> <txn-id>...",
		Short: "Assign one category to many transactions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := currentUser()
			if err != nil {
				return err
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			category, err := lookupCategory(ctx, a.store, userID, args[0])
			if err != nil {
				return err
			}

			n, err := a.engine.BulkCategorize(ctx, userID, args[1:], category.ID, contribute(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Categorized %d transactions as %s", n, category.Name)))
			return nil
		},
	}

	addContributeFlag(cmd)
	return cmd
}

func uncategorizedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "uncategorized",
		Short: "List uncategorized transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := store.ListUncategorized(ctx, userID, limit)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTransactions(txns))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum transactions to list")
	return cmd
}
