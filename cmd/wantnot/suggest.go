package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
	"github.com/spf13/cobra"
)

func suggestCmd() *cobra.Command {
	var (
		limit  int
		accept bool
		review bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest categories for the uncategorized backlog",
		Long: `Produce category suggestions for uncategorized transactions in one
batch. Nothing is written unless --accept or --review is given; the LLM
may also recommend new categories for transactions that fit none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accept && review {
				return fmt.Errorf("%w: --accept and --review are exclusive", common.ErrInvalidInput)
			}
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

			result, err := a.engine.BatchSuggest(ctx, userID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names, err := transactionNames(ctx, a.store, result.Suggestions)
			if err != nil {
				return err
			}

			if !review {
				fmt.Fprintln(out, cli.RenderSuggestions(result.Suggestions, names))
			}
			if len(result.NewCategoryRecommendations) > 0 {
				fmt.Fprintln(out, cli.RenderRecommendations(result.NewCategoryRecommendations))
			}
			fmt.Fprintln(out, cli.RenderStats(result.Stats))

			chosen := result.Suggestions
			switch {
			case review:
				chosen, err = cli.NewReviewer(cmd.InOrStdin(), out).Review(ctx, result.Suggestions, names)
				if err != nil {
					return err
				}
			case !accept:
				return nil
			}
			if len(chosen) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("Nothing accepted"))
				return nil
			}

			n, err := a.engine.AcceptSuggestions(ctx, userID, chosen, contribute(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Accepted %d suggestions", n)))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum transactions to consider")
	cmd.Flags().BoolVar(&accept, "accept", false, "accept every suggestion")
	cmd.Flags().BoolVar(&review, "review", false, "review suggestions one at a time")
	addContributeFlag(cmd)
	return cmd
}

// transactionNames maps suggestion transaction IDs to their display names.
func transactionNames(ctx context.Context, store service.TransactionStore, suggestions []model.Suggestion) (map[string]string, error) {
	names := make(map[string]string, len(suggestions))
	for _, s := range suggestions {
		txn, err := store.GetTransaction(ctx, s.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction %s: %w", s.TransactionID, err)
		}
		names[s.TransactionID] = txn.MerchantText()
	}
	return names, nil
}
