package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/Veraticus/wantnot/internal/common"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	var (
		all   bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "categorize [txn-id]",
		Short: "Auto-categorize transactions",
		Long: `Run the rule, vector and LLM cascade against one transaction, or
with --all against the uncategorized backlog. Only confident results are
written; everything else stays uncategorized for review.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("%w: pass a transaction ID or --all", common.ErrInvalidInput)
			}

			userID, err := currentUser()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !all {
				result, err := a.engine.AutoCategorize(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, cli.FormatCategorization(result))
				return nil
			}

			handler := cli.NewInterruptHandler(out)
			ctx := handler.Watch(cmd.Context(), "wantnot categorize --all")

			progress := newLazyProgress(cmd.ErrOrStderr(), "Categorizing")
			stats, err := a.engine.AutoCategorizeUncategorized(ctx, userID, limit, progress.Set)
			progress.Finish()
			if err != nil {
				if handler.WasInterrupted() && errors.Is(err, ctx.Err()) {
					fmt.Fprintln(out, cli.RenderStats(stats))
					return nil
				}
				return err
			}

			fmt.Fprintln(out, cli.RenderStats(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "categorize every uncategorized transaction")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum transactions to process with --all")
	return cmd
}

// lazyProgress creates its bar on the first update, once the total is known.
type lazyProgress struct {
	w           io.Writer
	bar         *cli.Progress
	description string
}

func newLazyProgress(w io.Writer, description string) *lazyProgress {
	return &lazyProgress{w: w, description: description}
}

func (p *lazyProgress) Set(done, total int) {
	if p.bar == nil {
		if total <= 0 {
			return
		}
		p.bar = cli.NewProgress(p.w, total, p.description)
	}
	p.bar.Set(done, total)
}

func (p *lazyProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
