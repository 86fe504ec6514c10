package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long:  `List, add, update, and delete the categories transactions are sorted into.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

// resolveCategory finds a category by ID or, failing that, by name.
func resolveCategory(categories []model.Category, ref string) (model.Category, error) {
	ref = strings.TrimSpace(ref)
	for _, c := range categories {
		if c.ID == ref {
			return c, nil
		}
	}
	if c, ok := model.FindCategoryByName(categories, ref); ok {
		return c, nil
	}
	return model.Category{}, fmt.Errorf("%w: %q", common.ErrCategoryNotFound, ref)
}

func lookupCategory(ctx context.Context, store service.CategoryDirectory, userID, ref string) (model.Category, error) {
	categories, err := store.ListCategories(ctx, userID)
	if err != nil {
		return model.Category{}, fmt.Errorf("failed to get categories: %w", err)
	}
	return resolveCategory(categories, ref)
}

// parseBudget turns a flag value into a budget limit; empty clears it.
func parseBudget(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: invalid budget %q", common.ErrInvalidInput, raw)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("%w: budget must not be negative", common.ErrInvalidInput)
	}
	return decimal.NewNullDecimal(d), nil
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
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

			categories, err := store.ListCategories(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderCategories(categories))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var (
		income bool
		budget string
		color  string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := currentUser()
			if err != nil {
				return err
			}

			limit, err := parseBudget(budget)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category := model.Category{
				UserID:      userID,
				Name:        strings.TrimSpace(args[0]),
				Type:        model.CategoryTypeExpense,
				Color:       color,
				BudgetLimit: limit,
			}
			if income {
				category.Type = model.CategoryTypeIncome
			}

			created, err := store.CreateCategory(ctx, category)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s category %q", created.Type, created.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&income, "income", false, "track income instead of expenses")
	cmd.Flags().StringVar(&budget, "budget", "", "monthly budget limit, e.g. 400.00")
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #3b82f6")
	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name   string
		budget string
		color  string
		income bool
	)

	cmd := &cobra.Command{
		Use:   "update <id-or-name>",
		Short: "Update a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			category, err := lookupCategory(ctx, store, userID, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				category.Name = strings.TrimSpace(name)
			}
			if flags.Changed("budget") {
				if category.BudgetLimit, err = parseBudget(budget); err != nil {
					return err
				}
			}
			if flags.Changed("color") {
				category.Color = color
			}
			if flags.Changed("income") {
				category.Type = model.CategoryTypeExpense
				if income {
					category.Type = model.CategoryTypeIncome
				}
			}

			if err := store.UpdateCategory(ctx, category); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated category %q", category.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&budget, "budget", "", "monthly budget limit; empty clears it")
	cmd.Flags().StringVar(&color, "color", "", "display color")
	cmd.Flags().BoolVar(&income, "income", false, "track income instead of expenses")
	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a category",
		Long: `Delete a category. Transactions assigned to it become uncategorized
and rules pointing at it stop matching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			category, err := lookupCategory(ctx, store, userID, args[0])
			if err != nil {
				return err
			}

			if !force {
				ok, err := cli.NewReviewer(cmd.InOrStdin(), cmd.OutOrStdout()).
					Confirm(ctx, fmt.Sprintf("Delete category %q?", category.Name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Cancelled"))
					return nil
				}
			}

			if err := store.DeleteCategory(ctx, category.ID); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted category %q", category.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
