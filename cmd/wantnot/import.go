package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/ofx"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|dir|glob>...",
		Short: "Import OFX/QFX statements",
		Long: `Import transactions from OFX or QFX statement files. Directories are
scanned for .ofx and .qfx files; glob patterns are expanded. Transactions
already imported are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
	return cmd
}

var statementExtensions = map[string]bool{".ofx": true, ".qfx": true}

// expandInputs resolves files, directories and glob patterns into a sorted,
// de-duplicated list of statement files.
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern %q: %v", common.ErrInvalidInput, arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: no files match %q", common.ErrInvalidInput, arg)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}
			if !info.IsDir() {
				add(match)
				continue
			}

			entries, err := os.ReadDir(match)
			if err != nil {
				return nil, fmt.Errorf("failed to read directory %s: %w", match, err)
			}
			for _, e := range entries {
				if !e.IsDir() && statementExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
					add(filepath.Join(match, e.Name()))
				}
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no OFX or QFX files found", common.ErrInvalidInput)
	}
	sort.Strings(files)
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, err := currentUser()
	if err != nil {
		return err
	}

	files, err := expandInputs(args)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	importer := ofx.NewImporter(ofx.NewParser(slog.Default()), store)
	progress := cli.NewProgress(cmd.ErrOrStderr(), len(files), "Importing")

	var total ofx.ImportResult
	var failed int
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := importFile(cmd, importer, path, userID)
		progress.Add(1)
		if err != nil {
			failed++
			slog.Error("Failed to import file", "file", filepath.Base(path), "error", err)
			continue
		}
		total.Parsed += result.Parsed
		total.Inserted += result.Inserted
	}
	progress.Finish()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions from %d files", total.Inserted, len(files)-failed)))
	if d := total.Duplicates(); d > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Skipped %d already imported", d)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(files))
	}
	return nil
}

func importFile(cmd *cobra.Command, importer *ofx.Importer, path, userID string) (ofx.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ofx.ImportResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return importer.Import(cmd.Context(), f, userID)
}
