package ofx

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/wantnot/internal/service"
)

// ImportResult summarizes one imported file.
type ImportResult struct {
	Parsed   int
	Inserted int
}

// Duplicates reports how many parsed transactions were already stored.
func (r ImportResult) Duplicates() int {
	return r.Parsed - r.Inserted
}

// Importer parses statements and persists their transactions.
type Importer struct {
	parser *Parser
	store  service.TransactionStore
}

// NewImporter creates an importer writing to store.
func NewImporter(parser *Parser, store service.TransactionStore) *Importer {
	return &Importer{parser: parser, store: store}
}

// Import parses r for userID and saves the result. Transactions already
// stored under the same external ID are skipped.
func (i *Importer) Import(ctx context.Context, r io.Reader, userID string) (ImportResult, error) {
	txns, err := i.parser.Parse(ctx, r, userID)
	if err != nil {
		return ImportResult{}, err
	}
	if len(txns) == 0 {
		return ImportResult{}, nil
	}

	inserted, err := i.store.SaveTransactions(ctx, txns)
	if err != nil {
		return ImportResult{Parsed: len(txns)}, fmt.Errorf("failed to save transactions: %w", err)
	}
	return ImportResult{Parsed: len(txns), Inserted: inserted}, nil
}
