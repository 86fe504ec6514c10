package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/wantnot/internal/model"
)

const systemPrompt = "You are a financial transaction categorizer. Follow the requested output format exactly and add no commentary."

func formatAmount(txn model.Transaction) string {
	kind := "expense"
	if txn.IsIncome() {
		kind = "income"
	}
	return fmt.Sprintf("$%s (%s)", txn.Amount.Abs().StringFixed(2), kind)
}

func formatMerchant(txn model.Transaction) string {
	if strings.TrimSpace(txn.MerchantName) == "" {
		return "N/A"
	}
	return txn.MerchantName
}

// buildPrompt creates the single-transaction prompt.
func buildPrompt(txn model.Transaction, categories []model.Category) string {
	var b strings.Builder

	b.WriteString("Pick the single best budget category for this transaction from the user's categories.\n\n")
	b.WriteString("Transaction details:\n")
	fmt.Fprintf(&b, "- Name: %s\n", txn.Name)
	fmt.Fprintf(&b, "- Merchant: %s\n", formatMerchant(txn))
	fmt.Fprintf(&b, "- Amount: %s\n", formatAmount(txn))
	if len(txn.CategoryHints) > 0 {
		fmt.Fprintf(&b, "- Bank category: %s\n", strings.Join(txn.CategoryHints, " > "))
	}

	fmt.Fprintf(&b, "\nUser's categories: %s\n\n", strings.Join(model.CategoryNames(categories), ", "))

	b.WriteString("Respond with ONLY a JSON object in this exact format:\n")
	b.WriteString(`{"category": "<category name exactly as listed>", "confidence": <number between 0 and 1>}`)
	b.WriteString("\n\nIf none of the categories fit, respond with:\n")
	b.WriteString(`{"category": null, "confidence": 0}`)

	return b.String()
}

// buildBatchPrompt creates the prompt for a batch of transactions. Transactions
// are numbered from 1 so the model never sees storage identifiers.
func buildBatchPrompt(txns []model.Transaction, categories []model.Category) string {
	var b strings.Builder

	b.WriteString("Categorize each of the following transactions using the user's budget categories.\n\n")
	b.WriteString("User's categories:\n")
	for _, c := range categories {
		kind := model.CategoryTypeExpense
		if c.IsIncome() {
			kind = model.CategoryTypeIncome
		}
		fmt.Fprintf(&b, "- %s (%s)\n", c.Name, kind)
	}

	b.WriteString("\nTransactions:\n")
	for i, txn := range txns {
		fmt.Fprintf(&b, "%d. Name: %s | Merchant: %s | Amount: %s", i+1, txn.Name, formatMerchant(txn), formatAmount(txn))
		if len(txn.CategoryHints) > 0 {
			fmt.Fprintf(&b, " | Bank category: %s", strings.Join(txn.CategoryHints, " > "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nFor every transaction output exactly one line:\n")
	b.WriteString("TXN|<transaction number>|<category name exactly as listed, or NONE>|<confidence between 0 and 1>\n\n")
	b.WriteString("If several transactions share a theme that no existing category fits well, also output one line per proposed new category:\n")
	b.WriteString("NEW|<category name>|<comma-separated transaction numbers>|<income or expense>|<short description>\n\n")
	b.WriteString("Output only these lines.")

	return b.String()
}
