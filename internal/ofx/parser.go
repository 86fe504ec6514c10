// Package ofx reads OFX/QFX bank and credit card statements into
// uncategorized transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line that lost their closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericDescriptions = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// Parser converts OFX statements to transactions.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger uses the process default.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: common.LoggerOrDefault(logger)}
}

// preprocessOFX fixes common formatting issues in exported files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func parseResponse(r io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX file: %v", common.ErrInvalidInput, err)
	}
	return resp, nil
}

// Parse reads every bank and credit card statement in r and returns its
// transactions owned by userID. Amounts are flipped to the expense-positive
// convention.
func (p *Parser) Parse(ctx context.Context, r io.Reader, userID string) ([]model.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID required", common.ErrInvalidInput)
	}
	resp, err := parseResponse(r)
	if err != nil {
		return nil, err
	}

	var (
		transactions      []model.Transaction
		bankStmts, ccStmt int
	)

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		txns := p.convertAll(ctx, stmt.BankTranList.Transactions, userID, string(stmt.BankAcctFrom.AcctID))
		transactions = append(transactions, txns...)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmt++
		txns := p.convertAll(ctx, stmt.BankTranList.Transactions, userID, string(stmt.CCAcctFrom.AcctID))
		transactions = append(transactions, txns...)
	}

	p.logger.InfoContext(ctx, "parsed OFX file",
		"transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmt)

	return transactions, nil
}

func (p *Parser) convertAll(ctx context.Context, list []ofxgo.Transaction, userID, accountID string) []model.Transaction {
	out := make([]model.Transaction, 0, len(list))
	for _, ofxTx := range list {
		txn, err := convertTransaction(ofxTx, userID, accountID)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping OFX transaction",
				"account", accountID,
				"fitid", string(ofxTx.FiTID),
				"error", err)
			continue
		}
		out = append(out, txn)
	}
	return out
}

func convertTransaction(ofxTx ofxgo.Transaction, userID, accountID string) (model.Transaction, error) {
	// OFX reports debits as negative amounts.
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(4))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	name := strings.TrimSpace(string(ofxTx.Name))
	if name == "" {
		name = strings.TrimSpace(string(ofxTx.Memo))
	}
	if name == "" && ofxTx.Payee != nil {
		name = strings.TrimSpace(string(ofxTx.Payee.Name))
	}
	if name == "" {
		return model.Transaction{}, fmt.Errorf("%w: transaction has no description", common.ErrInvalidInput)
	}

	txn := model.Transaction{
		UserID:        userID,
		AccountID:     accountID,
		ExternalID:    string(ofxTx.FiTID),
		Date:          ofxTx.DtPosted.Time,
		Name:          name,
		MerchantName:  extractMerchantName(ofxTx),
		Amount:        amount.Neg(),
		CategoryHints: categoryHints(ofxTx.TrnType.String()),
	}
	if txn.ExternalID == "" {
		txn.ExternalID = txn.GenerateHash()
	}
	return txn, nil
}

// categoryHints infers coarse upstream hints from the OFX transaction type.
func categoryHints(trnType string) []string {
	switch trnType {
	case "INT":
		return []string{"Income", "Interest"}
	case "DIV":
		return []string{"Income", "Dividends"}
	case "FEE", "SRVCHG":
		return []string{"Bank Fees"}
	case "ATM":
		return []string{"Cash & ATM"}
	}
	return nil
}

// extractMerchantName derives a cleaner merchant name from the OFX fields.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && genericDescriptions[strings.ToUpper(strings.TrimSpace(name))] {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading MM/DD date stamps.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// Accounts lists the distinct account IDs in r, sorted.
func (p *Parser) Accounts(r io.Reader) ([]string, error) {
	resp, err := parseResponse(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			seen[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			seen[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(seen))
	for acct := range seen {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
