package spreadsheet

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/aclindsa/ofxgo"
)

// OFX statement tables always carry these columns, in this order.
var ofxColumns = []string{"Date", model.ColumnDescription, model.ColumnRefNo, model.ColumnCredit, "Type", "Account", "Memo"}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXCodec flattens OFX/QFX bank and credit card statements into a table.
// It cannot write statements back.
type OFXCodec struct{}

// NewOFXCodec creates an OFX codec.
func NewOFXCodec() *OFXCodec {
	return &OFXCodec{}
}

// preprocessOFX fixes common formatting issues in bank exports.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Mixed-case SEVERITY values are rejected by the parser.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files sometimes drop the closing bracket on bare tags.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Decode parses every statement in the file. Credits are positive and debits
// negative, as in the file.
func (c *OFXCodec) Decode(data []byte) (*model.Table, error) {
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX file: %v", common.ErrLoad, err)
	}

	table := model.NewTable(ofxColumns...)
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList != nil {
				appendTransactions(table, stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList != nil {
				appendTransactions(table, stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
			}
		}
	}

	slog.Debug("Parsed OFX file",
		"total_transactions", table.Len(),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return table, nil
}

// Encode is not supported for OFX.
func (c *OFXCodec) Encode(_ *model.Table) ([]byte, error) {
	return nil, ErrEncodeUnsupported
}

func appendTransactions(table *model.Table, txns []ofxgo.Transaction, accountID string) {
	for _, tx := range txns {
		amount, _ := tx.TrnAmt.Float64()

		table.AppendRow(
			model.Text(tx.DtPosted.Format("2006-01-02")),
			textOrEmpty(description(tx)),
			textOrEmpty(reference(tx)),
			model.Number(amount),
			model.Text(tx.TrnType.String()),
			textOrEmpty(accountID),
			textOrEmpty(string(tx.Memo)),
		)
	}
}

// description prefers the payee name, then NAME, then MEMO.
func description(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	if name := strings.TrimSpace(string(tx.Name)); name != "" {
		return name
	}
	return strings.TrimSpace(string(tx.Memo))
}

// reference prefers the bank reference number, then the check number, then
// the institution's transaction id.
func reference(tx ofxgo.Transaction) string {
	switch {
	case tx.RefNum != "":
		return string(tx.RefNum)
	case tx.CheckNum != "":
		return string(tx.CheckNum)
	default:
		return string(tx.FiTID)
	}
}

func textOrEmpty(s string) model.Value {
	if s == "" {
		return model.Empty()
	}
	return model.Text(s)
}
