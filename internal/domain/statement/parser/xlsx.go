package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/libroazul/libroazul/internal/domain/statement/normalizer"
)

const xlsxParserName = "xlsx"

// errNoHeader fails the whole parse when no qualifying header row exists
// within the scan window.
var errNoHeader = fmt.Errorf("no header row found: expected a row naming date, debit/credit and description/transaction columns")

var xlsxMagic = []byte{'P', 'K', 0x03, 0x04}

// ColumnLayout maps the fixed column positions of the legacy export,
// relative to the detected header row.
type ColumnLayout struct {
	Date        int
	Reference   int
	TxnType     int
	Description int
	Debit       int
	Credit      int
	Balance     int
}

func defaultLayout() *ColumnLayout {
	return &ColumnLayout{Date: 0, Reference: 1, TxnType: 2, Description: 3, Debit: 4, Credit: 5, Balance: 6}
}

// XLSXConfig overrides the keyword sets and column layout of the tabular
// parser. Zero-value fields keep the defaults. All token comparisons are
// case-insensitive and diacritic-stripped.
type XLSXConfig struct {
	Layout            *ColumnLayout
	SheetNames        []string // target sheet name fragments
	DateTokens        []string
	DebitTokens       []string
	CreditTokens      []string
	DescriptionTokens []string
	TransactionTokens []string
	SummaryTokens     []string
}

// XLSXParser reads the legacy spreadsheet export: metadata banner rows, a
// header row, data rows, then optional summary/total rows.
type XLSXParser struct {
	cfg XLSXConfig
}

// NewXLSXParser creates the tabular spreadsheet parser
func NewXLSXParser(cfg XLSXConfig) *XLSXParser {
	if cfg.Layout == nil {
		cfg.Layout = defaultLayout()
	}
	if len(cfg.SheetNames) == 0 {
		cfg.SheetNames = []string{"movimientos", "estado de cuenta", "transacciones", "transactions", "statement"}
	}
	if len(cfg.DateTokens) == 0 {
		cfg.DateTokens = []string{"fecha", "date"}
	}
	if len(cfg.DebitTokens) == 0 {
		cfg.DebitTokens = []string{"debito", "debit", "cargo"}
	}
	if len(cfg.CreditTokens) == 0 {
		cfg.CreditTokens = []string{"credito", "credit", "abono"}
	}
	if len(cfg.DescriptionTokens) == 0 {
		cfg.DescriptionTokens = []string{"descripcion", "description", "detalle", "concepto"}
	}
	if len(cfg.TransactionTokens) == 0 {
		cfg.TransactionTokens = []string{"transaccion", "transaction"}
	}
	if len(cfg.SummaryTokens) == 0 {
		cfg.SummaryTokens = []string{"total", "saldo final", "saldo inicial", "resumen", "balance final"}
	}
	return &XLSXParser{cfg: cfg}
}

func (p *XLSXParser) Name() string { return xlsxParserName }

// Detect claims XLSX content whose target sheet name matches, or whose
// leading rows contain a qualifying header row. Weaker heuristic than the
// OFX signature, so this parser is tried second.
func (p *XLSXParser) Detect(content []byte) bool {
	if !bytes.HasPrefix(content, xlsxMagic) {
		return false
	}
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return false
	}
	defer f.Close()

	sheet, byName := p.findSheet(f)
	if sheet == "" {
		return false
	}
	if byName {
		return true
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return false
	}
	_, err = p.findHeaderRow(rows, 30)
	return err == nil
}

// Parse locates the target sheet and header row, then reads data rows until
// the first fully-empty row. Summary/total rows and rows with a blank date
// cell are skipped; row-level failures are collected and parsing continues.
func (p *XLSXParser) Parse(content []byte, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet, _ := p.findSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	headerIdx, err := p.findHeaderRow(rows, opts.HeaderScanRows)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	for i := headerIdx + 1; i < len(rows); i++ {
		if result.TotalRows >= opts.MaxRows {
			break
		}
		row := rows[i]
		if isEmptyRow(row) {
			break // first fully-empty row marks end of data
		}

		result.TotalRows++
		rowNum := i + 1 // 1-indexed sheet row, for error reporting

		if p.isSummaryRow(row) {
			result.SkippedRows++
			continue
		}
		if cellAt(row, p.cfg.Layout.Date) == "" {
			result.SkippedRows++
			continue
		}

		normalized, rowErr := p.processRow(row, rowNum, opts)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Rows = append(result.Rows, *normalized)
	}

	return result, nil
}

// findSheet returns the target sheet and whether it matched by name
func (p *XLSXParser) findSheet(f *excelize.File) (string, bool) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", false
	}
	for _, sheet := range sheets {
		folded := normalizer.FoldForMatch(sheet)
		for _, name := range p.cfg.SheetNames {
			if strings.Contains(folded, name) {
				return sheet, true
			}
		}
	}
	return sheets[0], false
}

// findHeaderRow scans the leading rows for one that simultaneously names a
// date column, a debit or credit column, and a description or transaction
// column.
func (p *XLSXParser) findHeaderRow(rows [][]string, scanRows int) (int, error) {
	limit := len(rows)
	if limit > scanRows {
		limit = scanRows
	}

	for i := 0; i < limit; i++ {
		folded := make([]string, len(rows[i]))
		for j, cell := range rows[i] {
			folded[j] = normalizer.FoldForMatch(cell)
		}

		hasDate := rowHasToken(folded, p.cfg.DateTokens)
		hasAmount := rowHasToken(folded, p.cfg.DebitTokens) || rowHasToken(folded, p.cfg.CreditTokens)
		hasDesc := rowHasToken(folded, p.cfg.DescriptionTokens) || rowHasToken(folded, p.cfg.TransactionTokens)

		if hasDate && hasAmount && hasDesc {
			return i, nil
		}
	}

	return 0, errNoHeader
}

func (p *XLSXParser) isSummaryRow(row []string) bool {
	for _, cell := range row {
		folded := normalizer.FoldForMatch(cell)
		if folded == "" {
			continue
		}
		for _, token := range p.cfg.SummaryTokens {
			if strings.Contains(folded, token) {
				return true
			}
		}
	}
	return false
}

func (p *XLSXParser) processRow(row []string, rowNum int, opts Options) (*NormalizedRow, *RowError) {
	layout := p.cfg.Layout

	postedAt, err := parseTabularDate(cellAt(row, layout.Date), opts.Location)
	if err != nil {
		return nil, &RowError{Row: rowNum, Message: err.Error(), Data: cellAt(row, layout.Date)}
	}

	amount, err := resolveAmount(cellAt(row, layout.Debit), cellAt(row, layout.Credit))
	if err != nil {
		return nil, &RowError{Row: rowNum, Message: err.Error()}
	}

	description := normalizer.CleanDescription(cellAt(row, layout.Description))
	if description == "" {
		return nil, &RowError{Row: rowNum, Message: "empty description"}
	}

	normalized := &NormalizedRow{
		PostedAt:     postedAt,
		Description:  description,
		MerchantName: opts.Extractor.FromStatementRow(description),
		Reference:    cellAt(row, layout.Reference),
		Amount:       amount,
		Currency:     opts.DefaultCurrency, // this format carries no per-row currency
		Raw: map[string]any{
			"parser":    xlsxParserName,
			"row":       rowNum,
			"cells":     append([]string(nil), row...),
			"txn_type":  cellAt(row, layout.TxnType),
			"parsed_at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	if balance, err := parseCellDecimal(cellAt(row, layout.Balance)); err == nil {
		normalized.BalanceAfter = &balance
	}

	return normalized, nil
}

// parseTabularDate accepts DD/MM/YYYY or YYYY-MM-DD only
func parseTabularDate(raw string, loc *time.Location) (Date, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return NewDate(t), nil
		}
	}
	return Date{}, fmt.Errorf("unsupported date format %q (expected DD/MM/YYYY or YYYY-MM-DD)", s)
}

// resolveAmount applies the sign convention: debit negative, credit
// positive; both present means credit minus debit.
func resolveAmount(debitCell, creditCell string) (decimal.Decimal, error) {
	debit, debitErr := parseCellDecimal(debitCell)
	credit, creditErr := parseCellDecimal(creditCell)

	switch {
	case debitErr == nil && creditErr == nil:
		return credit.Sub(debit), nil
	case debitErr == nil:
		return debit.Neg(), nil
	case creditErr == nil:
		return credit, nil
	default:
		return decimal.Zero, fmt.Errorf("no determinable amount in debit/credit columns")
	}
}

// parseCellDecimal reads a spreadsheet amount cell ("1,234.56", "$18.75")
func parseCellDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty cell")
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	return decimal.NewFromString(s)
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rowHasToken(foldedCells []string, tokens []string) bool {
	for _, cell := range foldedCells {
		for _, token := range tokens {
			if strings.Contains(cell, token) {
				return true
			}
		}
	}
	return false
}
