// Package parser converts heterogeneous bank export formats into a single
// normalized transaction schema. Two formats are supported: the legacy
// fixed-layout spreadsheet export (XLSX) and the OFX 1.x SGML transaction
// list. A detector picks the parser that claims the file.
package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/libroazul/libroazul/internal/domain/statement/normalizer"
)

// Date is a calendar date, rendered as YYYY-MM-DD in JSON.
type Date struct {
	time.Time
}

// NewDate truncates a time to its calendar date in the given location
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// NormalizedRow is the pipeline's canonical transaction representation,
// independent of the source file format.
type NormalizedRow struct {
	PostedAt           Date             `json:"posted_at"`
	Description        string           `json:"description"`
	MerchantName       string           `json:"merchant_name,omitempty"`
	Reference          string           `json:"reference,omitempty"`
	Amount             decimal.Decimal  `json:"amount"`
	BalanceAfter       *decimal.Decimal `json:"balance_after,omitempty"`
	Currency           string           `json:"currency"`
	IsInternalTransfer bool             `json:"is_internal_transfer"`

	// Raw carries source-specific fields for audit only; downstream logic
	// never interprets it.
	Raw map[string]any `json:"raw,omitempty"`
}

// RowError is a per-row (or per-block) parse failure. The row is excluded
// from the output and processing continues.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result holds the outcome of parsing one file
type Result struct {
	Rows        []NormalizedRow
	Errors      []RowError
	TotalRows   int // data rows/blocks examined
	SkippedRows int // blank-date, summary and noise rows
}

// Options carries the per-import context every parser needs. Values are
// explicit rather than ambient so they can vary per bank and locale.
type Options struct {
	Location        *time.Location // zone for posted-date normalization
	DefaultCurrency string         // account currency when the file has none
	MaxRows         int            // safety cap on data rows
	HeaderScanRows  int            // rows scanned for the header (tabular)
	Extractor       *normalizer.MerchantExtractor
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = "USD"
	}
	if o.MaxRows <= 0 {
		o.MaxRows = 1000
	}
	if o.HeaderScanRows <= 0 {
		o.HeaderScanRows = 30
	}
	if o.Extractor == nil {
		o.Extractor = normalizer.NewMerchantExtractor(normalizer.ExtractorConfig{})
	}
	return o
}

// Parser is one supported bank export format
type Parser interface {
	// Name identifies the parser in raw bags and audit records
	Name() string
	// Detect reports whether this parser claims the file content
	Detect(content []byte) bool
	// Parse converts the file into normalized rows. Row-level failures are
	// collected in Result.Errors; only document-level failures return err.
	Parse(content []byte, opts Options) (*Result, error)
}
