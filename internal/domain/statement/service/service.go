// Package service provides the import orchestration logic: detect format,
// parse, then preview or persist with dedup and categorization.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/libroazul/libroazul/internal/domain/categorization"
	"github.com/libroazul/libroazul/internal/domain/statement/parser"
	"github.com/libroazul/libroazul/internal/domain/statement/repository"
	"github.com/libroazul/libroazul/pkg/metrics"
	"github.com/libroazul/libroazul/pkg/money"
)

// ErrNotOwned means the target bank account belongs to a different owner.
// The whole operation fails before any parsing.
var ErrNotOwned = errors.New("bank account does not belong to the requesting owner")

// Repository is the transaction storage surface the orchestrator needs
type Repository interface {
	GetBankAccount(ctx context.Context, accountID uuid.UUID) (*repository.BankAccount, error)
	FindTransactionByFingerprint(ctx context.Context, ownerID, accountID uuid.UUID, fingerprint string) (bool, error)
	InsertTransaction(ctx context.Context, txn *repository.Transaction) error
	CreateImportBatch(ctx context.Context, batch *repository.ImportBatch) error
}

// RuleStore supplies categorization rules and records assignments
type RuleStore interface {
	GetActiveRules(ctx context.Context, ownerID uuid.UUID) ([]categorization.CategoryRule, error)
	UpsertAssignment(ctx context.Context, transactionID, categoryID uuid.UUID, ruleID *uuid.UUID) error
}

// Summary is the per-run result contract
type Summary struct {
	TotalRows        int               `json:"total_rows"`
	ParsedRows       int               `json:"parsed_rows"`
	Inserted         int               `json:"inserted"`
	SkippedDuplicate int               `json:"skipped_duplicate"`
	Categorized      int               `json:"categorized"`
	Uncategorized    int               `json:"uncategorized"`
	TotalIn          string            `json:"total_in"`
	TotalOut         string            `json:"total_out"`
	Errors           []parser.RowError `json:"errors"`
}

// Report is a summary plus a small sample of rows: parsed rows for a
// preview, inserted rows for an import.
type Report struct {
	Summary Summary                `json:"summary"`
	Sample  []parser.NormalizedRow `json:"sample"`
}

// FatalReport builds the zero-progress report returned when the whole
// operation fails before row processing.
func FatalReport(message string) *Report {
	return &Report{
		Summary: Summary{
			TotalIn:  money.Zero(money.USD).Display(),
			TotalOut: money.Zero(money.USD).Display(),
			Errors:   []parser.RowError{{Row: 0, Message: message}},
		},
		Sample: []parser.NormalizedRow{},
	}
}

// Config carries the orchestrator limits and locale defaults
type Config struct {
	Location       *time.Location
	MaxRows        int
	HeaderScanRows int
	SampleSize     int
	MaxErrors      int
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 3
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = 50
	}
	return c
}

// ImportService drives the pipeline end to end. Rows are processed strictly
// in sequence: a row's dedup check must observe the inserts of earlier rows
// in the same run.
type ImportService struct {
	repo     Repository
	rules    RuleStore
	detector *parser.Detector
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      Config
}

// NewImportService creates the orchestrator
func NewImportService(repo Repository, rules RuleStore, detector *parser.Detector, m *metrics.Metrics, logger *slog.Logger, cfg Config) *ImportService {
	return &ImportService{
		repo:     repo,
		rules:    rules,
		detector: detector,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("libroazul/statement"),
		cfg:      cfg.withDefaults(),
	}
}

// Preview runs detection and parsing only. It never persists, never
// consults the fingerprint state, never categorizes.
func (s *ImportService) Preview(ctx context.Context, ownerID, accountID uuid.UUID, content []byte, loc *time.Location) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "statement.Preview",
		trace.WithAttributes(attribute.String("bank_account_id", accountID.String())))
	defer span.End()

	account, _, result, err := s.detectAndParse(ctx, ownerID, accountID, content, loc)
	if err != nil {
		s.metrics.ImportsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	report := &Report{
		Summary: s.baseSummary(result, account.CurrencyCode),
		Sample:  sampleRows(result.Rows, s.cfg.SampleSize),
	}

	in, out := sumAmounts(result.Rows, account.CurrencyCode)
	report.Summary.TotalIn = in.Display()
	report.Summary.TotalOut = out.Display()

	s.metrics.ImportsTotal.WithLabelValues("preview").Inc()
	s.logger.InfoContext(ctx, "statement preview completed",
		slog.String("bank_account_id", accountID.String()),
		slog.Int("total_rows", report.Summary.TotalRows),
		slog.Int("parsed_rows", report.Summary.ParsedRows))

	return report, nil
}

// Import runs the full pipeline: detect, parse, then per parsed row compute
// the fingerprint, skip known duplicates, insert, and categorize. Per-row
// failures are recorded and do not abort the remaining rows.
func (s *ImportService) Import(ctx context.Context, ownerID, accountID uuid.UUID, content []byte, loc *time.Location) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "statement.Import",
		trace.WithAttributes(attribute.String("bank_account_id", accountID.String())))
	defer span.End()

	account, parserName, result, err := s.detectAndParse(ctx, ownerID, accountID, content, loc)
	if err != nil {
		s.metrics.ImportsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	activeRules, err := s.rules.GetActiveRules(ctx, ownerID)
	if err != nil {
		s.metrics.ImportsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to load categorization rules: %w", err)
	}
	engine := categorization.NewEngine(activeRules)
	s.logger.DebugContext(ctx, "categorization rules loaded",
		slog.Int("patterns", engine.PatternCount()))

	summary := s.baseSummary(result, account.CurrencyCode)
	insertedRows := make([]parser.NormalizedRow, 0, len(result.Rows))

	for i, row := range result.Rows {
		inserted, rowErr := s.persistRow(ctx, ownerID, account, row, i+1)
		if rowErr != nil {
			s.appendError(&summary, *rowErr)
			continue
		}
		if inserted == nil {
			summary.SkippedDuplicate++
			s.metrics.DuplicatesSkipped.Inc()
			continue
		}

		summary.Inserted++
		s.metrics.RowsInserted.Inc()
		insertedRows = append(insertedRows, row)

		// Internal transfers bypass categorization and count as neither
		// categorized nor uncategorized.
		if row.IsInternalTransfer {
			continue
		}
		if engine.IsEmpty() {
			summary.Uncategorized++
			continue
		}

		match := engine.Match(row.MerchantName, row.Description)
		if match == nil {
			summary.Uncategorized++
			continue
		}
		if err := s.rules.UpsertAssignment(ctx, inserted.ID, match.CategoryID, &match.RuleID); err != nil {
			summary.Uncategorized++
			s.appendError(&summary, parser.RowError{
				Row:     i + 1,
				Message: fmt.Sprintf("categorization failed: %v", err),
			})
			continue
		}
		summary.Categorized++
	}

	sample := sampleRows(insertedRows, s.cfg.SampleSize)
	in, out := sumAmounts(insertedRows, account.CurrencyCode)
	summary.TotalIn = in.Display()
	summary.TotalOut = out.Display()

	s.writeAudit(ctx, ownerID, accountID, parserName, summary)

	s.metrics.ImportsTotal.WithLabelValues("succeeded").Inc()
	s.logger.InfoContext(ctx, "statement import completed",
		slog.String("bank_account_id", accountID.String()),
		slog.Int("inserted", summary.Inserted),
		slog.Int("skipped_duplicate", summary.SkippedDuplicate),
		slog.Int("errors", len(summary.Errors)))

	return &Report{Summary: summary, Sample: sample}, nil
}

// detectAndParse enforces the ownership precondition, then detects the
// format and parses. All failures here are whole-import fatal.
func (s *ImportService) detectAndParse(ctx context.Context, ownerID, accountID uuid.UUID, content []byte, loc *time.Location) (*repository.BankAccount, string, *parser.Result, error) {
	account, err := s.repo.GetBankAccount(ctx, accountID)
	if err != nil {
		return nil, "", nil, err
	}
	if account.OwnerID != ownerID {
		return nil, "", nil, ErrNotOwned
	}
	if !money.SupportedCurrency(account.CurrencyCode) {
		return nil, "", nil, fmt.Errorf("unsupported account currency %q", account.CurrencyCode)
	}

	p, err := s.detector.Detect(content)
	if err != nil {
		return nil, "", nil, err
	}

	if loc == nil {
		loc = s.cfg.Location
	}
	result, err := p.Parse(content, parser.Options{
		Location:        loc,
		DefaultCurrency: account.CurrencyCode,
		MaxRows:         s.cfg.MaxRows,
		HeaderScanRows:  s.cfg.HeaderScanRows,
	})
	if err != nil {
		return nil, "", nil, fmt.Errorf("%s parse failed: %w", p.Name(), err)
	}

	s.logger.DebugContext(ctx, "statement parsed",
		slog.String("parser", p.Name()),
		slog.Int("rows", len(result.Rows)),
		slog.Int("row_errors", len(result.Errors)))

	return account, p.Name(), result, nil
}

// persistRow returns the inserted transaction, nil for a duplicate, or a
// row error. The fingerprint constraint backs the existence check against
// concurrent imports; a unique violation counts as a duplicate.
func (s *ImportService) persistRow(ctx context.Context, ownerID uuid.UUID, account *repository.BankAccount, row parser.NormalizedRow, rowNum int) (*repository.Transaction, *parser.RowError) {
	fingerprint := parser.Fingerprint(row, account.ID)

	exists, err := s.repo.FindTransactionByFingerprint(ctx, ownerID, account.ID, fingerprint)
	if err != nil {
		return nil, &parser.RowError{Row: rowNum, Message: fmt.Sprintf("fingerprint lookup failed: %v", err)}
	}
	if exists {
		return nil, nil
	}

	txn := &repository.Transaction{
		OwnerID:             ownerID,
		BankAccountID:       account.ID,
		ExternalFingerprint: fingerprint,
		PostedAt:            row.PostedAt.Time,
		Description:         row.Description,
		MerchantName:        row.MerchantName,
		Amount:              row.Amount,
		BalanceAfter:        row.BalanceAfter,
		CurrencyCode:        row.Currency,
		IsInternalTransfer:  row.IsInternalTransfer,
		Raw:                 row.Raw,
	}

	err = s.repo.InsertTransaction(ctx, txn)
	if errors.Is(err, repository.ErrDuplicateFingerprint) {
		return nil, nil
	}
	if err != nil {
		return nil, &parser.RowError{Row: rowNum, Message: fmt.Sprintf("insert failed: %v", err)}
	}

	return txn, nil
}

func (s *ImportService) baseSummary(result *parser.Result, currencyCode string) Summary {
	summary := Summary{
		TotalRows:  result.TotalRows,
		ParsedRows: len(result.Rows),
		TotalIn:    money.Zero(currencyCode).Display(),
		TotalOut:   money.Zero(currencyCode).Display(),
		Errors:     []parser.RowError{},
	}
	for _, e := range result.Errors {
		s.appendError(&summary, e)
	}
	return summary
}

func (s *ImportService) appendError(summary *Summary, e parser.RowError) {
	s.metrics.RowErrors.Inc()
	if len(summary.Errors) >= s.cfg.MaxErrors {
		return
	}
	summary.Errors = append(summary.Errors, e)
}

// writeAudit records the import batch. Audit failures are logged, never
// surfaced: the import itself already succeeded.
func (s *ImportService) writeAudit(ctx context.Context, ownerID, accountID uuid.UUID, parserName string, summary Summary) {
	batch := &repository.ImportBatch{
		OwnerID:          ownerID,
		BankAccountID:    accountID,
		ParserName:       parserName,
		TotalRows:        summary.TotalRows,
		ParsedRows:       summary.ParsedRows,
		Inserted:         summary.Inserted,
		SkippedDuplicate: summary.SkippedDuplicate,
	}
	if err := s.repo.CreateImportBatch(ctx, batch); err != nil {
		s.logger.WarnContext(ctx, "failed to write import batch audit record",
			slog.String("bank_account_id", accountID.String()),
			slog.Any("error", err))
	}
}

func sampleRows(rows []parser.NormalizedRow, n int) []parser.NormalizedRow {
	if len(rows) < n {
		n = len(rows)
	}
	sample := make([]parser.NormalizedRow, n)
	copy(sample, rows[:n])
	return sample
}

// sumAmounts totals credits and debits separately. Internal transfers move
// money between the owner's own accounts and stay out of both totals.
func sumAmounts(rows []parser.NormalizedRow, currencyCode string) (in, out *money.Money) {
	in, out = money.Zero(currencyCode), money.Zero(currencyCode)
	for _, row := range rows {
		if row.IsInternalTransfer {
			continue
		}
		amount := money.NewFromDecimal(row.Amount, currencyCode)
		if row.Amount.IsNegative() {
			out = addTotal(out, amount.Abs())
		} else {
			in = addTotal(in, amount)
		}
	}
	return in, out
}

// addTotal sums two amounts of the same currency; the mismatch error path
// cannot trigger here because both sides come from the account currency.
func addTotal(total, amount *money.Money) *money.Money {
	sum, err := total.Add(amount)
	if err != nil {
		return total
	}
	return sum
}
