// Package repository persists the import pipeline's collaborator records:
// bank accounts, transactions and import batches.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound means the bank account does not exist
	ErrAccountNotFound = errors.New("bank account not found")
	// ErrDuplicateFingerprint means the unique fingerprint constraint fired
	// on insert. Concurrent imports of overlapping files race past the
	// existence check; the constraint is the real guarantee.
	ErrDuplicateFingerprint = errors.New("transaction fingerprint already exists")
)

const uniqueViolationCode = "23505"

// BankAccount is the ownership-check projection of a bank account
type BankAccount struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Name         string
	CurrencyCode string
}

// Transaction is one persisted imported transaction. Created exactly once
// per distinct fingerprint and never updated afterwards.
type Transaction struct {
	ID                  uuid.UUID
	OwnerID             uuid.UUID
	BankAccountID       uuid.UUID
	ExternalFingerprint string
	PostedAt            time.Time
	Description         string
	MerchantName        string
	Amount              decimal.Decimal
	BalanceAfter        *decimal.Decimal
	CurrencyCode        string
	IsInternalTransfer  bool
	Raw                 map[string]any
}

// ImportBatch is the audit record written once per committed import
type ImportBatch struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	BankAccountID    uuid.UUID
	ParserName       string
	TotalRows        int
	ParsedRows       int
	Inserted         int
	SkippedDuplicate int
}

// DB is the pgx query surface the repository needs; *pgxpool.Pool satisfies
// it, as does the mock used in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository is the pgx-backed store
type Repository struct {
	db DB
}

// New creates a statement repository
func New(db DB) *Repository {
	return &Repository{db: db}
}

// GetBankAccount loads an account for the ownership check
func (r *Repository) GetBankAccount(ctx context.Context, accountID uuid.UUID) (*BankAccount, error) {
	query := `
		SELECT id, owner_id, name, currency_code
		FROM bank_accounts
		WHERE id = $1
	`

	var account BankAccount
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.OwnerID,
		&account.Name,
		&account.CurrencyCode,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bank account: %w", err)
	}

	return &account, nil
}

// FindTransactionByFingerprint reports whether a transaction with this
// fingerprint already exists in the account.
func (r *Repository) FindTransactionByFingerprint(ctx context.Context, ownerID, accountID uuid.UUID, fingerprint string) (bool, error) {
	query := `
		SELECT id
		FROM transactions
		WHERE owner_id = $1 AND bank_account_id = $2 AND external_fingerprint = $3
	`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, ownerID, accountID, fingerprint).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up fingerprint: %w", err)
	}

	return true, nil
}

// InsertTransaction persists a new transaction and fills in its generated
// id. A unique violation on the fingerprint constraint is returned as
// ErrDuplicateFingerprint.
func (r *Repository) InsertTransaction(ctx context.Context, txn *Transaction) error {
	query := `
		INSERT INTO transactions (
			owner_id, bank_account_id, external_fingerprint, posted_at,
			description, merchant_name, amount, balance_after,
			currency_code, is_internal_transfer, raw
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		txn.OwnerID,
		txn.BankAccountID,
		txn.ExternalFingerprint,
		txn.PostedAt,
		txn.Description,
		nullableString(txn.MerchantName),
		txn.Amount,
		txn.BalanceAfter,
		txn.CurrencyCode,
		txn.IsInternalTransfer,
		txn.Raw,
	).Scan(&txn.ID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicateFingerprint
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// CreateImportBatch writes the audit record for a committed import
func (r *Repository) CreateImportBatch(ctx context.Context, batch *ImportBatch) error {
	query := `
		INSERT INTO import_batches (
			owner_id, bank_account_id, parser_name,
			total_rows, parsed_rows, inserted, skipped_duplicate
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		batch.OwnerID,
		batch.BankAccountID,
		batch.ParserName,
		batch.TotalRows,
		batch.ParsedRows,
		batch.Inserted,
		batch.SkippedDuplicate,
	).Scan(&batch.ID)
	if err != nil {
		return fmt.Errorf("failed to create import batch: %w", err)
	}

	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
