package categorization

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CategoryRule is one owner-defined categorization rule
type CategoryRule struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	MatchPattern string
	CategoryID   uuid.UUID
	Priority     int
	IsActive     bool
}

// DB is the pgx query surface the repository needs; *pgxpool.Pool satisfies
// it, as does the mock used in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles rule and assignment storage
type Repository struct {
	db DB
}

// NewRepository creates a categorization repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// GetActiveRules fetches an owner's active rules, highest priority first
func (r *Repository) GetActiveRules(ctx context.Context, ownerID uuid.UUID) ([]CategoryRule, error) {
	query := `
		SELECT id, owner_id, match_pattern, category_id, priority, is_active
		FROM category_rules
		WHERE owner_id = $1 AND is_active = true
		ORDER BY priority DESC, created_at DESC
	`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []CategoryRule
	for rows.Next() {
		var rule CategoryRule
		if err := rows.Scan(
			&rule.ID,
			&rule.OwnerID,
			&rule.MatchPattern,
			&rule.CategoryID,
			&rule.Priority,
			&rule.IsActive,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// UpsertAssignment links a transaction to a category, replacing any prior
// assignment. A transaction carries at most one category.
func (r *Repository) UpsertAssignment(ctx context.Context, transactionID, categoryID uuid.UUID, ruleID *uuid.UUID) error {
	query := `
		INSERT INTO transaction_categories (transaction_id, category_id, rule_id, assigned_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (transaction_id)
		DO UPDATE SET category_id = EXCLUDED.category_id, rule_id = EXCLUDED.rule_id, assigned_at = now()
	`

	_, err := r.db.Exec(ctx, query, transactionID, categoryID, ruleID)
	return err
}

// CreateRule inserts a rule and fills in its generated id
func (r *Repository) CreateRule(ctx context.Context, rule *CategoryRule) error {
	query := `
		INSERT INTO category_rules (owner_id, match_pattern, category_id, priority, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return r.db.QueryRow(ctx, query,
		rule.OwnerID,
		rule.MatchPattern,
		rule.CategoryID,
		rule.Priority,
		rule.IsActive,
	).Scan(&rule.ID)
}
