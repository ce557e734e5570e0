package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/ledgerbank/ledger-service/internal/models"
)

// Repository provides Postgres-backed account storage
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetAccount retrieves an account by username
func (r *Repository) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	acct := &models.Account{}
	query := `
		SELECT username, email, password_hash, cash, debt, version, created_at, updated_at
		FROM ledger.accounts
		WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&acct.Username, &acct.Email, &acct.PasswordHash, &acct.Cash, &acct.Debt,
			&acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// CreateAccount creates a new account
func (r *Repository) CreateAccount(ctx context.Context, acct *models.Account) error {
	query := `
		INSERT INTO ledger.accounts (username, email, password_hash, cash, debt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, acct.Username, acct.Email, acct.PasswordHash, acct.Cash, acct.Debt).
		Scan(&acct.CreatedAt, &acct.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// ApplyUpdates commits a set of versioned balance updates and their journal
// rows in a single transaction. If any account's version no longer matches,
// nothing is applied and ErrVersionConflict is returned.
func (r *Repository) ApplyUpdates(ctx context.Context, updates []BalanceUpdate, journal []models.Transaction) error {
	// Consistent lock order prevents deadlocks between overlapping commits.
	sort.Slice(updates, func(i, j int) bool { return updates[i].Username < updates[j].Username })

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger.accounts
			SET cash = $1, debt = $2, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE username = $3 AND version = $4`,
			u.Cash, u.Debt, u.Username, u.Version)
		if err != nil {
			return fmt.Errorf("failed to update account %s: %w", u.Username, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return ErrVersionConflict
		}
	}

	for _, t := range journal {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger.transactions (id, type, username, counterparty, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.Type, t.Username, t.Counterparty, t.Amount, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit updates: %w", err)
	}
	return nil
}

// ListTransactions returns the journal rows involving the given username,
// newest first.
func (r *Repository) ListTransactions(ctx context.Context, username string, limit int) ([]models.Transaction, error) {
	query := `
		SELECT id, type, username, counterparty, amount, created_at
		FROM ledger.transactions
		WHERE username = $1 OR counterparty = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.Username, &t.Counterparty, &t.Amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return out, nil
}

// Totals reports aggregate balances across all accounts
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	query := `
		SELECT COALESCE(SUM(cash), 0), COUNT(*), COUNT(*) FILTER (WHERE debt < 0)
		FROM ledger.accounts`
	err := r.db.QueryRowContext(ctx, query).Scan(&t.TotalCash, &t.Accounts, &t.NegativeDebt)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to compute totals: %w", err)
	}
	return t, nil
}
