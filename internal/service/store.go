package service

import (
	"context"

	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/repository"
)

// AccountStore is the durable account mapping the engine operates on.
// Implementations must make ApplyUpdates all-or-nothing: either every update
// commits with its journal rows, or nothing does.
type AccountStore interface {
	GetAccount(ctx context.Context, username string) (*models.Account, error)
	CreateAccount(ctx context.Context, acct *models.Account) error
	ApplyUpdates(ctx context.Context, updates []repository.BalanceUpdate, journal []models.Transaction) error
	ListTransactions(ctx context.Context, username string, limit int) ([]models.Transaction, error)
	Totals(ctx context.Context) (repository.Totals, error)
}
