package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerbank/ledger-service/internal/models"
)

// MemoryStore is an in-memory account store with the same versioning contract
// as the Postgres repository. All state changes happen inside one critical
// section, so a multi-account update is atomic relative to every other call.
// It backs unit tests and local runs without a database.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	journal  []models.Transaction
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*models.Account)}
}

// GetAccount returns a copy of the stored account
func (m *MemoryStore) GetAccount(_ context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

// CreateAccount stores a new account with version 0
func (m *MemoryStore) CreateAccount(_ context.Context, acct *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.Username]; ok {
		return ErrAccountExists
	}
	now := time.Now().UTC()
	acct.Version = 0
	acct.CreatedAt = now
	acct.UpdatedAt = now
	cp := *acct
	m.accounts[acct.Username] = &cp
	return nil
}

// ApplyUpdates applies all updates or none. Every expected version is checked
// before the first balance is touched.
func (m *MemoryStore) ApplyUpdates(_ context.Context, updates []BalanceUpdate, journal []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range updates {
		acct, ok := m.accounts[u.Username]
		if !ok {
			return ErrNotFound
		}
		if acct.Version != u.Version {
			return ErrVersionConflict
		}
	}

	now := time.Now().UTC()
	for _, u := range updates {
		acct := m.accounts[u.Username]
		acct.Cash = u.Cash
		acct.Debt = u.Debt
		acct.Version++
		acct.UpdatedAt = now
	}
	m.journal = append(m.journal, journal...)
	return nil
}

// ListTransactions returns journal rows involving the username, newest first
func (m *MemoryStore) ListTransactions(_ context.Context, username string, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for i := len(m.journal) - 1; i >= 0 && len(out) < limit; i-- {
		t := m.journal[i]
		if t.Username == username || t.Counterparty == username {
			out = append(out, t)
		}
	}
	return out, nil
}

// Totals reports aggregate balances across all accounts
func (m *MemoryStore) Totals(_ context.Context) (Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t Totals
	for _, acct := range m.accounts {
		t.TotalCash = t.TotalCash.Add(acct.Cash)
		t.Accounts++
		if acct.Debt.IsNegative() {
			t.NegativeDebt++
		}
	}
	return t, nil
}
