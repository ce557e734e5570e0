// Package repository implements the account store: a durable mapping from
// username to account record with optimistic, versioned updates. Multi-account
// balance changes commit all-or-nothing.
package repository

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no account exists for the requested username.
	ErrNotFound = errors.New("account not found")

	// ErrAccountExists indicates the username is already taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrVersionConflict indicates an account was modified between the
	// caller's read and its update. The caller should re-read and retry.
	ErrVersionConflict = errors.New("account modified concurrently")
)

// BalanceUpdate rewrites one account's balances iff its version still equals
// Version at commit time.
type BalanceUpdate struct {
	Username string
	Version  int64
	Cash     decimal.Decimal
	Debt     decimal.Decimal
}

// Totals reports aggregate balances for the conservation audit.
type Totals struct {
	TotalCash    decimal.Decimal
	Accounts     int64
	NegativeDebt int64
}
