package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankUsername is the reserved account that absorbs fees and funds loans.
// It must exist before any ledger operation runs.
const BankUsername = "BANK"

// Account represents a ledger participant, including the BANK account.
type Account struct {
	Username     string          `json:"username"`
	Email        string          `json:"email,omitempty"`
	PasswordHash string          `json:"-"` // Not serialized
	Cash         decimal.Decimal `json:"cash"`
	Debt         decimal.Decimal `json:"debt"`
	Version      int64           `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
