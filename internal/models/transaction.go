package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types recorded in the journal.
const (
	TypeDeposit     = "deposit"
	TypeTransfer    = "transfer"
	TypeLoan        = "loan"
	TypeLoanPayment = "loan_payment"
)

// Transaction is one journal row, written in the same atomic commit as the
// balance changes it describes.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Username     string          `json:"username"`
	Counterparty string          `json:"counterparty,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}
