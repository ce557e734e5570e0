// Package audit periodically snapshots aggregate balances so conservation
// drift or negative debt shows up in the logs instead of going unnoticed.
package audit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/repository"
)

// Store is the slice of the account store the auditor needs.
type Store interface {
	GetAccount(ctx context.Context, username string) (*models.Account, error)
	Totals(ctx context.Context) (repository.Totals, error)
}

// Report is one audit snapshot.
type Report struct {
	TotalCash    decimal.Decimal
	BankCash     decimal.Decimal
	Accounts     int64
	NegativeDebt int64
	BelowFloor   bool
}

// Auditor computes and logs audit snapshots.
type Auditor struct {
	store        Store
	log          *logrus.Logger
	reserveFloor decimal.Decimal
}

// NewAuditor initializes a new auditor
func NewAuditor(store Store, log *logrus.Logger, reserveFloor decimal.Decimal) *Auditor {
	return &Auditor{store: store, log: log, reserveFloor: reserveFloor}
}

// Run takes one snapshot and logs it. Negative debt and a bank balance below
// the reserve floor are logged as warnings; neither stops the service.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	totals, err := a.store.Totals(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to compute totals: %w", err)
	}
	bank, err := a.store.GetAccount(ctx, models.BankUsername)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read bank account: %w", err)
	}

	report := Report{
		TotalCash:    totals.TotalCash,
		BankCash:     bank.Cash,
		Accounts:     totals.Accounts,
		NegativeDebt: totals.NegativeDebt,
		BelowFloor:   bank.Cash.LessThan(a.reserveFloor),
	}

	a.log.WithFields(logrus.Fields{
		"total_cash": report.TotalCash.String(),
		"bank_cash":  report.BankCash.String(),
		"accounts":   report.Accounts,
	}).Info("Conservation audit snapshot")

	if report.NegativeDebt > 0 {
		a.log.Warnf("Audit found %d accounts with negative debt", report.NegativeDebt)
	}
	if report.BelowFloor {
		a.log.Warnf("Bank cash %s is below the reserve floor %s", report.BankCash, a.reserveFloor)
	}
	return report, nil
}
