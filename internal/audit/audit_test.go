package audit

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/repository"
)

func TestAuditorSnapshot(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreateAccount(context.Background(), &models.Account{
		Username: models.BankUsername, PasswordHash: "hash",
		Cash: decimal.NewFromInt(5000), Debt: decimal.Zero,
	}))
	require.NoError(t, store.CreateAccount(context.Background(), &models.Account{
		Username: "alice", PasswordHash: "hash",
		Cash: decimal.NewFromInt(300), Debt: decimal.NewFromInt(100),
	}))

	log := logrus.New()
	log.SetOutput(io.Discard)
	a := NewAuditor(store, log, decimal.NewFromInt(1000))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.TotalCash.Equal(decimal.NewFromInt(5300)))
	require.True(t, report.BankCash.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, int64(2), report.Accounts)
	require.Zero(t, report.NegativeDebt)
	require.False(t, report.BelowFloor)
}

func TestAuditorFlagsLowReserve(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreateAccount(context.Background(), &models.Account{
		Username: models.BankUsername, PasswordHash: "hash",
		Cash: decimal.NewFromInt(500), Debt: decimal.Zero,
	}))

	log := logrus.New()
	log.SetOutput(io.Discard)
	a := NewAuditor(store, log, decimal.NewFromInt(1000))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.BelowFloor)
}

func TestAuditorFailsWithoutBankAccount(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	a := NewAuditor(repository.NewMemoryStore(), log, decimal.NewFromInt(1000))

	_, err := a.Run(context.Background())
	require.Error(t, err)
}
