package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbank/ledger-service/internal/config"
	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/repository"
)

var initialReserve = decimal.NewFromInt(50_000_000_000)

func newTestService(t *testing.T) (*Service, *repository.MemoryStore) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{JWTSecret: "test-secret"}
	store := repository.NewMemoryStore()
	svc := NewService(store, cfg, log, nil)
	require.NoError(t, svc.EnsureBankAccount(context.Background(), initialReserve))
	return svc, store
}

func mustRegister(t *testing.T, svc *Service, username, password string) {
	t.Helper()
	_, err := svc.Register(context.Background(), username, "", password)
	require.NoError(t, err)
}

// setBalances rewrites an account's balances directly through the store, so
// tests can arrange scenarios without going through fees.
func setBalances(t *testing.T, store *repository.MemoryStore, username string, cash, debt int64) {
	t.Helper()
	acct, err := store.GetAccount(context.Background(), username)
	require.NoError(t, err)
	err = store.ApplyUpdates(context.Background(), []repository.BalanceUpdate{{
		Username: username,
		Version:  acct.Version,
		Cash:     decimal.NewFromInt(cash),
		Debt:     decimal.NewFromInt(debt),
	}}, nil)
	require.NoError(t, err)
}

func cashOf(t *testing.T, store *repository.MemoryStore, username string) decimal.Decimal {
	t.Helper()
	acct, err := store.GetAccount(context.Background(), username)
	require.NoError(t, err)
	return acct.Cash
}

func debtOf(t *testing.T, store *repository.MemoryStore, username string) decimal.Decimal {
	t.Helper()
	acct, err := store.GetAccount(context.Background(), username)
	require.NoError(t, err)
	return acct.Debt
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "got %s, want %s", got, want)
}

func TestDepositAppliesFee(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	err := svc.Deposit(context.Background(), "alice", "pw", decimal.NewFromInt(1000))
	require.NoError(t, err)

	requireAmount(t, "999", cashOf(t, store, "alice"))
	wantBank := initialReserve.Add(decimal.NewFromInt(1))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(wantBank))
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	for _, amount := range []int64{0, -5} {
		err := svc.Deposit(context.Background(), "alice", "pw", decimal.NewFromInt(amount))
		require.ErrorIs(t, err, ErrInvalidAmount)
	}
	requireAmount(t, "0", cashOf(t, store, "alice"))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(initialReserve))
}

func TestDepositUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Deposit(context.Background(), "ghost", "pw", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInvalidUsername)
}

func TestDepositWrongPassword(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	err := svc.Deposit(context.Background(), "alice", "nope", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrIncorrectPassword)
	requireAmount(t, "0", cashOf(t, store, "alice"))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(initialReserve))
}

func TestTransferFeeSplit(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	mustRegister(t, svc, "bob", "pw")
	setBalances(t, store, "alice", 200, 0)
	setBalances(t, store, "bob", 50, 0)

	err := svc.Transfer(context.Background(), "alice", "pw", "bob", decimal.NewFromInt(100))
	require.NoError(t, err)

	requireAmount(t, "99", cashOf(t, store, "alice"))
	requireAmount(t, "149", cashOf(t, store, "bob"))
	wantBank := initialReserve.Add(decimal.NewFromInt(2))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(wantBank))
}

func TestTransferInsufficientBalance(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	mustRegister(t, svc, "bob", "pw")
	setBalances(t, store, "alice", 50, 0)

	err := svc.Transfer(context.Background(), "alice", "pw", "bob", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireAmount(t, "50", cashOf(t, store, "alice"))
	requireAmount(t, "0", cashOf(t, store, "bob"))
}

// The sufficiency check compares against amount, not amount+fee, so a sender
// holding exactly amount is allowed through and ends one unit negative.
func TestTransferExactBalanceEndsNegative(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	mustRegister(t, svc, "bob", "pw")
	setBalances(t, store, "alice", 100, 0)

	err := svc.Transfer(context.Background(), "alice", "pw", "bob", decimal.NewFromInt(100))
	require.NoError(t, err)
	requireAmount(t, "-1", cashOf(t, store, "alice"))
	requireAmount(t, "99", cashOf(t, store, "bob"))
}

func TestTransferUnknownRecipient(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	setBalances(t, store, "alice", 200, 0)

	err := svc.Transfer(context.Background(), "alice", "pw", "ghost", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrInvalidUsername)
	requireAmount(t, "200", cashOf(t, store, "alice"))
}

func TestTransferSameAccount(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	err := svc.Transfer(context.Background(), "alice", "pw", "alice", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrSameAccount)
}

// A transfer whose recipient is the bank must compose the recipient credit
// and the fee on the same account instead of writing it twice.
func TestTransferToBank(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	setBalances(t, store, "alice", 200, 0)

	err := svc.Transfer(context.Background(), "alice", "pw", models.BankUsername, decimal.NewFromInt(100))
	require.NoError(t, err)

	requireAmount(t, "99", cashOf(t, store, "alice"))
	wantBank := initialReserve.Add(decimal.NewFromInt(101)) // amount-1 credit plus 2 fee
	require.True(t, cashOf(t, store, models.BankUsername).Equal(wantBank))
}

func TestTakeLoan(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	err := svc.TakeLoan(context.Background(), "alice", "pw", decimal.NewFromInt(500))
	require.NoError(t, err)

	requireAmount(t, "500", cashOf(t, store, "alice"))
	requireAmount(t, "500", debtOf(t, store, "alice"))
	wantBank := initialReserve.Sub(decimal.NewFromInt(500))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(wantBank))
}

func TestTakeLoanDeniedByReserveFloor(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	// 50e9 - 40e9 = 10e9, below the 20e9 floor.
	err := svc.TakeLoan(context.Background(), "alice", "pw", decimal.NewFromInt(40_000_000_000))
	require.ErrorIs(t, err, ErrLoanDenied)

	requireAmount(t, "0", cashOf(t, store, "alice"))
	requireAmount(t, "0", debtOf(t, store, "alice"))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(initialReserve))
}

func TestPayLoanInsufficientCash(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	setBalances(t, store, "alice", 30, 100)

	err := svc.PayLoan(context.Background(), "alice", "pw", decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireAmount(t, "30", cashOf(t, store, "alice"))
	requireAmount(t, "100", debtOf(t, store, "alice"))
}

func TestPayLoanOverpayment(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	setBalances(t, store, "alice", 500, 100)

	err := svc.PayLoan(context.Background(), "alice", "pw", decimal.NewFromInt(150))
	require.ErrorIs(t, err, ErrOverpayment)
	requireAmount(t, "500", cashOf(t, store, "alice"))
	requireAmount(t, "100", debtOf(t, store, "alice"))
}

func TestPayLoan(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	setBalances(t, store, "alice", 500, 100)

	err := svc.PayLoan(context.Background(), "alice", "pw", decimal.NewFromInt(100))
	require.NoError(t, err)

	requireAmount(t, "400", cashOf(t, store, "alice"))
	requireAmount(t, "0", debtOf(t, store, "alice"))
	wantBank := initialReserve.Add(decimal.NewFromInt(100))
	require.True(t, cashOf(t, store, models.BankUsername).Equal(wantBank))
}

func TestGetBalance(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	setBalances(t, store, "alice", 123, 45)

	acct, err := svc.GetBalance(context.Background(), "alice", "pw")
	require.NoError(t, err)
	requireAmount(t, "123", acct.Cash)
	requireAmount(t, "45", acct.Debt)

	_, err = svc.GetBalance(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	_, err := svc.Register(context.Background(), "alice", "", "other")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterReservedBankUsername(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), models.BankUsername, "", "pw")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "pw")

	tokenString, err := svc.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	require.Equal(t, "alice", claims.Subject)

	_, err = svc.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestHistoryRecordsJournal(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	mustRegister(t, svc, "bob", "pw")
	setBalances(t, store, "alice", 1000, 0)

	require.NoError(t, svc.Deposit(context.Background(), "alice", "pw", decimal.NewFromInt(100)))
	require.NoError(t, svc.Transfer(context.Background(), "alice", "pw", "bob", decimal.NewFromInt(50)))

	txs, err := svc.History(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, models.TypeTransfer, txs[0].Type)
	require.Equal(t, "bob", txs[0].Counterparty)
	require.Equal(t, models.TypeDeposit, txs[1].Type)

	// The recipient sees the transfer too.
	txs, err = svc.History(context.Background(), "bob", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, models.TypeTransfer, txs[0].Type)
}

// Two concurrent full-balance transfers from the same sender: exactly one
// must commit, the other must fail the sufficiency check after retrying.
func TestConcurrentTransfersSingleWinner(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	mustRegister(t, svc, "bob", "pw")
	setBalances(t, store, "alice", 100, 0)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Transfer(context.Background(), "alice", "pw", "bob", decimal.NewFromInt(100))
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one transfer must win")
	require.Equal(t, 1, insufficient, "the other must fail the sufficiency check")

	requireAmount(t, "-1", cashOf(t, store, "alice"))
	requireAmount(t, "99", cashOf(t, store, "bob"))
}

// Total cash only moves by the full amount of deposits; transfers and loans
// redistribute without changing the sum.
func TestConservationAcrossOperations(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, "alice", "pw")
	mustRegister(t, svc, "bob", "pw")

	totalBefore := totalCash(t, store)

	require.NoError(t, svc.Deposit(context.Background(), "alice", "pw", decimal.NewFromInt(1000)))
	wantTotal := totalBefore.Add(decimal.NewFromInt(1000))
	require.True(t, totalCash(t, store).Equal(wantTotal), "deposit injects exactly the deposited amount")

	require.NoError(t, svc.Transfer(context.Background(), "alice", "pw", "bob", decimal.NewFromInt(100)))
	require.True(t, totalCash(t, store).Equal(wantTotal), "transfer conserves total cash")

	require.NoError(t, svc.TakeLoan(context.Background(), "bob", "pw", decimal.NewFromInt(500)))
	require.True(t, totalCash(t, store).Equal(wantTotal), "loan conserves total cash")

	require.NoError(t, svc.PayLoan(context.Background(), "bob", "pw", decimal.NewFromInt(200)))
	require.True(t, totalCash(t, store).Equal(wantTotal), "loan payment conserves total cash")

	totals, err := store.Totals(context.Background())
	require.NoError(t, err)
	require.Zero(t, totals.NegativeDebt, "no account may hold negative debt")
}

func totalCash(t *testing.T, store *repository.MemoryStore) decimal.Decimal {
	t.Helper()
	totals, err := store.Totals(context.Background())
	require.NoError(t, err)
	return totals.TotalCash
}
