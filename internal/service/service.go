package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerbank/ledger-service/internal/config"
	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/repository"
)

// ReserveFloor is the minimum cash the bank must retain after granting a loan.
var ReserveFloor = decimal.NewFromInt(20_000_000_000)

var (
	depositFeeRate = decimal.NewFromFloat(0.001)
	one            = decimal.NewFromInt(1)
	two            = decimal.NewFromInt(2)
)

// Attempts at committing one operation before giving up on version conflicts.
const commitRetries = 8

// Notifier delivers best-effort user notifications after committed loan
// events. Implementations must not fail the calling operation.
type Notifier interface {
	LoanGranted(username, email string, amount, newDebt decimal.Decimal)
	LoanRepaid(username, email string, amount, remainingDebt decimal.Decimal)
}

// Service is the ledger engine: it verifies credentials, enforces the fee and
// conservation rules, and applies every multi-account balance change as one
// atomic, versioned commit. It holds no balance state between calls.
type Service struct {
	store    AccountStore
	verifier *Verifier
	config   *config.Config
	log      *logrus.Logger
	notifier Notifier
}

// NewService initializes a new service. notifier may be nil.
func NewService(store AccountStore, cfg *config.Config, log *logrus.Logger, notifier Notifier) *Service {
	return &Service{
		store:    store,
		verifier: NewVerifier(store),
		config:   cfg,
		log:      log,
		notifier: notifier,
	}
}

// Register creates a new account with zero balances and a hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	if username == models.BankUsername {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Cash:         decimal.Zero,
		Debt:         decimal.Zero,
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.log.Infof("Account registered: %s", username)
	return acct, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if _, err := s.verifier.Verify(ctx, username, password); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", username)
	return tokenString, nil
}

// VerifyCredentials checks a username/password pair without mutating anything
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) error {
	_, err := s.verifier.Verify(ctx, username, password)
	return err
}

// Deposit credits the account with amount minus the 0.1% fee, which goes to
// the bank. Both balance changes commit atomically.
func (s *Service) Deposit(ctx context.Context, username, password string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, err := s.verifier.Verify(ctx, username, password); err != nil {
		return err
	}

	err := s.commit(ctx, func() error {
		user, err := s.readAccount(ctx, username)
		if err != nil {
			return err
		}
		bank, err := s.readBank(ctx)
		if err != nil {
			return err
		}

		fee := amount.Mul(depositFeeRate)
		accts := accountSet(user, bank)
		accts[username].Cash = accts[username].Cash.Add(amount.Sub(fee))
		accts[models.BankUsername].Cash = accts[models.BankUsername].Cash.Add(fee)

		journal := []models.Transaction{{
			ID:        uuid.New(),
			Type:      models.TypeDeposit,
			Username:  username,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}}
		return s.apply(ctx, accts, journal)
	})
	if err != nil {
		return err
	}

	s.log.Infof("Deposit applied: user=%s amount=%s", username, amount)
	return nil
}

// Transfer moves amount from the sender to the recipient with a flat 2-unit
// fee: the sender pays amount+1, the recipient receives amount-1, the bank
// collects 2. The sufficiency check deliberately compares against amount
// alone, so a sender holding exactly amount ends one unit negative.
func (s *Service) Transfer(ctx context.Context, username, password, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to == username {
		return ErrSameAccount
	}
	if _, err := s.verifier.Verify(ctx, username, password); err != nil {
		return err
	}

	err := s.commit(ctx, func() error {
		sender, err := s.readAccount(ctx, username)
		if err != nil {
			return err
		}
		if sender.Cash.LessThan(amount) {
			return ErrInsufficientBalance
		}
		recipient, err := s.readAccount(ctx, to)
		if err != nil {
			return err
		}
		bank, err := s.readBank(ctx)
		if err != nil {
			return err
		}

		accts := accountSet(sender, recipient, bank)
		accts[username].Cash = accts[username].Cash.Sub(amount.Add(one))
		accts[to].Cash = accts[to].Cash.Add(amount.Sub(one))
		accts[models.BankUsername].Cash = accts[models.BankUsername].Cash.Add(two)

		journal := []models.Transaction{{
			ID:           uuid.New(),
			Type:         models.TypeTransfer,
			Username:     username,
			Counterparty: to,
			Amount:       amount,
			CreatedAt:    time.Now().UTC(),
		}}
		return s.apply(ctx, accts, journal)
	})
	if err != nil {
		return err
	}

	s.log.Infof("Transfer applied: from=%s to=%s amount=%s", username, to, amount)
	return nil
}

// TakeLoan moves amount from the bank to the account and records it as debt.
// Denied when the bank would drop below its reserve floor.
func (s *Service) TakeLoan(ctx context.Context, username, password string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acct, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return err
	}

	var newDebt decimal.Decimal
	err = s.commit(ctx, func() error {
		user, err := s.readAccount(ctx, username)
		if err != nil {
			return err
		}
		bank, err := s.readBank(ctx)
		if err != nil {
			return err
		}
		if bank.Cash.Sub(amount).LessThan(ReserveFloor) {
			return ErrLoanDenied
		}

		accts := accountSet(user, bank)
		accts[username].Cash = accts[username].Cash.Add(amount)
		accts[username].Debt = accts[username].Debt.Add(amount)
		accts[models.BankUsername].Cash = accts[models.BankUsername].Cash.Sub(amount)
		newDebt = accts[username].Debt

		journal := []models.Transaction{{
			ID:           uuid.New(),
			Type:         models.TypeLoan,
			Username:     username,
			Counterparty: models.BankUsername,
			Amount:       amount,
			CreatedAt:    time.Now().UTC(),
		}}
		return s.apply(ctx, accts, journal)
	})
	if err != nil {
		return err
	}

	s.log.Infof("Loan granted: user=%s amount=%s", username, amount)
	if s.notifier != nil {
		go s.notifier.LoanGranted(username, acct.Email, amount, newDebt)
	}
	return nil
}

// PayLoan pays amount of the account's debt back to the bank. Rejected when
// the account cannot cover the payment or the payment exceeds the debt.
func (s *Service) PayLoan(ctx context.Context, username, password string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acct, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return err
	}

	var remaining decimal.Decimal
	err = s.commit(ctx, func() error {
		user, err := s.readAccount(ctx, username)
		if err != nil {
			return err
		}
		newCash := user.Cash.Sub(amount)
		newDebt := user.Debt.Sub(amount)
		if newCash.IsNegative() {
			return ErrInsufficientBalance
		}
		if newDebt.IsNegative() {
			return ErrOverpayment
		}
		bank, err := s.readBank(ctx)
		if err != nil {
			return err
		}

		accts := accountSet(user, bank)
		accts[username].Cash = newCash
		accts[username].Debt = newDebt
		accts[models.BankUsername].Cash = accts[models.BankUsername].Cash.Add(amount)
		remaining = newDebt

		journal := []models.Transaction{{
			ID:           uuid.New(),
			Type:         models.TypeLoanPayment,
			Username:     username,
			Counterparty: models.BankUsername,
			Amount:       amount,
			CreatedAt:    time.Now().UTC(),
		}}
		return s.apply(ctx, accts, journal)
	})
	if err != nil {
		return err
	}

	s.log.Infof("Loan payment applied: user=%s amount=%s", username, amount)
	if s.notifier != nil {
		go s.notifier.LoanRepaid(username, acct.Email, amount, remaining)
	}
	return nil
}

// GetBalance returns the account's current cash and debt. Read-only.
func (s *Service) GetBalance(ctx context.Context, username, password string) (*models.Account, error) {
	return s.verifier.Verify(ctx, username, password)
}

// History returns the journal rows involving the username, newest first.
// Authentication happens upstream (JWT middleware).
func (s *Service) History(ctx context.Context, username string, limit int) ([]models.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return txs, nil
}

// EnsureBankAccount creates the reserved bank account with its initial
// reserve if it does not exist yet. Called once at startup; a ledger without
// the bank account cannot serve any operation.
func (s *Service) EnsureBankAccount(ctx context.Context, initialReserve decimal.Decimal) error {
	_, err := s.store.GetAccount(ctx, models.BankUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check bank account: %w", err)
	}

	// The bank account is never logged into; give it an unguessable password.
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash bank password: %w", err)
	}
	bank := &models.Account{
		Username:     models.BankUsername,
		PasswordHash: string(hash),
		Cash:         initialReserve,
		Debt:         decimal.Zero,
	}
	if err := s.store.CreateAccount(ctx, bank); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil
		}
		return fmt.Errorf("failed to create bank account: %w", err)
	}

	s.log.Infof("Bank account seeded with initial reserve %s", initialReserve)
	return nil
}

// commit runs apply, retrying with jittered exponential backoff while it
// fails on a version conflict. Any other error aborts immediately.
func (s *Service) commit(ctx context.Context, apply func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond

	err := backoff.Retry(func() error {
		err := apply()
		if err == nil || errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, commitRetries), ctx))

	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("%w: too many concurrent updates", ErrStoreUnavailable)
	}
	return err
}

// apply submits the mutated account set and journal as one atomic commit.
func (s *Service) apply(ctx context.Context, accts map[string]*models.Account, journal []models.Transaction) error {
	updates := make([]repository.BalanceUpdate, 0, len(accts))
	for _, a := range accts {
		updates = append(updates, repository.BalanceUpdate{
			Username: a.Username,
			Version:  a.Version,
			Cash:     a.Cash,
			Debt:     a.Debt,
		})
	}
	err := s.store.ApplyUpdates(ctx, updates, journal)
	if err == nil || errors.Is(err, repository.ErrVersionConflict) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// readAccount fetches a fresh copy of the account, mapping a missing row to
// ErrInvalidUsername.
func (s *Service) readAccount(ctx context.Context, username string) (*models.Account, error) {
	acct, err := s.store.GetAccount(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidUsername
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return acct, nil
}

// readBank fetches the bank account. Its absence is a configuration failure,
// not a per-request rejection.
func (s *Service) readBank(ctx context.Context) (*models.Account, error) {
	acct, err := s.store.GetAccount(ctx, models.BankUsername)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: bank account missing", ErrStoreUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return acct, nil
}

// accountSet keys accounts by username so balance deltas compose even when
// two roles resolve to the same account (e.g. a transfer to the bank).
func accountSet(accts ...*models.Account) map[string]*models.Account {
	set := make(map[string]*models.Account, len(accts))
	for _, a := range accts {
		if _, ok := set[a.Username]; !ok {
			set[a.Username] = a
		}
	}
	return set
}
