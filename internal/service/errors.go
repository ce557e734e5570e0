package service

import "errors"

// Domain errors returned by ledger operations. Handlers map these onto the
// wire status codes; none of them indicate a bug or a half-applied mutation.
var (
	// ErrInvalidUsername means no account exists for the claimed username
	// (or a transfer recipient does not exist).
	ErrInvalidUsername = errors.New("invalid username")

	// ErrUsernameTaken means registration hit an existing or reserved username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrIncorrectPassword means the account exists but the password is wrong.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrInvalidAmount rejects non-positive amounts before any store access.
	ErrInvalidAmount = errors.New("amount must be greater than 0")

	// ErrInsufficientBalance means the account cannot cover the operation.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSameAccount rejects transfers where sender and recipient match.
	ErrSameAccount = errors.New("sender and recipient are the same account")

	// ErrLoanDenied means granting the loan would push the bank reserve
	// below its floor.
	ErrLoanDenied = errors.New("loan denied: bank reserve too low")

	// ErrOverpayment means the payment exceeds the outstanding debt.
	ErrOverpayment = errors.New("payment exceeds outstanding debt")

	// ErrStoreUnavailable covers store connectivity failures and exhausted
	// commit retries. Callers may retry; whether the mutation landed is
	// unknown (no idempotency keys are tracked).
	ErrStoreUnavailable = errors.New("account store unavailable")
)
