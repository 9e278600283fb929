package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-service/internal/errors"
)

// TransactionType is the closed set of ledger movements.
type TransactionType string

const (
	Deposit    TransactionType = "DEPOSIT"
	Withdrawal TransactionType = "WITHDRAWAL"
)

// ParseTransactionType normalizes raw to upper case and matches it against
// the known types.
func ParseTransactionType(raw string) (TransactionType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return "", errors.ErrTypeRequired
	}

	switch t := TransactionType(normalized); t {
	case Deposit, Withdrawal:
		return t, nil
	default:
		return "", errors.ErrInvalidType.WithDetails("got " + raw)
	}
}

type Transaction struct {
	ID        int64           `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	AccountID int64           `json:"accountId"`

	// Account is only populated by point lookups.
	Account *Account `json:"accountOwner,omitempty"`
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	TransactionExists(ctx context.Context, id int64) (bool, error)

	ListSummaries(ctx context.Context) ([]TransactionSummary, error)
	ListWithAccountByType(ctx context.Context, t TransactionType) ([]TransactionWithAccount, error)
	ListSummariesByAmountGreaterThan(ctx context.Context, amount decimal.Decimal) ([]TransactionSummary, error)
	ListWithAccountByAmountGreaterThan(ctx context.Context, amount decimal.Decimal) ([]TransactionWithAccount, error)
	PageSummaries(ctx context.Context, req PageRequest) ([]TransactionSummary, int64, error)
	Dashboard(ctx context.Context) (Dashboard, error)
}

// Store groups the repositories behind a single unit of work.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	WithTransaction(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}
