package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"ledger-service/internal/domain"
	"ledger-service/internal/errors"
)

const (
	accountNumberDigits   = 10
	accountNumberAttempts = 3
	maxHolderNameLength   = 100
)

type AccountService struct {
	store          domain.Store
	generateNumber func() string
	logger         *slog.Logger
}

type AccountOption func(*AccountService)

// WithAccountNumbers replaces the random account number generator.
func WithAccountNumbers(next func() string) AccountOption {
	return func(s *AccountService) { s.generateNumber = next }
}

func NewAccountService(store domain.Store, logger *slog.Logger, opts ...AccountOption) *AccountService {
	s := &AccountService{
		store:          store,
		generateNumber: randomAccountNumber,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.store.Accounts().ListAccounts(ctx)
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	if id <= 0 {
		return nil, errors.ErrInvalidID
	}
	return s.store.Accounts().GetAccount(ctx, id)
}

// CreateAccount assigns a random account number, retrying on collision.
func (s *AccountService) CreateAccount(ctx context.Context, holderName string) (*domain.Account, error) {
	name, err := validateHolderName(holderName)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Creating account", "holder_name", name)

	var lastErr error
	for attempt := 1; attempt <= accountNumberAttempts; attempt++ {
		account := &domain.Account{
			AccountNumber: s.generateNumber(),
			HolderName:    name,
		}
		err := s.store.Accounts().CreateAccount(ctx, account)
		if err == nil {
			s.logger.Info("Account created successfully", "account_id", account.ID)
			return account, nil
		}
		if errors.AsAppError(err).Code != errors.DuplicateAccount {
			return nil, err
		}
		s.logger.Warn("Account number collision", "attempt", attempt)
		lastErr = err
	}
	return nil, lastErr
}

func (s *AccountService) UpdateAccount(ctx context.Context, id int64, holderName string) (*domain.Account, error) {
	if id <= 0 {
		return nil, errors.ErrInvalidID
	}
	name, err := validateHolderName(holderName)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{ID: id, HolderName: name}
	if err := s.store.Accounts().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.ErrInvalidID
	}
	return s.store.Accounts().DeleteAccount(ctx, id)
}

func validateHolderName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.ErrHolderNameRequired
	}
	if utf8.RuneCountInString(name) > maxHolderNameLength {
		return "", errors.ErrHolderNameTooLong
	}
	return name, nil
}

func randomAccountNumber() string {
	var b strings.Builder
	b.Grow(accountNumberDigits)
	for range accountNumberDigits {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}
