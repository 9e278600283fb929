package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ledger-service/internal/cache"
	"ledger-service/internal/domain"
	"ledger-service/internal/errors"
	"ledger-service/internal/events"
)

type TransactionService struct {
	store       domain.Store
	publisher   events.Publisher
	cache       cache.DashboardCache
	maxPageSize int
	now         func() time.Time
	logger      *slog.Logger
}

type TransactionOption func(*TransactionService)

func WithPublisher(p events.Publisher) TransactionOption {
	return func(s *TransactionService) { s.publisher = p }
}

func WithDashboardCache(c cache.DashboardCache) TransactionOption {
	return func(s *TransactionService) { s.cache = c }
}

// WithMaxPageSize bounds PageSummaries requests. Zero disables the bound.
func WithMaxPageSize(n int) TransactionOption {
	return func(s *TransactionService) { s.maxPageSize = n }
}

func WithClock(now func() time.Time) TransactionOption {
	return func(s *TransactionService) { s.now = now }
}

func NewTransactionService(store domain.Store, logger *slog.Logger, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		store:       store,
		publisher:   events.NoopPublisher{},
		cache:       cache.Noop{},
		maxPageSize: 100,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransactionRequest carries the mutable fields of a transaction.
type TransactionRequest struct {
	Amount    decimal.Decimal
	Type      string
	AccountID *int64
}

func (r TransactionRequest) validate() (domain.TransactionType, int64, error) {
	if !r.Amount.IsPositive() {
		return "", 0, errors.ErrInvalidAmount
	}
	t, err := domain.ParseTransactionType(r.Type)
	if err != nil {
		return "", 0, err
	}
	if r.AccountID == nil {
		return "", 0, errors.ErrAccountIDRequired
	}
	return t, *r.AccountID, nil
}

func (s *TransactionService) ListSummaries(ctx context.Context) ([]domain.TransactionSummary, error) {
	return s.store.Transactions().ListSummaries(ctx)
}

// ListByType matches rawType case-insensitively against the transaction types.
func (s *TransactionService) ListByType(ctx context.Context, rawType string) ([]domain.TransactionWithAccount, error) {
	t, err := domain.ParseTransactionType(rawType)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Listing transactions by type", "type", t)
	return s.store.Transactions().ListWithAccountByType(ctx, t)
}

// ListByAmountGreaterThan returns transactions with amount strictly above
// amount, projected into the shape named by selector. A nil amount is
// rejected.
func (s *TransactionService) ListByAmountGreaterThan(ctx context.Context, amount *decimal.Decimal, selector string) (domain.ProjectionResult, error) {
	if amount == nil || amount.IsNegative() {
		return domain.ProjectionResult{}, errors.ErrInvalidAmountFilter
	}
	shape, err := domain.ParseShape(selector)
	if err != nil {
		return domain.ProjectionResult{}, err
	}

	repo := s.store.Transactions()
	result := domain.ProjectionResult{Shape: shape}
	switch shape {
	case domain.ShapeSummary:
		result.Summaries, err = repo.ListSummariesByAmountGreaterThan(ctx, *amount)
	case domain.ShapeWithAccount:
		result.WithAccount, err = repo.ListWithAccountByAmountGreaterThan(ctx, *amount)
	default:
		return domain.ProjectionResult{}, errors.ErrInvalidProjection.WithDetails(fmt.Sprintf("got %q", selector))
	}
	if err != nil {
		return domain.ProjectionResult{}, err
	}
	return result, nil
}

func (s *TransactionService) PageSummaries(ctx context.Context, req domain.PageRequest) (domain.PagedResponse[[]domain.TransactionSummary], error) {
	var out domain.PagedResponse[[]domain.TransactionSummary]
	req, err := req.Normalize(s.maxPageSize)
	if err != nil {
		return out, err
	}

	items, total, err := s.store.Transactions().PageSummaries(ctx, req)
	if err != nil {
		return out, err
	}

	out.Items = items
	out.Pagination = domain.NewPagination(total, req.Size, req.Window().Page)
	return out, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	if id <= 0 {
		return nil, errors.ErrInvalidID
	}
	return s.store.Transactions().GetTransaction(ctx, id)
}

func (s *TransactionService) CreateTransaction(ctx context.Context, req TransactionRequest) (*domain.Transaction, error) {
	t, accountID, err := req.validate()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Creating transaction", "account_id", accountID, "amount", req.Amount, "type", t)

	var created *domain.Transaction
	err = s.store.WithTransaction(ctx, func(store domain.Store) error {
		owner, err := store.Accounts().GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		tx := &domain.Transaction{
			Amount:    req.Amount,
			Type:      t,
			Timestamp: s.now().UTC(),
			AccountID: accountID,
		}
		if err := store.Transactions().CreateTransaction(ctx, tx); err != nil {
			return err
		}
		tx.Account = owner
		created = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.TransactionCreated, created)
	return created, nil
}

// UpdateTransaction replaces amount, type and account. The timestamp is kept.
func (s *TransactionService) UpdateTransaction(ctx context.Context, id int64, req TransactionRequest) (*domain.Transaction, error) {
	if id <= 0 {
		return nil, errors.ErrInvalidID
	}
	t, accountID, err := req.validate()
	if err != nil {
		return nil, err
	}

	var updated *domain.Transaction
	err = s.store.WithTransaction(ctx, func(store domain.Store) error {
		exists, err := store.Transactions().TransactionExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return errors.ErrTransactionNotFound
		}

		owner, err := store.Accounts().GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		tx := &domain.Transaction{
			ID:        id,
			Amount:    req.Amount,
			Type:      t,
			AccountID: accountID,
		}
		if err := store.Transactions().UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		tx.Account = owner
		updated = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.TransactionUpdated, updated)
	return updated, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.ErrInvalidID
	}

	var deleted *domain.Transaction
	err := s.store.WithTransaction(ctx, func(store domain.Store) error {
		tx, err := store.Transactions().GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := store.Transactions().DeleteTransaction(ctx, id); err != nil {
			return err
		}
		deleted = tx
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, events.TransactionDeleted, deleted)
	return nil
}

// afterCommit drops the cached dashboard and publishes the change. Failures
// are logged only; the mutation is already committed.
func (s *TransactionService) afterCommit(ctx context.Context, key events.RoutingKey, tx *domain.Transaction) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate dashboard cache", "error", err)
	}
	if err := s.publisher.Publish(ctx, key, events.NewTransactionEvent(tx, s.now())); err != nil {
		s.logger.Warn("Failed to publish transaction event",
			"routing_key", key,
			"transaction_id", tx.ID,
			"error", err)
	}
	s.logger.Info("Transaction change committed", "routing_key", key, "transaction_id", tx.ID)
}
