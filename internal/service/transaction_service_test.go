package service

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"ledger-service/internal/domain"
	"ledger-service/internal/errors"
	"ledger-service/internal/events"
	"ledger-service/internal/repository/memory"
)

type TransactionServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	publisher *recordingPublisher
	cache     *memoryCache
	now       time.Time
	accounts  *AccountService
	service   *TransactionService
}

func (s *TransactionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.publisher = &recordingPublisher{}
	s.cache = &memoryCache{}
	s.now = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	logger := discardLogger()
	s.accounts = NewAccountService(s.store, logger)
	s.service = NewTransactionService(s.store, logger,
		WithPublisher(s.publisher),
		WithDashboardCache(s.cache),
		WithClock(fixedClock(s.now)),
		WithMaxPageSize(50),
	)
}

func (s *TransactionServiceSuite) account(holder string) *domain.Account {
	account, err := s.accounts.CreateAccount(s.ctx, holder)
	s.Require().NoError(err)
	return account
}

func (s *TransactionServiceSuite) create(accountID int64, amount string, t string) *domain.Transaction {
	tx, err := s.service.CreateTransaction(s.ctx, TransactionRequest{
		Amount:    decimal.RequireFromString(amount),
		Type:      t,
		AccountID: int64Ptr(accountID),
	})
	s.Require().NoError(err)
	return tx
}

func (s *TransactionServiceSuite) TestCreateThenGetRoundTrip() {
	account := s.account("Round Trip")
	before := s.now

	created := s.create(account.ID, "100.00", "DEPOSIT")

	got, err := s.service.GetTransaction(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(got.Amount.Equal(decimal.RequireFromString("100.00")))
	s.Equal(domain.Deposit, got.Type)
	s.Equal(account.ID, got.AccountID)
	s.False(got.Timestamp.IsZero())
	s.False(got.Timestamp.Before(before))
	s.Require().NotNil(got.Account)
	s.Equal("Round Trip", got.Account.HolderName)
}

func (s *TransactionServiceSuite) TestAliceWithdrawalScenario() {
	alice := s.account("Alice")
	s.create(alice.ID, "50", "WITHDRAWAL")

	rows, err := s.service.ListByType(s.ctx, "withdrawal")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("Alice", rows[0].Account.HolderName)
	s.Equal(alice.AccountNumber, rows[0].Account.AccountNumber)
}

func (s *TransactionServiceSuite) TestListByTypeIsCaseInsensitive() {
	account := s.account("Bob")
	s.create(account.ID, "10", "DEPOSIT")
	s.create(account.ID, "20", "deposit")
	s.create(account.ID, "30", "WITHDRAWAL")

	lower, err := s.service.ListByType(s.ctx, "deposit")
	s.Require().NoError(err)
	upper, err := s.service.ListByType(s.ctx, "DEPOSIT")
	s.Require().NoError(err)
	s.Len(lower, 2)
	s.Equal(lower, upper)
}

func (s *TransactionServiceSuite) TestListByTypeRejectsBlankAndUnknown() {
	_, err := s.service.ListByType(s.ctx, "  ")
	s.ErrorIs(err, errors.ErrTypeRequired)

	_, err = s.service.ListByType(s.ctx, "transfer")
	s.ErrorIs(err, errors.ErrInvalidType)
	s.Equal(400, errors.AsAppError(err).HTTPStatus())
}

func (s *TransactionServiceSuite) TestListByAmountGreaterThanIsStrict() {
	account := s.account("Carol")
	for _, amount := range []string{"5", "10", "10.01", "50"} {
		s.create(account.ID, amount, "DEPOSIT")
	}

	threshold := decimal.NewFromInt(10)
	for _, selector := range []string{"summary", "with_account"} {
		result, err := s.service.ListByAmountGreaterThan(s.ctx, &threshold, selector)
		s.Require().NoError(err)
		s.Equal(2, result.Len(), selector)

		switch result.Shape {
		case domain.ShapeSummary:
			for _, row := range result.Summaries {
				s.True(row.Amount.GreaterThan(threshold))
			}
		case domain.ShapeWithAccount:
			for _, row := range result.WithAccount {
				s.True(row.Amount.GreaterThan(threshold))
				s.Equal("Carol", row.Account.HolderName)
			}
		default:
			s.Fail("unexpected shape", result.Shape.String())
		}
	}

	zero := decimal.Zero
	all, err := s.service.ListByAmountGreaterThan(s.ctx, &zero, "SUMMARY")
	s.Require().NoError(err)
	s.Equal(4, all.Len())
}

func (s *TransactionServiceSuite) TestListByAmountGreaterThanRejectsBadInput() {
	negative := decimal.NewFromInt(-1)
	_, err := s.service.ListByAmountGreaterThan(s.ctx, &negative, "summary")
	s.ErrorIs(err, errors.ErrInvalidAmountFilter)

	_, err = s.service.ListByAmountGreaterThan(s.ctx, nil, "summary")
	s.ErrorIs(err, errors.ErrInvalidAmountFilter)

	amount := decimal.NewFromInt(1)
	_, err = s.service.ListByAmountGreaterThan(s.ctx, &amount, "bogus")
	s.ErrorIs(err, errors.ErrInvalidProjection)
	s.Equal(400, errors.AsAppError(err).HTTPStatus())
}

func (s *TransactionServiceSuite) TestWithAccountProjectionFailsOnDanglingOwner() {
	s.store.InsertOrphan(domain.Transaction{
		Amount:    decimal.NewFromInt(99),
		Type:      domain.Deposit,
		Timestamp: s.now,
		AccountID: 404,
	})

	amount := decimal.Zero
	_, err := s.service.ListByAmountGreaterThan(s.ctx, &amount, "with_account")
	s.ErrorIs(err, errors.ErrIntegrityViolation)
	s.Equal(500, errors.AsAppError(err).HTTPStatus())

	summaries, err := s.service.ListByAmountGreaterThan(s.ctx, &amount, "summary")
	s.Require().NoError(err)
	s.Equal(1, summaries.Len())
}

func (s *TransactionServiceSuite) TestPageSummariesScenario() {
	account := s.account("Dave")
	for _, amount := range []string{"30", "10", "20"} {
		s.create(account.ID, amount, "DEPOSIT")
	}

	page, err := s.service.PageSummaries(s.ctx, domain.PageRequest{
		Page: 1, Size: 2, SortBy: domain.SortByAmount, Direction: domain.Ascending,
	})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 2)
	s.True(page.Items[0].Amount.Equal(decimal.NewFromInt(10)))
	s.True(page.Items[1].Amount.Equal(decimal.NewFromInt(20)))
	s.Equal(domain.Pagination{TotalElements: 3, CurrentPage: 1, PageSize: 2, TotalPages: 2}, page.Pagination)

	last, err := s.service.PageSummaries(s.ctx, domain.PageRequest{
		Page: 2, Size: 2, SortBy: domain.SortByAmount, Direction: domain.Ascending,
	})
	s.Require().NoError(err)
	s.Require().Len(last.Items, 1)
	s.Equal(2, last.Pagination.CurrentPage)
	s.Equal(2, last.Pagination.PageSize)
}

func (s *TransactionServiceSuite) TestPageSummariesClampsPageBelowOne() {
	account := s.account("Erin")
	s.create(account.ID, "1", "DEPOSIT")

	page, err := s.service.PageSummaries(s.ctx, domain.PageRequest{
		Page: 0, Size: 10, SortBy: domain.SortByTimestamp, Direction: domain.Descending,
	})
	s.Require().NoError(err)
	s.Len(page.Items, 1)
	s.Equal(1, page.Pagination.CurrentPage)
}

func (s *TransactionServiceSuite) TestPageSummariesEmptyAndInvalid() {
	page, err := s.service.PageSummaries(s.ctx, domain.PageRequest{
		Page: 1, Size: 10, SortBy: domain.SortByTimestamp, Direction: domain.Descending,
	})
	s.Require().NoError(err)
	s.NotNil(page.Items)
	s.Empty(page.Items)
	s.Equal(0, page.Pagination.TotalPages)

	_, err = s.service.PageSummaries(s.ctx, domain.PageRequest{Page: 1, Size: 51, SortBy: domain.SortByAmount, Direction: domain.Ascending})
	s.Equal(errors.InvalidPage, errors.AsAppError(err).Code)

	_, err = s.service.PageSummaries(s.ctx, domain.PageRequest{Page: 1, Size: 5, SortBy: "holder", Direction: domain.Ascending})
	s.ErrorIs(err, errors.ErrInvalidSortField)
}

func (s *TransactionServiceSuite) TestPageSummariesDefaultsToNewestFirst() {
	account := s.account("Gail")
	tick := s.now
	svc := NewTransactionService(s.store, discardLogger(), WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))
	var ids []int64
	for _, amount := range []string{"1", "2", "3"} {
		tx, err := svc.CreateTransaction(s.ctx, TransactionRequest{
			Amount:    decimal.RequireFromString(amount),
			Type:      "DEPOSIT",
			AccountID: int64Ptr(account.ID),
		})
		s.Require().NoError(err)
		ids = append(ids, tx.ID)
	}

	page, err := s.service.PageSummaries(s.ctx, domain.PageRequest{Page: 1, Size: 2})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 2)
	s.Equal(ids[2], page.Items[0].ID)
	s.Equal(ids[1], page.Items[1].ID)

	page, err = s.service.PageSummaries(s.ctx, domain.PageRequest{Page: 1, Size: 3, SortBy: "AMOUNT", Direction: "asc"})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 3)
	s.Equal(ids[0], page.Items[0].ID)
	s.Equal(ids[2], page.Items[2].ID)
}

func (s *TransactionServiceSuite) TestPageSummariesRejectsPageBeyondAddressableRange() {
	account := s.account("Hank")
	s.create(account.ID, "1", "DEPOSIT")

	_, err := s.service.PageSummaries(s.ctx, domain.PageRequest{Page: math.MaxInt64 / 5, Size: 10})
	s.Equal(errors.InvalidPage, errors.AsAppError(err).Code)
}

func (s *TransactionServiceSuite) TestCreateValidation() {
	account := s.account("Frank")

	_, err := s.service.CreateTransaction(s.ctx, TransactionRequest{Amount: decimal.Zero, Type: "DEPOSIT", AccountID: int64Ptr(account.ID)})
	s.ErrorIs(err, errors.ErrInvalidAmount)

	_, err = s.service.CreateTransaction(s.ctx, TransactionRequest{Amount: decimal.NewFromInt(1), Type: "LOAN", AccountID: int64Ptr(account.ID)})
	s.ErrorIs(err, errors.ErrInvalidType)

	_, err = s.service.CreateTransaction(s.ctx, TransactionRequest{Amount: decimal.NewFromInt(1), Type: "DEPOSIT"})
	s.ErrorIs(err, errors.ErrAccountIDRequired)

	_, err = s.service.CreateTransaction(s.ctx, TransactionRequest{Amount: decimal.NewFromInt(1), Type: "DEPOSIT", AccountID: int64Ptr(9999)})
	s.ErrorIs(err, errors.ErrAccountNotFound)

	s.Empty(s.publisher.keys())
}

func (s *TransactionServiceSuite) TestUpdateKeepsTimestampAndMovesAccount() {
	alice := s.account("Alice")
	bob := s.account("Bob")
	created := s.create(alice.ID, "10", "DEPOSIT")

	s.service.now = fixedClock(s.now.Add(time.Hour))
	updated, err := s.service.UpdateTransaction(s.ctx, created.ID, TransactionRequest{
		Amount:    decimal.NewFromInt(25),
		Type:      "withdrawal",
		AccountID: int64Ptr(bob.ID),
	})
	s.Require().NoError(err)
	s.Equal(created.Timestamp, updated.Timestamp)
	s.Equal(domain.Withdrawal, updated.Type)
	s.Equal("Bob", updated.Account.HolderName)

	_, err = s.service.UpdateTransaction(s.ctx, 12345, TransactionRequest{
		Amount: decimal.NewFromInt(1), Type: "DEPOSIT", AccountID: int64Ptr(bob.ID),
	})
	s.ErrorIs(err, errors.ErrTransactionNotFound)
}

func (s *TransactionServiceSuite) TestDeleteThenLookupIsNotFound() {
	account := s.account("Gina")
	created := s.create(account.ID, "10", "DEPOSIT")

	s.Require().NoError(s.service.DeleteTransaction(s.ctx, created.ID))

	_, err := s.service.GetTransaction(s.ctx, created.ID)
	s.ErrorIs(err, errors.ErrTransactionNotFound)
	s.Equal(404, errors.AsAppError(err).HTTPStatus())

	err = s.service.DeleteTransaction(s.ctx, created.ID)
	s.ErrorIs(err, errors.ErrTransactionNotFound)

	s.Equal([]events.RoutingKey{events.TransactionCreated, events.TransactionDeleted}, s.publisher.keys())
}

func (s *TransactionServiceSuite) TestMutationsInvalidateDashboardCache() {
	account := s.account("Hank")
	s.create(account.ID, "10", "DEPOSIT")
	s.Equal(1, s.cache.invalidated)
}

func (s *TransactionServiceSuite) TestPublishFailureDoesNotFailMutation() {
	s.publisher.err = stderrors.New("broker down")
	account := s.account("Ivy")

	created := s.create(account.ID, "10", "DEPOSIT")

	got, err := s.service.GetTransaction(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
}

func (s *TransactionServiceSuite) TestStoreFailureRollsBack() {
	account := s.account("Jack")
	s.create(account.ID, "10", "DEPOSIT")

	boom := errors.NewAppError(errors.InternalError, "boom")
	s.store.WithError(boom)
	_, err := s.service.CreateTransaction(s.ctx, TransactionRequest{
		Amount: decimal.NewFromInt(5), Type: "DEPOSIT", AccountID: int64Ptr(account.ID),
	})
	s.ErrorIs(err, boom)
	s.store.WithError(nil)

	rows, err := s.service.ListSummaries(s.ctx)
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *TransactionServiceSuite) TestInvalidIDs() {
	_, err := s.service.GetTransaction(s.ctx, 0)
	s.ErrorIs(err, errors.ErrInvalidID)
	s.ErrorIs(s.service.DeleteTransaction(s.ctx, -1), errors.ErrInvalidID)
}

func TestTransactionServiceSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceSuite))
}
