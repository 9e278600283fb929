package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"ledger-service/internal/domain"
	"ledger-service/internal/errors"
)

// Store is an in-memory domain.Store used to test services and handlers
// without a running database. It mirrors the PostgreSQL store's error
// mapping: unique account numbers, foreign keys on account_id and
// not-found on missing ids.
type Store struct {
	state *state
	inTx  bool
}

type state struct {
	mu   sync.Mutex
	txMu sync.Mutex

	accounts     map[int64]domain.Account
	transactions map[int64]domain.Transaction
	nextAccount  int64
	nextTx       int64

	err     error
	pingErr error
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		state: &state{
			accounts:     make(map[int64]domain.Account),
			transactions: make(map[int64]domain.Transaction),
		},
	}
}

// WithError makes every repository call return err until reset with nil.
func (s *Store) WithError(err error) *Store {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.err = err
	return s
}

// WithPingError forces Ping to return err.
func (s *Store) WithPingError(err error) *Store {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.pingErr = err
	return s
}

// InsertOrphan stores tx without checking that its account exists. It
// simulates rows left behind by a broken foreign key.
func (s *Store) InsertOrphan(tx domain.Transaction) int64 {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.nextTx++
	tx.ID = s.state.nextTx
	tx.Account = nil
	s.state.transactions[tx.ID] = tx
	return tx.ID
}

func (s *Store) Accounts() domain.AccountRepository {
	return &accountRepository{state: s.state}
}

func (s *Store) Transactions() domain.TransactionRepository {
	return &transactionRepository{state: s.state}
}

func (s *Store) Ping(_ context.Context) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.pingErr
}

// WithTransaction serializes units of work and restores the previous
// contents when fn fails. Nested calls join the outer unit.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return errors.ErrCannotBeginTransaction.WithDetails(err.Error())
	}

	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	snap := s.state.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.state.restore(snap)
		}
	}()

	if err := fn(&Store{state: s.state, inTx: true}); err != nil {
		return err
	}
	committed = true
	return nil
}

type snapshot struct {
	accounts     map[int64]domain.Account
	transactions map[int64]domain.Transaction
	nextAccount  int64
	nextTx       int64
}

func (st *state) snapshot() snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshot{
		accounts:     cloneMap(st.accounts),
		transactions: cloneMap(st.transactions),
		nextAccount:  st.nextAccount,
		nextTx:       st.nextTx,
	}
}

func (st *state) restore(snap snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.accounts = snap.accounts
	st.transactions = snap.transactions
	st.nextAccount = snap.nextAccount
	st.nextTx = snap.nextTx
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type accountRepository struct {
	state *state
}

func (r *accountRepository) CreateAccount(_ context.Context, account *domain.Account) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return st.err
	}

	for _, existing := range st.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return errors.ErrDuplicateAccount
		}
	}
	st.nextAccount++
	account.ID = st.nextAccount
	st.accounts[account.ID] = *account
	return nil
}

func (r *accountRepository) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return nil, st.err
	}

	account, ok := st.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return &account, nil
}

func (r *accountRepository) ListAccounts(_ context.Context) ([]domain.Account, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return nil, st.err
	}

	out := make([]domain.Account, 0, len(st.accounts))
	for _, account := range st.accounts {
		out = append(out, account)
	}
	slices.SortFunc(out, func(a, b domain.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *accountRepository) UpdateAccount(_ context.Context, account *domain.Account) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return st.err
	}

	existing, ok := st.accounts[account.ID]
	if !ok {
		return errors.ErrAccountNotFound
	}
	existing.HolderName = account.HolderName
	st.accounts[account.ID] = existing
	*account = existing
	return nil
}

func (r *accountRepository) DeleteAccount(_ context.Context, id int64) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return st.err
	}

	if _, ok := st.accounts[id]; !ok {
		return errors.ErrAccountNotFound
	}
	for _, tx := range st.transactions {
		if tx.AccountID == id {
			return errors.ErrAccountInUse
		}
	}
	delete(st.accounts, id)
	return nil
}

func (r *accountRepository) AccountExists(_ context.Context, id int64) (bool, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return false, st.err
	}
	_, ok := st.accounts[id]
	return ok, nil
}

type transactionRepository struct {
	state *state
}

func (r *transactionRepository) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return st.err
	}

	if _, ok := st.accounts[tx.AccountID]; !ok {
		return errors.ErrAccountNotFound
	}
	st.nextTx++
	tx.ID = st.nextTx
	stored := *tx
	stored.Account = nil
	st.transactions[tx.ID] = stored
	return nil
}

func (r *transactionRepository) GetTransaction(_ context.Context, id int64) (*domain.Transaction, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return nil, st.err
	}

	tx, ok := st.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	owner, ok := st.accounts[tx.AccountID]
	if !ok {
		return nil, errors.ErrIntegrityViolation.WithDetails(fmt.Sprintf("transaction %d", id))
	}
	tx.Account = &owner
	return &tx, nil
}

func (r *transactionRepository) UpdateTransaction(_ context.Context, tx *domain.Transaction) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return st.err
	}

	existing, ok := st.transactions[tx.ID]
	if !ok {
		return errors.ErrTransactionNotFound
	}
	if _, ok := st.accounts[tx.AccountID]; !ok {
		return errors.ErrAccountNotFound
	}
	existing.Amount = tx.Amount
	existing.Type = tx.Type
	existing.AccountID = tx.AccountID
	st.transactions[tx.ID] = existing
	tx.Timestamp = existing.Timestamp
	return nil
}

func (r *transactionRepository) DeleteTransaction(_ context.Context, id int64) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return st.err
	}

	if _, ok := st.transactions[id]; !ok {
		return errors.ErrTransactionNotFound
	}
	delete(st.transactions, id)
	return nil
}

func (r *transactionRepository) TransactionExists(_ context.Context, id int64) (bool, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return false, st.err
	}
	_, ok := st.transactions[id]
	return ok, nil
}

func (r *transactionRepository) ListSummaries(_ context.Context) ([]domain.TransactionSummary, error) {
	rows, err := r.filter(func(domain.Transaction) bool { return true })
	if err != nil {
		return nil, err
	}
	return mapRows(rows, toSummary)
}

func (r *transactionRepository) ListWithAccountByType(_ context.Context, t domain.TransactionType) ([]domain.TransactionWithAccount, error) {
	rows, err := r.filter(func(tx domain.Transaction) bool { return tx.Type == t })
	if err != nil {
		return nil, err
	}
	return mapRows(rows, r.toWithAccount)
}

func (r *transactionRepository) ListSummariesByAmountGreaterThan(_ context.Context, amount decimal.Decimal) ([]domain.TransactionSummary, error) {
	rows, err := r.filter(func(tx domain.Transaction) bool { return tx.Amount.GreaterThan(amount) })
	if err != nil {
		return nil, err
	}
	return mapRows(rows, toSummary)
}

func (r *transactionRepository) ListWithAccountByAmountGreaterThan(_ context.Context, amount decimal.Decimal) ([]domain.TransactionWithAccount, error) {
	rows, err := r.filter(func(tx domain.Transaction) bool { return tx.Amount.GreaterThan(amount) })
	if err != nil {
		return nil, err
	}
	return mapRows(rows, r.toWithAccount)
}

func (r *transactionRepository) PageSummaries(_ context.Context, req domain.PageRequest) ([]domain.TransactionSummary, int64, error) {
	rows, err := r.filter(func(domain.Transaction) bool { return true })
	if err != nil {
		return nil, 0, err
	}

	compare, err := comparator(req.SortBy, req.Direction)
	if err != nil {
		return nil, 0, err
	}
	slices.SortStableFunc(rows, compare)

	total := int64(len(rows))
	window := req.Window()
	start := min(window.Offset, len(rows))
	end := min(start+window.Limit, len(rows))

	items, err := mapRows(rows[start:end], toSummary)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *transactionRepository) Dashboard(_ context.Context) (domain.Dashboard, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return domain.Dashboard{}, st.err
	}

	d := domain.Dashboard{TotalAmount: decimal.Zero}
	for _, tx := range st.transactions {
		d.TotalTransactions++
		d.TotalAmount = d.TotalAmount.Add(tx.Amount)
		switch tx.Type {
		case domain.Deposit:
			d.DepositCount++
		case domain.Withdrawal:
			d.WithdrawalCount++
		}
	}
	return d, nil
}

// filter returns matching rows ordered by id.
func (r *transactionRepository) filter(keep func(domain.Transaction) bool) ([]domain.Transaction, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return nil, st.err
	}

	out := make([]domain.Transaction, 0, len(st.transactions))
	for _, tx := range st.transactions {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *transactionRepository) toWithAccount(tx domain.Transaction) (domain.TransactionWithAccount, error) {
	st := r.state
	st.mu.Lock()
	owner, ok := st.accounts[tx.AccountID]
	st.mu.Unlock()
	if !ok {
		return domain.TransactionWithAccount{}, errors.ErrIntegrityViolation.WithDetails(fmt.Sprintf("transaction %d", tx.ID))
	}
	return domain.TransactionWithAccount{
		ID:     tx.ID,
		Amount: tx.Amount,
		Type:   tx.Type,
		Account: domain.AccountView{
			AccountNumber: owner.AccountNumber,
			HolderName:    owner.HolderName,
		},
	}, nil
}

func toSummary(tx domain.Transaction) (domain.TransactionSummary, error) {
	return domain.TransactionSummary{ID: tx.ID, Amount: tx.Amount, Type: tx.Type}, nil
}

func mapRows[T any](rows []domain.Transaction, convert func(domain.Transaction) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := convert(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func comparator(field domain.SortField, direction domain.SortDirection) (func(a, b domain.Transaction) int, error) {
	var byField func(a, b domain.Transaction) int
	switch field {
	case domain.SortByAmount:
		byField = func(a, b domain.Transaction) int { return a.Amount.Cmp(b.Amount) }
	case domain.SortByType:
		byField = func(a, b domain.Transaction) int { return cmp.Compare(a.Type, b.Type) }
	case domain.SortByTimestamp:
		byField = func(a, b domain.Transaction) int { return a.Timestamp.Compare(b.Timestamp) }
	default:
		return nil, errors.ErrInvalidSortField.WithDetails(fmt.Sprintf("got %q", field))
	}

	var sign int
	switch direction {
	case domain.Ascending:
		sign = 1
	case domain.Descending:
		sign = -1
	default:
		return nil, errors.ErrInvalidDirection.WithDetails(fmt.Sprintf("got %q", direction))
	}

	return func(a, b domain.Transaction) int {
		if c := byField(a, b); c != 0 {
			return sign * c
		}
		return sign * cmp.Compare(a.ID, b.ID)
	}, nil
}
