package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"ledger-service/internal/domain"
	"ledger-service/internal/errors"
)

// Each shape selects only its own columns. Summary queries never join
// accounts.
const (
	summarySelect = `
		SELECT t.id, t.amount, t.type
		FROM transactions t`

	withAccountSelect = `
		SELECT t.id, t.amount, t.type, a.account_number, a.holder_name
		FROM transactions t
		LEFT JOIN accounts a ON a.id = t.account_id`
)

var sortColumns = map[domain.SortField]string{
	domain.SortByAmount:    "t.amount",
	domain.SortByType:      "t.type",
	domain.SortByTimestamp: "t.timestamp",
}

var sortDirections = map[domain.SortDirection]string{
	domain.Ascending:  "ASC",
	domain.Descending: "DESC",
}

type projectedRow interface {
	domain.TransactionSummary | domain.TransactionWithAccount
}

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (amount, type, timestamp, account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, tx.Amount, string(tx.Type), tx.Timestamp, tx.AccountID).Scan(&tx.ID)
	if err != nil {
		if pqErrCode(err) == pqForeignKeyViolation {
			r.logger.Warn("Transaction references unknown account", "account_id", tx.AccountID)
			return errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to create transaction",
			"account_id", tx.AccountID,
			"amount", tx.Amount,
			"type", tx.Type,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	r.logger.Info("Transaction created successfully", "transaction_id", tx.ID)
	return nil
}

func (r *transactionRepository) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `
		SELECT t.id, t.amount, t.type, t.timestamp, t.account_id,
		       a.id, a.account_number, a.holder_name
		FROM transactions t
		LEFT JOIN accounts a ON a.id = t.account_id
		WHERE t.id = $1
	`

	var (
		tx            domain.Transaction
		txType        string
		ownerID       sql.NullInt64
		accountNumber sql.NullString
		holderName    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tx.ID,
		&tx.Amount,
		&txType,
		&tx.Timestamp,
		&tx.AccountID,
		&ownerID,
		&accountNumber,
		&holderName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Transaction not found", "transaction_id", id)
			return nil, errors.ErrTransactionNotFound
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}

	if !ownerID.Valid {
		r.logger.Error("Transaction owner missing", "transaction_id", id, "account_id", tx.AccountID)
		return nil, errors.ErrIntegrityViolation.WithDetails(fmt.Sprintf("transaction %d", id))
	}

	tx.Type = domain.TransactionType(txType)
	tx.Account = &domain.Account{
		ID:            ownerID.Int64,
		AccountNumber: accountNumber.String,
		HolderName:    holderName.String,
	}
	return &tx, nil
}

func (r *transactionRepository) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, type = $2, account_id = $3
		WHERE id = $4
		RETURNING timestamp
	`

	err := r.db.QueryRowContext(ctx, query, tx.Amount, string(tx.Type), tx.AccountID, tx.ID).Scan(&tx.Timestamp)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("No transaction found to update", "transaction_id", tx.ID)
			return errors.ErrTransactionNotFound
		}
		if pqErrCode(err) == pqForeignKeyViolation {
			return errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to update transaction", "transaction_id", tx.ID, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to update transaction").WithDetails(err.Error())
	}

	r.logger.Info("Transaction updated", "transaction_id", tx.ID)
	return nil
}

func (r *transactionRepository) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete transaction", "transaction_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to delete transaction").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		r.logger.Warn("No transaction found to delete", "transaction_id", id)
		return errors.ErrTransactionNotFound
	}

	r.logger.Info("Transaction deleted", "transaction_id", id)
	return nil
}

func (r *transactionRepository) TransactionExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check transaction existence", "transaction_id", id, "error", err)
		return false, errors.NewAppError(errors.InternalError, "failed to check transaction").WithDetails(err.Error())
	}
	return exists, nil
}

func (r *transactionRepository) ListSummaries(ctx context.Context) ([]domain.TransactionSummary, error) {
	return queryProjection(ctx, r, scanSummary, summarySelect+` ORDER BY t.id`)
}

func (r *transactionRepository) ListWithAccountByType(ctx context.Context, t domain.TransactionType) ([]domain.TransactionWithAccount, error) {
	return queryProjection(ctx, r, r.scanWithAccount, withAccountSelect+` WHERE t.type = $1 ORDER BY t.id`, string(t))
}

func (r *transactionRepository) ListSummariesByAmountGreaterThan(ctx context.Context, amount decimal.Decimal) ([]domain.TransactionSummary, error) {
	return queryProjection(ctx, r, scanSummary, summarySelect+` WHERE t.amount > $1 ORDER BY t.id`, amount)
}

func (r *transactionRepository) ListWithAccountByAmountGreaterThan(ctx context.Context, amount decimal.Decimal) ([]domain.TransactionWithAccount, error) {
	return queryProjection(ctx, r, r.scanWithAccount, withAccountSelect+` WHERE t.amount > $1 ORDER BY t.id`, amount)
}

// PageSummaries counts and reads the page from one snapshot so the total
// always agrees with the items. Inside an outer transaction that transaction
// is reused.
func (r *transactionRepository) PageSummaries(ctx context.Context, req domain.PageRequest) ([]domain.TransactionSummary, int64, error) {
	orderBy, err := orderByClause(req.SortBy, req.Direction)
	if err != nil {
		return nil, 0, err
	}

	db, ok := r.db.(DB)
	if !ok {
		return r.pageSummaries(ctx, orderBy, req.Window())
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		r.logger.Error("Failed to begin page snapshot", "error", err)
		return nil, 0, errors.ErrCannotBeginTransaction.WithDetails(err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	snapshot := &transactionRepository{db: tx, logger: r.logger}
	items, total, err := snapshot.pageSummaries(ctx, orderBy, req.Window())
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit page snapshot", "error", err)
		return nil, 0, errors.NewAppError(errors.InternalError, "failed to commit transaction").WithDetails(err.Error())
	}
	return items, total, nil
}

func (r *transactionRepository) pageSummaries(ctx context.Context, orderBy string, window domain.PageWindow) ([]domain.TransactionSummary, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&total); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return nil, 0, errors.NewAppError(errors.InternalError, "failed to count transactions").WithDetails(err.Error())
	}

	items, err := queryProjection(ctx, r, scanSummary,
		summarySelect+orderBy+` LIMIT $1 OFFSET $2`, window.Limit, window.Offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *transactionRepository) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COUNT(*) FILTER (WHERE type = 'DEPOSIT'),
			COUNT(*) FILTER (WHERE type = 'WITHDRAWAL')
		FROM transactions
	`

	var d domain.Dashboard
	err := r.db.QueryRowContext(ctx, query).Scan(
		&d.TotalTransactions,
		&d.TotalAmount,
		&d.DepositCount,
		&d.WithdrawalCount,
	)
	if err != nil {
		r.logger.Error("Failed to compute dashboard", "error", err)
		return domain.Dashboard{}, errors.NewAppError(errors.InternalError, "failed to compute dashboard").WithDetails(err.Error())
	}
	return d, nil
}

// orderByClause builds ORDER BY from whitelisted identifiers only; id breaks
// ties so pages never overlap.
func orderByClause(field domain.SortField, direction domain.SortDirection) (string, error) {
	column, ok := sortColumns[field]
	if !ok {
		return "", errors.ErrInvalidSortField.WithDetails(fmt.Sprintf("got %q", field))
	}
	dir, ok := sortDirections[direction]
	if !ok {
		return "", errors.ErrInvalidDirection.WithDetails(fmt.Sprintf("got %q", direction))
	}
	return fmt.Sprintf(" ORDER BY %s %s, t.id %s", column, dir, dir), nil
}

func queryProjection[T projectedRow](
	ctx context.Context,
	r *transactionRepository,
	scan func(rowScanner) (T, error),
	query string,
	args ...interface{},
) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query transactions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to query transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate transactions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to query transactions").WithDetails(err.Error())
	}
	return items, nil
}

func scanSummary(row rowScanner) (domain.TransactionSummary, error) {
	var (
		s      domain.TransactionSummary
		txType string
	)
	if err := row.Scan(&s.ID, &s.Amount, &txType); err != nil {
		return s, errors.NewAppError(errors.InternalError, "failed to scan transaction").WithDetails(err.Error())
	}
	s.Type = domain.TransactionType(txType)
	return s, nil
}

// withAccountRow is the raw result of the LEFT JOIN; the account columns are
// NULL when the owning account is missing.
type withAccountRow struct {
	ID            int64
	Amount        decimal.Decimal
	Type          string
	AccountNumber sql.NullString
	HolderName    sql.NullString
}

func (r *transactionRepository) scanWithAccount(row rowScanner) (domain.TransactionWithAccount, error) {
	var raw withAccountRow
	if err := row.Scan(&raw.ID, &raw.Amount, &raw.Type, &raw.AccountNumber, &raw.HolderName); err != nil {
		return domain.TransactionWithAccount{}, errors.NewAppError(errors.InternalError, "failed to scan transaction").WithDetails(err.Error())
	}

	out, err := toWithAccount(raw)
	if err != nil {
		r.logger.Error("Transaction owner missing", "transaction_id", raw.ID)
		return domain.TransactionWithAccount{}, err
	}
	return out, nil
}

func toWithAccount(raw withAccountRow) (domain.TransactionWithAccount, error) {
	if !raw.AccountNumber.Valid {
		return domain.TransactionWithAccount{}, errors.ErrIntegrityViolation.WithDetails(fmt.Sprintf("transaction %d", raw.ID))
	}
	return domain.TransactionWithAccount{
		ID:     raw.ID,
		Amount: raw.Amount,
		Type:   domain.TransactionType(raw.Type),
		Account: domain.AccountView{
			AccountNumber: raw.AccountNumber.String,
			HolderName:    raw.HolderName.String,
		},
	}, nil
}
