package domain

import "github.com/shopspring/decimal"

// Dashboard is computed from the full transaction set and never persisted.
type Dashboard struct {
	TotalTransactions int64           `json:"totalTransactions"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	DepositCount      int64           `json:"depositCount"`
	WithdrawalCount   int64           `json:"withdrawalCount"`
}
