package domain

import (
	"context"
)

type Account struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"accountNumber"`
	HolderName    string `json:"holderName"`
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	UpdateAccount(ctx context.Context, account *Account) error
	DeleteAccount(ctx context.Context, id int64) error
	AccountExists(ctx context.Context, id int64) (bool, error)
}
