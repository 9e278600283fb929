package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-service/internal/errors"
)

// Shape selects which narrowed view of a transaction a query materializes.
type Shape int

const (
	ShapeSummary Shape = iota + 1
	ShapeWithAccount
)

func (s Shape) String() string {
	switch s {
	case ShapeSummary:
		return "summary"
	case ShapeWithAccount:
		return "with_account"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape resolves a caller supplied selector. Unknown selectors are
// rejected rather than falling back to a default shape.
func ParseShape(selector string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "summary":
		return ShapeSummary, nil
	case "with_account":
		return ShapeWithAccount, nil
	default:
		return 0, errors.ErrInvalidProjection.WithDetails(fmt.Sprintf("unknown projection %q", selector))
	}
}

// TransactionSummary never touches the owning account.
type TransactionSummary struct {
	ID     int64           `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Type   TransactionType `json:"type"`
}

type AccountView struct {
	AccountNumber string `json:"accountNumber"`
	HolderName    string `json:"holderName"`
}

type TransactionWithAccount struct {
	ID      int64           `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	Type    TransactionType `json:"type"`
	Account AccountView     `json:"account"`
}

// ProjectionResult holds the rows of exactly one shape.
type ProjectionResult struct {
	Shape       Shape
	Summaries   []TransactionSummary
	WithAccount []TransactionWithAccount
}

func (r ProjectionResult) Len() int {
	switch r.Shape {
	case ShapeSummary:
		return len(r.Summaries)
	case ShapeWithAccount:
		return len(r.WithAccount)
	default:
		return 0
	}
}

// MarshalJSON encodes the active variant as a plain array.
func (r ProjectionResult) MarshalJSON() ([]byte, error) {
	switch r.Shape {
	case ShapeSummary:
		if r.Summaries == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Summaries)
	case ShapeWithAccount:
		if r.WithAccount == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.WithAccount)
	default:
		return nil, fmt.Errorf("cannot encode projection of %s", r.Shape)
	}
}
