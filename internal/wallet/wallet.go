package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound      = errors.New("wallet user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Service holds user balances and transfers funds at settlement.
type Service interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	// Debit removes amount from the user's balance, or returns
	// ErrInsufficientFunds without touching it.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) error
	// Credit adds funds, e.g. a top-up through the payment glue.
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
}
