package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PgService keeps balances in a Postgres wallets table.
type PgService struct {
	db *sql.DB
}

func NewPgService(db *sql.DB) *PgService { return &PgService{db: db} }

var _ Service = (*PgService)(nil)

func (s *PgService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance %s: %w", userID, err)
	}
	return bal, nil
}

// Debit is conditional on the balance still covering the amount, so two
// concurrent settlements can never overdraw a wallet.
func (s *PgService) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	const upd = `UPDATE wallets SET balance = balance - $2
	              WHERE user_id = $1 AND balance >= $2`
	res, err := s.db.ExecContext(ctx, upd, userID, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the user is unknown or the funds no longer cover it.
		if _, err := s.GetBalance(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

func (s *PgService) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	const upd = `INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
	             ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance`
	if _, err := s.db.ExecContext(ctx, upd, userID, amount); err != nil {
		return fmt.Errorf("credit %s: %w", userID, err)
	}
	return nil
}
