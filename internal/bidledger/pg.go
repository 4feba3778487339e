package bidledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PgLedger stores bids in Postgres.
type PgLedger struct {
	db *sql.DB
}

func NewPgLedger(db *sql.DB) *PgLedger { return &PgLedger{db: db} }

var _ Ledger = (*PgLedger)(nil)

func (l *PgLedger) AppendBid(ctx context.Context, b Bid) error {
	const ins = `INSERT INTO bids (id, lot_id, bidder_id, amount, placed_at, is_winning)
	             VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := l.db.ExecContext(ctx, ins,
		b.ID, b.LotID, b.BidderID, b.Amount, b.PlacedAt, b.IsWinning); err != nil {
		return fmt.Errorf("append bid %s: %w", b.ID, err)
	}
	return nil
}

// AppendWinning inserts the bid and flips the lot's winning flag onto it in
// one transaction, so no reader ever sees two winning bids for the lot.
func (l *PgLedger) AppendWinning(ctx context.Context, b Bid) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append winning bid %s: %w", b.ID, err)
	}
	defer tx.Rollback()

	const ins = `INSERT INTO bids (id, lot_id, bidder_id, amount, placed_at, is_winning)
	             VALUES ($1, $2, $3, $4, $5, false)`
	if _, err := tx.ExecContext(ctx, ins,
		b.ID, b.LotID, b.BidderID, b.Amount, b.PlacedAt); err != nil {
		return fmt.Errorf("append winning bid %s: %w", b.ID, err)
	}
	const flip = `UPDATE bids SET is_winning = (id = $2) WHERE lot_id = $1`
	if _, err := tx.ExecContext(ctx, flip, b.LotID, b.ID); err != nil {
		return fmt.Errorf("flip winning bid %s: %w", b.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append winning bid %s: %w", b.ID, err)
	}
	return nil
}

const bidCols = `id, lot_id, bidder_id, amount, placed_at, is_winning`

func (l *PgLedger) GetBid(ctx context.Context, lotID, bidID string) (*Bid, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+bidCols+` FROM bids WHERE lot_id = $1 AND id = $2`, lotID, bidID)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	return b, err
}

func (l *PgLedger) ListBidsForLot(ctx context.Context, lotID string) ([]Bid, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+bidCols+` FROM bids
		  WHERE lot_id = $1
		  ORDER BY amount DESC, placed_at ASC`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.ID, &b.LotID, &b.BidderID, &b.Amount, &b.PlacedAt, &b.IsWinning); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// HighestBid orders ties by earliest placement, so the first bid at an
// amount beats later bids at the same amount.
func (l *PgLedger) HighestBid(ctx context.Context, lotID string) (*Bid, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+bidCols+` FROM bids
		  WHERE lot_id = $1
		  ORDER BY amount DESC, placed_at ASC
		  LIMIT 1`, lotID)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBids
	}
	return b, err
}

func (l *PgLedger) CountForLot(ctx context.Context, lotID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT count(*) FROM bids WHERE lot_id = $1`, lotID).Scan(&n)
	return n, err
}

func (l *PgLedger) SetWinning(ctx context.Context, lotID, bidID string) error {
	const upd = `UPDATE bids SET is_winning = (id = $2) WHERE lot_id = $1`
	if _, err := l.db.ExecContext(ctx, upd, lotID, bidID); err != nil {
		return fmt.Errorf("set winning bid %s: %w", bidID, err)
	}
	return nil
}

func (l *PgLedger) PurgeLosingBids(ctx context.Context, lotID string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM bids WHERE lot_id = $1 AND NOT is_winning`, lotID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanBid(row *sql.Row) (*Bid, error) {
	var b Bid
	if err := row.Scan(&b.ID, &b.LotID, &b.BidderID, &b.Amount, &b.PlacedAt, &b.IsWinning); err != nil {
		return nil, err
	}
	return &b, nil
}
