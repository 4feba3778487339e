package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowerbidgo/internal/lot"
)

// PgStore keeps lot records in Postgres.
type PgStore struct {
	db *sql.DB
}

func NewPgStore(db *sql.DB) *PgStore { return &PgStore{db: db} }

var _ Store = (*PgStore)(nil)

const lotCols = `id, seller_id, name, category, size, quantity, lot_number,
       initial_price, current_price, starts_at, ends_at, status,
       coalesce(winning_bid_id,''), settled, version`

func (s *PgStore) CreateLot(ctx context.Context, l lot.Lot) error {
	const ins = `
	INSERT INTO lots (id, seller_id, name, category, size, quantity, lot_number,
	                  initial_price, current_price, starts_at, ends_at, status,
	                  settled, version)
	     VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,false,1)`
	if _, err := s.db.ExecContext(ctx, ins,
		l.ID, l.SellerID, l.Name, l.Category, l.Size, l.Quantity, l.LotNumber,
		l.InitialPrice, l.CurrentPrice, l.StartsAt, l.EndsAt, l.Status); err != nil {
		return fmt.Errorf("create lot %s: %w", l.ID, err)
	}
	return nil
}

func (s *PgStore) GetLot(ctx context.Context, id string) (*lot.Lot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lotCols+` FROM lots WHERE id = $1`, id)
	l, err := scanLot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLotNotFound
	}
	return l, err
}

// SaveLot is a compare-and-swap on the version column: a writer that lost a
// race gets ErrVersionConflict instead of silently clobbering the row.
func (s *PgStore) SaveLot(ctx context.Context, l *lot.Lot) error {
	const upd = `
	UPDATE lots SET current_price = $2, status = $3,
	                winning_bid_id = nullif($4,''), settled = $5,
	                version = version + 1
	 WHERE id = $1 AND version = $6`
	res, err := s.db.ExecContext(ctx, upd,
		l.ID, l.CurrentPrice, l.Status, l.WinningBidID, l.Settled, l.Version)
	if err != nil {
		return fmt.Errorf("save lot %s: %w", l.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	l.Version++
	return nil
}

func (s *PgStore) DeleteLot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLotNotFound
	}
	return nil
}

func (s *PgStore) ListLots(ctx context.Context, status string, limit, offset int) ([]lot.Lot, error) {
	if limit == 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + lotCols + ` FROM lots`
	switch lot.Status(status) {
	case lot.StatusUpcoming, lot.StatusLive, lot.StatusClosed:
		base += ` WHERE status = $1`
		rows, err = s.db.QueryContext(ctx, base+` ORDER BY ends_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset)
	default:
		rows, err = s.db.QueryContext(ctx, base+` ORDER BY ends_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return collectLots(rows, limit)
}

func (s *PgStore) ListExpiredLots(ctx context.Context, now time.Time) ([]lot.Lot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lotCols+` FROM lots
		  WHERE ends_at <= $1 AND NOT settled
		  ORDER BY ends_at ASC`, now)
	if err != nil {
		return nil, err
	}
	return collectLots(rows, 16)
}

func collectLots(rows *sql.Rows, sizeHint int) ([]lot.Lot, error) {
	defer rows.Close()
	list := make([]lot.Lot, 0, sizeHint)
	for rows.Next() {
		l, err := scanLot(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	return list, rows.Err()
}

func scanLot(scan func(dest ...any) error) (*lot.Lot, error) {
	var l lot.Lot
	if err := scan(&l.ID, &l.SellerID, &l.Name, &l.Category, &l.Size, &l.Quantity,
		&l.LotNumber, &l.InitialPrice, &l.CurrentPrice, &l.StartsAt, &l.EndsAt,
		&l.Status, &l.WinningBidID, &l.Settled, &l.Version); err != nil {
		return nil, err
	}
	return &l, nil
}
