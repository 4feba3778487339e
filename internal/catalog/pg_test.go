package catalog

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"flowerbidgo/internal/lot"
)

var lotColNames = []string{"id", "seller_id", "name", "category", "size", "quantity",
	"lot_number", "initial_price", "current_price", "starts_at", "ends_at",
	"status", "coalesce", "settled", "version"}

func TestPgStore_GetLot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	starts := time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM lots WHERE id = \$1`).
		WithArgs("lot1").
		WillReturnRows(sqlmock.NewRows(lotColNames).
			AddRow("lot1", "seller1", "Red Rose", "Romantic", 40, "12 stems", 7,
				"100", "150", starts, starts.Add(time.Hour), "LIVE", "bid1", false, 3))

	l, err := NewPgStore(db).GetLot(context.Background(), "lot1")
	require.NoError(t, err)
	require.Equal(t, "seller1", l.SellerID)
	require.Equal(t, lot.StatusLive, l.Status)
	require.True(t, l.CurrentPrice.Equal(decimal.NewFromInt(150)))
	require.Equal(t, "bid1", l.WinningBidID)
	require.EqualValues(t, 3, l.Version)
}

func TestPgStore_GetLot_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM lots`).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(lotColNames))

	_, err = NewPgStore(db).GetLot(context.Background(), "nope")
	require.ErrorIs(t, err, ErrLotNotFound)
}

func TestPgStore_SaveLot_VersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND version = $6`)).
		WithArgs("lot1", sqlmock.AnyArg(), "LIVE", "", false, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	l := &lot.Lot{ID: "lot1", Status: lot.StatusLive, CurrentPrice: decimal.NewFromInt(150), Version: 3}
	err = NewPgStore(db).SaveLot(context.Background(), l)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.EqualValues(t, 3, l.Version, "version must not advance on conflict")
}

func TestPgStore_SaveLot_AdvancesVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE lots SET`).
		WithArgs("lot1", sqlmock.AnyArg(), "CLOSED", "bid9", true, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	l := &lot.Lot{ID: "lot1", Status: lot.StatusClosed, WinningBidID: "bid9",
		Settled: true, CurrentPrice: decimal.NewFromInt(210), Version: 4}
	require.NoError(t, NewPgStore(db).SaveLot(context.Background(), l))
	require.EqualValues(t, 5, l.Version)
}

func TestPgStore_ListExpiredLots_SkipsSettled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ends_at <= $1 AND NOT settled`)).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(lotColNames).
			AddRow("lot1", "s1", "Tulip", "Festive", 30, "6 stems", 1,
				"50", "50", now.Add(-2*time.Hour), now.Add(-time.Hour), "LIVE", "", false, 1))

	lots, err := NewPgStore(db).ListExpiredLots(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, "lot1", lots[0].ID)
}
