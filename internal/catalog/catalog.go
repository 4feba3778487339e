package catalog

import (
	"context"
	"errors"
	"time"

	"flowerbidgo/internal/lot"
)

var (
	ErrLotNotFound = errors.New("lot not found")
	// ErrVersionConflict means the lot changed underneath the caller.
	// Safe to reload and retry.
	ErrVersionConflict = errors.New("lot version conflict")
)

// Store is the durable home of lot records. Reads observe the caller's own
// prior writes for the same lot.
type Store interface {
	CreateLot(ctx context.Context, l lot.Lot) error
	GetLot(ctx context.Context, id string) (*lot.Lot, error)
	// SaveLot writes the lot back conditioned on l.Version still matching
	// the stored row. On success the version in l is advanced; otherwise
	// ErrVersionConflict.
	SaveLot(ctx context.Context, l *lot.Lot) error
	DeleteLot(ctx context.Context, id string) error
	// ListLots filters by status when one is given, newest window first.
	ListLots(ctx context.Context, status string, limit, offset int) ([]lot.Lot, error)
	// ListExpiredLots returns lots whose window elapsed at now and that
	// settlement has not resolved yet.
	ListExpiredLots(ctx context.Context, now time.Time) ([]lot.Lot, error)
}
