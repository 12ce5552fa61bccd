package governance

import (
	"context"
	"time"
)

type StoreAPI interface {
	// LockMonth locks monthEnd until the surrounding transaction ends, shared
	// for guards and exclusive for closing, and returns its current state. Only
	// the exclusive path may create the month row.
	LockMonth(ctx context.Context, monthEnd time.Time, exclusive bool) (MonthClose, error)
	MarkClosed(ctx context.Context, rec MonthClose) error
	List(ctx context.Context, year int) ([]MonthClose, error)
}
