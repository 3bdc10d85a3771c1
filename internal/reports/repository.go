package reports

import (
	"context"
	"time"
)

// Repository persists reports. Mutations go through WithTx so the
// check-then-write of Generate and Finalize is a single write transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, date time.Time) (DailyBalanceReport, error)
	ListFinalized(ctx context.Context, from, to time.Time) ([]DailyBalanceReport, error)
}

// TxRepository is the transactional view handed to WithTx callbacks.
type TxRepository interface {
	LoadByDate(ctx context.Context, date time.Time) (DailyBalanceReport, error)
	Employees(ctx context.Context, ids []int64) (map[int64]Employee, error)
	Insert(ctx context.Context, report DailyBalanceReport) (int64, error)
	Update(ctx context.Context, report DailyBalanceReport) error
	ReplaceEntries(ctx context.Context, reportID int64, entries []EmployeeEntry) error
	MarkFinalized(ctx context.Context, reportID int64, by ActorRef, at time.Time) error
}
