package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tipbook/backoffice/internal/csvcodec"
	"github.com/tipbook/backoffice/internal/platform/artifact"
	"github.com/tipbook/backoffice/internal/shared"
)

// Locker serialises report writes for one date across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Service runs the report lifecycle: UNSAVED -> GENERATED -> FINALIZED.
type Service struct {
	repo    Repository
	exports artifact.Store
	logger  *slog.Logger
	locks   shared.KeyedMutex
	remote  Locker
	now     func() time.Time
}

// NewService constructs a Service. exports receives CSV exports and may be
// nil when exporting is not needed.
func NewService(repo Repository, exports artifact.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		exports: exports,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocker adds a cross-process lock taken after the in-process one.
func (s *Service) WithLocker(l Locker) {
	s.remote = l
}

func (s *Service) lockDate(ctx context.Context, date time.Time) (func(), error) {
	key := shared.ReportLockKey(date)
	unlock := s.locks.Lock(key)
	if s.remote == nil {
		return unlock, nil
	}
	release, err := s.remote.Lock(ctx, key)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

func validateActor(actor shared.Actor) error {
	if !actor.Kind.Valid() {
		return fmt.Errorf("%w: actor kind %q", ErrInvalidInput, actor.Kind)
	}
	if actor.Kind == shared.ActorUser && actor.ID <= 0 {
		return fmt.Errorf("%w: user actor requires an id", ErrInvalidInput)
	}
	return nil
}

// Generate creates the report for in.Date or overwrites an unfinalized one.
// A finalized report is never written; ErrAlreadyFinalized is returned.
func (s *Service) Generate(ctx context.Context, in GenerateInput, actor shared.Actor) (DailyBalanceReport, error) {
	if err := in.Validate(); err != nil {
		return DailyBalanceReport{}, err
	}
	if err := validateActor(actor); err != nil {
		return DailyBalanceReport{}, err
	}
	date := NormalizeDate(in.Date)

	unlock, err := s.lockDate(ctx, date)
	if err != nil {
		return DailyBalanceReport{}, err
	}
	defer unlock()

	created := false
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report, err := tx.LoadByDate(ctx, date)
		switch {
		case errors.Is(err, ErrNotFound):
			report = DailyBalanceReport{}
		case err != nil:
			return err
		case report.Finalized:
			return ErrAlreadyFinalized
		}

		entries, err := buildEntries(ctx, tx, in.Entries)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		report.Date = date
		report.DayOfWeek = date.Weekday().String()
		report.TotalCashSales = money(in.CashSales)
		report.TotalCardSales = money(in.CardSales)
		report.TotalTipsCollected = money(in.TipsCollected)
		report.Notes = in.Notes

		if report.ID == 0 {
			report.GeneratedBy = RefOf(actor)
			report.GeneratedAt = now
			report.CreatedBySource = actor.Kind
			id, err := tx.Insert(ctx, report)
			if err != nil {
				return err
			}
			report.ID = id
			created = true
		} else {
			edited := notBefore(now, report.GeneratedAt)
			if report.EditedAt != nil {
				edited = notBefore(edited, *report.EditedAt)
			}
			report.EditedAt = &edited
			if err := tx.Update(ctx, report); err != nil {
				return err
			}
		}
		return tx.ReplaceEntries(ctx, report.ID, entries)
	})
	if err != nil {
		return DailyBalanceReport{}, err
	}

	s.logger.Info("report saved",
		slog.String("date", date.Format(DateLayout)),
		slog.Bool("created", created),
		slog.Int64("actor_id", actor.ID),
		slog.String("actor_kind", string(actor.Kind)))
	return s.repo.Get(ctx, date)
}

func buildEntries(ctx context.Context, tx TxRepository, inputs []EntryInput) ([]EmployeeEntry, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.EmployeeID)
	}
	employees, err := tx.Employees(ctx, ids)
	if err != nil {
		return nil, err
	}
	entries := make([]EmployeeEntry, 0, len(inputs))
	for _, in := range inputs {
		emp, ok := employees[in.EmployeeID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownEmployee, in.EmployeeID)
		}
		entries = append(entries, EmployeeEntry{
			Employee:           emp,
			BankCardSales:      money(in.BankCardSales),
			BankCardTips:       money(in.BankCardTips),
			CashTips:           money(in.CashTips),
			TotalSales:         money(in.TotalSales),
			Adjustments:        money(in.Adjustments),
			CalculatedTakeHome: money(in.CalculatedTakeHome),
		})
	}
	return entries, nil
}

// Finalize freezes the report for date. finalized, finalized_by and
// finalized_at are written together by a single guarded update.
func (s *Service) Finalize(ctx context.Context, date time.Time, actor shared.Actor) (DailyBalanceReport, error) {
	if err := validateActor(actor); err != nil {
		return DailyBalanceReport{}, err
	}
	date = NormalizeDate(date)

	unlock, err := s.lockDate(ctx, date)
	if err != nil {
		return DailyBalanceReport{}, err
	}
	defer unlock()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report, err := tx.LoadByDate(ctx, date)
		if err != nil {
			return err
		}
		if report.Finalized {
			return ErrAlreadyFinalized
		}
		at := notBefore(s.now().UTC(), report.GeneratedAt)
		if report.EditedAt != nil {
			at = notBefore(at, *report.EditedAt)
		}
		return tx.MarkFinalized(ctx, report.ID, RefOf(actor), at)
	})
	if err != nil {
		return DailyBalanceReport{}, err
	}

	s.logger.Info("report finalized",
		slog.String("date", date.Format(DateLayout)),
		slog.Int64("actor_id", actor.ID),
		slog.String("actor_kind", string(actor.Kind)))
	return s.repo.Get(ctx, date)
}

// Get returns the report for date with its entries.
func (s *Service) Get(ctx context.Context, date time.Time) (DailyBalanceReport, error) {
	return s.repo.Get(ctx, NormalizeDate(date))
}

// ListFinalized returns the finalized reports of month's calendar month,
// newest date first.
func (s *Service) ListFinalized(ctx context.Context, month time.Time) ([]DailyBalanceReport, error) {
	y, m, _ := month.Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return s.repo.ListFinalized(ctx, from, from.AddDate(0, 1, 0))
}

// FinalizedBetween returns finalized reports dated start through end inclusive.
func (s *Service) FinalizedBetween(ctx context.Context, start, end time.Time) ([]DailyBalanceReport, error) {
	start, end = NormalizeDate(start), NormalizeDate(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range ends before it starts", ErrInvalidInput)
	}
	return s.repo.ListFinalized(ctx, start, end.AddDate(0, 0, 1))
}

// Export writes the report as <date>-daily-balance.csv into the export
// store and returns the stored artifact.
func (s *Service) Export(ctx context.Context, date time.Time) (artifact.Artifact, error) {
	if s.exports == nil {
		return artifact.Artifact{}, errors.New("reports: export store not configured")
	}
	report, err := s.Get(ctx, date)
	if err != nil {
		return artifact.Artifact{}, err
	}

	var buf bytes.Buffer
	if err := csvcodec.EncodeDailyBalance(&buf, codecReport(report), codecLines(report.Entries)); err != nil {
		return artifact.Artifact{}, fmt.Errorf("reports: encode %s: %w", report.Date.Format(DateLayout), err)
	}
	a, err := s.exports.Write(ctx, csvcodec.DailyBalanceFilename(report.Date), &buf)
	if err != nil {
		return artifact.Artifact{}, err
	}
	s.logger.Info("report exported", slog.String("filename", a.Name), slog.Int64("bytes", a.Size))
	return a, nil
}

func codecReport(r DailyBalanceReport) csvcodec.DailyBalance {
	return csvcodec.DailyBalance{
		Date:               r.Date,
		DayOfWeek:          r.DayOfWeek,
		TotalCashSales:     r.TotalCashSales,
		TotalCardSales:     r.TotalCardSales,
		TotalTipsCollected: r.TotalTipsCollected,
		Notes:              r.Notes,
	}
}

func codecLines(entries []EmployeeEntry) []csvcodec.EmployeeLine {
	lines := make([]csvcodec.EmployeeLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, csvcodec.EmployeeLine{
			Name:               e.Employee.Name,
			Position:           e.Employee.Position,
			BankCardSales:      e.BankCardSales,
			BankCardTips:       e.BankCardTips,
			CashTips:           e.CashTips,
			TotalSales:         e.TotalSales,
			Adjustments:        e.Adjustments,
			CalculatedTakeHome: e.CalculatedTakeHome,
		})
	}
	return lines
}

// notBefore returns t, or floor when t is earlier, so audit timestamps stay
// ordered even if the clock steps backwards.
func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
