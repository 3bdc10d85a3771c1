// Package tipreports builds, lists and reads saved date-range tip reports.
package tipreports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tipbook/backoffice/internal/csvcodec"
	"github.com/tipbook/backoffice/internal/platform/artifact"
	"github.com/tipbook/backoffice/internal/reports"
	"github.com/tipbook/backoffice/internal/shared"
)

var (
	// ErrNotFound indicates the saved report does not exist.
	ErrNotFound = fmt.Errorf("tipreports: report %w", shared.ErrNotFound)
	// ErrUnreadable indicates a saved file too short to hold a report.
	ErrUnreadable = fmt.Errorf("tipreports: report has no readable content: %w", shared.ErrNotFound)
	// ErrInvalidFilename indicates a name outside the tip report directory.
	ErrInvalidFilename = fmt.Errorf("tipreports: filename %w", shared.ErrInvalidInput)
	// ErrNoFinalizedReports indicates the range has nothing to summarise.
	ErrNoFinalizedReports = fmt.Errorf("tipreports: no finalized reports in range: %w", shared.ErrInvalidInput)
)

const reportTitle = "Employee Tip Report"

type reportSource interface {
	FinalizedBetween(ctx context.Context, start, end time.Time) ([]reports.DailyBalanceReport, error)
}

// SavedReport describes one file in the tip report directory. Start and
// end are nil when the name does not carry a parsable range.
type SavedReport struct {
	Filename  string     `json:"filename"`
	CreatedAt time.Time  `json:"created_at"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Size      int64      `json:"size"`
}

// Service reads and writes tip reports in an artifact store.
type Service struct {
	store   artifact.Store
	reports reportSource
	cache   *Cache
	logger  *slog.Logger
}

// NewService constructs the service. cache may be nil.
func NewService(store artifact.Store, source reportSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, reports: source, cache: cache, logger: logger}
}

// List returns saved reports newest first. A positive limit caps the result.
func (s *Service) List(ctx context.Context, limit int) ([]SavedReport, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("tipreports: list: %w", err)
	}
	out := make([]SavedReport, 0, len(items))
	for _, item := range items {
		if !strings.HasSuffix(item.Name, ".csv") {
			continue
		}
		saved := SavedReport{Filename: item.Name, CreatedAt: item.ModTime, Size: item.Size}
		if start, end, ok := csvcodec.ParseTipReportFilename(item.Name); ok {
			saved.StartDate, saved.EndDate = &start, &end
		}
		out = append(out, saved)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Load parses a saved report. Parsed results are cached per file version.
func (s *Service) Load(ctx context.Context, filename string) (*csvcodec.ParsedTipReport, error) {
	if !strings.HasSuffix(filename, ".csv") || !artifact.ValidName(filename) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	info, err := s.store.Stat(ctx, filename)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, err
	}

	key := Key("parsed", filename,
		strconv.FormatInt(info.ModTime.UnixNano(), 10), strconv.FormatInt(info.Size, 10))
	var parsed csvcodec.ParsedTipReport
	err = s.cache.FetchJSON(ctx, key, &parsed, func(ctx context.Context) (interface{}, error) {
		return s.parse(ctx, filename)
	})
	if err != nil {
		if errors.Is(err, ErrUnreadable) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		s.logger.Warn("tip report cache fetch", slog.String("filename", filename), slog.Any("error", err))
		return s.parse(ctx, filename)
	}
	return &parsed, nil
}

func (s *Service) parse(ctx context.Context, filename string) (*csvcodec.ParsedTipReport, error) {
	rc, err := s.store.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, err
	}
	defer rc.Close()
	parsed := csvcodec.ParseTipReport(rc)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, filename)
	}
	return parsed, nil
}

// Build summarises finalized daily reports from start through end and saves
// the result as tip-report-<start>-to-<end>.csv.
func (s *Service) Build(ctx context.Context, start, end time.Time) (SavedReport, error) {
	start, end = reports.NormalizeDate(start), reports.NormalizeDate(end)
	daily, err := s.reports.FinalizedBetween(ctx, start, end)
	if err != nil {
		return SavedReport{}, err
	}
	if len(daily) == 0 {
		return SavedReport{}, fmt.Errorf("%w: %s to %s", ErrNoFinalizedReports,
			start.Format(reports.DateLayout), end.Format(reports.DateLayout))
	}

	report := Summarise(daily)
	report.Start, report.End = start, end

	var buf bytes.Buffer
	if err := csvcodec.EncodeTipReport(&buf, report); err != nil {
		return SavedReport{}, fmt.Errorf("tipreports: encode: %w", err)
	}
	a, err := s.store.Write(ctx, csvcodec.TipReportFilename(start, end), &buf)
	if err != nil {
		return SavedReport{}, err
	}
	s.logger.Info("tip report saved", slog.String("filename", a.Name), slog.Int("days", len(daily)))
	return SavedReport{Filename: a.Name, CreatedAt: a.ModTime, StartDate: &start, EndDate: &end, Size: a.Size}, nil
}

type employeeTotals struct {
	line csvcodec.TipSummaryLine
	days []csvcodec.TipDayLine
}

// Summarise aggregates daily entries per employee. Tips on paycheck are the
// bank card tips; tip out is whatever of paycheck, cash and adjustments the
// employee did not take home.
func Summarise(daily []reports.DailyBalanceReport) csvcodec.TipReport {
	sorted := append([]reports.DailyBalanceReport(nil), daily...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	byEmployee := make(map[int64]*employeeTotals)
	for _, report := range sorted {
		for _, e := range report.Entries {
			totals, ok := byEmployee[e.Employee.ID]
			if !ok {
				totals = &employeeTotals{line: csvcodec.TipSummaryLine{
					EmployeeName: e.Employee.Name,
					Position:     e.Employee.Position,
				}}
				byEmployee[e.Employee.ID] = totals
			}
			tipOut := tipOut(e)
			totals.line.BankCardTips = totals.line.BankCardTips.Add(e.BankCardTips)
			totals.line.CashTips = totals.line.CashTips.Add(e.CashTips)
			totals.line.Adjustments = totals.line.Adjustments.Add(e.Adjustments)
			totals.line.TipsOnPaycheck = totals.line.TipsOnPaycheck.Add(e.BankCardTips)
			totals.line.TipOut = totals.line.TipOut.Add(tipOut)
			totals.line.TakeHome = totals.line.TakeHome.Add(e.CalculatedTakeHome)
			totals.line.Shifts++
			totals.days = append(totals.days, csvcodec.TipDayLine{
				Date:           report.Date,
				BankCardSales:  e.BankCardSales,
				BankCardTips:   e.BankCardTips,
				TotalSales:     e.TotalSales,
				CashTips:       e.CashTips,
				Adjustments:    e.Adjustments,
				TipsOnPaycheck: e.BankCardTips,
				TipOut:         tipOut,
				TakeHome:       e.CalculatedTakeHome,
			})
		}
	}

	all := make([]*employeeTotals, 0, len(byEmployee))
	for _, totals := range byEmployee {
		all = append(all, totals)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].line.EmployeeName == all[j].line.EmployeeName {
			return all[i].line.Position < all[j].line.Position
		}
		return all[i].line.EmployeeName < all[j].line.EmployeeName
	})

	out := csvcodec.TipReport{Title: reportTitle}
	for _, totals := range all {
		out.Summary = append(out.Summary, totals.line)
		out.Details = append(out.Details, csvcodec.TipEmployeeDays{
			Employee: totals.line.EmployeeName,
			Days:     totals.days,
		})
	}
	return out
}

func tipOut(e reports.EmployeeEntry) decimal.Decimal {
	return e.BankCardTips.Add(e.CashTips).Add(e.Adjustments).Sub(e.CalculatedTakeHome)
}
