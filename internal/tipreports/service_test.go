package tipreports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tipbook/backoffice/internal/platform/artifact"
	"github.com/tipbook/backoffice/internal/reports"
)

type stubSource struct {
	reports []reports.DailyBalanceReport
	err     error
	calls   int
}

func (s *stubSource) FinalizedBetween(_ context.Context, start, end time.Time) ([]reports.DailyBalanceReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []reports.DailyBalanceReport
	for _, r := range s.reports {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := reports.ParseDate(raw)
	require.NoError(t, err)
	return d
}

var (
	jane = reports.Employee{ID: 1, Name: "Jane Doe", Position: "Server"}
	abe  = reports.Employee{ID: 2, Name: "Abe Lin", Position: "Bartender"}
)

func finalizedDays(t *testing.T) []reports.DailyBalanceReport {
	return []reports.DailyBalanceReport{
		{
			Date:      date(t, "2025-06-02"),
			Finalized: true,
			Entries: []reports.EmployeeEntry{
				{Employee: jane, BankCardSales: dec("40"), BankCardTips: dec("8"), TotalSales: dec("40"), CashTips: dec("2"), Adjustments: dec("-1"), CalculatedTakeHome: dec("7")},
			},
		},
		{
			Date:      date(t, "2025-06-01"),
			Finalized: true,
			Entries: []reports.EmployeeEntry{
				{Employee: jane, BankCardSales: dec("100"), BankCardTips: dec("12"), TotalSales: dec("120"), CashTips: dec("5"), CalculatedTakeHome: dec("17")},
				{Employee: abe, BankCardSales: dec("60"), BankCardTips: dec("9"), TotalSales: dec("70"), CashTips: dec("1"), CalculatedTakeHome: dec("8")},
			},
		},
	}
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Hour), mr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSummarise(t *testing.T) {
	report := Summarise(finalizedDays(t))
	require.Equal(t, "Employee Tip Report", report.Title)
	require.Len(t, report.Summary, 2)

	abeLine, janeLine := report.Summary[0], report.Summary[1]
	require.Equal(t, "Abe Lin", abeLine.EmployeeName)
	require.Equal(t, 1, abeLine.Shifts)
	require.Equal(t, "2.00", abeLine.TipOut.StringFixed(2))

	require.Equal(t, "Jane Doe", janeLine.EmployeeName)
	require.Equal(t, 2, janeLine.Shifts)
	require.Equal(t, "20.00", janeLine.BankCardTips.StringFixed(2))
	require.Equal(t, "20.00", janeLine.TipsOnPaycheck.StringFixed(2))
	require.Equal(t, "-1.00", janeLine.Adjustments.StringFixed(2))
	require.Equal(t, "24.00", janeLine.TakeHome.StringFixed(2))
	require.Equal(t, "2.00", janeLine.TipOut.StringFixed(2))

	require.Len(t, report.Details, 2)
	janeDays := report.Details[1].Days
	require.Len(t, janeDays, 2)
	require.Equal(t, "2025-06-01", janeDays[0].Date.Format(reports.DateLayout), "days are chronological")
}

func TestBuildSavesAndLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cache, mr := newCache(t)
	svc := NewService(artifact.NewDir(dir), &stubSource{reports: finalizedDays(t)}, cache, discardLogger())

	saved, err := svc.Build(ctx, date(t, "2025-06-01"), date(t, "2025-06-07"))
	require.NoError(t, err)
	require.Equal(t, "tip-report-2025-06-01-to-2025-06-07.csv", saved.Filename)
	require.Positive(t, saved.Size)

	parsed, err := svc.Load(ctx, saved.Filename)
	require.NoError(t, err)
	require.Equal(t, "2025-06-01 to 2025-06-07", parsed.DateRange)
	require.Len(t, parsed.Summary, 2)
	require.Equal(t, "$24.00", parsed.Summary[1].TakeHome)
	require.Len(t, parsed.Details, 2)
	require.Equal(t, "Jane Doe", parsed.Details[1].Employee)
	require.Len(t, parsed.Details[1].Entries, 2)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Contains(t, keys[0], "tipreports:parsed:"+saved.Filename+":")

	// Served from cache even after the file body changes in place with
	// identical size and mtime.
	path := filepath.Join(dir, saved.Filename)
	info, err := os.Stat(path)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(body, []byte("X"))
	require.NoError(t, os.WriteFile(path, body, 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	cached, err := svc.Load(ctx, saved.Filename)
	require.NoError(t, err)
	require.Equal(t, parsed, cached)
}

func TestBuildWithoutFinalizedReports(t *testing.T) {
	svc := NewService(artifact.NewDir(t.TempDir()), &stubSource{}, nil, discardLogger())
	_, err := svc.Build(context.Background(), date(t, "2025-01-01"), date(t, "2025-01-07"))
	require.ErrorIs(t, err, ErrNoFinalizedReports)

	boom := errors.New("db down")
	svc = NewService(artifact.NewDir(t.TempDir()), &stubSource{err: boom}, nil, discardLogger())
	_, err = svc.Build(context.Background(), date(t, "2025-01-01"), date(t, "2025-01-07"))
	require.ErrorIs(t, err, boom)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.csv"), []byte("only title\n"), 0o644))
	cache, mr := newCache(t)
	svc := NewService(artifact.NewDir(dir), &stubSource{}, cache, discardLogger())

	_, err := svc.Load(ctx, "../secret.csv")
	require.ErrorIs(t, err, ErrInvalidFilename)
	_, err = svc.Load(ctx, "report.txt")
	require.ErrorIs(t, err, ErrInvalidFilename)
	_, err = svc.Load(ctx, "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Load(ctx, "short.csv")
	require.ErrorIs(t, err, ErrUnreadable)

	require.Empty(t, mr.Keys(), "failures are not cached")
}

func TestLoadWithoutCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.csv"), []byte("Legacy\nDate Range,May\n"), 0o644))
	svc := NewService(artifact.NewDir(dir), &stubSource{}, nil, discardLogger())

	parsed, err := svc.Load(context.Background(), "legacy.csv")
	require.NoError(t, err)
	require.Equal(t, "Legacy", parsed.Title)
	require.Equal(t, "May", parsed.DateRange)
	require.Empty(t, parsed.Summary)
	require.Empty(t, parsed.Details)
}

func TestListParsesRangesAndLimits(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	names := []string{
		"tip-report-2025-05-01-to-2025-05-07.csv",
		"tip-report-2025-05-08-to-2025-05-14.csv",
		"custom-export.csv",
		"notes.txt",
	}
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(path, at, at))
	}
	svc := NewService(artifact.NewDir(dir), &stubSource{}, nil, discardLogger())

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "custom-export.csv", list[0].Filename)
	require.Nil(t, list[0].StartDate)
	require.Equal(t, "tip-report-2025-05-08-to-2025-05-14.csv", list[1].Filename)
	require.Equal(t, "2025-05-14", list[1].EndDate.Format(reports.DateLayout))

	list, err = svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestLoadRereadsRewrittenFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cache, mr := newCache(t)
	svc := NewService(artifact.NewDir(dir), &stubSource{}, cache, discardLogger())

	path := filepath.Join(dir, "week.csv")
	require.NoError(t, os.WriteFile(path, []byte("First\nDate Range,May\n"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	parsed, err := svc.Load(ctx, "week.csv")
	require.NoError(t, err)
	require.Equal(t, "First", parsed.Title)

	require.NoError(t, os.WriteFile(path, []byte("Second\nDate Range,June\n"), 0o644))
	parsed, err = svc.Load(ctx, "week.csv")
	require.NoError(t, err)
	require.Equal(t, "Second", parsed.Title)
	require.Len(t, mr.Keys(), 2)
}

func TestCacheKeyAndNilCache(t *testing.T) {
	require.Equal(t, "tipreports:parsed:a.csv:1:2", Key("parsed", "a.csv", "1", "2"))

	var nilCache *Cache
	var out string
	err := nilCache.FetchJSON(context.Background(), Key("x"), &out, func(context.Context) (interface{}, error) {
		return "loaded", nil
	})
	require.NoError(t, err)
	require.Equal(t, "loaded", out)
}
