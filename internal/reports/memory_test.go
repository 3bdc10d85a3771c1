package reports

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryRepo struct {
	mu        sync.Mutex
	employees map[int64]Employee
	reports   map[string]DailyBalanceReport
	nextID    int64
	nextEntry int64
}

func newMemoryRepo(employees ...Employee) *memoryRepo {
	m := &memoryRepo{
		employees: make(map[int64]Employee),
		reports:   make(map[string]DailyBalanceReport),
	}
	for _, e := range employees {
		m.employees[e.ID] = e
	}
	return m
}

func cloneReport(r DailyBalanceReport) DailyBalanceReport {
	r.Entries = append([]EmployeeEntry(nil), r.Entries...)
	if r.Entries == nil {
		r.Entries = []EmployeeEntry{}
	}
	return r
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]DailyBalanceReport, len(m.reports))
	for k, v := range m.reports {
		snapshot[k] = cloneReport(v)
	}
	nextID, nextEntry := m.nextID, m.nextEntry
	if err := fn(ctx, memoryTx{m}); err != nil {
		m.reports, m.nextID, m.nextEntry = snapshot, nextID, nextEntry
		return err
	}
	return nil
}

func (m *memoryRepo) Get(_ context.Context, date time.Time) (DailyBalanceReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[date.Format(DateLayout)]
	if !ok {
		return DailyBalanceReport{}, fmt.Errorf("%w: %s", ErrNotFound, date.Format(DateLayout))
	}
	return cloneReport(r), nil
}

func (m *memoryRepo) ListFinalized(_ context.Context, from, to time.Time) ([]DailyBalanceReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DailyBalanceReport
	for _, r := range m.reports {
		if r.Finalized && !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, cloneReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

type memoryTx struct {
	m *memoryRepo
}

func (t memoryTx) byID(id int64) (string, DailyBalanceReport, bool) {
	for k, r := range t.m.reports {
		if r.ID == id {
			return k, r, true
		}
	}
	return "", DailyBalanceReport{}, false
}

func (t memoryTx) LoadByDate(_ context.Context, date time.Time) (DailyBalanceReport, error) {
	r, ok := t.m.reports[date.Format(DateLayout)]
	if !ok {
		return DailyBalanceReport{}, fmt.Errorf("%w: %s", ErrNotFound, date.Format(DateLayout))
	}
	return cloneReport(r), nil
}

func (t memoryTx) Employees(_ context.Context, ids []int64) (map[int64]Employee, error) {
	out := make(map[int64]Employee)
	for _, id := range ids {
		if e, ok := t.m.employees[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (t memoryTx) Insert(_ context.Context, r DailyBalanceReport) (int64, error) {
	key := r.Date.Format(DateLayout)
	if _, ok := t.m.reports[key]; ok {
		return 0, fmt.Errorf("unique constraint failed: daily_balance.date")
	}
	t.m.nextID++
	r.ID = t.m.nextID
	r.Entries = nil
	t.m.reports[key] = r
	return r.ID, nil
}

func (t memoryTx) Update(_ context.Context, r DailyBalanceReport) error {
	key, current, ok := t.byID(r.ID)
	if !ok || current.Finalized {
		return ErrAlreadyFinalized
	}
	current.DayOfWeek = r.DayOfWeek
	current.TotalCashSales = r.TotalCashSales
	current.TotalCardSales = r.TotalCardSales
	current.TotalTipsCollected = r.TotalTipsCollected
	current.Notes = r.Notes
	current.EditedAt = r.EditedAt
	t.m.reports[key] = current
	return nil
}

func (t memoryTx) ReplaceEntries(_ context.Context, reportID int64, entries []EmployeeEntry) error {
	key, current, ok := t.byID(reportID)
	if !ok {
		return fmt.Errorf("report %d missing", reportID)
	}
	current.Entries = nil
	for _, e := range entries {
		t.m.nextEntry++
		e.ID = t.m.nextEntry
		e.ReportID = reportID
		current.Entries = append(current.Entries, e)
	}
	t.m.reports[key] = current
	return nil
}

func (t memoryTx) MarkFinalized(_ context.Context, reportID int64, by ActorRef, at time.Time) error {
	key, current, ok := t.byID(reportID)
	if !ok || current.Finalized {
		return ErrAlreadyFinalized
	}
	current.Finalized = true
	current.FinalizedBy = &by
	current.FinalizedAt = &at
	t.m.reports[key] = current
	return nil
}
