package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tipbook/backoffice/internal/platform/db"
	"github.com/tipbook/backoffice/internal/shared"
)

// SQLRepository stores reports in the SQLite database.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository constructs the repository.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside one write transaction. The connection is opened
// with _txlock=immediate, so the write lock is taken at BEGIN.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.db == nil {
		return errors.New("reports: repository not initialised")
	}
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(ctx, sqlTx{q: tx})
	})
}

// Get loads the report for date with its entries.
func (r *SQLRepository) Get(ctx context.Context, date time.Time) (DailyBalanceReport, error) {
	return loadByDate(ctx, r.db, date)
}

// ListFinalized returns finalized reports dated in [from, to), newest first.
func (r *SQLRepository) ListFinalized(ctx context.Context, from, to time.Time) ([]DailyBalanceReport, error) {
	rows, err := r.db.QueryContext(ctx, selectReport+`
		WHERE finalized = 1 AND date >= ? AND date < ?
		ORDER BY date DESC`, from.Format(DateLayout), to.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("reports: list finalized: %w", err)
	}
	var out []DailyBalanceReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, report)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		entries, err := loadEntries(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Entries = entries
	}
	return out, nil
}

type sqlTx struct {
	q querier
}

func (t sqlTx) LoadByDate(ctx context.Context, date time.Time) (DailyBalanceReport, error) {
	return loadByDate(ctx, t.q, date)
}

func (t sqlTx) Employees(ctx context.Context, ids []int64) (map[int64]Employee, error) {
	out := make(map[int64]Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := t.q.QueryContext(ctx,
		`SELECT id, name, position FROM employees WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: load employees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Position); err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

func (t sqlTx) Insert(ctx context.Context, r DailyBalanceReport) (int64, error) {
	res, err := t.q.ExecContext(ctx, `INSERT INTO daily_balance (
			date, day_of_week, total_cash_sales, total_card_sales, total_tips_collected,
			notes, finalized, created_by_source, generated_by_id, generated_by_name, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		r.Date.Format(DateLayout), r.DayOfWeek,
		r.TotalCashSales.StringFixed(2), r.TotalCardSales.StringFixed(2), r.TotalTipsCollected.StringFixed(2),
		r.Notes, string(r.CreatedBySource), r.GeneratedBy.ID, r.GeneratedBy.Name, formatTime(r.GeneratedAt))
	if err != nil {
		return 0, fmt.Errorf("reports: insert %s: %w", r.Date.Format(DateLayout), err)
	}
	return res.LastInsertId()
}

func (t sqlTx) Update(ctx context.Context, r DailyBalanceReport) error {
	var edited any
	if r.EditedAt != nil {
		edited = formatTime(*r.EditedAt)
	}
	res, err := t.q.ExecContext(ctx, `UPDATE daily_balance SET
			day_of_week = ?, total_cash_sales = ?, total_card_sales = ?, total_tips_collected = ?,
			notes = ?, edited_at = ?
		WHERE id = ? AND finalized = 0`,
		r.DayOfWeek, r.TotalCashSales.StringFixed(2), r.TotalCardSales.StringFixed(2),
		r.TotalTipsCollected.StringFixed(2), r.Notes, edited, r.ID)
	if err != nil {
		return fmt.Errorf("reports: update %d: %w", r.ID, err)
	}
	return requireOneRow(res)
}

func (t sqlTx) ReplaceEntries(ctx context.Context, reportID int64, entries []EmployeeEntry) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM daily_employee_entries WHERE daily_balance_id = ?`, reportID); err != nil {
		return fmt.Errorf("reports: clear entries: %w", err)
	}
	for _, e := range entries {
		_, err := t.q.ExecContext(ctx, `INSERT INTO daily_employee_entries (
				daily_balance_id, employee_id, bank_card_sales, bank_card_tips, cash_tips,
				total_sales, adjustments, calculated_take_home
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			reportID, e.Employee.ID,
			e.BankCardSales.StringFixed(2), e.BankCardTips.StringFixed(2), e.CashTips.StringFixed(2),
			e.TotalSales.StringFixed(2), e.Adjustments.StringFixed(2), e.CalculatedTakeHome.StringFixed(2))
		if err != nil {
			return fmt.Errorf("reports: insert entry for employee %d: %w", e.Employee.ID, err)
		}
	}
	return nil
}

func (t sqlTx) MarkFinalized(ctx context.Context, reportID int64, by ActorRef, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `UPDATE daily_balance SET
			finalized = 1, finalized_by_id = ?, finalized_by_name = ?,
			finalized_by_source = ?, finalized_at = ?
		WHERE id = ? AND finalized = 0`,
		by.ID, by.Name, string(by.Kind), formatTime(at), reportID)
	if err != nil {
		return fmt.Errorf("reports: finalize %d: %w", reportID, err)
	}
	return requireOneRow(res)
}

// requireOneRow turns a guarded update that matched nothing into
// ErrAlreadyFinalized.
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

const selectReport = `SELECT id, date, day_of_week, total_cash_sales, total_card_sales,
	total_tips_collected, notes, finalized, created_by_source,
	generated_by_id, generated_by_name, generated_at, edited_at,
	finalized_by_id, finalized_by_name, finalized_by_source, finalized_at
	FROM daily_balance`

type rowScanner interface {
	Scan(dest ...any) error
}

func loadByDate(ctx context.Context, q querier, date time.Time) (DailyBalanceReport, error) {
	report, err := scanReport(q.QueryRowContext(ctx, selectReport+` WHERE date = ?`, date.Format(DateLayout)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DailyBalanceReport{}, fmt.Errorf("%w: %s", ErrNotFound, date.Format(DateLayout))
		}
		return DailyBalanceReport{}, err
	}
	report.Entries, err = loadEntries(ctx, q, report.ID)
	if err != nil {
		return DailyBalanceReport{}, err
	}
	return report, nil
}

func scanReport(row rowScanner) (DailyBalanceReport, error) {
	var (
		r                                  DailyBalanceReport
		date, cash, card, tips, source     string
		generatedBy                        sql.NullString
		generatedAt, editedAt, finalizedAt sql.NullString
		finalizedByID                      sql.NullInt64
		finalizedByName, finalizedSource   sql.NullString
	)
	err := row.Scan(&r.ID, &date, &r.DayOfWeek, &cash, &card, &tips, &r.Notes, &r.Finalized, &source,
		&r.GeneratedBy.ID, &generatedBy, &generatedAt, &editedAt,
		&finalizedByID, &finalizedByName, &finalizedSource, &finalizedAt)
	if err != nil {
		return DailyBalanceReport{}, err
	}

	if r.Date, err = time.Parse(DateLayout, date); err != nil {
		return DailyBalanceReport{}, fmt.Errorf("reports: stored date %q: %w", date, err)
	}
	if r.TotalCashSales, err = parseMoney(cash); err != nil {
		return DailyBalanceReport{}, err
	}
	if r.TotalCardSales, err = parseMoney(card); err != nil {
		return DailyBalanceReport{}, err
	}
	if r.TotalTipsCollected, err = parseMoney(tips); err != nil {
		return DailyBalanceReport{}, err
	}
	r.CreatedBySource = shared.ActorKind(source)
	r.GeneratedBy.Name = generatedBy.String
	r.GeneratedBy.Kind = r.CreatedBySource
	if generatedAt.Valid {
		if r.GeneratedAt, err = parseTime(generatedAt.String); err != nil {
			return DailyBalanceReport{}, err
		}
	}
	if r.EditedAt, err = parseNullTime(editedAt); err != nil {
		return DailyBalanceReport{}, err
	}
	if r.FinalizedAt, err = parseNullTime(finalizedAt); err != nil {
		return DailyBalanceReport{}, err
	}
	if r.Finalized && finalizedByID.Valid {
		r.FinalizedBy = &ActorRef{
			ID:   finalizedByID.Int64,
			Name: finalizedByName.String,
			Kind: shared.ActorKind(finalizedSource.String),
		}
	}
	return r, nil
}

func loadEntries(ctx context.Context, q querier, reportID int64) ([]EmployeeEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT e.id, e.daily_balance_id, emp.id, emp.name, emp.position,
			e.bank_card_sales, e.bank_card_tips, e.cash_tips, e.total_sales,
			e.adjustments, e.calculated_take_home
		FROM daily_employee_entries e
		JOIN employees emp ON emp.id = e.employee_id
		WHERE e.daily_balance_id = ?
		ORDER BY e.id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("reports: load entries: %w", err)
	}
	defer rows.Close()

	entries := []EmployeeEntry{}
	for rows.Next() {
		var (
			e       EmployeeEntry
			amounts [6]string
		)
		if err := rows.Scan(&e.ID, &e.ReportID, &e.Employee.ID, &e.Employee.Name, &e.Employee.Position,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5]); err != nil {
			return nil, err
		}
		targets := []*decimal.Decimal{
			&e.BankCardSales, &e.BankCardTips, &e.CashTips, &e.TotalSales, &e.Adjustments, &e.CalculatedTakeHome,
		}
		for i, raw := range amounts {
			v, err := parseMoney(raw)
			if err != nil {
				return nil, err
			}
			*targets[i] = v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func parseMoney(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("reports: stored amount %q: %w", raw, err)
	}
	return d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("reports: stored timestamp %q: %w", raw, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
