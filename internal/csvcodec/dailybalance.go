package csvcodec

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// DailyBalance is the report header and totals block of a single-day export.
type DailyBalance struct {
	Date               time.Time
	DayOfWeek          string
	TotalCashSales     decimal.Decimal
	TotalCardSales     decimal.Decimal
	TotalTipsCollected decimal.Decimal
	Notes              string
}

// EmployeeLine is one row of the employee breakdown table.
type EmployeeLine struct {
	Name               string
	Position           string
	BankCardSales      decimal.Decimal
	BankCardTips       decimal.Decimal
	CashTips           decimal.Decimal
	TotalSales         decimal.Decimal
	Adjustments        decimal.Decimal
	CalculatedTakeHome decimal.Decimal
}

var employeeBreakdownHeader = []string{
	"Employee Name",
	"Position",
	"Bank Card Sales",
	"Bank Card Tips",
	"Cash Tips",
	"Total Sales",
	"Adjustments",
	"Take-Home Tips",
}

// EncodeDailyBalance writes the report header, the financial summary and
// the employee breakdown, in that order, separated by blank lines.
func EncodeDailyBalance(w io.Writer, report DailyBalance, entries []EmployeeLine) error {
	out := newRowWriter(w)

	rows := [][]string{
		{"Daily Balance Report"},
		{"Date", report.Date.Format(dateLayout)},
		{"Day of Week", report.DayOfWeek},
		{},
		{"Daily Financial Summary"},
		{"Total Cash Sales", FormatMoney(report.TotalCashSales)},
		{"Total Card Sales", FormatMoney(report.TotalCardSales)},
		{"Total Tips Collected", FormatMoney(report.TotalTipsCollected)},
	}
	if report.Notes != "" {
		rows = append(rows, []string{"Notes", report.Notes})
	}
	rows = append(rows, []string{}, []string{"Employee Breakdown"}, employeeBreakdownHeader)
	if err := out.writeAll(rows); err != nil {
		return err
	}

	for _, e := range entries {
		if err := out.writeRow(
			e.Name,
			e.Position,
			FormatMoney(e.BankCardSales),
			FormatMoney(e.BankCardTips),
			FormatMoney(e.CashTips),
			FormatMoney(e.TotalSales),
			FormatMoney(e.Adjustments),
			FormatMoney(e.CalculatedTakeHome),
		); err != nil {
			return err
		}
	}
	return out.Flush()
}
