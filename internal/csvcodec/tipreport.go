package csvcodec

import (
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	summaryHeaderField = "Employee Name"
	detailsMarker      = "Detailed Daily Breakdown"
	employeePrefix     = "Employee:"
	defaultTipTitle    = "Employee Tip Report"
)

// TipReport is the date-range tip report written by EncodeTipReport.
type TipReport struct {
	Title   string
	Start   time.Time
	End     time.Time
	Summary []TipSummaryLine
	Details []TipEmployeeDays
}

// TipSummaryLine aggregates one employee over the report range.
type TipSummaryLine struct {
	EmployeeName   string
	Position       string
	BankCardTips   decimal.Decimal
	CashTips       decimal.Decimal
	Adjustments    decimal.Decimal
	TipsOnPaycheck decimal.Decimal
	TipOut         decimal.Decimal
	TakeHome       decimal.Decimal
	Shifts         int
}

// TipEmployeeDays is one employee's per-day breakdown.
type TipEmployeeDays struct {
	Employee string
	Days     []TipDayLine
}

type TipDayLine struct {
	Date           time.Time
	BankCardSales  decimal.Decimal
	BankCardTips   decimal.Decimal
	TotalSales     decimal.Decimal
	CashTips       decimal.Decimal
	Adjustments    decimal.Decimal
	TipsOnPaycheck decimal.Decimal
	TipOut         decimal.Decimal
	TakeHome       decimal.Decimal
}

// DateRangeLabel is the human label stored in the second row of a tip report.
func DateRangeLabel(start, end time.Time) string {
	return start.Format(dateLayout) + " to " + end.Format(dateLayout)
}

var (
	tipSummaryHeader = []string{
		summaryHeaderField, "Position", "Bank Card Tips", "Cash Tips", "Adjustments",
		"Tips on Paycheck", "Tip Out", "Take Home", "Shifts",
	}
	tipDetailHeader = []string{
		"Date", "Day", "Bank Card Sales", "Bank Card Tips", "Total Sales", "Cash Tips",
		"Adjustments", "Tips on Paycheck", "Tip Out", "Take Home",
	}
)

// EncodeTipReport writes a report that ParseTipReport reads back unchanged.
func EncodeTipReport(w io.Writer, report TipReport) error {
	out := newRowWriter(w)
	title := report.Title
	if title == "" {
		title = defaultTipTitle
	}

	rows := [][]string{
		{title},
		{"Date Range", DateRangeLabel(report.Start, report.End)},
		{},
		{"Summary"},
		tipSummaryHeader,
	}
	for _, s := range report.Summary {
		rows = append(rows, []string{
			s.EmployeeName,
			s.Position,
			FormatMoney(s.BankCardTips),
			FormatMoney(s.CashTips),
			FormatMoney(s.Adjustments),
			FormatMoney(s.TipsOnPaycheck),
			FormatMoney(s.TipOut),
			FormatMoney(s.TakeHome),
			strconv.Itoa(s.Shifts),
		})
	}
	rows = append(rows, []string{}, []string{detailsMarker}, []string{})
	if err := out.writeAll(rows); err != nil {
		return err
	}

	for _, group := range report.Details {
		if err := out.writeRow(employeePrefix + " " + group.Employee); err != nil {
			return err
		}
		if err := out.writeRow(tipDetailHeader...); err != nil {
			return err
		}
		var total TipDayLine
		for _, d := range group.Days {
			if err := out.writeRow(dayRow(d.Date.Format(dateLayout), d.Date.Weekday().String(), d)...); err != nil {
				return err
			}
			total = addDay(total, d)
		}
		if err := out.writeRow(dayRow("TOTAL", "", total)...); err != nil {
			return err
		}
		if err := out.blank(); err != nil {
			return err
		}
	}
	return out.Flush()
}

func dayRow(date, day string, d TipDayLine) []string {
	return []string{
		date,
		day,
		FormatMoney(d.BankCardSales),
		FormatMoney(d.BankCardTips),
		FormatMoney(d.TotalSales),
		FormatMoney(d.CashTips),
		FormatMoney(d.Adjustments),
		FormatMoney(d.TipsOnPaycheck),
		FormatMoney(d.TipOut),
		FormatMoney(d.TakeHome),
	}
}

func addDay(acc, d TipDayLine) TipDayLine {
	acc.BankCardSales = acc.BankCardSales.Add(d.BankCardSales)
	acc.BankCardTips = acc.BankCardTips.Add(d.BankCardTips)
	acc.TotalSales = acc.TotalSales.Add(d.TotalSales)
	acc.CashTips = acc.CashTips.Add(d.CashTips)
	acc.Adjustments = acc.Adjustments.Add(d.Adjustments)
	acc.TipsOnPaycheck = acc.TipsOnPaycheck.Add(d.TipsOnPaycheck)
	acc.TipOut = acc.TipOut.Add(d.TipOut)
	acc.TakeHome = acc.TakeHome.Add(d.TakeHome)
	return acc
}
