package csvcodec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	require.NoError(t, err)
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFormatMoney(t *testing.T) {
	require.Equal(t, "$0.00", FormatMoney(decimal.Zero))
	require.Equal(t, "$17.00", FormatMoney(dec("17")))
	require.Equal(t, "$12.35", FormatMoney(dec("12.345")))
	require.Equal(t, "$-5.00", FormatMoney(dec("-5")))
}

func TestEncodeDailyBalanceEmployeeRow(t *testing.T) {
	date := mustDate(t, "2025-06-01")
	var buf bytes.Buffer
	err := EncodeDailyBalance(&buf, DailyBalance{
		Date:               date,
		DayOfWeek:          date.Weekday().String(),
		TotalCashSales:     dec("300"),
		TotalCardSales:     dec("120"),
		TotalTipsCollected: dec("17"),
	}, []EmployeeLine{{
		Name:               "Jane Doe",
		Position:           "Server",
		BankCardSales:      dec("100.00"),
		BankCardTips:       dec("12.00"),
		CashTips:           dec("5.00"),
		TotalSales:         dec("120.00"),
		Adjustments:        dec("0.00"),
		CalculatedTakeHome: dec("17.00"),
	}})
	require.NoError(t, err)

	rows := readRows(bytes.NewReader(buf.Bytes()))
	require.Equal(t, []string{"Daily Balance Report"}, rows[0])
	require.Equal(t, []string{"Date", "2025-06-01"}, rows[1])
	require.Equal(t, []string{"Day of Week", "Sunday"}, rows[2])
	require.Empty(t, rows[3])
	require.Equal(t, []string{"Total Cash Sales", "$300.00"}, rows[5])
	require.Empty(t, rows[8], "notes row is omitted when empty")
	require.Equal(t, "Employee Breakdown", rows[9][0])
	require.Equal(t, employeeBreakdownHeader, rows[10])

	employee := rows[11]
	require.Equal(t, "Jane Doe", employee[0])
	require.Equal(t, "$100.00", employee[2])
	require.Equal(t, "$17.00", employee[7])
	require.Len(t, rows, 12)
}

func TestEncodeDailyBalanceNotesAreQuoted(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeDailyBalance(&buf, DailyBalance{
		Date:  mustDate(t, "2025-06-02"),
		Notes: "short staffed, \"busy\"\nsecond line",
	}, nil)
	require.NoError(t, err)

	rows := readRows(bytes.NewReader(buf.Bytes()))
	require.Equal(t, []string{"Notes", "short staffed, \"busy\"\nsecond line"}, rows[8])
	require.Empty(t, rows[9])
	require.Equal(t, "Employee Breakdown", rows[10][0])
}

func TestParseTipReportTooShort(t *testing.T) {
	require.Nil(t, ParseTipReport(strings.NewReader("")))
	require.Nil(t, ParseTipReport(strings.NewReader("Employee Tip Report\r\n")))
}

func TestParseTipReportSummaryWithoutDetails(t *testing.T) {
	input := strings.Join([]string{
		"Tip Report",
		"Date Range,2025-06-01 to 2025-06-07",
		"",
		"Employee Name,Position,Bank Card Tips,Cash Tips,Adjustments,Tips on Paycheck,Tip Out,Take Home,Shifts",
		"Jane Doe,Server,$12.00,$5.00,$0.00,$12.00,$0.00,$17.00,1",
		"Short,Row",
		"John Roe,Bartender,$8.00,$2.00,$1.00,$9.00,$0.00,$11.00,2",
		"",
	}, "\n")

	report := ParseTipReport(strings.NewReader(input))
	require.NotNil(t, report)
	require.Equal(t, "Tip Report", report.Title)
	require.Equal(t, "2025-06-01 to 2025-06-07", report.DateRange)
	require.Len(t, report.Summary, 2)
	require.Equal(t, "Jane Doe", report.Summary[0].EmployeeName)
	require.Equal(t, "$17.00", report.Summary[0].TakeHome)
	require.Equal(t, "2", report.Summary[1].NumShifts)
	require.NotNil(t, report.Details)
	require.Empty(t, report.Details)
}

func TestParseTipReportLegacyWithoutSections(t *testing.T) {
	report := ParseTipReport(strings.NewReader("Old Report\nonly-one-field\nfoo,bar\n"))
	require.NotNil(t, report)
	require.Equal(t, "Old Report", report.Title)
	require.Equal(t, "", report.DateRange)
	require.Empty(t, report.Summary)
	require.Empty(t, report.Details)
}

func TestParseTipReportBlankFirstRowUsesDefaultTitle(t *testing.T) {
	report := ParseTipReport(strings.NewReader("\nDate Range,x\n"))
	require.NotNil(t, report)
	require.Equal(t, defaultTipTitle, report.Title)
	require.Equal(t, "x", report.DateRange)
}

func TestParseTipReportSummaryHeaderOnFirstRow(t *testing.T) {
	input := "Employee Name,Position,a,b,c,d,e,f,g\nJane,Server,1,2,3,4,5,6,7\n"
	report := ParseTipReport(strings.NewReader(input))
	require.NotNil(t, report)
	require.Len(t, report.Summary, 1)
	require.Equal(t, "Jane", report.Summary[0].EmployeeName)
}

func TestParseTipReportDetails(t *testing.T) {
	input := strings.Join([]string{
		"\ufeffTip Report",
		"Date Range,2025-06-01 to 2025-06-02",
		"Employee Name,Position,Bank Card Tips,Cash Tips,Adjustments,Tips on Paycheck,Tip Out,Take Home,Shifts",
		"Jane Doe,Server,$12.00,$5.00,$0.00,$12.00,$0.00,$17.00,1",
		"Detailed Daily Breakdown",
		"",
		"2025-05-31,Saturday,ignored,before,any,employee,group,x,y,z",
		"Employee: Jane Doe",
		"Date,Day,Bank Card Sales,Bank Card Tips,Total Sales,Cash Tips,Adjustments,Tips on Paycheck,Tip Out,Take Home",
		"2025-06-01,Sunday,$100.00,$12.00,$120.00,$5.00,$0.00,$12.00,$0.00,$17.00",
		"2025-06-02,Monday,too,short",
		"TOTAL,,$100.00,$12.00,$120.00,$5.00,$0.00,$12.00,$0.00,$17.00",
		"",
		"Employee: Empty Group",
		"Date,Day,Bank Card Sales,Bank Card Tips,Total Sales,Cash Tips,Adjustments,Tips on Paycheck,Tip Out,Take Home",
		"Employee: John Roe",
		"2025-06-02,Monday,$50.00,$8.00,$60.00,$2.00,$1.00,$9.00,$0.00,$11.00",
	}, "\r\n")

	report := ParseTipReport(strings.NewReader(input))
	require.NotNil(t, report)
	require.Equal(t, "Tip Report", report.Title)
	require.Len(t, report.Summary, 1)
	require.Len(t, report.Details, 2)

	jane := report.Details[0]
	require.Equal(t, "Jane Doe", jane.Employee)
	require.Len(t, jane.Entries, 1)
	require.Equal(t, "Sunday", jane.Entries[0].Day)
	require.Equal(t, "$120.00", jane.Entries[0].TotalSales)

	john := report.Details[1]
	require.Equal(t, "John Roe", john.Employee)
	require.Len(t, john.Entries, 1)
	require.Equal(t, "$11.00", john.Entries[0].TakeHome)
}

func TestTipReportRoundTrip(t *testing.T) {
	start, end := mustDate(t, "2025-06-01"), mustDate(t, "2025-06-02")
	in := TipReport{
		Title: "Employee Tip Report",
		Start: start,
		End:   end,
		Summary: []TipSummaryLine{{
			EmployeeName: "Jane Doe", Position: "Server",
			BankCardTips: dec("20"), CashTips: dec("5"), Adjustments: dec("-1.5"),
			TipsOnPaycheck: dec("20"), TipOut: dec("2"), TakeHome: dec("21.5"), Shifts: 2,
		}},
		Details: []TipEmployeeDays{{
			Employee: "Jane Doe",
			Days: []TipDayLine{
				{Date: start, BankCardSales: dec("100"), BankCardTips: dec("12"), TotalSales: dec("120"), CashTips: dec("5"), TipsOnPaycheck: dec("12"), TakeHome: dec("17")},
				{Date: end, BankCardSales: dec("40"), BankCardTips: dec("8"), TotalSales: dec("40"), Adjustments: dec("-1.5"), TipsOnPaycheck: dec("8"), TipOut: dec("2"), TakeHome: dec("4.5")},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeTipReport(&buf, in))

	out := ParseTipReport(bytes.NewReader(buf.Bytes()))
	require.NotNil(t, out)
	require.Equal(t, "Employee Tip Report", out.Title)
	require.Equal(t, "2025-06-01 to 2025-06-02", out.DateRange)
	require.Equal(t, []TipSummaryRow{{
		EmployeeName: "Jane Doe", Position: "Server",
		BankCardTips: "$20.00", CashTips: "$5.00", Adjustments: "$-1.50",
		TipsOnPaycheck: "$20.00", TipOut: "$2.00", TakeHome: "$21.50", NumShifts: "2",
	}}, out.Summary)
	require.Len(t, out.Details, 1)
	require.Len(t, out.Details[0].Entries, 2)
	require.Equal(t, "2025-06-02", out.Details[0].Entries[1].Date)
	require.Equal(t, "Monday", out.Details[0].Entries[1].Day)
	require.Equal(t, "$-1.50", out.Details[0].Entries[1].Adjustments)
}

func TestReadRowsKeepsBlankLines(t *testing.T) {
	rows := readRows(strings.NewReader("a,b\r\n\r\n\"multi\nline\",c\r\n\r\nd\r\n\r\n"))
	require.Equal(t, [][]string{
		{"a", "b"},
		{},
		{"multi\nline", "c"},
		{},
		{"d"},
		{},
	}, rows)
}

func TestTipReportFilename(t *testing.T) {
	start, end := mustDate(t, "2025-06-01"), mustDate(t, "2025-06-07")
	name := TipReportFilename(start, end)
	require.Equal(t, "tip-report-2025-06-01-to-2025-06-07.csv", name)

	gotStart, gotEnd, ok := ParseTipReportFilename(name)
	require.True(t, ok)
	require.True(t, gotStart.Equal(start))
	require.True(t, gotEnd.Equal(end))

	_, _, ok = ParseTipReportFilename("tip-report-bad.csv")
	require.False(t, ok)
	_, _, ok = ParseTipReportFilename("2025-06-01-daily-balance.csv")
	require.False(t, ok)
	require.Equal(t, "2025-06-01-daily-balance.csv", DailyBalanceFilename(start))
}
