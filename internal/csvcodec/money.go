package csvcodec

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// FormatMoney renders an amount as "$" followed by exactly two decimals.
// Negative amounts keep the sign after the currency symbol: "$-5.00".
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// DailyBalanceFilename is the export name of a single-day report.
func DailyBalanceFilename(date time.Time) string {
	return date.Format(dateLayout) + "-daily-balance.csv"
}

// TipReportFilename is the export name of a date-range tip report.
func TipReportFilename(start, end time.Time) string {
	return fmt.Sprintf("tip-report-%s-to-%s.csv", start.Format(dateLayout), end.Format(dateLayout))
}

// ParseTipReportFilename extracts the range from a tip report file name.
// ok is false when the name does not follow TipReportFilename.
func ParseTipReportFilename(name string) (start, end time.Time, ok bool) {
	if !strings.HasPrefix(name, "tip-report-") || !strings.HasSuffix(name, ".csv") {
		return time.Time{}, time.Time{}, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, "tip-report-"), ".csv")
	parts := strings.Split(body, "-to-")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(dateLayout, parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(dateLayout, parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
