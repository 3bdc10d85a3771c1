package csvcodec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParsedTipReport is the structured view of a saved tip report file.
type ParsedTipReport struct {
	Title     string           `json:"title"`
	DateRange string           `json:"date_range"`
	Summary   []TipSummaryRow  `json:"summary"`
	Details   []EmployeeDetail `json:"details"`
}

type TipSummaryRow struct {
	EmployeeName   string `json:"employee_name"`
	Position       string `json:"position"`
	BankCardTips   string `json:"bank_card_tips"`
	CashTips       string `json:"cash_tips"`
	Adjustments    string `json:"adjustments"`
	TipsOnPaycheck string `json:"tips_on_paycheck"`
	TipOut         string `json:"tip_out"`
	TakeHome       string `json:"take_home"`
	NumShifts      string `json:"num_shifts"`
}

type EmployeeDetail struct {
	Employee string         `json:"employee"`
	Entries  []TipDetailRow `json:"entries"`
}

type TipDetailRow struct {
	Date           string `json:"date"`
	Day            string `json:"day"`
	BankCardSales  string `json:"bank_card_sales"`
	BankCardTips   string `json:"bank_card_tips"`
	TotalSales     string `json:"total_sales"`
	CashTips       string `json:"cash_tips"`
	Adjustments    string `json:"adjustments"`
	TipsOnPaycheck string `json:"tips_on_paycheck"`
	TipOut         string `json:"tip_out"`
	TakeHome       string `json:"take_home"`
}

// ParseTipReport decodes a tip report. It never fails: input with fewer
// than two rows yields nil, and a missing summary or details section
// yields an empty list for that section.
func ParseTipReport(r io.Reader) *ParsedTipReport {
	rows := readRows(r)
	if len(rows) < 2 {
		return nil
	}

	report := &ParsedTipReport{
		Title:   defaultTipTitle,
		Summary: []TipSummaryRow{},
		Details: []EmployeeDetail{},
	}
	if len(rows[0]) > 0 {
		report.Title = rows[0][0]
	}
	if len(rows[1]) > 1 {
		report.DateRange = rows[1][1]
	}

	summaryStart, detailsStart := -1, -1
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if row[0] == summaryHeaderField {
			summaryStart = i
		} else if strings.Contains(row[0], detailsMarker) {
			detailsStart = i
			break
		}
	}

	if summaryStart >= 0 {
		report.Summary = parseSummary(rows[summaryStart+1:])
	}
	if detailsStart >= 0 && detailsStart+2 <= len(rows) {
		report.Details = parseDetails(rows[detailsStart+2:])
	}
	return report
}

func parseSummary(rows [][]string) []TipSummaryRow {
	out := []TipSummaryRow{}
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" || strings.Contains(row[0], "Detailed") {
			break
		}
		if len(row) < 9 {
			continue
		}
		out = append(out, TipSummaryRow{
			EmployeeName:   row[0],
			Position:       row[1],
			BankCardTips:   row[2],
			CashTips:       row[3],
			Adjustments:    row[4],
			TipsOnPaycheck: row[5],
			TipOut:         row[6],
			TakeHome:       row[7],
			NumShifts:      row[8],
		})
	}
	return out
}

func parseDetails(rows [][]string) []EmployeeDetail {
	out := []EmployeeDetail{}
	var current *EmployeeDetail
	flush := func() {
		if current != nil && len(current.Entries) > 0 {
			out = append(out, *current)
		}
		current = nil
	}

	for _, row := range rows {
		switch {
		case len(row) == 0 || row[0] == "":
			flush()
		case strings.HasPrefix(row[0], employeePrefix):
			flush()
			current = &EmployeeDetail{
				Employee: strings.TrimSpace(strings.TrimPrefix(row[0], employeePrefix)),
				Entries:  []TipDetailRow{},
			}
		case row[0] == "Date", row[0] == "TOTAL":
		case current == nil, len(row) < 10:
		default:
			current.Entries = append(current.Entries, TipDetailRow{
				Date:           row[0],
				Day:            row[1],
				BankCardSales:  row[2],
				BankCardTips:   row[3],
				TotalSales:     row[4],
				CashTips:       row[5],
				Adjustments:    row[6],
				TipsOnPaycheck: row[7],
				TipOut:         row[8],
				TakeHome:       row[9],
			})
		}
	}
	flush()
	return out
}

// readRows returns every physical row of the input, blank lines included
// as empty rows. encoding/csv drops blank lines, so they are restored from
// the line numbers reported by FieldPos. A leading byte order mark is
// removed. Reading stops quietly at the first unrecoverable error.
func readRows(r io.Reader) [][]string {
	raw, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil && len(raw) == 0 {
		return nil
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	next := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		line, _ := cr.FieldPos(0)
		for ; next < line; next++ {
			rows = append(rows, []string{})
		}
		rows = append(rows, record)
		last := len(record) - 1
		lastLine, _ := cr.FieldPos(last)
		next = lastLine + strings.Count(record[last], "\n") + 1
	}

	for total := physicalLines(raw); next <= total; next++ {
		rows = append(rows, []string{})
	}
	return rows
}

// physicalLines counts lines the way a line-oriented reader would: a final
// line without a terminating newline still counts.
func physicalLines(raw []byte) int {
	n := bytes.Count(raw, []byte("\n"))
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		n++
	}
	return n
}
