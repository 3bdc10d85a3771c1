package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tipbook/backoffice/internal/shared"
)

// State enumerates the report lifecycle stages.
type State string

const (
	StateUnsaved   State = "UNSAVED"
	StateGenerated State = "GENERATED"
	StateFinalized State = "FINALIZED"
)

// DateLayout is the wire and storage format of report dates.
const DateLayout = "2006-01-02"

// ActorRef records who performed a lifecycle event.
type ActorRef struct {
	ID   int64            `json:"id"`
	Name string           `json:"name"`
	Kind shared.ActorKind `json:"kind"`
}

// RefOf converts an authenticated actor to the stored reference.
func RefOf(a shared.Actor) ActorRef {
	return ActorRef{ID: a.ID, Name: a.Name, Kind: a.Kind}
}

// Employee is the registry entry an entry points at.
type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
}

// EmployeeEntry is one employee's figures for the day.
type EmployeeEntry struct {
	ID                 int64           `json:"id"`
	ReportID           int64           `json:"report_id"`
	Employee           Employee        `json:"employee"`
	BankCardSales      decimal.Decimal `json:"bank_card_sales"`
	BankCardTips       decimal.Decimal `json:"bank_card_tips"`
	CashTips           decimal.Decimal `json:"cash_tips"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	Adjustments        decimal.Decimal `json:"adjustments"`
	CalculatedTakeHome decimal.Decimal `json:"calculated_take_home"`
}

// DailyBalanceReport is the per-date aggregated report.
type DailyBalanceReport struct {
	ID                 int64            `json:"id"`
	Date               time.Time        `json:"date"`
	DayOfWeek          string           `json:"day_of_week"`
	TotalCashSales     decimal.Decimal  `json:"total_cash_sales"`
	TotalCardSales     decimal.Decimal  `json:"total_card_sales"`
	TotalTipsCollected decimal.Decimal  `json:"total_tips_collected"`
	Notes              string           `json:"notes"`
	Finalized          bool             `json:"finalized"`
	GeneratedBy        ActorRef         `json:"generated_by"`
	GeneratedAt        time.Time        `json:"generated_at"`
	EditedAt           *time.Time       `json:"edited_at"`
	FinalizedBy        *ActorRef        `json:"finalized_by"`
	FinalizedAt        *time.Time       `json:"finalized_at"`
	CreatedBySource    shared.ActorKind `json:"created_by_source"`
	Entries            []EmployeeEntry  `json:"entries"`
}

// State derives the lifecycle stage from the persisted fields.
func (r DailyBalanceReport) State() State {
	switch {
	case r.ID == 0:
		return StateUnsaved
	case r.Finalized:
		return StateFinalized
	default:
		return StateGenerated
	}
}

// AuditTrail is what every report view shows. Both actors are always
// present, even when the same person generated and finalized the report.
type AuditTrail struct {
	GeneratedBy ActorRef         `json:"generated_by"`
	GeneratedAt time.Time        `json:"generated_at"`
	EditedAt    *time.Time       `json:"edited_at"`
	FinalizedBy *ActorRef        `json:"finalized_by"`
	FinalizedAt *time.Time       `json:"finalized_at"`
	Source      shared.ActorKind `json:"source"`
}

// Audit returns the report's audit trail.
func (r DailyBalanceReport) Audit() AuditTrail {
	return AuditTrail{
		GeneratedBy: r.GeneratedBy,
		GeneratedAt: r.GeneratedAt,
		EditedAt:    r.EditedAt,
		FinalizedBy: r.FinalizedBy,
		FinalizedAt: r.FinalizedAt,
		Source:      r.CreatedBySource,
	}
}

// EntryInput carries one employee's figures into Generate.
type EntryInput struct {
	EmployeeID         int64           `json:"employee_id" validate:"required,gt=0"`
	BankCardSales      decimal.Decimal `json:"bank_card_sales"`
	BankCardTips       decimal.Decimal `json:"bank_card_tips"`
	CashTips           decimal.Decimal `json:"cash_tips"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	Adjustments        decimal.Decimal `json:"adjustments"`
	CalculatedTakeHome decimal.Decimal `json:"calculated_take_home"`
}

// GenerateInput is the full content of a report save.
type GenerateInput struct {
	Date          time.Time       `json:"-" validate:"required"`
	CashSales     decimal.Decimal `json:"total_cash_sales"`
	CardSales     decimal.Decimal `json:"total_card_sales"`
	TipsCollected decimal.Decimal `json:"total_tips_collected"`
	Notes         string          `json:"notes" validate:"max=4000"`
	Entries       []EntryInput    `json:"entries" validate:"dive"`
}

var validate = validator.New()

// Validate checks field rules and that no employee appears twice.
func (in GenerateInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	seen := make(map[int64]struct{}, len(in.Entries))
	for _, e := range in.Entries {
		if _, ok := seen[e.EmployeeID]; ok {
			return fmt.Errorf("%w: employee %d listed twice", ErrInvalidInput, e.EmployeeID)
		}
		seen[e.EmployeeID] = struct{}{}
	}
	return nil
}

// NormalizeDate truncates t to its calendar date in UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, raw)
	}
	return t, nil
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

var (
	// ErrNotFound indicates no report exists for the date.
	ErrNotFound = fmt.Errorf("reports: report %w", shared.ErrNotFound)
	// ErrAlreadyFinalized is returned when a finalized report would change.
	ErrAlreadyFinalized = fmt.Errorf("reports: report already finalized: %w", shared.ErrConflict)
	// ErrInvalidInput indicates a malformed generate request.
	ErrInvalidInput = fmt.Errorf("reports: %w", shared.ErrInvalidInput)
	// ErrUnknownEmployee indicates an entry references a missing employee.
	ErrUnknownEmployee = fmt.Errorf("reports: unknown employee: %w", shared.ErrInvalidInput)
)
