// Package anomaly asks whether a time entry looks unusual enough to need the
// user's confirmation. The answer is advisory and never blocks a submit.
package anomaly

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"timesheet/internal/core"
)

// Request is the entry being checked.
type Request struct {
	Date     core.Date
	Project  string
	Hours    decimal.Decimal
	UserName string
}

// Result is the checker's verdict. Reason is set when ConfirmationNeeded is true.
type Result struct {
	ConfirmationNeeded bool   `json:"confirmationNeeded"`
	Reason             string `json:"reason,omitempty"`
}

// Checker decides whether an entry needs confirmation.
type Checker interface {
	Check(ctx context.Context, req Request) (Result, error)
}

// TypicalDay is the length of a normal working day.
var TypicalDay = decimal.NewFromInt(8)

// RuleChecker flags entries locally when no remote checker is configured.
type RuleChecker struct {
	// Typical is the number of hours above which an entry is unusual.
	Typical decimal.Decimal
	// FlagWeekends asks for confirmation on Saturday and Sunday entries.
	FlagWeekends bool
}

func NewRuleChecker() *RuleChecker {
	return &RuleChecker{Typical: TypicalDay, FlagWeekends: true}
}

func (r *RuleChecker) Check(_ context.Context, req Request) (Result, error) {
	typical := r.Typical
	if !typical.IsPositive() {
		typical = TypicalDay
	}
	if req.Hours.GreaterThan(typical) {
		return Result{
			ConfirmationNeeded: true,
			Reason: fmt.Sprintf("%s hours on %s is more than a typical %s hour day",
				core.FormatHours(req.Hours), req.Project, core.FormatHours(typical)),
		}, nil
	}
	if r.FlagWeekends && req.Date.IsWeekend() {
		return Result{
			ConfirmationNeeded: true,
			Reason:             fmt.Sprintf("%s falls on a %s", req.Date, req.Date.Weekday()),
		}, nil
	}
	return Result{}, nil
}
