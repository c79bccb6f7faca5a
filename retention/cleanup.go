package retention

import (
	"context"
	"fmt"

	"github.com/nordcare/casework-engine/casework"
)

// =============================================================================
// CLEANUP EXECUTOR - Applies a removal plan to the entity store
// =============================================================================
// The executor depends on the entity store alone. It has no reference to the
// history ledger, so "history immune to sweep" holds at compile time, not
// just by policy.

// Executor permanently removes planned items. It is the only component that
// performs structural deletion.
type Executor struct {
	Store casework.EntityStore
}

func NewExecutor(store casework.EntityStore) *Executor {
	return &Executor{Store: store}
}

// Failure records one item that could not be removed. Not-found items are
// NOT failures; they are skips (the store may have changed between compute
// and execute in a long-running session).
type Failure struct {
	Type casework.Kind
	ID   string
	Err  error
}

// Report summarizes one execution for user-facing confirmation.
// Counts reflect only successful removals.
type Report struct {
	Removed  map[casework.Kind]int
	Skipped  int
	Failures []Failure
}

// Total returns the number of records actually removed.
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Removed {
		n += c
	}
	return n
}

// Summary renders the user-facing confirmation line,
// e.g. "removed 3 clients, 5 plans (2 skipped, 1 failed)".
func (r *Report) Summary() string {
	parts := ""
	for _, kind := range []casework.Kind{
		casework.KindClient, casework.KindGFPPlan, casework.KindWeeklyDoc,
		casework.KindMonthlyReport, casework.KindVismaWeek,
	} {
		if n := r.Removed[kind]; n > 0 {
			if parts != "" {
				parts += ", "
			}
			parts += fmt.Sprintf("%d %s", n, pluralName(kind, n))
		}
	}
	if parts == "" {
		parts = "nothing"
	}
	s := "removed " + parts
	if r.Skipped > 0 || len(r.Failures) > 0 {
		s += fmt.Sprintf(" (%d skipped, %d failed)", r.Skipped, len(r.Failures))
	}
	return s
}

func pluralName(kind casework.Kind, n int) string {
	names := map[casework.Kind][2]string{
		casework.KindClient:        {"client", "clients"},
		casework.KindGFPPlan:       {"plan", "plans"},
		casework.KindWeeklyDoc:     {"weekly doc", "weekly docs"},
		casework.KindMonthlyReport: {"monthly report", "monthly reports"},
		casework.KindVismaWeek:     {"visma week", "visma weeks"},
	}
	pair, ok := names[kind]
	if !ok {
		return string(kind)
	}
	if n == 1 {
		return pair[0]
	}
	return pair[1]
}

// ExecuteSweep removes each planned item, re-verifying existence via the
// store's own not-found semantics. Per-item failures are collected, never
// thrown: a partial sweep is acceptable and is reported accurately rather
// than rolled back.
func (x *Executor) ExecuteSweep(ctx context.Context, items []RemovalItem) (*Report, error) {
	report := &Report{Removed: make(map[casework.Kind]int)}

	for _, item := range items {
		var err error
		switch item.Type {
		case casework.KindClient:
			err = x.Store.RemoveClient(ctx, item.ClientID)
		case casework.KindGFPPlan, casework.KindWeeklyDoc,
			casework.KindMonthlyReport, casework.KindVismaWeek:
			err = x.Store.RemoveChild(ctx, item.ClientID, item.Type, item.ID)
		default:
			err = fmt.Errorf("%w: %q", casework.ErrUnknownKind, item.Type)
		}

		switch {
		case err == nil:
			report.Removed[item.Type]++
		case casework.IsNotFound(err):
			report.Skipped++
		default:
			report.Failures = append(report.Failures, Failure{
				Type: item.Type, ID: item.ID, Err: err,
			})
		}
	}
	return report, nil
}
