/*
Package retention provides the retention sweep pipeline:
compute -> export -> confirm -> execute.

PURPOSE:
  GDPR-aware permanent erasure. Soft-deleted and archived records older than
  a configurable retention window are identified (sweep engine), serialized
  for compliance recovery (export), and only then structurally removed
  (cleanup executor). The history ledger is never consulted or mutated by
  any of it.

PIPELINE GUARANTEES:
  1. ComputeSweep is pure: reads the store, mutates nothing, deterministic
     for a fixed store and clock. Aborting after compute is always safe.
  2. Export is pure string/byte production; persisting it is the caller's
     job. If export-before-purge was requested and failed, execution must
     not proceed.
  3. ExecuteSweep removes exactly the planned items and nothing else,
     re-verifying existence per item. Partial success is reported, never
     rolled back.

TIE-BREAK POLICY (deliberate, tested, do not reorder):
  ArchivedAt is checked before DeletedAt. A client with both flags set is
  judged on ArchivedAt alone: if the archive stamp is too recent, the delete
  stamp is NOT consulted and the client stays; only its old-enough deleted
  children are swept individually.

SEE ALSO:
  - export.go: JSON/CSV serialization of removal plans
  - cleanup.go: The executor that applies a plan
  - ../casework/store.go: The only thing the executor mutates
*/
package retention

import (
	"context"
	"sort"
	"time"

	"github.com/nordcare/casework-engine/casework"
)

// =============================================================================
// REMOVAL PLAN
// =============================================================================

// RemovalItem is one entity (or child record) slated for permanent removal,
// with a full snapshot so it can be exported before destruction.
type RemovalItem struct {
	// Type discriminates the tagged variant carried in Data.
	Type casework.Kind

	// ID is the natural key: client id, plan id, week id, or month id.
	ID string

	StaffID  casework.StaffID
	ClientID casework.ClientID

	// DeletedAt is the timestamp that triggered eligibility - ArchivedAt
	// for archive-triggered client items, DeletedAt otherwise.
	DeletedAt time.Time

	// Data is a deep-copied snapshot of the record at compute time.
	Data casework.Record
}

// Plan is the output of one sweep computation.
type Plan struct {
	CutoffTimestamp time.Time
	ToRemove        []RemovalItem
}

// =============================================================================
// SWEEP ENGINE
// =============================================================================

// ValidateCutoffDays guards the API boundary. The engine itself assumes a
// validated value. Fractional days are not representable: the parameter is
// an integer by construction.
func ValidateCutoffDays(days int) error {
	if days < 0 {
		return casework.ErrInvalidCutoff
	}
	return nil
}

// Engine computes removal plans. It holds no state beyond its dependencies
// and performs no I/O other than reading the store.
type Engine struct {
	Store casework.EntityStore

	// Now is injectable for tests; defaults to UTC wall clock.
	Now func() time.Time
}

func NewEngine(store casework.EntityStore) *Engine {
	return &Engine{
		Store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// ComputeSweep scans every client of every staff member against
// cutoff = now - cutoffDays and returns the removal plan.
//
// Eligibility is strict less-than: a flag stamped exactly at the cutoff
// instant does not qualify. cutoffDays = 0 therefore means "anything
// flagged strictly before this call".
//
// A client-level item supersedes its children: once the whole client is in
// the plan, none of its children are emitted individually. Re-emitting them
// would double count in impact summaries and complicate executor batching.
func (e *Engine) ComputeSweep(ctx context.Context, cutoffDays int) (*Plan, error) {
	cutoff := e.Now().AddDate(0, 0, -cutoffDays)
	plan := &Plan{CutoffTimestamp: cutoff, ToRemove: []RemovalItem{}}

	staff, err := e.Store.ListStaff(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range staff {
		clients, err := e.Store.ListClients(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range clients {
			if trigger, eligible := clientTrigger(&c, cutoff); eligible {
				plan.ToRemove = append(plan.ToRemove, RemovalItem{
					Type:      casework.KindClient,
					ID:        string(c.ID),
					StaffID:   c.StaffID,
					ClientID:  c.ID,
					DeletedAt: trigger,
					Data:      c.Clone(),
				})
				continue // children are implicitly included
			}
			plan.ToRemove = append(plan.ToRemove, childItems(&c, cutoff)...)
		}
	}
	return plan, nil
}

// clientTrigger applies the tie-break policy: ArchivedAt first, and if it
// is present at all, DeletedAt is never consulted.
func clientTrigger(c *casework.Client, cutoff time.Time) (time.Time, bool) {
	if c.ArchivedAt != nil {
		return *c.ArchivedAt, c.ArchivedAt.Before(cutoff)
	}
	if c.DeletedAt != nil {
		return *c.DeletedAt, c.DeletedAt.Before(cutoff)
	}
	return time.Time{}, false
}

// childItems emits one item per old-enough soft-deleted child. Map-keyed
// collections are walked in sorted key order so plans are deterministic.
func childItems(c *casework.Client, cutoff time.Time) []RemovalItem {
	var items []RemovalItem

	emit := func(kind casework.Kind, id string, deletedAt time.Time, data casework.Record) {
		items = append(items, RemovalItem{
			Type:      kind,
			ID:        id,
			StaffID:   c.StaffID,
			ClientID:  c.ID,
			DeletedAt: deletedAt,
			Data:      data,
		})
	}

	for _, p := range c.GFPPlans {
		if p.DeletedAt != nil && p.DeletedAt.Before(cutoff) {
			emit(casework.KindGFPPlan, string(p.ID), *p.DeletedAt, p.Clone())
		}
	}
	for _, k := range sortedWeekIDs(c.WeeklyDocs) {
		d := c.WeeklyDocs[k]
		if d.DeletedAt != nil && d.DeletedAt.Before(cutoff) {
			emit(casework.KindWeeklyDoc, string(k), *d.DeletedAt, d.Clone())
		}
	}
	for _, k := range sortedMonthIDs(c.MonthlyReports) {
		r := c.MonthlyReports[k]
		if r.DeletedAt != nil && r.DeletedAt.Before(cutoff) {
			emit(casework.KindMonthlyReport, string(k), *r.DeletedAt, r.Clone())
		}
	}
	for _, k := range sortedVismaWeekIDs(c.VismaWeeks) {
		v := c.VismaWeeks[k]
		if v.DeletedAt != nil && v.DeletedAt.Before(cutoff) {
			emit(casework.KindVismaWeek, string(k), *v.DeletedAt, v.Clone())
		}
	}
	return items
}

func sortedWeekIDs(m map[casework.WeekID]casework.WeeklyDoc) []casework.WeekID {
	keys := make([]casework.WeekID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedMonthIDs(m map[casework.MonthID]casework.MonthlyReport) []casework.MonthID {
	keys := make([]casework.MonthID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedVismaWeekIDs(m map[casework.WeekID]casework.VismaWeek) []casework.WeekID {
	keys := make([]casework.WeekID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
