/*
Package casework provides the canonical entity model for the casework engine.

PURPOSE:
  This package contains the current-state tree of youth-support casework:
  Staff own Clients, Clients own their documentation records (care plan,
  goal-follow-up plans, weekly docs, monthly reports, Visma time mirrors).
  It also owns the soft-delete and archive flags that drive the retention
  pipeline.

KEY CONCEPTS IN THIS FILE (types.go):
  - Staff/Client: The ownership tree (Staff 1:N Client)
  - Child records: GFPPlan, WeeklyDoc, MonthlyReport, VismaWeek - each with
    its own independent deletedAt flag
  - Kind: Tagged-variant discriminator shared by child operations, removal
    planning, and export
  - Record: Interface implemented by every snapshot-able entity

LIFECYCLE FLAGS:
  - ArchivedAt: "inactive but intentionally retained". Clients only.
  - DeletedAt:  "logically gone, storage row kept until swept". Clients and
    every child record kind.
  A client with either flag set is excluded from active views. A child with
  DeletedAt set is excluded even when its client is active.

DESIGN PRINCIPLES:
  1. Soft first: nothing in this package removes data; flags only.
     Structural removal is the cleanup executor's job (retention package).
  2. Type Safety: Strong typing for IDs prevents mixing staff/client ids.
  3. Precision: Visma hours use decimal.Decimal, never float64.
  4. Deep copies: Clone() everywhere a record crosses a store boundary.

SEE ALSO:
  - period.go: ISO week/month identifiers used as child-record keys
  - store.go: EntityStore interface and audit log
  - ../retention: sweep engine, export, cleanup executor
*/
package casework

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type ClientID string
type PlanID string

// Role gates who may execute destructive retention operations.
// Authorization itself happens outside this package; the role travels with
// the staff record so callers can enforce it.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// =============================================================================
// KIND - Tagged-variant discriminator for records
// =============================================================================

// Kind identifies which concrete record a removal item or child operation
// refers to. The executor and serializer switch on it exhaustively.
type Kind string

const (
	KindClient        Kind = "client"
	KindGFPPlan       Kind = "plan"
	KindWeeklyDoc     Kind = "weeklyDoc"
	KindMonthlyReport Kind = "monthlyReport"
	KindVismaWeek     Kind = "vismaWeek"
)

// ChildKinds lists every kind that can be soft-deleted independently of its
// parent client, in sweep emission order.
func ChildKinds() []Kind {
	return []Kind{KindGFPPlan, KindWeeklyDoc, KindMonthlyReport, KindVismaWeek}
}

// Record is implemented by every entity that can appear as the data snapshot
// of a removal item. Snapshots must be deep copies - see Clone methods.
type Record interface {
	RecordKind() Kind
}

// =============================================================================
// STAFF - Root of the ownership tree
// =============================================================================

type Staff struct {
	ID        StaffID
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// =============================================================================
// CLIENT - Root aggregate under staff
// =============================================================================

// Client is the root aggregate: one legacy care plan, a sequence of
// goal-follow-up plans, and period-keyed documentation maps.
//
// INVARIANTS:
//   - CreatedAt is immutable after first save.
//   - ArchivedAt/DeletedAt are set and cleared only via EntityStore flag
//     operations; they never change as a side effect of anything else.
//   - ArchivedAt and DeletedAt may both be set; the sweep engine checks
//     ArchivedAt first (tie-break policy, see retention.Engine).
type Client struct {
	ID        ClientID
	StaffID   StaffID
	Name      string
	CreatedAt time.Time

	ArchivedAt *time.Time
	DeletedAt  *time.Time

	CarePlan       *CarePlan
	GFPPlans       []GFPPlan
	WeeklyDocs     map[WeekID]WeeklyDoc
	MonthlyReports map[MonthID]MonthlyReport
	VismaWeeks     map[WeekID]VismaWeek
}

func (c Client) RecordKind() Kind { return KindClient }

// IsActive reports whether the client belongs in active views:
// neither archived nor soft-deleted.
func (c *Client) IsActive() bool {
	return c.ArchivedAt == nil && c.DeletedAt == nil
}

// Clone returns a deep copy of the client and all child records.
func (c Client) Clone() Client {
	out := c
	if c.ArchivedAt != nil {
		t := *c.ArchivedAt
		out.ArchivedAt = &t
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	if c.CarePlan != nil {
		cp := *c.CarePlan
		out.CarePlan = &cp
	}
	if c.GFPPlans != nil {
		out.GFPPlans = make([]GFPPlan, len(c.GFPPlans))
		for i, p := range c.GFPPlans {
			out.GFPPlans[i] = p.Clone()
		}
	}
	if c.WeeklyDocs != nil {
		out.WeeklyDocs = make(map[WeekID]WeeklyDoc, len(c.WeeklyDocs))
		for k, v := range c.WeeklyDocs {
			out.WeeklyDocs[k] = v.Clone()
		}
	}
	if c.MonthlyReports != nil {
		out.MonthlyReports = make(map[MonthID]MonthlyReport, len(c.MonthlyReports))
		for k, v := range c.MonthlyReports {
			out.MonthlyReports[k] = v.Clone()
		}
	}
	if c.VismaWeeks != nil {
		out.VismaWeeks = make(map[WeekID]VismaWeek, len(c.VismaWeeks))
		for k, v := range c.VismaWeeks {
			out.VismaWeeks[k] = v.Clone()
		}
	}
	return out
}

// ActiveView returns a deep copy with every soft-deleted child pruned.
// Callers should check IsActive first; ActiveView does not hide the client
// itself.
func (c Client) ActiveView() Client {
	out := c.Clone()
	kept := out.GFPPlans[:0]
	for _, p := range out.GFPPlans {
		if p.DeletedAt == nil {
			kept = append(kept, p)
		}
	}
	out.GFPPlans = kept
	for k, v := range out.WeeklyDocs {
		if v.DeletedAt != nil {
			delete(out.WeeklyDocs, k)
		}
	}
	for k, v := range out.MonthlyReports {
		if v.DeletedAt != nil {
			delete(out.MonthlyReports, k)
		}
	}
	for k, v := range out.VismaWeeks {
		if v.DeletedAt != nil {
			delete(out.VismaWeeks, k)
		}
	}
	return out
}

// =============================================================================
// CHILD RECORDS
// =============================================================================

// CarePlan is the legacy single care plan. It has no independent lifecycle:
// it lives and dies with its client.
type CarePlan struct {
	Goals         string
	Interventions string
	UpdatedAt     time.Time
}

// GFPPlan is a goal-follow-up plan. Keyed by its own PlanID.
type GFPPlan struct {
	ID        PlanID
	Title     string
	Status    string
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (p GFPPlan) RecordKind() Kind { return KindGFPPlan }

func (p GFPPlan) Clone() GFPPlan {
	out := p
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// WeeklyDoc is the weekly documentation record, keyed by ISO week id.
type WeeklyDoc struct {
	WeekID    WeekID
	Note      string
	Status    string
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (d WeeklyDoc) RecordKind() Kind { return KindWeeklyDoc }

func (d WeeklyDoc) Clone() WeeklyDoc {
	out := d
	if d.DeletedAt != nil {
		t := *d.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// MonthlyReport is the monthly report record, keyed by month id.
type MonthlyReport struct {
	MonthID   MonthID
	Summary   string
	Status    string
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (r MonthlyReport) RecordKind() Kind { return KindMonthlyReport }

func (r MonthlyReport) Clone() MonthlyReport {
	out := r
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// VismaWeek mirrors one week of external Visma time tracking.
// Hours use decimal arithmetic; payroll sums must be exact.
type VismaWeek struct {
	WeekID    WeekID
	Hours     decimal.Decimal
	Status    string
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (v VismaWeek) RecordKind() Kind { return KindVismaWeek }

func (v VismaWeek) Clone() VismaWeek {
	out := v
	if v.DeletedAt != nil {
		t := *v.DeletedAt
		out.DeletedAt = &t
	}
	return out
}
