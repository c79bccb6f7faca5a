/*
Package history provides the historical-KPI ledger.

PURPOSE:
  The ledger is the permanent record of "what happened": period-keyed metric
  snapshots (weekly doc status, monthly report status, GFP status) that
  outlive the clients and staff they describe. Dashboard history sections
  read from here for periods whose source records have since been swept.

CRITICAL INVARIANTS:
  1. NO DELETE: This package exposes no delete operation. The retention
     sweep and cleanup executor never import it for writes; they cannot
     remove an entry even by accident.
  2. IDEMPOTENT UPSERT: Entries are keyed by
     (periodType, periodId, staffId, clientId, metric). Saving the same
     period N times leaves exactly one entry, with the id fixed at first
     insertion and status/value from the last save.
  3. VALUE REFERENCES: staffId/clientId are back-references for lookup,
     never ownership edges. An entry stays valid and queryable after the
     referenced client or staff row is gone.

WHY DECOUPLED FROM THE ENTITY TREE?
  GDPR erasure removes the person-identifiable casework records, not the
  aggregate KPI trail. Keeping the ledger lifecycle-independent means the
  sweep can be aggressive without corrupting historical reporting.

SEE ALSO:
  - ../casework/store.go: The entity tree the ledger deliberately ignores
  - ../store/sqlite: Durable Store implementation with a uniqueness
    constraint on the idempotency key as a storage-layer backstop
*/
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nordcare/casework-engine/casework"
)

// =============================================================================
// ENTRY - One period-keyed metric snapshot
// =============================================================================

// Metric identifies which documentation stream a snapshot belongs to.
type Metric string

const (
	MetricWeekDoc     Metric = "weekDoc"
	MetricMonthReport Metric = "monthReport"
	MetricGFP         Metric = "gfp"
)

// ErrInvalidEntry is returned when an upsert candidate fails validation.
var ErrInvalidEntry = errors.New("invalid history entry")

type Entry struct {
	ID         string
	PeriodType casework.PeriodType
	PeriodID   string
	StaffID    casework.StaffID
	ClientID   casework.ClientID
	Metric     Metric
	Status     string
	Value      decimal.NullDecimal
	TS         time.Time
}

// Key is the idempotency key: identity of an entry independent of id/ts.
type Key struct {
	PeriodType casework.PeriodType
	PeriodID   string
	StaffID    casework.StaffID
	ClientID   casework.ClientID
	Metric     Metric
}

func (e Entry) Key() Key {
	return Key{
		PeriodType: e.PeriodType,
		PeriodID:   e.PeriodID,
		StaffID:    e.StaffID,
		ClientID:   e.ClientID,
		Metric:     e.Metric,
	}
}

// Filter selects entries for read-only queries. Nil fields match anything.
// PeriodFrom/PeriodTo are inclusive bounds on PeriodID; because period ids
// are zero-padded, string comparison is chronological within a period type.
type Filter struct {
	PeriodType *casework.PeriodType
	PeriodFrom string
	PeriodTo   string
	StaffID    *casework.StaffID
	ClientID   *casework.ClientID
	Metric     *Metric
	Status     *string
}

// Matches reports whether the entry passes the filter. Store implementations
// may use it directly or translate the filter to SQL.
func (f Filter) Matches(e Entry) bool {
	if f.PeriodType != nil && e.PeriodType != *f.PeriodType {
		return false
	}
	if f.PeriodFrom != "" && e.PeriodID < f.PeriodFrom {
		return false
	}
	if f.PeriodTo != "" && e.PeriodID > f.PeriodTo {
		return false
	}
	if f.StaffID != nil && e.StaffID != *f.StaffID {
		return false
	}
	if f.ClientID != nil && e.ClientID != *f.ClientID {
		return false
	}
	if f.Metric != nil && e.Metric != *f.Metric {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	return true
}

// =============================================================================
// STORE - Persistence interface (NO DELETE, by construction)
// =============================================================================

type Store interface {
	// Put inserts or replaces the entry identified by entry.ID.
	Put(ctx context.Context, entry Entry) error

	// FindByKey returns the entry with the given idempotency key,
	// or nil if none exists.
	FindByKey(ctx context.Context, key Key) (*Entry, error)

	// Query returns entries matching the filter, ordered by
	// (periodType, periodId, clientId, metric). Read-only.
	Query(ctx context.Context, filter Filter) ([]Entry, error)

	// Count returns the total number of entries. Used by retention tests
	// to prove the ledger is untouched by sweeps.
	Count(ctx context.Context) (int, error)
}

// =============================================================================
// LEDGER - Idempotent upsert over a Store
// =============================================================================

type Ledger struct {
	Store Store

	// Now and NewID are injectable for tests; defaults are UTC wall clock
	// and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

func NewLedger(store Store) *Ledger {
	return &Ledger{
		Store: store,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Upsert records a snapshot. The candidate's ID and TS are ignored:
// if an entry with the same key exists, its id is preserved and only
// status/value/ts change; otherwise a fresh id is assigned.
// Returns the stored entry.
func (l *Ledger) Upsert(ctx context.Context, candidate Entry) (Entry, error) {
	if err := validate(candidate); err != nil {
		return Entry{}, err
	}

	existing, err := l.Store.FindByKey(ctx, candidate.Key())
	if err != nil {
		return Entry{}, err
	}

	stored := candidate
	if existing != nil {
		stored.ID = existing.ID
	} else {
		stored.ID = l.NewID()
	}
	stored.TS = l.Now()

	if err := l.Store.Put(ctx, stored); err != nil {
		return Entry{}, err
	}
	return stored, nil
}

// Query is a read-only pass-through. No side effects.
func (l *Ledger) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return l.Store.Query(ctx, filter)
}

func validate(e Entry) error {
	switch e.Metric {
	case MetricWeekDoc, MetricMonthReport, MetricGFP:
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidEntry, e.Metric)
	}
	if e.StaffID == "" || e.ClientID == "" {
		return fmt.Errorf("%w: staffId and clientId are required", ErrInvalidEntry)
	}
	if !casework.ValidPeriodID(e.PeriodType, e.PeriodID) {
		return fmt.Errorf("%w: %q for period type %q",
			casework.ErrInvalidPeriodID, e.PeriodID, e.PeriodType)
	}
	return nil
}
