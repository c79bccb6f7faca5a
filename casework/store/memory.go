// Package store provides in-memory implementations of the persistence
// interfaces: casework.EntityStore, history.Store, and casework.AuditLog.
// Used for tests and as the explicit memory fallback backend selected at
// startup when no durable database is configured.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nordcare/casework-engine/casework"
	"github.com/nordcare/casework-engine/history"
)

// =============================================================================
// MEMORY ENTITY STORE
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	staff   map[casework.StaffID]casework.Staff
	clients map[casework.ClientID]casework.Client
}

func NewMemory() *Memory {
	return &Memory{
		staff:   make(map[casework.StaffID]casework.Staff),
		clients: make(map[casework.ClientID]casework.Client),
	}
}

// --- Staff ---

func (m *Memory) SaveStaff(_ context.Context, s casework.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.staff[s.ID]; ok {
		s.CreatedAt = existing.CreatedAt
	}
	m.staff[s.ID] = s
	return nil
}

func (m *Memory) GetStaff(_ context.Context, id casework.StaffID) (*casework.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	if !ok {
		return nil, casework.ErrStaffNotFound
	}
	return &s, nil
}

func (m *Memory) ListStaff(_ context.Context) ([]casework.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]casework.Staff, 0, len(m.staff))
	for _, s := range m.staff {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Clients ---

// SaveClient upserts the client. On insert the record is stored as given,
// lifecycle flags included (import path). On update, CreatedAt and both
// lifecycle flags are preserved: flags change only through flag operations.
func (m *Memory) SaveClient(_ context.Context, c casework.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := c.Clone()
	existing, ok := m.clients[c.ID]
	if !ok {
		if in.WeeklyDocs == nil {
			in.WeeklyDocs = make(map[casework.WeekID]casework.WeeklyDoc)
		}
		if in.MonthlyReports == nil {
			in.MonthlyReports = make(map[casework.MonthID]casework.MonthlyReport)
		}
		if in.VismaWeeks == nil {
			in.VismaWeeks = make(map[casework.WeekID]casework.VismaWeek)
		}
		m.clients[c.ID] = in
		return nil
	}

	existing.Name = in.Name
	existing.StaffID = in.StaffID
	if in.CarePlan != nil {
		existing.CarePlan = in.CarePlan
	}
	for _, p := range in.GFPPlans {
		upsertGFP(&existing, p)
	}
	for _, v := range in.WeeklyDocs {
		putWeeklyDoc(&existing, v)
	}
	for _, v := range in.MonthlyReports {
		putMonthlyReport(&existing, v)
	}
	for _, v := range in.VismaWeeks {
		putVismaWeek(&existing, v)
	}
	m.clients[c.ID] = existing
	return nil
}

func (m *Memory) GetClient(_ context.Context, id casework.ClientID) (*casework.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, casework.ErrClientNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (m *Memory) ListClients(_ context.Context, staffID casework.StaffID) ([]casework.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []casework.Client
	for _, c := range m.clients {
		if c.StaffID == staffID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListActiveClients(ctx context.Context, staffID casework.StaffID) ([]casework.Client, error) {
	all, err := m.ListClients(ctx, staffID)
	if err != nil {
		return nil, err
	}
	var out []casework.Client
	for _, c := range all {
		if c.IsActive() {
			out = append(out, c.ActiveView())
		}
	}
	return out, nil
}

// --- Child records ---

func (m *Memory) SaveGFPPlan(_ context.Context, clientID casework.ClientID, p casework.GFPPlan) error {
	return m.withClient(clientID, func(c *casework.Client) error {
		upsertGFP(c, p.Clone())
		return nil
	})
}

func (m *Memory) SaveWeeklyDoc(_ context.Context, clientID casework.ClientID, d casework.WeeklyDoc) error {
	return m.withClient(clientID, func(c *casework.Client) error {
		putWeeklyDoc(c, d.Clone())
		return nil
	})
}

func (m *Memory) SaveMonthlyReport(_ context.Context, clientID casework.ClientID, r casework.MonthlyReport) error {
	return m.withClient(clientID, func(c *casework.Client) error {
		putMonthlyReport(c, r.Clone())
		return nil
	})
}

func (m *Memory) SaveVismaWeek(_ context.Context, clientID casework.ClientID, v casework.VismaWeek) error {
	return m.withClient(clientID, func(c *casework.Client) error {
		putVismaWeek(c, v.Clone())
		return nil
	})
}

// --- Lifecycle flags ---

func (m *Memory) ArchiveClient(_ context.Context, id casework.ClientID, at time.Time) error {
	return m.withClient(id, func(c *casework.Client) error {
		c.ArchivedAt = &at
		return nil
	})
}

func (m *Memory) UnarchiveClient(_ context.Context, id casework.ClientID) error {
	return m.withClient(id, func(c *casework.Client) error {
		c.ArchivedAt = nil
		return nil
	})
}

func (m *Memory) SoftDeleteClient(_ context.Context, id casework.ClientID, at time.Time) error {
	return m.withClient(id, func(c *casework.Client) error {
		c.DeletedAt = &at
		return nil
	})
}

func (m *Memory) RestoreClient(_ context.Context, id casework.ClientID) error {
	return m.withClient(id, func(c *casework.Client) error {
		c.DeletedAt = nil
		return nil
	})
}

func (m *Memory) SoftDeleteChild(_ context.Context, clientID casework.ClientID, kind casework.Kind, key string, at time.Time) error {
	return m.withClient(clientID, func(c *casework.Client) error {
		return setChildDeleted(c, kind, key, &at)
	})
}

func (m *Memory) RestoreChild(_ context.Context, clientID casework.ClientID, kind casework.Kind, key string) error {
	return m.withClient(clientID, func(c *casework.Client) error {
		return setChildDeleted(c, kind, key, nil)
	})
}

// --- Structural removal (cleanup executor only) ---

func (m *Memory) RemoveClient(_ context.Context, id casework.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return casework.ErrClientNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *Memory) RemoveChild(_ context.Context, clientID casework.ClientID, kind casework.Kind, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return casework.ErrClientNotFound
	}

	notFound := &casework.ChildNotFoundError{ClientID: clientID, Kind: kind, Key: key}
	switch kind {
	case casework.KindGFPPlan:
		for i, p := range c.GFPPlans {
			if p.ID == casework.PlanID(key) {
				c.GFPPlans = append(c.GFPPlans[:i], c.GFPPlans[i+1:]...)
				m.clients[clientID] = c
				return nil
			}
		}
		return notFound
	case casework.KindWeeklyDoc:
		if _, ok := c.WeeklyDocs[casework.WeekID(key)]; !ok {
			return notFound
		}
		delete(c.WeeklyDocs, casework.WeekID(key))
	case casework.KindMonthlyReport:
		if _, ok := c.MonthlyReports[casework.MonthID(key)]; !ok {
			return notFound
		}
		delete(c.MonthlyReports, casework.MonthID(key))
	case casework.KindVismaWeek:
		if _, ok := c.VismaWeeks[casework.WeekID(key)]; !ok {
			return notFound
		}
		delete(c.VismaWeeks, casework.WeekID(key))
	default:
		return casework.ErrUnknownKind
	}
	m.clients[clientID] = c
	return nil
}

// --- Internals ---

func (m *Memory) withClient(id casework.ClientID, fn func(*casework.Client) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return casework.ErrClientNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	m.clients[id] = c
	return nil
}

// Child upserts mirror the SQLite ON CONFLICT clauses: on update, DeletedAt
// (and CreatedAt for plans) stay as stored. Flags change only through flag
// operations; inserts take the record as given (import path).

func upsertGFP(c *casework.Client, p casework.GFPPlan) {
	for i, existing := range c.GFPPlans {
		if existing.ID == p.ID {
			p.CreatedAt = existing.CreatedAt
			p.DeletedAt = existing.DeletedAt
			c.GFPPlans[i] = p
			return
		}
	}
	c.GFPPlans = append(c.GFPPlans, p)
}

func putWeeklyDoc(c *casework.Client, d casework.WeeklyDoc) {
	if prev, ok := c.WeeklyDocs[d.WeekID]; ok {
		d.DeletedAt = prev.DeletedAt
	}
	c.WeeklyDocs[d.WeekID] = d
}

func putMonthlyReport(c *casework.Client, r casework.MonthlyReport) {
	if prev, ok := c.MonthlyReports[r.MonthID]; ok {
		r.DeletedAt = prev.DeletedAt
	}
	c.MonthlyReports[r.MonthID] = r
}

func putVismaWeek(c *casework.Client, v casework.VismaWeek) {
	if prev, ok := c.VismaWeeks[v.WeekID]; ok {
		v.DeletedAt = prev.DeletedAt
	}
	c.VismaWeeks[v.WeekID] = v
}

func setChildDeleted(c *casework.Client, kind casework.Kind, key string, at *time.Time) error {
	notFound := &casework.ChildNotFoundError{ClientID: c.ID, Kind: kind, Key: key}
	switch kind {
	case casework.KindGFPPlan:
		for i := range c.GFPPlans {
			if c.GFPPlans[i].ID == casework.PlanID(key) {
				c.GFPPlans[i].DeletedAt = at
				return nil
			}
		}
		return notFound
	case casework.KindWeeklyDoc:
		d, ok := c.WeeklyDocs[casework.WeekID(key)]
		if !ok {
			return notFound
		}
		d.DeletedAt = at
		c.WeeklyDocs[casework.WeekID(key)] = d
	case casework.KindMonthlyReport:
		r, ok := c.MonthlyReports[casework.MonthID(key)]
		if !ok {
			return notFound
		}
		r.DeletedAt = at
		c.MonthlyReports[casework.MonthID(key)] = r
	case casework.KindVismaWeek:
		v, ok := c.VismaWeeks[casework.WeekID(key)]
		if !ok {
			return notFound
		}
		v.DeletedAt = at
		c.VismaWeeks[casework.WeekID(key)] = v
	default:
		return casework.ErrUnknownKind
	}
	return nil
}

// =============================================================================
// MEMORY HISTORY STORE
// =============================================================================

type HistoryMemory struct {
	mu      sync.RWMutex
	entries map[string]history.Entry
	byKey   map[history.Key]string
}

func NewHistoryMemory() *HistoryMemory {
	return &HistoryMemory{
		entries: make(map[string]history.Entry),
		byKey:   make(map[history.Key]string),
	}
}

func (h *HistoryMemory) Put(_ context.Context, entry history.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Key-uniqueness backstop, matching the SQLite unique index: a Put that
	// bypasses the ledger with a fresh id replaces the key's existing entry
	// instead of leaving a duplicate behind.
	key := entry.Key()
	if prev, ok := h.byKey[key]; ok && prev != entry.ID {
		delete(h.entries, prev)
	}
	h.entries[entry.ID] = entry
	h.byKey[key] = entry.ID
	return nil
}

func (h *HistoryMemory) FindByKey(_ context.Context, key history.Key) (*history.Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byKey[key]
	if !ok {
		return nil, nil
	}
	e := h.entries[id]
	return &e, nil
}

func (h *HistoryMemory) Query(_ context.Context, filter history.Filter) ([]history.Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []history.Entry
	for _, e := range h.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PeriodType != b.PeriodType {
			return a.PeriodType < b.PeriodType
		}
		if a.PeriodID != b.PeriodID {
			return a.PeriodID < b.PeriodID
		}
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		return a.Metric < b.Metric
	})
	return out, nil
}

func (h *HistoryMemory) Count(_ context.Context) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries), nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

type AuditMemory struct {
	mu      sync.RWMutex
	entries []casework.AuditEntry
}

func NewAuditMemory() *AuditMemory {
	return &AuditMemory{}
}

func (a *AuditMemory) Append(_ context.Context, entry casework.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *AuditMemory) Query(_ context.Context, filter casework.AuditFilter) ([]casework.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []casework.AuditEntry
	for _, e := range a.entries {
		if auditMatches(filter, e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func auditMatches(f casework.AuditFilter, e casework.AuditEntry) bool {
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.ClientID != nil && e.ClientID != *f.ClientID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
