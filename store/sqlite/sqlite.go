/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements casework.EntityStore, history.Store, and casework.AuditLog on
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  staff:            Staff records (tree root)
  clients:          Client records with nullable archived_at / deleted_at
  care_plans:       Legacy single care plan, 1:1 with client
  gfp_plans:        Goal-follow-up plans, nullable deleted_at
  weekly_docs:      Week-keyed documentation, nullable deleted_at
  monthly_reports:  Month-keyed reports, nullable deleted_at
  visma_weeks:      Visma time mirror, nullable deleted_at
  history_entries:  The ledger. UNIQUE constraint on the idempotency tuple
                    (period_type, period_id, staff_id, client_id, metric)
                    enforces the upsert invariant at the storage layer as a
                    backstop.
  audit_log:        Append-only action trail

LIFECYCLE ENFORCEMENT:
  - Flag operations are single-column UPDATEs; nothing else changes, so
    restore reproduces the exact prior record.
  - Child tables declare ON DELETE CASCADE from clients: removing a client
    structurally removes its whole subtree in one statement.
  - history_entries has NO foreign key to clients or staff. Ledger rows must
    survive the removal of the records they describe.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL
  (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/casework.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - casework/store.go: Interface definitions
  - casework/store/memory.go: In-memory implementation
  - history/ledger.go: Upsert logic layered on this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/nordcare/casework-engine/casework"
	"github.com/nordcare/casework-engine/history"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'staff',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL REFERENCES staff(id),
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		archived_at TEXT,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_clients_staff ON clients(staff_id);
	-- Sweep scans filter on the lifecycle flags
	CREATE INDEX IF NOT EXISTS idx_clients_archived ON clients(archived_at)
		WHERE archived_at IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_clients_deleted ON clients(deleted_at)
		WHERE deleted_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS care_plans (
		client_id TEXT PRIMARY KEY REFERENCES clients(id) ON DELETE CASCADE,
		goals TEXT,
		interventions TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS gfp_plans (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		status TEXT,
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_gfp_plans_client ON gfp_plans(client_id);

	CREATE TABLE IF NOT EXISTS weekly_docs (
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		week_id TEXT NOT NULL,
		note TEXT,
		status TEXT,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		PRIMARY KEY (client_id, week_id)
	);

	CREATE TABLE IF NOT EXISTS monthly_reports (
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		month_id TEXT NOT NULL,
		summary TEXT,
		status TEXT,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		PRIMARY KEY (client_id, month_id)
	);

	CREATE TABLE IF NOT EXISTS visma_weeks (
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		week_id TEXT NOT NULL,
		hours TEXT NOT NULL,
		status TEXT,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		PRIMARY KEY (client_id, week_id)
	);

	-- The ledger. Deliberately NO foreign keys: rows outlive their sources.
	CREATE TABLE IF NOT EXISTS history_entries (
		id TEXT PRIMARY KEY,
		period_type TEXT NOT NULL,
		period_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		status TEXT NOT NULL,
		value TEXT,
		ts TEXT NOT NULL
	);

	-- CRITICAL: storage-layer backstop for the upsert idempotency key
	CREATE UNIQUE INDEX IF NOT EXISTS idx_history_key
		ON history_entries(period_type, period_id, staff_id, client_id, metric);
	CREATE INDEX IF NOT EXISTS idx_history_client
		ON history_entries(client_id);
	CREATE INDEX IF NOT EXISTS idx_history_period
		ON history_entries(period_type, period_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		staff_id TEXT,
		client_id TEXT,
		record_count INTEGER NOT NULL DEFAULT 0,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STAFF (casework.EntityStore)
// =============================================================================

func (s *Store) SaveStaff(ctx context.Context, st casework.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO staff (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role
	`
	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.Name, st.Email, st.Role, formatTime(st.CreatedAt))
	return err
}

func (s *Store) GetStaff(ctx context.Context, id casework.StaffID) (*casework.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st casework.Staff
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, created_at FROM staff WHERE id = ?", id,
	).Scan(&st.ID, &st.Name, &st.Email, &st.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, casework.ErrStaffNotFound
	}
	if err != nil {
		return nil, err
	}
	st.CreatedAt = parseTime(createdAt)
	return &st, nil
}

func (s *Store) ListStaff(ctx context.Context) ([]casework.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, created_at FROM staff ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []casework.Staff
	for rows.Next() {
		var st casework.Staff
		var createdAt string
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.Role, &createdAt); err != nil {
			return nil, err
		}
		st.CreatedAt = parseTime(createdAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// CLIENTS (casework.EntityStore)
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c casework.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// On update: name/staff change, created_at and both flags are preserved.
	query := `
		INSERT INTO clients (id, staff_id, name, created_at, archived_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			staff_id = excluded.staff_id,
			name = excluded.name
	`
	_, err = tx.ExecContext(ctx, query,
		c.ID, c.StaffID, c.Name, formatTime(c.CreatedAt),
		nullTime(c.ArchivedAt), nullTime(c.DeletedAt))
	if err != nil {
		return err
	}

	if c.CarePlan != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO care_plans (client_id, goals, interventions, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(client_id) DO UPDATE SET
				goals = excluded.goals,
				interventions = excluded.interventions,
				updated_at = excluded.updated_at
		`, c.ID, c.CarePlan.Goals, c.CarePlan.Interventions, formatTime(c.CarePlan.UpdatedAt))
		if err != nil {
			return err
		}
	}

	for _, p := range c.GFPPlans {
		if err := upsertGFPPlan(ctx, tx, c.ID, p); err != nil {
			return err
		}
	}
	for _, d := range c.WeeklyDocs {
		if err := upsertWeeklyDoc(ctx, tx, c.ID, d); err != nil {
			return err
		}
	}
	for _, r := range c.MonthlyReports {
		if err := upsertMonthlyReport(ctx, tx, c.ID, r); err != nil {
			return err
		}
	}
	for _, v := range c.VismaWeeks {
		if err := upsertVismaWeek(ctx, tx, c.ID, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetClient(ctx context.Context, id casework.ClientID) (*casework.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClient(ctx, id)
}

func (s *Store) getClient(ctx context.Context, id casework.ClientID) (*casework.Client, error) {
	var c casework.Client
	var createdAt string
	var archivedAt, deletedAt sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, staff_id, name, created_at, archived_at, deleted_at FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.StaffID, &c.Name, &createdAt, &archivedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, casework.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.ArchivedAt = parseNullTime(archivedAt)
	c.DeletedAt = parseNullTime(deletedAt)

	if err := s.loadChildren(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) loadChildren(ctx context.Context, c *casework.Client) error {
	// Care plan
	var goals, interventions sql.NullString
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT goals, interventions, updated_at FROM care_plans WHERE client_id = ?", c.ID,
	).Scan(&goals, &interventions, &updatedAt)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil {
		c.CarePlan = &casework.CarePlan{
			Goals:         goals.String,
			Interventions: interventions.String,
			UpdatedAt:     parseTime(updatedAt),
		}
	}

	// GFP plans
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, created_at, deleted_at
		FROM gfp_plans WHERE client_id = ? ORDER BY created_at ASC, id ASC`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p casework.GFPPlan
		var created string
		var status, deleted sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &status, &created, &deleted); err != nil {
			return err
		}
		p.Status = status.String
		p.CreatedAt = parseTime(created)
		p.DeletedAt = parseNullTime(deleted)
		c.GFPPlans = append(c.GFPPlans, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Weekly docs
	c.WeeklyDocs = make(map[casework.WeekID]casework.WeeklyDoc)
	wrows, err := s.db.QueryContext(ctx,
		"SELECT week_id, note, status, updated_at, deleted_at FROM weekly_docs WHERE client_id = ?", c.ID)
	if err != nil {
		return err
	}
	defer wrows.Close()
	for wrows.Next() {
		var d casework.WeeklyDoc
		var note, status, deleted sql.NullString
		var updated string
		if err := wrows.Scan(&d.WeekID, &note, &status, &updated, &deleted); err != nil {
			return err
		}
		d.Note = note.String
		d.Status = status.String
		d.UpdatedAt = parseTime(updated)
		d.DeletedAt = parseNullTime(deleted)
		c.WeeklyDocs[d.WeekID] = d
	}
	if err := wrows.Err(); err != nil {
		return err
	}

	// Monthly reports
	c.MonthlyReports = make(map[casework.MonthID]casework.MonthlyReport)
	mrows, err := s.db.QueryContext(ctx,
		"SELECT month_id, summary, status, updated_at, deleted_at FROM monthly_reports WHERE client_id = ?", c.ID)
	if err != nil {
		return err
	}
	defer mrows.Close()
	for mrows.Next() {
		var r casework.MonthlyReport
		var summary, status, deleted sql.NullString
		var updated string
		if err := mrows.Scan(&r.MonthID, &summary, &status, &updated, &deleted); err != nil {
			return err
		}
		r.Summary = summary.String
		r.Status = status.String
		r.UpdatedAt = parseTime(updated)
		r.DeletedAt = parseNullTime(deleted)
		c.MonthlyReports[r.MonthID] = r
	}
	if err := mrows.Err(); err != nil {
		return err
	}

	// Visma weeks
	c.VismaWeeks = make(map[casework.WeekID]casework.VismaWeek)
	vrows, err := s.db.QueryContext(ctx,
		"SELECT week_id, hours, status, updated_at, deleted_at FROM visma_weeks WHERE client_id = ?", c.ID)
	if err != nil {
		return err
	}
	defer vrows.Close()
	for vrows.Next() {
		var v casework.VismaWeek
		var hours string
		var status, deleted sql.NullString
		var updated string
		if err := vrows.Scan(&v.WeekID, &hours, &status, &updated, &deleted); err != nil {
			return err
		}
		v.Hours, _ = decimal.NewFromString(hours)
		v.Status = status.String
		v.UpdatedAt = parseTime(updated)
		v.DeletedAt = parseNullTime(deleted)
		c.VismaWeeks[v.WeekID] = v
	}
	return vrows.Err()
}

func (s *Store) ListClients(ctx context.Context, staffID casework.StaffID) ([]casework.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM clients WHERE staff_id = ? ORDER BY id", staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []casework.ClientID
	for rows.Next() {
		var id casework.ClientID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []casework.Client
	for _, id := range ids {
		c, err := s.getClient(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *Store) ListActiveClients(ctx context.Context, staffID casework.StaffID) ([]casework.Client, error) {
	all, err := s.ListClients(ctx, staffID)
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

// =============================================================================
// CHILD RECORDS (casework.EntityStore)
// =============================================================================

func (s *Store) SaveGFPPlan(ctx context.Context, clientID casework.ClientID, p casework.GFPPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireClient(ctx, clientID); err != nil {
		return err
	}
	return upsertGFPPlan(ctx, s.db, clientID, p)
}

func (s *Store) SaveWeeklyDoc(ctx context.Context, clientID casework.ClientID, d casework.WeeklyDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireClient(ctx, clientID); err != nil {
		return err
	}
	return upsertWeeklyDoc(ctx, s.db, clientID, d)
}

func (s *Store) SaveMonthlyReport(ctx context.Context, clientID casework.ClientID, r casework.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireClient(ctx, clientID); err != nil {
		return err
	}
	return upsertMonthlyReport(ctx, s.db, clientID, r)
}

func (s *Store) SaveVismaWeek(ctx context.Context, clientID casework.ClientID, v casework.VismaWeek) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireClient(ctx, clientID); err != nil {
		return err
	}
	return upsertVismaWeek(ctx, s.db, clientID, v)
}

func (s *Store) requireClient(ctx context.Context, id casework.ClientID) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM clients WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return casework.ErrClientNotFound
	}
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertGFPPlan(ctx context.Context, db execer, clientID casework.ClientID, p casework.GFPPlan) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO gfp_plans (id, client_id, title, status, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status
	`, p.ID, clientID, p.Title, p.Status, formatTime(p.CreatedAt), nullTime(p.DeletedAt))
	return err
}

func upsertWeeklyDoc(ctx context.Context, db execer, clientID casework.ClientID, d casework.WeeklyDoc) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO weekly_docs (client_id, week_id, note, status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, week_id) DO UPDATE SET
			note = excluded.note,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, clientID, d.WeekID, d.Note, d.Status, formatTime(d.UpdatedAt), nullTime(d.DeletedAt))
	return err
}

func upsertMonthlyReport(ctx context.Context, db execer, clientID casework.ClientID, r casework.MonthlyReport) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO monthly_reports (client_id, month_id, summary, status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, month_id) DO UPDATE SET
			summary = excluded.summary,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, clientID, r.MonthID, r.Summary, r.Status, formatTime(r.UpdatedAt), nullTime(r.DeletedAt))
	return err
}

func upsertVismaWeek(ctx context.Context, db execer, clientID casework.ClientID, v casework.VismaWeek) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO visma_weeks (client_id, week_id, hours, status, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, week_id) DO UPDATE SET
			hours = excluded.hours,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, clientID, v.WeekID, v.Hours.String(), v.Status, formatTime(v.UpdatedAt), nullTime(v.DeletedAt))
	return err
}

// =============================================================================
// LIFECYCLE FLAGS (casework.EntityStore)
// =============================================================================

func (s *Store) ArchiveClient(ctx context.Context, id casework.ClientID, at time.Time) error {
	return s.setClientFlag(ctx, id, "archived_at", &at)
}

func (s *Store) UnarchiveClient(ctx context.Context, id casework.ClientID) error {
	return s.setClientFlag(ctx, id, "archived_at", nil)
}

func (s *Store) SoftDeleteClient(ctx context.Context, id casework.ClientID, at time.Time) error {
	return s.setClientFlag(ctx, id, "deleted_at", &at)
}

func (s *Store) RestoreClient(ctx context.Context, id casework.ClientID) error {
	return s.setClientFlag(ctx, id, "deleted_at", nil)
}

// setClientFlag updates exactly one timestamp column; column is one of the
// two flag names above, never caller input.
func (s *Store) setClientFlag(ctx context.Context, id casework.ClientID, column string, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE clients SET %s = ? WHERE id = ?", column),
		nullTime(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return casework.ErrClientNotFound
	}
	return nil
}

func (s *Store) SoftDeleteChild(ctx context.Context, clientID casework.ClientID, kind casework.Kind, key string, at time.Time) error {
	return s.setChildFlag(ctx, clientID, kind, key, &at)
}

func (s *Store) RestoreChild(ctx context.Context, clientID casework.ClientID, kind casework.Kind, key string) error {
	return s.setChildFlag(ctx, clientID, kind, key, nil)
}

func (s *Store) setChildFlag(ctx context.Context, clientID casework.ClientID, kind casework.Kind, key string, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := childUpdate(kind, clientID, key, at)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &casework.ChildNotFoundError{ClientID: clientID, Kind: kind, Key: key}
	}
	return nil
}

func childUpdate(kind casework.Kind, clientID casework.ClientID, key string, at *time.Time) (string, []any, error) {
	switch kind {
	case casework.KindGFPPlan:
		return "UPDATE gfp_plans SET deleted_at = ? WHERE client_id = ? AND id = ?",
			[]any{nullTime(at), clientID, key}, nil
	case casework.KindWeeklyDoc:
		return "UPDATE weekly_docs SET deleted_at = ? WHERE client_id = ? AND week_id = ?",
			[]any{nullTime(at), clientID, key}, nil
	case casework.KindMonthlyReport:
		return "UPDATE monthly_reports SET deleted_at = ? WHERE client_id = ? AND month_id = ?",
			[]any{nullTime(at), clientID, key}, nil
	case casework.KindVismaWeek:
		return "UPDATE visma_weeks SET deleted_at = ? WHERE client_id = ? AND week_id = ?",
			[]any{nullTime(at), clientID, key}, nil
	default:
		return "", nil, casework.ErrUnknownKind
	}
}

// =============================================================================
// STRUCTURAL REMOVAL (cleanup executor only)
// =============================================================================

func (s *Store) RemoveClient(ctx context.Context, id casework.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Child tables cascade; history_entries has no FK and is untouched.
	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return casework.ErrClientNotFound
	}
	return nil
}

func (s *Store) RemoveChild(ctx context.Context, clientID casework.ClientID, kind casework.Kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var query string
	switch kind {
	case casework.KindGFPPlan:
		query = "DELETE FROM gfp_plans WHERE client_id = ? AND id = ?"
	case casework.KindWeeklyDoc:
		query = "DELETE FROM weekly_docs WHERE client_id = ? AND week_id = ?"
	case casework.KindMonthlyReport:
		query = "DELETE FROM monthly_reports WHERE client_id = ? AND month_id = ?"
	case casework.KindVismaWeek:
		query = "DELETE FROM visma_weeks WHERE client_id = ? AND week_id = ?"
	default:
		return casework.ErrUnknownKind
	}

	res, err := s.db.ExecContext(ctx, query, clientID, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &casework.ChildNotFoundError{ClientID: clientID, Kind: kind, Key: key}
	}
	return nil
}

// =============================================================================
// HISTORY LEDGER (history.Store)
// =============================================================================

func (s *Store) Put(ctx context.Context, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value any
	if e.Value.Valid {
		value = e.Value.Decimal.String()
	}

	// Conflict on id is the ledger's upsert path. Conflict on the key tuple
	// (unique index) would mean the ledger was bypassed; surface it.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_entries
			(id, period_type, period_id, staff_id, client_id, metric, status, value, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			value = excluded.value,
			ts = excluded.ts
	`, e.ID, e.PeriodType, e.PeriodID, e.StaffID, e.ClientID, e.Metric,
		e.Status, value, formatTime(e.TS))
	return err
}

func (s *Store) FindByKey(ctx context.Context, key history.Key) (*history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, period_type, period_id, staff_id, client_id, metric, status, value, ts
		FROM history_entries
		WHERE period_type = ? AND period_id = ? AND staff_id = ? AND client_id = ? AND metric = ?
	`, key.PeriodType, key.PeriodID, key.StaffID, key.ClientID, key.Metric)

	e, err := scanHistoryEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) Query(ctx context.Context, f history.Filter) ([]history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.PeriodType != nil {
		where = append(where, "period_type = ?")
		args = append(args, *f.PeriodType)
	}
	if f.PeriodFrom != "" {
		where = append(where, "period_id >= ?")
		args = append(args, f.PeriodFrom)
	}
	if f.PeriodTo != "" {
		where = append(where, "period_id <= ?")
		args = append(args, f.PeriodTo)
	}
	if f.StaffID != nil {
		where = append(where, "staff_id = ?")
		args = append(args, *f.StaffID)
	}
	if f.ClientID != nil {
		where = append(where, "client_id = ?")
		args = append(args, *f.ClientID)
	}
	if f.Metric != nil {
		where = append(where, "metric = ?")
		args = append(args, *f.Metric)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}

	query := "SELECT id, period_type, period_id, staff_id, client_id, metric, status, value, ts FROM history_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_type, period_id, client_id, metric"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []history.Entry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history_entries").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryEntry(row rowScanner) (*history.Entry, error) {
	var e history.Entry
	var value sql.NullString
	var ts string
	err := row.Scan(&e.ID, &e.PeriodType, &e.PeriodID, &e.StaffID, &e.ClientID,
		&e.Metric, &e.Status, &value, &ts)
	if err != nil {
		return nil, err
	}
	if value.Valid {
		d, derr := decimal.NewFromString(value.String)
		if derr == nil {
			e.Value = decimal.NewNullDecimal(d)
		}
	}
	e.TS = parseTime(ts)
	return &e, nil
}

// =============================================================================
// AUDIT LOG (casework.AuditLog)
// =============================================================================

// AuditStore is a view over the same database implementing
// casework.AuditLog. A separate type because both the ledger store and the
// audit log have a Query method with different filters.
type AuditStore struct {
	s *Store
}

// Audit returns the audit log backed by this database.
func (s *Store) Audit() *AuditStore {
	return &AuditStore{s: s}
}

func (a *AuditStore) Append(ctx context.Context, entry casework.AuditEntry) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, _ := json.Marshal(entry.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, actor_id, action, staff_id, client_id, record_count, details_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, formatTime(entry.Timestamp), entry.ActorID, entry.Action,
		nullString(string(entry.StaffID)), nullString(string(entry.ClientID)),
		entry.RecordCount, string(detailsJSON))
	return err
}

func (a *AuditStore) Query(ctx context.Context, f casework.AuditFilter) ([]casework.AuditEntry, error) {
	s := a.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *f.ActorID)
	}
	if f.ClientID != nil {
		where = append(where, "client_id = ?")
		args = append(args, *f.ClientID)
	}
	if len(f.Actions) > 0 {
		placeholders := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			placeholders[i] = "?"
			args = append(args, a)
		}
		where = append(where, "action IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.From != nil {
		where = append(where, "ts >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "ts <= ?")
		args = append(args, formatTime(*f.To))
	}

	query := "SELECT id, ts, actor_id, action, staff_id, client_id, record_count, details_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []casework.AuditEntry
	for rows.Next() {
		var e casework.AuditEntry
		var ts string
		var staffID, clientID, detailsJSON sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &e.Action, &staffID, &clientID,
			&e.RecordCount, &detailsJSON); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		e.StaffID = casework.StaffID(staffID.String)
		e.ClientID = casework.ClientID(clientID.String)
		if detailsJSON.Valid && detailsJSON.String != "" {
			json.Unmarshal([]byte(detailsJSON.String), &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
