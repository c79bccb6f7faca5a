/*
store.go - Persistence interfaces for the entity tree

PURPOSE:
  Defines the interface between the retention core and storage. Two
  implementations exist and are selected at startup:
  - store/sqlite: durable SQLite backend (production)
  - casework/store: in-memory backend (tests, dev, memory fallback)

MUTATION CONTRACT:
  The entity tree is mutated only through:
  1. Save* operations (upsert of current-state records)
  2. Flag operations (archive / soft-delete / restore) - set or clear one
     timestamp and change NOTHING else
  3. Remove* operations - structural removal, called ONLY by the cleanup
     executor after a confirmed sweep

  Nothing here touches the history ledger. Its store interface lives in the
  history package and has no delete operation at all.

FILTERING CONTRACT:
  ListActiveClients excludes any client with ArchivedAt or DeletedAt set,
  and prunes any child record with DeletedAt set from the clients it does
  return. KPI and dashboard readers consume this view.

SEE ALSO:
  - casework/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: Durable implementation
  - ../history/ledger.go: The ledger this store must never cascade into
*/
package casework

import (
	"context"
	"time"
)

// =============================================================================
// ENTITY STORE - Canonical current-state tree
// =============================================================================

type EntityStore interface {
	// --- Staff ---

	SaveStaff(ctx context.Context, s Staff) error
	GetStaff(ctx context.Context, id StaffID) (*Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)

	// --- Clients ---

	// SaveClient upserts the client's own fields and care plan.
	// Child collections are written through the child savers below;
	// any children present on c are upserted as well.
	SaveClient(ctx context.Context, c Client) error

	// GetClient returns the full tree for one client, deleted children
	// included. Returns ErrClientNotFound if absent.
	GetClient(ctx context.Context, id ClientID) (*Client, error)

	// ListClients returns every client for a staff member, flags and
	// deleted children included. The sweep engine reads this.
	ListClients(ctx context.Context, staffID StaffID) ([]Client, error)

	// ListActiveClients applies the filtering contract: no archived or
	// soft-deleted clients, no soft-deleted children.
	ListActiveClients(ctx context.Context, staffID StaffID) ([]Client, error)

	// --- Child records ---

	SaveGFPPlan(ctx context.Context, clientID ClientID, p GFPPlan) error
	SaveWeeklyDoc(ctx context.Context, clientID ClientID, d WeeklyDoc) error
	SaveMonthlyReport(ctx context.Context, clientID ClientID, r MonthlyReport) error
	SaveVismaWeek(ctx context.Context, clientID ClientID, v VismaWeek) error

	// --- Lifecycle flags ---

	// ArchiveClient stamps ArchivedAt = at. Idempotent: re-archiving
	// refreshes the timestamp, it does not error.
	ArchiveClient(ctx context.Context, id ClientID, at time.Time) error

	// UnarchiveClient clears ArchivedAt.
	UnarchiveClient(ctx context.Context, id ClientID) error

	// SoftDeleteClient stamps DeletedAt = at. Idempotent like archive.
	SoftDeleteClient(ctx context.Context, id ClientID, at time.Time) error

	// RestoreClient clears DeletedAt. The restored record must be
	// deep-equal to its prior state except for that one flag.
	RestoreClient(ctx context.Context, id ClientID) error

	// SoftDeleteChild stamps DeletedAt on the child identified by its
	// natural key (plan id, week id, month id).
	SoftDeleteChild(ctx context.Context, clientID ClientID, kind Kind, key string, at time.Time) error

	// RestoreChild clears DeletedAt on the child.
	RestoreChild(ctx context.Context, clientID ClientID, kind Kind, key string) error

	// --- Structural removal (cleanup executor ONLY) ---

	// RemoveClient permanently removes the client and all its children.
	// Returns ErrClientNotFound if already gone.
	RemoveClient(ctx context.Context, id ClientID) error

	// RemoveChild permanently removes one child record.
	// Returns ErrChildNotFound (wrapped) if already gone.
	RemoveChild(ctx context.Context, clientID ClientID, kind Kind, key string) error
}

// =============================================================================
// AUDIT LOG - Separate from the entity tree, tracks who did what when
// =============================================================================

// AuditEntry records one destructive or reversible lifecycle action.
// GDPR note: the sink decides anonymization and retention of this log;
// that is a parallel concern, not this package's.
type AuditEntry struct {
	ID          string
	Timestamp   time.Time
	ActorID     string
	Action      AuditAction
	StaffID     StaffID
	ClientID    ClientID
	RecordCount int
	Details     map[string]any
}

type AuditAction string

const (
	AuditClientArchived   AuditAction = "client_archived"
	AuditClientUnarchived AuditAction = "client_unarchived"
	AuditClientDeleted    AuditAction = "client_soft_deleted"
	AuditClientRestored   AuditAction = "client_restored"
	AuditChildDeleted     AuditAction = "child_soft_deleted"
	AuditChildRestored    AuditAction = "child_restored"
	AuditSweepExported    AuditAction = "sweep_exported"
	AuditSweepExecuted    AuditAction = "sweep_executed"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	ActorID  *string
	Actions  []AuditAction
	ClientID *ClientID
	From     *time.Time
	To       *time.Time
}
