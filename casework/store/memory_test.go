package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordcare/casework-engine/casework"
	memstore "github.com/nordcare/casework-engine/casework/store"
	"github.com/nordcare/casework-engine/history"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newSeededStore(t *testing.T) *memstore.Memory {
	store := memstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.SaveStaff(ctx, casework.Staff{ID: "staff-1", Name: "Anna"}))
	require.NoError(t, store.SaveClient(ctx, casework.Client{
		ID: "client-1", StaffID: "staff-1", Name: "Jonas",
		CreatedAt: time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC),
	}))
	return store
}

// =============================================================================
// LIFECYCLE FLAGS
// =============================================================================

func TestArchiveClient_SetAndClear(t *testing.T) {
	// GIVEN: An active client
	// WHEN: Archiving, then unarchiving
	// THEN: The flag round-trips and active status follows it

	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.ArchiveClient(ctx, "client-1", at))
	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, c.ArchivedAt)
	assert.Equal(t, at, *c.ArchivedAt)
	assert.False(t, c.IsActive())

	require.NoError(t, store.UnarchiveClient(ctx, "client-1"))
	c, err = store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, c.ArchivedAt)
	assert.True(t, c.IsActive())
}

func TestArchiveClient_RepeatRestamps(t *testing.T) {
	// Archiving an already-archived client just moves the timestamp.

	store := newSeededStore(t)
	ctx := context.Background()

	first := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 1, 0)
	require.NoError(t, store.ArchiveClient(ctx, "client-1", first))
	require.NoError(t, store.ArchiveClient(ctx, "client-1", second))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, second, *c.ArchivedAt)
}

func TestRestoreClient_IsExactReverse(t *testing.T) {
	// GIVEN: A client with children, soft deleted
	// WHEN: Restoring
	// THEN: The tree deep-equals its pre-delete state

	store := newSeededStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{ID: "plan-1", Title: "Goals", Status: "active"}))
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: "2024-W10", Note: "n", Status: "done"}))

	before, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)

	require.NoError(t, store.SoftDeleteClient(ctx, "client-1", time.Now().UTC()))
	require.NoError(t, store.RestoreClient(ctx, "client-1"))

	after, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFlagOps_UnknownClient(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	assert.ErrorIs(t, store.ArchiveClient(ctx, "ghost", at), casework.ErrClientNotFound)
	assert.ErrorIs(t, store.SoftDeleteClient(ctx, "ghost", at), casework.ErrClientNotFound)
	assert.ErrorIs(t, store.RestoreClient(ctx, "ghost"), casework.ErrClientNotFound)
}

func TestSoftDeleteChild_AllKinds(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{ID: "plan-1"}))
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: "2024-W10"}))
	require.NoError(t, store.SaveMonthlyReport(ctx, "client-1", casework.MonthlyReport{MonthID: "2024-03"}))
	require.NoError(t, store.SaveVismaWeek(ctx, "client-1", casework.VismaWeek{WeekID: "2024-W10"}))

	for kind, key := range map[casework.Kind]string{
		casework.KindGFPPlan:       "plan-1",
		casework.KindWeeklyDoc:     "2024-W10",
		casework.KindMonthlyReport: "2024-03",
		casework.KindVismaWeek:     "2024-W10",
	} {
		require.NoError(t, store.SoftDeleteChild(ctx, "client-1", kind, key, at), "kind %s", kind)
	}

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.NotNil(t, c.GFPPlans[0].DeletedAt)
	assert.NotNil(t, c.WeeklyDocs["2024-W10"].DeletedAt)
	assert.NotNil(t, c.MonthlyReports["2024-03"].DeletedAt)
	assert.NotNil(t, c.VismaWeeks["2024-W10"].DeletedAt)

	// Restore one and verify the others stay flagged
	require.NoError(t, store.RestoreChild(ctx, "client-1", casework.KindWeeklyDoc, "2024-W10"))
	c, err = store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, c.WeeklyDocs["2024-W10"].DeletedAt)
	assert.NotNil(t, c.VismaWeeks["2024-W10"].DeletedAt)
}

func TestSoftDeleteChild_UnknownKey(t *testing.T) {
	store := newSeededStore(t)

	err := store.SoftDeleteChild(context.Background(), "client-1", casework.KindWeeklyDoc, "2024-W99", time.Now().UTC())
	assert.ErrorIs(t, err, casework.ErrChildNotFound)

	var childErr *casework.ChildNotFoundError
	require.ErrorAs(t, err, &childErr)
	assert.Equal(t, casework.KindWeeklyDoc, childErr.Kind)
	assert.Equal(t, "2024-W99", childErr.Key)
}

// =============================================================================
// UPDATES PRESERVE FLAGS
// =============================================================================

func TestSaveChild_UpdatePreservesDeleteFlag(t *testing.T) {
	// GIVEN: A soft-deleted weekly doc
	// WHEN: Saving a fresh payload for the same week (no DeletedAt set)
	// THEN: Content updates, the delete flag stays; a routine save must
	//       never resurrect a record

	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{
		WeekID: "2024-W10", Note: "first", Status: "pending",
	}))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindWeeklyDoc, "2024-W10", at))

	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{
		WeekID: "2024-W10", Note: "second", Status: "done",
	}))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	doc := c.WeeklyDocs["2024-W10"]
	assert.Equal(t, "second", doc.Note)
	require.NotNil(t, doc.DeletedAt)
	assert.Equal(t, at, *doc.DeletedAt)
}

func TestSaveGFPPlan_UpdatePreservesCreatedAtAndDeleteFlag(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	created := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	at := created.AddDate(0, 2, 0)

	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{
		ID: "plan-1", Title: "Spring goals", CreatedAt: created,
	}))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindGFPPlan, "plan-1", at))

	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{
		ID: "plan-1", Title: "Revised goals", CreatedAt: time.Now().UTC(),
	}))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, c.GFPPlans, 1)
	p := c.GFPPlans[0]
	assert.Equal(t, "Revised goals", p.Title)
	assert.Equal(t, created, p.CreatedAt)
	require.NotNil(t, p.DeletedAt)
	assert.Equal(t, at, *p.DeletedAt)
}

func TestSaveClient_MergePreservesChildDeleteFlags(t *testing.T) {
	// The whole-tree save path merges children through the same upserts as
	// the per-child saves; it must not clear flags either.

	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveMonthlyReport(ctx, "client-1", casework.MonthlyReport{
		MonthID: "2024-05", Summary: "may",
	}))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindMonthlyReport, "2024-05", at))

	require.NoError(t, store.SaveClient(ctx, casework.Client{
		ID: "client-1", StaffID: "staff-1", Name: "Jonas",
		MonthlyReports: map[casework.MonthID]casework.MonthlyReport{
			"2024-05": {MonthID: "2024-05", Summary: "may revised"},
		},
	}))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	rep := c.MonthlyReports["2024-05"]
	assert.Equal(t, "may revised", rep.Summary)
	require.NotNil(t, rep.DeletedAt)
	assert.Equal(t, at, *rep.DeletedAt)
}

func TestSaveClient_UpdateDoesNotTouchFlagsOrCreatedAt(t *testing.T) {
	// GIVEN: An archived client
	// WHEN: Saving a profile update with no flags set on the payload
	// THEN: Name changes; CreatedAt and the archive flag do not

	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ArchiveClient(ctx, "client-1", at))

	require.NoError(t, store.SaveClient(ctx, casework.Client{
		ID: "client-1", StaffID: "staff-1", Name: "Jonas B",
		CreatedAt: time.Now().UTC(),
	}))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Jonas B", c.Name)
	assert.Equal(t, time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC), c.CreatedAt)
	require.NotNil(t, c.ArchivedAt)
	assert.Equal(t, at, *c.ArchivedAt)
}

// =============================================================================
// ACTIVE VIEWS
// =============================================================================

func TestListActiveClients_ExcludesFlaggedClientsAndPrunesChildren(t *testing.T) {
	// GIVEN: One active client with a deleted child, one archived, one deleted
	// WHEN: Listing active clients
	// THEN: Only the active client returns, with the deleted child pruned

	store := newSeededStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: "2024-W01"}))
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: "2024-W02"}))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindWeeklyDoc, "2024-W01", time.Now().UTC()))

	require.NoError(t, store.SaveClient(ctx, casework.Client{ID: "client-2", StaffID: "staff-1"}))
	require.NoError(t, store.ArchiveClient(ctx, "client-2", time.Now().UTC()))
	require.NoError(t, store.SaveClient(ctx, casework.Client{ID: "client-3", StaffID: "staff-1"}))
	require.NoError(t, store.SoftDeleteClient(ctx, "client-3", time.Now().UTC()))

	active, err := store.ListActiveClients(ctx, "staff-1")
	require.NoError(t, err)

	require.Len(t, active, 1)
	assert.Equal(t, casework.ClientID("client-1"), active[0].ID)
	assert.NotContains(t, active[0].WeeklyDocs, casework.WeekID("2024-W01"))
	assert.Contains(t, active[0].WeeklyDocs, casework.WeekID("2024-W02"))

	// The full listing still sees all three
	all, err := store.ListClients(ctx, "staff-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// ISOLATION
// =============================================================================

func TestGetClient_ReturnsDeepCopy(t *testing.T) {
	// Mutating a returned client must not leak back into the store.

	store := newSeededStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: "2024-W01", Note: "original"}))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	doc := c.WeeklyDocs["2024-W01"]
	doc.Note = "tampered"
	c.WeeklyDocs["2024-W01"] = doc

	fresh, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.WeeklyDocs["2024-W01"].Note)
}

// =============================================================================
// HISTORY KEY UNIQUENESS
// =============================================================================

func TestHistoryMemory_PutFreshIDReplacesKeyEntry(t *testing.T) {
	// GIVEN: An entry stored under a key
	// WHEN: Putting a different id for the same key (bypassing the ledger)
	// THEN: One entry per key survives, like the SQLite unique index enforces

	store := memstore.NewHistoryMemory()
	ctx := context.Background()

	entry := history.Entry{
		ID:         "id-1",
		PeriodType: casework.PeriodWeek,
		PeriodID:   "2024-W44",
		StaffID:    "staff-1",
		ClientID:   "client-1",
		Metric:     history.MetricWeekDoc,
		Status:     "pending",
	}
	require.NoError(t, store.Put(ctx, entry))

	entry.ID = "id-2"
	entry.Status = "done"
	require.NoError(t, store.Put(ctx, entry))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	found, err := store.FindByKey(ctx, entry.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "id-2", found.ID)
	assert.Equal(t, "done", found.Status)

	entries, err := store.Query(ctx, history.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// STRUCTURAL REMOVAL
// =============================================================================

func TestRemoveChild_GoneForGood(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{ID: "plan-1"}))

	require.NoError(t, store.RemoveChild(ctx, "client-1", casework.KindGFPPlan, "plan-1"))

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, c.GFPPlans)

	err = store.RemoveChild(ctx, "client-1", casework.KindGFPPlan, "plan-1")
	assert.ErrorIs(t, err, casework.ErrChildNotFound)
}
