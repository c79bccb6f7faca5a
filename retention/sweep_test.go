package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordcare/casework-engine/casework"
	memstore "github.com/nordcare/casework-engine/casework/store"
	"github.com/nordcare/casework-engine/retention"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*retention.Engine, *memstore.Memory) {
	store := memstore.NewMemory()
	engine := retention.NewEngine(store)
	engine.Now = func() time.Time { return testNow }

	require.NoError(t, store.SaveStaff(context.Background(), casework.Staff{
		ID: "staff-1", Name: "Anna", Role: casework.RoleStaff,
	}))
	return engine, store
}

func seedClient(t *testing.T, store *memstore.Memory, id casework.ClientID) {
	t.Helper()
	require.NoError(t, store.SaveClient(context.Background(), casework.Client{
		ID: id, StaffID: "staff-1", Name: "Client " + string(id),
		CreatedAt: testNow.AddDate(-1, 0, 0),
	}))
}

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

// =============================================================================
// CLIENT ELIGIBILITY
// =============================================================================

func TestComputeSweep_ArchivedBeyondCutoff_Eligible(t *testing.T) {
	// GIVEN: A client archived 200 days ago
	// WHEN: Sweeping with a 180-day cutoff
	// THEN: The whole client is planned for removal

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.ArchiveClient(ctx, "client-1", daysAgo(200)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)

	require.Len(t, plan.ToRemove, 1)
	item := plan.ToRemove[0]
	assert.Equal(t, casework.KindClient, item.Type)
	assert.Equal(t, "client-1", item.ID)
	assert.Equal(t, daysAgo(200), item.DeletedAt)
}

func TestComputeSweep_ArchivedWithinCutoff_NotEligible(t *testing.T) {
	// GIVEN: A client archived only 50 days ago
	// WHEN: Sweeping with a 180-day cutoff
	// THEN: The plan is empty

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.ArchiveClient(ctx, "client-1", daysAgo(50)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)
	assert.Empty(t, plan.ToRemove)
}

func TestComputeSweep_SoftDeletedBeyondCutoff_Eligible(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.SoftDeleteClient(ctx, "client-1", daysAgo(365)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)
	require.Len(t, plan.ToRemove, 1)
	assert.Equal(t, casework.KindClient, plan.ToRemove[0].Type)
}

func TestComputeSweep_NoFlags_NeverEligible(t *testing.T) {
	// GIVEN: A client with neither flag set, created years ago
	// WHEN: Sweeping with cutoff 0 (the most aggressive possible)
	// THEN: Age alone never qualifies anything

	engine, store := newTestEngine(t)
	seedClient(t, store, "client-1")

	plan, err := engine.ComputeSweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, plan.ToRemove)
}

// =============================================================================
// STRICT LESS-THAN BOUNDARY
// =============================================================================

func TestComputeSweep_FlagExactlyAtCutoff_NotEligible(t *testing.T) {
	// GIVEN: A client deleted at exactly the cutoff instant
	// WHEN: Sweeping with cutoff 0 (cutoff == now)
	// THEN: Exact equality does not qualify; one millisecond earlier does

	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedClient(t, store, "client-exact")
	require.NoError(t, store.SoftDeleteClient(ctx, "client-exact", testNow))
	seedClient(t, store, "client-just-before")
	require.NoError(t, store.SoftDeleteClient(ctx, "client-just-before", testNow.Add(-time.Millisecond)))

	plan, err := engine.ComputeSweep(ctx, 0)
	require.NoError(t, err)

	require.Len(t, plan.ToRemove, 1)
	assert.Equal(t, "client-just-before", plan.ToRemove[0].ID)
}

// =============================================================================
// TIE-BREAK: ARCHIVE CHECKED FIRST
// =============================================================================

func TestComputeSweep_RecentArchiveMasksOldDelete(t *testing.T) {
	// GIVEN: A client with an old deletedAt AND a recent archivedAt
	// WHEN: Sweeping
	// THEN: ArchivedAt alone is judged; the client stays, and only its
	//       old-enough deleted children are swept individually

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{
		WeekID: "2024-W10", Note: "old note",
	}))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindWeeklyDoc, "2024-W10", daysAgo(300)))
	require.NoError(t, store.SoftDeleteClient(ctx, "client-1", daysAgo(400)))
	require.NoError(t, store.ArchiveClient(ctx, "client-1", daysAgo(10)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)

	require.Len(t, plan.ToRemove, 1)
	item := plan.ToRemove[0]
	assert.Equal(t, casework.KindWeeklyDoc, item.Type)
	assert.Equal(t, "2024-W10", item.ID)
	assert.Equal(t, casework.ClientID("client-1"), item.ClientID)
}

func TestComputeSweep_OldArchiveWinsOverRecentDelete(t *testing.T) {
	// GIVEN: archivedAt old enough, deletedAt recent
	// THEN: The client is eligible on the archive stamp

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.SoftDeleteClient(ctx, "client-1", daysAgo(5)))
	require.NoError(t, store.ArchiveClient(ctx, "client-1", daysAgo(200)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)
	require.Len(t, plan.ToRemove, 1)
	assert.Equal(t, daysAgo(200), plan.ToRemove[0].DeletedAt)
}

// =============================================================================
// CHILD-ONLY SWEEPS AND SUPERSESSION
// =============================================================================

func TestComputeSweep_ActiveClientWithDeletedChildren(t *testing.T) {
	// GIVEN: An active client with a mix of deleted and live children
	// WHEN: Sweeping
	// THEN: Only the old-enough deleted children are planned

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")

	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{ID: "plan-1", Title: "Goals"}))
	require.NoError(t, store.SaveGFPPlan(ctx, "client-1", casework.GFPPlan{ID: "plan-2", Title: "More goals"}))
	require.NoError(t, store.SaveMonthlyReport(ctx, "client-1", casework.MonthlyReport{MonthID: "2024-03"}))
	require.NoError(t, store.SaveVismaWeek(ctx, "client-1", casework.VismaWeek{WeekID: "2024-W12"}))

	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindGFPPlan, "plan-1", daysAgo(300)))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindMonthlyReport, "2024-03", daysAgo(190)))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindVismaWeek, "2024-W12", daysAgo(30)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)

	require.Len(t, plan.ToRemove, 2)
	assert.Equal(t, casework.KindGFPPlan, plan.ToRemove[0].Type)
	assert.Equal(t, "plan-1", plan.ToRemove[0].ID)
	assert.Equal(t, casework.KindMonthlyReport, plan.ToRemove[1].Type)
	assert.Equal(t, "2024-03", plan.ToRemove[1].ID)
}

func TestComputeSweep_ClientItemSupersedesChildren(t *testing.T) {
	// GIVEN: An eligible client that also has eligible deleted children
	// WHEN: Sweeping
	// THEN: One client item only; no child items are emitted alongside it

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: "2024-W01"}))
	require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindWeeklyDoc, "2024-W01", daysAgo(400)))
	require.NoError(t, store.SoftDeleteClient(ctx, "client-1", daysAgo(400)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)

	require.Len(t, plan.ToRemove, 1)
	assert.Equal(t, casework.KindClient, plan.ToRemove[0].Type)
}

// =============================================================================
// PURITY AND DETERMINISM
// =============================================================================

func TestComputeSweep_IsPureAndDeterministic(t *testing.T) {
	// GIVEN: A store with several deleted records across map-keyed collections
	// WHEN: Computing the sweep twice
	// THEN: Identical plans, and the store is unchanged

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	for _, wk := range []casework.WeekID{"2024-W05", "2024-W01", "2024-W03"} {
		require.NoError(t, store.SaveWeeklyDoc(ctx, "client-1", casework.WeeklyDoc{WeekID: wk}))
		require.NoError(t, store.SoftDeleteChild(ctx, "client-1", casework.KindWeeklyDoc, string(wk), daysAgo(200)))
	}

	first, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)
	second, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Sorted emission order, not map order
	require.Len(t, first.ToRemove, 3)
	assert.Equal(t, "2024-W01", first.ToRemove[0].ID)
	assert.Equal(t, "2024-W03", first.ToRemove[1].ID)
	assert.Equal(t, "2024-W05", first.ToRemove[2].ID)

	// Nothing was mutated
	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Len(t, c.WeeklyDocs, 3)
}

func TestComputeSweep_SnapshotIsDeepCopy(t *testing.T) {
	// GIVEN: A plan containing a client snapshot
	// WHEN: The live client changes after compute
	// THEN: The snapshot keeps the state at compute time

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedClient(t, store, "client-1")
	require.NoError(t, store.SoftDeleteClient(ctx, "client-1", daysAgo(400)))

	plan, err := engine.ComputeSweep(ctx, 180)
	require.NoError(t, err)
	require.Len(t, plan.ToRemove, 1)

	c, err := store.GetClient(ctx, "client-1")
	require.NoError(t, err)
	c.Name = "renamed after compute"
	require.NoError(t, store.SaveClient(ctx, *c))

	snapshot := plan.ToRemove[0].Data.(casework.Client)
	assert.Equal(t, "Client client-1", snapshot.Name)
}

// =============================================================================
// CUTOFF VALIDATION
// =============================================================================

func TestValidateCutoffDays(t *testing.T) {
	assert.NoError(t, retention.ValidateCutoffDays(0))
	assert.NoError(t, retention.ValidateCutoffDays(180))

	err := retention.ValidateCutoffDays(-1)
	assert.ErrorIs(t, err, casework.ErrInvalidCutoff)
}
