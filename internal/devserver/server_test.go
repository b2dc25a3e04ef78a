package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidan3445/castaway/internal/fault"
	"github.com/Aidan3445/castaway/internal/models"
	"github.com/Aidan3445/castaway/internal/remote"
)

func staticToken(token string) remote.TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// twoMemberLeague builds a minimal drafting league: member 1 (owner,
// token user-1) picks first, member 2 (token user-2) second.
func twoMemberLeague(status models.LeagueStatus) *LeagueState {
	ls := &LeagueState{
		League: models.League{Hash: "test01", Name: "Test League", Season: "47", Status: status},
		Members: []models.Member{
			{ID: 1, DisplayName: "alice", Color: models.Palette[0], Role: models.RoleOwner, DraftOrder: 0},
			{ID: 2, DisplayName: "bob", Color: models.Palette[1], Role: models.RoleMember, DraftOrder: 1},
		},
		Timeline: make(models.SelectionTimeline),
		Contestants: []models.Contestant{
			{ID: "c-01", Name: "Quinn"},
			{ID: "c-02", Name: "Raj"},
			{ID: "c-03", Name: "Sana"},
		},
		bindings: map[string]int{"user-1": 1, "user-2": 2},
	}
	return ls
}

func newTestServer(t *testing.T, states ...*LeagueState) (*httptest.Server, *Store) {
	t.Helper()
	store := NewStore(clockwork.NewFakeClock())
	for _, ls := range states {
		store.Add(ls)
	}
	ts := httptest.NewServer(NewServer(store).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func TestReadsRequireAuth(t *testing.T) {
	ts, _ := newTestServer(t, twoMemberLeague(models.LeagueStatusPredraft))

	client := remote.NewClient(ts.URL, staticToken(""))
	_, err := client.GetLeague(context.Background(), "test01")
	assert.ErrorIs(t, err, fault.ErrAuthRequired)

	stranger := remote.NewClient(ts.URL, staticToken("user-99"))
	_, err = stranger.GetLeague(context.Background(), "test01")
	assert.ErrorIs(t, err, fault.ErrFatal, "unbound tokens are rejected")
}

func TestUnknownLeague(t *testing.T) {
	ts, _ := newTestServer(t)
	client := remote.NewClient(ts.URL, staticToken("user-1"))
	_, err := client.GetLeague(context.Background(), "ghost")
	assert.ErrorIs(t, err, fault.ErrFatal)
}

func TestReadEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, twoMemberLeague(models.LeagueStatusPredraft))
	client := remote.NewClient(ts.URL, staticToken("user-2"))
	ctx := context.Background()

	lg, err := client.GetLeague(ctx, "test01")
	require.NoError(t, err)
	assert.Equal(t, "Test League", lg.Name)
	assert.Equal(t, models.LeagueStatusPredraft, lg.Status)

	members, err := client.GetMembers(ctx, "test01")
	require.NoError(t, err)
	require.Len(t, members, 2)

	me, err := client.GetSelf(ctx, "test01")
	require.NoError(t, err)
	assert.Equal(t, 2, me.ID)
	assert.True(t, me.LoggedIn)

	cs, err := client.GetContestants(ctx, "test01")
	require.NoError(t, err)
	assert.Len(t, cs, 3)

	tl, err := client.GetTimeline(ctx, "test01")
	require.NoError(t, err)
	assert.Empty(t, tl)
}

func TestOutOfTurnPickIsRejected(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusDraft))
	ctx := context.Background()

	// Member 2 tries to pick while member 1 is on the clock.
	bob := remote.NewClient(ts.URL, staticToken("user-2"))
	_, err := bob.CommitPick(ctx, "test01", "c-01")
	require.ErrorIs(t, err, fault.ErrTurnViolation)

	ls := store.Get("test01")
	_, _, tl := ls.Snapshot()
	assert.Empty(t, tl, "rejected pick must not be recorded")

	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	resp, err := alice.CommitPick(ctx, "test01", "c-01")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.PicksMade)
	assert.False(t, resp.Completed)
}

func TestClaimedContestantIsStaleWrite(t *testing.T) {
	ts, _ := newTestServer(t, twoMemberLeague(models.LeagueStatusDraft))
	ctx := context.Background()

	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	_, err := alice.CommitPick(ctx, "test01", "c-01")
	require.NoError(t, err)

	bob := remote.NewClient(ts.URL, staticToken("user-2"))
	_, err = bob.CommitPick(ctx, "test01", "c-01")
	assert.ErrorIs(t, err, fault.ErrStaleWrite)
}

func TestFinalPickCompletesAndCompletionIsIdempotent(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusDraft))
	ctx := context.Background()

	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	_, err := alice.CommitPick(ctx, "test01", "c-01")
	require.NoError(t, err)
	resp, err := bob.CommitPick(ctx, "test01", "c-02")
	require.NoError(t, err)
	assert.True(t, resp.Completed)

	// Every client that observed completion issues the status write;
	// the server accepts the first and treats the rest as a success.
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := alice
			if i%2 == 1 {
				client = bob
			}
			errs[i] = client.CompleteDraft(ctx, "test01")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "completion observer %d", i)
	}

	ls := store.Get("test01")
	lg, _, _ := ls.Snapshot()
	assert.Equal(t, models.LeagueStatusActive, lg.Status)
}

func TestCompleteDraftBeforeLastPickIsStale(t *testing.T) {
	ts, _ := newTestServer(t, twoMemberLeague(models.LeagueStatusDraft))
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	err := alice.CompleteDraft(context.Background(), "test01")
	assert.ErrorIs(t, err, fault.ErrStaleWrite)
}

func TestConcurrentPicksSerializeToOneWinner(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusDraft))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))

	// Two devices owned by the same member race to make the first pick.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	contestants := []string{"c-01", "c-02"}
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = alice.CommitPick(ctx, "test01", contestants[i])
		}(i)
	}
	wg.Wait()

	// Exactly one wins; the loser sees a turn violation because the
	// winning pick advanced the clock to member 2.
	wins, violations := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case fault.Recoverable(err):
			violations++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, violations)

	ls := store.Get("test01")
	_, _, tl := ls.Snapshot()
	require.Len(t, tl[1], 1)
}

func TestSkipAndSendToBack(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusDraft))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	// Plain members may not run draft administration.
	_, err := bob.SkipForward(ctx, "test01")
	assert.ErrorIs(t, err, fault.ErrFatal)

	resp, err := alice.SkipForward(ctx, "test01")
	require.NoError(t, err)
	assert.True(t, resp.Skipped)

	_, members, _ := store.Get("test01").Snapshot()
	byID := map[int]int{}
	for _, m := range members {
		byID[m.ID] = m.DraftOrder
	}
	assert.Equal(t, 1, byID[1], "skipped member moves back one slot")
	assert.Equal(t, 0, byID[2])

	require.NoError(t, alice.SendToBack(ctx, "test01", 2))
	_, members, _ = store.Get("test01").Snapshot()
	for _, m := range members {
		if m.ID == 2 {
			assert.Equal(t, len(members)-1, m.DraftOrder)
		}
	}
}

func TestReplaceOrderPredraftOnly(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusPredraft))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))

	require.NoError(t, alice.ReplaceOrder(ctx, "test01", []int{2, 1}))
	_, members, _ := store.Get("test01").Snapshot()
	for _, m := range members {
		if m.ID == 2 {
			assert.Equal(t, 0, m.DraftOrder)
		}
	}

	// Locked once the draft starts.
	drafting := twoMemberLeague(models.LeagueStatusDraft)
	drafting.League.Hash = "test02"
	store.Add(drafting)
	err := alice.ReplaceOrder(ctx, "test02", []int{2, 1})
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestStartDraftLifecycle(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusPredraft))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	// No draft date set: only an owner/admin may start early.
	err := bob.StartDraft(ctx, "test01")
	assert.ErrorIs(t, err, fault.ErrValidation)

	require.NoError(t, alice.StartDraft(ctx, "test01"))
	lg, _, _ := store.Get("test01").Snapshot()
	assert.Equal(t, models.LeagueStatusDraft, lg.Status)

	// Starting twice is a validation error, not a crash.
	err = alice.StartDraft(ctx, "test01")
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestEndSeasonAndDelete(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusActive))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	err := bob.EndSeason(ctx, "test01")
	assert.ErrorIs(t, err, fault.ErrValidation)

	require.NoError(t, alice.EndSeason(ctx, "test01"))
	lg, _, _ := store.Get("test01").Snapshot()
	assert.Equal(t, models.LeagueStatusInactive, lg.Status)

	err = alice.DeleteLeague(ctx, "test01", "wrong name")
	assert.ErrorIs(t, err, fault.ErrValidation)
	require.NotNil(t, store.Get("test01"))

	require.NoError(t, alice.DeleteLeague(ctx, "test01", "Test League"))
	assert.Nil(t, store.Get("test01"))
}

func TestUpdateSettings(t *testing.T) {
	ts, _ := newTestServer(t, twoMemberLeague(models.LeagueStatusPredraft))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	err := bob.UpdateSettings(ctx, "test01", json.RawMessage(`{"pickDeadline":"air"}`))
	assert.ErrorIs(t, err, fault.ErrFatal, "plain members cannot write settings")

	require.NoError(t, alice.UpdateSettings(ctx, "test01", json.RawMessage(`{"pickDeadline":"air"}`)))

	data, err := bob.GetRaw(ctx, remote.EndpointForKind("test01", "settings"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"pickDeadline":"air"}`, string(data))
}

func TestCloneAndArchive(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusActive))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	_, err := bob.CloneAndArchive(ctx, "test01", "Next Season")
	assert.ErrorIs(t, err, fault.ErrValidation)

	clone, err := alice.CloneAndArchive(ctx, "test01", "Next Season")
	require.NoError(t, err)
	assert.NotEqual(t, "test01", clone.Hash)
	assert.Equal(t, "Next Season", clone.Name)
	assert.Equal(t, models.LeagueStatusPredraft, clone.Status)

	// The old league is archived in the same operation.
	lg, _, _ := store.Get("test01").Snapshot()
	assert.Equal(t, models.LeagueStatusInactive, lg.Status)

	// Membership and auth bindings carry over to the clone.
	cloned := store.Get(clone.Hash)
	require.NotNil(t, cloned)
	_, members, tl := cloned.Snapshot()
	assert.Len(t, members, 2)
	assert.Empty(t, tl, "picks stay with the archive")
	me, err := bob.GetSelf(ctx, clone.Hash)
	require.NoError(t, err)
	assert.Equal(t, 2, me.ID)

	// Archiving twice is rejected.
	_, err = alice.CloneAndArchive(ctx, "test01", "Third Season")
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestMembershipAdministration(t *testing.T) {
	ls := twoMemberLeague(models.LeagueStatusPredraft)
	ls.Pending = []models.PendingMember{{ID: 7, DisplayName: "gail"}}
	ts, store := newTestServer(t, ls)
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))

	require.NoError(t, alice.AdmitMember(ctx, "test01", 7))
	_, members, _ := store.Get("test01").Snapshot()
	require.Len(t, members, 3)
	var admitted models.Member
	for _, m := range members {
		if m.ID == 7 {
			admitted = m
		}
	}
	assert.Equal(t, 2, admitted.DraftOrder, "admitted member joins at the back")
	assert.Equal(t, models.RoleMember, admitted.Role)
	assert.NotEmpty(t, admitted.Color)

	require.NoError(t, alice.ChangeRole(ctx, "test01", 2, models.RoleAdmin))
	_, members, _ = store.Get("test01").Snapshot()
	for _, m := range members {
		if m.ID == 2 {
			assert.Equal(t, models.RoleAdmin, m.Role)
		}
	}

	// Removing a member renumbers the remaining order contiguously.
	require.NoError(t, alice.RemoveMember(ctx, "test01", 2))
	_, members, _ = store.Get("test01").Snapshot()
	require.Len(t, members, 2)
	orders := map[int]bool{}
	for _, m := range members {
		orders[m.DraftOrder] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, orders)

	// The owner cannot be removed.
	err := alice.RemoveMember(ctx, "test01", 1)
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestTransferOwnership(t *testing.T) {
	ts, store := newTestServer(t, twoMemberLeague(models.LeagueStatusActive))
	ctx := context.Background()
	alice := remote.NewClient(ts.URL, staticToken("user-1"))
	bob := remote.NewClient(ts.URL, staticToken("user-2"))

	err := bob.TransferOwnership(ctx, "test01", 2)
	assert.ErrorIs(t, err, fault.ErrStaleWrite, "non-owner transfer is a stale view of roles")

	require.NoError(t, alice.TransferOwnership(ctx, "test01", 2))
	_, members, _ := store.Get("test01").Snapshot()
	owners := 0
	for _, m := range members {
		if m.Role == models.RoleOwner {
			owners++
			assert.Equal(t, 2, m.ID)
		}
	}
	assert.Equal(t, 1, owners, "exactly one owner at all times")
}

func TestSeedLeagueIsWellFormed(t *testing.T) {
	firstAir := time.Date(2026, 9, 23, 20, 0, 0, 0, time.UTC)
	ls := SeedLeague(DefaultSeed(firstAir))

	assert.NotEmpty(t, ls.League.Hash)
	assert.Equal(t, models.LeagueStatusPredraft, ls.League.Status)
	require.Len(t, ls.Members, 6)

	owners := 0
	orders := map[int]bool{}
	for _, m := range ls.Members {
		if m.Role == models.RoleOwner {
			owners++
		}
		orders[m.DraftOrder] = true
	}
	assert.Equal(t, 1, owners)
	assert.Len(t, orders, len(ls.Members), "draft order must be a permutation")

	for i := range ls.Members {
		_, bound := ls.bindings[fmt.Sprintf("user-%d", ls.Members[i].ID)]
		assert.True(t, bound)
	}

	assert.Len(t, ls.Contestants, 18)
	require.Len(t, ls.Episodes, 13)
	assert.Equal(t, firstAir, ls.Episodes[0].AirDate)
	require.NotNil(t, ls.League.DraftDate)
	assert.True(t, ls.League.DraftDate.Before(firstAir))
}
