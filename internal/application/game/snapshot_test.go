package game

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

func newTestSnapshots(t *testing.T) (*Snapshots, ports.Store) {
	t.Helper()
	lb, store := newTestLeaderboard(t)
	return NewSnapshots(store, lb), store
}

func seedWeekly(t *testing.T, store ports.Store, weekID, wallet string, points int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.ZAdd(ctx, weekZKey(weekID), ports.ScoredMember{Member: wallet, Score: float64(points)}))
	require.NoError(t, store.Set(ctx, weekWalletKey(weekID, wallet, "wins"), strconv.FormatInt(points/10, 10), 0))
}

func TestSnapshotWeekTopThree(t *testing.T) {
	snaps, store := newTestSnapshots(t)
	ctx := context.Background()
	weekID := domain.WeekID(time.Now())

	for i, points := range []int64{40, 10, 30, 20} {
		seedWeekly(t, store, weekID, testAddr(i), points)
	}

	snap, err := snaps.SnapshotWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, weekID, snap.WeekID)
	require.Len(t, snap.Winners, 3)
	assert.Equal(t, testAddr(0), snap.Winners[0].Wallet)
	assert.Equal(t, int64(40), snap.Winners[0].Points)
	assert.Equal(t, int64(4), snap.Winners[0].Wins)
	assert.Equal(t, testAddr(2), snap.Winners[1].Wallet)
	assert.Equal(t, testAddr(3), snap.Winners[2].Wallet)

	stored, err := snaps.Get(ctx, weekID)
	require.NoError(t, err)
	assert.Equal(t, snap, stored)
}

func TestSnapshotWeekOverwrite(t *testing.T) {
	snaps, store := newTestSnapshots(t)
	ctx := context.Background()
	weekID := domain.WeekID(time.Now())

	seedWeekly(t, store, weekID, testAddr(0), 10)
	_, err := snaps.SnapshotWeek(ctx)
	require.NoError(t, err)

	seedWeekly(t, store, weekID, testAddr(0), 50)
	snap, err := snaps.SnapshotWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), snap.Winners[0].Points)

	// one index entry per week
	refs, err := snaps.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, weekID, refs[0].WeekID)
}

func TestSnapshotGetMissing(t *testing.T) {
	snaps, _ := newTestSnapshots(t)
	_, err := snaps.Get(context.Background(), "2026-08-21")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSnapshotGetBadWeekID(t *testing.T) {
	snaps, _ := newTestSnapshots(t)
	_, err := snaps.Get(context.Background(), "last-friday")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSnapshotListNewestFirst(t *testing.T) {
	snaps, store := newTestSnapshots(t)
	ctx := context.Background()

	for i, weekID := range []string{"2026-08-07", "2026-08-14", "2026-08-21"} {
		require.NoError(t, store.ZAdd(ctx, snapshotsZKey, ports.ScoredMember{Member: weekID, Score: float64(1000 + i)}))
	}

	refs, err := snaps.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "2026-08-21", refs[0].WeekID)
	assert.Equal(t, "2026-08-14", refs[1].WeekID)
}

func TestBackfillLastTs(t *testing.T) {
	snaps, store := newTestSnapshots(t)
	ctx := context.Background()
	now := time.Now()

	// one wallet with lastTs, one without, one with an explicit update
	seedWallet(t, store, testAddr(0), 10, 1, 0, 0, 1, now.UnixMilli())
	require.NoError(t, store.ZAdd(ctx, pointsZKey, ports.ScoredMember{Member: testAddr(1), Score: 20}))
	require.NoError(t, store.ZAdd(ctx, pointsZKey, ports.ScoredMember{Member: testAddr(2), Score: 30}))

	explicit := now.Add(-time.Hour).UnixMilli()
	report, err := snaps.BackfillLastTs(ctx, map[string]int64{testAddr(2): explicit}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Defaults)

	assert.Equal(t, strconv.FormatInt(explicit, 10), mustGet(t, store, walletKey(testAddr(2), "lastTs")))

	// untouched wallet keeps its timestamp
	assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), mustGet(t, store, walletKey(testAddr(0), "lastTs")))

	// defaulted wallet lands roughly defaultDaysAgo back
	v, err := strconv.ParseInt(mustGet(t, store, walletKey(testAddr(1), "lastTs")), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, now.AddDate(0, 0, -3).UnixMilli(), v, float64(5*time.Second.Milliseconds()))
}

func TestBackfillBadWallet(t *testing.T) {
	snaps, _ := newTestSnapshots(t)
	_, err := snaps.BackfillLastTs(context.Background(), map[string]int64{"bogus": 1}, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
