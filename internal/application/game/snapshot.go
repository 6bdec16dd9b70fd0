package game

// snapshot.go — weekly winner archival and maintenance backfill.

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

const (
	snapshotWinners  = 3
	maxSnapshotsList = 52
)

// Snapshots captures and serves immutable weekly top lists.
type Snapshots struct {
	store ports.Store
	board *Leaderboard
	now   func() time.Time
}

func NewSnapshots(store ports.Store, board *Leaderboard) *Snapshots {
	return &Snapshots{store: store, board: board, now: time.Now}
}

// SnapshotWeek freezes the top wallets of the current weekly ranking.
// Calling it again within the same week overwrites the stored record; the
// index keeps a single entry per week.
func (s *Snapshots) SnapshotWeek(ctx context.Context) (domain.Snapshot, error) {
	now := s.now()
	weekID := domain.WeekID(now)

	winners, err := s.board.Page(ctx, snapshotWinners, 7)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("game.SnapshotWeek: %w", err)
	}

	snap := domain.Snapshot{
		WeekID:  weekID,
		Ts:      now.UnixMilli(),
		Winners: winners,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("game.SnapshotWeek: marshal: %w", err)
	}
	if err := s.store.Set(ctx, snapshotKey(weekID), string(raw), 0); err != nil {
		return domain.Snapshot{}, fmt.Errorf("game.SnapshotWeek: store: %w", err)
	}
	if err := s.store.ZAdd(ctx, snapshotsZKey, ports.ScoredMember{Member: weekID, Score: float64(snap.Ts)}); err != nil {
		return domain.Snapshot{}, fmt.Errorf("game.SnapshotWeek: index: %w", err)
	}
	return snap, nil
}

// Get loads one stored weekly snapshot. Missing weeks surface
// ports.ErrNotFound.
func (s *Snapshots) Get(ctx context.Context, weekID string) (domain.Snapshot, error) {
	if _, err := time.Parse("2006-01-02", weekID); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: weekId must be YYYY-MM-DD, got %q", domain.ErrValidation, weekID)
	}
	raw, err := s.store.Get(ctx, snapshotKey(weekID))
	if err != nil {
		return domain.Snapshot{}, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("game.Snapshots.Get %s: decode: %w", weekID, err)
	}
	return snap, nil
}

// List returns snapshot references, newest first.
func (s *Snapshots) List(ctx context.Context, limit int) ([]domain.SnapshotRef, error) {
	limit = clamp(limit, 10, maxSnapshotsList)
	members, err := s.store.ZRangeWithScores(ctx, snapshotsZKey, -int64(limit), -1)
	if err != nil {
		return nil, fmt.Errorf("game.Snapshots.List: %w", err)
	}
	refs := make([]domain.SnapshotRef, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		refs = append(refs, domain.SnapshotRef{
			WeekID: members[i].Member,
			Ts:     int64(members[i].Score),
		})
	}
	return refs, nil
}

// BackfillReport tallies one lastTs maintenance run.
type BackfillReport struct {
	Scanned  int `json:"scanned"`
	Updated  int `json:"updated"`
	Defaults int `json:"defaults"`
}

// BackfillLastTs repairs activity timestamps across the ranked set.
// Wallets listed in updates get that value outright; ranked wallets with no
// lastTs at all get a default of defaultDaysAgo in the past, so rolling
// windows stop silently dropping them.
func (s *Snapshots) BackfillLastTs(ctx context.Context, updates map[string]int64, defaultDaysAgo int) (BackfillReport, error) {
	var report BackfillReport
	if defaultDaysAgo <= 0 {
		defaultDaysAgo = 1
	}
	defaultTs := s.now().AddDate(0, 0, -defaultDaysAgo).UnixMilli()

	normalized := make(map[string]int64, len(updates))
	for wallet, ts := range updates {
		w, err := domain.NormalizeWallet(wallet)
		if err != nil {
			return report, err
		}
		normalized[w] = ts
	}

	wallets, err := s.store.ZRange(ctx, pointsZKey, 0, -1)
	if err != nil {
		return report, fmt.Errorf("game.BackfillLastTs: %w", err)
	}

	for _, wallet := range wallets {
		report.Scanned++
		key := walletKey(wallet, "lastTs")

		if ts, ok := normalized[wallet]; ok {
			if err := s.store.Set(ctx, key, strconv.FormatInt(ts, 10), 0); err != nil {
				return report, fmt.Errorf("game.BackfillLastTs: %s: %w", wallet, err)
			}
			report.Updated++
			continue
		}

		if _, err := s.store.Get(ctx, key); err == nil {
			continue
		}
		if err := s.store.Set(ctx, key, strconv.FormatInt(defaultTs, 10), 0); err != nil {
			return report, fmt.Errorf("game.BackfillLastTs: %s: %w", wallet, err)
		}
		report.Defaults++
	}
	return report, nil
}
