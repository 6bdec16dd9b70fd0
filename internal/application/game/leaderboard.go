package game

// leaderboard.go — ranked read projections.
//
// Three views over the same counters:
//
//   days == 0   all-time global ranking
//   days == 7   current Friday-aligned weekly ranking
//   otherwise   global ranking restricted to wallets active within the
//               window, filtered here rather than in the store
//
// The rolling view over-fetches a multiple of the requested page from the
// ranked set before filtering, since the store cannot filter by activity.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

const (
	defaultPageSize = 100
	maxPageSize     = 200
	maxHistorySize  = 200
	maxOverfetch    = 1000
)

// Leaderboard serves ranked views and per-wallet history.
type Leaderboard struct {
	store ports.Store
	now   func() time.Time
}

func NewLeaderboard(store ports.Store) *Leaderboard {
	return &Leaderboard{store: store, now: time.Now}
}

// Page returns up to limit entries for the requested scope, descending by
// points with wallet order as the tie break.
func (lb *Leaderboard) Page(ctx context.Context, limit, days int) ([]domain.LeaderboardEntry, error) {
	limit = clamp(limit, defaultPageSize, maxPageSize)
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be non-negative", domain.ErrValidation)
	}

	switch days {
	case 0:
		return lb.rankedPage(ctx, pointsZKey, limit, limit, nil, lb.globalEntry)
	case 7:
		weekID := domain.WeekID(lb.now())
		hydrate := func(ctx context.Context, wallet string, points int64) domain.LeaderboardEntry {
			return lb.scopedEntry(ctx, wallet, points, func(field string) string {
				return weekWalletKey(weekID, wallet, field)
			})
		}
		return lb.rankedPage(ctx, weekZKey(weekID), limit, limit, nil, hydrate)
	default:
		cutoff := lb.now().UnixMilli() - int64(days)*24*time.Hour.Milliseconds()
		overfetch := min(maxOverfetch, max(limit*5, limit+50))
		keep := func(ctx context.Context, wallet string) bool {
			return lb.lastActivity(ctx, wallet) >= cutoff
		}
		return lb.rankedPage(ctx, pointsZKey, limit, overfetch, keep, lb.globalEntry)
	}
}

// rankedPage reads the top fetch members of a ranked set, optionally
// filters them, hydrates survivors and returns the first limit entries.
func (lb *Leaderboard) rankedPage(
	ctx context.Context,
	key string,
	limit, fetch int,
	keep func(ctx context.Context, wallet string) bool,
	hydrate func(ctx context.Context, wallet string, points int64) domain.LeaderboardEntry,
) ([]domain.LeaderboardEntry, error) {
	members, err := lb.store.ZRangeWithScores(ctx, key, -int64(fetch), -1)
	if err != nil {
		return nil, fmt.Errorf("game.Leaderboard: range %s: %w", key, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, limit)
	// store order is ascending, walk from the top
	for i := len(members) - 1; i >= 0 && len(entries) < limit; i-- {
		m := members[i]
		if keep != nil && !keep(ctx, m.Member) {
			continue
		}
		entries = append(entries, hydrate(ctx, m.Member, int64(m.Score)))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Wallet < entries[j].Wallet
	})
	return entries, nil
}

// History returns a wallet's resolved bets, newest first.
func (lb *Leaderboard) History(ctx context.Context, wallet string, limit int) ([]domain.HistoryEntry, error) {
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	limit = clamp(limit, 50, maxHistorySize)

	raw, err := lb.store.ZRange(ctx, histKey(w), -int64(limit), -1)
	if err != nil {
		return nil, fmt.Errorf("game.Leaderboard: history %s: %w", w, err)
	}

	entries := make([]domain.HistoryEntry, 0, len(raw))
	// newest first
	for i := len(raw) - 1; i >= 0; i-- {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			slog.Warn("skipping undecodable history entry", "wallet", w, "err", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stats returns one wallet's full global counters, whether or not it is
// ranked yet.
func (lb *Leaderboard) Stats(ctx context.Context, wallet string) (string, domain.Stats, error) {
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return "", domain.Stats{}, err
	}
	stats := domain.Stats{
		Points: lb.readInt(ctx, walletKey(w, "points")),
		Wins:   lb.readInt(ctx, walletKey(w, "wins")),
		Losses: lb.readInt(ctx, walletKey(w, "losses")),
		Rounds: lb.readInt(ctx, walletKey(w, "rounds")),
		Streak: lb.readInt(ctx, walletKey(w, "streak")),
		Best:   lb.readInt(ctx, walletKey(w, "best")),
		LastTs: lb.readInt(ctx, walletKey(w, "lastTs")),
	}
	return w, stats, nil
}

func (lb *Leaderboard) globalEntry(ctx context.Context, wallet string, points int64) domain.LeaderboardEntry {
	return lb.scopedEntry(ctx, wallet, points, func(field string) string {
		return walletKey(wallet, field)
	})
}

func (lb *Leaderboard) scopedEntry(ctx context.Context, wallet string, points int64, key func(field string) string) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Wallet: wallet,
		Points: points,
		Wins:   lb.readInt(ctx, key("wins")),
		Losses: lb.readInt(ctx, key("losses")),
		Streak: lb.readInt(ctx, key("streak")),
		Best:   lb.readInt(ctx, key("best")),
	}
}

func (lb *Leaderboard) lastActivity(ctx context.Context, wallet string) int64 {
	return lb.readInt(ctx, walletKey(wallet, "lastTs"))
}

func (lb *Leaderboard) readInt(ctx context.Context, key string) int64 {
	v, err := lb.store.Get(ctx, key)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func clamp(n, fallback, ceiling int) int {
	if n <= 0 {
		return fallback
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
