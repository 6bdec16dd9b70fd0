package game

// keys.go — store key layout.
//
// Global scope:   lb:<wallet>:{points,wins,losses,rounds,streak,best,last,lastTs,lastRec}
// Ranking:        lb:z:points                 (wallet → cumulative points)
// Weekly scope:   lb:week:<weekId>:<wallet>:* and lb:week:<weekId>:z:points
// History:        lb:hist:<wallet>            (JSON entries scored by ts)
// Open bets:      bet:<roundId>:<wallet>:<asset> plus bet:z:<roundId> index
// Settlement:     lb:resolved:<roundId>:<wallet>:<asset> idempotency markers
// Snapshots:      lb:snapshot:<weekId> and lb:snapshots:z index
//
// Wallets are always lowercased before keying.

import (
	"fmt"
	"time"
)

const (
	pointsZKey    = "lb:z:points"
	snapshotsZKey = "lb:snapshots:z"

	// recency marker and weekly streak/best roll off after a week
	rollingTTL = 7 * 24 * time.Hour

	// open bets and resolution markers age out after a day; markers only
	// matter while a round can still be retried
	betTTL      = 24 * time.Hour
	resolvedTTL = 24 * time.Hour
)

func walletKey(wallet, field string) string {
	return fmt.Sprintf("lb:%s:%s", wallet, field)
}

func weekWalletKey(weekID, wallet, field string) string {
	return fmt.Sprintf("lb:week:%s:%s:%s", weekID, wallet, field)
}

func weekZKey(weekID string) string {
	return fmt.Sprintf("lb:week:%s:z:points", weekID)
}

func histKey(wallet string) string {
	return fmt.Sprintf("lb:hist:%s", wallet)
}

func betKey(roundID int64, wallet, asset string) string {
	return fmt.Sprintf("bet:%d:%s:%s", roundID, wallet, asset)
}

func betIndexKey(roundID int64) string {
	return fmt.Sprintf("bet:z:%d", roundID)
}

func resolvedKey(roundID int64, wallet, asset string) string {
	return fmt.Sprintf("lb:resolved:%d:%s:%s", roundID, wallet, asset)
}

func snapshotKey(weekID string) string {
	return fmt.Sprintf("lb:snapshot:%s", weekID)
}
