package domain

// LeaderboardEntry is the read projection served by ranked views: the
// sorted-set ranking joined with the wallet's counters for that scope.
type LeaderboardEntry struct {
	Wallet string `json:"addr"`
	Points int64  `json:"points"`
	Wins   int64  `json:"wins"`
	Losses int64  `json:"losses"`
	Streak int64  `json:"streak"`
	Best   int64  `json:"best"`
}

// Snapshot is an immutable capture of the top wallets of one weekly scope.
// Re-taking a snapshot for the same week overwrites the record.
type Snapshot struct {
	WeekID  string             `json:"weekId"`
	Ts      int64              `json:"ts"`
	Winners []LeaderboardEntry `json:"winners"`
}

// SnapshotRef identifies a stored snapshot in the history index.
type SnapshotRef struct {
	WeekID string `json:"weekId"`
	Ts     int64  `json:"ts"`
}

// HistoryEntry is one resolved bet in a wallet's personal history.
type HistoryEntry struct {
	RoundID   int64  `json:"roundId"`
	Asset     string `json:"asset"`
	Side      Side   `json:"side"`
	Win       bool   `json:"win"`
	Delta     int64  `json:"delta"`
	Ts        int64  `json:"ts"`
	ReceiptID string `json:"irysId,omitempty"`
}
