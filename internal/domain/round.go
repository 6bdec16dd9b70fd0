package domain

import "time"

// Default round timing. Both values are configurable; these are the
// production constants the game has always run with.
const (
	DefaultRoundDuration = 5 * time.Minute
	DefaultLockWindow    = time.Minute
)

// Round is a fixed-duration betting window. It is derived purely from
// wall-clock time — any party (server, client, tests) recomputes the same
// round from the same instant, nothing is persisted.
type Round struct {
	ID    int64
	Start time.Time
	End   time.Time
}

// CurrentRound returns the round containing now for the given duration.
// ID = floor(nowMs / durationMs), so ids are strictly increasing and periodic.
func CurrentRound(now time.Time, duration time.Duration) Round {
	durMs := duration.Milliseconds()
	id := now.UnixMilli() / durMs
	start := id * durMs
	return Round{
		ID:    id,
		Start: time.UnixMilli(start).UTC(),
		End:   time.UnixMilli(start + durMs).UTC(),
	}
}

// RoundByID reconstructs a past (or future) round from its id.
func RoundByID(id int64, duration time.Duration) Round {
	durMs := duration.Milliseconds()
	start := id * durMs
	return Round{
		ID:    id,
		Start: time.UnixMilli(start).UTC(),
		End:   time.UnixMilli(start + durMs).UTC(),
	}
}

// Duration of the round window.
func (r Round) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// BettingLocked reports whether now falls inside the trailing lock window,
// during which new wagers are rejected: now - start >= duration - lockWindow.
func (r Round) BettingLocked(now time.Time, lockWindow time.Duration) bool {
	return now.Sub(r.Start) >= r.Duration()-lockWindow
}

// TimeStatus is the payload of the time-sync handshake. Clients subtract
// their local clock from Now to compute a drift offset.
type TimeStatus struct {
	Now         int64 `json:"now"`
	RoundID     int64 `json:"roundId"`
	RoundMs     int64 `json:"roundMs"`
	RoundEnd    int64 `json:"roundEnd"`
	MsRemaining int64 `json:"msRemaining"`
	MsElapsed   int64 `json:"msElapsed"`
	BetLockMs   int64 `json:"betLockMs"`
	BettingOpen bool  `json:"bettingOpen"`
}

// NewTimeStatus projects the current round onto the wire shape served by
// the time endpoint.
func NewTimeStatus(now time.Time, duration, lockWindow time.Duration) TimeStatus {
	r := CurrentRound(now, duration)
	nowMs := now.UnixMilli()
	return TimeStatus{
		Now:         nowMs,
		RoundID:     r.ID,
		RoundMs:     duration.Milliseconds(),
		RoundEnd:    r.End.UnixMilli(),
		MsRemaining: r.End.UnixMilli() - nowMs,
		MsElapsed:   nowMs - r.Start.UnixMilli(),
		BetLockMs:   lockWindow.Milliseconds(),
		BettingOpen: !r.BettingLocked(now, lockWindow),
	}
}
