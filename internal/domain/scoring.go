package domain

import (
	"math"
	"time"
)

// Point deltas and throttles. The decay multiplier is an anti-farming
// measure: past 20 resolved bets in a single settlement batch each further
// bet is worth 5% less, floored at half value.
const (
	winPoints      = 10
	lossPoints     = -6
	maxStreakBonus = 20

	decayFreeBets = 20
	decayStep     = 0.05
	decayFloor    = 0.5
)

// Stats are the per-wallet aggregate counters, kept both globally and per
// weekly scope. Points move by signed deltas; the rest only grow except
// Streak, which resets on loss.
type Stats struct {
	Points int64 `json:"points"`
	Wins   int64 `json:"wins"`
	Losses int64 `json:"losses"`
	Rounds int64 `json:"rounds"`
	Streak int64 `json:"streak"`
	Best   int64 `json:"best"`
	LastTs int64 `json:"lastTs"` // unix ms of last recorded result
}

// DailyMultiplier returns the decay factor for the n-th resolved bet of a
// wallet within one settlement batch (1-based).
func DailyMultiplier(n int) float64 {
	if n <= decayFreeBets {
		return 1
	}
	return math.Max(decayFloor, 1-float64(n-decayFreeBets)*decayStep)
}

// ScoreBet folds one bet outcome into a streak state and returns the point
// delta plus the updated streak and best values.
//
//	win:  streak+1, bonus min(20, streak*2) on top of +10
//	loss: -6 minus floor(streak/2), streak resets
//
// n is the wallet's position in the current settlement batch (1-based),
// feeding the decay multiplier. Half-point deltas round toward positive
// infinity, so a decayed -4.5 settles at -4.
func ScoreBet(streak, best int64, win bool, n int) (delta, newStreak, newBest int64) {
	newStreak, newBest = streak, best
	var d int64
	if win {
		newStreak++
		if newStreak > newBest {
			newBest = newStreak
		}
		d = winPoints + min(maxStreakBonus, newStreak*2)
	} else {
		d = lossPoints - streak/2
		newStreak = 0
	}
	delta = int64(math.Floor(float64(d)*DailyMultiplier(n) + 0.5))
	return delta, newStreak, newBest
}

// WeekID returns the Friday-aligned weekly scope identifier for t: the date
// (YYYY-MM-DD, UTC) of the most recent Friday at or before t. A new scope
// opens every Friday 00:00 UTC.
func WeekID(t time.Time) string {
	t = t.UTC()
	daysSinceFriday := (int(t.Weekday()) - int(time.Friday) + 7) % 7
	friday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceFriday)
	return friday.Format("2006-01-02")
}
