package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentRound_Derivation(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)
	r := CurrentRound(now, DefaultRoundDuration)

	assert.Equal(t, now.UnixMilli()/300_000, r.ID)
	assert.Equal(t, r.ID*300_000, r.Start.UnixMilli())
	assert.Equal(t, r.Start.Add(DefaultRoundDuration), r.End)
	assert.True(t, !now.Before(r.Start) && now.Before(r.End))
}

func TestCurrentRound_Periodic(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	base := CurrentRound(now, DefaultRoundDuration)

	for k := int64(1); k <= 5; k++ {
		later := CurrentRound(now.Add(time.Duration(k)*DefaultRoundDuration), DefaultRoundDuration)
		assert.Equal(t, base.ID+k, later.ID)
	}
}

func TestCurrentRound_MonotonicAcrossBoundary(t *testing.T) {
	r := CurrentRound(time.UnixMilli(1_700_000_000_000), DefaultRoundDuration)

	before := CurrentRound(r.End.Add(-time.Millisecond), DefaultRoundDuration)
	after := CurrentRound(r.End, DefaultRoundDuration)

	assert.Equal(t, r.ID, before.ID)
	assert.Equal(t, r.ID+1, after.ID)
}

func TestRoundByID_RoundTrip(t *testing.T) {
	r := CurrentRound(time.UnixMilli(1_700_000_222_333), DefaultRoundDuration)
	assert.Equal(t, r, RoundByID(r.ID, DefaultRoundDuration))
}

func TestBettingLocked_Boundaries(t *testing.T) {
	r := RoundByID(100, DefaultRoundDuration)

	assert.False(t, r.BettingLocked(r.Start, DefaultLockWindow))
	assert.False(t, r.BettingLocked(r.End.Add(-DefaultLockWindow-time.Millisecond), DefaultLockWindow))
	// exactly at duration-lockWindow the window is locked
	assert.True(t, r.BettingLocked(r.End.Add(-DefaultLockWindow), DefaultLockWindow))
	assert.True(t, r.BettingLocked(r.End.Add(-time.Second), DefaultLockWindow))
}

func TestNewTimeStatus(t *testing.T) {
	now := time.UnixMilli(1_700_000_100_000)
	ts := NewTimeStatus(now, DefaultRoundDuration, DefaultLockWindow)

	assert.Equal(t, now.UnixMilli(), ts.Now)
	assert.Equal(t, int64(300_000), ts.RoundMs)
	assert.Equal(t, int64(60_000), ts.BetLockMs)
	assert.Equal(t, ts.RoundMs, ts.MsRemaining+ts.MsElapsed)

	r := CurrentRound(now, DefaultRoundDuration)
	assert.Equal(t, r.ID, ts.RoundID)
	assert.Equal(t, r.End.UnixMilli(), ts.RoundEnd)
	assert.Equal(t, !r.BettingLocked(now, DefaultLockWindow), ts.BettingOpen)
}
