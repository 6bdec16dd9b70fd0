package game

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

type fakeSigner struct {
	lastPayout *big.Int
}

func (f *fakeSigner) Sign(roundID int64, player, asset, side string, payoutWei *big.Int) (ports.RewardAuthorization, error) {
	f.lastPayout = new(big.Int).Set(payoutWei)
	return ports.RewardAuthorization{
		BetKey:    "0xbetkey",
		Signature: "0xsig",
		Player:    player,
		PayoutWei: payoutWei.String(),
	}, nil
}

func seedWin(t *testing.T, store ports.Store, wallet string, entry domain.HistoryEntry) {
	t.Helper()
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, store.ZAdd(context.Background(), histKey(wallet), ports.ScoredMember{Member: string(raw), Score: float64(entry.Ts)}))
}

func TestAuthorizeSignsRecordedWin(t *testing.T) {
	board, store := newTestLeaderboard(t)
	signer := &fakeSigner{}
	rewards := NewRewards(board, signer)
	wallet := testAddr(0)

	seedWin(t, store, wallet, domain.HistoryEntry{
		RoundID: 99, Asset: "BTC", Side: domain.SideUp, Win: true, Delta: 12, Ts: 1000,
	})

	grant, err := rewards.Authorize(context.Background(), RewardRequest{
		Wallet: wallet, RoundID: 99, Asset: "btc", Side: "up", PayoutIrys: "1.5",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xsig", grant.Signature)
	assert.Equal(t, "BTC", grant.Asset)
	assert.Equal(t, "1500000000000000000", signer.lastPayout.String())
}

func TestAuthorizeNoWin(t *testing.T) {
	board, store := newTestLeaderboard(t)
	rewards := NewRewards(board, &fakeSigner{})
	wallet := testAddr(0)

	// a loss on the claimed round, a win on a different round
	seedWin(t, store, wallet, domain.HistoryEntry{RoundID: 99, Asset: "BTC", Side: domain.SideUp, Win: false, Delta: -6, Ts: 1000})
	seedWin(t, store, wallet, domain.HistoryEntry{RoundID: 98, Asset: "BTC", Side: domain.SideUp, Win: true, Delta: 12, Ts: 900})

	_, err := rewards.Authorize(context.Background(), RewardRequest{
		Wallet: wallet, RoundID: 99, Asset: "BTC", Side: "UP", PayoutIrys: "1",
	})
	assert.ErrorIs(t, err, domain.ErrNoRecordedWin)
}

func TestAuthorizePayoutExceedsDelta(t *testing.T) {
	board, store := newTestLeaderboard(t)
	rewards := NewRewards(board, &fakeSigner{})
	wallet := testAddr(0)

	seedWin(t, store, wallet, domain.HistoryEntry{RoundID: 99, Asset: "BTC", Side: domain.SideUp, Win: true, Delta: 12, Ts: 1000})

	_, err := rewards.Authorize(context.Background(), RewardRequest{
		Wallet: wallet, RoundID: 99, Asset: "BTC", Side: "UP", PayoutIrys: "12.000000000000000001",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// exactly the delta is allowed
	_, err = rewards.Authorize(context.Background(), RewardRequest{
		Wallet: wallet, RoundID: 99, Asset: "BTC", Side: "UP", PayoutIrys: "12",
	})
	assert.NoError(t, err)
}

func TestParsePayout(t *testing.T) {
	cases := []struct {
		in      string
		wantWei string
		wantErr bool
	}{
		{in: "1", wantWei: "1000000000000000000"},
		{in: "0.5", wantWei: "500000000000000000"},
		{in: "2.25", wantWei: "2250000000000000000"},
		{in: ".1", wantWei: "100000000000000000"},
		{in: "0", wantErr: true},
		{in: "", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1.0000000000000000001", wantErr: true},
	}
	for _, tc := range cases {
		wei, err := parsePayout(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantWei, wei.String(), tc.in)
	}
}
