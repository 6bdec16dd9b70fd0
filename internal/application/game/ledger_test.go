package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosaiyno/iryspredict/internal/adapters/receipts"
	"github.com/kosaiyno/iryspredict/internal/adapters/storage"
	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

func newTestLedger(t *testing.T) (*Ledger, ports.Store) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewLedger(store, receipts.NewLocal(), domain.DefaultRoundDuration, domain.DefaultLockWindow), store
}

func TestPlaceBetNormalizesAndStamps(t *testing.T) {
	ledger, _ := newTestLedger(t)
	round := domain.CurrentRound(time.Now(), domain.DefaultRoundDuration)
	ledger.now = func() time.Time { return round.Start }

	bet, err := ledger.PlaceBet(context.Background(), PlaceBetInput{
		Wallet:     "0x00000000000000000000000000000000000000AA",
		Asset:      "btc",
		Side:       "up",
		PriceAtBet: 50000,
	})
	require.NoError(t, err)

	assert.Equal(t, testWallet, bet.Wallet)
	assert.Equal(t, "BTC", bet.Asset)
	assert.Equal(t, domain.SideUp, bet.Side)
	assert.Equal(t, round.ID, bet.RoundID)
	assert.Equal(t, round.Start.UnixMilli(), bet.PlacedAt)
	assert.NotEmpty(t, bet.ReceiptID)
}

func TestPlaceBetValidation(t *testing.T) {
	ledger, _ := newTestLedger(t)
	round := domain.CurrentRound(time.Now(), domain.DefaultRoundDuration)
	ledger.now = func() time.Time { return round.Start }

	cases := []struct {
		name string
		in   PlaceBetInput
	}{
		{"bad wallet", PlaceBetInput{Wallet: "nope", Asset: "BTC", Side: "UP", PriceAtBet: 1}},
		{"bad side", PlaceBetInput{Wallet: testWallet, Asset: "BTC", Side: "SIDEWAYS", PriceAtBet: 1}},
		{"no asset", PlaceBetInput{Wallet: testWallet, Asset: "", Side: "UP", PriceAtBet: 1}},
		{"zero price", PlaceBetInput{Wallet: testWallet, Asset: "BTC", Side: "UP", PriceAtBet: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.PlaceBet(context.Background(), tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestPlaceBetDuplicate(t *testing.T) {
	ledger, _ := newTestLedger(t)
	round := domain.CurrentRound(time.Now(), domain.DefaultRoundDuration)
	ledger.now = func() time.Time { return round.Start }

	in := PlaceBetInput{Wallet: testWallet, Asset: "BTC", Side: "UP", PriceAtBet: 50000}
	_, err := ledger.PlaceBet(context.Background(), in)
	require.NoError(t, err)

	// same round, even with the other side
	in.Side = "DOWN"
	_, err = ledger.PlaceBet(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrDuplicateBet)

	// a different asset is a separate bet
	in.Asset = "ETH"
	_, err = ledger.PlaceBet(context.Background(), in)
	assert.NoError(t, err)
}

func TestPlaceBetLockWindow(t *testing.T) {
	ledger, _ := newTestLedger(t)
	round := domain.CurrentRound(time.Now(), domain.DefaultRoundDuration)
	in := PlaceBetInput{Wallet: testWallet, Asset: "BTC", Side: "UP", PriceAtBet: 50000}

	// just inside the final minute
	ledger.now = func() time.Time { return round.End.Add(-domain.DefaultLockWindow) }
	_, err := ledger.PlaceBet(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrBettingClosed)

	// one instant earlier betting is still open
	ledger.now = func() time.Time { return round.End.Add(-domain.DefaultLockWindow - time.Millisecond) }
	_, err = ledger.PlaceBet(context.Background(), in)
	assert.NoError(t, err)
}

func TestOpenBetsPlacementOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	round := domain.CurrentRound(time.Now(), domain.DefaultRoundDuration)

	other := "0x00000000000000000000000000000000000000bb"
	for i, in := range []PlaceBetInput{
		{Wallet: other, Asset: "BTC", Side: "DOWN", PriceAtBet: 50000},
		{Wallet: testWallet, Asset: "BTC", Side: "UP", PriceAtBet: 50000},
		{Wallet: testWallet, Asset: "ETH", Side: "UP", PriceAtBet: 3000},
	} {
		ledger.now = func() time.Time { return round.Start.Add(time.Duration(i) * time.Second) }
		_, err := ledger.PlaceBet(ctx, in)
		require.NoError(t, err)
	}

	bets, err := ledger.OpenBets(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, bets, 3)
	assert.Equal(t, other, bets[0].Wallet)
	assert.Equal(t, "BTC", bets[1].Asset)
	assert.Equal(t, "ETH", bets[2].Asset)

	mine, err := ledger.OpenBetsForWallet(ctx, round.ID, testWallet)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, b := range mine {
		assert.Equal(t, testWallet, b.Wallet)
	}
}

func TestClearRound(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	round := domain.CurrentRound(time.Now(), domain.DefaultRoundDuration)
	ledger.now = func() time.Time { return round.Start }

	_, err := ledger.PlaceBet(ctx, PlaceBetInput{Wallet: testWallet, Asset: "BTC", Side: "UP", PriceAtBet: 50000})
	require.NoError(t, err)

	require.NoError(t, ledger.ClearRound(ctx, round.ID))
	bets, err := ledger.OpenBets(ctx, round.ID)
	require.NoError(t, err)
	assert.Empty(t, bets)
}
