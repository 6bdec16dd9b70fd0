package game

// ledger.go — open-bet bookkeeping for the active round.
//
// One wager per (wallet, asset, round), enforced with the store's
// conditional write so two concurrent submissions cannot both pass a
// check-then-write race. Each bet is stored twice: under its own key (the
// duplicate guard) and in a per-round index ranked by placement time, which
// the resolver walks at settlement. Both carry a TTL so rounds nobody
// resolves age out on their own.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

// Ledger accepts and lists wagers.
type Ledger struct {
	store    ports.Store
	receipts ports.Receipts
	duration time.Duration
	lock     time.Duration
	now      func() time.Time
}

// NewLedger wires a ledger over the given store. receipts may be nil to
// skip the audit trail entirely.
func NewLedger(store ports.Store, receipts ports.Receipts, duration, lock time.Duration) *Ledger {
	return &Ledger{
		store:    store,
		receipts: receipts,
		duration: duration,
		lock:     lock,
		now:      time.Now,
	}
}

// PlaceBetInput is a wager request as submitted by a client.
type PlaceBetInput struct {
	Wallet     string  `json:"wallet"`
	Asset      string  `json:"asset"`
	Side       string  `json:"side"`
	PriceAtBet float64 `json:"priceUsdAtBet"`
	Reason     string  `json:"reason"`
}

// PlaceBet validates the request against the current round, enforces the
// lock window and the one-bet rule, persists the bet, and mirrors it to the
// audit trail (best effort).
func (l *Ledger) PlaceBet(ctx context.Context, in PlaceBetInput) (domain.Bet, error) {
	wallet, err := domain.NormalizeWallet(in.Wallet)
	if err != nil {
		return domain.Bet{}, err
	}
	asset, err := domain.NormalizeAsset(in.Asset)
	if err != nil {
		return domain.Bet{}, err
	}
	side, err := domain.ParseSide(in.Side)
	if err != nil {
		return domain.Bet{}, err
	}
	if in.PriceAtBet <= 0 {
		return domain.Bet{}, fmt.Errorf("%w: priceUsdAtBet must be positive", domain.ErrValidation)
	}

	now := l.now()
	round := domain.CurrentRound(now, l.duration)
	if round.BettingLocked(now, l.lock) {
		return domain.Bet{}, domain.ErrBettingClosed
	}

	bet := domain.Bet{
		Wallet:     wallet,
		Asset:      asset,
		Side:       side,
		RoundID:    round.ID,
		PlacedAt:   now.UnixMilli(),
		PriceAtBet: in.PriceAtBet,
		Reason:     in.Reason,
	}
	bet.ReceiptID = l.uploadReceipt(ctx, bet)

	raw, err := json.Marshal(bet)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("game.PlaceBet: marshal: %w", err)
	}

	ok, err := l.store.SetNX(ctx, betKey(round.ID, wallet, asset), string(raw), betTTL)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("game.PlaceBet: %w", err)
	}
	if !ok {
		return domain.Bet{}, domain.ErrDuplicateBet
	}

	if err := l.store.ZAdd(ctx, betIndexKey(round.ID),
		ports.ScoredMember{Member: string(raw), Score: float64(bet.PlacedAt)},
	); err != nil {
		// the duplicate guard stands; without the index entry the bet will
		// not be settled, so surface the failure
		return domain.Bet{}, fmt.Errorf("game.PlaceBet: index: %w", err)
	}

	return bet, nil
}

// OpenBets returns a round's open bets in placement order.
func (l *Ledger) OpenBets(ctx context.Context, roundID int64) ([]domain.Bet, error) {
	raw, err := l.store.ZRange(ctx, betIndexKey(roundID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("game.OpenBets: %w", err)
	}
	bets := make([]domain.Bet, 0, len(raw))
	for _, entry := range raw {
		var b domain.Bet
		if err := json.Unmarshal([]byte(entry), &b); err != nil {
			slog.Warn("skipping undecodable bet entry", "round", roundID, "err", err)
			continue
		}
		bets = append(bets, b)
	}
	return bets, nil
}

// OpenBetsForWallet filters a round's bets down to one wallet, for display.
func (l *Ledger) OpenBetsForWallet(ctx context.Context, roundID int64, wallet string) ([]domain.Bet, error) {
	w, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	all, err := l.OpenBets(ctx, roundID)
	if err != nil {
		return nil, err
	}
	var mine []domain.Bet
	for _, b := range all {
		if b.Wallet == w {
			mine = append(mine, b)
		}
	}
	return mine, nil
}

// ClearRound drops a round's bet index once every bet is settled.
func (l *Ledger) ClearRound(ctx context.Context, roundID int64) error {
	return l.store.Del(ctx, betIndexKey(roundID))
}

// uploadReceipt mirrors the bet to the audit trail. Failures only cost the
// receipt id.
func (l *Ledger) uploadReceipt(ctx context.Context, bet domain.Bet) string {
	if l.receipts == nil {
		return ""
	}
	rec, err := l.receipts.UploadJSON(ctx, bet, []ports.Tag{
		{Name: "app", Value: "irys-predict"},
		{Name: "type", Value: "prediction"},
		{Name: "asset", Value: bet.Asset},
		{Name: "side", Value: string(bet.Side)},
		{Name: "round-id", Value: fmt.Sprint(bet.RoundID)},
		{Name: "wallet", Value: bet.Wallet},
		{Name: "content-type", Value: "application/json"},
	})
	if err != nil {
		slog.Warn("bet receipt upload failed", "wallet", bet.Wallet, "asset", bet.Asset, "err", err)
		return ""
	}
	return rec.ID
}
