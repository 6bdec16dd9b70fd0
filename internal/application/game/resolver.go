package game

// resolver.go — round settlement.
//
// At each round boundary the resolver walks the round's open bets in
// placement order, grouped by wallet, scores them against the settlement
// price, and folds the deltas into the global and the Friday-aligned weekly
// aggregates. Three rules keep this safe to re-run:
//
//   - every (wallet, round, asset) gets a resolved marker via a conditional
//     write before any counter moves; a second resolve sees the marker and
//     skips the bet
//   - bets with no settlement price stay pending: untouched, uncounted,
//     settled by whichever later resolve attempt has a price
//   - individual counter-write failures are recorded in the report and do
//     not abort the rest of the batch
//
// The round's bet index is only cleared once nothing is left pending.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

// settleGrace delays resolution slightly past the boundary so late bet
// writes land before the index is read.
const settleGrace = 2 * time.Second

// Resolver settles rounds and records externally computed results.
type Resolver struct {
	store    ports.Store
	feed     ports.PriceFeed
	ledger   *Ledger
	assets   map[string]string // symbol → price feed id
	duration time.Duration
	now      func() time.Time
}

// NewResolver wires a resolver. assets maps bet symbols to price feed ids;
// bets on unmapped symbols stay pending forever and eventually expire.
func NewResolver(store ports.Store, feed ports.PriceFeed, ledger *Ledger, assets map[string]string, duration time.Duration) *Resolver {
	return &Resolver{
		store:    store,
		feed:     feed,
		ledger:   ledger,
		assets:   assets,
		duration: duration,
		now:      time.Now,
	}
}

// ResolutionReport accounts for every bet seen during one resolve pass.
type ResolutionReport struct {
	RoundID         int64    `json:"roundId"`
	Resolved        int      `json:"resolved"`
	Pending         int      `json:"pending"`
	AlreadyResolved int      `json:"alreadyResolved"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors,omitempty"`
}

// Complete reports whether nothing is left to retry.
func (r *ResolutionReport) Complete() bool {
	return r.Pending == 0 && r.Failed == 0
}

func (r *ResolutionReport) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Run resolves rounds as they end, until the context is canceled.
func (rv *Resolver) Run(ctx context.Context) error {
	slog.Info("resolver starting", "round", rv.duration)
	for {
		now := rv.now()
		round := domain.CurrentRound(now, rv.duration)

		select {
		case <-ctx.Done():
			slog.Info("resolver stopped")
			return nil
		case <-time.After(round.End.Sub(now) + settleGrace):
		}

		report, err := rv.ResolveRound(ctx, round.ID)
		if err != nil {
			slog.Error("round resolution failed", "round", round.ID, "err", err)
			continue
		}
		slog.Info("round resolved",
			"round", round.ID,
			"resolved", report.Resolved,
			"pending", report.Pending,
			"skipped", report.AlreadyResolved,
			"failed", report.Failed,
		)
	}
}

// ResolveRound settles every open bet of a round once. Safe to call again
// for the same round: already-settled bets are skipped, pending ones get
// another chance at a settlement price.
func (rv *Resolver) ResolveRound(ctx context.Context, roundID int64) (*ResolutionReport, error) {
	report := &ResolutionReport{RoundID: roundID}

	bets, err := rv.ledger.OpenBets(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("game.ResolveRound %d: %w", roundID, err)
	}
	if len(bets) == 0 {
		return report, nil
	}

	prices := rv.settlementPrices(ctx, bets, report)

	// group by wallet, preserving placement order inside each group
	order := make([]string, 0, 4)
	byWallet := make(map[string][]domain.Bet)
	for _, b := range bets {
		if _, seen := byWallet[b.Wallet]; !seen {
			order = append(order, b.Wallet)
		}
		byWallet[b.Wallet] = append(byWallet[b.Wallet], b)
	}

	for _, wallet := range order {
		rv.resolveWallet(ctx, roundID, wallet, byWallet[wallet], prices, report)
	}

	// failed bets stay in the index too: a marker write that errored may or
	// may not have landed, and only a retry can tell
	if report.Complete() {
		if err := rv.ledger.ClearRound(ctx, roundID); err != nil {
			slog.Warn("failed to clear settled round index", "round", roundID, "err", err)
		}
	}
	return report, nil
}

// settlementPrices fetches one price per distinct asset. A feed failure
// leaves the map empty, which turns the whole batch pending.
func (rv *Resolver) settlementPrices(ctx context.Context, bets []domain.Bet, report *ResolutionReport) map[string]float64 {
	idBySymbol := make(map[string]string)
	ids := make([]string, 0, 4)
	for _, b := range bets {
		if _, done := idBySymbol[b.Asset]; done {
			continue
		}
		id, ok := rv.assets[b.Asset]
		if !ok {
			continue // unmapped symbol, stays pending
		}
		idBySymbol[b.Asset] = id
		ids = append(ids, id)
	}

	prices := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return prices
	}
	quotes, err := rv.feed.SpotPrices(ctx, ids)
	if err != nil {
		report.addError(fmt.Errorf("price feed: %w", err))
		return prices
	}
	for symbol, id := range idBySymbol {
		if q, ok := quotes[id]; ok {
			prices[symbol] = q.USD
		}
	}
	return prices
}

// resolveWallet settles one wallet's bets for the round. The streak state
// is loaded once per scope and carried across the wallet's bets so that
// consecutive wins inside one round chain correctly.
func (rv *Resolver) resolveWallet(ctx context.Context, roundID int64, wallet string, bets []domain.Bet, prices map[string]float64, report *ResolutionReport) {
	now := rv.now()
	weekID := domain.WeekID(now)

	gStreak := rv.readInt(ctx, walletKey(wallet, "streak"))
	gBest := rv.readInt(ctx, walletKey(wallet, "best"))
	wStreak := rv.readInt(ctx, weekWalletKey(weekID, wallet, "streak"))
	wBest := rv.readInt(ctx, weekWalletKey(weekID, wallet, "best"))

	batch := 0
	for _, bet := range bets {
		price, ok := prices[bet.Asset]
		if !ok {
			report.Pending++
			continue
		}

		claimed, err := rv.store.SetNX(ctx, resolvedKey(roundID, wallet, bet.Asset), strconv.FormatInt(now.UnixMilli(), 10), resolvedTTL)
		if err != nil {
			// marker unknown: leave the bet pending rather than risk a
			// double application
			report.Failed++
			report.addError(fmt.Errorf("wallet %s asset %s: marker: %w", wallet, bet.Asset, err))
			continue
		}
		if !claimed {
			report.AlreadyResolved++
			continue
		}

		batch++
		win := bet.Win(price)

		var gDelta int64
		gDelta, gStreak, gBest = domain.ScoreBet(gStreak, gBest, win, batch)
		rv.applyGlobal(ctx, wallet, gDelta, win, gStreak, gBest, now, report)

		var wDelta int64
		wDelta, wStreak, wBest = domain.ScoreBet(wStreak, wBest, win, batch)
		rv.applyWeekly(ctx, weekID, wallet, wDelta, win, wStreak, wBest, report)

		rv.appendHistory(ctx, wallet, domain.HistoryEntry{
			RoundID:   roundID,
			Asset:     bet.Asset,
			Side:      bet.Side,
			Win:       win,
			Delta:     gDelta,
			Ts:        now.UnixMilli(),
			ReceiptID: bet.ReceiptID,
		}, report)

		report.Resolved++
	}
}

// RecordResultInput is one externally computed bet result, as posted by a
// client after local settlement. Deltas are taken as given; the idempotency
// marker is the only defense against replays.
type RecordResultInput struct {
	Wallet      string `json:"wallet"`
	RoundID     int64  `json:"roundId"`
	Asset       string `json:"asset"`
	Side        string `json:"side"`
	Win         bool   `json:"win"`
	PointsDelta int64  `json:"pointsDelta"`
	Streak      int64  `json:"streak"`
	Best        int64  `json:"best"`
	Ts          int64  `json:"ts"`
	ReceiptID   string `json:"irysId"`
}

// RecordResult folds one ingested result into both scopes through the same
// marker that guards server-side resolution, so a round cannot be counted
// both ways. Returns the wallet's new cumulative points.
func (rv *Resolver) RecordResult(ctx context.Context, in RecordResultInput) (int64, error) {
	wallet, err := domain.NormalizeWallet(in.Wallet)
	if err != nil {
		return 0, err
	}
	asset, err := domain.NormalizeAsset(in.Asset)
	if err != nil {
		return 0, err
	}
	if in.RoundID < 0 {
		return 0, fmt.Errorf("%w: roundId must be non-negative", domain.ErrValidation)
	}
	var side domain.Side
	if in.Side != "" {
		if side, err = domain.ParseSide(in.Side); err != nil {
			return 0, err
		}
	}
	ts := in.Ts
	if ts <= 0 {
		ts = rv.now().UnixMilli()
	}
	now := time.UnixMilli(ts)

	claimed, err := rv.store.SetNX(ctx, resolvedKey(in.RoundID, wallet, asset), strconv.FormatInt(ts, 10), resolvedTTL)
	if err != nil {
		return 0, fmt.Errorf("game.RecordResult: marker: %w", err)
	}
	if !claimed {
		return 0, domain.ErrAlreadyResolved
	}

	report := &ResolutionReport{RoundID: in.RoundID}
	newPoints := rv.applyGlobal(ctx, wallet, in.PointsDelta, in.Win, in.Streak, in.Best, now, report)
	rv.applyWeekly(ctx, domain.WeekID(now), wallet, in.PointsDelta, in.Win, in.Streak, in.Best, report)
	rv.appendHistory(ctx, wallet, domain.HistoryEntry{
		RoundID:   in.RoundID,
		Asset:     asset,
		Side:      side,
		Win:       in.Win,
		Delta:     in.PointsDelta,
		Ts:        ts,
		ReceiptID: in.ReceiptID,
	}, report)

	for _, msg := range report.Errors {
		slog.Warn("result ingestion write failed", "wallet", wallet, "detail", msg)
	}
	return newPoints, nil
}

// applyGlobal moves the wallet's cumulative counters and its position in
// the global ranking. Every write is attempted; failures land in the
// report.
func (rv *Resolver) applyGlobal(ctx context.Context, wallet string, delta int64, win bool, streak, best int64, now time.Time, report *ResolutionReport) int64 {
	ts := now.UnixMilli()

	newPoints, err := rv.store.IncrBy(ctx, walletKey(wallet, "points"), delta)
	if err != nil {
		report.addError(fmt.Errorf("wallet %s: points: %w", wallet, err))
	}
	rv.bumpCounters(ctx, wallet, win, walletKey, "", report)

	rv.trySet(ctx, walletKey(wallet, "streak"), strconv.FormatInt(streak, 10), rollingTTL, report)
	rv.trySet(ctx, walletKey(wallet, "best"), strconv.FormatInt(best, 10), rollingTTL, report)
	rv.trySet(ctx, walletKey(wallet, "lastTs"), strconv.FormatInt(ts, 10), 0, report)

	if last, err := json.Marshal(map[string]int64{"ts": ts}); err == nil {
		rv.trySet(ctx, walletKey(wallet, "last"), string(last), rollingTTL, report)
	}

	if err == nil {
		if zerr := rv.store.ZAdd(ctx, pointsZKey, ports.ScoredMember{Member: wallet, Score: float64(newPoints)}); zerr != nil {
			report.addError(fmt.Errorf("wallet %s: ranking: %w", wallet, zerr))
		}
	}
	return newPoints
}

// applyWeekly is applyGlobal against the Friday-aligned scope.
func (rv *Resolver) applyWeekly(ctx context.Context, weekID, wallet string, delta int64, win bool, streak, best int64, report *ResolutionReport) {
	key := func(w, field string) string { return weekWalletKey(weekID, w, field) }

	newPoints, err := rv.store.IncrBy(ctx, key(wallet, "points"), delta)
	if err != nil {
		report.addError(fmt.Errorf("wallet %s week %s: points: %w", wallet, weekID, err))
	}
	rv.bumpCounters(ctx, wallet, win, key, weekID, report)

	rv.trySet(ctx, key(wallet, "streak"), strconv.FormatInt(streak, 10), rollingTTL, report)
	rv.trySet(ctx, key(wallet, "best"), strconv.FormatInt(best, 10), rollingTTL, report)

	if err == nil {
		if zerr := rv.store.ZAdd(ctx, weekZKey(weekID), ports.ScoredMember{Member: wallet, Score: float64(newPoints)}); zerr != nil {
			report.addError(fmt.Errorf("wallet %s week %s: ranking: %w", wallet, weekID, zerr))
		}
	}
}

// bumpCounters increments the win/loss/rounds tallies of one scope.
func (rv *Resolver) bumpCounters(ctx context.Context, wallet string, win bool, key func(wallet, field string) string, scope string, report *ResolutionReport) {
	winInc, lossInc := int64(0), int64(1)
	if win {
		winInc, lossInc = 1, 0
	}
	for field, inc := range map[string]int64{"wins": winInc, "losses": lossInc, "rounds": 1} {
		if _, err := rv.store.IncrBy(ctx, key(wallet, field), inc); err != nil {
			report.addError(fmt.Errorf("wallet %s %s: %s: %w", wallet, scope, field, err))
		}
	}
}

// appendHistory pushes one resolved bet onto the wallet's history set and
// refreshes its last-record marker.
func (rv *Resolver) appendHistory(ctx context.Context, wallet string, entry domain.HistoryEntry, report *ResolutionReport) {
	raw, err := json.Marshal(entry)
	if err != nil {
		report.addError(fmt.Errorf("wallet %s: history marshal: %w", wallet, err))
		return
	}
	if err := rv.store.ZAdd(ctx, histKey(wallet), ports.ScoredMember{Member: string(raw), Score: float64(entry.Ts)}); err != nil {
		report.addError(fmt.Errorf("wallet %s: history: %w", wallet, err))
	}
	rv.trySet(ctx, walletKey(wallet, "lastRec"), string(raw), rollingTTL, report)
}

// trySet writes a value, recording rather than propagating failures.
func (rv *Resolver) trySet(ctx context.Context, key, value string, ttl time.Duration, report *ResolutionReport) {
	if err := rv.store.Set(ctx, key, value, ttl); err != nil {
		report.addError(fmt.Errorf("set %s: %w", key, err))
	}
}

// readInt loads an integer counter, treating missing keys and store
// failures as zero (read-path degradation).
func (rv *Resolver) readInt(ctx context.Context, key string) int64 {
	v, err := rv.store.Get(ctx, key)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
