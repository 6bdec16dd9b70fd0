package game

// rewards.go — claim authorization for recorded wins.
//
// A reward signature is only issued when the wallet's recent history holds
// a winning entry for the exact (round, asset, side), and the requested
// payout does not exceed the points delta that win recorded. The signature
// itself comes from the configured signer; replay protection lives in the
// reward contract, keyed by betKey.

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

// rewardHistoryDepth bounds how far back a claim may reach.
const rewardHistoryDepth = 50

// Rewards validates claims against recorded results and signs them.
type Rewards struct {
	board  *Leaderboard
	signer ports.RewardSigner
}

func NewRewards(board *Leaderboard, signer ports.RewardSigner) *Rewards {
	return &Rewards{board: board, signer: signer}
}

// RewardRequest is one claim attempt. PayoutIrys is a decimal token amount
// ("1.5"), converted to wei before signing.
type RewardRequest struct {
	Wallet     string `json:"wallet"`
	RoundID    int64  `json:"roundId"`
	Asset      string `json:"asset"`
	Side       string `json:"side"`
	PayoutIrys string `json:"payoutIrys"`
}

// RewardGrant echoes the claim parameters alongside the signed
// authorization the contract consumes.
type RewardGrant struct {
	ports.RewardAuthorization
	RoundID    int64  `json:"round,string"`
	Asset      string `json:"asset"`
	Side       string `json:"side"`
	PayoutIrys string `json:"payoutIrys"`
}

// Authorize checks the claim against history and signs it. A claim with no
// matching recorded win fails with domain.ErrNoRecordedWin.
func (r *Rewards) Authorize(ctx context.Context, req RewardRequest) (RewardGrant, error) {
	wallet, err := domain.NormalizeWallet(req.Wallet)
	if err != nil {
		return RewardGrant{}, err
	}
	asset, err := domain.NormalizeAsset(req.Asset)
	if err != nil {
		return RewardGrant{}, err
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return RewardGrant{}, err
	}
	if req.RoundID < 0 {
		return RewardGrant{}, fmt.Errorf("%w: roundId must be non-negative", domain.ErrValidation)
	}
	payoutWei, err := parsePayout(req.PayoutIrys)
	if err != nil {
		return RewardGrant{}, err
	}

	entries, err := r.board.History(ctx, wallet, rewardHistoryDepth)
	if err != nil {
		return RewardGrant{}, fmt.Errorf("game.Rewards: history: %w", err)
	}

	var win *domain.HistoryEntry
	for i := range entries {
		e := &entries[i]
		if e.RoundID == req.RoundID && e.Asset == asset && e.Side == side && e.Win {
			win = e
			break
		}
	}
	if win == nil {
		return RewardGrant{}, domain.ErrNoRecordedWin
	}

	if allowed := win.Delta; allowed > 0 {
		if exceedsPoints(req.PayoutIrys, allowed) {
			return RewardGrant{}, fmt.Errorf("%w: payout exceeds recorded win", domain.ErrValidation)
		}
	}

	auth, err := r.signer.Sign(req.RoundID, wallet, asset, string(side), payoutWei)
	if err != nil {
		return RewardGrant{}, fmt.Errorf("game.Rewards: sign: %w", err)
	}

	return RewardGrant{
		RewardAuthorization: auth,
		RoundID:             req.RoundID,
		Asset:               asset,
		Side:                string(side),
		PayoutIrys:          req.PayoutIrys,
	}, nil
}

// parsePayout converts a positive decimal token amount to wei.
func parsePayout(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: payoutIrys is required", domain.ErrValidation)
	}

	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 18 {
		return nil, fmt.Errorf("%w: payout precision beyond 18 decimals", domain.ErrValidation)
	}
	frac += strings.Repeat("0", 18-len(frac))

	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid payout amount %q", domain.ErrValidation, amount)
	}
	if wei.Sign() == 0 {
		return nil, fmt.Errorf("%w: payout must be greater than zero", domain.ErrValidation)
	}
	return wei, nil
}

// exceedsPoints compares the decimal payout against the recorded points
// delta without going through floats.
func exceedsPoints(amount string, allowed int64) bool {
	payout, err := parsePayout(amount)
	if err != nil {
		return true
	}
	limit := new(big.Int).Mul(big.NewInt(allowed), big.NewInt(1e18))
	return payout.Cmp(limit) > 0
}
