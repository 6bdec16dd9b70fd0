package domain

import (
	"fmt"
	"strings"
)

// Side is the predicted price direction.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// ParseSide normalizes and validates a side string.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideUp:
		return SideUp, nil
	case SideDown:
		return SideDown, nil
	default:
		return "", fmt.Errorf("%w: side must be UP or DOWN, got %q", ErrValidation, s)
	}
}

// Bet is an open wager for one asset in one round. At most one bet may exist
// per (wallet, asset, roundId); it is cleared once the round resolves.
type Bet struct {
	Wallet     string  `json:"wallet"`
	Asset      string  `json:"asset"`
	Side       Side    `json:"side"`
	RoundID    int64   `json:"roundId"`
	PlacedAt   int64   `json:"ts"` // unix ms
	PriceAtBet float64 `json:"priceUsdAtBet"`
	Reason     string  `json:"reason,omitempty"`
	ReceiptID  string  `json:"irysId,omitempty"` // audit receipt, informational only
}

// Win applies the settlement rule: UP wins when the settlement price is at
// or above the locked-in price, DOWN wins strictly below it.
func (b Bet) Win(settlementPrice float64) bool {
	wentUp := settlementPrice >= b.PriceAtBet
	return (b.Side == SideUp && wentUp) || (b.Side == SideDown && !wentUp)
}

// NormalizeWallet lowercases an EVM address and validates its shape.
// All store keys use the lowercased form.
func NormalizeWallet(wallet string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(wallet))
	if len(w) != 42 || !strings.HasPrefix(w, "0x") {
		return "", fmt.Errorf("%w: wallet must be a 0x-prefixed address, got %q", ErrValidation, wallet)
	}
	for _, c := range w[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: wallet contains non-hex characters", ErrValidation)
		}
	}
	return w, nil
}

// NormalizeAsset uppercases a ticker symbol and validates it is non-empty.
func NormalizeAsset(asset string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(asset))
	if a == "" || len(a) > 16 {
		return "", fmt.Errorf("%w: asset symbol required", ErrValidation)
	}
	return a, nil
}
