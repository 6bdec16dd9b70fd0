package ports

import "context"

// Quote is a spot price in USD with its 24h change percentage.
type Quote struct {
	USD       float64
	Change24h float64
}

// PriceFeed resolves spot prices for feed-specific asset ids (CoinGecko ids
// in production). Ids with no available price are simply absent from the
// result; the resolver treats those bets as pending.
type PriceFeed interface {
	SpotPrices(ctx context.Context, ids []string) (map[string]Quote, error)
}
