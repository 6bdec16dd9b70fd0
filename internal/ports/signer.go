package ports

import "math/big"

// RewardAuthorization is a server-signed claim ticket: the reward contract
// verifies the signature over (contract, chain, betKey, player, payout) and
// releases at most the signed payout once per bet key.
type RewardAuthorization struct {
	BetKey          string `json:"betKey"`
	PayloadHash     string `json:"payloadHash"`
	Signature       string `json:"signature"`
	ContractAddress string `json:"contractAddress"`
	ChainID         int64  `json:"chainId"`
	Player          string `json:"player"`
	PayoutWei       string `json:"payoutWei"`
}

// RewardSigner produces claim authorizations with the server-held key.
type RewardSigner interface {
	Sign(roundID int64, player, asset, side string, payoutWei *big.Int) (RewardAuthorization, error)
}
