package onchain

// signer.go — reward claim authorizations.
//
// The reward pool contract releases a payout to a player who presents a
// signature from the pool owner key over:
//
//	keccak256("IRYS_PREDICTION_REWARD" ‖ contract ‖ chainId ‖ betKey ‖ player ‖ payoutWei)
//
// (solidity-packed) where betKey = keccak256(abi.encode(roundId, player,
// keccak(asset), keccak(side))) identifies the bet being claimed. The
// contract marks each betKey as claimed, so one win pays at most once.
// Signing happens off-chain here; nothing in this package talks to a node.

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kosaiyno/iryspredict/internal/ports"
)

const rewardDomain = "IRYS_PREDICTION_REWARD"

// Signer holds the reward pool owner key and contract coordinates.
type Signer struct {
	priv     *ecdsa.PrivateKey
	contract common.Address
	chainID  int64
}

var _ ports.RewardSigner = (*Signer)(nil)

// NewSigner builds a signer from a hex private key (with or without 0x
// prefix) and the deployed reward pool address.
func NewSigner(privateKeyHex, contractAddress string, chainID int64) (*Signer, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain.NewSigner: parse key: %w", err)
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("onchain.NewSigner: bad contract address %q", contractAddress)
	}
	return &Signer{
		priv:     priv,
		contract: common.HexToAddress(contractAddress),
		chainID:  chainID,
	}, nil
}

// Address returns the signing (pool owner) address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.priv.PublicKey)
}

// Sign produces a claim authorization for one won bet.
func (s *Signer) Sign(roundID int64, player, asset, side string, payoutWei *big.Int) (ports.RewardAuthorization, error) {
	if !common.IsHexAddress(player) {
		return ports.RewardAuthorization{}, fmt.Errorf("onchain.Sign: bad player address %q", player)
	}
	if payoutWei == nil || payoutWei.Sign() <= 0 {
		return ports.RewardAuthorization{}, fmt.Errorf("onchain.Sign: payout must be positive")
	}
	playerAddr := common.HexToAddress(player)

	betKey, err := BetKey(roundID, playerAddr, asset, side)
	if err != nil {
		return ports.RewardAuthorization{}, err
	}
	payloadHash := rewardHash(s.contract, s.chainID, betKey, playerAddr, payoutWei)

	sig, err := crypto.Sign(personalHash(payloadHash), s.priv)
	if err != nil {
		return ports.RewardAuthorization{}, fmt.Errorf("onchain.Sign: %w", err)
	}
	sig[64] += 27 // Ethereum recovery id convention

	return ports.RewardAuthorization{
		BetKey:          betKey.Hex(),
		PayloadHash:     payloadHash.Hex(),
		Signature:       hexutil.Encode(sig),
		ContractAddress: s.contract.Hex(),
		ChainID:         s.chainID,
		Player:          playerAddr.Hex(),
		PayoutWei:       payoutWei.String(),
	}, nil
}

// BetKey derives the contract-side identifier of one bet:
// keccak256(abi.encode(uint256 roundId, address player, bytes32
// keccak(asset), bytes32 keccak(side))).
func BetKey(roundID int64, player common.Address, asset, side string) (common.Hash, error) {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("onchain.BetKey: %w", err)
	}
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("onchain.BetKey: %w", err)
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("onchain.BetKey: %w", err)
	}

	args := abi.Arguments{
		{Type: uint256Ty},
		{Type: addressTy},
		{Type: bytes32Ty},
		{Type: bytes32Ty},
	}
	packed, err := args.Pack(
		new(big.Int).SetInt64(roundID),
		player,
		crypto.Keccak256Hash([]byte(asset)),
		crypto.Keccak256Hash([]byte(side)),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("onchain.BetKey: pack: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// rewardHash is the solidity-packed digest the contract reconstructs:
// abi.encodePacked(string, address, uint256, bytes32, address, uint256).
func rewardHash(contract common.Address, chainID int64, betKey common.Hash, player common.Address, payoutWei *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		[]byte(rewardDomain),
		contract.Bytes(),
		math.U256Bytes(new(big.Int).SetInt64(chainID)),
		betKey.Bytes(),
		player.Bytes(),
		math.U256Bytes(new(big.Int).Set(payoutWei)),
	)
}

// personalHash applies the EIP-191 personal-message prefix, matching
// eth_sign / signMessage on the client side.
func personalHash(h common.Hash) []byte {
	return crypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n32"),
		h.Bytes(),
	)
}
