package onchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known throwaway key (hardhat account #0)
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(testKey, testContract, 1270)
	require.NoError(t, err)
	return s
}

func TestNewSigner_Validation(t *testing.T) {
	_, err := NewSigner("not-hex", testContract, 1)
	assert.Error(t, err)

	_, err = NewSigner(testKey, "0x123", 1)
	assert.Error(t, err)

	// 0x prefix on the key is accepted
	s, err := NewSigner("0x"+testKey, testContract, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())
}

func TestSign_RecoversSignerAddress(t *testing.T) {
	s := newTestSigner(t)
	player := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	auth, err := s.Sign(5_666_777, player, "BTC", "UP", big.NewInt(1_000_000_000_000_000))
	require.NoError(t, err)

	assert.Equal(t, int64(1270), auth.ChainID)
	assert.Equal(t, common.HexToAddress(player).Hex(), auth.Player)
	assert.Equal(t, "1000000000000000", auth.PayoutWei)

	sig, err := hexutil.Decode(auth.Signature)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// undo the +27 and recover over the prefixed digest
	sig[64] -= 27
	digest := personalHash(common.HexToHash(auth.PayloadHash))
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestSign_RejectsBadInputs(t *testing.T) {
	s := newTestSigner(t)

	_, err := s.Sign(1, "nope", "BTC", "UP", big.NewInt(1))
	assert.Error(t, err)

	_, err = s.Sign(1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "BTC", "UP", big.NewInt(0))
	assert.Error(t, err)

	_, err = s.Sign(1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "BTC", "UP", nil)
	assert.Error(t, err)
}

func TestBetKey_DistinguishesBets(t *testing.T) {
	player := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	base, err := BetKey(100, player, "BTC", "UP")
	require.NoError(t, err)

	same, err := BetKey(100, player, "BTC", "UP")
	require.NoError(t, err)
	assert.Equal(t, base, same)

	for _, variant := range []struct {
		round int64
		asset string
		side  string
	}{
		{101, "BTC", "UP"},
		{100, "ETH", "UP"},
		{100, "BTC", "DOWN"},
	} {
		k, err := BetKey(variant.round, player, variant.asset, variant.side)
		require.NoError(t, err)
		assert.NotEqual(t, base, k)
	}
}
