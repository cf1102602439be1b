package types

import (
	"crypto/ed25519"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader() BlockHeader {
	return BlockHeader{
		Height:           7,
		PrevHash:         Sum([]byte("parent")),
		StateRoot:        Sum([]byte("root")),
		Timestamp:        1234567890,
		DifficultyTarget: MaxTarget(),
		Nonce:            42,
	}
}

func TestHeaderHashIsDeterministic(t *testing.T) {
	h := testHeader()
	assert.Equal(t, h.Hash(), h.Hash())
	assert.Equal(t, h.Encode(), h.Encode())
}

func TestHeaderHashChangesWithEveryField(t *testing.T) {
	base := testHeader()
	mutations := map[string]func(*BlockHeader){
		"height":    func(h *BlockHeader) { h.Height++ },
		"prevHash":  func(h *BlockHeader) { h.PrevHash[0] ^= 1 },
		"stateRoot": func(h *BlockHeader) { h.StateRoot[31] ^= 1 },
		"timestamp": func(h *BlockHeader) { h.Timestamp++ },
		"target":    func(h *BlockHeader) { h.DifficultyTarget[15] ^= 1 },
		"nonce":     func(h *BlockHeader) { h.Nonce++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			h := base
			mutate(&h)
			assert.NotEqual(t, base.Encode(), h.Encode())
			assert.NotEqual(t, base.Hash(), h.Hash())
		})
	}
}

func TestPowTemplateIgnoresNonce(t *testing.T) {
	a := testHeader()
	b := a
	b.Nonce = 99
	assert.Equal(t, a.PowTemplate(), b.PowTemplate())
	assert.NotEqual(t, a.Hash(), b.Hash())

	zeroed := a
	zeroed.Nonce = 0
	assert.Equal(t, zeroed.Encode(), a.PowTemplate())
}

func TestTransactionEncodingRoundTrip(t *testing.T) {
	tx := &Transaction{
		From:      Address{1, 2, 3},
		Nonce:     5,
		ModuleID:  "avatars_profiles",
		CallID:    "claim_archon",
		Payload:   HexBytes{0xde, 0xad},
		Fee:       10,
		Signature: HexBytes{0xbe, 0xef},
	}
	decoded, err := DecodeTransaction(tx.Encode())
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), decoded.Hash())
	assert.Equal(t, tx.ModuleID, decoded.ModuleID)
	assert.Equal(t, []byte(tx.Payload), []byte(decoded.Payload))
}

func TestTransactionFieldsDoNotAlias(t *testing.T) {
	a := &Transaction{ModuleID: "ab", CallID: "c"}
	b := &Transaction{ModuleID: "a", CallID: "bc"}
	assert.NotEqual(t, a.Encode(), b.Encode())
}

func TestDecodeTransactionRejectsGarbage(t *testing.T) {
	for name, raw := range map[string][]byte{
		"empty":    nil,
		"garbage":  {0xff, 0x00, 0x01},
		"trailing": append((&Transaction{}).Encode(), 0x01),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTransaction(raw)
			require.ErrorIs(t, err, ErrInvalidEncoding)
		})
	}
}

func TestTransactionSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx := &Transaction{Nonce: 1, ModuleID: "avatars_profiles", CallID: "claim_archon"}
	require.NoError(t, tx.Sign(priv))
	assert.Equal(t, AddressFromPublicKey(pub), tx.From)
	assert.True(t, tx.VerifySignature())

	tx.Nonce = 2
	assert.False(t, tx.VerifySignature())

	tx.Nonce = 1
	tx.Signature = tx.Signature[:10]
	assert.False(t, tx.VerifySignature())
}

func TestBlockRoundTrip(t *testing.T) {
	block := &Block{
		Header:       testHeader(),
		Transactions: []*Transaction{{ModuleID: "m", CallID: "c", Nonce: 1}},
	}
	decoded, err := DecodeBlock(block.Encode())
	require.NoError(t, err)
	assert.Equal(t, block.Hash(), decoded.Hash())
	assert.Equal(t, block.Header, decoded.Header)
	require.Len(t, decoded.Transactions, 1)
	assert.Equal(t, block.TxHashes(), decoded.TxHashes())

	empty, err := DecodeBlock((&Block{Header: testHeader()}).Encode())
	require.NoError(t, err)
	assert.NotNil(t, empty.Transactions)
	assert.Empty(t, empty.Transactions)
}

func TestParseTarget(t *testing.T) {
	maxTarget, err := ParseTarget("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, MaxTarget(), maxTarget)

	hexMax, err := ParseTarget("0xffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.Equal(t, MaxTarget(), hexMax)

	small, err := ParseTarget("0x1")
	require.NoError(t, err)
	assert.Equal(t, Target{15: 1}, small)
	assert.Equal(t, "1", small.String())

	_, err = ParseTarget("340282366920938463463374607431768211456")
	require.ErrorIs(t, err, ErrTargetOverflow)
	_, err = ParseTarget("0x1ffffffffffffffffffffffffffffffff")
	require.ErrorIs(t, err, ErrTargetOverflow)
	_, err = ParseTarget("not a number")
	require.Error(t, err)

	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	_, err = TargetFromUint256(wide)
	require.ErrorIs(t, err, ErrTargetOverflow)
}

func TestTextForms(t *testing.T) {
	addr := Address{0xab}
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var parsed Address
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, addr, parsed)

	_, err = HexToAddress("0x" + addr.String())
	require.NoError(t, err)
	_, err = HexToAddress("abcd")
	require.Error(t, err)
	_, err = HexToAddress("zz")
	require.Error(t, err)
}
