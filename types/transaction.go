package types

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// Transaction is a call into one runtime module. Its canonical encoding is
// the RLP list of the fields in declaration order.
type Transaction struct {
	From      Address  `json:"from"`
	Nonce     uint64   `json:"nonce"`
	ModuleID  string   `json:"module_id"`
	CallID    string   `json:"call_id"`
	Payload   HexBytes `json:"payload"`
	Fee       uint64   `json:"fee"`
	Signature HexBytes `json:"signature"`
}

// DecodeTransaction parses the canonical encoding of a transaction.
func DecodeTransaction(b []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := decode(b, tx, "transaction"); err != nil {
		return nil, err
	}
	return tx, nil
}

// Encode returns the canonical encoding, signature included.
func (tx *Transaction) Encode() []byte {
	return mustEncode(tx)
}

// SigningBytes is the encoding with an empty signature.
func (tx *Transaction) SigningBytes() []byte {
	unsigned := *tx
	unsigned.Signature = nil
	return mustEncode(&unsigned)
}

// Hash identifies the transaction in the pool and in state roots.
func (tx *Transaction) Hash() Hash {
	return Sum(tx.Encode())
}

// Sign sets From to the key's address and signs the transaction.
func (tx *Transaction) Sign(priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return errors.Errorf("invalid private key length %d", len(priv))
	}
	tx.From = AddressFromPublicKey(priv.Public().(ed25519.PublicKey))
	tx.Signature = ed25519.Sign(priv, tx.SigningBytes())
	return nil
}

// VerifySignature reports whether Signature was made by the key behind From.
func (tx *Transaction) VerifySignature() bool {
	if len(tx.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(tx.From.PublicKey(), tx.SigningBytes(), tx.Signature)
}
