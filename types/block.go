package types

// BlockHeader links a block to its parent and carries the proof of work.
type BlockHeader struct {
	Height           uint64 `json:"height"`
	PrevHash         Hash   `json:"prev_hash"`
	StateRoot        Hash   `json:"state_root"`
	Timestamp        uint64 `json:"timestamp"`
	DifficultyTarget Target `json:"difficulty_target"`
	Nonce            uint64 `json:"nonce"`
}

// Encode returns the canonical encoding of the full header.
func (h *BlockHeader) Encode() []byte {
	return mustEncode(h)
}

// PowTemplate is the encoding with the nonce forced to zero. Forge hashes
// it together with each candidate nonce.
func (h *BlockHeader) PowTemplate() []byte {
	template := *h
	template.Nonce = 0
	return mustEncode(&template)
}

// Hash is the sealed hash over the full encoding, nonce included.
func (h *BlockHeader) Hash() Hash {
	return Sum(h.Encode())
}

// Block is a header plus its transactions in execution order.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// DecodeBlock parses the canonical encoding of a block.
func DecodeBlock(b []byte) (*Block, error) {
	block := new(Block)
	if err := decode(b, block, "block"); err != nil {
		return nil, err
	}
	if block.Transactions == nil {
		block.Transactions = []*Transaction{}
	}
	return block, nil
}

func (b *Block) Encode() []byte {
	return mustEncode(b)
}

func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// TxHashes returns the hashes of the block's transactions in order.
func (b *Block) TxHashes() []Hash {
	hashes := make([]Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return hashes
}
