package statedb

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// Tx is an all-or-nothing write set inside a Transaction. Its writes are
// visible to its own reads, reach the transaction only on Commit, and are
// dropped entirely on Rollback.
type Tx struct {
	txID        uint64
	buffer      map[string]entry
	transaction *Transaction
}

func (t *Tx) ID() uint64 {
	return t.txID
}

func (t *Tx) Get(key string) ([]byte, error) {
	if e, ok := t.buffer[key]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	return t.transaction.Get(key)
}

// Set stores value under key. An empty value deletes the key.
func (t *Tx) Set(key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		t.buffer[key] = entry{deleted: true}
		return nil
	}
	t.buffer[key] = entry{value: append([]byte(nil), value...)}
	return nil
}

func (t *Tx) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	t.buffer[key] = entry{deleted: true}
	return nil
}

// Commit folds the write set into the transaction and returns its canonical
// encoding.
func (t *Tx) Commit() ([]byte, error) {
	if t.transaction.done {
		return nil, ErrTransactionClosed
	}
	ws := encodeWriteSet(t.buffer)
	for k, e := range t.buffer {
		t.transaction.wBuffer[k] = e
	}
	t.buffer = make(map[string]entry)
	return ws, nil
}

func (t *Tx) Rollback() {
	t.buffer = make(map[string]entry)
}

// encodeWriteSet lists the writes in key order so equal sets encode equally.
func encodeWriteSet(buffer map[string]entry) []byte {
	keys := make([]string, 0, len(buffer))
	for k := range buffer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]record, 0, len(keys))
	for _, k := range keys {
		e := buffer[k]
		records = append(records, record{Key: k, Value: e.value, Deleted: e.deleted})
	}
	b, err := rlp.EncodeToBytes(records)
	if err != nil {
		panic(err)
	}
	return b
}
