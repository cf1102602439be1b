package statedb

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// entry is a buffered write. A deleted entry shadows the stored value.
type entry struct {
	value   []byte
	deleted bool
}

// Transaction collects the writes of every Tx committed into it and applies
// them to the db in a single batch.
type Transaction struct {
	transactionID uint64
	stateDB       *StateDB
	wBuffer       map[string]entry
	rBuffer       *kvBuffer
	lastTxID      uint64
	done          bool
}

func (trans *Transaction) ID() uint64 {
	return trans.transactionID
}

// NewTx opens a scoped write set on top of the transaction.
func (trans *Transaction) NewTx() *Tx {
	trans.lastTxID++
	return &Tx{
		txID:        trans.lastTxID,
		buffer:      make(map[string]entry),
		transaction: trans,
	}
}

// Get sees the writes of committed Txs before falling back to the db.
func (trans *Transaction) Get(key string) ([]byte, error) {
	if trans.done {
		return nil, ErrTransactionClosed
	}
	if e, ok := trans.wBuffer[key]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	if value, ok := trans.rBuffer.get(key); ok {
		return value, nil
	}
	value, err := trans.stateDB.get(key)
	if err != nil {
		return nil, err
	}
	trans.rBuffer.set(key, value)
	return value, nil
}

// WriteSet returns the canonical encoding of every pending write.
func (trans *Transaction) WriteSet() []byte {
	return encodeWriteSet(trans.wBuffer)
}

// Commit writes the buffered data, its snapshot record and the transaction
// id in one atomic batch.
func (trans *Transaction) Commit() error {
	s := trans.stateDB
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if trans.done {
		return ErrTransactionClosed
	}
	if err := trans.checkID(); err != nil {
		return err
	}

	keys := make([]string, 0, len(trans.wBuffer))
	for k := range trans.wBuffer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := new(leveldb.Batch)
	originData := make([]record, 0, len(keys))
	newData := make([]record, 0, len(keys))
	for _, k := range keys {
		origin, err := s.get(k)
		if err != nil {
			return err
		}
		originData = append(originData, record{Key: k, Value: origin, Deleted: origin == nil})

		e := trans.wBuffer[k]
		newData = append(newData, record{Key: k, Value: e.value, Deleted: e.deleted})
		if e.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), e.value)
		}
	}

	if err := s.snapshot.commit(batch, trans.transactionID, originData, newData); err != nil {
		return err
	}
	batch.Put([]byte(keyOfLastTransactionID()), uint64Bytes(trans.transactionID))

	if err := s.db.Write(batch, s.wOpts); err != nil {
		return errors.Wrapf(err, "commit transaction %d", trans.transactionID)
	}

	s.lastTransactionID = trans.transactionID
	trans.close()
	return nil
}

// Rollback discards every buffered write and releases the transaction slot.
func (trans *Transaction) Rollback() {
	s := trans.stateDB
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if trans.done {
		return
	}
	trans.close()
}

// close must be called with the db lock held.
func (trans *Transaction) close() {
	trans.done = true
	trans.wBuffer = make(map[string]entry)
	trans.rBuffer.reset()
	if trans.stateDB.committableTransaction == trans {
		trans.stateDB.committableTransaction = nil
	}
}

func (trans *Transaction) checkID() error {
	if last := trans.stateDB.lastTransactionID; trans.transactionID != last+1 {
		return errors.Errorf("transaction ID must be last transaction ID plus one, ID:%d, last ID %d",
			trans.transactionID, last)
	}
	return nil
}
