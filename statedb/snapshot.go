package statedb

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// record is one key of a snapshot or write set.
type record struct {
	Key     string
	Value   []byte
	Deleted bool
}

// snapshot keeps, per committed transaction, the values its keys had before
// (origin data) and after (new data) the commit.
type snapshot struct {
	stateDB          *StateDB
	maxSnapshotCount uint64
}

func (sn *snapshot) commit(batch *leveldb.Batch, transactionID uint64, originData, newData []record) error {
	if sn.maxSnapshotCount != 0 {
		origin, err := rlp.EncodeToBytes(originData)
		if err != nil {
			return errors.Wrap(err, "encode origin data")
		}
		updated, err := rlp.EncodeToBytes(newData)
		if err != nil {
			return errors.Wrap(err, "encode new data")
		}
		batch.Put([]byte(keyOfOriginData(transactionID)), origin)
		batch.Put([]byte(keyOfNewData(transactionID)), updated)
	}
	return sn.checkMaxCount(batch, transactionID)
}

// checkMaxCount drops records that fall out of the retention window.
func (sn *snapshot) checkMaxCount(batch *leveldb.Batch, transactionID uint64) error {
	if transactionID <= sn.maxSnapshotCount {
		return nil
	}

	for id := transactionID - sn.maxSnapshotCount; id > 0; id-- {
		originKey := []byte(keyOfOriginData(id))
		ok, err := sn.stateDB.db.Has(originKey, nil)
		if err != nil {
			return errors.Wrap(err, "check snapshot")
		}
		if !ok {
			return nil
		}
		batch.Delete(originKey)
		batch.Delete([]byte(keyOfNewData(id)))
	}
	return nil
}

// rollback restores the state as it was before the last n transactions.
// Every record is checked against the current state before anything is
// written, and the restore is a single batch.
func (sn *snapshot) rollback(n uint64) error {
	s := sn.stateDB
	lastTransactionID := s.lastTransactionID
	if n > lastTransactionID {
		return errors.Wrapf(ErrNoSnapshot, "can not rollback %d transactions, last transaction ID %d",
			n, lastTransactionID)
	}

	targetID := lastTransactionID - n + 1
	restored := make(map[string]record)
	batch := new(leveldb.Batch)
	for id := lastTransactionID; id >= targetID; id-- {
		newData, err := sn.load(keyOfNewData(id))
		if err != nil {
			return err
		}
		originData, err := sn.load(keyOfOriginData(id))
		if err != nil {
			return err
		}

		for _, r := range newData {
			var current []byte
			if prev, ok := restored[r.Key]; ok {
				current = prev.Value
			} else if current, err = s.get(r.Key); err != nil {
				return err
			}
			if !bytes.Equal(current, r.Value) {
				return errors.Errorf("can not rollback, snapshot %d disagrees with state at key %q", id, r.Key)
			}
		}
		for _, r := range originData {
			restored[r.Key] = r
		}

		batch.Delete([]byte(keyOfOriginData(id)))
		batch.Delete([]byte(keyOfNewData(id)))
	}

	for k, r := range restored {
		if r.Deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), r.Value)
		}
	}
	batch.Put([]byte(keyOfLastTransactionID()), uint64Bytes(targetID-1))

	if err := s.db.Write(batch, s.wOpts); err != nil {
		return errors.Wrap(err, "write rollback")
	}
	s.lastTransactionID = targetID - 1
	return nil
}

func (sn *snapshot) load(key string) ([]record, error) {
	value, err := sn.stateDB.get(key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, errors.Wrapf(ErrNoSnapshot, "missing %s", key)
	}
	var records []record
	if err := rlp.DecodeBytes(value, &records); err != nil {
		return nil, errors.Wrapf(err, "decode %s", key)
	}
	return records, nil
}

func keyOfOriginData(transactionID uint64) string {
	return fmt.Sprintf("$%016x$origin_data", transactionID)
}

func keyOfNewData(transactionID uint64) string {
	return fmt.Sprintf("$%016x$new_data", transactionID)
}
