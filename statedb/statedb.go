// Package statedb is the node's key-value state. Reads go straight to
// leveldb; writes are buffered in a committable Transaction made of scoped
// Tx write sets and land in one atomic batch together with a snapshot record
// that allows the commit to be rolled back later.
package statedb

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	ErrTransactionInProgress = errors.New("a committable transaction is already open")
	ErrTransactionClosed     = errors.New("transaction already committed or rolled back")
	ErrReservedKey           = errors.New("key prefix is reserved by the state db")
	ErrNoSnapshot            = errors.New("no snapshot retained")
)

// Keys beginning with reservedPrefix hold the store's own bookkeeping.
const reservedPrefix = "$"

// Reader is the read side shared by the store, its transactions and views.
type Reader interface {
	Get(key string) ([]byte, error)
}

type StateDB struct {
	mtx sync.Mutex

	db       *leveldb.DB
	snapshot *snapshot
	wOpts    *opt.WriteOptions

	committableTransaction *Transaction // current committable transaction
	lastTransactionID      uint64
}

// Open opens or creates a durable state db at path, keeping snapshot records
// for the last maxSnapshotCount commits.
func Open(path string, maxSnapshotCount int) (*StateDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open state db %s", path)
	}
	return newStateDB(db, maxSnapshotCount, &opt.WriteOptions{Sync: true})
}

// OpenInMemory returns a state db that lives only as long as the process.
func OpenInMemory(maxSnapshotCount int) (*StateDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory state db")
	}
	return newStateDB(db, maxSnapshotCount, nil)
}

func newStateDB(db *leveldb.DB, maxSnapshotCount int, wOpts *opt.WriteOptions) (*StateDB, error) {
	if maxSnapshotCount < 0 {
		db.Close()
		return nil, errors.Errorf("invalid max snapshot count %d", maxSnapshotCount)
	}

	s := &StateDB{db: db, wOpts: wOpts}
	s.snapshot = &snapshot{stateDB: s, maxSnapshotCount: uint64(maxSnapshotCount)}

	value, err := s.get(keyOfLastTransactionID())
	if err != nil {
		db.Close()
		return nil, err
	}
	if value != nil {
		if len(value) != 8 {
			db.Close()
			return nil, errors.New("corrupt last transaction id")
		}
		s.lastTransactionID = binary.BigEndian.Uint64(value)
	}
	return s, nil
}

// Get returns the committed value of key, or nil if it is absent.
func (s *StateDB) Get(key string) ([]byte, error) {
	return s.get(key)
}

func (s *StateDB) get(key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return value, nil
}

// View runs fn against a point-in-time view of the committed state. Commits
// made while fn runs are not visible to it.
func (s *StateDB) View(fn func(r Reader) error) error {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return errors.Wrap(err, "acquire snapshot")
	}
	defer snap.Release()
	return fn(&view{snap: snap})
}

// NewTransaction opens the committable transaction. There can only be one
// at a time; it must be committed or rolled back before the next.
func (s *StateDB) NewTransaction() (*Transaction, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.committableTransaction != nil {
		return nil, ErrTransactionInProgress
	}
	trans := &Transaction{
		transactionID: s.lastTransactionID + 1,
		stateDB:       s,
		wBuffer:       make(map[string]entry),
		rBuffer:       newKVbuffer(256),
	}
	s.committableTransaction = trans
	return trans, nil
}

// Update runs fn inside a single Tx of a fresh transaction and commits both
// if fn succeeds.
func (s *StateDB) Update(fn func(tx *Tx) error) error {
	trans, err := s.NewTransaction()
	if err != nil {
		return err
	}
	tx := trans.NewTx()
	if err := fn(tx); err != nil {
		trans.Rollback()
		return err
	}
	if _, err := tx.Commit(); err != nil {
		trans.Rollback()
		return err
	}
	return trans.Commit()
}

// Put writes one key as its own committed transaction.
func (s *StateDB) Put(key string, value []byte) error {
	return s.Update(func(tx *Tx) error { return tx.Set(key, value) })
}

// Delete removes one key as its own committed transaction.
func (s *StateDB) Delete(key string) error {
	return s.Update(func(tx *Tx) error { return tx.Delete(key) })
}

// Rollback undoes the last n committed transactions.
func (s *StateDB) Rollback(n int) error {
	if n <= 0 {
		return errors.Errorf("invalid rollback count %d", n)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	// There cannot be uncommitted transactions when the database rolls back
	if s.committableTransaction != nil {
		return ErrTransactionInProgress
	}
	return s.snapshot.rollback(uint64(n))
}

func (s *StateDB) LastTransactionID() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.lastTransactionID
}

func (s *StateDB) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.committableTransaction != nil {
		return errors.Wrap(ErrTransactionInProgress, "close state db")
	}
	return s.db.Close()
}

func keyOfLastTransactionID() string {
	return "$last_transaction_id"
}

func checkKey(key string) error {
	if strings.HasPrefix(key, reservedPrefix) {
		return errors.Wrapf(ErrReservedKey, "key %q", key)
	}
	return nil
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

type view struct {
	snap *leveldb.Snapshot
}

func (v *view) Get(key string) ([]byte, error) {
	value, err := v.snap.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return value, nil
}
