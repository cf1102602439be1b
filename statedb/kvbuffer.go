package statedb

import (
	"hash/fnv"
	"sync"
)

const kvSeed = 0x8f25cb36

func calcIndex(key []byte, maxCacheSize uint) int {
	h := fnv.New32a()
	h.Write([]byte{kvSeed >> 24, kvSeed >> 16 & 0xff, kvSeed >> 8 & 0xff, kvSeed & 0xff})
	h.Write(key)
	return int(uint(h.Sum32()) % maxCacheSize)
}

type kvItem struct {
	vals map[string][]byte
	mt   sync.Mutex
}

// kvBuffer caches values read from the db during one transaction, sharded
// by key hash.
type kvBuffer struct {
	buffer       []kvItem
	maxCacheSize uint
}

func newKVbuffer(maxCacheSize uint) *kvBuffer {
	buf := &kvBuffer{maxCacheSize: maxCacheSize}
	buf.reset()
	return buf
}

func (buf *kvBuffer) reset() {
	buf.buffer = make([]kvItem, buf.maxCacheSize)
	for i := range buf.buffer {
		buf.buffer[i].vals = make(map[string][]byte)
	}
}

func (buf *kvBuffer) getItem(key string) *kvItem {
	return &buf.buffer[calcIndex([]byte(key), buf.maxCacheSize)]
}

func (buf *kvBuffer) get(key string) ([]byte, bool) {
	item := buf.getItem(key)
	item.mt.Lock()
	defer item.mt.Unlock()

	value, ok := item.vals[key]
	return value, ok
}

func (buf *kvBuffer) set(key string, value []byte) {
	item := buf.getItem(key)
	item.mt.Lock()
	item.vals[key] = value
	item.mt.Unlock()
}
