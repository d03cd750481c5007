package storage

import "github.com/syndtr/goleveldb/leveldb"

type ResourceType byte

const Account = ResourceType(0x0)
const Slot = ResourceType(0x1)

// Op is one entry of an atomic batch. A nil Value deletes the key.
type Op struct {
	Type  ResourceType
	Key   []byte
	Value []byte
}

type Storage interface {
	Put(rtype ResourceType, key []byte, value []byte) error
	Get(rtype ResourceType, key []byte) (value []byte, err error)
	Contains(rtype ResourceType, key []byte) bool
	Delete(rtype ResourceType, key []byte) error
	Keys(rtype ResourceType, keyPrefix []byte) (keys [][]byte)
	// WriteBatch applies all ops or none of them.
	WriteBatch(ops []Op) error
	Stats() *leveldb.DBStats
	Close()
}
