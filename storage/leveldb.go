package storage

import (
	"path"

	"github.com/op/go-logging"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const StorageName = "accountguard"

var log = logging.MustGetLogger("storage")

type StorageImpl struct {
	db   *leveldb.DB
	path string
}

// NewStorage opens a leveldb under p, or an in-memory one when p is empty.
func NewStorage(p string, opts *opt.Options) (Storage, error) {
	var nopts opt.Options
	if opts != nil {
		nopts = *opts
	}

	var err error
	var db *leveldb.DB

	if p == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), &nopts)
	} else {
		p = path.Join(p, StorageName)
		db, err = leveldb.OpenFile(p, &nopts)
		log.Debugf("Created storage at %v", p)
		if errors.IsCorrupted(err) && !nopts.GetReadOnly() {
			log.Warningf("Storage at %v is corrupted, recovering", p)
			db, err = leveldb.RecoverFile(p, &nopts)
		}
	}

	if err != nil {
		return nil, err
	}

	return &StorageImpl{
		db:   db,
		path: p,
	}, nil
}

func key(rtype ResourceType, k []byte) []byte {
	prefix := append(make([]byte, 1), byte(rtype))
	return append(prefix, k...)
}

func (s *StorageImpl) Put(rtype ResourceType, k []byte, value []byte) error {
	return s.db.Put(key(rtype, k), value, &opt.WriteOptions{})
}

func (s *StorageImpl) Get(rtype ResourceType, k []byte) (value []byte, err error) {
	return s.db.Get(key(rtype, k), &opt.ReadOptions{})
}

func (s *StorageImpl) Contains(rtype ResourceType, k []byte) bool {
	b, _ := s.db.Has(key(rtype, k), &opt.ReadOptions{})
	return b
}

func (s *StorageImpl) Delete(rtype ResourceType, k []byte) error {
	return s.db.Delete(key(rtype, k), &opt.WriteOptions{})
}

// Keys returns the keys of rtype with the resource prefix stripped.
func (s *StorageImpl) Keys(rtype ResourceType, keyPrefix []byte) (keys [][]byte) {
	iter := s.db.NewIterator(util.BytesPrefix(key(rtype, keyPrefix)), nil)

	for iter.Next() {
		k := iter.Key()
		keyCopy := make([]byte, len(k)-2)
		copy(keyCopy, k[2:])
		keys = append(keys, keyCopy)
	}

	iter.Release()

	return keys
}

func (s *StorageImpl) WriteBatch(ops []Op) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		if op.Value == nil {
			batch.Delete(key(op.Type, op.Key))
		} else {
			batch.Put(key(op.Type, op.Key), op.Value)
		}
	}
	return s.db.Write(batch, &opt.WriteOptions{Sync: s.path != ""})
}

func (s *StorageImpl) Stats() *leveldb.DBStats {
	stats := &leveldb.DBStats{}
	if err := s.db.Stats(stats); err != nil {
		log.Error(err)
		return nil
	}
	return stats
}

func (s *StorageImpl) Close() {
	if err := s.db.Close(); err != nil {
		log.Error("Can't close storage", err)
	}
}
