package state

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/storage"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	ErrAccountExists = errors.New("account is already stored in db, update it instead")
	log              = logging.MustGetLogger("state")
)

// stored is the persisted form of an account. Signer flags are per request and never stored.
type stored struct {
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
}

type AccountPersister struct {
	storage storage.Storage
}

func (p *AccountPersister) Put(acc *account.Account) error {
	b, err := serialize(acc)
	if err != nil {
		return err
	}
	return p.storage.Put(storage.Account, acc.Key.Bytes(), b)
}

func (p *AccountPersister) Get(key solana.PublicKey) (*account.Account, error) {
	b, err := p.storage.Get(storage.Account, key.Bytes())
	if err != nil {
		return nil, err
	}
	return deserialize(key, b)
}

func (p *AccountPersister) Keys() (keys []solana.PublicKey) {
	for _, k := range p.storage.Keys(storage.Account, nil) {
		keys = append(keys, solana.PublicKeyFromBytes(k))
	}
	return keys
}

func serialize(acc *account.Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	s := stored{Owner: acc.Owner, Lamports: acc.Lamports, Executable: acc.IsExecutable, Data: acc.Data}
	if err := bin.NewBorshEncoder(buf).Encode(s); err != nil {
		return nil, errors.Wrapf(err, "can't serialize %v", acc.Key)
	}
	return buf.Bytes(), nil
}

func deserialize(key solana.PublicKey, b []byte) (*account.Account, error) {
	s := &stored{}
	if err := bin.NewBorshDecoder(b).Decode(s); err != nil {
		return nil, errors.Wrapf(err, "can't deserialize %v", key)
	}
	acc := account.NewAccount(key, s.Owner, s.Lamports, s.Data)
	acc.IsExecutable = s.Executable
	return acc, nil
}

// DB holds the committed accounts. Reads hand out copies, writes happen only through Put and Commit.
type DB struct {
	accounts  *treemap.Map
	persister *AccountPersister
	storage   storage.Storage
	slot      uint64
	lock      sync.RWMutex
}

func NewStateDB(s storage.Storage) *DB {
	db := &DB{
		accounts:  treemap.NewWithStringComparator(),
		persister: &AccountPersister{storage: s},
		storage:   s,
	}

	for _, key := range db.persister.Keys() {
		acc, e := db.persister.Get(key)
		if e != nil {
			log.Errorf("Can't load account %v: %v", key, e)
			continue
		}
		db.accounts.Put(mapKey(key), acc)
	}
	if b, e := s.Get(storage.Slot, []byte("slot")); e == nil && len(b) == 8 {
		db.slot = binary.LittleEndian.Uint64(b)
	}
	log.Debugf("Loaded %d accounts at slot %d", db.accounts.Size(), db.slot)

	return db
}

func mapKey(key solana.PublicKey) string {
	return string(key[:])
}

// Get returns a copy of the committed account.
func (db *DB) Get(key solana.PublicKey) (acc *account.Account, found bool) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	v, found := db.accounts.Get(mapKey(key))
	if !found {
		return nil, false
	}
	return v.(*account.Account).Copy(), true
}

// Put stores a new account outside of any transaction, e.g. for genesis or fixtures.
func (db *DB) Put(acc *account.Account) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if _, found := db.accounts.Get(mapKey(acc.Key)); found {
		log.Errorf("Account for %v is already stored in db, update it instead!", acc.Key)
		return errors.Wrapf(ErrAccountExists, "%v", acc.Key)
	}
	if err := db.persister.Put(acc); err != nil {
		return err
	}
	cp := acc.Copy()
	cp.IsSigner = false
	db.accounts.Put(mapKey(acc.Key), cp)
	return nil
}

// Keys returns committed addresses in ascending byte order.
func (db *DB) Keys() (keys []solana.PublicKey) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	for _, v := range db.accounts.Values() {
		keys = append(keys, v.(*account.Account).Key)
	}
	return keys
}

func (db *DB) Slot() uint64 {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.slot
}

// Commit writes all changed accounts in one batch and advances the slot. Accounts left without
// lamports are purged.
func (db *DB) Commit(changed []*account.Account) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	ops := make([]storage.Op, 0, len(changed)+1)
	for _, acc := range changed {
		if acc.Lamports == 0 {
			ops = append(ops, storage.Op{Type: storage.Account, Key: acc.Key.Bytes()})
			continue
		}
		b, err := serialize(acc)
		if err != nil {
			return err
		}
		ops = append(ops, storage.Op{Type: storage.Account, Key: acc.Key.Bytes(), Value: b})
	}
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, db.slot+1)
	ops = append(ops, storage.Op{Type: storage.Slot, Key: []byte("slot"), Value: slot})

	if err := db.storage.WriteBatch(ops); err != nil {
		return errors.Wrap(err, "can't commit")
	}

	for _, acc := range changed {
		if acc.Lamports == 0 {
			log.Debugf("Purging %v", acc.Key)
			db.accounts.Remove(mapKey(acc.Key))
			continue
		}
		cp := acc.Copy()
		cp.IsSigner = false
		db.accounts.Put(mapKey(acc.Key), cp)
	}
	db.slot++
	return nil
}
