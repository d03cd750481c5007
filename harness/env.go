package harness

import (
	"time"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagarinchain/accountguard/storage"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("harness")

// DefaultFunding is what NewWallet credits when no amount is needed in particular.
const DefaultFunding uint64 = 10 * 1000000000

// Genesis is the fixed clock every Env starts with.
var Genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Env is a fresh ledger with its own executor. Every case runs in its own Env.
type Env struct {
	Storage storage.Storage
	DB      *state.DB
	Exec    *state.Executor
}

func NewEnv() (*Env, error) {
	return NewEnvAt("")
}

// NewEnvAt opens the ledger under dir, in memory when dir is empty.
func NewEnvAt(dir string) (*Env, error) {
	s, err := storage.NewStorage(dir, nil)
	if err != nil {
		return nil, errors.Wrap(err, "can't open storage")
	}
	db := state.NewStateDB(s)
	exec := state.NewExecutor(db)
	exec.SetClock(func() time.Time { return Genesis })

	env := &Env{Storage: s, DB: db, Exec: exec}
	if _, found := db.Get(solana.SystemProgramID); !found {
		if err := db.Put(account.NewProgram(solana.SystemProgramID)); err != nil {
			s.Close()
			return nil, err
		}
	}
	return env, nil
}

func (e *Env) Close() {
	e.Storage.Close()
}

// Deploy puts an executable account at id and routes its instructions to h.
func (e *Env) Deploy(id solana.PublicKey, h state.Handler) error {
	e.Exec.Register(id, h)
	if _, found := e.DB.Get(id); found {
		return nil
	}
	return e.DB.Put(account.NewProgram(id))
}

func (e *Env) NewKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// NewWallet stores a system owned account holding lamports and returns its address.
func (e *Env) NewWallet(lamports uint64) (solana.PublicKey, error) {
	key := e.NewKey()
	if err := e.DB.Put(account.NewWallet(key, lamports)); err != nil {
		return solana.PublicKey{}, err
	}
	return key, nil
}

func (e *Env) Put(acc *account.Account) error {
	return e.DB.Put(acc)
}

// Account returns the committed account at key, or a vacant one when nothing is stored there.
func (e *Env) Account(key solana.PublicKey) *account.Account {
	if acc, found := e.DB.Get(key); found {
		return acc
	}
	return account.NewWallet(key, 0)
}

// Load decodes the committed record at key.
func (e *Env) Load(key, programID solana.PublicKey, out account.Record) error {
	return account.Load(e.Account(key), programID, out)
}

func (e *Env) Send(ixs ...state.Instruction) (*state.Receipt, error) {
	r, err := e.Exec.Execute(state.NewTransaction(ixs...))
	if err != nil {
		log.Debugf("Transaction failed: %v", err)
		return nil, err
	}
	return r, nil
}

// Snapshot returns copies of every committed account in address order.
func (e *Env) Snapshot() []*account.Account {
	var accs []*account.Account
	for _, key := range e.DB.Keys() {
		acc, _ := e.DB.Get(key)
		accs = append(accs, acc)
	}
	return accs
}

// Unchanged reports whether the committed accounts are the ones in snapshot.
func (e *Env) Unchanged(snapshot []*account.Account) bool {
	now := e.Snapshot()
	if len(now) != len(snapshot) {
		return false
	}
	for i := range now {
		a, b := now[i], snapshot[i]
		if !a.Key.Equals(b.Key) || !a.Owner.Equals(b.Owner) || a.Lamports != b.Lamports ||
			a.IsExecutable != b.IsExecutable || string(a.Data) != string(b.Data) {
			return false
		}
	}
	return true
}

// Forge stores rec at a fresh address owned by owner, funded to be rent exempt. It stands for
// an account an attacker prepared up front, or one left behind by an earlier deployment.
func (e *Env) Forge(owner solana.PublicKey, rec account.Record) (solana.PublicKey, error) {
	data, err := account.Encode(rec)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return e.ForgeRaw(owner, data)
}

func (e *Env) ForgeRaw(owner solana.PublicKey, data []byte) (solana.PublicKey, error) {
	lamports, err := account.RentExemptMinimum(uint64(len(data)))
	if err != nil {
		return solana.PublicKey{}, err
	}
	key := e.NewKey()
	if err := e.DB.Put(account.NewAccount(key, owner, lamports, data)); err != nil {
		return solana.PublicKey{}, err
	}
	return key, nil
}
