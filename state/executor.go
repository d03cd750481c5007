package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/safemath"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const MaxInvokeDepth = 4

var (
	ErrNotEnoughAccounts    = errors.New("not enough account keys given to the instruction")
	ErrProgramNotFound      = errors.New("program is not registered")
	ErrProgramNotExecutable = errors.New("program account is not executable")
	ErrLamportsNotBalanced  = errors.New("sum of account balances before and after transaction do not match")
	ErrPrivilegeEscalation  = errors.New("cross-program invocation with unauthorized signer")
	ErrMissingAccount       = errors.New("invoked account was not passed to the caller")
	ErrReadonlyModified     = errors.New("instruction modified a readonly account")
	ErrCallDepth            = errors.New("cross-program invocation call depth too deep")
	ErrHandlerPanic         = errors.New("handler panicked")
	ErrEmptyTransaction     = errors.New("transaction has no instructions")
)

// Handler processes one instruction against the accounts in ctx.
type Handler func(ctx *Context) error

type AccountMeta struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

func Writable(key solana.PublicKey, signer bool) AccountMeta {
	return AccountMeta{Key: key, IsSigner: signer, IsWritable: true}
}

func Readonly(key solana.PublicKey, signer bool) AccountMeta {
	return AccountMeta{Key: key, IsSigner: signer}
}

// Instruction targets ProgramID. When Handler is nil the handler registered for ProgramID runs.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
	Handler   Handler
}

type Transaction struct {
	Instructions []Instruction
}

func NewTransaction(ixs ...Instruction) *Transaction {
	return &Transaction{Instructions: ixs}
}

// Invocation records one cross-program call and the signers the callee was granted.
type Invocation struct {
	Caller  solana.PublicKey
	Program solana.PublicKey
	Signers []solana.PublicKey
	Data    []byte
	Depth   int
}

type Receipt struct {
	Slot        uint64
	ReturnData  []byte
	Invocations []Invocation
}

// Executor is the host side of the boundary: it hands out account descriptors with trusted signer
// and executable flags, runs handlers and commits their effects all at once or not at all.
type Executor struct {
	db       *DB
	programs map[solana.PublicKey]Handler
	now      func() time.Time
	lock     sync.Mutex
}

func NewExecutor(db *DB) *Executor {
	e := &Executor{db: db, programs: make(map[solana.PublicKey]Handler), now: time.Now}
	e.programs[solana.SystemProgramID] = processSystem
	return e
}

func (e *Executor) Register(programID solana.PublicKey, h Handler) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.programs[programID] = h
}

func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Executor) DB() *DB {
	return e.db
}

// txState is the copy-on-write working set of a single transaction.
type txState struct {
	exec      *Executor
	accounts  *treemap.Map
	originals map[solana.PublicKey]*account.Account
	receipt   *Receipt
}

func (s *txState) load(key solana.PublicKey) *account.Account {
	if v, found := s.accounts.Get(mapKey(key)); found {
		return v.(*account.Account)
	}
	acc, found := s.exec.db.Get(key)
	if !found {
		acc = account.NewWallet(key, 0)
	}
	s.originals[key] = acc.Copy()
	s.accounts.Put(mapKey(key), acc)
	return acc
}

func (s *txState) program(key solana.PublicKey) (Handler, bool) {
	h, f := s.exec.programs[key]
	return h, f
}

// Execute runs every instruction of tx in order. Nothing is committed unless all of them succeed.
func (e *Executor) Execute(tx *Transaction) (*Receipt, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	s := &txState{
		exec:      e,
		accounts:  treemap.NewWithStringComparator(),
		originals: make(map[solana.PublicKey]*account.Account),
		receipt:   &Receipt{},
	}

	for i, ix := range tx.Instructions {
		if err := s.process(ix); err != nil {
			log.Debugf("Instruction %d to %v failed: %v", i, ix.ProgramID, err)
			return nil, err
		}
	}

	changed, err := s.changes()
	if err != nil {
		return nil, err
	}
	if err := e.db.Commit(changed); err != nil {
		return nil, err
	}
	s.receipt.Slot = e.db.Slot()
	return s.receipt, nil
}

func (s *txState) process(ix Instruction) error {
	h := ix.Handler
	if h == nil {
		var found bool
		if h, found = s.program(ix.ProgramID); !found {
			return errors.Wrapf(ErrProgramNotFound, "%v", ix.ProgramID)
		}
	}

	accounts := make([]*account.Account, len(ix.Accounts))
	var readonly []*account.Account
	for i, meta := range ix.Accounts {
		acc := s.load(meta.Key)
		acc.IsSigner = false
		accounts[i] = acc
	}
	for i, meta := range ix.Accounts {
		if meta.IsSigner {
			accounts[i].IsSigner = true
		}
		if !meta.IsWritable {
			readonly = append(readonly, accounts[i].Copy())
		}
	}

	ctx := &Context{ProgramID: ix.ProgramID, Accounts: accounts, Data: ix.Data, tx: s}
	err := run(h, ctx)
	for _, acc := range accounts {
		acc.IsSigner = false
	}
	if err != nil {
		return err
	}

	for _, before := range readonly {
		after := s.load(before.Key)
		if !sameState(before, after) && !writableElsewhere(ix.Accounts, before.Key) {
			return errors.Wrapf(ErrReadonlyModified, "%v", before.Key)
		}
	}
	return nil
}

func writableElsewhere(metas []AccountMeta, key solana.PublicKey) bool {
	for _, m := range metas {
		if m.IsWritable && m.Key.Equals(key) {
			return true
		}
	}
	return false
}

// run converts a panicking handler into an error so nothing escapes the boundary.
func run(h Handler, ctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Handler of %v panicked: %v", ctx.ProgramID, r)
			err = errors.Wrapf(ErrHandlerPanic, "%v", r)
		}
	}()
	return h(ctx)
}

func sameState(a, b *account.Account) bool {
	if !a.Owner.Equals(b.Owner) || a.Lamports != b.Lamports || a.IsExecutable != b.IsExecutable {
		return false
	}
	return string(a.Data) == string(b.Data)
}

// changes returns the accounts that differ from their committed state after checking that no
// lamports were created or destroyed.
func (s *txState) changes() ([]*account.Account, error) {
	var before, after uint64
	var err error
	var changed []*account.Account

	for _, v := range s.accounts.Values() {
		acc := v.(*account.Account)
		orig := s.originals[acc.Key]
		if before, err = safemath.CheckedAdd(before, orig.Lamports); err != nil {
			return nil, err
		}
		if after, err = safemath.CheckedAdd(after, acc.Lamports); err != nil {
			return nil, err
		}
		if !sameState(orig, acc) {
			changed = append(changed, acc)
		}
	}
	if before != after {
		return nil, errors.Wrapf(ErrLamportsNotBalanced, "before %d, after %d", before, after)
	}
	return changed, nil
}

// Context is what a handler sees of the host: its own id, the ordered account descriptors and
// instruction data.
type Context struct {
	ProgramID solana.PublicKey
	Accounts  []*account.Account
	Data      []byte
	depth     int
	tx        *txState
}

// NewContext builds a context that is not attached to an executor. Invoke is unavailable on it.
func NewContext(programID solana.PublicKey, accounts ...*account.Account) *Context {
	return &Context{ProgramID: programID, Accounts: accounts}
}

// Account returns the i-th account or ErrNotEnoughAccounts.
func (c *Context) Account(i int) (*account.Account, error) {
	if i < 0 || i >= len(c.Accounts) {
		return nil, errors.Wrapf(ErrNotEnoughAccounts, "want index %d of %d", i, len(c.Accounts))
	}
	return c.Accounts[i], nil
}

// Require checks that at least n accounts were passed.
func (c *Context) Require(n int) error {
	if len(c.Accounts) < n {
		return errors.Wrapf(ErrNotEnoughAccounts, "want %d, got %d", n, len(c.Accounts))
	}
	return nil
}

func (c *Context) Now() time.Time {
	if c.tx == nil {
		return time.Now()
	}
	return c.tx.exec.now()
}

// ReturnData is the data last set by this transaction, e.g. by a callee after Invoke.
func (c *Context) ReturnData() []byte {
	if c.tx == nil {
		return nil
	}
	return c.tx.receipt.ReturnData
}

func (c *Context) SetReturnData(b []byte) {
	if c.tx == nil {
		return
	}
	c.tx.receipt.ReturnData = append([]byte(nil), b...)
}

// Invoke calls program with the given accounts. For every entry of signerSeeds the address derived
// from it and the caller's id is granted signer privilege in the callee; a callee account may only
// be a signer if it already signed for the caller or is such a derived address.
func (c *Context) Invoke(program *account.Account, metas []AccountMeta, data []byte, signerSeeds ...[][]byte) error {
	if c.tx == nil {
		return errors.Wrap(ErrProgramNotFound, "context is detached from executor")
	}
	if c.depth+1 > MaxInvokeDepth {
		return ErrCallDepth
	}
	if !program.IsExecutable {
		return errors.Wrapf(ErrProgramNotExecutable, "%v", program.Key)
	}
	h, found := c.tx.program(program.Key)
	if !found {
		return errors.Wrapf(ErrProgramNotFound, "%v", program.Key)
	}

	pdaSigners := make(map[solana.PublicKey]bool)
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, c.ProgramID)
		if err != nil {
			return errors.Wrapf(ErrPrivilegeEscalation, "invalid signer seeds: %v", err)
		}
		pdaSigners[addr] = true
	}

	passed := make(map[solana.PublicKey]*account.Account)
	for _, acc := range c.Accounts {
		passed[acc.Key] = acc
	}

	accounts := make([]*account.Account, len(metas))
	for i, meta := range metas {
		acc, found := passed[meta.Key]
		if !found {
			return errors.Wrapf(ErrMissingAccount, "%v", meta.Key)
		}
		if meta.IsSigner && !acc.IsSigner && !pdaSigners[meta.Key] {
			return errors.Wrapf(ErrPrivilegeEscalation, "%v", meta.Key)
		}
		accounts[i] = acc
	}

	saved := make(map[*account.Account]bool, len(c.Accounts))
	for _, acc := range c.Accounts {
		saved[acc] = acc.IsSigner
	}
	for _, acc := range accounts {
		acc.IsSigner = false
	}
	var signers []solana.PublicKey
	for i, meta := range metas {
		if meta.IsSigner {
			accounts[i].IsSigner = true
			signers = append(signers, meta.Key)
		}
	}

	c.tx.receipt.Invocations = append(c.tx.receipt.Invocations, Invocation{
		Caller:  c.ProgramID,
		Program: program.Key,
		Signers: signers,
		Data:    append([]byte(nil), data...),
		Depth:   c.depth + 1,
	})

	callee := &Context{ProgramID: program.Key, Accounts: accounts, Data: data, depth: c.depth + 1, tx: c.tx}
	err := run(h, callee)
	for acc, signer := range saved {
		acc.IsSigner = signer
	}
	return err
}

func (r *Receipt) String() string {
	return fmt.Sprintf("Receipt{slot: %d, return: %x, invocations: %d}", r.Slot, r.ReturnData, len(r.Invocations))
}
