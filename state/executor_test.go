package state

import (
	"testing"
	"time"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/storage"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) *Executor {
	s, e := storage.NewStorage("", nil)
	require.NoError(t, e)
	t.Cleanup(s.Close)
	return NewExecutor(NewStateDB(s))
}

func generate() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func fund(t *testing.T, e *Executor, lamports uint64) solana.PublicKey {
	key := generate()
	require.NoError(t, e.DB().Put(account.NewWallet(key, lamports)))
	return key
}

func TestExecute_CommitsChanges(t *testing.T) {
	e := newExecutor(t)
	from := fund(t, e, 100)
	to := generate()

	r, err := e.Execute(NewTransaction(TransferIx(from, to, 40)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Slot)

	acc, found := e.DB().Get(from)
	require.True(t, found)
	assert.Equal(t, uint64(60), acc.Lamports)
	acc, found = e.DB().Get(to)
	require.True(t, found)
	assert.Equal(t, uint64(40), acc.Lamports)
}

func TestExecute_NothingCommittedOnFailure(t *testing.T) {
	e := newExecutor(t)
	from := fund(t, e, 100)
	to := generate()

	_, err := e.Execute(NewTransaction(
		TransferIx(from, to, 40),
		TransferIx(from, to, 100),
	))
	assert.True(t, common.Is(err, common.InsufficientFunds))

	acc, _ := e.DB().Get(from)
	assert.Equal(t, uint64(100), acc.Lamports)
	_, found := e.DB().Get(to)
	assert.False(t, found)
	assert.Equal(t, uint64(0), e.DB().Slot())
}

func TestExecute_TransferRequiresSigner(t *testing.T) {
	e := newExecutor(t)
	from := fund(t, e, 100)
	ix := TransferIx(from, generate(), 1)
	ix.Accounts[0].IsSigner = false

	_, err := e.Execute(NewTransaction(ix))
	assert.True(t, common.Is(err, common.MissingSignature))
}

func TestExecute_LamportsMustBalance(t *testing.T) {
	e := newExecutor(t)
	key := fund(t, e, 10)
	mint := func(ctx *Context) error {
		ctx.Accounts[0].Lamports += 5
		return nil
	}

	_, err := e.Execute(NewTransaction(Instruction{Accounts: []AccountMeta{Writable(key, false)}, Handler: mint}))
	assert.Equal(t, ErrLamportsNotBalanced, errors.Cause(err))
}

func TestExecute_ReadonlyModified(t *testing.T) {
	e := newExecutor(t)
	a := fund(t, e, 10)
	b := fund(t, e, 10)
	shift := func(ctx *Context) error {
		ctx.Accounts[0].Lamports--
		ctx.Accounts[1].Lamports++
		return nil
	}

	_, err := e.Execute(NewTransaction(Instruction{
		Accounts: []AccountMeta{Writable(a, false), Readonly(b, false)},
		Handler:  shift,
	}))
	assert.Equal(t, ErrReadonlyModified, errors.Cause(err))
}

func TestExecute_PanicIsRecovered(t *testing.T) {
	e := newExecutor(t)
	boom := func(ctx *Context) error {
		_ = ctx.Accounts[3]
		return nil
	}

	_, err := e.Execute(NewTransaction(Instruction{Handler: boom}))
	assert.Equal(t, ErrHandlerPanic, errors.Cause(err))
}

func TestExecute_UnknownProgram(t *testing.T) {
	e := newExecutor(t)
	_, err := e.Execute(NewTransaction(Instruction{ProgramID: generate()}))
	assert.Equal(t, ErrProgramNotFound, errors.Cause(err))

	_, err = e.Execute(NewTransaction())
	assert.Equal(t, ErrEmptyTransaction, err)
}

func TestExecute_ZeroLamportAccountsArePurged(t *testing.T) {
	e := newExecutor(t)
	from := fund(t, e, 10)
	to := generate()

	_, err := e.Execute(NewTransaction(TransferIx(from, to, 10)))
	require.NoError(t, err)

	_, found := e.DB().Get(from)
	assert.False(t, found)
	assert.Len(t, e.DB().Keys(), 1)
}

func TestContext_Account(t *testing.T) {
	ctx := NewContext(generate(), account.NewWallet(generate(), 1))
	_, err := ctx.Account(0)
	assert.NoError(t, err)
	_, err = ctx.Account(1)
	assert.Equal(t, ErrNotEnoughAccounts, errors.Cause(err))
	assert.Equal(t, ErrNotEnoughAccounts, errors.Cause(ctx.Require(2)))
}

func TestContext_ClockAndReturnData(t *testing.T) {
	e := newExecutor(t)
	at := time.Unix(1700000000, 0)
	e.SetClock(func() time.Time { return at })

	h := func(ctx *Context) error {
		ctx.SetReturnData([]byte{byte(ctx.Now().Unix() % 256)})
		return nil
	}
	r, err := e.Execute(NewTransaction(Instruction{Handler: h}))
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(at.Unix() % 256)}, r.ReturnData)
}

func TestPersistence_Reload(t *testing.T) {
	s, e := storage.NewStorage("", nil)
	require.NoError(t, e)
	defer s.Close()

	db := NewStateDB(s)
	key := generate()
	owner := generate()
	acc := account.NewAccount(key, owner, 7, []byte{1, 2, 3})
	acc.IsExecutable = true
	require.NoError(t, db.Put(acc))
	assert.Equal(t, ErrAccountExists, errors.Cause(db.Put(acc)))
	require.NoError(t, db.Commit(nil))

	reloaded := NewStateDB(s)
	got, found := reloaded.Get(key)
	require.True(t, found)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)
	assert.True(t, got.IsExecutable)
	assert.Equal(t, uint64(1), reloaded.Slot())
}
