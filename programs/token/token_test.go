package token

import (
	"math"
	"testing"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUp(t *testing.T) *harness.Env {
	env, err := harness.NewEnv()
	require.NoError(t, err)
	t.Cleanup(env.Close)
	require.NoError(t, env.Deploy(solana.TokenProgramID, Process))
	return env
}

func put(t *testing.T, env *harness.Env, mint, owner solana.PublicKey, amount uint64) solana.PublicKey {
	acc, err := NewAccount(mint, owner, amount)
	require.NoError(t, err)
	require.NoError(t, env.Put(acc))
	return acc.Key
}

func balance(t *testing.T, env *harness.Env, key solana.PublicKey) uint64 {
	b, err := Balance(env.Account(key))
	require.NoError(t, err)
	return b
}

func TestTransfer(t *testing.T) {
	env := setUp(t)
	mint, owner := env.NewKey(), env.NewKey()
	src := put(t, env, mint, owner, 100)
	dst := put(t, env, mint, env.NewKey(), 5)

	ix, err := Transfer(src, dst, owner, 40)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)

	assert.Equal(t, uint64(60), balance(t, env, src))
	assert.Equal(t, uint64(45), balance(t, env, dst))
}

func TestTransfer_Insufficient(t *testing.T) {
	env := setUp(t)
	mint, owner := env.NewKey(), env.NewKey()
	src := put(t, env, mint, owner, 10)
	dst := put(t, env, mint, env.NewKey(), 0)

	ix, err := Transfer(src, dst, owner, 11)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.InsufficientFunds))
	assert.Equal(t, uint64(10), balance(t, env, src))
}

func TestTransfer_WrongOwner(t *testing.T) {
	env := setUp(t)
	mint := env.NewKey()
	src := put(t, env, mint, env.NewKey(), 10)
	dst := put(t, env, mint, env.NewKey(), 0)

	ix, err := Transfer(src, dst, env.NewKey(), 1)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.TokenAccountOwnerMismatch))
}

func TestTransfer_OwnerMustSign(t *testing.T) {
	env := setUp(t)
	mint, owner := env.NewKey(), env.NewKey()
	src := put(t, env, mint, owner, 10)
	dst := put(t, env, mint, env.NewKey(), 0)

	ix, err := Transfer(src, dst, owner, 1)
	require.NoError(t, err)
	ix.Accounts[2].IsSigner = false
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.MissingSignature))
}

func TestTransfer_MintMismatch(t *testing.T) {
	env := setUp(t)
	owner := env.NewKey()
	src := put(t, env, env.NewKey(), owner, 10)
	dst := put(t, env, env.NewKey(), env.NewKey(), 0)

	ix, err := Transfer(src, dst, owner, 1)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.ErrorIs(t, err, ErrMintMismatch)
}

func TestTransfer_Frozen(t *testing.T) {
	env := setUp(t)
	mint, owner := env.NewKey(), env.NewKey()
	src := put(t, env, mint, owner, 10)

	acc, err := NewAccount(mint, env.NewKey(), 0)
	require.NoError(t, err)
	frozen, err := account.LoadTokenAccount(acc)
	require.NoError(t, err)
	frozen.State = account.TokenStateFrozen
	require.NoError(t, account.StoreTokenAccount(acc, frozen))
	require.NoError(t, env.Put(acc))
	dst := acc.Key

	ix, err := Transfer(src, dst, owner, 1)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.Unauthorized))
	assert.Equal(t, uint64(10), balance(t, env, src))
	assert.Equal(t, uint64(0), balance(t, env, dst))
}

func TestTransfer_DestinationOverflow(t *testing.T) {
	env := setUp(t)
	mint, owner := env.NewKey(), env.NewKey()
	src := put(t, env, mint, owner, 10)
	dst := put(t, env, mint, env.NewKey(), math.MaxUint64)

	ix, err := Transfer(src, dst, owner, 1)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.Overflow))
}

func TestProcess_UnknownInstruction(t *testing.T) {
	env := setUp(t)
	ix := state.Instruction{ProgramID: solana.TokenProgramID, Data: []byte{7, 0, 0, 0, 0, 0, 0, 0, 0}}
	_, err := env.Send(ix)
	assert.ErrorIs(t, err, state.ErrInvalidInstruction)
}
