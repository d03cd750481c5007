package state

import (
	"testing"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	payer := account.NewWallet(generate(), 10000000)
	payer.IsSigner = true
	target := account.NewWallet(generate(), 0)
	owner := generate()

	require.NoError(t, CreateAccount(payer, target, 0, owner))
	assert.Equal(t, uint64(890880), target.Lamports)
	assert.Equal(t, uint64(10000000-890880), payer.Lamports)
	assert.Equal(t, owner, target.Owner)

	err := CreateAccount(payer, target, 0, owner)
	assert.True(t, common.Is(err, common.AlreadyInitialized))
}

func TestCreateAccount_TopsUpPrefunded(t *testing.T) {
	payer := account.NewWallet(generate(), 10000000)
	payer.IsSigner = true
	target := account.NewWallet(generate(), 890000)

	require.NoError(t, CreateAccount(payer, target, 0, generate()))
	assert.Equal(t, uint64(890880), target.Lamports)
	assert.Equal(t, uint64(10000000-880), payer.Lamports)
}

func TestCreateAccount_PayerMustSign(t *testing.T) {
	payer := account.NewWallet(generate(), 10000000)
	err := CreateAccount(payer, account.NewWallet(generate(), 0), 8, generate())
	assert.True(t, common.Is(err, common.MissingSignature))

	payer.IsSigner = true
	payer.Lamports = 1
	err = CreateAccount(payer, account.NewWallet(generate(), 0), 8, generate())
	assert.True(t, common.Is(err, common.InsufficientFunds))
}

func TestCloseAccount(t *testing.T) {
	acc := account.NewAccount(generate(), generate(), 500, []byte{1, 2, 3})
	to := account.NewWallet(generate(), 1)

	require.NoError(t, CloseAccount(acc, to))
	assert.Equal(t, uint64(0), acc.Lamports)
	assert.Equal(t, uint64(501), to.Lamports)
	assert.True(t, acc.IsVacant())
	assert.Equal(t, solana.SystemProgramID, acc.Owner)
}

// A refund in the same transaction keeps a closed account alive, but only as a vacant wallet.
func TestCloseAccount_RefundRevivesOnlyVacantAccount(t *testing.T) {
	e := newExecutor(t)
	program := generate()
	key := generate()
	require.NoError(t, e.DB().Put(account.NewAccount(key, program, 100, []byte{9, 9, 9, 9, 9, 9, 9, 9, 1})))
	attacker := fund(t, e, 1000)

	closeIx := Instruction{
		ProgramID: program,
		Accounts:  []AccountMeta{Writable(key, false), Writable(attacker, false)},
		Handler: func(ctx *Context) error {
			return CloseAccount(ctx.Accounts[0], ctx.Accounts[1])
		},
	}
	_, err := e.Execute(NewTransaction(closeIx, TransferIx(attacker, key, 100)))
	require.NoError(t, err)

	acc, found := e.DB().Get(key)
	require.True(t, found)
	assert.True(t, acc.IsVacant())
	assert.Equal(t, uint64(100), acc.Lamports)
}
