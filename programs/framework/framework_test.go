package framework

import (
	"testing"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type marker struct {
	Owner solana.PublicKey
	Bump  uint8
}

func (m *marker) AccountName() string {
	return "Marker"
}

func payer() *account.Account {
	acc := account.NewWallet(solana.NewWallet().PublicKey(), 1000000000)
	acc.IsSigner = true
	return acc
}

func TestCreatePDA(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	p := payer()
	seeds := [][]byte{[]byte("marker"), p.Key.Bytes()}
	addr, bump, err := guard.FindPDA(seeds, programID)
	require.NoError(t, err)
	target := account.NewWallet(addr, 0)

	build := func(b uint8) account.Record {
		return &marker{Owner: p.Key, Bump: b}
	}
	require.NoError(t, CreatePDA(p, target, programID, seeds, build))

	rec := &marker{}
	require.NoError(t, account.Load(target, programID, rec))
	assert.Equal(t, bump, rec.Bump)
	assert.Equal(t, p.Key, rec.Owner)

	err = CreatePDA(p, target, programID, seeds, build)
	assert.True(t, common.Is(err, common.AlreadyInitialized))
}

func TestCreatePDA_WrongAddress(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	p := payer()
	target := account.NewWallet(solana.NewWallet().PublicKey(), 0)

	err := CreatePDA(p, target, programID, [][]byte{[]byte("marker")}, func(b uint8) account.Record {
		return &marker{Bump: b}
	})
	assert.True(t, common.Is(err, common.InvalidPDA))
}

func TestCreateAt_TargetMustSign(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	p := payer()
	target := account.NewWallet(solana.NewWallet().PublicKey(), 0)

	err := CreateAt(p, target, programID, &marker{})
	assert.True(t, common.Is(err, common.MissingSignature))

	target.IsSigner = true
	require.NoError(t, CreateAt(p, target, programID, &marker{Owner: p.Key}))
	assert.Equal(t, programID, target.Owner)
}

func TestDecodeU64(t *testing.T) {
	assert.Equal(t, uint64(42), DecodeU64([]byte{42, 0, 0, 0, 0, 0, 0, 0}))
	assert.Equal(t, uint64(0), DecodeU64([]byte{1, 2}))
	assert.Equal(t, uint64(0), DecodeU64(nil))
}
