package account

import (
	"testing"

	"github.com/gagarinchain/accountguard/common"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledger struct {
	Holder  solana.PublicKey
	Balance uint64
	Bump    uint8
}

func (ledger) AccountName() string { return "Ledger" }

type receipt struct {
	Holder  solana.PublicKey
	Balance uint64
	Bump    uint8
}

func (receipt) AccountName() string { return "Receipt" }

func program() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestDiscriminator_Stable(t *testing.T) {
	assert.Equal(t, Discriminator("Vault"), Discriminator("Vault"))
	assert.NotEqual(t, Discriminator("Vault"), Discriminator("Pool"))
	assert.Equal(t, Discriminator("Ledger"), DiscriminatorOf(&ledger{}))
}

func TestEncode_Layout(t *testing.T) {
	holder := program()
	b, err := Encode(&ledger{Holder: holder, Balance: 258, Bump: 7})
	require.NoError(t, err)

	d := Discriminator("Ledger")
	assert.Equal(t, d[:], b[:8])
	assert.Equal(t, holder.Bytes(), b[8:40])
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0}, b[40:48])
	assert.Equal(t, byte(7), b[48])

	space, err := Space(&ledger{})
	require.NoError(t, err)
	assert.Equal(t, uint64(49), space)
}

func TestLoad_RoundTrip(t *testing.T) {
	id := program()
	acc := NewAccount(program(), solana.SystemProgramID, 10, nil)
	in := &ledger{Holder: program(), Balance: 99, Bump: 254}
	require.NoError(t, Init(acc, id, in))
	assert.Equal(t, id, acc.Owner)

	out := &ledger{}
	require.NoError(t, Load(acc, id, out))
	assert.Equal(t, in, out)
}

func TestLoad_IdenticalLayoutDifferentType(t *testing.T) {
	id := program()
	acc := NewAccount(program(), id, 10, nil)
	require.NoError(t, Init(acc, id, &receipt{Holder: program(), Balance: 1_000_000}))

	err := Load(acc, id, &ledger{})
	assert.Equal(t, common.ErrTypeMismatch, errors.Cause(err))
}

func TestLoad_WrongOwner(t *testing.T) {
	id := program()
	acc := NewAccount(program(), id, 10, nil)
	require.NoError(t, Init(acc, id, &ledger{Balance: 1}))

	err := Load(acc, program(), &ledger{})
	assert.Equal(t, common.ErrInvalidOwner, errors.Cause(err))
}

func TestLoad_Uninitialized(t *testing.T) {
	id := program()
	empty := NewAccount(program(), id, 10, make([]byte, 49))
	err := Load(empty, id, &ledger{})
	assert.Equal(t, common.ErrAccountNotInitialized, errors.Cause(err))

	short := NewAccount(program(), id, 10, []byte{1, 2, 3})
	err = Load(short, id, &ledger{})
	assert.Equal(t, common.ErrAccountNotInitialized, errors.Cause(err))
}

func TestStore_TooSmall(t *testing.T) {
	acc := NewAccount(program(), program(), 1, make([]byte, 10))
	before := acc.Copy()

	err := Store(acc, &ledger{Balance: 5})
	assert.Equal(t, ErrAccountTooSmall, errors.Cause(err))
	assert.Equal(t, before, acc)
}

func TestCopy_Deep(t *testing.T) {
	acc := NewAccount(program(), program(), 1, []byte{1, 2, 3})
	cp := acc.Copy()
	cp.Data[0] = 9
	cp.Lamports = 2

	assert.Equal(t, byte(1), acc.Data[0])
	assert.Equal(t, uint64(1), acc.Lamports)
}

func TestVacant(t *testing.T) {
	assert.True(t, NewWallet(program(), 5).IsVacant())
	assert.False(t, NewAccount(program(), program(), 0, nil).IsVacant())
	assert.False(t, NewAccount(program(), solana.SystemProgramID, 0, []byte{0, 1}).IsVacant())
	assert.True(t, NewAccount(program(), solana.SystemProgramID, 0, []byte{0, 0}).IsVacant())
}

func TestRentExemptMinimum(t *testing.T) {
	r, err := RentExemptMinimum(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(890880), r)

	r, err = RentExemptMinimum(TokenAccountSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(2039280), r)
}

func TestTokenAccount(t *testing.T) {
	owner := program()
	acc, err := NewTokenAccount(program(), program(), owner, 500)
	require.NoError(t, err)
	assert.Len(t, acc.Data, TokenAccountSize)

	tok, err := LoadTokenAccount(acc)
	require.NoError(t, err)
	assert.Equal(t, owner, tok.Owner)
	assert.Equal(t, uint64(500), tok.Amount)

	acc.Owner = program()
	_, err = LoadTokenAccount(acc)
	assert.Equal(t, common.ErrInvalidOwner, errors.Cause(err))
}
