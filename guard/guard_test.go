package guard

import (
	"testing"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vault struct {
	Authority solana.PublicKey
	Balance   uint64
}

func (vault) AccountName() string { return "Vault" }

type pool struct {
	Authority solana.PublicKey
	Balance   uint64
}

func (pool) AccountName() string { return "Pool" }

func generate() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func cause(err error) error {
	return errors.Cause(err)
}

func TestRequireSigner(t *testing.T) {
	acc := account.NewWallet(generate(), 1)
	assert.Equal(t, common.ErrMissingSignature, cause(RequireSigner(acc)))

	acc.IsSigner = true
	assert.NoError(t, RequireSigner(acc))
}

func TestRequireAuthority_FieldEqualityIsNotEnough(t *testing.T) {
	authority := account.NewWallet(generate(), 1)

	err := RequireAuthority(authority, authority.Key)
	assert.Equal(t, common.ErrMissingSignature, cause(err))

	authority.IsSigner = true
	assert.NoError(t, RequireAuthority(authority, authority.Key))
}

func TestRequireAuthority_WrongSigner(t *testing.T) {
	attacker := account.NewWallet(generate(), 1)
	attacker.IsSigner = true

	err := RequireAuthority(attacker, generate())
	assert.Equal(t, common.ErrUnauthorized, cause(err))
}

func TestRequireOwner(t *testing.T) {
	id := generate()
	acc := account.NewAccount(generate(), id, 1, nil)
	assert.NoError(t, RequireOwner(acc, id))
	assert.Equal(t, common.ErrInvalidOwner, cause(RequireOwner(acc, generate())))
}

func TestRequireDiscriminator(t *testing.T) {
	id := generate()
	acc := account.NewAccount(generate(), id, 1, nil)
	require.NoError(t, account.Init(acc, id, &pool{Authority: generate(), Balance: 10}))

	assert.NoError(t, RequireDiscriminator(acc.Data, account.Discriminator("Pool")))
	assert.Equal(t, common.ErrTypeMismatch, cause(RequireDiscriminator(acc.Data, account.Discriminator("Vault"))))
	assert.Equal(t, common.ErrAccountNotInitialized, cause(RequireDiscriminator(make([]byte, 48), account.Discriminator("Vault"))))
	assert.Equal(t, common.ErrAccountNotInitialized, cause(RequireDiscriminator(nil, account.Discriminator("Vault"))))
}

func TestRequireProgram(t *testing.T) {
	pinned := generate()

	assert.NoError(t, RequireProgram(account.NewProgram(pinned), pinned))

	impostor := account.NewProgram(generate())
	assert.Equal(t, common.ErrInvalidProgram, cause(RequireProgram(impostor, pinned)))

	data := account.NewAccount(pinned, generate(), 1, []byte{1})
	assert.Equal(t, common.ErrInvalidProgram, cause(RequireProgram(data, pinned)))
}

func TestRequireTokenOwner(t *testing.T) {
	user := generate()
	tok := &account.TokenAccount{Owner: user}
	assert.NoError(t, RequireTokenOwner(tok, user))
	assert.Equal(t, common.ErrTokenAccountOwnerMismatch, cause(RequireTokenOwner(tok, generate())))
}

func TestRequireUninitialized(t *testing.T) {
	id := generate()

	assert.NoError(t, RequireUninitialized(account.NewWallet(generate(), 0), id))
	assert.NoError(t, RequireUninitialized(account.NewAccount(generate(), id, 1, make([]byte, 48)), id))

	initialized := account.NewAccount(generate(), id, 1, nil)
	require.NoError(t, account.Init(initialized, id, &vault{}))
	assert.Equal(t, common.ErrAlreadyInitialized, cause(RequireUninitialized(initialized, id)))

	foreign := account.NewAccount(generate(), generate(), 1, make([]byte, 48))
	assert.Equal(t, common.ErrInvalidOwner, cause(RequireUninitialized(foreign, id)))
}

func TestRequireNoTombstone(t *testing.T) {
	id := generate()
	assert.NoError(t, RequireNoTombstone(account.NewWallet(generate(), 0), id, &vault{}))

	tomb := account.NewAccount(generate(), id, 1, nil)
	require.NoError(t, account.Init(tomb, id, &vault{}))
	assert.Equal(t, common.ErrAlreadyInitialized, cause(RequireNoTombstone(tomb, id, &vault{})))
}

func TestRequireNoTombstone_FundedAddress(t *testing.T) {
	id := generate()
	assert.NoError(t, RequireNoTombstone(account.NewWallet(generate(), 1), id, &vault{}))

	other := account.NewAccount(generate(), id, 1, nil)
	require.NoError(t, account.Init(other, id, &pool{}))
	assert.NoError(t, RequireNoTombstone(other, id, &vault{}))

	foreign := account.NewAccount(generate(), generate(), 1, nil)
	require.NoError(t, account.Init(foreign, foreign.Owner, &vault{}))
	assert.NoError(t, RequireNoTombstone(foreign, id, &vault{}))
}

func TestRequireClosed(t *testing.T) {
	acc := account.NewWallet(generate(), 0)
	assert.NoError(t, RequireClosed(acc))

	acc.Lamports = 1
	assert.Equal(t, common.ErrIncompleteClose, cause(RequireClosed(acc)))

	acc.Lamports = 0
	acc.Data = []byte{0, 0, 3}
	assert.Equal(t, common.ErrIncompleteClose, cause(RequireClosed(acc)))

	acc.Data = make([]byte, 3)
	acc.Owner = generate()
	assert.Equal(t, common.ErrIncompleteClose, cause(RequireClosed(acc)))
}
