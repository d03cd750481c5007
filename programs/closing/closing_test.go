package closing

import (
	"testing"

	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUp(t *testing.T) (*harness.Env, *Program) {
	env, err := harness.NewEnv()
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env, New(ProgramID)
}

func TestCloseSecure(t *testing.T) {
	env, p := setUp(t)
	owner, user, err := p.userAccount(env)
	require.NoError(t, err)
	rent := env.Account(user).Lamports
	before := env.Account(owner).Lamports

	ix, err := p.Close(harness.Secure, owner, owner, owner)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)

	assert.Equal(t, before+rent, env.Account(owner).Lamports)
	closed := env.Account(user)
	assert.True(t, closed.IsVacant())
	assert.Equal(t, uint64(0), closed.Lamports)
	assert.NoError(t, guard.RequireClosed(closed))
}

// Without a refund in the same transaction the drained account is dropped at commit.
func TestCloseVulnerable_DroppedAtCommit(t *testing.T) {
	env, p := setUp(t)
	owner, user, err := p.userAccount(env)
	require.NoError(t, err)

	ix, err := p.Close(harness.Vulnerable, owner, owner, owner)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)

	_, found := env.DB.Get(user)
	assert.False(t, found)
}

// Within the transaction the drained account still reads as a valid record.
func TestCloseVulnerable_StaleWithinTransaction(t *testing.T) {
	env, p := setUp(t)
	owner, _, err := p.userAccount(env)
	require.NoError(t, err)

	closeIx, err := p.Close(harness.Vulnerable, owner, owner, owner)
	require.NoError(t, err)
	claim, err := p.ClaimRewards(owner)
	require.NoError(t, err)
	r, err := env.Send(closeIx, claim)
	require.NoError(t, err)
	assert.Equal(t, accrued, framework.DecodeU64(r.ReturnData))
}

func TestClose_WrongOwner(t *testing.T) {
	env, p := setUp(t)
	owner, _, err := p.userAccount(env)
	require.NoError(t, err)
	stranger, err := env.NewWallet(1)
	require.NoError(t, err)

	for _, v := range harness.Variants {
		ix, err := p.Close(v, owner, stranger, stranger)
		require.NoError(t, err)
		_, err = env.Send(ix)
		assert.True(t, common.Is(err, common.Unauthorized), v.String())
	}
}

func TestClaimRewards(t *testing.T) {
	env, p := setUp(t)
	owner, user, err := p.userAccount(env)
	require.NoError(t, err)

	ix, err := p.ClaimRewards(owner)
	require.NoError(t, err)
	r, err := env.Send(ix)
	require.NoError(t, err)
	assert.Equal(t, accrued, framework.DecodeU64(r.ReturnData))

	rec := &UserAccount{}
	require.NoError(t, env.Load(user, p.ID, rec))
	assert.Equal(t, uint64(0), rec.RewardsAccrued)
}

func TestReadConfig(t *testing.T) {
	env, p := setUp(t)
	require.NoError(t, env.Deploy(p.ID, p.Process))
	admin, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)
	ix, err := p.InitializeConfig(admin, 25)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)
	config, err := p.ConfigAddress()
	require.NoError(t, err)

	for _, v := range harness.Variants {
		ix, err := p.ReadConfig(v, config)
		require.NoError(t, err)
		r, err := env.Send(ix)
		require.NoError(t, err)
		assert.Equal(t, uint64(25), framework.DecodeU64(r.ReturnData), v.String())
	}

	forged, err := env.Forge(p.ID, &Config{Admin: admin, FeeBps: 0})
	require.NoError(t, err)
	ix, err = p.ReadConfig(harness.Vulnerable, forged)
	require.NoError(t, err)
	r, err := env.Send(ix)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), framework.DecodeU64(r.ReturnData))

	ix, err = p.ReadConfig(harness.Secure, forged)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.InvalidPDA))
}

func TestCloseProfileSecure_WritesTombstone(t *testing.T) {
	env, p := setUp(t)
	require.NoError(t, env.Deploy(p.ID, p.Process))
	owner, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)
	create, err := p.InitializeProfile(owner)
	require.NoError(t, err)
	_, err = env.Send(create)
	require.NoError(t, err)

	ix, err := p.CloseProfile(harness.Secure, owner, owner)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)

	tombstone, err := p.TombstoneAddress(owner)
	require.NoError(t, err)
	rec := &ProfileTombstone{}
	require.NoError(t, env.Load(tombstone, p.ID, rec))
	assert.Equal(t, owner, rec.OriginalOwner)
	assert.Equal(t, harness.Genesis.Unix(), rec.ClosedAt)

	_, err = env.Send(create)
	assert.True(t, common.Is(err, common.AlreadyInitialized))
}

func TestInitializeProfile_TombstoneAddressChecked(t *testing.T) {
	env, p := setUp(t)
	require.NoError(t, env.Deploy(p.ID, p.Process))
	owner, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)
	profile, err := p.ProfileAddress(owner)
	require.NoError(t, err)

	ix, err := state.NewInstruction(p.ID, "initialize_profile", nil,
		state.Writable(profile, false),
		state.Readonly(env.NewKey(), false),
		state.Writable(owner, true),
	)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.InvalidPDA))
}

// Lamports sent to the tombstone address by a stranger do not block the owner.
func TestInitializeProfile_FundedTombstoneAddress(t *testing.T) {
	env, p := setUp(t)
	require.NoError(t, env.Deploy(p.ID, p.Process))
	owner, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)
	stranger, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)
	tombstone, err := p.TombstoneAddress(owner)
	require.NoError(t, err)

	_, err = env.Send(state.TransferIx(stranger, tombstone, 1))
	require.NoError(t, err)

	create, err := p.InitializeProfile(owner)
	require.NoError(t, err)
	_, err = env.Send(create)
	require.NoError(t, err)

	profile, err := p.ProfileAddress(owner)
	require.NoError(t, err)
	rec := &Profile{}
	require.NoError(t, env.Load(profile, p.ID, rec))
	assert.Equal(t, owner, rec.Owner)

	// the tombstone written on close is still honoured
	closeIx, err := p.CloseProfile(harness.Secure, owner, owner)
	require.NoError(t, err)
	_, err = env.Send(closeIx)
	require.NoError(t, err)
	_, err = env.Send(create)
	assert.True(t, common.Is(err, common.AlreadyInitialized))
}

func TestScenario(t *testing.T) {
	s := Scenario(New(ProgramID))
	for _, c := range s.Cases {
		o := harness.RunCase(c)
		assert.True(t, o.Pass, "%v: %v", c.Name, o.Reason)
	}
}
