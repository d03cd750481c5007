package cosplay

import (
	"testing"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameLayoutDistinctTags(t *testing.T) {
	u, err := account.Encode(&UserAccount{Balance: 7})
	require.NoError(t, err)
	r, err := account.Encode(&RewardVault{Balance: 7})
	require.NoError(t, err)

	assert.Equal(t, u[account.DiscriminatorSize:], r[account.DiscriminatorSize:])
	assert.NotEqual(t, u[:account.DiscriminatorSize], r[:account.DiscriminatorSize])
}

func TestClaimRewardsSecure(t *testing.T) {
	env, err := harness.NewEnv()
	require.NoError(t, err)
	defer env.Close()
	p := New(ProgramID)
	require.NoError(t, env.Deploy(p.ID, p.Process))
	authority, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)

	ix, err := p.InitializeRewardVault(authority, 300)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)
	vault, err := p.RewardVaultAddress(authority)
	require.NoError(t, err)

	ix, err = p.ClaimRewards(harness.Secure, vault, authority)
	require.NoError(t, err)
	r, err := env.Send(ix)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), framework.DecodeU64(r.ReturnData))

	rec := &RewardVault{}
	require.NoError(t, env.Load(vault, p.ID, rec))
	assert.Equal(t, uint64(0), rec.Balance)

	other, err := env.NewWallet(1)
	require.NoError(t, err)
	ix, err = p.ClaimRewards(harness.Secure, vault, other)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.Unauthorized))
}

func TestAdminAction(t *testing.T) {
	env, err := harness.NewEnv()
	require.NoError(t, err)
	defer env.Close()
	p := New(ProgramID)
	require.NoError(t, env.Deploy(p.ID, p.Process))
	admin, err := env.NewWallet(harness.DefaultFunding)
	require.NoError(t, err)
	ix, err := p.InitializeAdminConfig(admin)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)
	config, err := p.AdminConfigAddress()
	require.NoError(t, err)

	ix, err = p.AdminAction(harness.Secure, config, admin)
	require.NoError(t, err)
	_, err = env.Send(ix)
	require.NoError(t, err)

	// the genuine config stores the bump where the raw reader expects the flag
	ix, err = p.AdminAction(harness.Vulnerable, config, admin)
	require.NoError(t, err)
	_, err = env.Send(ix)
	rec := &AdminConfig{}
	require.NoError(t, env.Load(config, p.ID, rec))
	if rec.Bump == 1 {
		assert.NoError(t, err)
	} else {
		assert.True(t, common.Is(err, common.Unauthorized))
	}

	stranger, err := env.NewWallet(1)
	require.NoError(t, err)
	ix, err = p.AdminAction(harness.Secure, config, stranger)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.Unauthorized))
}

func TestProcess(t *testing.T) {
	p := New(ProgramID)
	env, err := harness.NewEnv()
	require.NoError(t, err)
	defer env.Close()
	_, user, err := p.userAccount(env, 0)
	require.NoError(t, err)

	ix, err := p.ProcessUser(harness.Secure, user)
	require.NoError(t, err)
	r, err := env.Send(ix)
	require.NoError(t, err)
	assert.Equal(t, uint64(KindUser), framework.DecodeU64(r.ReturnData))

	ix, err = p.ProcessAdmin(harness.Secure, user)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.TypeMismatch))

	// a genuine user account starts with its tag, which the raw dispatcher does not know
	ix, err = p.ProcessUser(harness.Vulnerable, user)
	require.NoError(t, err)
	_, err = env.Send(ix)
	assert.True(t, common.Is(err, common.TypeMismatch))
}

func TestScenario(t *testing.T) {
	s := Scenario(New(ProgramID))
	for _, c := range s.Cases {
		o := harness.RunCase(c)
		assert.True(t, o.Pass, "%v: %v", c.Name, o.Reason)
	}
}
