package validation

import (
	"math"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const Name = "account-validation"

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "handlers read pools, configs and token accounts without checking where they come from",
		Cases: []harness.Case{
			{Scenario: Name, Name: "claim-with-forged-pool", Expect: common.InvalidOwner, Prepare: p.forgedPool},
			{Scenario: Name, Name: "swap-with-stray-config", Expect: common.InvalidPDA, Prepare: p.strayConfig},
			{Scenario: Name, Name: "deposit-from-foreign-token-account", Expect: common.TokenAccountOwnerMismatch, Prepare: p.foreignTokenAccount},
		},
	}
}

// forgedPool passes a pool shaped account owned by another program with an inflated reward rate.
func (p *Program) forgedPool(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	attacker, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	setup, err := p.InitializePool(attacker, 10)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}
	fake, err := env.Forge(env.NewKey(), &Pool{Authority: attacker, RewardRate: math.MaxUint64})
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.ClaimRewards(v, fake, attacker)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) != math.MaxUint64 {
			return errors.Wrap(harness.ErrNotExploited, "forged reward rate was not used")
		}
		return nil
	}, nil
}

// strayConfig passes a genuine config record of the program that does not sit at the config address.
func (p *Program) strayConfig(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	admin, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	user, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	setup, err := p.InitializeConfig(admin, 300)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}
	stray, err := env.Forge(p.ID, &Config{Admin: user, FeeBps: 0, Bump: 255})
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Swap(v, stray, user, 1000000)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) != 0 {
			return errors.Wrap(harness.ErrNotExploited, "fee was charged")
		}
		return nil
	}, nil
}

// foreignTokenAccount deposits out of a token account that belongs to someone else.
func (p *Program) foreignTokenAccount(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	attacker, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	victim, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	setup, err := p.InitializePool(attacker, 10)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}
	pool, err := p.PoolAddress(attacker)
	if err != nil {
		return nil, err
	}
	victimTokens, err := newTokenAccount(env, victim, 500)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Deposit(v, pool, victimTokens, attacker, 500)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		rec := &Pool{}
		if err := env.Load(pool, p.ID, rec); err != nil {
			return err
		}
		if rec.TotalDeposited != 500 {
			return errors.Wrap(harness.ErrNotExploited, "deposit was not credited")
		}
		return nil
	}, nil
}

func newTokenAccount(env *harness.Env, owner solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	key := env.NewKey()
	acc, err := account.NewTokenAccount(key, env.NewKey(), owner, amount)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key, env.Put(acc)
}
