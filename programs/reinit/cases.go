package reinit

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const Name = "reinitialization"

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "initializers overwrite records that already exist",
		Cases: []harness.Case{
			{Scenario: Name, Name: "vault-reinitialized-by-stranger", Expect: common.AlreadyInitialized, Prepare: p.takeVault},
			{Scenario: Name, Name: "config-takeover", Expect: common.AlreadyInitialized, Prepare: p.takeConfig},
			{Scenario: Name, Name: "raw-flag-accepts-forged-vault", Expect: common.TypeMismatch, Prepare: p.forgeFlag},
		},
	}
}

// NewFlaggedVault allocates and initializes a FlaggedVault owned by authority.
func (p *Program) NewFlaggedVault(env *harness.Env, authority solana.PublicKey) (solana.PublicKey, error) {
	vault := env.NewKey()
	alloc, err := p.AllocateVault(vault, authority)
	if err != nil {
		return solana.PublicKey{}, err
	}
	setup, err := p.Initialize(harness.Secure, vault, authority)
	if err != nil {
		return solana.PublicKey{}, err
	}
	_, err = env.Send(alloc, setup)
	return vault, err
}

func (p *Program) takeVault(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	victim, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	attacker, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	vault, err := p.NewFlaggedVault(env, victim)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Initialize(v, vault, attacker)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		rec := &FlaggedVault{}
		if err := env.Load(vault, p.ID, rec); err != nil {
			return err
		}
		if !rec.Authority.Equals(attacker) {
			return errors.Wrap(harness.ErrNotExploited, "authority kept")
		}
		return nil
	}, nil
}

func (p *Program) takeConfig(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	admin, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	attacker, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	setup, err := p.InitializeConfig(harness.Secure, admin, 100)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.InitializeConfig(v, attacker, 0)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		rec := &Config{}
		if err := env.Load(config, p.ID, rec); err != nil {
			return err
		}
		if !rec.Admin.Equals(attacker) || rec.FeeBps != 0 {
			return errors.Wrap(harness.ErrNotExploited, "config kept")
		}
		return nil
	}, nil
}

// forgeFlag passes storage whose first byte is 1 and which is no vault at all.
func (p *Program) forgeFlag(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	data := make([]byte, account.DiscriminatorSize+32)
	data[0] = 1
	forged, err := env.ForgeRaw(p.ID, data)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.ProcessVault(v, forged)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) != 1 {
			return errors.Wrap(harness.ErrNotExploited, "forged vault was not taken as initialized")
		}
		return nil
	}, nil
}
