package signer

import (
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/pkg/errors"
)

const Name = "missing-signer-check"

const vaultBalance uint64 = 1000000

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "withdraw checks the authority key but not its signature",
		Cases: []harness.Case{
			{Scenario: Name, Name: "withdraw-as-unsigned-authority", Expect: common.MissingSignature, Prepare: p.unsignedWithdraw},
		},
	}
}

// unsignedWithdraw names the victim as authority without its signature and drains the vault.
func (p *Program) unsignedWithdraw(env *harness.Env) (harness.Attack, error) {
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
	setup, err := p.InitializeVault(victim, vaultBalance)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}
	vault, err := p.VaultAddress(victim)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Withdraw(v, vault, victim, attacker, vaultBalance, false)
		if err != nil {
			return err
		}
		before := env.Account(attacker).Lamports
		if _, err := env.Send(ix); err != nil {
			return err
		}
		if env.Account(attacker).Lamports-before != vaultBalance {
			return errors.Wrap(harness.ErrNotExploited, "vault was not drained")
		}
		return nil
	}, nil
}
