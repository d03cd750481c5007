package cosplay

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const Name = "type-cosplay"

const credited uint64 = 500

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "fields are read at fixed offsets of storage whose type is never checked",
		Cases: []harness.Case{
			{Scenario: Name, Name: "user-account-as-admin-config", Expect: common.TypeMismatch, Prepare: p.userAsAdmin},
			{Scenario: Name, Name: "user-account-as-reward-vault", Expect: common.TypeMismatch, Prepare: p.userAsRewardVault},
			{Scenario: Name, Name: "forged-kind-byte", Expect: common.TypeMismatch, Prepare: p.forgedKind},
		},
	}
}

// userAccount deploys the program and creates a user account for a new wallet credited with amount.
func (p *Program) userAccount(env *harness.Env, amount uint64) (owner, user solana.PublicKey, err error) {
	if err = env.Deploy(p.ID, p.Process); err != nil {
		return
	}
	if owner, err = env.NewWallet(harness.DefaultFunding); err != nil {
		return
	}
	create, err := p.InitializeUserAccount(owner)
	if err != nil {
		return
	}
	credit, err := p.Deposit(owner, amount)
	if err != nil {
		return
	}
	if _, err = env.Send(create, credit); err != nil {
		return
	}
	user, err = p.UserAddress(owner)
	return
}

// userAsAdmin credits the attacker's user account with 1, so the byte after its owner key reads
// as a set admin flag.
func (p *Program) userAsAdmin(env *harness.Env) (harness.Attack, error) {
	attacker, user, err := p.userAccount(env, 1)
	if err != nil {
		return nil, err
	}
	admin, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	setup, err := p.InitializeAdminConfig(admin)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.AdminAction(v, user, attacker)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) != 1 {
			return errors.Wrap(harness.ErrNotExploited, "admin action not performed")
		}
		return nil
	}, nil
}

func (p *Program) userAsRewardVault(env *harness.Env) (harness.Attack, error) {
	attacker, user, err := p.userAccount(env, credited)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.ClaimRewards(v, user, attacker)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if paid := framework.DecodeU64(r.ReturnData); paid != credited {
			return errors.Wrapf(harness.ErrNotExploited, "paid %d", paid)
		}
		return nil
	}, nil
}

func (p *Program) forgedKind(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	data := make([]byte, account.DiscriminatorSize+solana.PublicKeyLength+1)
	data[0] = KindAdmin
	forged, err := env.ForgeRaw(p.ID, data)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.ProcessAdmin(v, forged)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) != uint64(KindAdmin) {
			return errors.Wrap(harness.ErrNotExploited, "not processed as admin")
		}
		return nil
	}, nil
}
