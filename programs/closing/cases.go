package closing

import (
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const Name = "closing-accounts"

const accrued uint64 = 100

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "closed accounts keep their data, or close for anyone, or can be created again",
		Cases: []harness.Case{
			{Scenario: Name, Name: "refund-revives-closed-account", Expect: common.AccountNotInitialized, Prepare: p.revive},
			{Scenario: Name, Name: "close-by-stranger", Expect: common.Unauthorized, Prepare: p.strangerClose},
			{Scenario: Name, Name: "profile-recreated-after-close", Expect: common.AlreadyInitialized, Prepare: p.recreateProfile},
		},
	}
}

// userAccount deploys the program and creates the user account of a new wallet with accrued
// rewards.
func (p *Program) userAccount(env *harness.Env) (owner, user solana.PublicKey, err error) {
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
	accrue, err := p.AccrueRewards(owner, accrued)
	if err != nil {
		return
	}
	if _, err = env.Send(create, accrue); err != nil {
		return
	}
	user, err = p.UserAddress(owner)
	return
}

// revive closes the account, refunds its rent and uses it again, all in one transaction.
func (p *Program) revive(env *harness.Env) (harness.Attack, error) {
	owner, user, err := p.userAccount(env)
	if err != nil {
		return nil, err
	}
	rent := env.Account(user).Lamports

	return func(v harness.Variant) error {
		closeIx, err := p.Close(v, owner, owner, owner)
		if err != nil {
			return err
		}
		claim, err := p.ClaimRewards(owner)
		if err != nil {
			return err
		}
		r, err := env.Send(closeIx, state.TransferIx(owner, user, rent), claim)
		if err != nil {
			return err
		}
		rec := &UserAccount{}
		if err := env.Load(user, p.ID, rec); err != nil {
			return errors.Wrapf(harness.ErrNotExploited, "account did not survive: %v", err)
		}
		log.Debugf("Revived %v, claimed %x", user, r.ReturnData)
		return nil
	}, nil
}

func (p *Program) strangerClose(env *harness.Env) (harness.Attack, error) {
	victim, user, err := p.userAccount(env)
	if err != nil {
		return nil, err
	}
	attacker, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	rent := env.Account(user).Lamports

	return func(v harness.Variant) error {
		ix, err := p.CloseChecked(v, victim, attacker, attacker)
		if err != nil {
			return err
		}
		before := env.Account(attacker).Lamports
		if _, err := env.Send(ix); err != nil {
			return err
		}
		if env.Account(attacker).Lamports-before != rent {
			return errors.Wrap(harness.ErrNotExploited, "rent was not taken")
		}
		return nil
	}, nil
}

// recreateProfile closes a profile and creates it again in the same transaction.
func (p *Program) recreateProfile(env *harness.Env) (harness.Attack, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return nil, err
	}
	owner, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	create, err := p.InitializeProfile(owner)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(create); err != nil {
		return nil, err
	}
	profile, err := p.ProfileAddress(owner)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		closeIx, err := p.CloseProfile(v, owner, owner)
		if err != nil {
			return err
		}
		if _, err := env.Send(closeIx, create); err != nil {
			return err
		}
		rec := &Profile{}
		if err := env.Load(profile, p.ID, rec); err != nil {
			return errors.Wrapf(harness.ErrNotExploited, "profile not recreated: %v", err)
		}
		return nil
	}, nil
}
