package overflow

import (
	"math"

	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const Name = "integer-overflow"

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "raw operators wrap silently where checked arithmetic fails",
		Cases: []harness.Case{
			{Scenario: Name, Name: "deposit-wraps-total", Expect: common.Overflow, Prepare: p.wrapDeposit},
			{Scenario: Name, Name: "withdraw-underflows-balance", Expect: common.InsufficientFunds, Prepare: p.underflowWithdraw},
			{Scenario: Name, Name: "price-wraps", Expect: common.Overflow, Prepare: p.wrapPrice},
			{Scenario: Name, Name: "withdrawal-record-truncates", Expect: common.CastOverflow, Prepare: p.truncateRecord},
			{Scenario: Name, Name: "fee-multiplication-wraps", Expect: common.Overflow, Prepare: p.wrapFee},
		},
	}
}

// setup deploys the program and runs ixs built for a funded wallet.
func (p *Program) setup(env *harness.Env, build ...func(wallet solana.PublicKey) (state.Instruction, error)) (solana.PublicKey, error) {
	if err := env.Deploy(p.ID, p.Process); err != nil {
		return solana.PublicKey{}, err
	}
	wallet, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return solana.PublicKey{}, err
	}
	for _, b := range build {
		ix, err := b(wallet)
		if err != nil {
			return solana.PublicKey{}, err
		}
		if _, err := env.Send(ix); err != nil {
			return solana.PublicKey{}, err
		}
	}
	return wallet, nil
}

func (p *Program) wrapDeposit(env *harness.Env) (harness.Attack, error) {
	authority, err := p.setup(env, p.InitializeVault, func(w solana.PublicKey) (state.Instruction, error) {
		vault, err := p.VaultAddress(w)
		if err != nil {
			return state.Instruction{}, err
		}
		return p.Deposit(harness.Secure, vault, w, math.MaxUint64)
	})
	if err != nil {
		return nil, err
	}
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Deposit(v, vault, authority, 1)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		rec := &Vault{}
		if err := env.Load(vault, p.ID, rec); err != nil {
			return err
		}
		if rec.TotalDeposits != 0 {
			return errors.Wrap(harness.ErrNotExploited, "total did not wrap")
		}
		return nil
	}, nil
}

func (p *Program) underflowWithdraw(env *harness.Env) (harness.Attack, error) {
	owner, err := p.setup(env, func(w solana.PublicKey) (state.Instruction, error) {
		return p.InitializeUserAccount(w, 100)
	})
	if err != nil {
		return nil, err
	}
	user, err := p.UserAddress(owner)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Withdraw(v, user, owner, 101)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		rec := &UserAccount{}
		if err := env.Load(user, p.ID, rec); err != nil {
			return err
		}
		if rec.Balance != math.MaxUint64 {
			return errors.Wrap(harness.ErrNotExploited, "balance did not wrap")
		}
		return nil
	}, nil
}

func (p *Program) wrapPrice(env *harness.Env) (harness.Attack, error) {
	_, err := p.setup(env, func(w solana.PublicKey) (state.Instruction, error) {
		return p.InitializeConfig(w, 1<<63, 100)
	})
	if err != nil {
		return nil, err
	}
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.CalculatePrice(v, config, 2)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) != 0 {
			return errors.Wrap(harness.ErrNotExploited, "price did not wrap")
		}
		return nil
	}, nil
}

func (p *Program) truncateRecord(env *harness.Env) (harness.Attack, error) {
	user, err := p.setup(env, p.InitializeRecord)
	if err != nil {
		return nil, err
	}
	record, err := p.RecordAddress(user)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.RecordWithdrawal(v, record, user, 1<<32+5)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		rec := &WithdrawalRecord{}
		if err := env.Load(record, p.ID, rec); err != nil {
			return err
		}
		if rec.LastWithdrawal != 5 {
			return errors.Wrap(harness.ErrNotExploited, "amount was not truncated")
		}
		return nil
	}, nil
}

func (p *Program) wrapFee(env *harness.Env) (harness.Attack, error) {
	_, err := p.setup(env, func(w solana.PublicKey) (state.Instruction, error) {
		return p.InitializeConfig(w, 1, 100)
	})
	if err != nil {
		return nil, err
	}
	config, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		amount := uint64(math.MaxUint64)
		ix, err := p.CalculateFee(v, config, amount)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if framework.DecodeU64(r.ReturnData) >= amount/100 {
			return errors.Wrap(harness.ErrNotExploited, "fee was charged in full")
		}
		return nil
	}, nil
}
