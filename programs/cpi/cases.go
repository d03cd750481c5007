package cpi

import (
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/programs/token"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const Name = "arbitrary-cpi"

const (
	userTokens     uint64 = 1000
	swapAmount     uint64 = 10
	victimDeposit  uint64 = 900
	attackDeposit  uint64 = 100
	treasuryTokens uint64 = 5000
	rewardAmount   uint64 = 50
)

func Scenario(p *Program) *harness.Scenario {
	return &harness.Scenario{
		Name:        Name,
		Description: "the invoked program comes from the caller and is never compared to the expected id",
		Cases: []harness.Case{
			{Scenario: Name, Name: "swap-through-impostor", Expect: common.InvalidProgram, Prepare: p.impostorSwap},
			{Scenario: Name, Name: "vault-signer-lent-to-drainer", Expect: common.InvalidProgram, Prepare: p.drainVault},
			{Scenario: Name, Name: "treasury-signer-lent-to-drainer", Expect: common.InvalidProgram, Prepare: p.drainTreasury},
			{Scenario: Name, Name: "oracle-impostor", Expect: common.InvalidProgram, Prepare: p.fakeOracle},
		},
	}
}

// deploy installs this program, the token program and the pinned counterparties.
func (p *Program) deploy(env *harness.Env) error {
	for id, h := range map[solana.PublicKey]state.Handler{
		p.ID:            p.Process,
		p.TokenProgram:  token.Process,
		p.SwapProgram:   Swap,
		p.OracleProgram: Oracle,
	} {
		if err := env.Deploy(id, h); err != nil {
			return err
		}
	}
	return nil
}

// deployDrainer installs Drain at a fresh address.
func deployDrainer(env *harness.Env) (solana.PublicKey, error) {
	id := env.NewKey()
	return id, env.Deploy(id, Drain)
}

func newTokenAccount(env *harness.Env, mint, owner solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	acc, err := token.NewAccount(mint, owner, amount)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acc.Key, env.Put(acc)
}

func balance(env *harness.Env, key solana.PublicKey) (uint64, error) {
	return token.Balance(env.Account(key))
}

func (p *Program) impostorSwap(env *harness.Env) (harness.Attack, error) {
	if err := p.deploy(env); err != nil {
		return nil, err
	}
	drainer, err := deployDrainer(env)
	if err != nil {
		return nil, err
	}
	mint := env.NewKey()
	user, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	userAcc, err := newTokenAccount(env, mint, user, userTokens)
	if err != nil {
		return nil, err
	}
	pool, err := newTokenAccount(env, mint, env.NewKey(), 0)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.Swap(v, drainer, user, userAcc, pool, swapAmount)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		taken, err := balance(env, pool)
		if err != nil {
			return err
		}
		if taken != userTokens {
			return errors.Wrapf(harness.ErrNotExploited, "pool got %d", taken)
		}
		return nil
	}, nil
}

// setupVaults creates a victim and an attacker vault that share the vault token account.
func (p *Program) setupVaults(env *harness.Env, mint solana.PublicKey) (attacker, attackerTokens, vaultTokens solana.PublicKey, err error) {
	vaultAuthority, err := p.VaultAuthority()
	if err != nil {
		return
	}
	if vaultTokens, err = newTokenAccount(env, mint, vaultAuthority, 0); err != nil {
		return
	}
	deposit := func(amount uint64) (solana.PublicKey, solana.PublicKey, error) {
		owner, err := env.NewWallet(harness.DefaultFunding)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, err
		}
		tokens, err := newTokenAccount(env, mint, owner, amount)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, err
		}
		create, err := p.InitializeVault(owner)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, err
		}
		fund, err := p.FundVault(owner, tokens, vaultTokens, amount)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, err
		}
		_, err = env.Send(create, fund)
		return owner, tokens, err
	}
	if _, _, err = deposit(victimDeposit); err != nil {
		return
	}
	attacker, attackerTokens, err = deposit(attackDeposit)
	return
}

// drainVault withdraws one token from the attacker's own vault through a program that takes
// every token the vault authority holds.
func (p *Program) drainVault(env *harness.Env) (harness.Attack, error) {
	if err := p.deploy(env); err != nil {
		return nil, err
	}
	drainer, err := deployDrainer(env)
	if err != nil {
		return nil, err
	}
	attacker, attackerTokens, vaultTokens, err := p.setupVaults(env, env.NewKey())
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.TransferTokens(v, attacker, drainer, vaultTokens, attackerTokens, 1)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		got, err := balance(env, attackerTokens)
		if err != nil {
			return err
		}
		if got != victimDeposit+attackDeposit {
			return errors.Wrapf(harness.ErrNotExploited, "attacker holds %d", got)
		}
		return nil
	}, nil
}

// drainTreasury distributes rewards through a drainer that empties the treasury token account.
func (p *Program) drainTreasury(env *harness.Env) (harness.Attack, error) {
	if err := p.deploy(env); err != nil {
		return nil, err
	}
	drainer, err := deployDrainer(env)
	if err != nil {
		return nil, err
	}
	mint := env.NewKey()
	admin, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	attacker, err := env.NewWallet(harness.DefaultFunding)
	if err != nil {
		return nil, err
	}
	setup, err := p.InitializeTreasury(admin, rewardAmount)
	if err != nil {
		return nil, err
	}
	if _, err := env.Send(setup); err != nil {
		return nil, err
	}
	treasury, err := p.TreasuryAddress()
	if err != nil {
		return nil, err
	}
	treasuryAcc, err := newTokenAccount(env, mint, treasury, treasuryTokens)
	if err != nil {
		return nil, err
	}
	attackerTokens, err := newTokenAccount(env, mint, attacker, 0)
	if err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.DistributeRewards(v, drainer, attacker, treasuryAcc, attackerTokens)
		if err != nil {
			return err
		}
		if _, err := env.Send(ix); err != nil {
			return err
		}
		got, err := balance(env, attackerTokens)
		if err != nil {
			return err
		}
		if got != treasuryTokens {
			return errors.Wrapf(harness.ErrNotExploited, "attacker holds %d", got)
		}
		return nil
	}, nil
}

func (p *Program) fakeOracle(env *harness.Env) (harness.Attack, error) {
	if err := p.deploy(env); err != nil {
		return nil, err
	}
	fake := env.NewKey()
	if err := env.Deploy(fake, FakeOracle); err != nil {
		return nil, err
	}

	return func(v harness.Variant) error {
		ix, err := p.CallOracle(v, fake)
		if err != nil {
			return err
		}
		r, err := env.Send(ix)
		if err != nil {
			return err
		}
		if price := framework.DecodeU64(r.ReturnData); price == OraclePrice {
			return errors.Wrapf(harness.ErrNotExploited, "price %d", price)
		}
		return nil
	}, nil
}
