// Package validation is the account validation scenario: handlers that trust whatever account is
// passed in place of a pool, a config or a token account.
package validation

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/safemath"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("validation")

var ProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnT")

// payload offsets past the discriminator
const (
	poolTotalDepositedOffset = 8 + 32
	poolRewardRateOffset     = 8 + 32 + 8
	configFeeOffset          = 8 + 32
)

type Pool struct {
	Authority      solana.PublicKey
	TotalDeposited uint64
	RewardRate     uint64
	Bump           uint8
}

func (Pool) AccountName() string { return "Pool" }

type Config struct {
	Admin  solana.PublicKey
	FeeBps uint16
	Bump   uint8
}

func (Config) AccountName() string { return "Config" }

type InitializePoolArgs struct {
	RewardRate uint64
}

type InitializeConfigArgs struct {
	FeeBps uint16
}

type AmountArgs struct {
	Amount uint64
}

type Program struct {
	ID     solana.PublicKey
	router *state.Router
}

func New(id solana.PublicKey) *Program {
	p := &Program{ID: id}
	p.router = state.NewRouter("validation").
		AddRoute("initialize_pool", p.initializePool).
		AddRoute("initialize_config", p.initializeConfig).
		AddRoute("claim_rewards_vulnerable", p.claimRewardsVulnerable).
		AddRoute("claim_rewards_secure", p.claimRewardsSecure).
		AddRoute("swap_vulnerable", p.swapVulnerable).
		AddRoute("swap_secure", p.swapSecure).
		AddRoute("deposit_vulnerable", p.depositVulnerable).
		AddRoute("deposit_secure", p.depositSecure)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func poolSeeds(authority solana.PublicKey) [][]byte {
	return [][]byte{[]byte("pool"), authority.Bytes()}
}

func configSeeds() [][]byte {
	return [][]byte{[]byte("config")}
}

func (p *Program) PoolAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(poolSeeds(authority), p.ID)
	return addr, err
}

func (p *Program) ConfigAddress() (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(configSeeds(), p.ID)
	return addr, err
}

// accounts: pool, authority
func (p *Program) initializePool(ctx *state.Context, data []byte) error {
	args := &InitializePoolArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	pool, authority := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(authority, pool, p.ID, poolSeeds(authority.Key), func(bump uint8) account.Record {
		return &Pool{Authority: authority.Key, RewardRate: args.RewardRate, Bump: bump}
	})
}

// accounts: config, admin
func (p *Program) initializeConfig(ctx *state.Context, data []byte) error {
	args := &InitializeConfigArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	config, admin := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(admin, config, p.ID, configSeeds(), func(bump uint8) account.Record {
		return &Config{Admin: admin.Key, FeeBps: args.FeeBps, Bump: bump}
	})
}

// accounts: pool, user (signer)
func (p *Program) claimRewardsVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	if err := guard.RequireSigner(ctx.Accounts[1]); err != nil {
		return err
	}
	rate, err := account.ReadU64(ctx.Accounts[0].Data, poolRewardRateOffset)
	if err != nil {
		return err
	}
	log.Infof("VULNERABLE: Claiming with reward_rate: %d", rate)
	framework.ReturnU64(ctx, rate)
	return nil
}

func (p *Program) claimRewardsSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	poolAcc, user := ctx.Accounts[0], ctx.Accounts[1]
	pool, err := p.loadPool(poolAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireSigner(user); err != nil {
		return err
	}
	log.Infof("SECURE: Claiming with reward_rate: %d", pool.RewardRate)
	framework.ReturnU64(ctx, pool.RewardRate)
	return nil
}

// loadPool applies owner, type and derivation checks before handing out the pool.
func (p *Program) loadPool(acc *account.Account) (*Pool, error) {
	pool := &Pool{}
	if err := account.Load(acc, p.ID, pool); err != nil {
		return nil, err
	}
	if err := guard.RequirePDA(acc, poolSeeds(pool.Authority), pool.Bump, p.ID); err != nil {
		return nil, err
	}
	return pool, nil
}

// accounts: config, user (signer)
func (p *Program) swapVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	if err := guard.RequireSigner(ctx.Accounts[1]); err != nil {
		return err
	}
	feeBps, err := account.ReadU16(ctx.Accounts[0].Data, configFeeOffset)
	if err != nil {
		return err
	}
	fee := args.Amount * uint64(feeBps) / safemath.BpsDenominator
	log.Infof("VULNERABLE: Swap %d with fee %d (%dbps)", args.Amount, fee, feeBps)
	framework.ReturnU64(ctx, fee)
	return nil
}

func (p *Program) swapSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	configAcc, user := ctx.Accounts[0], ctx.Accounts[1]
	config := &Config{}
	if err := account.Load(configAcc, p.ID, config); err != nil {
		return err
	}
	if err := guard.RequirePDA(configAcc, configSeeds(), config.Bump, p.ID); err != nil {
		return err
	}
	if err := guard.RequireSigner(user); err != nil {
		return err
	}
	n, err := safemath.CheckedMul(args.Amount, uint64(config.FeeBps))
	if err != nil {
		return err
	}
	fee, err := safemath.CheckedDiv(n, safemath.BpsDenominator)
	if err != nil {
		return err
	}
	log.Infof("SECURE: Swap %d with fee %d (%dbps)", args.Amount, fee, config.FeeBps)
	framework.ReturnU64(ctx, fee)
	return nil
}

// accounts: pool, user token account, user (signer)
func (p *Program) depositVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(3); err != nil {
		return err
	}
	if err := guard.RequireSigner(ctx.Accounts[2]); err != nil {
		return err
	}
	poolData := ctx.Accounts[0].Data
	total, err := account.ReadU64(poolData, poolTotalDepositedOffset)
	if err != nil {
		return err
	}
	if err := account.WriteU64(poolData, poolTotalDepositedOffset, total+args.Amount); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Depositing %d tokens", args.Amount)
	return nil
}

func (p *Program) depositSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(3); err != nil {
		return err
	}
	poolAcc, tokenAcc, user := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]

	pool, err := p.loadPool(poolAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireSigner(user); err != nil {
		return err
	}
	token, err := account.LoadTokenAccount(tokenAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireTokenOwner(token, user.Key); err != nil {
		return err
	}
	if token.Amount < args.Amount {
		return errors.Wrapf(common.ErrInsufficientFunds, "token account %v holds %d", tokenAcc.Key, token.Amount)
	}
	if pool.TotalDeposited, err = safemath.CheckedAdd(pool.TotalDeposited, args.Amount); err != nil {
		return err
	}
	if err := account.Store(poolAcc, pool); err != nil {
		return err
	}
	log.Infof("SECURE: Depositing %d tokens from verified account", args.Amount)
	return nil
}

func (p *Program) InitializePool(authority solana.PublicKey, rewardRate uint64) (state.Instruction, error) {
	pool, err := p.PoolAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_pool", &InitializePoolArgs{RewardRate: rewardRate},
		state.Writable(pool, false),
		state.Writable(authority, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) InitializeConfig(admin solana.PublicKey, feeBps uint16) (state.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_config", &InitializeConfigArgs{FeeBps: feeBps},
		state.Writable(config, false),
		state.Writable(admin, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) ClaimRewards(v harness.Variant, pool, user solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("claim_rewards"), nil,
		state.Readonly(pool, false),
		state.Readonly(user, true),
	)
}

func (p *Program) Swap(v harness.Variant, config, user solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("swap"), &AmountArgs{Amount: amount},
		state.Readonly(config, false),
		state.Readonly(user, true),
	)
}

func (p *Program) Deposit(v harness.Variant, pool, tokenAccount, user solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("deposit"), &AmountArgs{Amount: amount},
		state.Writable(pool, false),
		state.Writable(tokenAccount, false),
		state.Readonly(user, true),
	)
}
