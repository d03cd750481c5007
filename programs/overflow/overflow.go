// Package overflow is the integer overflow scenario. Both variants validate the same accounts; they
// differ only in whether arithmetic goes through safemath.
package overflow

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/safemath"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("overflow")

var ProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnU")

type Vault struct {
	Authority     solana.PublicKey
	TotalDeposits uint64
	Bump          uint8
}

func (Vault) AccountName() string { return "Vault" }

type UserAccount struct {
	Owner   solana.PublicKey
	Balance uint64
	Bump    uint8
}

func (UserAccount) AccountName() string { return "UserAccount" }

type Config struct {
	Admin        solana.PublicKey
	PricePerUnit uint64
	FeeBps       uint16
	Bump         uint8
}

func (Config) AccountName() string { return "Config" }

// WithdrawalRecord keeps the last withdrawal in 32 bits.
type WithdrawalRecord struct {
	User           solana.PublicKey
	LastWithdrawal uint32
	Bump           uint8
}

func (WithdrawalRecord) AccountName() string { return "WithdrawalRecord" }

type AmountArgs struct {
	Amount uint64
}

type ConfigArgs struct {
	Price  uint64
	FeeBps uint16
}

type Program struct {
	ID     solana.PublicKey
	router *state.Router
}

func New(id solana.PublicKey) *Program {
	p := &Program{ID: id}
	p.router = state.NewRouter("overflow").
		AddRoute("initialize_vault", p.initializeVault).
		AddRoute("initialize_user_account", p.initializeUserAccount).
		AddRoute("initialize_config", p.initializeConfig).
		AddRoute("initialize_record", p.initializeRecord).
		AddRoute("deposit_vulnerable", p.depositVulnerable).
		AddRoute("deposit_secure", p.depositSecure).
		AddRoute("withdraw_vulnerable", p.withdrawVulnerable).
		AddRoute("withdraw_secure", p.withdrawSecure).
		AddRoute("calculate_price_vulnerable", p.calculatePriceVulnerable).
		AddRoute("calculate_price_secure", p.calculatePriceSecure).
		AddRoute("record_withdrawal_vulnerable", p.recordWithdrawalVulnerable).
		AddRoute("record_withdrawal_secure", p.recordWithdrawalSecure).
		AddRoute("calculate_fee_vulnerable", p.calculateFeeVulnerable).
		AddRoute("calculate_fee_secure", p.calculateFeeSecure)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func vaultSeeds(authority solana.PublicKey) [][]byte {
	return [][]byte{[]byte("vault"), authority.Bytes()}
}

func userSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte("user"), owner.Bytes()}
}

func configSeeds() [][]byte {
	return [][]byte{[]byte("config")}
}

func recordSeeds(user solana.PublicKey) [][]byte {
	return [][]byte{[]byte("record"), user.Bytes()}
}

func (p *Program) address(seeds [][]byte) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(seeds, p.ID)
	return addr, err
}

func (p *Program) VaultAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	return p.address(vaultSeeds(authority))
}

func (p *Program) UserAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	return p.address(userSeeds(owner))
}

func (p *Program) ConfigAddress() (solana.PublicKey, error) {
	return p.address(configSeeds())
}

func (p *Program) RecordAddress(user solana.PublicKey) (solana.PublicKey, error) {
	return p.address(recordSeeds(user))
}

func (p *Program) initializeVault(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(authority, vault, p.ID, vaultSeeds(authority.Key), func(bump uint8) account.Record {
		return &Vault{Authority: authority.Key, Bump: bump}
	})
}

func (p *Program) initializeUserAccount(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	user, owner := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(owner, user, p.ID, userSeeds(owner.Key), func(bump uint8) account.Record {
		return &UserAccount{Owner: owner.Key, Balance: args.Amount, Bump: bump}
	})
}

func (p *Program) initializeConfig(ctx *state.Context, data []byte) error {
	args := &ConfigArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	config, admin := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(admin, config, p.ID, configSeeds(), func(bump uint8) account.Record {
		return &Config{Admin: admin.Key, PricePerUnit: args.Price, FeeBps: args.FeeBps, Bump: bump}
	})
}

func (p *Program) initializeRecord(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	record, user := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(user, record, p.ID, recordSeeds(user.Key), func(bump uint8) account.Record {
		return &WithdrawalRecord{User: user.Key, Bump: bump}
	})
}

// accounts: vault, depositor (signer)
func (p *Program) loadVault(ctx *state.Context) (*account.Account, *Vault, error) {
	if err := ctx.Require(2); err != nil {
		return nil, nil, err
	}
	acc := ctx.Accounts[0]
	vault := &Vault{}
	if err := account.Load(acc, p.ID, vault); err != nil {
		return nil, nil, err
	}
	if err := guard.RequirePDA(acc, vaultSeeds(vault.Authority), vault.Bump, p.ID); err != nil {
		return nil, nil, err
	}
	if err := guard.RequireSigner(ctx.Accounts[1]); err != nil {
		return nil, nil, err
	}
	return acc, vault, nil
}

func (p *Program) depositVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	acc, vault, err := p.loadVault(ctx)
	if err != nil {
		return err
	}
	vault.TotalDeposits = vault.TotalDeposits + args.Amount
	log.Infof("VULNERABLE: Deposited %d, total: %d", args.Amount, vault.TotalDeposits)
	return account.Store(acc, vault)
}

func (p *Program) depositSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	acc, vault, err := p.loadVault(ctx)
	if err != nil {
		return err
	}
	if vault.TotalDeposits, err = safemath.CheckedAdd(vault.TotalDeposits, args.Amount); err != nil {
		return err
	}
	log.Infof("SECURE: Deposited %d, total: %d", args.Amount, vault.TotalDeposits)
	return account.Store(acc, vault)
}

// accounts: user account, owner (signer)
func (p *Program) loadUser(ctx *state.Context) (*account.Account, *UserAccount, error) {
	if err := ctx.Require(2); err != nil {
		return nil, nil, err
	}
	acc := ctx.Accounts[0]
	user := &UserAccount{}
	if err := account.Load(acc, p.ID, user); err != nil {
		return nil, nil, err
	}
	if err := guard.RequirePDA(acc, userSeeds(user.Owner), user.Bump, p.ID); err != nil {
		return nil, nil, err
	}
	if err := guard.RequireAuthority(ctx.Accounts[1], user.Owner); err != nil {
		return nil, nil, err
	}
	return acc, user, nil
}

func (p *Program) withdrawVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	acc, user, err := p.loadUser(ctx)
	if err != nil {
		return err
	}
	user.Balance = user.Balance - args.Amount
	log.Infof("VULNERABLE: Withdrew %d, balance: %d", args.Amount, user.Balance)
	return account.Store(acc, user)
}

func (p *Program) withdrawSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	acc, user, err := p.loadUser(ctx)
	if err != nil {
		return err
	}
	if user.Balance, err = safemath.CheckedSub(user.Balance, args.Amount); err != nil {
		return err
	}
	log.Infof("SECURE: Withdrew %d, balance: %d", args.Amount, user.Balance)
	return account.Store(acc, user)
}

// accounts: config
func (p *Program) loadConfig(ctx *state.Context) (*Config, error) {
	if err := ctx.Require(1); err != nil {
		return nil, err
	}
	acc := ctx.Accounts[0]
	config := &Config{}
	if err := account.Load(acc, p.ID, config); err != nil {
		return nil, err
	}
	if err := guard.RequirePDA(acc, configSeeds(), config.Bump, p.ID); err != nil {
		return nil, err
	}
	return config, nil
}

func (p *Program) calculatePriceVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	config, err := p.loadConfig(ctx)
	if err != nil {
		return err
	}
	total := config.PricePerUnit * args.Amount
	log.Infof("VULNERABLE: %d units at %d = %d", args.Amount, config.PricePerUnit, total)
	framework.ReturnU64(ctx, total)
	return nil
}

func (p *Program) calculatePriceSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	config, err := p.loadConfig(ctx)
	if err != nil {
		return err
	}
	total, err := safemath.CheckedMul(config.PricePerUnit, args.Amount)
	if err != nil {
		return err
	}
	log.Infof("SECURE: %d units at %d = %d", args.Amount, config.PricePerUnit, total)
	framework.ReturnU64(ctx, total)
	return nil
}

// accounts: record, user (signer)
func (p *Program) loadRecord(ctx *state.Context) (*account.Account, *WithdrawalRecord, error) {
	if err := ctx.Require(2); err != nil {
		return nil, nil, err
	}
	acc, user := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(user); err != nil {
		return nil, nil, err
	}
	rec := &WithdrawalRecord{}
	if err := account.Load(acc, p.ID, rec); err != nil {
		return nil, nil, err
	}
	if err := guard.RequirePDA(acc, recordSeeds(user.Key), rec.Bump, p.ID); err != nil {
		return nil, nil, err
	}
	return acc, rec, nil
}

func (p *Program) recordWithdrawalVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	acc, rec, err := p.loadRecord(ctx)
	if err != nil {
		return err
	}
	rec.LastWithdrawal = uint32(args.Amount)
	log.Infof("VULNERABLE: Recorded %d as %d", args.Amount, rec.LastWithdrawal)
	return account.Store(acc, rec)
}

func (p *Program) recordWithdrawalSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	acc, rec, err := p.loadRecord(ctx)
	if err != nil {
		return err
	}
	if rec.LastWithdrawal, err = safemath.NarrowCastU32(args.Amount); err != nil {
		return err
	}
	log.Infof("SECURE: Recorded %d", rec.LastWithdrawal)
	return account.Store(acc, rec)
}

func (p *Program) calculateFeeVulnerable(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	config, err := p.loadConfig(ctx)
	if err != nil {
		return err
	}
	fee := args.Amount * uint64(config.FeeBps) / safemath.BpsDenominator
	log.Infof("VULNERABLE: Fee on %d is %d", args.Amount, fee)
	framework.ReturnU64(ctx, fee)
	return nil
}

func (p *Program) calculateFeeSecure(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	config, err := p.loadConfig(ctx)
	if err != nil {
		return err
	}
	fee, err := safemath.BpsFeeWithMinimum(args.Amount, config.FeeBps)
	if err != nil {
		return err
	}
	log.Infof("SECURE: Fee on %d is %d", args.Amount, fee)
	framework.ReturnU64(ctx, fee)
	return nil
}

func (p *Program) initialize(method string, seeds [][]byte, payer solana.PublicKey, args interface{}) (state.Instruction, error) {
	target, err := p.address(seeds)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, method, args,
		state.Writable(target, false),
		state.Writable(payer, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) InitializeVault(authority solana.PublicKey) (state.Instruction, error) {
	return p.initialize("initialize_vault", vaultSeeds(authority), authority, nil)
}

func (p *Program) InitializeUserAccount(owner solana.PublicKey, initialBalance uint64) (state.Instruction, error) {
	return p.initialize("initialize_user_account", userSeeds(owner), owner, &AmountArgs{Amount: initialBalance})
}

func (p *Program) InitializeConfig(admin solana.PublicKey, price uint64, feeBps uint16) (state.Instruction, error) {
	return p.initialize("initialize_config", configSeeds(), admin, &ConfigArgs{Price: price, FeeBps: feeBps})
}

func (p *Program) InitializeRecord(user solana.PublicKey) (state.Instruction, error) {
	return p.initialize("initialize_record", recordSeeds(user), user, nil)
}

func (p *Program) Deposit(v harness.Variant, vault, depositor solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("deposit"), &AmountArgs{Amount: amount},
		state.Writable(vault, false),
		state.Readonly(depositor, true),
	)
}

func (p *Program) Withdraw(v harness.Variant, user, owner solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("withdraw"), &AmountArgs{Amount: amount},
		state.Writable(user, false),
		state.Readonly(owner, true),
	)
}

func (p *Program) CalculatePrice(v harness.Variant, config solana.PublicKey, quantity uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("calculate_price"), &AmountArgs{Amount: quantity},
		state.Readonly(config, false),
	)
}

func (p *Program) RecordWithdrawal(v harness.Variant, record, user solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("record_withdrawal"), &AmountArgs{Amount: amount},
		state.Writable(record, false),
		state.Readonly(user, true),
	)
}

func (p *Program) CalculateFee(v harness.Variant, config solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("calculate_fee"), &AmountArgs{Amount: amount},
		state.Readonly(config, false),
	)
}
