// Package reinit is the reinitialization scenario. An initializer that does not first establish
// that nothing lives at the address lets anyone reset a record to values of their choosing.
package reinit

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

var log = logging.MustGetLogger("reinit")

var ProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnW")

// FlaggedVault lives at a keypair address and records its own initialization in IsInitialized.
type FlaggedVault struct {
	Authority        solana.PublicKey
	Balance          uint64
	TotalDeposits    uint64
	TotalWithdrawals uint64
	IsInitialized    bool
}

func (FlaggedVault) AccountName() string { return "FlaggedVault" }

// Vault lives at ["vault", authority] and is created once.
type Vault struct {
	Authority        solana.PublicKey
	Balance          uint64
	TotalDeposits    uint64
	TotalWithdrawals uint64
	Bump             uint8
}

func (Vault) AccountName() string { return "Vault" }

type Config struct {
	Admin  solana.PublicKey
	FeeBps uint16
	Bump   uint8
}

func (Config) AccountName() string { return "Config" }

type FeeArgs struct {
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
	p.router = state.NewRouter("reinit").
		AddRoute("allocate_vault", p.allocateVault).
		AddRoute("initialize_vulnerable", p.initializeVulnerable).
		AddRoute("initialize_secure_manual", p.initializeSecureManual).
		AddRoute("initialize_secure", p.initializeSecure).
		AddRoute("initialize_vault", p.initializeVault).
		AddRoute("process_vault_vulnerable", p.processVaultVulnerable).
		AddRoute("process_vault_secure", p.processVaultSecure).
		AddRoute("initialize_config_vulnerable", p.initializeConfigVulnerable).
		AddRoute("initialize_config_secure", p.initializeConfigSecure).
		AddRoute("deposit", p.deposit).
		AddRoute("withdraw", p.withdraw)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func vaultSeeds(authority solana.PublicKey) [][]byte {
	return [][]byte{[]byte("vault"), authority.Bytes()}
}

func configSeeds() [][]byte {
	return [][]byte{[]byte("config")}
}

func (p *Program) VaultAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(vaultSeeds(authority), p.ID)
	return addr, err
}

func (p *Program) ConfigAddress() (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(configSeeds(), p.ID)
	return addr, err
}

// allocateVault creates zeroed storage for a FlaggedVault at a keypair address.
// accounts: vault (signer), payer (signer)
func (p *Program) allocateVault(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, payer := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(vault); err != nil {
		return err
	}
	space, err := account.Space(&FlaggedVault{})
	if err != nil {
		return err
	}
	return state.CreateAccount(payer, vault, space, p.ID)
}

func (p *Program) writeFlagged(vault, authority *account.Account) error {
	return account.Init(vault, p.ID, &FlaggedVault{Authority: authority.Key, IsInitialized: true})
}

// accounts: vault, authority (signer)
func (p *Program) initializeVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(authority); err != nil {
		return err
	}
	if err := guard.RequireOwner(vault, p.ID); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Initialized vault %v (but maybe re-initialized)", vault.Key)
	return p.writeFlagged(vault, authority)
}

// initializeSecureManual trusts the flag stored in the record. Anything that reads the storage
// without decoding the record does not see the flag.
func (p *Program) initializeSecureManual(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(authority); err != nil {
		return err
	}
	if err := guard.RequireOwner(vault, p.ID); err != nil {
		return err
	}
	existing := &FlaggedVault{}
	err := account.Load(vault, p.ID, existing)
	switch {
	case err == nil && existing.IsInitialized:
		return errors.Wrapf(common.ErrAlreadyInitialized, "%v flag is set", vault.Key)
	case err != nil && !common.Is(err, common.AccountNotInitialized):
		return err
	}
	log.Infof("SECURE (manual): Initialized vault %v with flag check", vault.Key)
	return p.writeFlagged(vault, authority)
}

func (p *Program) initializeSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(authority); err != nil {
		return err
	}
	if err := guard.RequireUninitialized(vault, p.ID); err != nil {
		return err
	}
	if vault.IsVacant() {
		return errors.Wrapf(common.ErrAccountNotInitialized, "%v is not allocated", vault.Key)
	}
	log.Infof("SECURE: Initialized vault %v", vault.Key)
	return p.writeFlagged(vault, authority)
}

// accounts: vault, authority (signer)
func (p *Program) initializeVault(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(authority, vault, p.ID, vaultSeeds(authority.Key), func(bump uint8) account.Record {
		return &Vault{Authority: authority.Key, Bump: bump}
	})
}

// processVaultVulnerable takes the first byte of the storage for an initialized flag.
// Returns 1 when it considers the vault initialized.
// accounts: vault
func (p *Program) processVaultVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	flag, err := account.ReadByte(ctx.Accounts[0].Data, 0)
	if err != nil {
		return err
	}
	if flag != 1 {
		log.Infof("VULNERABLE: Processing 'uninitialized' vault %v", ctx.Accounts[0].Key)
		framework.ReturnU64(ctx, 0)
		return nil
	}
	framework.ReturnU64(ctx, 1)
	return nil
}

func (p *Program) processVaultSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	acc := ctx.Accounts[0]
	vault := &Vault{}
	if err := account.Load(acc, p.ID, vault); err != nil {
		return err
	}
	if err := guard.RequirePDA(acc, vaultSeeds(vault.Authority), vault.Bump, p.ID); err != nil {
		return err
	}
	log.Infof("SECURE: Processing vault owned by %v", vault.Authority)
	framework.ReturnU64(ctx, 1)
	return nil
}

// accounts: config, admin (signer)
func (p *Program) initializeConfigVulnerable(ctx *state.Context, data []byte) error {
	args := &FeeArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	configAcc, admin := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(admin); err != nil {
		return err
	}
	config := &Config{}
	if err := account.Load(configAcc, p.ID, config); err != nil {
		return err
	}
	config.Admin = admin.Key
	config.FeeBps = args.FeeBps
	log.Infof("VULNERABLE: Config (re)initialized with fee %dbps", args.FeeBps)
	return account.Store(configAcc, config)
}

func (p *Program) initializeConfigSecure(ctx *state.Context, data []byte) error {
	args := &FeeArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	configAcc, admin := ctx.Accounts[0], ctx.Accounts[1]
	if err := framework.CreatePDA(admin, configAcc, p.ID, configSeeds(), func(bump uint8) account.Record {
		return &Config{Admin: admin.Key, FeeBps: args.FeeBps, Bump: bump}
	}); err != nil {
		return err
	}
	log.Infof("SECURE: Config initialized with fee %dbps", args.FeeBps)
	return nil
}

func (p *Program) loadVault(acc *account.Account) (*Vault, error) {
	vault := &Vault{}
	if err := account.Load(acc, p.ID, vault); err != nil {
		return nil, err
	}
	if err := guard.RequirePDA(acc, vaultSeeds(vault.Authority), vault.Bump, p.ID); err != nil {
		return nil, err
	}
	return vault, nil
}

// accounts: vault, depositor (signer)
func (p *Program) deposit(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	vaultAcc, depositor := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(depositor); err != nil {
		return err
	}
	vault, err := p.loadVault(vaultAcc)
	if err != nil {
		return err
	}
	if vault.Balance, err = safemath.CheckedAdd(vault.Balance, args.Amount); err != nil {
		return err
	}
	if vault.TotalDeposits, err = safemath.CheckedAdd(vault.TotalDeposits, args.Amount); err != nil {
		return err
	}
	return account.Store(vaultAcc, vault)
}

// accounts: vault, authority (signer)
func (p *Program) withdraw(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	vaultAcc, authority := ctx.Accounts[0], ctx.Accounts[1]
	vault, err := p.loadVault(vaultAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(authority, vault.Authority); err != nil {
		return err
	}
	if vault.Balance, err = safemath.CheckedSub(vault.Balance, args.Amount); err != nil {
		return err
	}
	if vault.TotalWithdrawals, err = safemath.CheckedAdd(vault.TotalWithdrawals, args.Amount); err != nil {
		return err
	}
	return account.Store(vaultAcc, vault)
}

func (p *Program) AllocateVault(vault, payer solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, "allocate_vault", nil,
		state.Writable(vault, true),
		state.Writable(payer, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

// Initialize initializes the FlaggedVault at vault. Secure applies the uninitialized rule.
func (p *Program) Initialize(v harness.Variant, vault, authority solana.PublicKey) (state.Instruction, error) {
	return p.initialize(v.Method("initialize"), vault, authority)
}

// InitializeManual initializes the FlaggedVault at vault guarded only by its stored flag.
func (p *Program) InitializeManual(vault, authority solana.PublicKey) (state.Instruction, error) {
	return p.initialize("initialize_secure_manual", vault, authority)
}

func (p *Program) initialize(method string, vault, authority solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, method, nil,
		state.Writable(vault, false),
		state.Readonly(authority, true),
	)
}

func (p *Program) InitializeVault(authority solana.PublicKey) (state.Instruction, error) {
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_vault", nil,
		state.Writable(vault, false),
		state.Writable(authority, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) ProcessVault(v harness.Variant, vault solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("process_vault"), nil,
		state.Readonly(vault, false),
	)
}

func (p *Program) InitializeConfig(v harness.Variant, admin solana.PublicKey, feeBps uint16) (state.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, v.Method("initialize_config"), &FeeArgs{FeeBps: feeBps},
		state.Writable(config, false),
		state.Writable(admin, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) Deposit(authority, depositor solana.PublicKey, amount uint64) (state.Instruction, error) {
	return p.vaultOp("deposit", authority, depositor, amount)
}

func (p *Program) Withdraw(authority, signer solana.PublicKey, amount uint64) (state.Instruction, error) {
	return p.vaultOp("withdraw", authority, signer, amount)
}

func (p *Program) vaultOp(method string, authority, signer solana.PublicKey, amount uint64) (state.Instruction, error) {
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, method, &AmountArgs{Amount: amount},
		state.Writable(vault, false),
		state.Readonly(signer, true),
	)
}
