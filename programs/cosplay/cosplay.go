// Package cosplay is the type confusion scenario: records with the same layout are told apart only
// by their type tag, and handlers that read fields at fixed offsets accept any of them.
package cosplay

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

var log = logging.MustGetLogger("cosplay")

var ProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnX")

// Raw layout shared by the records below, after the type tag.
const (
	keyOffset     = account.DiscriminatorSize
	flagOffset    = keyOffset + solana.PublicKeyLength
	balanceOffset = flagOffset
)

// Account kinds as read by the raw dispatcher.
const (
	KindUser  byte = 1
	KindAdmin byte = 2
)

type AdminConfig struct {
	Admin solana.PublicKey
	Bump  uint8
}

func (AdminConfig) AccountName() string { return "AdminConfig" }

type UserAccount struct {
	Owner   solana.PublicKey
	Balance uint64
	Bump    uint8
}

func (UserAccount) AccountName() string { return "UserAccount" }

// RewardVault has the layout of UserAccount.
type RewardVault struct {
	Authority solana.PublicKey
	Balance   uint64
	Bump      uint8
}

func (RewardVault) AccountName() string { return "RewardVault" }

type AmountArgs struct {
	Amount uint64
}

type Program struct {
	ID     solana.PublicKey
	router *state.Router
}

func New(id solana.PublicKey) *Program {
	p := &Program{ID: id}
	p.router = state.NewRouter("cosplay").
		AddRoute("initialize_admin_config", p.initializeAdminConfig).
		AddRoute("initialize_user_account", p.initializeUserAccount).
		AddRoute("initialize_reward_vault", p.initializeRewardVault).
		AddRoute("deposit", p.deposit).
		AddRoute("admin_action_vulnerable", p.adminActionVulnerable).
		AddRoute("admin_action_secure", p.adminActionSecure).
		AddRoute("claim_rewards_vulnerable", p.claimRewardsVulnerable).
		AddRoute("claim_rewards_secure", p.claimRewardsSecure).
		AddRoute("process_account_vulnerable", p.processAccountVulnerable).
		AddRoute("process_user_secure", p.processUserSecure).
		AddRoute("process_admin_secure", p.processAdminSecure)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func adminConfigSeeds() [][]byte {
	return [][]byte{[]byte("admin_config")}
}

func userSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte("user"), owner.Bytes()}
}

func rewardVaultSeeds(authority solana.PublicKey) [][]byte {
	return [][]byte{[]byte("reward_vault"), authority.Bytes()}
}

func (p *Program) address(seeds [][]byte) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(seeds, p.ID)
	return addr, err
}

func (p *Program) AdminConfigAddress() (solana.PublicKey, error) {
	return p.address(adminConfigSeeds())
}

func (p *Program) UserAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	return p.address(userSeeds(owner))
}

func (p *Program) RewardVaultAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	return p.address(rewardVaultSeeds(authority))
}

// accounts: admin config, admin (signer)
func (p *Program) initializeAdminConfig(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	config, admin := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(admin, config, p.ID, adminConfigSeeds(), func(bump uint8) account.Record {
		return &AdminConfig{Admin: admin.Key, Bump: bump}
	})
}

// accounts: user account, owner (signer)
func (p *Program) initializeUserAccount(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	user, owner := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(owner, user, p.ID, userSeeds(owner.Key), func(bump uint8) account.Record {
		return &UserAccount{Owner: owner.Key, Bump: bump}
	})
}

// accounts: reward vault, authority (signer)
func (p *Program) initializeRewardVault(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(authority, vault, p.ID, rewardVaultSeeds(authority.Key), func(bump uint8) account.Record {
		return &RewardVault{Authority: authority.Key, Balance: args.Amount, Bump: bump}
	})
}

// deposit credits the user account of its signing owner.
// accounts: user account, owner (signer)
func (p *Program) deposit(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	acc, owner := ctx.Accounts[0], ctx.Accounts[1]
	user, err := p.loadUser(acc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(owner, user.Owner); err != nil {
		return err
	}
	if user.Balance, err = safemath.CheckedAdd(user.Balance, args.Amount); err != nil {
		return err
	}
	return account.Store(acc, user)
}

// adminActionVulnerable takes whatever sits after the tag for the admin key and the byte after
// it for an is-admin flag. Returns 1 when the action was performed.
// accounts: admin config, signer (signer)
func (p *Program) adminActionVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	config, signer := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(signer); err != nil {
		return err
	}
	admin, err := account.ReadKey(config.Data, keyOffset)
	if err != nil {
		return err
	}
	flag, err := account.ReadByte(config.Data, flagOffset)
	if err != nil {
		return err
	}
	if !signer.Key.Equals(admin) || flag != 1 {
		return errors.Wrapf(common.ErrUnauthorized, "%v is not admin", signer.Key)
	}
	log.Infof("VULNERABLE: Admin action performed by %v (but was it really an admin?)", signer.Key)
	framework.ReturnU64(ctx, 1)
	return nil
}

func (p *Program) adminActionSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	acc, signer := ctx.Accounts[0], ctx.Accounts[1]
	config, err := p.loadAdminConfig(acc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(signer, config.Admin); err != nil {
		return err
	}
	log.Infof("SECURE: Admin action performed by verified admin %v", signer.Key)
	framework.ReturnU64(ctx, 1)
	return nil
}

// claimRewardsVulnerable pays out the balance read at a fixed offset and zeroes it.
// accounts: reward vault, user (signer)
func (p *Program) claimRewardsVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, user := ctx.Accounts[0], ctx.Accounts[1]
	if err := guard.RequireSigner(user); err != nil {
		return err
	}
	authority, err := account.ReadKey(vault.Data, keyOffset)
	if err != nil {
		return err
	}
	if !authority.Equals(user.Key) {
		return errors.Wrapf(common.ErrUnauthorized, "%v is not %v", user.Key, authority)
	}
	balance, err := account.ReadU64(vault.Data, balanceOffset)
	if err != nil {
		return err
	}
	if err := account.WriteU64(vault.Data, balanceOffset, 0); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Claiming %d rewards (but is this really a RewardVault?)", balance)
	framework.ReturnU64(ctx, balance)
	return nil
}

func (p *Program) claimRewardsSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(2); err != nil {
		return err
	}
	acc, user := ctx.Accounts[0], ctx.Accounts[1]
	vault := &RewardVault{}
	if err := account.Load(acc, p.ID, vault); err != nil {
		return err
	}
	if err := guard.RequirePDA(acc, rewardVaultSeeds(vault.Authority), vault.Bump, p.ID); err != nil {
		return err
	}
	if err := guard.RequireAuthority(user, vault.Authority); err != nil {
		return err
	}
	balance := vault.Balance
	vault.Balance = 0
	if err := account.Store(acc, vault); err != nil {
		return err
	}
	log.Infof("SECURE: Claiming %d rewards from verified RewardVault", balance)
	framework.ReturnU64(ctx, balance)
	return nil
}

// processAccountVulnerable dispatches on the first stored byte and returns the kind it chose.
// accounts: account
func (p *Program) processAccountVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	kind, err := account.ReadByte(ctx.Accounts[0].Data, 0)
	if err != nil {
		return err
	}
	switch kind {
	case KindUser:
		log.Infof("VULNERABLE: Processing %v as UserAccount", ctx.Accounts[0].Key)
	case KindAdmin:
		log.Infof("VULNERABLE: Processing %v as AdminAccount", ctx.Accounts[0].Key)
	default:
		return errors.Wrapf(common.ErrTypeMismatch, "unknown account kind %d", kind)
	}
	framework.ReturnU64(ctx, uint64(kind))
	return nil
}

func (p *Program) processUserSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	if _, err := p.loadUser(ctx.Accounts[0]); err != nil {
		return err
	}
	log.Info("SECURE: Processing verified UserAccount")
	framework.ReturnU64(ctx, uint64(KindUser))
	return nil
}

func (p *Program) processAdminSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	if _, err := p.loadAdminConfig(ctx.Accounts[0]); err != nil {
		return err
	}
	log.Info("SECURE: Processing verified AdminConfig")
	framework.ReturnU64(ctx, uint64(KindAdmin))
	return nil
}

func (p *Program) loadUser(acc *account.Account) (*UserAccount, error) {
	user := &UserAccount{}
	if err := account.Load(acc, p.ID, user); err != nil {
		return nil, err
	}
	if err := guard.RequirePDA(acc, userSeeds(user.Owner), user.Bump, p.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *Program) loadAdminConfig(acc *account.Account) (*AdminConfig, error) {
	config := &AdminConfig{}
	if err := account.Load(acc, p.ID, config); err != nil {
		return nil, err
	}
	if err := guard.RequirePDA(acc, adminConfigSeeds(), config.Bump, p.ID); err != nil {
		return nil, err
	}
	return config, nil
}

func (p *Program) InitializeAdminConfig(admin solana.PublicKey) (state.Instruction, error) {
	config, err := p.AdminConfigAddress()
	if err != nil {
		return state.Instruction{}, err
	}
	return p.create("initialize_admin_config", nil, config, admin)
}

func (p *Program) InitializeUserAccount(owner solana.PublicKey) (state.Instruction, error) {
	user, err := p.UserAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return p.create("initialize_user_account", nil, user, owner)
}

func (p *Program) InitializeRewardVault(authority solana.PublicKey, initial uint64) (state.Instruction, error) {
	vault, err := p.RewardVaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	return p.create("initialize_reward_vault", &AmountArgs{Amount: initial}, vault, authority)
}

func (p *Program) create(method string, args interface{}, target, payer solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, method, args,
		state.Writable(target, false),
		state.Writable(payer, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) Deposit(owner solana.PublicKey, amount uint64) (state.Instruction, error) {
	user, err := p.UserAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "deposit", &AmountArgs{Amount: amount},
		state.Writable(user, false),
		state.Readonly(owner, true),
	)
}

func (p *Program) AdminAction(v harness.Variant, config, signer solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("admin_action"), nil,
		state.Readonly(config, false),
		state.Readonly(signer, true),
	)
}

func (p *Program) ClaimRewards(v harness.Variant, vault, user solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("claim_rewards"), nil,
		state.Writable(vault, false),
		state.Readonly(user, true),
	)
}

// ProcessUser processes acc as a user account. The vulnerable variant lets the stored kind decide.
func (p *Program) ProcessUser(v harness.Variant, acc solana.PublicKey) (state.Instruction, error) {
	return p.process(v, "process_user_secure", acc)
}

func (p *Program) ProcessAdmin(v harness.Variant, acc solana.PublicKey) (state.Instruction, error) {
	return p.process(v, "process_admin_secure", acc)
}

func (p *Program) process(v harness.Variant, secure string, acc solana.PublicKey) (state.Instruction, error) {
	method := "process_account_vulnerable"
	if v == harness.Secure {
		method = secure
	}
	return state.NewInstruction(p.ID, method, nil, state.Readonly(acc, false))
}
