// Package closing is the unsafe close scenario. A close that only drains lamports leaves the
// record in place for any later step of the same transaction to revive, and a derived address
// that is closed without a tombstone can be created again.
package closing

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

var log = logging.MustGetLogger("closing")

var ProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnY")

const configFeeOffset = account.DiscriminatorSize + solana.PublicKeyLength

type UserAccount struct {
	Owner          solana.PublicKey
	Balance        uint64
	RewardsAccrued uint64
	Bump           uint8
}

func (UserAccount) AccountName() string { return "UserAccount" }

type Config struct {
	Admin  solana.PublicKey
	FeeBps uint16
	Bump   uint8
}

func (Config) AccountName() string { return "Config" }

type Profile struct {
	Owner  solana.PublicKey
	Points uint64
	Bump   uint8
}

func (Profile) AccountName() string { return "Profile" }

// ProfileTombstone marks a profile address as permanently closed.
type ProfileTombstone struct {
	OriginalOwner solana.PublicKey
	ClosedAt      int64
	Bump          uint8
}

func (ProfileTombstone) AccountName() string { return "ProfileTombstone" }

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
	p.router = state.NewRouter("closing").
		AddRoute("initialize_user_account", p.initializeUserAccount).
		AddRoute("initialize_config", p.initializeConfig).
		AddRoute("initialize_profile", p.initializeProfile).
		AddRoute("close_vulnerable", p.closeVulnerable).
		AddRoute("close_secure", p.closeSecure).
		AddRoute("close_no_auth_check", p.closeNoAuthCheck).
		AddRoute("close_with_auth_check", p.closeWithAuthCheck).
		AddRoute("read_config_vulnerable", p.readConfigVulnerable).
		AddRoute("read_config_secure", p.readConfigSecure).
		AddRoute("close_profile_vulnerable", p.closeProfileVulnerable).
		AddRoute("close_profile_secure", p.closeProfileSecure).
		AddRoute("accrue_rewards", p.accrueRewards).
		AddRoute("claim_rewards", p.claimRewards)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func userSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte("user"), owner.Bytes()}
}

func configSeeds() [][]byte {
	return [][]byte{[]byte("config")}
}

func profileSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte("profile"), owner.Bytes()}
}

func tombstoneSeeds(owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte("tombstone"), owner.Bytes()}
}

func (p *Program) address(seeds [][]byte) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(seeds, p.ID)
	return addr, err
}

func (p *Program) UserAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	return p.address(userSeeds(owner))
}

func (p *Program) ConfigAddress() (solana.PublicKey, error) {
	return p.address(configSeeds())
}

func (p *Program) ProfileAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	return p.address(profileSeeds(owner))
}

func (p *Program) TombstoneAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	return p.address(tombstoneSeeds(owner))
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

// accounts: config, admin (signer)
func (p *Program) initializeConfig(ctx *state.Context, data []byte) error {
	args := &FeeArgs{}
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

// initializeProfile refuses owners whose profile was closed with a tombstone.
// accounts: profile, tombstone, owner (signer)
func (p *Program) initializeProfile(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	profile, tombstone, owner := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	if _, err := guard.RequireCanonicalPDA(tombstone, tombstoneSeeds(owner.Key), p.ID); err != nil {
		return err
	}
	if err := guard.RequireNoTombstone(tombstone, p.ID, &ProfileTombstone{}); err != nil {
		return err
	}
	return framework.CreatePDA(owner, profile, p.ID, profileSeeds(owner.Key), func(bump uint8) account.Record {
		return &Profile{Owner: owner.Key, Bump: bump}
	})
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

// closeVulnerable moves the lamports out and leaves data and owner as they were.
// accounts: user account, recipient, signer (signer)
func (p *Program) closeVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	acc, recipient, signer := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	user, err := p.loadUser(acc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(signer, user.Owner); err != nil {
		return err
	}
	if err := state.Transfer(acc, recipient, acc.Lamports); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Closed %v but didn't zero data", acc.Key)
	return nil
}

func (p *Program) closeSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	acc, recipient, owner := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	user, err := p.loadUser(acc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(owner, user.Owner); err != nil {
		return err
	}
	if err := p.close(acc, recipient); err != nil {
		return err
	}
	log.Infof("SECURE: Closed %v with data zeroed", acc.Key)
	return nil
}

// close performs a complete close and checks that nothing is left at the address.
func (p *Program) close(acc, recipient *account.Account) error {
	if err := state.CloseAccount(acc, recipient); err != nil {
		return err
	}
	return guard.RequireClosed(acc)
}

// accounts: user account, recipient, signer (signer)
func (p *Program) closeNoAuthCheck(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	acc, recipient, signer := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	if _, err := p.loadUser(acc); err != nil {
		return err
	}
	if err := guard.RequireSigner(signer); err != nil {
		return err
	}
	if err := p.close(acc, recipient); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Closed %v without verifying authority", acc.Key)
	return nil
}

func (p *Program) closeWithAuthCheck(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	acc, recipient, owner := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	user, err := p.loadUser(acc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(owner, user.Owner); err != nil {
		return err
	}
	if err := p.close(acc, recipient); err != nil {
		return err
	}
	log.Infof("SECURE: Closed %v by verified owner", acc.Key)
	return nil
}

// readConfigVulnerable returns the fee stored at the config offset of any storage.
// accounts: config
func (p *Program) readConfigVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	fee, err := account.ReadU16(ctx.Accounts[0].Data, configFeeOffset)
	if err != nil {
		return err
	}
	log.Infof("VULNERABLE: Reading config fee %dbps without validation", fee)
	framework.ReturnU64(ctx, uint64(fee))
	return nil
}

func (p *Program) readConfigSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	acc := ctx.Accounts[0]
	config := &Config{}
	if err := account.Load(acc, p.ID, config); err != nil {
		return err
	}
	if err := guard.RequirePDA(acc, configSeeds(), config.Bump, p.ID); err != nil {
		return err
	}
	log.Infof("SECURE: Config fee_bps = %d", config.FeeBps)
	framework.ReturnU64(ctx, uint64(config.FeeBps))
	return nil
}

func (p *Program) loadProfile(acc, owner *account.Account) (*Profile, error) {
	profile := &Profile{}
	if err := account.Load(acc, p.ID, profile); err != nil {
		return nil, err
	}
	if err := guard.RequirePDA(acc, profileSeeds(profile.Owner), profile.Bump, p.ID); err != nil {
		return nil, err
	}
	if err := guard.RequireAuthority(owner, profile.Owner); err != nil {
		return nil, err
	}
	return profile, nil
}

// closeProfileVulnerable closes completely but records nothing, so the address can be reused.
// accounts: profile, recipient, owner (signer)
func (p *Program) closeProfileVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	acc, recipient, owner := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	if _, err := p.loadProfile(acc, owner); err != nil {
		return err
	}
	if err := p.close(acc, recipient); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Closed profile %v but it can be recreated", acc.Key)
	return nil
}

// accounts: profile, tombstone, recipient, owner (signer)
func (p *Program) closeProfileSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(4); err != nil {
		return err
	}
	acc, tombstone, recipient, owner := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2], ctx.Accounts[3]
	profile, err := p.loadProfile(acc, owner)
	if err != nil {
		return err
	}
	closedAt := ctx.Now().Unix()
	if err := framework.CreatePDA(owner, tombstone, p.ID, tombstoneSeeds(profile.Owner), func(bump uint8) account.Record {
		return &ProfileTombstone{OriginalOwner: profile.Owner, ClosedAt: closedAt, Bump: bump}
	}); err != nil {
		return err
	}
	if err := p.close(acc, recipient); err != nil {
		return err
	}
	log.Infof("SECURE: Closed profile %v with tombstone %v", acc.Key, tombstone.Key)
	return nil
}

// accounts: user account
func (p *Program) accrueRewards(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(1); err != nil {
		return err
	}
	acc := ctx.Accounts[0]
	user, err := p.loadUser(acc)
	if err != nil {
		return err
	}
	if user.RewardsAccrued, err = safemath.CheckedAdd(user.RewardsAccrued, args.Amount); err != nil {
		return err
	}
	return account.Store(acc, user)
}

// claimRewards returns the accrued rewards and resets them.
// accounts: user account, owner (signer)
func (p *Program) claimRewards(ctx *state.Context, _ []byte) error {
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
	rewards := user.RewardsAccrued
	user.RewardsAccrued = 0
	if err := account.Store(acc, user); err != nil {
		return err
	}
	log.Infof("Claimed %d rewards", rewards)
	framework.ReturnU64(ctx, rewards)
	return nil
}

func (p *Program) create(method string, args interface{}, target, payer solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, method, args,
		state.Writable(target, false),
		state.Writable(payer, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) InitializeUserAccount(owner solana.PublicKey) (state.Instruction, error) {
	user, err := p.UserAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return p.create("initialize_user_account", nil, user, owner)
}

func (p *Program) InitializeConfig(admin solana.PublicKey, feeBps uint16) (state.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return state.Instruction{}, err
	}
	return p.create("initialize_config", &FeeArgs{FeeBps: feeBps}, config, admin)
}

func (p *Program) InitializeProfile(owner solana.PublicKey) (state.Instruction, error) {
	profile, err := p.ProfileAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	tombstone, err := p.TombstoneAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_profile", nil,
		state.Writable(profile, false),
		state.Readonly(tombstone, false),
		state.Writable(owner, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

// Close closes the user account of owner. signer pays out to recipient.
func (p *Program) Close(v harness.Variant, owner, recipient, signer solana.PublicKey) (state.Instruction, error) {
	return p.closeIx(v.Method("close"), owner, recipient, signer)
}

// CloseChecked closes the user account of owner, with the authority check in the secure variant.
func (p *Program) CloseChecked(v harness.Variant, owner, recipient, signer solana.PublicKey) (state.Instruction, error) {
	method := "close_no_auth_check"
	if v == harness.Secure {
		method = "close_with_auth_check"
	}
	return p.closeIx(method, owner, recipient, signer)
}

func (p *Program) closeIx(method string, owner, recipient, signer solana.PublicKey) (state.Instruction, error) {
	user, err := p.UserAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, method, nil,
		state.Writable(user, false),
		state.Writable(recipient, false),
		state.Readonly(signer, true),
	)
}

func (p *Program) ReadConfig(v harness.Variant, config solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("read_config"), nil, state.Readonly(config, false))
}

func (p *Program) CloseProfile(v harness.Variant, owner, recipient solana.PublicKey) (state.Instruction, error) {
	profile, err := p.ProfileAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	if v == harness.Vulnerable {
		return state.NewInstruction(p.ID, "close_profile_vulnerable", nil,
			state.Writable(profile, false),
			state.Writable(recipient, false),
			state.Readonly(owner, true),
		)
	}
	tombstone, err := p.TombstoneAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "close_profile_secure", nil,
		state.Writable(profile, false),
		state.Writable(tombstone, false),
		state.Writable(recipient, false),
		state.Writable(owner, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) AccrueRewards(owner solana.PublicKey, amount uint64) (state.Instruction, error) {
	user, err := p.UserAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "accrue_rewards", &AmountArgs{Amount: amount}, state.Writable(user, false))
}

func (p *Program) ClaimRewards(owner solana.PublicKey) (state.Instruction, error) {
	user, err := p.UserAddress(owner)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "claim_rewards", nil,
		state.Writable(user, false),
		state.Readonly(owner, true),
	)
}
