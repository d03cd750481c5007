// Package cpi is the arbitrary cross program invocation scenario: handlers that call whatever
// program account they are given, in places while lending it a derived signer.
package cpi

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/programs/token"
	"github.com/gagarinchain/accountguard/safemath"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("cpi")

var ErrNoPrice = errors.New("oracle returned no price")

var (
	ProgramID       = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnV")
	SwapProgramID   = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	OracleProgramID = solana.MustPublicKeyFromBase58("FsJ3A3u2vn5cTVofAjvy6y5kwABJAqYWpe4975bi2epH")
)

type Vault struct {
	Authority          solana.PublicKey
	Balance            uint64
	VaultAuthorityBump uint8
	Bump               uint8
}

func (Vault) AccountName() string { return "Vault" }

type Treasury struct {
	Admin        solana.PublicKey
	RewardAmount uint64
	Bump         uint8
}

func (Treasury) AccountName() string { return "Treasury" }

type AmountArgs struct {
	Amount uint64
}

// Program calls out to the token program and to the pinned swap and oracle programs.
type Program struct {
	ID            solana.PublicKey
	TokenProgram  solana.PublicKey
	SwapProgram   solana.PublicKey
	OracleProgram solana.PublicKey
	router        *state.Router
}

func New(id solana.PublicKey) *Program {
	p := &Program{ID: id, TokenProgram: solana.TokenProgramID, SwapProgram: SwapProgramID, OracleProgram: OracleProgramID}
	p.router = state.NewRouter("cpi").
		AddRoute("initialize_vault", p.initializeVault).
		AddRoute("initialize_treasury", p.initializeTreasury).
		AddRoute("fund_vault", p.fundVault).
		AddRoute("swap_vulnerable", p.swapVulnerable).
		AddRoute("swap_secure", p.swapSecure).
		AddRoute("transfer_tokens_vulnerable", p.transferTokensVulnerable).
		AddRoute("transfer_tokens_secure", p.transferTokensSecure).
		AddRoute("distribute_rewards_vulnerable", p.distributeRewardsVulnerable).
		AddRoute("distribute_rewards_secure", p.distributeRewardsSecure).
		AddRoute("call_oracle_vulnerable", p.callOracleVulnerable).
		AddRoute("call_oracle_secure", p.callOracleSecure)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func vaultSeeds(authority solana.PublicKey) [][]byte {
	return [][]byte{[]byte("vault"), authority.Bytes()}
}

func vaultAuthoritySeeds() [][]byte {
	return [][]byte{[]byte("vault_authority")}
}

func treasurySeeds() [][]byte {
	return [][]byte{[]byte("treasury")}
}

func (p *Program) address(seeds [][]byte) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(seeds, p.ID)
	return addr, err
}

func (p *Program) VaultAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	return p.address(vaultSeeds(authority))
}

// VaultAuthority is the derived signer owning the token accounts of every vault.
func (p *Program) VaultAuthority() (solana.PublicKey, error) {
	return p.address(vaultAuthoritySeeds())
}

func (p *Program) TreasuryAddress() (solana.PublicKey, error) {
	return p.address(treasurySeeds())
}

// accounts: vault, vault authority, authority (signer)
func (p *Program) initializeVault(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(3); err != nil {
		return err
	}
	vault, vaultAuthority, authority := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	authorityBump, err := guard.RequireCanonicalPDA(vaultAuthority, vaultAuthoritySeeds(), p.ID)
	if err != nil {
		return err
	}
	return framework.CreatePDA(authority, vault, p.ID, vaultSeeds(authority.Key), func(bump uint8) account.Record {
		return &Vault{Authority: authority.Key, VaultAuthorityBump: authorityBump, Bump: bump}
	})
}

// accounts: treasury, admin (signer)
func (p *Program) initializeTreasury(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	treasury, admin := ctx.Accounts[0], ctx.Accounts[1]
	return framework.CreatePDA(admin, treasury, p.ID, treasurySeeds(), func(bump uint8) account.Record {
		return &Treasury{Admin: admin.Key, RewardAmount: args.Amount, Bump: bump}
	})
}

// fundVault credits the vault record for tokens moved into the shared vault token account.
// accounts: vault, user token account, vault token account, user (signer), token program
func (p *Program) fundVault(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(5); err != nil {
		return err
	}
	vaultAcc, userTokens, vaultTokens, user, tokenProgram := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2], ctx.Accounts[3], ctx.Accounts[4]
	vault, err := p.loadVault(vaultAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(user, vault.Authority); err != nil {
		return err
	}
	if err := guard.RequireProgram(tokenProgram, p.TokenProgram); err != nil {
		return err
	}
	transfer, err := token.TransferData(args.Amount)
	if err != nil {
		return err
	}
	if err := ctx.Invoke(tokenProgram, token.TransferMetas(userTokens.Key, vaultTokens.Key, user.Key), transfer); err != nil {
		return err
	}
	if vault.Balance, err = safemath.CheckedAdd(vault.Balance, args.Amount); err != nil {
		return err
	}
	return account.Store(vaultAcc, vault)
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

// accounts: swap program, user (signer), user token account, pool token account, token program
func (p *Program) swap(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	swapProgram, user, userTokens, poolTokens, tokenProgram := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2], ctx.Accounts[3], ctx.Accounts[4]
	if err := guard.RequireSigner(user); err != nil {
		return err
	}
	metas := []state.AccountMeta{
		state.Writable(userTokens.Key, false),
		state.Writable(poolTokens.Key, false),
		state.Readonly(user.Key, true),
		state.Readonly(tokenProgram.Key, false),
	}
	return ctx.Invoke(swapProgram, metas, data)
}

func (p *Program) swapVulnerable(ctx *state.Context, data []byte) error {
	if err := ctx.Require(5); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Swapping through %v", ctx.Accounts[0].Key)
	return p.swap(ctx, data)
}

func (p *Program) swapSecure(ctx *state.Context, data []byte) error {
	if err := ctx.Require(5); err != nil {
		return err
	}
	if err := guard.RequireProgram(ctx.Accounts[0], p.SwapProgram); err != nil {
		return err
	}
	log.Infof("SECURE: Swapping through %v", ctx.Accounts[0].Key)
	return p.swap(ctx, data)
}

// accounts: vault, vault authority, token program, vault token account, user token account, authority (signer)
func (p *Program) transferTokens(ctx *state.Context, data []byte) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	vaultAcc, vaultAuthority, tokenProgram := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	vaultTokens, userTokens, authority := ctx.Accounts[3], ctx.Accounts[4], ctx.Accounts[5]

	vault, err := p.loadVault(vaultAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireAuthority(authority, vault.Authority); err != nil {
		return err
	}
	if err := guard.RequirePDA(vaultAuthority, vaultAuthoritySeeds(), vault.VaultAuthorityBump, p.ID); err != nil {
		return err
	}
	if vault.Balance, err = safemath.CheckedSub(vault.Balance, args.Amount); err != nil {
		return err
	}

	transfer, err := token.TransferData(args.Amount)
	if err != nil {
		return err
	}
	signer := guard.SignerSeeds(vaultAuthoritySeeds(), vault.VaultAuthorityBump)
	metas := append(token.TransferMetas(vaultTokens.Key, userTokens.Key, vaultAuthority.Key), remaining(ctx, 6)...)
	if err := ctx.Invoke(tokenProgram, metas, transfer, signer); err != nil {
		return err
	}
	return account.Store(vaultAcc, vault)
}

func (p *Program) transferTokensVulnerable(ctx *state.Context, data []byte) error {
	if err := ctx.Require(6); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Transferring through %v", ctx.Accounts[2].Key)
	return p.transferTokens(ctx, data)
}

func (p *Program) transferTokensSecure(ctx *state.Context, data []byte) error {
	if err := ctx.Require(6); err != nil {
		return err
	}
	if err := guard.RequireProgram(ctx.Accounts[2], p.TokenProgram); err != nil {
		return err
	}
	log.Infof("SECURE: Transferring through %v", ctx.Accounts[2].Key)
	return p.transferTokens(ctx, data)
}

// accounts: treasury, reward program, admin (signer), treasury token account, user token account
func (p *Program) distributeRewardsVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(5); err != nil {
		return err
	}
	treasuryAcc, rewardProgram, admin := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	treasury := &Treasury{}
	if err := account.Load(treasuryAcc, p.ID, treasury); err != nil {
		return err
	}
	if err := guard.RequireSigner(admin); err != nil {
		return err
	}
	log.Infof("VULNERABLE: Distributing %d through %v", treasury.RewardAmount, rewardProgram.Key)
	return p.distribute(ctx, treasury)
}

func (p *Program) distributeRewardsSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(5); err != nil {
		return err
	}
	treasuryAcc, rewardProgram, admin := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]
	if err := guard.RequireProgram(rewardProgram, p.TokenProgram); err != nil {
		return err
	}
	treasury := &Treasury{}
	if err := account.Load(treasuryAcc, p.ID, treasury); err != nil {
		return err
	}
	if err := guard.RequirePDA(treasuryAcc, treasurySeeds(), treasury.Bump, p.ID); err != nil {
		return err
	}
	if err := guard.RequireAuthority(admin, treasury.Admin); err != nil {
		return err
	}
	log.Infof("SECURE: Distributing %d", treasury.RewardAmount)
	return p.distribute(ctx, treasury)
}

func (p *Program) distribute(ctx *state.Context, treasury *Treasury) error {
	treasuryAcc, rewardProgram := ctx.Accounts[0], ctx.Accounts[1]
	treasuryTokens, userTokens := ctx.Accounts[3], ctx.Accounts[4]
	transfer, err := token.TransferData(treasury.RewardAmount)
	if err != nil {
		return err
	}
	signer := guard.SignerSeeds(treasurySeeds(), treasury.Bump)
	metas := append(token.TransferMetas(treasuryTokens.Key, userTokens.Key, treasuryAcc.Key), remaining(ctx, 5)...)
	return ctx.Invoke(rewardProgram, metas, transfer, signer)
}

// remaining forwards the accounts past the first n to the callee as read only.
func remaining(ctx *state.Context, n int) []state.AccountMeta {
	var metas []state.AccountMeta
	for _, acc := range ctx.Accounts[n:] {
		metas = append(metas, state.Readonly(acc.Key, false))
	}
	return metas
}

// accounts: oracle program
func (p *Program) callOracleVulnerable(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	price, err := p.queryOracle(ctx)
	if err != nil {
		return err
	}
	log.Infof("VULNERABLE: Oracle price %d", price)
	return nil
}

func (p *Program) callOracleSecure(ctx *state.Context, _ []byte) error {
	if err := ctx.Require(1); err != nil {
		return err
	}
	if err := guard.RequireProgram(ctx.Accounts[0], p.OracleProgram); err != nil {
		return err
	}
	price, err := p.queryOracle(ctx)
	if err != nil {
		return err
	}
	log.Infof("SECURE: Oracle price %d", price)
	return nil
}

func (p *Program) queryOracle(ctx *state.Context) (uint64, error) {
	ctx.SetReturnData(nil)
	if err := ctx.Invoke(ctx.Accounts[0], nil, nil); err != nil {
		return 0, err
	}
	data := ctx.ReturnData()
	if len(data) < 8 {
		return 0, errors.Wrapf(ErrNoPrice, "%v", ctx.Accounts[0].Key)
	}
	price := framework.DecodeU64(data)
	framework.ReturnU64(ctx, price)
	return price, nil
}

func (p *Program) InitializeVault(authority solana.PublicKey) (state.Instruction, error) {
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	vaultAuthority, err := p.VaultAuthority()
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_vault", nil,
		state.Writable(vault, false),
		state.Readonly(vaultAuthority, false),
		state.Writable(authority, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) InitializeTreasury(admin solana.PublicKey, rewardAmount uint64) (state.Instruction, error) {
	treasury, err := p.TreasuryAddress()
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_treasury", &AmountArgs{Amount: rewardAmount},
		state.Writable(treasury, false),
		state.Writable(admin, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

func (p *Program) FundVault(authority, userTokens, vaultTokens solana.PublicKey, amount uint64) (state.Instruction, error) {
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "fund_vault", &AmountArgs{Amount: amount},
		state.Writable(vault, false),
		state.Writable(userTokens, false),
		state.Writable(vaultTokens, false),
		state.Readonly(authority, true),
		state.Readonly(p.TokenProgram, false),
	)
}

func (p *Program) Swap(v harness.Variant, swapProgram, user, userTokens, poolTokens solana.PublicKey, amount uint64) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("swap"), &AmountArgs{Amount: amount},
		state.Readonly(swapProgram, false),
		state.Readonly(user, true),
		state.Writable(userTokens, false),
		state.Writable(poolTokens, false),
		state.Readonly(p.TokenProgram, false),
	)
}

func (p *Program) TransferTokens(v harness.Variant, authority, tokenProgram, vaultTokens, userTokens solana.PublicKey, amount uint64) (state.Instruction, error) {
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	vaultAuthority, err := p.VaultAuthority()
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, v.Method("transfer_tokens"), &AmountArgs{Amount: amount},
		state.Writable(vault, false),
		state.Readonly(vaultAuthority, false),
		state.Readonly(tokenProgram, false),
		state.Writable(vaultTokens, false),
		state.Writable(userTokens, false),
		state.Readonly(authority, true),
		state.Readonly(p.TokenProgram, false),
	)
}

func (p *Program) DistributeRewards(v harness.Variant, rewardProgram, admin, treasuryTokens, userTokens solana.PublicKey) (state.Instruction, error) {
	treasury, err := p.TreasuryAddress()
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, v.Method("distribute_rewards"), nil,
		state.Writable(treasury, false),
		state.Readonly(rewardProgram, false),
		state.Readonly(admin, true),
		state.Writable(treasuryTokens, false),
		state.Writable(userTokens, false),
		state.Readonly(p.TokenProgram, false),
	)
}

func (p *Program) CallOracle(v harness.Variant, oracle solana.PublicKey) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("call_oracle"), nil,
		state.Readonly(oracle, false),
	)
}
