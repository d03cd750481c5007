// Package signer is the missing signer check scenario: a vault whose withdraw compares the stored
// authority with the passed account but, in the vulnerable variant, never asks for its signature.
package signer

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("signer")

var ProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")

type Vault struct {
	Authority solana.PublicKey
	Balance   uint64
	Bump      uint8
}

func (Vault) AccountName() string { return "Vault" }

type InitializeArgs struct {
	InitialBalance uint64
}

type WithdrawArgs struct {
	Amount uint64
}

type Program struct {
	ID     solana.PublicKey
	router *state.Router
}

func New(id solana.PublicKey) *Program {
	p := &Program{ID: id}
	p.router = state.NewRouter("signer").
		AddRoute("initialize_vault", p.initializeVault).
		AddRoute("withdraw_vulnerable", p.withdrawVulnerable).
		AddRoute("withdraw_secure", p.withdrawSecure)
	return p
}

func (p *Program) Process(ctx *state.Context) error {
	return p.router.Process(ctx)
}

func vaultSeeds(authority solana.PublicKey) [][]byte {
	return [][]byte{[]byte("vault"), authority.Bytes()}
}

func (p *Program) VaultAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := guard.FindPDA(vaultSeeds(authority), p.ID)
	return addr, err
}

// accounts: vault, authority (signer, payer)
func (p *Program) initializeVault(ctx *state.Context, data []byte) error {
	args := &InitializeArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	vault, authority := ctx.Accounts[0], ctx.Accounts[1]

	err := framework.CreatePDA(authority, vault, p.ID, vaultSeeds(authority.Key), func(bump uint8) account.Record {
		return &Vault{Authority: authority.Key, Balance: args.InitialBalance, Bump: bump}
	})
	if err != nil {
		return err
	}
	return state.Transfer(authority, vault, args.InitialBalance)
}

// accounts: vault, authority, recipient
func (p *Program) withdrawVulnerable(ctx *state.Context, data []byte) error {
	args := &WithdrawArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(3); err != nil {
		return err
	}
	vaultAcc, authority, recipient := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]

	vault := &Vault{}
	if err := account.Load(vaultAcc, p.ID, vault); err != nil {
		return err
	}
	if !vault.Authority.Equals(authority.Key) {
		return errors.Wrapf(common.ErrUnauthorized, "%v is not the authority of %v", authority.Key, vaultAcc.Key)
	}

	amount, err := p.withdraw(vaultAcc, vault, recipient, args.Amount)
	if err != nil {
		return err
	}
	log.Infof("VULNERABLE: Transferred %d lamports", amount)
	return nil
}

func (p *Program) withdrawSecure(ctx *state.Context, data []byte) error {
	args := &WithdrawArgs{}
	if err := state.DecodeArgs(data, args); err != nil {
		return err
	}
	if err := ctx.Require(3); err != nil {
		return err
	}
	vaultAcc, authority, recipient := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]

	vault := &Vault{}
	if err := account.Load(vaultAcc, p.ID, vault); err != nil {
		return err
	}
	if err := guard.RequireAuthority(authority, vault.Authority); err != nil {
		return err
	}

	amount, err := p.withdraw(vaultAcc, vault, recipient, args.Amount)
	if err != nil {
		return err
	}
	log.Infof("SECURE: Transferred %d lamports", amount)
	return nil
}

// withdraw moves at most the recorded balance to recipient.
func (p *Program) withdraw(vaultAcc *account.Account, vault *Vault, recipient *account.Account, amount uint64) (uint64, error) {
	if amount > vault.Balance {
		amount = vault.Balance
	}
	vault.Balance -= amount
	if err := state.Transfer(vaultAcc, recipient, amount); err != nil {
		return 0, err
	}
	return amount, account.Store(vaultAcc, vault)
}

func (p *Program) InitializeVault(authority solana.PublicKey, initialBalance uint64) (state.Instruction, error) {
	vault, err := p.VaultAddress(authority)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.NewInstruction(p.ID, "initialize_vault", &InitializeArgs{InitialBalance: initialBalance},
		state.Writable(vault, false),
		state.Writable(authority, true),
		state.Readonly(solana.SystemProgramID, false),
	)
}

// Withdraw builds a withdraw in variant v. signed controls whether authority signs.
func (p *Program) Withdraw(v harness.Variant, vault, authority, recipient solana.PublicKey, amount uint64, signed bool) (state.Instruction, error) {
	return state.NewInstruction(p.ID, v.Method("withdraw"), &WithdrawArgs{Amount: amount},
		state.Writable(vault, false),
		state.Readonly(authority, signed),
		state.Writable(recipient, false),
	)
}
