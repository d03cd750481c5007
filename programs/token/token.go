// Package token is a minimal token program: it moves amounts between token accounts of the same
// mint on the signature of the source owner.
package token

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/safemath"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("token")

const transferInstruction uint8 = 3

var ErrMintMismatch = errors.New("token accounts belong to different mints")

type transferArgs struct {
	Instruction uint8
	Amount      uint64
}

func TransferData(amount uint64) ([]byte, error) {
	return state.EncodeArgs(&transferArgs{Instruction: transferInstruction, Amount: amount})
}

// TransferMetas lists the accounts of a transfer: source, destination, owner of source.
func TransferMetas(source, destination, owner solana.PublicKey) []state.AccountMeta {
	return []state.AccountMeta{
		state.Writable(source, false),
		state.Writable(destination, false),
		state.Readonly(owner, true),
	}
}

func Transfer(source, destination, owner solana.PublicKey, amount uint64) (state.Instruction, error) {
	data, err := TransferData(amount)
	if err != nil {
		return state.Instruction{}, err
	}
	return state.Instruction{ProgramID: solana.TokenProgramID, Accounts: TransferMetas(source, destination, owner), Data: data}, nil
}

// Process handles transfer instructions.
func Process(ctx *state.Context) error {
	args := &transferArgs{}
	if err := state.DecodeArgs(ctx.Data, args); err != nil {
		return err
	}
	if args.Instruction != transferInstruction {
		return errors.Wrapf(state.ErrInvalidInstruction, "token instruction %d", args.Instruction)
	}
	if err := ctx.Require(3); err != nil {
		return err
	}
	srcAcc, dstAcc, owner := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2]

	src, err := account.LoadTokenAccount(srcAcc)
	if err != nil {
		return err
	}
	dst, err := account.LoadTokenAccount(dstAcc)
	if err != nil {
		return err
	}
	if err := guard.RequireSigner(owner); err != nil {
		return err
	}
	if err := guard.RequireTokenOwner(src, owner.Key); err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return errors.Wrapf(ErrMintMismatch, "%v and %v", srcAcc.Key, dstAcc.Key)
	}
	if src.State == account.TokenStateFrozen || dst.State == account.TokenStateFrozen {
		return errors.Wrapf(common.ErrUnauthorized, "frozen token account")
	}

	if src.Amount, err = safemath.CheckedSub(src.Amount, args.Amount); err != nil {
		return err
	}
	if srcAcc.Key.Equals(dstAcc.Key) {
		return nil
	}
	if dst.Amount, err = safemath.CheckedAdd(dst.Amount, args.Amount); err != nil {
		return err
	}
	if err := account.StoreTokenAccount(srcAcc, src); err != nil {
		return err
	}
	log.Debugf("Transferred %d from %v to %v", args.Amount, srcAcc.Key, dstAcc.Key)
	return account.StoreTokenAccount(dstAcc, dst)
}

// Balance returns the amount held by a token account.
func Balance(acc *account.Account) (uint64, error) {
	t, err := account.LoadTokenAccount(acc)
	if err != nil {
		return 0, err
	}
	return t.Amount, nil
}

// NewAccount returns an initialized token account at a fresh address.
func NewAccount(mint, owner solana.PublicKey, amount uint64) (*account.Account, error) {
	return account.NewTokenAccount(solana.NewWallet().PublicKey(), mint, owner, amount)
}
