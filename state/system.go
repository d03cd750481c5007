package state

import (
	"bytes"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/safemath"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const systemTransfer uint32 = 2

var ErrInvalidInstruction = errors.New("invalid instruction data")

type transferArgs struct {
	Instruction uint32
	Lamports    uint64
}

// CreateAccount funds target from payer to the rent exempt minimum for space, allocates the
// payload and assigns target to owner. target must not hold an account yet.
func CreateAccount(payer, target *account.Account, space uint64, owner solana.PublicKey) error {
	if !payer.IsSigner {
		return errors.Wrapf(common.ErrMissingSignature, "payer %v", payer.Key)
	}
	if !target.IsVacant() || len(target.Data) > 0 {
		return errors.Wrapf(common.ErrAlreadyInitialized, "%v is in use", target.Key)
	}
	rent, err := account.RentExemptMinimum(space)
	if err != nil {
		return err
	}
	need := uint64(0)
	if target.Lamports < rent {
		need = rent - target.Lamports
	}
	if err := Transfer(payer, target, need); err != nil {
		return err
	}
	target.Data = make([]byte, space)
	target.Owner = owner
	log.Debugf("Created %v with %d bytes owned by %v", target.Key, space, owner)
	return nil
}

// CloseAccount moves every lamport of acc to recipient, zeroes its payload and hands it back to
// the system program.
func CloseAccount(acc, recipient *account.Account) error {
	if err := Transfer(acc, recipient, acc.Lamports); err != nil {
		return err
	}
	for i := range acc.Data {
		acc.Data[i] = 0
	}
	acc.Data = nil
	acc.Owner = solana.SystemProgramID
	return nil
}

// Transfer moves lamports between two accounts of the working set with checked arithmetic.
func Transfer(from, to *account.Account, lamports uint64) error {
	debited, err := safemath.CheckedSub(from.Lamports, lamports)
	if err != nil {
		return errors.Wrapf(err, "%v has %d, wants %d", from.Key, from.Lamports, lamports)
	}
	credited, err := safemath.CheckedAdd(to.Lamports, lamports)
	if err != nil {
		return err
	}
	from.Lamports = debited
	to.Lamports = credited
	return nil
}

// TransferIx builds a system program transfer of lamports from a signing wallet.
func TransferIx(from, to solana.PublicKey, lamports uint64) Instruction {
	buf := new(bytes.Buffer)
	_ = bin.NewBorshEncoder(buf).Encode(transferArgs{Instruction: systemTransfer, Lamports: lamports})
	return Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []AccountMeta{Writable(from, true), Writable(to, false)},
		Data:      buf.Bytes(),
	}
}

func processSystem(ctx *Context) error {
	args := &transferArgs{}
	if err := bin.NewBorshDecoder(ctx.Data).Decode(args); err != nil || args.Instruction != systemTransfer {
		return errors.Wrapf(ErrInvalidInstruction, "system program")
	}
	if err := ctx.Require(2); err != nil {
		return err
	}
	from, to := ctx.Accounts[0], ctx.Accounts[1]
	if !from.IsSigner {
		return errors.Wrapf(common.ErrMissingSignature, "transfer from %v", from.Key)
	}
	if !from.Owner.Equals(solana.SystemProgramID) || len(from.Data) > 0 {
		return errors.Wrapf(common.ErrInvalidOwner, "transfer from %v owned by %v", from.Key, from.Owner)
	}
	return Transfer(from, to, args.Lamports)
}
