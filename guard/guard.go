// Package guard holds the account validation rules. Every rule is an independent predicate over
// host supplied account descriptors; handlers select the subset they need and abort on the first
// failure before mutating anything.
package guard

import (
	"bytes"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("guard")

// RequireSigner passes when the host reports acc as a signer of the current request.
func RequireSigner(acc *account.Account) error {
	if !acc.IsSigner {
		return errors.Wrapf(common.ErrMissingSignature, "%v", acc.Key)
	}
	return nil
}

// RequireAuthority passes when acc signed the request and is the expected authority.
// Field equality alone is never enough.
func RequireAuthority(acc *account.Account, expected solana.PublicKey) error {
	if err := RequireSigner(acc); err != nil {
		return err
	}
	if !acc.Key.Equals(expected) {
		return errors.Wrapf(common.ErrUnauthorized, "%v is not %v", acc.Key, expected)
	}
	return nil
}

// RequireOwner passes when acc's storage is owned by programID.
func RequireOwner(acc *account.Account, programID solana.PublicKey) error {
	if !acc.Owner.Equals(programID) {
		return errors.Wrapf(common.ErrInvalidOwner, "%v is owned by %v, expected %v", acc.Key, acc.Owner, programID)
	}
	return nil
}

// RequireDiscriminator passes when data starts with tag. A missing or all zero tag means the
// account was never initialized, any other tag means it holds a different type.
func RequireDiscriminator(data []byte, tag [account.DiscriminatorSize]byte) error {
	if len(data) < account.DiscriminatorSize || isZero(data[:account.DiscriminatorSize]) {
		return common.ErrAccountNotInitialized
	}
	if !bytes.Equal(data[:account.DiscriminatorSize], tag[:]) {
		return errors.Wrapf(common.ErrTypeMismatch, "tag %x, expected %x", data[:account.DiscriminatorSize], tag)
	}
	return nil
}

// RequireProgram passes when acc is executable and is exactly the pinned program.
func RequireProgram(acc *account.Account, expected solana.PublicKey) error {
	if !acc.IsExecutable {
		return errors.Wrapf(common.ErrInvalidProgram, "%v is not executable", acc.Key)
	}
	if !acc.Key.Equals(expected) {
		return errors.Wrapf(common.ErrInvalidProgram, "%v, expected %v", acc.Key, expected)
	}
	return nil
}

// RequireTokenOwner passes when the token account's authority field is the expected owner.
func RequireTokenOwner(token *account.TokenAccount, expected solana.PublicKey) error {
	if !token.Owner.Equals(expected) {
		return errors.Wrapf(common.ErrTokenAccountOwnerMismatch, "token owner %v, expected %v", token.Owner, expected)
	}
	return nil
}

// RequireUninitialized passes when the address holds no account, or holds storage owned by programID
// that was never stamped with a type tag. It composes the owner and discriminator checks, so a data
// carried "initialized" flag is never consulted.
func RequireUninitialized(acc *account.Account, programID solana.PublicKey) error {
	if acc.IsVacant() {
		return nil
	}
	if err := RequireOwner(acc, programID); err != nil {
		return err
	}
	if len(acc.Data) >= account.DiscriminatorSize && !isZero(acc.Data[:account.DiscriminatorSize]) {
		return errors.Wrapf(common.ErrAlreadyInitialized, "%v", acc.Key)
	}
	return nil
}

// RequireNoTombstone passes unless a tombstone record of programID decodes at the tombstone address.
// Lamports or foreign data parked there do not count.
func RequireNoTombstone(tombstone *account.Account, programID solana.PublicKey, rec account.Record) error {
	if err := account.Load(tombstone, programID, rec); err != nil {
		return nil
	}
	log.Infof("Tombstone %v blocks re-creation", tombstone.Key)
	return errors.Wrapf(common.ErrAlreadyInitialized, "tombstone %v exists", tombstone.Key)
}

// RequireClosed is the postcondition of a close: nothing is left at the address that a later step
// could revive.
func RequireClosed(acc *account.Account) error {
	if acc.Lamports != 0 {
		return errors.Wrapf(common.ErrIncompleteClose, "%v still holds %d lamports", acc.Key, acc.Lamports)
	}
	if !acc.IsZeroed() {
		return errors.Wrapf(common.ErrIncompleteClose, "%v data is not zeroed", acc.Key)
	}
	if !acc.Owner.Equals(solana.SystemProgramID) {
		return errors.Wrapf(common.ErrIncompleteClose, "%v is still owned by %v", acc.Key, acc.Owner)
	}
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
