package guard

import (
	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// FindPDA returns the canonical program derived address for seeds, i.e. the one with the
// highest bump that falls off the curve.
func FindPDA(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, errors.Wrapf(common.ErrInvalidPDA, "can't derive: %v", err)
	}
	return addr, bump, nil
}

// RequirePDA passes when acc sits at the address derived from seeds and bump, and bump is the
// canonical one. A non canonical bump is rejected even when it re-derives acc's address.
func RequirePDA(acc *account.Account, seeds [][]byte, bump uint8, programID solana.PublicKey) error {
	derived, err := solana.CreateProgramAddress(withBump(seeds, bump), programID)
	if err != nil {
		return errors.Wrapf(common.ErrInvalidPDA, "%v with bump %d: %v", acc.Key, bump, err)
	}
	if !derived.Equals(acc.Key) {
		return errors.Wrapf(common.ErrInvalidPDA, "%v, derived %v", acc.Key, derived)
	}
	_, canonical, err := FindPDA(seeds, programID)
	if err != nil {
		return err
	}
	if bump != canonical {
		log.Warningf("Non canonical bump %d for %v, canonical is %d", bump, acc.Key, canonical)
		return errors.Wrapf(common.ErrInvalidPDA, "%v bump %d is not canonical %d", acc.Key, bump, canonical)
	}
	return nil
}

// RequireCanonicalPDA checks acc against the canonical derivation and returns its bump. Used when
// no bump has been recorded yet, e.g. on initialization.
func RequireCanonicalPDA(acc *account.Account, seeds [][]byte, programID solana.PublicKey) (uint8, error) {
	addr, bump, err := FindPDA(seeds, programID)
	if err != nil {
		return 0, err
	}
	if !addr.Equals(acc.Key) {
		return 0, errors.Wrapf(common.ErrInvalidPDA, "%v, derived %v", acc.Key, addr)
	}
	return bump, nil
}

// SignerSeeds appends the bump to seeds in the form expected by signed invocations.
func SignerSeeds(seeds [][]byte, bump uint8) [][]byte {
	return withBump(seeds, bump)
}

func withBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{bump})
}
