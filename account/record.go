package account

import (
	"bytes"
	"crypto/sha256"
	"reflect"

	"github.com/gagarinchain/accountguard/common"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const DiscriminatorSize = 8

var (
	ErrAccountTooSmall = errors.New("account data is too small for record")
)

// Record is a plain data record stored behind an 8 byte type discriminator.
// Distinct record types must report distinct names even when their layouts are identical.
type Record interface {
	AccountName() string
}

// Discriminator returns the first 8 bytes of sha256("account:" + name).
func Discriminator(name string) [DiscriminatorSize]byte {
	h := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], h[:DiscriminatorSize])
	return d
}

func DiscriminatorOf(r Record) [DiscriminatorSize]byte {
	return Discriminator(r.AccountName())
}

// Encode serializes r as discriminator followed by its borsh payload.
func Encode(r Record) ([]byte, error) {
	d := DiscriminatorOf(r)
	buf := bytes.NewBuffer(append([]byte(nil), d[:]...))
	if err := bin.NewBorshEncoder(buf).Encode(reflect.Indirect(reflect.ValueOf(r)).Interface()); err != nil {
		return nil, errors.Wrapf(err, "can't encode %v", r.AccountName())
	}
	return buf.Bytes(), nil
}

// Space returns the number of bytes needed to hold r.
func Space(r Record) (uint64, error) {
	b, err := Encode(r)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}

// Load decodes acc into out. The typed view is only produced when the account carries a type tag,
// is owned by programID and the tag is the one of out; no field is read before that.
func Load(acc *Account, programID solana.PublicKey, out Record) error {
	if !hasTag(acc.Data) {
		return errors.Wrapf(common.ErrAccountNotInitialized, "%v at %v", out.AccountName(), acc.Key)
	}
	if !acc.Owner.Equals(programID) {
		return errors.Wrapf(common.ErrInvalidOwner, "%v is owned by %v, expected %v", acc.Key, acc.Owner, programID)
	}
	d := DiscriminatorOf(out)
	if !bytes.Equal(acc.Data[:DiscriminatorSize], d[:]) {
		return errors.Wrapf(common.ErrTypeMismatch, "%v is not a %v", acc.Key, out.AccountName())
	}
	if err := bin.NewBorshDecoder(acc.Data[DiscriminatorSize:]).Decode(out); err != nil {
		log.Warningf("Can't decode %v at %v: %v", out.AccountName(), acc.Key, err)
		return errors.Wrapf(common.ErrTypeMismatch, "can't decode %v: %v", out.AccountName(), err)
	}
	return nil
}

// Store writes r back into the already allocated payload of acc.
func Store(acc *Account, r Record) error {
	b, err := Encode(r)
	if err != nil {
		return err
	}
	if len(b) > len(acc.Data) {
		return errors.Wrapf(ErrAccountTooSmall, "%v needs %d bytes, %v has %d", r.AccountName(), len(b), acc.Key, len(acc.Data))
	}
	copy(acc.Data, b)
	return nil
}

// Init assigns acc to programID and stamps r with its discriminator, allocating when needed.
func Init(acc *Account, programID solana.PublicKey, r Record) error {
	b, err := Encode(r)
	if err != nil {
		return err
	}
	if len(acc.Data) < len(b) {
		acc.Data = make([]byte, len(b))
	}
	acc.Owner = programID
	copy(acc.Data, b)
	return nil
}

// hasTag reports whether data starts with a nonzero type tag.
func hasTag(data []byte) bool {
	if len(data) < DiscriminatorSize {
		return false
	}
	for _, b := range data[:DiscriminatorSize] {
		if b != 0 {
			return true
		}
	}
	return false
}
