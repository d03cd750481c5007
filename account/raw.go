package account

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// The Read* helpers interpret payload bytes at fixed offsets with no type or owner check.

func ReadU64(data []byte, off int) (uint64, error) {
	if off < 0 || len(data) < off+8 {
		return 0, errors.Wrapf(ErrAccountTooSmall, "read u64 at %d of %d", off, len(data))
	}
	return binary.LittleEndian.Uint64(data[off:]), nil
}

func ReadU16(data []byte, off int) (uint16, error) {
	if off < 0 || len(data) < off+2 {
		return 0, errors.Wrapf(ErrAccountTooSmall, "read u16 at %d of %d", off, len(data))
	}
	return binary.LittleEndian.Uint16(data[off:]), nil
}

func ReadByte(data []byte, off int) (byte, error) {
	if off < 0 || len(data) < off+1 {
		return 0, errors.Wrapf(ErrAccountTooSmall, "read byte at %d of %d", off, len(data))
	}
	return data[off], nil
}

func ReadKey(data []byte, off int) (solana.PublicKey, error) {
	if off < 0 || len(data) < off+solana.PublicKeyLength {
		return solana.PublicKey{}, errors.Wrapf(ErrAccountTooSmall, "read key at %d of %d", off, len(data))
	}
	return solana.PublicKeyFromBytes(data[off : off+solana.PublicKeyLength]), nil
}

func WriteU64(data []byte, off int, v uint64) error {
	if off < 0 || len(data) < off+8 {
		return errors.Wrapf(ErrAccountTooSmall, "write u64 at %d of %d", off, len(data))
	}
	binary.LittleEndian.PutUint64(data[off:], v)
	return nil
}
