package superblock

import (
	"bytes"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
)

// HDF5Signature identifies an HDF5 file: 0x89 H D F \r \n 0x1a \n
var HDF5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// hdf5SearchOffsets are the places an HDF5 superblock may start; anything
// before it is a user block.
var hdf5SearchOffsets = []int64{0, 512, 1024, 2048}

// HDF5 is the part of an HDF5 superblock needed to read the file.
//
// Addresses in the file are relative to BaseAddress, which is the offset of
// the superblock itself unless the file says otherwise.
type HDF5 struct {
	Version     uint8
	OffsetSize  uint8
	LengthSize  uint8
	BaseAddress uint64
	EOFAddress  uint64

	// RootAddress is the object header address of the root group.
	RootAddress uint64

	// RootBTree and RootHeap are the root group's symbol table addresses
	// cached in version 0 and 1 superblocks. RootCached reports whether
	// they are set.
	RootBTree  uint64
	RootHeap   uint64
	RootCached bool
}

// ReaderConfig returns the binary configuration described by the superblock.
func (sb *HDF5) ReaderConfig() binpkg.Config {
	return binpkg.Config{OffsetSize: int(sb.OffsetSize), LengthSize: int(sb.LengthSize)}
}

// FindHDF5 returns the offset of the HDF5 signature, or -1 when r does not
// hold an HDF5 file.
func FindHDF5(r io.ReaderAt) int64 {
	sig := make([]byte, len(HDF5Signature))
	for _, off := range hdf5SearchOffsets {
		if _, err := r.ReadAt(sig, off); err != nil {
			return -1
		}
		if bytes.Equal(sig, HDF5Signature) {
			return off
		}
	}
	return -1
}

// ReadHDF5 finds and parses an HDF5 superblock. It returns ErrNotTableFile
// wrapped when no signature is found.
func ReadHDF5(r io.ReaderAt) (*HDF5, error) {
	off := FindHDF5(r)
	if off < 0 {
		return nil, fmt.Errorf("%w: no HDF5 signature", ErrNotTableFile)
	}

	var v [1]byte
	if _, err := r.ReadAt(v[:], off+8); err != nil {
		return nil, fmt.Errorf("reading superblock version: %w", err)
	}

	var (
		sb  *HDF5
		err error
	)
	switch v[0] {
	case 0, 1:
		sb, err = readV0(r, off, v[0])
	case 2, 3:
		sb, err = readV2(r, off, v[0])
	default:
		return nil, fmt.Errorf("%w: HDF5 superblock version %d", ErrUnsupportedVersion, v[0])
	}
	if err != nil {
		return nil, err
	}
	if sb.BaseAddress == 0 && off > 0 {
		sb.BaseAddress = uint64(off)
	}
	return sb, nil
}

func checkSizes(offsetSize, lengthSize uint8) error {
	cfg := binpkg.Config{OffsetSize: int(offsetSize), LengthSize: int(lengthSize)}
	if err := cfg.Validate(); err != nil || lengthSize == 0 {
		return fmt.Errorf("%w: offset size %d, length size %d", ErrInvalidSuperblock, offsetSize, lengthSize)
	}
	return nil
}
