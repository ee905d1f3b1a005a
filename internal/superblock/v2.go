package superblock

import (
	"encoding/binary"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
)

/*
Version 2 and 3 HDF5 superblock, after the 8-byte signature:

	8   1  version
	9   1  size of offsets (O)
	10  1  size of lengths
	11  1  file consistency flags
	12  O  base address
	    O  superblock extension address
	    O  end of file address
	    O  root group object header address
	    4  checksum of everything before it
*/

// readV2 parses a version 2 or 3 superblock starting at off and verifies
// its checksum.
func readV2(r io.ReaderAt, off int64, version uint8) (*HDF5, error) {
	var sizes [2]byte
	if _, err := r.ReadAt(sizes[:], off+9); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb := &HDF5{
		Version:    version,
		OffsetSize: sizes[0],
		LengthSize: sizes[1],
	}
	if err := checkSizes(sb.OffsetSize, sb.LengthSize); err != nil {
		return nil, err
	}

	o := int(sb.OffsetSize)
	size := 12 + 4*o
	buf := make([]byte, size+4)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	stored := binary.LittleEndian.Uint32(buf[size:])
	if !binpkg.VerifyLookup3(buf[:size], stored) {
		return nil, fmt.Errorf("%w: HDF5 superblock checksum mismatch", ErrInvalidSuperblock)
	}

	field := func(i int) uint64 {
		return binpkg.DecodeUint(buf[12+i*o : 12+(i+1)*o])
	}
	sb.BaseAddress = field(0)
	sb.EOFAddress = field(2)
	sb.RootAddress = field(3)
	return sb, nil
}
