package superblock

import (
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
)

/*
Version 0 and 1 HDF5 superblock, after the 8-byte signature:

	8   1  version
	9   1  free-space storage version
	10  1  root symbol table entry version
	11  1  reserved
	12  1  shared header message version
	13  1  size of offsets (O)
	14  1  size of lengths
	15  1  reserved
	16  2  group leaf node K
	18  2  group internal node K
	20  4  file consistency flags
	24  4  version 1 only: indexed storage K(2) reserved(2)
	    O  base address
	    O  free-space info address
	    O  end of file address
	    O  driver info block address
	       root group symbol table entry
*/

// readV0 parses a version 0 or 1 superblock starting at off.
func readV0(r io.ReaderAt, off int64, version uint8) (*HDF5, error) {
	var fixed [16]byte
	if _, err := r.ReadAt(fixed[:], off+8); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb := &HDF5{
		Version:    version,
		OffsetSize: fixed[5],
		LengthSize: fixed[6],
	}
	if err := checkSizes(sb.OffsetSize, sb.LengthSize); err != nil {
		return nil, err
	}

	pos := off + 24
	if version == 1 {
		pos += 4
	}
	br := binpkg.NewReader(r, sb.ReaderConfig()).At(pos)

	var err error
	if sb.BaseAddress, err = br.ReadOffset(); err != nil {
		return nil, err
	}
	br.Skip(int64(sb.OffsetSize)) // free-space info
	if sb.EOFAddress, err = br.ReadOffset(); err != nil {
		return nil, err
	}
	br.Skip(int64(sb.OffsetSize)) // driver info

	// Root symbol table entry: name offset, header address, cache type,
	// reserved, 16-byte scratch pad.
	br.Skip(int64(sb.OffsetSize))
	if sb.RootAddress, err = br.ReadOffset(); err != nil {
		return nil, err
	}
	cache, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	br.Skip(4)
	if cache == 1 {
		if sb.RootBTree, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		if sb.RootHeap, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		sb.RootCached = true
	}
	return sb, nil
}
