package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
)

// Signature identifies a table file: 0x89 H 5 T \r \n 0x1a \n
var Signature = []byte{0x89, 'H', '5', 'T', '\r', '\n', 0x1a, '\n'}

// Version is the superblock format version written by this package.
const Version = 1

// Consistency flags.
const (
	// FlagOpenForWrite is set while a writer has the file open. Finding it
	// set on open means the last writer did not close the file.
	FlagOpenForWrite uint8 = 0x01
)

// Errors
var (
	ErrNotTableFile       = errors.New("not a table file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock contains the file-level metadata stored at offset 0.
type Superblock struct {
	// Version is the superblock format version
	Version uint8

	// OffsetSize is the number of bytes used for file offsets (2, 4, or 8)
	OffsetSize uint8

	// FileConsistencyFlags contains FlagOpenForWrite
	FileConsistencyFlags uint8

	// FileID uniquely identifies the file across copies and renames
	FileID uuid.UUID

	// Created is the creation time of the file
	Created time.Time

	// FirstBlockAddress is the address of the first object block
	FirstBlockAddress uint64
}

// New returns a superblock for a new file with a fresh file ID.
func New() *Superblock {
	return &Superblock{
		Version:    Version,
		OffsetSize: 8,
		FileID:     uuid.New(),
		Created:    time.Now().UTC(),
	}
}

// Size returns the encoded size of the superblock in bytes.
// Signature(8) + Version(1) + OffsetSize(1) + Flags(1) + Reserved(1) +
// FileID(16) + Created(8) + FirstBlockAddress(offset) + Checksum(4)
func (sb *Superblock) Size() int {
	return 36 + int(sb.OffsetSize) + 4
}

// ReaderConfig returns the binary configuration described by the superblock.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{OffsetSize: int(sb.OffsetSize)}
}

// Write writes the superblock at the current writer position.
// Returns the total bytes written.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	if sb.FirstBlockAddress == 0 {
		sb.FirstBlockAddress = uint64(sb.Size())
	}

	buf := binpkg.NewBuffer(sb.Size())
	bw := buf.Writer(sb.ReaderConfig())

	if err := bw.WriteBytes(Signature); err != nil {
		return 0, err
	}
	if err := bw.WriteUint8(Version); err != nil {
		return 0, err
	}
	if err := bw.WriteUint8(sb.OffsetSize); err != nil {
		return 0, err
	}
	if err := bw.WriteUint8(sb.FileConsistencyFlags); err != nil {
		return 0, err
	}
	if err := bw.WriteZeros(1); err != nil {
		return 0, err
	}
	if err := bw.WriteBytes(sb.FileID[:]); err != nil {
		return 0, err
	}
	if err := bw.WriteUint64(uint64(sb.Created.UnixNano())); err != nil {
		return 0, err
	}
	if err := bw.WriteOffset(sb.FirstBlockAddress); err != nil {
		return 0, err
	}

	checksum := binpkg.Lookup3Checksum(buf.Bytes())
	if err := bw.WriteUint32(checksum); err != nil {
		return 0, err
	}

	if err := w.WriteBytes(buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// Read parses the superblock at offset 0.
func Read(r io.ReaderAt) (*Superblock, error) {
	head := make([]byte, 12)
	if n, err := r.ReadAt(head, 0); n < len(head) {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrNotTableFile
		}
		return nil, err
	}
	if !bytes.Equal(head[:8], Signature) {
		return nil, ErrNotTableFile
	}
	if head[8] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[8])
	}

	sb := &Superblock{
		Version:              head[8],
		OffsetSize:           head[9],
		FileConsistencyFlags: head[10],
	}
	switch sb.OffsetSize {
	case 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: offset size %d", ErrInvalidSuperblock, sb.OffsetSize)
	}

	br := binpkg.NewReader(r, sb.ReaderConfig())
	full, err := br.ReadBytes(sb.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	body := full[:len(full)-4]
	stored := binary.LittleEndian.Uint32(full[len(full)-4:])
	if computed := binpkg.Lookup3Checksum(body); stored != computed {
		return nil, fmt.Errorf("%w: checksum mismatch (stored=0x%08x, computed=0x%08x)",
			ErrInvalidSuperblock, stored, computed)
	}

	fr := binpkg.NewReader(binpkg.Bytes(body), sb.ReaderConfig()).At(12)
	id, _ := fr.ReadBytes(16)
	copy(sb.FileID[:], id)
	created, _ := fr.ReadUint64()
	sb.Created = time.Unix(0, int64(created)).UTC()
	if sb.FirstBlockAddress, err = fr.ReadOffset(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	if sb.FirstBlockAddress < uint64(sb.Size()) {
		return nil, fmt.Errorf("%w: first block address %d inside superblock", ErrInvalidSuperblock, sb.FirstBlockAddress)
	}

	return sb, nil
}
