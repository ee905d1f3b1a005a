package superblock

import (
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/h5test"
)

func TestReadHDF5V0(t *testing.T) {
	data := h5test.SuperblockV0(4096, 0x60, 0x200, 0x300)

	sb, err := ReadHDF5(binpkg.Bytes(data))
	if err != nil {
		t.Fatalf("ReadHDF5 failed: %v", err)
	}
	if sb.Version != 0 || sb.OffsetSize != 8 || sb.LengthSize != 8 {
		t.Errorf("unexpected header fields %+v", sb)
	}
	if sb.EOFAddress != 4096 || sb.RootAddress != 0x60 {
		t.Errorf("EOF 0x%x root 0x%x", sb.EOFAddress, sb.RootAddress)
	}
	if !sb.RootCached || sb.RootBTree != 0x200 || sb.RootHeap != 0x300 {
		t.Errorf("root cache not decoded: %+v", sb)
	}
	if cfg := sb.ReaderConfig(); cfg.OffsetSize != 8 || cfg.LengthSize != 8 {
		t.Errorf("ReaderConfig = %+v", cfg)
	}
}

func TestReadHDF5V0WithoutCache(t *testing.T) {
	sb, err := ReadHDF5(binpkg.Bytes(h5test.SuperblockV0(4096, 0x60, h5test.Undefined, 0)))
	if err != nil {
		t.Fatalf("ReadHDF5 failed: %v", err)
	}
	if sb.RootCached {
		t.Error("root cache reported without cache type 1")
	}
}

func TestReadHDF5V2(t *testing.T) {
	sb, err := ReadHDF5(binpkg.Bytes(h5test.SuperblockV2(2048, 0x30)))
	if err != nil {
		t.Fatalf("ReadHDF5 failed: %v", err)
	}
	if sb.Version != 2 || sb.EOFAddress != 2048 || sb.RootAddress != 0x30 {
		t.Errorf("unexpected superblock %+v", sb)
	}
	if sb.RootCached {
		t.Error("version 2 superblocks have no root cache")
	}
}

func TestReadHDF5V2ChecksumMismatch(t *testing.T) {
	data := h5test.SuperblockV2(2048, 0x30)
	data[20] ^= 0xFF
	if _, err := ReadHDF5(binpkg.Bytes(data)); !errors.Is(err, ErrInvalidSuperblock) {
		t.Errorf("expected ErrInvalidSuperblock, got %v", err)
	}
}

func TestReadHDF5UserBlock(t *testing.T) {
	data := make([]byte, 512)
	copy(data, "user block")
	data = append(data, h5test.SuperblockV2(2048, 0x30)...)

	if off := FindHDF5(binpkg.Bytes(data)); off != 512 {
		t.Fatalf("FindHDF5 = %d, want 512", off)
	}
	sb, err := ReadHDF5(binpkg.Bytes(data))
	if err != nil {
		t.Fatalf("ReadHDF5 failed: %v", err)
	}
	if sb.BaseAddress != 512 {
		t.Errorf("base address %d, want 512", sb.BaseAddress)
	}
}

func TestReadHDF5Errors(t *testing.T) {
	if _, err := ReadHDF5(binpkg.Bytes([]byte("not an hdf5 file"))); !errors.Is(err, ErrNotTableFile) {
		t.Errorf("expected ErrNotTableFile, got %v", err)
	}

	data := h5test.SuperblockV2(2048, 0x30)
	data[8] = 9
	if _, err := ReadHDF5(binpkg.Bytes(data)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}

	data = h5test.SuperblockV0(4096, 0x60, h5test.Undefined, 0)
	data[13] = 3
	if _, err := ReadHDF5(binpkg.Bytes(data)); !errors.Is(err, ErrInvalidSuperblock) {
		t.Errorf("expected ErrInvalidSuperblock for offset size 3, got %v", err)
	}
}

func TestFindHDF5OwnFormat(t *testing.T) {
	sb := New()
	buf := binpkg.NewBuffer(0)
	if _, err := sb.Write(buf.Writer(sb.ReaderConfig())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if off := FindHDF5(binpkg.Bytes(buf.Bytes())); off != -1 {
		t.Errorf("FindHDF5 on a table file = %d, want -1", off)
	}
}
