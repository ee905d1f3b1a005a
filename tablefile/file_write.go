package tablefile

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-h5table/internal/alloc"
	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
	"github.com/robert-malhotra/go-h5table/internal/object"
	"github.com/robert-malhotra/go-h5table/internal/superblock"
)

// create initializes an empty file: superblock followed by the root group.
func create(path string, mode Mode, osFile *os.File, options *fileOptions) (*File, error) {
	sb := superblock.New()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.FileConsistencyFlags = superblock.FlagOpenForWrite

	f := newFile(path, mode, osFile, options)
	f.superblock = sb
	f.writer = binary.NewWriter(osFile, sb.ReaderConfig())
	f.reader = binary.NewReader(osFile, sb.ReaderConfig())

	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	if _, err := sb.Write(f.writer.At(0)); err != nil {
		return fail(fmt.Errorf("writing superblock: %w", err))
	}
	f.allocator = alloc.New(sb.FirstBlockAddress)

	if _, _, err := f.appendBlock(object.KindGroup, object.NewGroupHeader("/")); err != nil {
		return fail(fmt.Errorf("writing root group: %w", err))
	}
	f.root = newGroup(f, "/")
	f.nodes["/"] = f.root

	return f, nil
}

// appendBlock encodes a block and writes it at the end of the file.
func (f *File) appendBlock(kind object.Kind, msgs []message.Message) (uint64, int64, error) {
	data, err := object.Encode(kind, msgs, f.superblock.ReaderConfig())
	if err != nil {
		return 0, 0, err
	}

	addr := f.allocator.AllocTagged(uint64(len(data)), kind.String())
	if err := f.writer.At(int64(addr)).WriteBytes(data); err != nil {
		// EOF stays at addr; the next block overwrites the partial one.
		f.allocator.Truncate(addr)
		return 0, 0, err
	}
	return addr, int64(len(data)), nil
}

// markOpen sets or clears the open-for-write flag in the superblock.
func (f *File) markOpen(open bool) error {
	if open {
		f.superblock.FileConsistencyFlags |= superblock.FlagOpenForWrite
	} else {
		f.superblock.FileConsistencyFlags &^= superblock.FlagOpenForWrite
	}
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// checkWritable returns an error unless the file accepts changes.
func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.mode.Writable() {
		return ErrReadOnly
	}
	return nil
}

// Flush writes the pending rows of every table and syncs the file.
func (f *File) Flush() error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	for _, t := range f.tables {
		if err := t.Flush(); err != nil {
			return err
		}
	}
	return f.file.Sync()
}
