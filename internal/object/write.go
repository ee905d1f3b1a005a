package object

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-h5table/internal/binary"
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Encode serializes a block into memory, checksum included.
func Encode(kind Kind, messages []message.Message, cfg binary.Config) ([]byte, error) {
	bodySize := 0
	for _, msg := range messages {
		bodySize += messageHeaderSize + msg.SerializedSize()
	}
	if bodySize > maxBodySize {
		return nil, fmt.Errorf("%s block body of %d bytes too large", kind, bodySize)
	}

	buf := binary.NewBuffer(prefixSize + bodySize + 4)
	bw := buf.Writer(cfg)

	if err := bw.WriteBytes(kind[:]); err != nil {
		return nil, err
	}
	if err := bw.WriteUint8(Version); err != nil {
		return nil, err
	}
	// Flags, reserved.
	if err := bw.WriteUint8(0); err != nil {
		return nil, err
	}
	if err := bw.WriteUint32(uint32(bodySize)); err != nil {
		return nil, err
	}

	for _, msg := range messages {
		size := msg.SerializedSize()
		if size > math.MaxUint32 {
			return nil, fmt.Errorf("%s message of %d bytes too large", msg.Type(), size)
		}
		if err := bw.WriteUint16(uint16(msg.Type())); err != nil {
			return nil, err
		}
		if err := bw.WriteUint32(uint32(size)); err != nil {
			return nil, err
		}
		start := bw.Pos()
		if err := msg.Serialize(bw); err != nil {
			return nil, fmt.Errorf("serializing %s message: %w", msg.Type(), err)
		}
		if written := bw.Pos() - start; written != int64(size) {
			return nil, fmt.Errorf("%s message wrote %d bytes, declared %d", msg.Type(), written, size)
		}
	}

	checksum := binary.Lookup3Checksum(buf.Bytes())
	if err := bw.WriteUint32(checksum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes a block and writes it at the writer's position.
// Returns the total bytes written.
func Write(w *binary.Writer, kind Kind, messages []message.Message) (int64, error) {
	data, err := Encode(kind, messages, binary.Config{OffsetSize: w.OffsetSize()})
	if err != nil {
		return 0, err
	}
	if err := w.WriteBytes(data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// NewGroupHeader returns the messages of a group block.
func NewGroupHeader(path string) []message.Message {
	return []message.Message{&message.Name{Path: path}}
}

// NewTableHeader returns the messages of a table block.
func NewTableHeader(path, title string, row *message.Datatype, layout *message.TableLayout, pipeline *message.FilterPipeline) []message.Message {
	msgs := []message.Message{
		&message.Name{Path: path},
		&message.Title{Text: title},
		row,
		layout,
	}
	if pipeline != nil {
		msgs = append(msgs, pipeline)
	}
	return msgs
}

// NewAttributeHeader returns the messages of an attribute block targeting path.
func NewAttributeHeader(path string, attr *message.Attribute) []message.Message {
	return []message.Message{&message.Name{Path: path}, attr}
}

// NewChunkHeader returns the messages of a chunk block for the table at path.
func NewChunkHeader(path string, info *message.ChunkInfo, data []byte) []message.Message {
	return []message.Message{
		&message.Name{Path: path},
		info,
		&message.ChunkData{Data: data},
	}
}
