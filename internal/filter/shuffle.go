package filter

import (
	"github.com/robert-malhotra/go-h5table/internal/message"
)

// Shuffle implements the byte shuffle filter.
// This filter rearranges bytes to improve compression by grouping
// similar byte positions together (e.g., all MSBs, then all next bytes, etc.).
type Shuffle struct {
	elemSize int
}

// NewShuffle creates a new shuffle filter.
// Client data: [0] = element size in bytes
func NewShuffle(clientData []uint32) *Shuffle {
	elemSize := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		elemSize = int(clientData[0])
	}
	return &Shuffle{elemSize: elemSize}
}

func (f *Shuffle) ID() uint16 {
	return message.FilterShuffle
}

// Encode groups byte j of every element together.
func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	return ShuffleBytes(input, f.elemSize), nil
}

// Decode reverses the shuffle transformation.
func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	return UnshuffleBytes(input, f.elemSize), nil
}

// ShuffleBytes turns [elem0][elem1]...[elemM] into
// [all byte 0s][all byte 1s]...[all byte N-1s]. Trailing bytes that do not
// form a whole element are copied unchanged.
func ShuffleBytes(input []byte, elemSize int) []byte {
	numElems := len(input) / max(elemSize, 1)
	if elemSize <= 1 || numElems == 0 {
		return input
	}

	output := make([]byte, len(input))
	for i := 0; i < numElems; i++ {
		for j := 0; j < elemSize; j++ {
			output[j*numElems+i] = input[i*elemSize+j]
		}
	}
	copy(output[numElems*elemSize:], input[numElems*elemSize:])
	return output
}

// UnshuffleBytes is the inverse of ShuffleBytes.
func UnshuffleBytes(input []byte, elemSize int) []byte {
	numElems := len(input) / max(elemSize, 1)
	if elemSize <= 1 || numElems == 0 {
		return input
	}

	output := make([]byte, len(input))
	for i := 0; i < numElems; i++ {
		for j := 0; j < elemSize; j++ {
			// In shuffled format, byte j of all elements is at offset j*numElems
			output[i*elemSize+j] = input[j*numElems+i]
		}
	}
	copy(output[numElems*elemSize:], input[numElems*elemSize:])
	return output
}
