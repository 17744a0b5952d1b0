package haystack

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

const DefaultBase = 0x80000000

// Haystack is a memory image mapped at Base.
type Haystack struct {
	Name  string
	Base  uint64
	Bytes []byte
}

func (h *Haystack) End() uint64 { return h.Base + uint64(len(h.Bytes)) }

// Slice returns the size bytes at address pos, or false if the range is not
// fully inside the image.
func (h *Haystack) Slice(pos uint64, size int) ([]byte, bool) {
	if pos < h.Base || size < 0 {
		return nil, false
	}
	off := pos - h.Base
	if off > uint64(len(h.Bytes)) || uint64(size) > uint64(len(h.Bytes))-off {
		return nil, false
	}
	return h.Bytes[off : off+uint64(size)], true
}

// Load reads a memory dump, decompressing gzip and zstd files. A positive
// maxSize truncates the image.
func Load(fs afero.Fs, path string, base uint64, maxSize int) (*Haystack, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	data, err = decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if maxSize > 0 && len(data) > maxSize {
		data = data[:maxSize]
	}
	return &Haystack{Name: path, Base: base, Bytes: data}, nil
}

// decompress checks if data is compressed and decompresses it if needed.
func decompress(data []byte) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer r.Close()

		decompressed, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("decompress gzip data: %w", err)
		}
		return decompressed, nil
	}

	// zstd magic bytes: 0x28, 0xb5, 0x2f, 0xfd
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		defer r.Close()

		decompressed, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("decompress zstd data: %w", err)
		}
		return decompressed, nil
	}

	return data, nil
}
