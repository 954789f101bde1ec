package storage

import (
	"context"
	"fmt"

	"github.com/appgate/journaldreader/journal/jerr"
)

// backing is the shared "currently open file's bytes" state used by all
// three Adapter implementations: once a file is open, everything boils down
// to bounds-checked slicing of a single []byte.
type backing struct {
	path string
	data []byte
	open bool
}

func (b *backing) current() (string, bool) {
	if !b.open {
		return "", false
	}
	return b.path, true
}

func (b *backing) readExact(ctx context.Context, offset int64, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.open {
		return nil, fmt.Errorf("%w: no file open", jerr.ErrNotConnected)
	}
	if offset < 0 || int(offset) > len(b.data) || n < 0 {
		return nil, fmt.Errorf("%w: offset %d, len %d out of range for %d-byte file", jerr.ErrUnexpectedEOF, offset, n, len(b.data))
	}
	end := int(offset) + n
	if end > len(b.data) {
		return nil, fmt.Errorf("%w: want %d bytes at offset %d, file has %d", jerr.ErrUnexpectedEOF, n, offset, len(b.data))
	}
	out := make([]byte, n)
	copy(out, b.data[offset:end])
	return out, nil
}

func (b *backing) readBounded(ctx context.Context, offset int64, min, max int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.open {
		return nil, fmt.Errorf("%w: no file open", jerr.ErrNotConnected)
	}
	if offset < 0 || int(offset) > len(b.data) {
		return nil, fmt.Errorf("%w: offset %d out of range for %d-byte file", jerr.ErrUnexpectedEOF, offset, len(b.data))
	}
	avail := len(b.data) - int(offset)
	if avail < min {
		return nil, fmt.Errorf("%w: want at least %d bytes at offset %d, file has %d", jerr.ErrUnexpectedEOF, min, offset, avail)
	}
	n := max
	if avail < n {
		n = avail
	}
	out := make([]byte, n)
	copy(out, b.data[int(offset):int(offset)+n])
	return out, nil
}
