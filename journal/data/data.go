// Package data implements the entry payload materializer (§4.8): resolving
// a Data object's key/value payload, decompressing it first if the object's
// compression flag says to.
package data

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/appgate/journaldreader/journal/header"
	"github.com/appgate/journaldreader/journal/jerr"
	"github.com/appgate/journaldreader/journal/object"
	"github.com/appgate/journaldreader/journal/storage"
)

// Data is one materialized key/value payload.
type Data struct {
	Offset uint64
	Key    string
	Value  []byte
}

// Read resolves the Data object at offset: generic header, sub-header,
// optional compact payload header, then the (possibly compressed) payload,
// split into key and value on the first '='.
func Read(ctx context.Context, adapter storage.Adapter, hdr *header.Header, offset uint64) (Data, error) {
	if err := storage.CheckOffset(offset); err != nil {
		return Data{}, err
	}

	genBuf, err := adapter.ReadExact(ctx, int64(offset), object.HeaderSize)
	if err != nil {
		return Data{}, err
	}
	gen, err := object.ReadHeader(genBuf)
	if err != nil {
		return Data{}, err
	}
	if err := gen.CheckType(offset, object.TypeData); err != nil {
		return Data{}, err
	}

	cursor := int64(offset) + object.HeaderSize
	consumed := uint64(0)

	subBuf, err := adapter.ReadExact(ctx, cursor, object.DataHeaderSize)
	if err != nil {
		return Data{}, err
	}
	if _, err := object.ReadDataHeader(subBuf); err != nil {
		return Data{}, err
	}
	cursor += object.DataHeaderSize
	consumed += object.DataHeaderSize

	if hdr.IsCompact() {
		cpBuf, err := adapter.ReadExact(ctx, cursor, object.DataCompactPayloadHeaderSize)
		if err != nil {
			return Data{}, err
		}
		if _, err := object.ReadDataCompactPayloadHeader(cpBuf); err != nil {
			return Data{}, err
		}
		cursor += object.DataCompactPayloadHeaderSize
		consumed += object.DataCompactPayloadHeaderSize
	}

	payloadSize := gen.PayloadSize() - consumed
	raw, err := adapter.ReadExact(ctx, cursor, int(payloadSize))
	if err != nil {
		return Data{}, err
	}

	plain, err := decompress(object.CompressionFlag(gen.Compression), raw)
	if err != nil {
		return Data{}, fmt.Errorf("data object at offset %d: %w", offset, err)
	}

	key, value, ok := splitKV(plain)
	if !ok {
		return Data{}, fmt.Errorf("%w: data object at offset %d has no '=' separator", jerr.ErrInvalidData, offset)
	}

	return Data{Offset: offset, Key: key, Value: value}, nil
}

func splitKV(payload []byte) (key string, value []byte, ok bool) {
	i := bytes.IndexByte(payload, '=')
	if i < 0 {
		return "", nil, false
	}
	return string(payload[:i]), payload[i+1:], true
}

// decompress dispatches on the object's compression flag. This is the
// concrete implementation of the dispatch point the design reserves at
// §4.8: Xz, Lz4, and Zstd are all wired, not stubbed.
func decompress(flag object.CompressionFlag, raw []byte) ([]byte, error) {
	switch flag {
	case object.CompressionNone:
		return raw, nil
	case object.CompressionXz:
		r, err := xz.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return io.ReadAll(r)
	case object.CompressionLz4:
		r := lz4.NewReader(bytes.NewReader(raw))
		return io.ReadAll(r)
	case object.CompressionZstd:
		r, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("%w: unknown compression flag %#x", jerr.ErrInvalidData, flag)
	}
}

// Iter is a lazy, pull-based cursor over the Data objects an Entry
// references, independent of the entry iterator (§6 entry_data()).
type Iter struct {
	adapter storage.Adapter
	hdr     *header.Header
	items   []uint64
	pos     int
	cur     Data
	err     error
}

// NewIter returns an iterator over the given item offsets (typically
// walk.Entry.Items).
func NewIter(adapter storage.Adapter, hdr *header.Header, items []uint64) *Iter {
	return &Iter{adapter: adapter, hdr: hdr, items: items}
}

// Next advances the cursor. It returns false at end of sequence or on
// error; distinguish the two with Err.
func (it *Iter) Next(ctx context.Context) bool {
	if it.err != nil || it.pos >= len(it.items) {
		return false
	}
	d, err := Read(ctx, it.adapter, it.hdr, it.items[it.pos])
	if err != nil {
		it.err = err
		return false
	}
	it.cur = d
	it.pos++
	return true
}

// Data returns the value produced by the most recent successful Next call.
func (it *Iter) Data() Data { return it.cur }

// Err returns the first error encountered, if any.
func (it *Iter) Err() error { return it.err }
