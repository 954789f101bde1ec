// Package walk implements the in-file entry-array walker (§4.5) and entry
// iterator (§4.6): maintaining a (entry-array offset, index) position,
// chasing the entry-array chain, and resolving each item down to a fully
// parsed Entry.
package walk

import (
	"context"
	"fmt"

	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/header"
	"github.com/appgate/journaldreader/journal/jerr"
	"github.com/appgate/journaldreader/journal/object"
	"github.com/appgate/journaldreader/journal/storage"
)

// Entry is one yielded log record: its own header plus the list of nonzero
// offsets of the Data objects it references.
type Entry struct {
	Offset uint64
	Header object.EntryHeader
	Items  []uint64
}

// Seqnum is a convenience accessor used by the cross-file handoff rule.
func (e Entry) Seqnum() uint64 { return e.Header.Seqnum }

// Walker drives the in-file walk of one open journal file: it reads through
// the adapter using the stride choices the file header dictates.
type Walker struct {
	adapter storage.Adapter
	hdr     *header.Header

	arrayOffset     uint64
	arrayCapacity   int
	nextArrayOffset uint64
	hasNextArray    bool

	index    int
	hasIndex bool

	cur Entry
	err error
	eof bool
}

// NewWalker returns a Walker bound to adapter and the already-parsed header
// of the file currently open on it. Call Load before the first Next.
func NewWalker(adapter storage.Adapter, hdr *header.Header) *Walker {
	return &Walker{adapter: adapter, hdr: hdr}
}

// arrayMeta is what loadArrayMeta reads off one EntryArray object: its item
// capacity and its next-array pointer.
type arrayMeta struct {
	capacity int
	next     uint64
	hasNext  bool
}

func (w *Walker) loadArrayMeta(ctx context.Context, offset uint64) (arrayMeta, error) {
	if err := storage.CheckOffset(offset); err != nil {
		return arrayMeta{}, err
	}
	genBuf, err := w.adapter.ReadExact(ctx, int64(offset), object.HeaderSize)
	if err != nil {
		return arrayMeta{}, err
	}
	gen, err := object.ReadHeader(genBuf)
	if err != nil {
		return arrayMeta{}, err
	}
	if err := gen.CheckType(offset, object.TypeEntryArray); err != nil {
		return arrayMeta{}, err
	}

	subBuf, err := w.adapter.ReadExact(ctx, int64(offset)+object.HeaderSize, object.EntryArrayHeaderSize)
	if err != nil {
		return arrayMeta{}, err
	}
	sub, err := object.ReadEntryArrayHeader(subBuf)
	if err != nil {
		return arrayMeta{}, err
	}

	itemSize := w.hdr.SizeofEntryArrayItem()
	itemsRegion := gen.PayloadSize() - object.EntryArrayHeaderSize
	capacity := int(itemsRegion / uint64(itemSize))

	next, hasNext := codec.OptionalU64(sub.NextEntryArrayOffset)
	return arrayMeta{capacity: capacity, next: next, hasNext: hasNext}, nil
}

// Load initializes position at the head of the file's entry-array chain
// (§4.5 load()).
func (w *Walker) Load(ctx context.Context) error {
	meta, err := w.loadArrayMeta(ctx, w.hdr.EntryArrayOffset)
	if err != nil {
		return err
	}
	w.arrayOffset = w.hdr.EntryArrayOffset
	w.arrayCapacity = meta.capacity
	w.nextArrayOffset = meta.next
	w.hasNextArray = meta.hasNext
	w.index = 0
	w.hasIndex = true
	w.eof = false
	w.err = nil
	return nil
}

// nextEntryArray chases next_entry_array_offset (§4.5 next_entry_array()).
// It returns false, without mutating position, when the chain ends.
func (w *Walker) nextEntryArray(ctx context.Context) (bool, error) {
	if !w.hasNextArray {
		return false, nil
	}
	meta, err := w.loadArrayMeta(ctx, w.nextArrayOffset)
	if err != nil {
		return false, err
	}
	w.arrayOffset = w.nextArrayOffset
	w.arrayCapacity = meta.capacity
	w.nextArrayOffset = meta.next
	w.hasNextArray = meta.hasNext
	w.index = 0
	w.hasIndex = true
	return true, nil
}

// SkipToEnd advances to the end of the entry-array chain without yielding
// entries (§4.5 skip_to_end(), used by Seek Newest).
func (w *Walker) SkipToEnd(ctx context.Context) error {
	for {
		ok, err := w.nextEntryArray(ctx)
		if err != nil {
			return err
		}
		if !ok {
			w.hasIndex = false
			return nil
		}
	}
}

// itemOffset resolves the index-th entry-array item to the entry object
// offset it names, or reports that it is the zero terminator.
func (w *Walker) itemOffset(ctx context.Context, arrayOffset uint64, index int) (offset uint64, isZero bool, err error) {
	itemSize := int(w.hdr.SizeofEntryArrayItem())
	pos := int64(arrayOffset) + object.HeaderSize + object.EntryArrayHeaderSize + int64(index)*int64(itemSize)
	buf, err := w.adapter.ReadExact(ctx, pos, itemSize)
	if err != nil {
		return 0, false, err
	}
	if itemSize == 4 {
		v := uint64(codec.ReadU32(buf))
		return v, v == 0, nil
	}
	v := codec.ReadU64(buf)
	return v, v == 0, nil
}

// readEntry resolves the Entry object at offset: its header plus the
// sequentially-read, zero-terminated list of Data object offsets (§4.6).
func (w *Walker) readEntry(ctx context.Context, offset uint64) (Entry, error) {
	if err := storage.CheckOffset(offset); err != nil {
		return Entry{}, err
	}
	genBuf, err := w.adapter.ReadExact(ctx, int64(offset), object.HeaderSize)
	if err != nil {
		return Entry{}, err
	}
	gen, err := object.ReadHeader(genBuf)
	if err != nil {
		return Entry{}, err
	}
	if err := gen.CheckType(offset, object.TypeEntry); err != nil {
		return Entry{}, err
	}

	ehBuf, err := w.adapter.ReadExact(ctx, int64(offset)+object.HeaderSize, object.EntryHeaderSize)
	if err != nil {
		return Entry{}, err
	}
	eh, err := object.ReadEntryHeader(ehBuf)
	if err != nil {
		return Entry{}, err
	}

	itemSize := int(w.hdr.SizeofEntryObjectItem())
	itemsRegion := gen.PayloadSize() - object.EntryHeaderSize
	capacity := int(itemsRegion / uint64(itemSize))

	items := make([]uint64, 0, capacity)
	base := int64(offset) + object.HeaderSize + object.EntryHeaderSize
	for i := 0; i < capacity; i++ {
		buf, err := w.adapter.ReadExact(ctx, base+int64(i)*int64(itemSize), itemSize)
		if err != nil {
			return Entry{}, err
		}
		var v uint64
		if itemSize == 4 {
			v = uint64(codec.ReadU32(buf))
		} else {
			v = codec.ReadU64(buf) // trailing 8-byte hash, if any, is ignored
		}
		if v == 0 {
			break
		}
		if v > uint64(^uint32(0)) && itemSize == 16 {
			return Entry{}, fmt.Errorf("%w: regular entry item offset %d does not fit in 32 bits", jerr.ErrInvalidData, v)
		}
		items = append(items, v)
	}

	return Entry{Offset: offset, Header: eh, Items: items}, nil
}

// Next advances to the next entry. It returns false at the natural end of
// this file's entry-array chain (not an error — see Err) or on error.
func (w *Walker) Next(ctx context.Context) bool {
	if w.err != nil || w.eof {
		return false
	}
	for {
		if !w.hasIndex {
			ok, err := w.nextEntryArray(ctx)
			if err != nil {
				w.err = err
				return false
			}
			if !ok {
				w.eof = true
				return false
			}
			continue
		}
		if w.index >= w.arrayCapacity {
			w.hasIndex = false
			continue
		}

		entryOffset, isZero, err := w.itemOffset(ctx, w.arrayOffset, w.index)
		if err != nil {
			w.err = err
			return false
		}
		if isZero {
			w.hasIndex = false
			continue
		}

		entry, err := w.readEntry(ctx, entryOffset)
		if err != nil {
			w.err = err
			return false
		}
		w.cur = entry
		w.index++
		if w.index >= w.arrayCapacity {
			w.hasIndex = false
		}
		return true
	}
}

// Entry returns the entry produced by the most recent successful Next call.
func (w *Walker) Entry() Entry { return w.cur }

// Err returns the first error encountered, if any. A nil Err after Next
// returns false means the chain was exhausted cleanly.
func (w *Walker) Err() error { return w.err }
