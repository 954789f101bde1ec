// Package hashtable describes the on-disk hash-table schema (§3, §4.1) that
// the Data and Field hash tables share, and reads its bucket slots through a
// storage.Adapter. Lookup by field name/value is out of scope here; this
// only exposes the structure for callers that want to read it directly
// (e.g. for diagnostics).
package hashtable

import (
	"context"
	"fmt"

	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/jerr"
	"github.com/appgate/journaldreader/journal/storage"
)

// ItemSize is the fixed size of one hash-table bucket entry:
// {head_hash_offset, tail_hash_offset: u64}.
const ItemSize = 16

// Item is one bucket of a hash table: the head and tail of its object
// chain, chained via each object's own next_hash_offset field.
type Item struct {
	HeadHashOffset uint64 // optional-nonzero
	TailHashOffset uint64 // optional-nonzero
}

// ReadItem decodes one Item from an ItemSize-byte buffer.
func ReadItem(buf []byte) (Item, error) {
	if len(buf) < ItemSize {
		return Item{}, fmt.Errorf("%w: hash table item truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), ItemSize)
	}
	return Item{
		HeadHashOffset: codec.ReadU64(buf),
		TailHashOffset: codec.ReadU64(buf[8:]),
	}, nil
}

// Table describes a hash table's location and shape, as recorded in the
// file header, plus a fill-level figure derived from the object counts.
type Table struct {
	Offset   uint64
	Size     uint64
	Capacity uint64 // Size / ItemSize
}

// NewTable derives a Table's Capacity from its declared byte Size.
func NewTable(offset, size uint64) Table {
	return Table{Offset: offset, Size: size, Capacity: size / ItemSize}
}

// FillLevel reports the ratio of occupied entries to capacity, given the
// number of objects indexed (n_data or n_fields from the header). This is
// descriptive only: rotation decisions based on fill level are a writer
// concern, out of scope here.
func (t Table) FillLevel(count uint64) float64 {
	if t.Capacity == 0 {
		return 0
	}
	return float64(count) / float64(t.Capacity)
}

// ItemIter is a lazy, pull-based cursor over a Table's bucket slots, in
// on-disk order, read through a storage.Adapter.
type ItemIter struct {
	adapter storage.Adapter
	table   Table
	index   uint64
	cur     Item
	err     error
}

// Items returns an iterator over every bucket slot in t, read through
// adapter (the file the table's Offset/Size are relative to must already be
// open on it).
func (t Table) Items(adapter storage.Adapter) *ItemIter {
	return &ItemIter{adapter: adapter, table: t}
}

// Next advances the cursor. It returns false at end of table or on error;
// distinguish the two with Err.
func (it *ItemIter) Next(ctx context.Context) bool {
	if it.err != nil || it.index >= it.table.Capacity {
		return false
	}
	offset := int64(it.table.Offset + it.index*ItemSize)
	buf, err := it.adapter.ReadExact(ctx, offset, ItemSize)
	if err != nil {
		it.err = err
		return false
	}
	item, err := ReadItem(buf)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = item
	it.index++
	return true
}

// Item returns the slot produced by the most recent successful Next call.
func (it *ItemIter) Item() Item { return it.cur }

// Err returns the first error encountered, if any.
func (it *ItemIter) Err() error { return it.err }

// Count reads every slot in t and returns how many are occupied (a slot is
// occupied iff its head_hash_offset is nonzero).
func (t Table) Count(ctx context.Context, adapter storage.Adapter) (uint64, error) {
	it := t.Items(adapter)
	var n uint64
	for it.Next(ctx) {
		if it.Item().HeadHashOffset != 0 {
			n++
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return n, nil
}
