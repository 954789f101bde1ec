// Package journal is a reader library for the systemd journal on-disk file
// format: directory navigation by (machine-id, scope), header parsing,
// entry-array traversal, cross-file sequence continuation, and data object
// materialization.
//
// A Reader is not safe for concurrent use: it owns exactly one open file at
// a time and drives it with a single cursor. Every I/O method takes a
// context.Context, cancelable between (not within) the small reads that
// make up a single parse step.
package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/data"
	"github.com/appgate/journaldreader/journal/hashtable"
	"github.com/appgate/journaldreader/journal/header"
	"github.com/appgate/journaldreader/journal/jerr"
	"github.com/appgate/journaldreader/journal/object"
	"github.com/appgate/journaldreader/journal/storage"
	"github.com/appgate/journaldreader/journal/walk"
)

// Re-exported sentinel error taxonomy (§7): callers use errors.Is against
// these regardless of which internal layer actually produced the error.
var (
	ErrInvalidData     = jerr.ErrInvalidData
	ErrNotFound        = jerr.ErrNotFound
	ErrNotConnected    = jerr.ErrNotConnected
	ErrUnexpectedEOF   = jerr.ErrUnexpectedEOF
	ErrSeekUnsupported = jerr.ErrSeekUnsupported
	ErrNotImplemented  = jerr.ErrNotImplemented
)

// Selection identifies a logical journal by (machine-id, scope).
type Selection = storage.Selection

// Entry is one yielded log record.
type Entry = walk.Entry

// Data is one materialized key/value payload.
type Data = data.Data

// Reader is a read session over a storage.Adapter: selection, header, and
// walker state for exactly one open file at a time.
type Reader struct {
	adapter   storage.Adapter
	selection *Selection
	hdr       *header.Header
	walker    *walk.Walker
}

// NewReader returns a Reader bound to adapter. No I/O is performed.
func NewReader(adapter storage.Adapter) *Reader {
	return &Reader{adapter: adapter}
}

// List enumerates every distinct (machine-id, scope) pair visible to the
// storage adapter.
func (r *Reader) List(ctx context.Context) (map[Selection]struct{}, error) {
	it := r.adapter.ListFiles(ctx, "")
	set := make(map[Selection]struct{})
	for it.Next(ctx) {
		set[it.Info().Selection()] = struct{}{}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Selection returns the currently bound selection, if any.
func (r *Reader) Selection() (Selection, bool) {
	if r.selection == nil {
		return Selection{}, false
	}
	return *r.selection, true
}

func (r *Reader) clearSelection() {
	r.selection = nil
	r.hdr = nil
	r.walker = nil
}

// Select binds the reader to sel and opens its file: the live file if one
// exists, otherwise the first archived file in sort order (the oldest). Any prior selection and
// position are invalidated, even on failure (§4.4).
func (r *Reader) Select(ctx context.Context, sel Selection) error {
	liveInfo := storage.FilenameInfo{Kind: storage.Latest, MachineID: sel.MachineID, Scope: sel.Scope}
	err := r.adapter.Open(ctx, storage.MakeFilename(liveInfo))
	if err == nil {
		r.selection = &sel
		r.hdr = nil
		r.walker = nil
		return nil
	}
	if !errors.Is(err, jerr.ErrNotFound) {
		r.clearSelection()
		return err
	}

	prefix := storage.MakePrefix(sel)
	it, listErr := r.adapter.ListFilesSorted(ctx, prefix)
	if listErr != nil {
		r.clearSelection()
		return listErr
	}
	if it.Next(ctx) {
		info := it.Info()
		if openErr := r.adapter.Open(ctx, storage.MakeFilename(info)); openErr != nil {
			r.clearSelection()
			return openErr
		}
		r.selection = &sel
		r.hdr = nil
		r.walker = nil
		return nil
	}
	if err := it.Err(); err != nil {
		r.clearSelection()
		return err
	}

	r.clearSelection()
	return fmt.Errorf("%w: no journal files for %s", jerr.ErrNotFound, sel)
}

// load parses the header of whichever file is currently open on the
// adapter and initializes a fresh walker at its entry-array head.
func (r *Reader) load(ctx context.Context) error {
	buf, err := r.adapter.ReadBounded(ctx, 0, header.MinSize, header.MaxSize)
	if err != nil {
		return err
	}
	hdr, err := header.Parse(buf)
	if err != nil {
		return err
	}

	w := walk.NewWalker(r.adapter, hdr)
	if err := w.Load(ctx); err != nil {
		return err
	}

	r.hdr = hdr
	r.walker = w
	return nil
}

// SeekKind enumerates the Seek request variants (§4.9).
type SeekKind int

const (
	SeekOldest SeekKind = iota
	SeekNewest
	SeekTimestamp
	SeekSeqnum
	SeekBootID
	SeekEntries
)

// Seek is a seek request. Only Kind is consulted by the variants this core
// implements (SeekOldest, SeekNewest); the remaining fields are reserved
// for the unimplemented variants.
type Seek struct {
	Kind SeekKind

	Timestamp uint64 // microseconds, for SeekTimestamp
	Seqnum    uint64 // for SeekSeqnum
	BootID    codec.U128
	Entries   int64 // for SeekEntries
}

// Seek repositions the reader per the request (§4.9). SeekOldest opens the
// first archived file in sort order; SeekNewest opens the live file and
// skips to the end of its entry-array chain. The remaining variants return
// ErrSeekUnsupported.
func (r *Reader) Seek(ctx context.Context, s Seek) error {
	if r.selection == nil {
		return jerr.ErrNotConnected
	}

	switch s.Kind {
	case SeekOldest:
		prefix := storage.MakePrefix(*r.selection)
		it, err := r.adapter.ListFilesSorted(ctx, prefix)
		if err != nil {
			return err
		}
		if !it.Next(ctx) {
			if err := it.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: no archived files for %s", jerr.ErrNotFound, *r.selection)
		}
		if err := r.adapter.Open(ctx, storage.MakeFilename(it.Info())); err != nil {
			return err
		}
		return r.load(ctx)

	case SeekNewest:
		live := storage.FilenameInfo{Kind: storage.Latest, MachineID: r.selection.MachineID, Scope: r.selection.Scope}
		if err := r.adapter.Open(ctx, storage.MakeFilename(live)); err != nil {
			return err
		}
		if err := r.load(ctx); err != nil {
			return err
		}
		return r.walker.SkipToEnd(ctx)

	default:
		return jerr.ErrSeekUnsupported
	}
}

// EntryIter is the cross-file entry iterator (§4.7): a pull-based,
// single-pass, finite sequence of entries in strictly increasing seqnum
// order, crossing archived-to-live file boundaries without gap or
// duplication.
type EntryIter struct {
	r          *Reader
	cur        Entry
	err        error
	lastSeqnum uint64
	hasLast    bool
}

// Entries returns a fresh cross-file entry iterator starting at the
// reader's current position. It is finite and not restartable once
// exhausted; re-seek to iterate again.
func (r *Reader) Entries() *EntryIter {
	return &EntryIter{r: r}
}

// Next advances to the next entry, crossing file boundaries per the
// handoff rule in §4.7. It returns false at the natural end of the logical
// journal or on error; distinguish the two with Err.
func (it *EntryIter) Next(ctx context.Context) bool {
	r := it.r
	for {
		if r.walker == nil {
			it.err = jerr.ErrNotConnected
			return false
		}
		if r.walker.Next(ctx) {
			e := r.walker.Entry()
			it.cur = e
			it.lastSeqnum = e.Seqnum()
			it.hasLast = true
			return true
		}
		if err := r.walker.Err(); err != nil {
			it.err = err
			return false
		}

		ok, err := r.crossFileAdvance(ctx, it.lastSeqnum, it.hasLast)
		if err != nil {
			it.err = err
			return false
		}
		if !ok {
			return false
		}
	}
}

// Entry returns the entry produced by the most recent successful Next call.
func (it *EntryIter) Entry() Entry { return it.cur }

// Err returns the first error encountered, if any.
func (it *EntryIter) Err() error { return it.err }

// crossFileAdvance implements the §4.7 decision rule: prefer a strictly
// newer archived file; otherwise fall through to the live file if the
// current file was archived; otherwise terminate cleanly.
func (r *Reader) crossFileAdvance(ctx context.Context, lastSeqnum uint64, hasLast bool) (bool, error) {
	sel := *r.selection

	if hasLast {
		prefix := storage.MakePrefix(sel)
		it, err := r.adapter.ListFilesSorted(ctx, prefix)
		if err != nil {
			return false, err
		}
		for it.Next(ctx) {
			info := it.Info()
			if info.HeadSeqnum > lastSeqnum {
				if err := r.adapter.Open(ctx, storage.MakeFilename(info)); err != nil {
					return false, err
				}
				if err := r.load(ctx); err != nil {
					return false, err
				}
				return true, nil
			}
		}
		if err := it.Err(); err != nil {
			return false, err
		}
	}

	curPath, ok := r.adapter.Current()
	isArchived := false
	if ok {
		if info, ok2 := storage.ParseFilename(curPath); ok2 {
			isArchived = info.Kind == storage.Archived
		}
	}
	if !isArchived {
		return false, nil
	}

	live := storage.FilenameInfo{Kind: storage.Latest, MachineID: sel.MachineID, Scope: sel.Scope}
	err := r.adapter.Open(ctx, storage.MakeFilename(live))
	if err != nil {
		if errors.Is(err, jerr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := r.load(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DataHashTable returns the location and shape of the currently open file's
// Data hash table, or the zero Table if no file is loaded yet.
func (r *Reader) DataHashTable() hashtable.Table {
	if r.hdr == nil {
		return hashtable.Table{}
	}
	return hashtable.NewTable(r.hdr.DataHashTableOffset, r.hdr.DataHashTableSize)
}

// FieldHashTable returns the location and shape of the currently open
// file's Field hash table, or the zero Table if no file is loaded yet.
func (r *Reader) FieldHashTable() hashtable.Table {
	if r.hdr == nil {
		return hashtable.Table{}
	}
	return hashtable.NewTable(r.hdr.FieldHashTableOffset, r.hdr.FieldHashTableSize)
}

// FieldAt resolves the Field object at offset: its sub-header plus the
// field name that follows it (the raw, uncompressed payload — Field
// objects are never compressed).
func (r *Reader) FieldAt(ctx context.Context, offset uint64) (string, object.FieldHeader, error) {
	if err := storage.CheckOffset(offset); err != nil {
		return "", object.FieldHeader{}, err
	}
	genBuf, err := r.adapter.ReadExact(ctx, int64(offset), object.HeaderSize)
	if err != nil {
		return "", object.FieldHeader{}, err
	}
	gen, err := object.ReadHeader(genBuf)
	if err != nil {
		return "", object.FieldHeader{}, err
	}
	if err := gen.CheckType(offset, object.TypeField); err != nil {
		return "", object.FieldHeader{}, err
	}

	subBuf, err := r.adapter.ReadExact(ctx, int64(offset)+object.HeaderSize, object.FieldHeaderSize)
	if err != nil {
		return "", object.FieldHeader{}, err
	}
	fh, err := object.ReadFieldHeader(subBuf)
	if err != nil {
		return "", object.FieldHeader{}, err
	}

	nameLen := gen.PayloadSize() - object.FieldHeaderSize
	nameBuf, err := r.adapter.ReadExact(ctx, int64(offset)+object.HeaderSize+object.FieldHeaderSize, int(nameLen))
	if err != nil {
		return "", object.FieldHeader{}, err
	}

	return string(nameBuf), fh, nil
}

// FieldNames walks every bucket of the currently open file's Field hash
// table, following each chain via FieldHeader.NextHashOffset, and returns
// the set of distinct field names it references.
func (r *Reader) FieldNames(ctx context.Context) (map[string]struct{}, error) {
	if r.hdr == nil {
		return nil, jerr.ErrNotConnected
	}

	table := r.FieldHashTable()
	it := table.Items(r.adapter)
	names := make(map[string]struct{})
	for it.Next(ctx) {
		offset := it.Item().HeadHashOffset
		for offset != 0 {
			name, fh, err := r.FieldAt(ctx, offset)
			if err != nil {
				return nil, err
			}
			names[name] = struct{}{}
			offset = fh.NextHashOffset
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// EntryData returns a lazy, finite, independent iterator over the Data
// objects e references. The reader's currently open file must still be the
// one e was read from; materializing an Entry captured from a file the
// reader has since moved past is not supported.
func (r *Reader) EntryData(e Entry) *data.Iter {
	return data.NewIter(r.adapter, r.hdr, e.Items)
}

// VerifyAll is reserved: verifying Forward Secure Sealing tags and XOR
// hashes is out of scope for this core.
func (r *Reader) VerifyAll(_ context.Context) (bool, error) {
	return false, jerr.ErrNotImplemented
}
