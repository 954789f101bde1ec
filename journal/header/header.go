/* SPDX-License-Identifier: LGPL-2.1-or-later */

/*
 * The field layout and flag values in this file are based on
 * journal-def.h in systemd. The decoding logic is original.
 *
 * Copyright for journal-def.h:
 *
 * 2008-2015 Kay Sievers <kay@vrfy.org>
 * 2010-2015 Lennart Poettering
 *
 * Copyright for the Go version:
 *
 * 2024 Appgate Inc.
 */

// Package header parses the systemd journal file header: the magic-prefixed,
// version-extensible structure at the start of every journal file.
package header

import (
	"fmt"
	"time"

	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/jerr"
)

// Magic is the 8-byte literal that every journal file begins with.
const Magic = "LPKSHHRH"

// MinSize and MaxSize bound the header: versions from systemd 1 through 255
// fall somewhere in [MinSize, MaxSize], gated by the header's own
// HeaderSize field.
const (
	MinSize = 208
	MaxSize = 272
)

// State is the file's write-lifecycle state.
type State uint8

const (
	// StateOffline means the file is cleanly closed.
	StateOffline State = 0
	// StateOnline means the file is open for writing (may still be tailed).
	StateOnline State = 1
	// StateArchived means the file is closed for writing and was rotated.
	StateArchived State = 2
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "Offline"
	case StateOnline:
		return "Online"
	case StateArchived:
		return "Archived"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// CompatibleFlag bits may be safely ignored by a reader that doesn't
// understand them.
type CompatibleFlag uint32

const (
	// CompatibleSealed means the file includes Tag objects for Forward
	// Secure Sealing. Available from systemd 189.
	CompatibleSealed CompatibleFlag = 1 << 0
	// CompatibleTailEntryBootID means tail_entry_boot_id is only updated on
	// creation and entry append, not on archival. Available from systemd 254.
	CompatibleTailEntryBootID CompatibleFlag = 1 << 1
	// CompatibleSealedContinuous means Forward Secure Sealing runs once per
	// epoch. Available from systemd 255.
	CompatibleSealedContinuous CompatibleFlag = 1 << 2
)

const knownCompatibleMask = CompatibleSealed | CompatibleTailEntryBootID | CompatibleSealedContinuous

// Has reports whether every bit in want is set, ignoring unknown bits.
func (f CompatibleFlag) Has(want CompatibleFlag) bool { return f&want == want }

// IncompatibleFlag bits must be understood by a reader; an unknown bit means
// the reader must refuse the file.
type IncompatibleFlag uint32

const (
	// IncompatibleCompressedXz means Data objects may be XZ-compressed.
	IncompatibleCompressedXz IncompatibleFlag = 1 << 0
	// IncompatibleCompressedLz4 means Data objects may be LZ4-compressed.
	IncompatibleCompressedLz4 IncompatibleFlag = 1 << 1
	// IncompatibleKeyedHash means hash tables use keyed SipHash-2-4.
	IncompatibleKeyedHash IncompatibleFlag = 1 << 2
	// IncompatibleCompressedZstd means Data objects may be Zstd-compressed.
	IncompatibleCompressedZstd IncompatibleFlag = 1 << 3
	// IncompatibleCompact selects the narrower on-disk item variants.
	IncompatibleCompact IncompatibleFlag = 1 << 4
)

const knownIncompatibleMask = IncompatibleCompressedXz | IncompatibleCompressedLz4 |
	IncompatibleKeyedHash | IncompatibleCompressedZstd | IncompatibleCompact

// Has reports whether every bit in want is set.
func (f IncompatibleFlag) Has(want IncompatibleFlag) bool { return f&want == want }

// Monotonic is a nonzero CLOCK_MONOTONIC microsecond timestamp: microseconds
// since boot, not since the Unix epoch. It is distinct from the realtime
// (wall-clock) fields so the two are never confused at a call site.
type Monotonic uint64

// ToTime resolves a monotonic timestamp to wall-clock time given the epoch
// (boot time) it is relative to.
func (m Monotonic) ToTime(epoch time.Time) time.Time {
	return epoch.Add(time.Duration(m) * time.Microsecond)
}

// Header is the parsed, version-gated systemd journal file header.
//
// Fields after TailEntryMonotonic were added in later systemd releases and
// are gated on HeaderSize; see the *Ok accessors.
type Header struct {
	CompatibleFlags   CompatibleFlag
	IncompatibleFlags IncompatibleFlag
	State             State

	FileID           codec.U128
	MachineID        codec.U128
	TailEntryBootID  codec.U128 // optional-nonzero
	SeqnumID         codec.U128 // nonzero

	HeaderSize           uint64
	ArenaSize            uint64
	DataHashTableOffset  uint64
	DataHashTableSize    uint64
	FieldHashTableOffset uint64
	FieldHashTableSize   uint64
	TailObjectOffset     uint64

	NObjects uint64
	NEntries uint64

	TailEntrySeqnum    uint64
	HeadEntrySeqnum    uint64
	EntryArrayOffset   uint64
	HeadEntryRealtime  uint64 // microseconds
	TailEntryRealtime  uint64 // microseconds
	TailEntryMonotonic uint64

	// Added in systemd 187; present iff HeaderSize > 208/216.
	NData, NFields uint64
	hasNData       bool
	hasNFields     bool

	// Added in systemd 189; present iff HeaderSize > 224/232.
	NTags, NEntryArrays uint64
	hasNTags            bool
	hasNEntryArrays     bool

	// Added in systemd 246; present iff HeaderSize > 240/248.
	DataHashChainDepth, FieldHashChainDepth uint64
	hasDataHashChainDepth                  bool
	hasFieldHashChainDepth                 bool

	// Added in systemd 252; present iff HeaderSize > 256/260.
	TailEntryArrayOffset, TailEntryArrayNEntries uint32
	hasTailEntryArrayOffset                     bool
	hasTailEntryArrayNEntries                   bool

	// Added in systemd 254; present iff HeaderSize > 264.
	TailEntryOffset    uint64
	hasTailEntryOffset bool
}

// field offsets within the fixed 208-byte prefix.
const (
	offCompatibleFlags   = 8
	offIncompatibleFlags = 12
	offState             = 16
	offFileID            = 24
	offMachineID         = 40
	offTailEntryBootID   = 56
	offSeqnumID          = 72
	offHeaderSize        = 88
	offArenaSize         = 96
	offDataHTOffset      = 104
	offDataHTSize        = 112
	offFieldHTOffset     = 120
	offFieldHTSize       = 128
	offTailObjectOffset  = 136
	offNObjects          = 144
	offNEntries          = 152
	offTailEntrySeqnum   = 160
	offHeadEntrySeqnum   = 168
	offEntryArrayOffset  = 176
	offHeadEntryRealtime = 184
	offTailEntryRealtime = 192
	offTailEntryMono     = 200
)

// version-gated trailing u64/u32 fields, in file order, starting at 208.
const (
	offNData                   = 208
	offNFields                 = 216
	offNTags                   = 224
	offNEntryArrays            = 232
	offDataHashChainDepth      = 240
	offFieldHashChainDepth     = 248
	offTailEntryArrayOffset    = 256
	offTailEntryArrayNEntries  = 260
	offTailEntryOffset         = 264
)

// Parse decodes a Header from a buffer already read from the start of a
// journal file. buf must be at least MinSize bytes and should be extended up
// to the declared header_size (but never beyond MaxSize) by the caller, which
// reads the bounded region with a storage adapter before calling Parse.
func Parse(buf []byte) (*Header, error) {
	if len(buf) < MinSize {
		return nil, fmt.Errorf("%w: header truncated: got %d bytes, need at least %d", jerr.ErrUnexpectedEOF, len(buf), MinSize)
	}
	if string(buf[:8]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", jerr.ErrInvalidData, buf[:8])
	}

	h := &Header{
		CompatibleFlags:   CompatibleFlag(codec.ReadU32(buf[offCompatibleFlags:])),
		IncompatibleFlags: IncompatibleFlag(codec.ReadU32(buf[offIncompatibleFlags:])),
		State:             State(codec.ReadU8(buf[offState:])),

		FileID:          codec.ReadU128(buf[offFileID:]),
		MachineID:       codec.ReadU128(buf[offMachineID:]),
		TailEntryBootID: codec.ReadU128(buf[offTailEntryBootID:]),
		SeqnumID:        codec.ReadU128(buf[offSeqnumID:]),

		HeaderSize:           codec.ReadU64(buf[offHeaderSize:]),
		ArenaSize:            codec.ReadU64(buf[offArenaSize:]),
		DataHashTableOffset:  codec.ReadU64(buf[offDataHTOffset:]),
		DataHashTableSize:    codec.ReadU64(buf[offDataHTSize:]),
		FieldHashTableOffset: codec.ReadU64(buf[offFieldHTOffset:]),
		FieldHashTableSize:   codec.ReadU64(buf[offFieldHTSize:]),
		TailObjectOffset:     codec.ReadU64(buf[offTailObjectOffset:]),

		NObjects: codec.ReadU64(buf[offNObjects:]),
		NEntries: codec.ReadU64(buf[offNEntries:]),

		TailEntrySeqnum:    codec.ReadU64(buf[offTailEntrySeqnum:]),
		HeadEntrySeqnum:    codec.ReadU64(buf[offHeadEntrySeqnum:]),
		EntryArrayOffset:   codec.ReadU64(buf[offEntryArrayOffset:]),
		HeadEntryRealtime:  codec.ReadU64(buf[offHeadEntryRealtime:]),
		TailEntryRealtime:  codec.ReadU64(buf[offTailEntryRealtime:]),
		TailEntryMonotonic: codec.ReadU64(buf[offTailEntryMono:]),
	}

	if h.IncompatibleFlags&^knownIncompatibleMask != 0 {
		return nil, fmt.Errorf("%w: unknown incompatible_flags bits: %#x", jerr.ErrInvalidData, h.IncompatibleFlags&^knownIncompatibleMask)
	}
	// Unknown CompatibleFlags bits are accepted silently (knownCompatibleMask
	// exists only for documentation / potential future use).
	_ = knownCompatibleMask

	if h.SeqnumID.IsZero() {
		return nil, fmt.Errorf("%w: seqnum_id is zero", jerr.ErrInvalidData)
	}

	if h.HeaderSize < MinSize {
		return nil, fmt.Errorf("%w: header_size %d below minimum %d", jerr.ErrInvalidData, h.HeaderSize, MinSize)
	}
	if h.HeaderSize > MaxSize {
		return nil, fmt.Errorf("%w: header_size %d above maximum %d", jerr.ErrInvalidData, h.HeaderSize, MaxSize)
	}
	if len(buf) < int(h.HeaderSize) {
		return nil, fmt.Errorf("%w: buffer too short for declared header_size %d: got %d bytes", jerr.ErrUnexpectedEOF, h.HeaderSize, len(buf))
	}

	gate := func(bound int) bool { return int(h.HeaderSize) > bound }

	if gate(208) {
		h.NData = codec.ReadU64(buf[offNData:])
		h.hasNData = true
	}
	if gate(216) {
		h.NFields = codec.ReadU64(buf[offNFields:])
		h.hasNFields = true
	}
	if gate(224) {
		h.NTags = codec.ReadU64(buf[offNTags:])
		h.hasNTags = true
	}
	if gate(232) {
		h.NEntryArrays = codec.ReadU64(buf[offNEntryArrays:])
		h.hasNEntryArrays = true
	}
	if gate(240) {
		h.DataHashChainDepth = codec.ReadU64(buf[offDataHashChainDepth:])
		h.hasDataHashChainDepth = true
	}
	if gate(248) {
		h.FieldHashChainDepth = codec.ReadU64(buf[offFieldHashChainDepth:])
		h.hasFieldHashChainDepth = true
	}
	if gate(256) {
		h.TailEntryArrayOffset = codec.ReadU32(buf[offTailEntryArrayOffset:])
		h.hasTailEntryArrayOffset = true
	}
	if gate(260) {
		h.TailEntryArrayNEntries = codec.ReadU32(buf[offTailEntryArrayNEntries:])
		h.hasTailEntryArrayNEntries = true
	}
	if gate(264) {
		h.TailEntryOffset = codec.ReadU64(buf[offTailEntryOffset:])
		h.hasTailEntryOffset = true
	}

	return h, nil
}

// TailEntryBootIDOk returns tail_entry_boot_id and whether it is present —
// absent (all-zero) until the first entry is written, unlike the other
// *Ok() fields below which are gated on header_size instead.
func (h *Header) TailEntryBootIDOk() (codec.U128, bool) {
	return codec.OptionalU128(h.TailEntryBootID)
}

// NDataOk returns n_data and whether it is present (systemd >= 187).
func (h *Header) NDataOk() (uint64, bool) { return h.NData, h.hasNData }

// NFieldsOk returns n_fields and whether it is present (systemd >= 187).
func (h *Header) NFieldsOk() (uint64, bool) { return h.NFields, h.hasNFields }

// NTagsOk returns n_tags and whether it is present (systemd >= 189).
func (h *Header) NTagsOk() (uint64, bool) { return h.NTags, h.hasNTags }

// NEntryArraysOk returns n_entry_arrays and whether it is present (systemd >= 189).
func (h *Header) NEntryArraysOk() (uint64, bool) { return h.NEntryArrays, h.hasNEntryArrays }

// DataHashChainDepthOk returns data_hash_chain_depth and whether it is present (systemd >= 246).
func (h *Header) DataHashChainDepthOk() (uint64, bool) {
	return h.DataHashChainDepth, h.hasDataHashChainDepth
}

// FieldHashChainDepthOk returns field_hash_chain_depth and whether it is present (systemd >= 246).
func (h *Header) FieldHashChainDepthOk() (uint64, bool) {
	return h.FieldHashChainDepth, h.hasFieldHashChainDepth
}

// TailEntryArrayOffsetOk returns tail_entry_array_offset and whether it is present (systemd >= 252).
func (h *Header) TailEntryArrayOffsetOk() (uint32, bool) {
	return h.TailEntryArrayOffset, h.hasTailEntryArrayOffset
}

// TailEntryArrayNEntriesOk returns tail_entry_array_n_entries and whether it is present (systemd >= 252).
func (h *Header) TailEntryArrayNEntriesOk() (uint32, bool) {
	return h.TailEntryArrayNEntries, h.hasTailEntryArrayNEntries
}

// TailEntryOffsetOk returns tail_entry_offset and whether it is present (systemd >= 254).
func (h *Header) TailEntryOffsetOk() (uint64, bool) { return h.TailEntryOffset, h.hasTailEntryOffset }

// IsCompact reports whether the file uses the narrower "compact" item
// variants (32-bit entry-array items, 32-bit no-hash entry items).
func (h *Header) IsCompact() bool { return h.IncompatibleFlags.Has(IncompatibleCompact) }

// SizeofEntryArrayItem is the on-disk size, in bytes, of one item in an
// EntryArray object's item list: 4 bytes (u32 offset) if compact, otherwise
// 8 bytes (u64 offset, no per-item hash).
func (h *Header) SizeofEntryArrayItem() uint64 {
	if h.IsCompact() {
		return 4
	}
	return 8
}

// SizeofEntryObjectItem is the on-disk size, in bytes, of one item in an
// Entry object's item list: 4 bytes (u32 offset) if compact, otherwise 16
// bytes (u64 offset + u64 hash).
func (h *Header) SizeofEntryObjectItem() uint64 {
	if h.IsCompact() {
		return 4
	}
	return 16
}

// HasEntries reports whether the journal has ever contained an entry: the
// head/tail seqnum and timestamp fields are all zero iff it has none.
func (h *Header) HasEntries() bool { return h.HeadEntrySeqnum != 0 }
