/* SPDX-License-Identifier: LGPL-2.1-or-later */

/*
 * The object layouts in this file are based on journal-def.h in
 * systemd. The decoding logic is original.
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

// Package object reads the generic object header and the type-specific
// sub-headers that follow it in a systemd journal file's arena.
package object

import (
	"fmt"

	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/jerr"
)

// Type identifies the kind of an object. Unknown ids must be tolerated
// (skipped via the object's declared size), never rejected.
type Type uint8

const (
	TypeUnused          Type = 0
	TypeData            Type = 1
	TypeField           Type = 2
	TypeEntry           Type = 3
	TypeDataHashTable   Type = 4
	TypeFieldHashTable  Type = 5
	TypeEntryArray      Type = 6
	TypeTag             Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeUnused:
		return "Unused"
	case TypeData:
		return "Data"
	case TypeField:
		return "Field"
	case TypeEntry:
		return "Entry"
	case TypeDataHashTable:
		return "DataHashTable"
	case TypeFieldHashTable:
		return "FieldHashTable"
	case TypeEntryArray:
		return "EntryArray"
	case TypeTag:
		return "Tag"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// CompressionFlag is the per-object compression method, stored in the
// generic object header's flags byte. Only Data objects may be compressed.
type CompressionFlag uint8

const (
	CompressionNone CompressionFlag = 0
	CompressionXz   CompressionFlag = 1 << 0
	CompressionLz4  CompressionFlag = 1 << 1
	CompressionZstd CompressionFlag = 1 << 2
)

// HeaderSize is the fixed 16-byte size of the generic object header that
// precedes every object's type-specific body.
const HeaderSize = 16

// Header is the 16-byte generic header shared by every object:
// {type: u8, compression_flags: u8, reserved[6], size: u64}.
type Header struct {
	Type        Type
	Compression CompressionFlag
	Size        uint64
}

// ReadHeader decodes a generic object header from a HeaderSize-byte buffer.
func ReadHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: object header truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), HeaderSize)
	}
	return Header{
		Type:        Type(codec.ReadU8(buf)),
		Compression: CompressionFlag(codec.ReadU8(buf[1:])),
		Size:        codec.ReadU64(buf[8:]),
	}, nil
}

// PayloadSize is the object's size minus the generic header, saturating at
// zero (never negative).
func (h Header) PayloadSize() uint64 {
	if h.Size < HeaderSize {
		return 0
	}
	return h.Size - HeaderSize
}

// CheckType fails with ErrInvalidData if h is not of the expected type.
func (h Header) CheckType(offset uint64, want Type) error {
	if h.Type != want {
		return fmt.Errorf("%w: expected object of type %s at offset %d, found %s", jerr.ErrInvalidData, want, offset, h.Type)
	}
	return nil
}

// EntryHeaderSize is the fixed size of an Entry object's sub-header:
// {seqnum, realtime, monotonic: u64; boot_id: u128; xor_hash: u64}.
const EntryHeaderSize = 48

// EntryHeader is an Entry object's sub-header.
type EntryHeader struct {
	Seqnum    uint64 // nonzero
	Realtime  uint64 // microseconds
	Monotonic uint64 // nonzero
	BootID    codec.U128 // nonzero
	XorHash   uint64
}

// ReadEntryHeader decodes an EntryHeader from an EntryHeaderSize-byte buffer.
func ReadEntryHeader(buf []byte) (EntryHeader, error) {
	if len(buf) < EntryHeaderSize {
		return EntryHeader{}, fmt.Errorf("%w: entry header truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), EntryHeaderSize)
	}
	h := EntryHeader{
		Seqnum:    codec.ReadU64(buf),
		Realtime:  codec.ReadU64(buf[8:]),
		Monotonic: codec.ReadU64(buf[16:]),
		BootID:    codec.ReadU128(buf[24:]),
		XorHash:   codec.ReadU64(buf[40:]),
	}
	if h.Seqnum == 0 {
		return EntryHeader{}, fmt.Errorf("%w: entry seqnum is zero", jerr.ErrInvalidData)
	}
	if h.Monotonic == 0 {
		return EntryHeader{}, fmt.Errorf("%w: entry monotonic is zero", jerr.ErrInvalidData)
	}
	if h.BootID.IsZero() {
		return EntryHeader{}, fmt.Errorf("%w: entry boot_id is zero", jerr.ErrInvalidData)
	}
	return h, nil
}

// EntryArrayHeaderSize is the fixed size of an EntryArray object's
// sub-header: {next_entry_array_offset: u64}.
const EntryArrayHeaderSize = 8

// EntryArrayHeader is an EntryArray object's sub-header.
type EntryArrayHeader struct {
	NextEntryArrayOffset uint64 // optional-nonzero
}

// ReadEntryArrayHeader decodes an EntryArrayHeader from an
// EntryArrayHeaderSize-byte buffer.
func ReadEntryArrayHeader(buf []byte) (EntryArrayHeader, error) {
	if len(buf) < EntryArrayHeaderSize {
		return EntryArrayHeader{}, fmt.Errorf("%w: entry array header truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), EntryArrayHeaderSize)
	}
	return EntryArrayHeader{NextEntryArrayOffset: codec.ReadU64(buf)}, nil
}

// DataHeaderSize is the fixed size of a Data object's sub-header:
// {hash, next_hash_offset, next_field_offset, entry_offset,
// entry_array_offset, n_entries: u64}.
const DataHeaderSize = 48

// DataHeader is a Data object's sub-header.
type DataHeader struct {
	Hash             uint64
	NextHashOffset   uint64
	NextFieldOffset  uint64
	EntryOffset      uint64
	EntryArrayOffset uint64
	NEntries         uint64
}

// ReadDataHeader decodes a DataHeader from a DataHeaderSize-byte buffer.
func ReadDataHeader(buf []byte) (DataHeader, error) {
	if len(buf) < DataHeaderSize {
		return DataHeader{}, fmt.Errorf("%w: data header truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), DataHeaderSize)
	}
	return DataHeader{
		Hash:             codec.ReadU64(buf),
		NextHashOffset:   codec.ReadU64(buf[8:]),
		NextFieldOffset:  codec.ReadU64(buf[16:]),
		EntryOffset:      codec.ReadU64(buf[24:]),
		EntryArrayOffset: codec.ReadU64(buf[32:]),
		NEntries:         codec.ReadU64(buf[40:]),
	}, nil
}

// DataCompactPayloadHeaderSize is the fixed size of the compact-mode-only
// secondary Data header: {tail_entry_array_offset, tail_entry_array_n_entries: u32}.
const DataCompactPayloadHeaderSize = 8

// DataCompactPayloadHeader is the compact-mode-only secondary Data header.
type DataCompactPayloadHeader struct {
	TailEntryArrayOffset   uint32
	TailEntryArrayNEntries uint32
}

// ReadDataCompactPayloadHeader decodes a DataCompactPayloadHeader from a
// DataCompactPayloadHeaderSize-byte buffer.
func ReadDataCompactPayloadHeader(buf []byte) (DataCompactPayloadHeader, error) {
	if len(buf) < DataCompactPayloadHeaderSize {
		return DataCompactPayloadHeader{}, fmt.Errorf("%w: data compact payload header truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), DataCompactPayloadHeaderSize)
	}
	return DataCompactPayloadHeader{
		TailEntryArrayOffset:   codec.ReadU32(buf),
		TailEntryArrayNEntries: codec.ReadU32(buf[4:]),
	}, nil
}

// FieldHeaderSize is the fixed size of a Field object's sub-header:
// {hash, next_hash_offset, next_data_offset: u64}.
const FieldHeaderSize = 24

// FieldHeader is a Field object's sub-header.
type FieldHeader struct {
	Hash           uint64
	NextHashOffset uint64
	NextDataOffset uint64
}

// ReadFieldHeader decodes a FieldHeader from a FieldHeaderSize-byte buffer.
func ReadFieldHeader(buf []byte) (FieldHeader, error) {
	if len(buf) < FieldHeaderSize {
		return FieldHeader{}, fmt.Errorf("%w: field header truncated: got %d bytes, need %d", jerr.ErrUnexpectedEOF, len(buf), FieldHeaderSize)
	}
	return FieldHeader{
		Hash:           codec.ReadU64(buf),
		NextHashOffset: codec.ReadU64(buf[8:]),
		NextDataOffset: codec.ReadU64(buf[16:]),
	}, nil
}

