package walk

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appgate/journaldreader/journal/header"
	"github.com/appgate/journaldreader/journal/object"
	"github.com/appgate/journaldreader/journal/storage"
)

// buildFile assembles a minimal, valid compact-mode journal file: a
// 208-byte header, one entry array at offset 208 referencing the given
// entry offsets, and one Entry object (with no data items) per seqnum.
func buildFile(t *testing.T, entryArrayOffset uint64, seqnums []uint64) []byte {
	t.Helper()

	const headerSize = 208
	entryOffsets := make([]uint64, len(seqnums))
	cursor := entryArrayOffset + object.HeaderSize + object.EntryArrayHeaderSize + uint64(len(seqnums))*4
	for i := range seqnums {
		entryOffsets[i] = cursor
		cursor += object.HeaderSize + object.EntryHeaderSize
	}
	total := cursor

	buf := make([]byte, total)
	copy(buf[:8], header.Magic)
	putU32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	putU64 := func(off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }

	putU32(12, uint32(header.IncompatibleCompact))
	for i := 0; i < 16; i++ {
		buf[72+i] = 1 // seqnum_id: nonzero
	}
	putU64(88, headerSize)                 // header_size
	putU64(96, total)                      // arena_size
	putU64(176, entryArrayOffset)           // entry_array_offset
	if len(seqnums) > 0 {
		putU64(168, seqnums[0])
		putU64(160, seqnums[len(seqnums)-1])
	}

	arrayItemsSize := uint64(len(seqnums)) * 4
	arraySize := object.HeaderSize + object.EntryArrayHeaderSize + int64(arrayItemsSize)
	writeGenericHeader(buf, entryArrayOffset, object.TypeEntryArray, uint64(arraySize))
	binary.LittleEndian.PutUint64(buf[entryArrayOffset+object.HeaderSize:], 0) // next_entry_array_offset

	itemBase := entryArrayOffset + object.HeaderSize + object.EntryArrayHeaderSize
	for i, eo := range entryOffsets {
		binary.LittleEndian.PutUint32(buf[itemBase+uint64(i)*4:], uint32(eo))
	}

	for i, eo := range entryOffsets {
		size := uint64(object.HeaderSize + object.EntryHeaderSize)
		writeGenericHeader(buf, eo, object.TypeEntry, size)
		binary.LittleEndian.PutUint64(buf[eo+object.HeaderSize:], seqnums[i])      // seqnum
		binary.LittleEndian.PutUint64(buf[eo+object.HeaderSize+16:], 1)            // monotonic: nonzero
		for b := 0; b < 16; b++ {
			buf[eo+object.HeaderSize+24+uint64(b)] = 1 // boot_id: nonzero
		}
	}

	return buf
}

func writeGenericHeader(buf []byte, offset uint64, typ object.Type, size uint64) {
	buf[offset] = byte(typ)
	buf[offset+1] = 0
	binary.LittleEndian.PutUint64(buf[offset+8:], size)
}

func TestWalker_IT1_SingleArrayTwoEntries(t *testing.T) {
	data := buildFile(t, 208, []uint64{5, 7})

	adapter := storage.NewInMemory(map[string][]byte{"f": data})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	hdr, err := header.Parse(data[:208])
	require.NoError(t, err)

	w := NewWalker(adapter, hdr)
	require.NoError(t, w.Load(context.Background()))

	var got []uint64
	for w.Next(context.Background()) {
		got = append(got, w.Entry().Seqnum())
	}
	require.NoError(t, w.Err())
	require.Equal(t, []uint64{5, 7}, got)
}

func TestWalker_EmptyFile_TerminatesCleanly(t *testing.T) {
	data := buildFile(t, 208, nil)

	adapter := storage.NewInMemory(map[string][]byte{"f": data})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	hdr, err := header.Parse(data[:208])
	require.NoError(t, err)

	w := NewWalker(adapter, hdr)
	require.NoError(t, w.Load(context.Background()))
	require.False(t, w.Next(context.Background()))
	require.NoError(t, w.Err())
}
