package data

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appgate/journaldreader/journal/header"
	"github.com/appgate/journaldreader/journal/jerr"
	"github.com/appgate/journaldreader/journal/object"
	"github.com/appgate/journaldreader/journal/storage"
)

// dataStart is the offset every fixture places its first object at: real
// journal arenas never have addressable content before the smallest
// possible header, so Read refuses anything closer to the front.
const dataStart = 208

// buildDataObject assembles a single, non-compact Data object at dataStart
// holding the given (uncompressed) payload bytes, padded with a leading
// header-sized run of zero bytes so offsets line up with dataStart.
func buildDataObject(payload []byte) []byte {
	size := object.HeaderSize + object.DataHeaderSize + int64(len(payload))
	buf := make([]byte, dataStart+size)
	obj := buf[dataStart:]

	obj[0] = byte(object.TypeData)
	obj[1] = byte(object.CompressionNone)
	binary.LittleEndian.PutUint64(obj[8:], uint64(size))

	copy(obj[object.HeaderSize+object.DataHeaderSize:], payload)
	return buf
}

func regularHeader() *header.Header {
	return &header.Header{}
}

func TestRead_KeyValueSplit(t *testing.T) {
	buf := buildDataObject([]byte("MESSAGE=hello world"))
	adapter := storage.NewInMemory(map[string][]byte{"f": buf})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	d, err := Read(context.Background(), adapter, regularHeader(), dataStart)
	require.NoError(t, err)
	require.Equal(t, "MESSAGE", d.Key)
	require.Equal(t, []byte("hello world"), d.Value)
}

func TestRead_MissingSeparator_IsInvalidData(t *testing.T) {
	buf := buildDataObject([]byte("NOTKEYVALUE"))
	adapter := storage.NewInMemory(map[string][]byte{"f": buf})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	_, err := Read(context.Background(), adapter, regularHeader(), dataStart)
	require.ErrorIs(t, err, jerr.ErrInvalidData)
}

func TestRead_WrongObjectType(t *testing.T) {
	buf := buildDataObject([]byte("K=V"))
	buf[dataStart] = byte(object.TypeField)
	adapter := storage.NewInMemory(map[string][]byte{"f": buf})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	_, err := Read(context.Background(), adapter, regularHeader(), dataStart)
	require.ErrorIs(t, err, jerr.ErrInvalidData)
}

func TestIter_StopsAtEnd(t *testing.T) {
	first := buildDataObject([]byte("A=1"))  // occupies [dataStart, len(first))
	second := buildDataObject([]byte("B=2")) // its own [dataStart, len(second)) object

	secondOffset := uint64(len(first))
	combined := append(append([]byte{}, first...), second[dataStart:]...)

	adapter := storage.NewInMemory(map[string][]byte{"f": combined})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	it := NewIter(adapter, regularHeader(), []uint64{dataStart, secondOffset})

	require.True(t, it.Next(context.Background()))
	require.Equal(t, "A", it.Data().Key)
	require.True(t, it.Next(context.Background()))
	require.Equal(t, "B", it.Data().Key)
	require.False(t, it.Next(context.Background()))
	require.NoError(t, it.Err())
}
