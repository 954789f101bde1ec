package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadHeader(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(TypeEntry)
	buf[1] = byte(CompressionZstd)
	for i, b := range []byte{64, 0, 0, 0, 0, 0, 0, 0} {
		buf[8+i] = b
	}

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	require.Equal(t, TypeEntry, h.Type)
	require.Equal(t, CompressionZstd, h.Compression)
	require.Equal(t, uint64(64), h.Size)
	require.Equal(t, uint64(64-HeaderSize), h.PayloadSize())
}

func TestHeader_PayloadSize_Saturates(t *testing.T) {
	h := Header{Size: 4}
	require.Equal(t, uint64(0), h.PayloadSize())
}

func TestHeader_CheckType(t *testing.T) {
	h := Header{Type: TypeData}
	require.NoError(t, h.CheckType(100, TypeData))

	err := h.CheckType(100, TypeEntryArray)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected object of type EntryArray at offset 100, found Data")
}

func TestType_String_Unknown(t *testing.T) {
	require.Equal(t, "Unknown(200)", Type(200).String())
}

func TestReadHeader_Truncated(t *testing.T) {
	_, err := ReadHeader(make([]byte, 4))
	require.Error(t, err)
}

func TestReadEntryArrayHeader(t *testing.T) {
	buf := make([]byte, EntryArrayHeaderSize)
	buf[0] = 42
	h, err := ReadEntryArrayHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(42), h.NextEntryArrayOffset)
}

func validEntryHeaderBuf() []byte {
	buf := make([]byte, EntryHeaderSize)
	buf[0] = 1 // seqnum
	buf[16] = 1 // monotonic
	for i := 24; i < 40; i++ {
		buf[i] = 1 // boot_id
	}
	return buf
}

func TestReadEntryHeader_Valid(t *testing.T) {
	h, err := ReadEntryHeader(validEntryHeaderBuf())
	require.NoError(t, err)
	require.Equal(t, uint64(1), h.Seqnum)
	require.Equal(t, uint64(1), h.Monotonic)
	require.False(t, h.BootID.IsZero())
}

func TestReadEntryHeader_RejectsZeroSeqnum(t *testing.T) {
	buf := validEntryHeaderBuf()
	buf[0] = 0
	_, err := ReadEntryHeader(buf)
	require.Error(t, err)
}

func TestReadEntryHeader_RejectsZeroMonotonic(t *testing.T) {
	buf := validEntryHeaderBuf()
	buf[16] = 0
	_, err := ReadEntryHeader(buf)
	require.Error(t, err)
}

func TestReadEntryHeader_RejectsZeroBootID(t *testing.T) {
	buf := validEntryHeaderBuf()
	for i := 24; i < 40; i++ {
		buf[i] = 0
	}
	_, err := ReadEntryHeader(buf)
	require.Error(t, err)
}
