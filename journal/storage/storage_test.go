package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appgate/journaldreader/journal/codec"
)

func TestParseFilename_Latest(t *testing.T) {
	info, ok := ParseFilename("c444c71c038d45b0af201444a83b91c9/system.journal")
	require.True(t, ok)
	require.Equal(t, Latest, info.Kind)
	require.Equal(t, "system", info.Scope)
	require.Equal(t, "c444c71c038d45b0af201444a83b91c9", hexString(info.MachineID))
}

func TestParseFilename_Archived(t *testing.T) {
	name := "c444c71c038d45b0af201444a83b91c9/system@ae257a224b70405a9042a99aef057ce0-00000000002d5994-00062368053e1184.journal"
	info, ok := ParseFilename(name)
	require.True(t, ok)
	require.Equal(t, Archived, info.Kind)
	require.Equal(t, "system", info.Scope)
	require.Equal(t, "ae257a224b70405a9042a99aef057ce0", hexString(info.FileSeqnum))
	require.Equal(t, uint64(0x2d5994), info.HeadSeqnum)
}

func TestMakePrefix(t *testing.T) {
	sel := Selection{MachineID: rawFromHex("c444c71c038d45b0af201444a83b91c9"), Scope: "system"}
	require.Equal(t, "c444c71c038d45b0af201444a83b91c9/system@", MakePrefix(sel))
}

func TestParseFilename_IgnoresFss(t *testing.T) {
	_, ok := ParseFilename("c444c71c038d45b0af201444a83b91c9/fss")
	require.False(t, ok)
}

func TestParseFilename_IgnoresGarbage(t *testing.T) {
	_, ok := ParseFilename("not-hex/whatever.journal")
	require.False(t, ok)
	_, ok = ParseFilename("c444c71c038d45b0af201444a83b91c9/system@badstuff.journal")
	require.False(t, ok)
}

func TestFilenameRoundTrip_Latest(t *testing.T) {
	info := FilenameInfo{Kind: Latest, MachineID: rawFromHex("c444c71c038d45b0af201444a83b91c9"), Scope: "system"}
	name := MakeFilename(info)
	got, ok := ParseFilename(name)
	require.True(t, ok)
	require.Equal(t, info, got)
}

func TestFilenameRoundTrip_Archived(t *testing.T) {
	info := FilenameInfo{
		Kind:         Archived,
		MachineID:    rawFromHex("c444c71c038d45b0af201444a83b91c9"),
		Scope:        "system",
		FileSeqnum:   rawFromHex("ae257a224b70405a9042a99aef057ce0"),
		HeadSeqnum:   0x2d5994,
		HeadRealtime: codec.MicrosToTime(0x62368053e1184),
	}
	name := MakeFilename(info)
	got, ok := ParseFilename(name)
	require.True(t, ok)
	require.Equal(t, info.Kind, got.Kind)
	require.Equal(t, info.MachineID, got.MachineID)
	require.Equal(t, info.Scope, got.Scope)
	require.Equal(t, info.FileSeqnum, got.FileSeqnum)
	require.Equal(t, info.HeadSeqnum, got.HeadSeqnum)
	require.True(t, info.HeadRealtime.Equal(got.HeadRealtime))
}

func TestSortOrder_ArchivedBeforeLive(t *testing.T) {
	mid := rawFromHex("c444c71c038d45b0af201444a83b91c9")
	live := FilenameInfo{Kind: Latest, MachineID: mid, Scope: "system"}
	older := FilenameInfo{Kind: Archived, MachineID: mid, Scope: "system", FileSeqnum: rawFromHex("11111111111111111111111111111111"), HeadSeqnum: 1, HeadRealtime: time.Unix(0, 0)}
	newer := FilenameInfo{Kind: Archived, MachineID: mid, Scope: "system", FileSeqnum: rawFromHex("22222222222222222222222222222222"), HeadSeqnum: 2, HeadRealtime: time.Unix(100, 0)}

	require.True(t, Less(older, newer))
	require.True(t, Less(newer, live))
	require.False(t, Less(live, older))
}

// hexString re-encodes a U128 the same way MakeFilename does, for
// assertions that don't want to import encoding/hex directly.
func hexString(u codec.U128) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range u {
		out[2*i] = hexdigits[b>>4]
		out[2*i+1] = hexdigits[b&0xf]
	}
	return string(out)
}

func rawFromHex(s string) codec.U128 {
	var u codec.U128
	n := 0
	hi := byte(0)
	have := false
	for _, c := range s {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = byte(c - '0')
		case c >= 'a' && c <= 'f':
			v = byte(c-'a') + 10
		default:
			continue
		}
		if !have {
			hi = v
			have = true
			continue
		}
		if n < 16 {
			u[n] = hi<<4 | v
			n++
		}
		have = false
	}
	return u
}
