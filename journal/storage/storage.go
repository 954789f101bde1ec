// Package storage defines the byte-level storage adapter that the journal
// reader uses to open, read, and enumerate journal files, along with the
// filename scheme that maps (machine-id, scope) selections onto paths.
//
// Three adapters are shipped: OnDisk (memory-mapped real files), ReadWhole
// (eager whole-file slurp), and InMemory (byte buffers, for tests).
package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/jerr"
)

// Selection identifies a logical journal: a (machine-id, scope) pair.
type Selection struct {
	MachineID codec.U128
	Scope     string
}

func (s Selection) String() string {
	return fmt.Sprintf("%s/%s", hex.EncodeToString(s.MachineID[:]), s.Scope)
}

// FilenameKind distinguishes the two filename shapes in the scheme.
type FilenameKind int

const (
	// Latest is the live, currently-writable file: "(machine_id)/(scope).journal".
	Latest FilenameKind = iota
	// Archived is a rotated, immutable file:
	// "(machine_id)/(scope)@(file_seqnum)-(head_seqnum)-(head_realtime).journal".
	Archived
)

// FilenameInfo is the information encoded in (or decoded from) a journal
// filename.
type FilenameInfo struct {
	Kind      FilenameKind
	MachineID codec.U128
	Scope     string

	// Archived-only fields.
	FileSeqnum   codec.U128 // nonzero
	HeadSeqnum   uint64     // nonzero
	HeadRealtime time.Time
}

// Selection projects a FilenameInfo down to the (machine-id, scope) it
// belongs to.
func (i FilenameInfo) Selection() Selection {
	return Selection{MachineID: i.MachineID, Scope: i.Scope}
}

// MakeFilename builds a path from a FilenameInfo. It is the inverse of
// ParseFilename up to the case of hex digits and the ".journal" suffix.
func MakeFilename(info FilenameInfo) string {
	dir := hex.EncodeToString(info.MachineID[:])
	switch info.Kind {
	case Latest:
		return path.Join(dir, info.Scope+".journal")
	case Archived:
		fileSeqnum := hex.EncodeToString(info.FileSeqnum[:])
		headSeqnum := fmt.Sprintf("%016x", info.HeadSeqnum)
		headRealtime := fmt.Sprintf("%016x", codec.TimeToMicros(info.HeadRealtime))

		name := fmt.Sprintf("%s@%s-%s-%s.journal", info.Scope, fileSeqnum, headSeqnum, headRealtime)
		return path.Join(dir, name)
	default:
		panic("storage: unknown FilenameKind")
	}
}

// MakePrefix builds the archived-file listing prefix for a selection:
// "(machine_id)/(scope)@".
func MakePrefix(sel Selection) string {
	return path.Join(hex.EncodeToString(sel.MachineID[:]), sel.Scope+"@")
}

// ParseFilename decodes a path produced by the scheme in §3, case
// insensitively on hex digits, tolerant of a missing ".journal" suffix. It
// returns false for anything that doesn't match, including the "fss"
// sidecar file, which callers must ignore.
func ParseFilename(p string) (FilenameInfo, bool) {
	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	_, machineIDHex := path.Split(dir)
	if machineIDHex == "" {
		return FilenameInfo{}, false
	}

	midBytes, err := hex.DecodeString(strings.ToLower(machineIDHex))
	if err != nil || len(midBytes) != 16 {
		return FilenameInfo{}, false
	}
	machineID := codec.ReadU128(midBytes)

	name := strings.TrimSuffix(base, ".journal")
	if name == "fss" {
		return FilenameInfo{}, false
	}

	scope, rest, isArchived := cutByte(name, '@')
	if !isArchived {
		return FilenameInfo{Kind: Latest, MachineID: machineID, Scope: scope}, true
	}

	fileSeqnumHex, rest, ok := cutByte(rest, '-')
	if !ok {
		return FilenameInfo{}, false
	}
	headSeqnumHex, headRealtimeHex, ok := cutByte(rest, '-')
	if !ok {
		return FilenameInfo{}, false
	}

	fileSeqnumBytes, err := hex.DecodeString(strings.ToLower(fileSeqnumHex))
	if err != nil || len(fileSeqnumBytes) != 16 {
		return FilenameInfo{}, false
	}
	fileSeqnum := codec.ReadU128(fileSeqnumBytes)
	if fileSeqnum.IsZero() {
		return FilenameInfo{}, false
	}

	if len(headSeqnumHex) != 16 {
		return FilenameInfo{}, false
	}
	headSeqnum, err := strconv.ParseUint(headSeqnumHex, 16, 64)
	if err != nil || headSeqnum == 0 {
		return FilenameInfo{}, false
	}

	if len(headRealtimeHex) != 16 {
		return FilenameInfo{}, false
	}
	headRealtimeRaw, err := strconv.ParseUint(headRealtimeHex, 16, 64)
	if err != nil {
		return FilenameInfo{}, false
	}
	headRealtime := codec.MicrosToTime(headRealtimeRaw)

	return FilenameInfo{
		Kind:         Archived,
		MachineID:    machineID,
		Scope:        scope,
		FileSeqnum:   fileSeqnum,
		HeadSeqnum:   headSeqnum,
		HeadRealtime: headRealtime,
	}, true
}

// cutByte is strings.Cut for a byte separator, returning ok=false if sep
// isn't present.
func cutByte(s string, sep byte) (before, after string, ok bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// Less implements the sort order of §3: archived files ordered by
// (head_realtime, head_seqnum, file_seqnum_id, scope, machine_id); archived
// files precede the live file.
func Less(a, b FilenameInfo) bool {
	if a.Kind != b.Kind {
		return a.Kind == Archived // Archived < Latest
	}
	if a.Kind == Latest {
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		return string(a.MachineID[:]) < string(b.MachineID[:])
	}
	if !a.HeadRealtime.Equal(b.HeadRealtime) {
		return a.HeadRealtime.Before(b.HeadRealtime)
	}
	if a.HeadSeqnum != b.HeadSeqnum {
		return a.HeadSeqnum < b.HeadSeqnum
	}
	if a.FileSeqnum != b.FileSeqnum {
		return string(a.FileSeqnum[:]) < string(b.FileSeqnum[:])
	}
	if a.Scope != b.Scope {
		return a.Scope < b.Scope
	}
	return string(a.MachineID[:]) < string(b.MachineID[:])
}

// FileIter is a lazy, single-pass, pull-based cursor over FilenameInfo
// results, in the style of bufio.Scanner: call Next until it returns false,
// then check Err.
type FileIter struct {
	items []FilenameInfo
	pos   int
	err   error
	cur   FilenameInfo
}

func newFileIter(items []FilenameInfo, err error) *FileIter {
	return &FileIter{items: items, err: err}
}

// Next advances the cursor. It returns false at end of sequence or on error;
// distinguish the two with Err.
func (it *FileIter) Next(_ context.Context) bool {
	if it.err != nil || it.pos >= len(it.items) {
		return false
	}
	it.cur = it.items[it.pos]
	it.pos++
	return true
}

// Info returns the FilenameInfo produced by the most recent Next call.
func (it *FileIter) Info() FilenameInfo { return it.cur }

// Err returns the first error encountered, if any.
func (it *FileIter) Err() error { return it.err }

// Adapter is the byte-level storage collaborator (§4.1): open/close/seek/
// read over a single file at a time, plus filename listing.
//
// Every method may be given a context for cancellation; this is the
// idiomatic Go analogue of the spec's cooperative suspension points.
type Adapter interface {
	// Open opens relPath for reading. If another file is already open, it is
	// implicitly closed first. Fails with an error wrapping jerr.ErrNotFound
	// if relPath does not exist.
	Open(ctx context.Context, relPath string) error

	// Close idempotently releases the currently open file, if any.
	Close(ctx context.Context) error

	// Current returns the relative path of the open file, if any.
	Current() (string, bool)

	// ReadExact reads exactly n bytes at offset, failing with
	// jerr.ErrUnexpectedEOF if fewer are available.
	ReadExact(ctx context.Context, offset int64, n int) ([]byte, error)

	// ReadBounded reads at least min bytes and up to max bytes at offset,
	// failing with jerr.ErrUnexpectedEOF if fewer than min are available.
	ReadBounded(ctx context.Context, offset int64, min, max int) ([]byte, error)

	// ListFiles recursively enumerates journal files under the root,
	// filtered by prefix (a relative path, possibly with a partial filename
	// as its last component). Unparsable names and the "fss" sidecar are
	// skipped. A nil/empty prefix lists everything.
	ListFiles(ctx context.Context, prefix string) *FileIter

	// ListFilesSorted is like ListFiles but totally ordered per Less.
	ListFilesSorted(ctx context.Context, prefix string) (*FileIter, error)
}

// sortedFromUnsorted is the default ListFilesSorted: buffer ListFiles into a
// slice and sort it. Adapters may override this for efficiency.
func sortedFromUnsorted(ctx context.Context, a Adapter, prefix string) (*FileIter, error) {
	it := a.ListFiles(ctx, prefix)
	var items []FilenameInfo
	for it.Next(ctx) {
		items = append(items, it.Info())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return Less(items[i], items[j]) })
	return newFileIter(items, nil), nil
}

// walkDirFiles recursively enumerates journal files under root, filtered by
// prefix, shared by every Adapter whose ListFiles walks a real directory
// tree (OnDisk, ReadWhole — InMemory has no directory to walk).
func walkDirFiles(root, prefix string) *FileIter {
	var items []FilenameInfo
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			return nil
		}
		if info, ok := ParseFilename(rel); ok {
			items = append(items, info)
		}
		return nil
	})
	if walkErr != nil {
		return newFileIter(nil, walkErr)
	}
	return newFileIter(items, nil)
}

// minSeekOffset is the smallest offset the entry walker is ever allowed to
// address; anything below it points into the header itself and is reported
// as invalid data.
const minSeekOffset = 208

// CheckOffset asserts the small-seek safety invariant of §4.1: every offset
// the entry walker follows must be at or past the end of the smallest
// possible header.
func CheckOffset(offset uint64) error {
	if offset < minSeekOffset {
		return fmt.Errorf("%w: offset %d is inside the file header", jerr.ErrInvalidData, offset)
	}
	return nil
}
