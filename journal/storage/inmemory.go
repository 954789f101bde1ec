package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/appgate/journaldreader/journal/jerr"
)

// InMemory is an Adapter over a fixed set of named byte buffers, with no
// filesystem involved at all: the vehicle for fixtures in tests.
type InMemory struct {
	files map[string][]byte
	backing
}

// NewInMemory returns an adapter serving the given relative-path -> content
// map. The map is not copied; callers should not mutate it afterward.
func NewInMemory(files map[string][]byte) *InMemory {
	return &InMemory{files: files}
}

func (a *InMemory) Open(_ context.Context, relPath string) error {
	data, ok := a.files[relPath]
	if !ok {
		return fmt.Errorf("%w: %s", jerr.ErrNotFound, relPath)
	}
	a.backing = backing{path: relPath, data: data, open: true}
	return nil
}

func (a *InMemory) Close(_ context.Context) error {
	a.backing = backing{}
	return nil
}

func (a *InMemory) Current() (string, bool) { return a.backing.current() }

func (a *InMemory) ReadExact(ctx context.Context, offset int64, n int) ([]byte, error) {
	return a.backing.readExact(ctx, offset, n)
}

func (a *InMemory) ReadBounded(ctx context.Context, offset int64, min, max int) ([]byte, error) {
	return a.backing.readBounded(ctx, offset, min, max)
}

func (a *InMemory) ListFiles(_ context.Context, prefix string) *FileIter {
	var items []FilenameInfo
	for rel := range a.files {
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			continue
		}
		if info, ok := ParseFilename(rel); ok {
			items = append(items, info)
		}
	}
	return newFileIter(items, nil)
}

func (a *InMemory) ListFilesSorted(ctx context.Context, prefix string) (*FileIter, error) {
	return sortedFromUnsorted(ctx, a, prefix)
}
