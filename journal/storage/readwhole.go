package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/appgate/journaldreader/journal/jerr"
)

// ReadWhole is an Adapter that eagerly slurps the whole file into a plain
// []byte on Open, trading memory for avoiding the mmap syscalls: useful on
// filesystems where mmap is unavailable or undesirable.
type ReadWhole struct {
	root string
	backing
}

// NewReadWhole returns a ReadWhole adapter rooted at root.
func NewReadWhole(root string) *ReadWhole {
	return &ReadWhole{root: root}
}

func (a *ReadWhole) Open(_ context.Context, relPath string) error {
	full := filepath.Join(a.root, filepath.FromSlash(relPath))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", jerr.ErrNotFound, relPath)
		}
		return err
	}
	a.backing = backing{path: relPath, data: data, open: true}
	return nil
}

func (a *ReadWhole) Close(_ context.Context) error {
	a.backing = backing{}
	return nil
}

func (a *ReadWhole) Current() (string, bool) { return a.backing.current() }

func (a *ReadWhole) ReadExact(ctx context.Context, offset int64, n int) ([]byte, error) {
	return a.backing.readExact(ctx, offset, n)
}

func (a *ReadWhole) ReadBounded(ctx context.Context, offset int64, min, max int) ([]byte, error) {
	return a.backing.readBounded(ctx, offset, min, max)
}

func (a *ReadWhole) ListFiles(_ context.Context, prefix string) *FileIter {
	return walkDirFiles(a.root, prefix)
}

func (a *ReadWhole) ListFilesSorted(ctx context.Context, prefix string) (*FileIter, error) {
	return sortedFromUnsorted(ctx, a, prefix)
}
