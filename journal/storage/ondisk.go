package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"

	"github.com/appgate/journaldreader/journal/jerr"
)

// OnDisk is the production Adapter: it memory-maps whichever file is
// currently open and serves reads as bounded slices of the mapping.
type OnDisk struct {
	root string

	backing
	file *os.File
	mm   mmap.MMap
}

// NewOnDisk returns an adapter rooted at root, the directory that contains
// the per-machine-id subdirectories.
func NewOnDisk(root string) *OnDisk {
	return &OnDisk{root: root}
}

func (a *OnDisk) Open(ctx context.Context, relPath string) error {
	if err := a.Close(ctx); err != nil {
		return err
	}

	full := filepath.Join(a.root, filepath.FromSlash(relPath))
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", jerr.ErrNotFound, relPath)
		}
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.Size() == 0 {
		// mmap-go rejects zero-length mappings; treat an empty file as
		// having no bytes to read rather than failing Open.
		a.file = f
		a.backing = backing{path: relPath, data: nil, open: true}
		return nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap %s: %w", relPath, err)
	}

	a.file = f
	a.mm = mm
	a.backing = backing{path: relPath, data: []byte(mm), open: true}
	return nil
}

func (a *OnDisk) Close(_ context.Context) error {
	if !a.backing.open {
		return nil
	}
	var unmapErr error
	if a.mm != nil {
		unmapErr = a.mm.Unmap()
		a.mm = nil
	}
	closeErr := a.file.Close()
	a.file = nil
	a.backing = backing{}
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}

func (a *OnDisk) Current() (string, bool) { return a.backing.current() }

func (a *OnDisk) ReadExact(ctx context.Context, offset int64, n int) ([]byte, error) {
	return a.backing.readExact(ctx, offset, n)
}

func (a *OnDisk) ReadBounded(ctx context.Context, offset int64, min, max int) ([]byte, error) {
	return a.backing.readBounded(ctx, offset, min, max)
}

func (a *OnDisk) ListFiles(_ context.Context, prefix string) *FileIter {
	return walkDirFiles(a.root, prefix)
}

func (a *OnDisk) ListFilesSorted(ctx context.Context, prefix string) (*FileIter, error) {
	return sortedFromUnsorted(ctx, a, prefix)
}
