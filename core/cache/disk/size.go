package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type blockFile struct {
	path    string
	size    int64
	modTime time.Time
}

// walkBlocks visits every committed block file under root.
// In-flight temp files are skipped.
func walkBlocks(root string, visit func(blockFile)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), "block-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		visit(blockFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func dirSize(root string) (int64, error) {
	var total int64
	err := walkBlocks(root, func(b blockFile) {
		total += b.size
	})
	return total, err
}

// pruneDir removes the oldest block files until at most targetBytes remain.
func pruneDir(root string, targetBytes int64) (freed, remaining int64, err error) {
	var blocks []blockFile
	if err := walkBlocks(root, func(b blockFile) {
		remaining += b.size
		blocks = append(blocks, b)
	}); err != nil {
		return 0, 0, err
	}
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].modTime.Equal(blocks[j].modTime) {
			return blocks[i].path < blocks[j].path
		}
		return blocks[i].modTime.Before(blocks[j].modTime)
	})

	for _, b := range blocks {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(b.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, remaining, err
		}
		remaining -= b.size
		freed += b.size
	}
	return freed, remaining, nil
}
