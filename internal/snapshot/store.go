// ABOUTME: Snapshot files: one zstd-compressed JSON document per snapshot
// ABOUTME: Directory loads fan out with errgroup; missing directories mean no prior state

package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/mauromedda/pi-modes/internal/config"
)

// Ext is the snapshot file extension.
const Ext = ".json.zst"

// loadConcurrency bounds parallel file reads.
const loadConcurrency = 8

// FileName returns the file name for s: sortable timestamp, pair, id.
func FileName(s Snapshot) string {
	return fmt.Sprintf("%s_%s-%s_%s%s", s.At.UTC().Format("20060102T150405.000000000"), s.From, s.To, s.ID, Ext)
}

// Save writes s to path atomically.
func Save(path string, s Snapshot) error {
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finalize compression: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}

// Load reads one snapshot file.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// snapshotFiles lists snapshot files in dir. A missing dir yields nil.
func snapshotFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), Ext) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// LoadDir reads every snapshot in dir in parallel, oldest first. Unreadable
// files are logged and skipped.
func LoadDir(ctx context.Context, dir string) ([]Snapshot, error) {
	files, err := snapshotFiles(dir)
	if err != nil || len(files) == 0 {
		return nil, err
	}

	// Each goroutine writes its own slot; no mutex needed.
	slots := make([]*Snapshot, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := Load(path)
			if err != nil {
				snapLog.Warn("skipping snapshot: %v", err)
				return nil
			}
			slots[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	slices.SortStableFunc(out, func(a, b Snapshot) int { return a.At.Compare(b.At) })
	return out, nil
}

// PruneDir removes snapshot files in dir captured before cutoff. The capture
// time comes from the file contents; unreadable files fall back to mtime.
func PruneDir(dir string, cutoff time.Time) (int, error) {
	files, err := snapshotFiles(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, path := range files {
		at, err := capturedAt(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !at.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func capturedAt(path string) (time.Time, error) {
	if s, err := Load(path); err == nil {
		return s.At, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
