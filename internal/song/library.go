package song

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
)

// Extensions accepted when scanning a song directory.
var Extensions = []string{".json", ".txt", ".skysheet"}

type cacheEntry struct {
	song    *Song
	modTime time.Time
	size    int64
}

// Library caches parsed songs by path. A cached song is re-parsed when its file changes.
// Safe for concurrent use.
type Library struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewLibrary creates an empty library.
func NewLibrary(logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Library{logger: logger, cache: make(map[string]cacheEntry)}
}

// Load returns the song at path, parsing it on first use.
func (l *Library) Load(path string) (*Song, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve song path: %w", err)
	}
	info, err := statFile(abs)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	e, ok := l.cache[abs]
	l.mu.RUnlock()
	if ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		l.logger.Debug("song cache hit", "path", abs)
		return e.song, nil
	}

	s, err := ParseFile(abs)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[abs] = cacheEntry{song: s, modTime: info.ModTime(), size: info.Size()}
	l.mu.Unlock()

	l.logger.Debug("song parsed", "path", abs, "title", s.Title, "notes", s.Notes, "skipped", s.Skipped)
	return s, nil
}

// Len returns the number of cached songs.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

// Forget drops every cached song.
func (l *Library) Forget() {
	l.mu.Lock()
	clear(l.cache)
	l.mu.Unlock()
}

// ScanResult is one file found by Scan.
type ScanResult struct {
	Path string
	Song *Song
	Err  error
}

// Scan walks dir for song files and loads them in parallel (workers <= 0 means one per CPU).
// Per-file parse failures are reported in the results; only walk errors and cancellation fail
// the scan. Results are ordered by path.
func (l *Library) Scan(ctx context.Context, dir string, workers int) ([]ScanResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	slices.Sort(paths)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]ScanResult, len(paths))
	wg := sizedwaitgroup.New(workers)
	for i, p := range paths {
		if err := wg.AddWithContext(ctx); err != nil {
			break
		}
		go func(i int, p string) {
			defer wg.Done()
			s, err := l.Load(p)
			results[i] = ScanResult{Path: p, Song: s, Err: err}
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.logger.Info("song library scanned", "dir", dir, "files", len(paths), "cached", l.Len())
	return results, nil
}
