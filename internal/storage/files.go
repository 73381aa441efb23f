package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const itemSuffix = ".json"

// Files keeps one file per key under a directory. Writes go through a
// temporary file and a rename so readers never observe a partial value.
type Files struct {
	dir   string
	quota int

	mu  sync.Mutex
	own map[string]stamp
}

// stamp identifies the file state left by this store's last write or removal
// of a key, so Watch can skip the events it caused.
type stamp struct {
	size    int64
	modTime time.Time
	removed bool
}

// OpenFiles creates dir if needed and returns a Files store rooted there.
func OpenFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}
	return &Files{dir: dir, quota: DefaultQuota, own: make(map[string]stamp)}, nil
}

// Dir returns the directory backing the store.
func (f *Files) Dir() string { return f.dir }

// SetQuota changes the per-value size limit. Zero disables the check.
func (f *Files) SetQuota(bytes int) { f.quota = bytes }

func (f *Files) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+itemSuffix)
}

func keyFromPath(p string) (string, bool) {
	name := filepath.Base(p)
	if !strings.HasSuffix(name, itemSuffix) || strings.HasPrefix(name, ".") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, itemSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

func (f *Files) GetItem(key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return string(data), true, nil
}

func (f *Files) SetItem(key, value string) error {
	if err := checkQuota(key, value, f.quota); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %q: %w", key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if fi, err := os.Stat(f.path(key)); err == nil {
		f.own[key] = stamp{size: fi.Size(), modTime: fi.ModTime()}
	} else {
		delete(f.own, key)
	}
	return nil
}

func (f *Files) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	f.own[key] = stamp{removed: true}
	return nil
}

// selfCaused reports whether the file for key is still in the state this
// store left it in.
func (f *Files) selfCaused(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.own[key]
	if !ok {
		return false
	}
	fi, err := os.Stat(f.path(key))
	if st.removed {
		return errors.Is(err, fs.ErrNotExist)
	}
	return err == nil && fi.Size() == st.size && fi.ModTime().Equal(st.modTime)
}

// Watch reports changes made to the directory by other writers until ctx is
// cancelled. Writes and removals made through f are not reported. The returned
// channel is closed on exit.
func (f *Files) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", f.dir, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				key, ok := keyFromPath(ev.Name)
				if !ok || f.selfCaused(key) {
					continue
				}
				var c Change
				switch {
				case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
					c = Change{Key: key}
				case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
					c = Change{Key: key, Removed: true}
				default:
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("vault watcher error", "dir", f.dir, "error", err)
			}
		}
	}()
	return out, nil
}
