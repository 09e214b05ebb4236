package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Change is a batch of source edits that settled within one debounce window.
type Change struct {
	Paths []string
}

// FileWatcher monitors source directories and reports settled edits.
type FileWatcher struct {
	dirs     []string
	exts     map[string]bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// NewFileWatcher creates a watcher for dirs. When exts is empty every
// non-hidden file counts.
func NewFileWatcher(dirs []string, exts []string, debounce time.Duration) (*FileWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[strings.ToLower(e)] = true
	}
	return &FileWatcher{
		dirs:     dirs,
		exts:     set,
		debounce: debounce,
		watcher:  fw,
		done:     make(chan struct{}),
		pending:  make(map[string]bool),
	}, nil
}

// Start begins watching directories (recursively) and returns a channel of
// changes. The channel is closed when ctx is canceled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) (<-chan Change, error) {
	for _, dir := range w.dirs {
		w.addRecursive(dir)
	}
	changes := make(chan Change, 4)
	go w.watchLoop(ctx, changes)
	return changes, nil
}

// addRecursive walks a directory tree and adds all directories to the watcher.
func (w *FileWatcher) addRecursive(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			tuilog.Log.Warn("Failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
	tuilog.Log.Info("Watching source tree", "root", root)
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "__pycache__" || name == "node_modules"
}

// Stop stops the file watcher and releases resources.
func (w *FileWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *FileWatcher) relevant(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *FileWatcher) watchLoop(ctx context.Context, changes chan<- Change) {
	var wg sync.WaitGroup
	defer func() {
		w.mu.Lock()
		if w.timer != nil && w.timer.Stop() {
			wg.Done()
		}
		w.mu.Unlock()
		wg.Wait()
		close(changes)
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// If a new directory was created, watch it recursively
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !skipDir(info.Name()) {
						w.addRecursive(event.Name)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}

			// Debounce: one timer for the whole tree, restarted by every edit
			w.mu.Lock()
			w.pending[event.Name] = true
			if w.timer != nil && w.timer.Stop() {
				wg.Done()
			}
			wg.Add(1)
			w.timer = time.AfterFunc(w.debounce, func() {
				defer wg.Done()
				w.mu.Lock()
				paths := make([]string, 0, len(w.pending))
				for p := range w.pending {
					paths = append(paths, p)
				}
				w.pending = make(map[string]bool)
				w.mu.Unlock()
				if len(paths) == 0 {
					return
				}

				select {
				case changes <- Change{Paths: paths}:
					tuilog.Log.Debug("Source change", "files", len(paths))
				case <-ctx.Done():
				case <-w.done:
				}
			})
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			tuilog.Log.Error("Watcher error", "error", err)

		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
