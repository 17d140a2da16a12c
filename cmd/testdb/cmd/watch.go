package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	testdb "github.com/carlosnayan/prisma-testdb"
	"github.com/carlosnayan/prisma-testdb/cli"
	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/markstore"
)

const watchDebounce = 250 * time.Millisecond

var watchCmd = &cli.Command{
	Name:  "watch",
	Short: "Clear setup marks whenever the migrations change",
	Long: `Watches the migrations directory and clears the setup marks of the
test databases after every change, so the next --reuse-db run migrates
them again. Stops on Ctrl+C.`,
	Usage: "testdb watch [-n workers]",
	Flags: []*cli.Flag{workersCountFlag()},
	Run:   runWatch,
}

func runWatch(args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	m, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	names, err := targetNames(m, nil, workersFlag)
	if err != nil {
		return err
	}

	dir := cfg.GetMigrationsPath()
	w, err := newMigrationsWatcher(dir, watchDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintln(out, Info(fmt.Sprintf("Watching %s (Ctrl+C to stop)", dir)))

	w.Run(ctx, func(changed []string) {
		for _, path := range changed {
			fmt.Fprintln(out, Info("changed "+path))
		}
		if err := clearMarks(ctx, m, cfg, names); err != nil {
			logger.Error("clearing marks: %v", err)
		}
	})
	return nil
}

// clearMarks removes the marks of names. The file store is wiped as a whole
// so marks of databases outside names are cleared too.
func clearMarks(ctx context.Context, m *testdb.Manager, cfg *config.Config, names []string) error {
	if cfg.Marks.Store == config.MarkStoreFile {
		n, err := markstore.NewFile(cfg.GetMarksDir()).Clear()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, Warning(fmt.Sprintf("Cleared %d mark(s)", n)))
		return nil
	}

	for _, name := range names {
		if err := m.Unmark(ctx, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(out, "%s %s\n", Warning("Unmarked"), DatabaseName(name))
	}
	return nil
}

// migrationsWatcher reports debounced changes below a migrations directory.
// New migration directories are watched as they appear.
type migrationsWatcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	pending  map[string]fsnotify.Op
	timer    *time.Timer
}

func newMigrationsWatcher(dir string, debounce time.Duration) (*migrationsWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations path %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fsnotify watcher: %w", err)
	}

	w := &migrationsWatcher{
		fsw:      fsw,
		debounce: debounce,
		pending:  make(map[string]fsnotify.Op),
	}
	if err := w.addTree(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *migrationsWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Close stops watching.
func (w *migrationsWatcher) Close() error {
	return w.fsw.Close()
}

// Run calls onChange with the sorted changed paths after each quiet period
// until ctx is done or the watcher is closed.
func (w *migrationsWatcher) Run(ctx context.Context, onChange func(changed []string)) {
	for {
		var timerC <-chan time.Time
		if w.timer != nil {
			timerC = w.timer.C
		}

		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: %v", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn("watch: %v", err)
					}
				}
			}
			w.record(ev.Name, ev.Op)
		case <-timerC:
			w.timer = nil
			onChange(w.flush())
		}
	}
}

func (w *migrationsWatcher) record(path string, op fsnotify.Op) {
	w.pending[path] |= op

	if w.timer == nil {
		w.timer = time.NewTimer(w.debounce)
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(w.debounce)
}

func (w *migrationsWatcher) flush() []string {
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]fsnotify.Op)
	sort.Strings(changed)
	return changed
}
