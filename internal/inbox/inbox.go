// Package inbox watches a drop folder and feeds JSON files dropped into it
// to the workspace: signup exports become attendance imports, roster files
// replace the document.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Billy-Davies-2/warband-roster/internal/attendance"
	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/roster"
)

// Kind is what a dropped file turned out to be
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindDocument   Kind = "document"
	KindUnknown    Kind = "unknown"
)

// ErrUnrecognised is returned for JSON that is neither a signup export nor a roster
var ErrUnrecognised = errors.New("inbox: file has neither signUps nor players")

// Target receives the parsed files. *workspace.Workspace satisfies it.
type Target interface {
	Load(raw []byte) (roster.State, error)
	ImportAttendance(ctx context.Context, raw []byte) (attendance.Outcome, error)
}

// Result describes one processed file
type Result struct {
	Path string
	Kind Kind
	Err  error
}

// Watcher watches one directory
type Watcher struct {
	dir      string
	target   Target
	debounce time.Duration
	log      *slog.Logger

	// OnProcessed, if set, is called after every file is handled
	OnProcessed func(Result)

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for dir
func New(dir string, target Target) *Watcher {
	return &Watcher{
		dir:      dir,
		target:   target,
		debounce: 250 * time.Millisecond,
		log:      logger.With("inbox"),
		pending:  make(map[string]*time.Timer),
	}
}

// Classify inspects the top-level keys of raw
func Classify(raw []byte) Kind {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return KindUnknown
	}
	if _, ok := top["signUps"]; ok {
		return KindAttendance
	}
	if _, ok := top["players"]; ok {
		return KindDocument
	}
	return KindUnknown
}

// Process reads path and hands it to the target
func (w *Watcher) Process(ctx context.Context, path string) Result {
	res := Result{Path: path, Kind: KindUnknown}

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", path, err)
		return res
	}

	res.Kind = Classify(raw)
	switch res.Kind {
	case KindAttendance:
		_, res.Err = w.target.ImportAttendance(ctx, raw)
	case KindDocument:
		_, res.Err = w.target.Load(raw)
	default:
		res.Err = ErrUnrecognised
	}
	return res
}

// Run watches until ctx is cancelled. Rapid writes to the same file are
// coalesced into one Process call.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox %s: %w", w.dir, err)
	}
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.Info("Watching inbox", "dir", w.dir)

	ready := make(chan string, 16)
	done := make(chan struct{})
	defer func() {
		close(done)
		w.stopTimers()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				w.log.Debug("Ignoring non-JSON file", "path", event.Name)
				continue
			}
			w.schedule(event.Name, ready, done)
		case path := <-ready:
			res := w.Process(ctx, path)
			if res.Err != nil {
				w.log.Warn("Inbox file rejected", "path", res.Path, "kind", res.Kind, "error", res.Err)
			} else {
				w.log.Info("Inbox file applied", "path", res.Path, "kind", res.Kind)
			}
			if w.OnProcessed != nil {
				w.OnProcessed(res)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("File watcher error", "error", err)
		}
	}
}

// schedule hands path to ready once writes to it settle. A timer that fires
// after Run has returned drops the path.
func (w *Watcher) schedule(path string, ready chan<- string, done <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path, ready, done) })
}

func (w *Watcher) fire(path string, ready chan<- string, done <-chan struct{}) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
	select {
	case ready <- path:
	case <-done:
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
