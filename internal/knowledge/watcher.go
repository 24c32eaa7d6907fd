package knowledge

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeromicro/go-zero/core/logx"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads a Base when one of the fixed knowledge files in a directory changes.
type Watcher struct {
	base     *Base
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher starts watching dir. Events are only acted on once Run is called.
func NewWatcher(base *Base, dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{base: base, dir: dir, watcher: w, debounce: defaultDebounce}, nil
}

// Run reloads the base after each burst of relevant events until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !IsFixedName(filepath.Base(event.Name)) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s := w.base.Reload(ctx)
			logx.Infof("[watch] %s changed, knowledge ready=%t", w.dir, s.Ready())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logx.Errorf("[watch] %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
