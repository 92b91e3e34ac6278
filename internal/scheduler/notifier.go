package scheduler

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// notifier calls trigger once a watched directory has been quiet for delay
// after a create or write event. New subdirectories are watched as they
// appear since fsnotify is not recursive.
type notifier struct {
	watcher *fsnotify.Watcher
	delay   time.Duration
	trigger func()
	logger  *logrus.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

func newNotifier(dirs []string, delay time.Duration, trigger func(), logger *logrus.Logger) (*notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
	}

	n := &notifier{
		watcher: w,
		delay:   delay,
		trigger: trigger,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

func (n *notifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := n.watcher.Add(event.Name); err != nil {
						n.logger.WithError(err).WithField("path", event.Name).Debug("Failed to watch new directory")
					}
				}
			}
			n.schedule()
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.WithError(err).Warn("Filesystem watcher error")
		}
	}
}

// schedule (re)arms the quiet-period timer
func (n *notifier) schedule() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.delay, func() {
		select {
		case <-n.done:
		default:
			n.trigger()
		}
	})
}

// Close stops watching
func (n *notifier) Close() {
	n.once.Do(func() {
		close(n.done)
		n.mu.Lock()
		if n.timer != nil {
			n.timer.Stop()
		}
		n.mu.Unlock()
		n.watcher.Close()
	})
}
