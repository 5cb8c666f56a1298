package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/irgordon/hostpanel/api/internal/adapters"
	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// SiteWatcher publishes a sites.changed event whenever an entry in one of the
// site directories appears, changes or goes away, including edits made
// outside the API.
type SiteWatcher struct {
	watcher *fsnotify.Watcher
	events  domain.EventPublisher
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSiteWatcher starts watching dirs right away; events queue until Watch runs.
func NewSiteWatcher(events domain.EventPublisher, logger *slog.Logger, dirs ...string) (*SiteWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return &SiteWatcher{
		watcher: w,
		events:  events,
		logger:  logger.With(slog.String("component", "site_watcher")),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called.
func (sw *SiteWatcher) Watch(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return errors.New("watcher already running")
	}
	sw.running = true
	sw.mu.Unlock()
	defer close(sw.doneCh)

	sw.logger.Info("site watcher started", slog.Any("dirs", sw.watcher.WatchList()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sw.stopCh:
			return nil

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !relevant(event) {
				continue
			}
			name := filepath.Base(event.Name)
			sw.logger.Debug("site entry changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			sw.events.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(domain.EventSitesChanged, name,
				fmt.Sprintf("%s: %s", opName(event.Op), event.Name)))

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			sw.logger.Error("site watcher error", slog.String("error", err.Error()))
		}
	}
}

// Stop ends Watch and releases the inotify handles.
func (sw *SiteWatcher) Stop() error {
	sw.mu.Lock()
	wasRunning := sw.running
	sw.running = false
	sw.mu.Unlock()

	if wasRunning {
		select {
		case <-sw.stopCh:
		default:
			close(sw.stopCh)
		}
		<-sw.doneCh
	}
	return sw.watcher.Close()
}

// relevant drops permission changes and the lifecycle's own temp files.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return !adapters.IsTempName(filepath.Base(event.Name))
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "created"
	case op.Has(fsnotify.Remove):
		return "removed"
	case op.Has(fsnotify.Rename):
		return "renamed"
	default:
		return "modified"
	}
}
