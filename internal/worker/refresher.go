package worker

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campus-forum/internal/config"
	"github.com/campus-forum/internal/domain"
)

// FeedSource recomputes cached feeds
type FeedSource interface {
	RefreshFeed(ctx context.Context, category string, strategy domain.SortStrategy) (int, error)
	Categories(ctx context.Context) ([]string, error)
}

// FeedRefresher periodically re-ranks every feed so cached time-decayed
// scores do not go stale between writes
type FeedRefresher struct {
	feeds   FeedSource
	config  *config.FeedConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewFeedRefresher creates a new feed refresher
func NewFeedRefresher(feeds FeedSource, cfg *config.FeedConfig, logger *slog.Logger) *FeedRefresher {
	return &FeedRefresher{
		feeds:  feeds,
		config: cfg,
		logger: logger,
	}
}

// Start warms every feed once and then refreshes on each interval
func (w *FeedRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info("feed refresher started", "interval", w.config.RefreshInterval)

	go w.run(ctx, stopCh, doneCh)
	return nil
}

// Stop stops the background refresh and waits for the current cycle
func (w *FeedRefresher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.logger.Info("feed refresher stopped")
	return nil
}

// run is the main worker loop
func (w *FeedRefresher) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	w.refreshAll(ctx)

	ticker := time.NewTicker(w.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.refreshAll(ctx)
		}
	}
}

// categories merges the configured categories with those that have posts,
// always including the combined feed
func (w *FeedRefresher) categories(ctx context.Context) []string {
	seen := map[string]bool{domain.CategoryAll: true}
	out := []string{domain.CategoryAll}
	add := func(c string) {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, c := range w.config.Categories {
		add(c)
	}

	discovered, err := w.feeds.Categories(ctx)
	if err != nil {
		w.logger.Warn("failed to list categories, refreshing configured ones", "error", err)
	}
	for _, c := range discovered {
		add(c)
	}

	sort.Strings(out[1:])
	return out
}

// refreshAll recomputes every category and strategy combination
func (w *FeedRefresher) refreshAll(ctx context.Context) {
	w.logger.Debug("starting refresh cycle")
	startTime := time.Now()

	refreshed := 0
	errorCount := 0

	for _, category := range w.categories(ctx) {
		for _, strategy := range domain.SortStrategies {
			if ctx.Err() != nil {
				return
			}
			if _, err := w.feeds.RefreshFeed(ctx, category, strategy); err != nil {
				w.logger.Error("failed to refresh feed",
					"category", category,
					"sort", strategy,
					"error", err,
				)
				errorCount++
				continue
			}
			refreshed++
		}
	}

	w.logger.Info("refresh cycle completed",
		"duration", time.Since(startTime),
		"refreshed", refreshed,
		"errors", errorCount,
	)
}

// IsRunning returns whether the worker is currently running
func (w *FeedRefresher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single refresh cycle
func (w *FeedRefresher) RunOnce(ctx context.Context) {
	w.refreshAll(ctx)
}
