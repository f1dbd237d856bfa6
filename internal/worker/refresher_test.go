package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campus-forum/internal/config"
	"github.com/campus-forum/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFeeds struct {
	mu         sync.Mutex
	categories []string
	listErr    error
	failOn     string
	calls      []string
}

func (f *fakeFeeds) RefreshFeed(_ context.Context, category string, strategy domain.SortStrategy) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, category+":"+string(strategy))
	if category == f.failOn {
		return 0, errors.New("storage unavailable")
	}
	return 3, nil
}

func (f *fakeFeeds) Categories(context.Context) ([]string, error) {
	return f.categories, f.listErr
}

func (f *fakeFeeds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newRefresher(feeds *fakeFeeds, cfg *config.FeedConfig) *FeedRefresher {
	return NewFeedRefresher(feeds, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunOnce_CoversEveryCategoryAndStrategy(t *testing.T) {
	feeds := &fakeFeeds{categories: []string{"sports", "general"}}
	cfg := &config.FeedConfig{Categories: []string{"General", "events"}}

	newRefresher(feeds, cfg).RunOnce(context.Background())

	var want []string
	for _, c := range []string{"all", "events", "general", "sports"} {
		for _, s := range domain.SortStrategies {
			want = append(want, c+":"+string(s))
		}
	}
	assert.Equal(t, want, feeds.calls)
}

func TestRunOnce_ContinuesPastFailures(t *testing.T) {
	feeds := &fakeFeeds{
		categories: []string{"general"},
		listErr:    nil,
		failOn:     "all",
	}

	newRefresher(feeds, &config.FeedConfig{}).RunOnce(context.Background())
	assert.Len(t, feeds.calls, 2*len(domain.SortStrategies))
}

func TestRunOnce_CategoryListFailure(t *testing.T) {
	feeds := &fakeFeeds{listErr: errors.New("timeout")}

	newRefresher(feeds, &config.FeedConfig{Categories: []string{"general"}}).RunOnce(context.Background())
	assert.Len(t, feeds.calls, 2*len(domain.SortStrategies))
}

func TestStartStop(t *testing.T) {
	feeds := &fakeFeeds{}
	w := newRefresher(feeds, &config.FeedConfig{RefreshInterval: 10 * time.Millisecond})

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	require.Eventually(t, func() bool {
		return feeds.callCount() >= 2*len(domain.SortStrategies)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// Restartable after a stop
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}

func TestStop_Concurrent(t *testing.T) {
	feeds := &fakeFeeds{}
	w := newRefresher(feeds, &config.FeedConfig{RefreshInterval: time.Hour})
	require.NoError(t, w.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Stop())
		}()
	}
	wg.Wait()

	assert.False(t, w.IsRunning())
}
