package web

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/normalisers"
)

// fakeTabs hands out plain contexts, which chromedp rejects, so every
// acquisition fails after the tab is opened.
type fakeTabs struct {
	opened   int
	released int
	err      error
}

func (f *fakeTabs) NewTab(ctx context.Context) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.opened++
	return ctx, func() { f.released++ }, nil
}

func TestRenderedPage_ReleasesTabOnError(t *testing.T) {
	tabs := &fakeTabs{}
	r := NewRenderedPage(tabs, normalisers.Default(), time.Second, 0)

	_, err := r.Acquire(context.Background(), "https://example.com")

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "https://example.com", fetchErr.URL)
	assert.Equal(t, 1, tabs.opened)
	assert.Equal(t, 1, tabs.released)
}

func TestRenderedPage_TabUnavailable(t *testing.T) {
	tabs := &fakeTabs{err: domain.ErrBrowserClosed}
	r := NewRenderedPage(tabs, normalisers.Default(), 0, 0)

	_, err := r.Acquire(context.Background(), "https://example.com")

	assert.ErrorIs(t, err, domain.ErrBrowserClosed)
	assert.Zero(t, tabs.released)
}

func TestRenderedPage_NeverPrimary(t *testing.T) {
	r := NewRenderedPage(&fakeTabs{}, normalisers.Default(), 0, 0)
	assert.False(t, r.Matches("https://example.com"))
	assert.Equal(t, domain.StrategyRenderedPage, r.Kind())
	assert.Equal(t, DefaultRenderTimeout, r.timeout)
}

func TestBrowser_ClosedRejectsTabs(t *testing.T) {
	b := NewBrowser()
	require.NoError(t, b.Close())

	_, _, err := b.NewTab(context.Background())
	assert.ErrorIs(t, err, domain.ErrBrowserClosed)
	assert.Zero(t, b.OpenTabs())
}

func TestBrowser_RelaunchesAfterExit(t *testing.T) {
	b := NewBrowser()
	var launched, stopped int
	b.launch = func() (*browserSession, error) {
		launched++
		ctx, cancel := context.WithCancel(context.Background())
		return &browserSession{ctx: ctx, cancel: cancel, allocCancel: func() { stopped++ }}, nil
	}

	_, release, err := b.NewTab(context.Background())
	require.NoError(t, err)
	release()
	first := b.session
	assert.Equal(t, 1, launched)

	_, release, err = b.NewTab(context.Background())
	require.NoError(t, err)
	release()
	assert.Equal(t, 1, launched, "live browser is reused")

	first.cancel()

	tab, release, err := b.NewTab(context.Background())
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 2, launched)
	assert.Equal(t, 1, stopped)
	assert.NotSame(t, first, b.session)
	assert.NoError(t, b.session.ctx.Err())
	assert.NoError(t, tab.Err())

	require.NoError(t, b.Close())
	assert.Equal(t, 2, stopped)
}

func TestBrowser_LaunchFailureIsRetried(t *testing.T) {
	b := NewBrowser()
	failing := true
	b.launch = func() (*browserSession, error) {
		if failing {
			return nil, errors.New("launching browser: no chrome")
		}
		ctx, cancel := context.WithCancel(context.Background())
		return &browserSession{ctx: ctx, cancel: cancel, allocCancel: func() {}}, nil
	}

	_, _, err := b.NewTab(context.Background())
	require.Error(t, err)
	assert.Nil(t, b.session)

	failing = false
	_, release, err := b.NewTab(context.Background())
	require.NoError(t, err)
	release()
	assert.Zero(t, b.OpenTabs())
	require.NoError(t, b.Close())
}

func chromePath(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary available")
	return ""
}

func TestBrowser_TabsAreReleased(t *testing.T) {
	b := NewBrowser(chromedp.ExecPath(chromePath(t)))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, release, err := b.NewTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.OpenTabs())

	release()
	release()
	assert.Zero(t, b.OpenTabs())
}
