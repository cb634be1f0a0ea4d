package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// TabOpener hands out browser tabs. Every tab must be released exactly once.
type TabOpener interface {
	NewTab(ctx context.Context) (tab context.Context, release func(), err error)
}

// Ensure Browser implements the interface.
var _ TabOpener = (*Browser)(nil)

// Browser is a shared headless Chrome process. It starts on the first
// NewTab call and is reused by every rendered acquisition until Close.
// A browser that exits on its own is relaunched by the next NewTab.
type Browser struct {
	mu     sync.Mutex
	opts   []chromedp.ExecAllocatorOption
	launch func() (*browserSession, error)

	session *browserSession
	tabs    int
	closed  bool
}

// browserSession is one running Chrome process.
type browserSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func (s *browserSession) stop() {
	s.cancel()
	s.allocCancel()
}

// NewBrowser creates a browser handle. opts are appended to chromedp's
// default headless allocator options.
func NewBrowser(opts ...chromedp.ExecAllocatorOption) *Browser {
	all := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	all = append(all, chromedp.UserAgent(domain.DefaultUserAgent))
	all = append(all, opts...)
	b := &Browser{opts: all}
	b.launch = b.start
	return b
}

// start launches Chrome.
func (b *Browser) start() (*browserSession, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Running with no actions launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	logger.Debug("Headless browser started")
	return &browserSession{ctx: browserCtx, cancel: browserCancel, allocCancel: allocCancel}, nil
}

// NewTab opens a tab bound to ctx. The tab closes when release is called
// or ctx ends, whichever comes first.
func (b *Browser) NewTab(ctx context.Context) (context.Context, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, domain.ErrBrowserClosed
	}
	if b.session != nil && b.session.ctx.Err() != nil {
		logger.Warn("Headless browser exited, relaunching")
		b.session.stop()
		b.session = nil
	}
	if b.session == nil {
		session, err := b.launch()
		if err != nil {
			return nil, nil, err
		}
		b.session = session
	}

	tab, cancelTab := chromedp.NewContext(b.session.ctx)
	stop := context.AfterFunc(ctx, cancelTab)
	b.tabs++

	release := sync.OnceFunc(func() {
		stop()
		cancelTab()
		b.mu.Lock()
		b.tabs--
		b.mu.Unlock()
	})
	return tab, release, nil
}

// OpenTabs returns the number of tabs not yet released.
func (b *Browser) OpenTabs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tabs
}

// Close shuts the browser down. Later NewTab calls fail with
// domain.ErrBrowserClosed.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.session != nil {
		b.session.stop()
		b.session = nil
		logger.Debug("Headless browser stopped")
	}
	return nil
}
