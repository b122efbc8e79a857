package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"e6pools/pkg/logger"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// documentScript returns the text of JSON/plain documents (which Chrome wraps
// in a <pre>) and the outer HTML of anything else.
const documentScript = `(() => {
	const type = document.contentType || "";
	if (type.includes("json") || type.startsWith("text/plain")) {
		const pre = document.querySelector("pre");
		if (pre) return pre.textContent;
		return document.body ? document.body.innerText : "";
	}
	return document.documentElement ? document.documentElement.outerHTML : "";
})()`

// Options configures a Chrome instance.
type Options struct {
	Headless bool
	ExecPath string
	Identity Identity
	// ActionTimeout bounds clicks, typing and DOM reads.
	ActionTimeout time.Duration
	Logger        logger.Logger
}

// Chrome drives a local Chrome/Chromium through the DevTools protocol.
type Chrome struct {
	opts Options
	log  logger.Logger

	allocCancel context.CancelFunc
	root        context.Context
	rootCancel  context.CancelFunc

	mu     sync.Mutex
	tabs   []*chromeTab
	closed bool
}

// NewChrome starts the browser. The process lives until Close or until ctx
// is cancelled.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	root, rootCancel := chromedp.NewContext(allocCtx)

	// the first Run launches the process and its initial blank target, which
	// stays open so closing our tabs never ends the browser
	if err := chromedp.Run(root); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	c := &Chrome{
		opts:        opts,
		log:         opts.Logger.WithField("component", "browser"),
		allocCancel: allocCancel,
		root:        root,
		rootCancel:  rootCancel,
	}
	c.log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": opts.Headless,
		"identity": opts.Identity.String(),
	})
	return c, nil
}

func (c *Chrome) newTab(ctx context.Context) (*chromeTab, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrBrowserClosed
	}

	tabCtx, cancel := chromedp.NewContext(c.root)
	tab := &chromeTab{ctx: tabCtx, cancel: cancel, actionTimeout: c.opts.ActionTimeout}

	var base string
	err := tab.run(ctx, c.opts.ActionTimeout,
		chromedp.Evaluate(`navigator.userAgent`, &base),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tab.ua = c.opts.Identity.UserAgent(base)
			return emulation.SetUserAgentOverride(tab.ua).Do(ctx)
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return tab, nil
}

// NewPage opens an additional tab.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	tab, err := c.newTab(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tabs = append(c.tabs, tab)
	c.mu.Unlock()
	return tab, nil
}

// Exclusive opens a tab and closes all others once it is ready.
func (c *Chrome) Exclusive(ctx context.Context) (Page, error) {
	tab, err := c.newTab(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	old := c.tabs
	c.tabs = []*chromeTab{tab}
	c.mu.Unlock()

	for _, t := range old {
		_ = t.Close()
	}
	c.log.DebugWithFields("Exclusive tab opened", map[string]interface{}{"closed_tabs": len(old)})
	return tab, nil
}

// Close terminates all tabs and the browser process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tabs := c.tabs
	c.tabs = nil
	c.mu.Unlock()

	for _, t := range tabs {
		_ = t.Close()
	}
	c.rootCancel()
	c.allocCancel()
	c.log.Info("Browser closed")
	return nil
}

type chromeTab struct {
	ctx           context.Context
	cancel        context.CancelFunc
	ua            string
	actionTimeout time.Duration
	closed        atomic.Bool
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (t *chromeTab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if t.closed.Load() {
		return ErrTabClosed
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(t.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(t.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case t.closed.Load():
		return ErrTabClosed
	}
	return err
}

func (t *chromeTab) Navigate(ctx context.Context, url string, wait WaitOptions) ([]byte, error) {
	var body string
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if d := settleDelay(wait.Until); d > 0 {
		actions = append(actions, chromedp.Sleep(d))
	}
	actions = append(actions, chromedp.Evaluate(documentScript, &body))

	if err := t.run(ctx, wait.Timeout, actions...); err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (t *chromeTab) Has(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := t.run(ctx, t.actionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (t *chromeTab) Click(ctx context.Context, selector string) error {
	return t.run(ctx, t.actionTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (t *chromeTab) ClickAndWait(ctx context.Context, selector string, wait WaitOptions) error {
	loaded := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(t.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*cdppage.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := t.Click(ctx, selector); err != nil {
		return err
	}

	timeout := wait.Timeout
	if timeout <= 0 {
		timeout = t.actionTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-loaded:
	case <-timer.C:
		return fmt.Errorf("navigation after clicking %q did not finish within %s", selector, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if d := settleDelay(wait.Until); d > 0 {
		return t.run(ctx, 0, chromedp.Sleep(d))
	}
	return nil
}

func (t *chromeTab) Type(ctx context.Context, selector, text string) error {
	return t.run(ctx, t.actionTimeout,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, t.actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (t *chromeTab) UserAgent() string {
	return t.ua
}

func (t *chromeTab) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.cancel()
	}
	return nil
}
