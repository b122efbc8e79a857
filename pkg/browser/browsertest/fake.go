// Package browsertest provides a scripted in-memory browser for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"e6pools/pkg/browser"
	"github.com/PuerkitoBio/goquery"
)

// Response is one scripted outcome of navigating to a URL.
type Response struct {
	// Body is returned by Navigate; when empty, HTML is returned instead.
	Body []byte
	// HTML is the document used for selector queries.
	HTML string
	Err  error
	// Delay holds the navigation for this long, or until ctx is done.
	Delay time.Duration
}

// JSON is shorthand for a response whose body is a JSON document.
func JSON(body string) Response {
	return Response{Body: []byte(body), HTML: "<html><body><pre>" + body + "</pre></body></html>"}
}

// HTML is shorthand for a markup response.
func HTML(markup string) Response {
	return Response{HTML: markup}
}

// ClickHandler runs when a matching element is clicked. It may swap the
// page's current document with Load.
type ClickHandler func(p *Page, typed map[string]string)

// Site is the scripted world shared by all pages of a Browser.
type Site struct {
	mu          sync.Mutex
	routes      map[string][]Response
	fallback    *Response
	clicks      map[string]ClickHandler
	navigations []string
	clicked     []string
}

// NewSite creates an empty script.
func NewSite() *Site {
	return &Site{
		routes: make(map[string][]Response),
		clicks: make(map[string]ClickHandler),
	}
}

// Key normalizes a URL for route matching. The _client parameter is dropped
// and the remaining query sorted.
func Key(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Del("_client")
	u.RawQuery = q.Encode()
	return u.String()
}

// On queues responses for url. They are consumed in order and the last one
// repeats.
func (s *Site) On(rawURL string, responses ...Response) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key(rawURL)
	s.routes[k] = append(s.routes[k], responses...)
	return s
}

// Otherwise sets the response for unscripted URLs. Without it they fail.
func (s *Site) Otherwise(r Response) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &r
	return s
}

// OnClick registers a handler for clicks on selector.
func (s *Site) OnClick(selector string, h ClickHandler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks[selector] = h
	return s
}

func (s *Site) next(rawURL string) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key(rawURL)
	s.navigations = append(s.navigations, rawURL)
	queue := s.routes[k]
	if len(queue) == 0 {
		if s.fallback != nil {
			return *s.fallback, nil
		}
		return Response{}, fmt.Errorf("browsertest: no response scripted for %s", k)
	}
	r := queue[0]
	if len(queue) > 1 {
		s.routes[k] = queue[1:]
	}
	return r, nil
}

// Navigations returns every URL navigated to, as requested.
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Count returns how many navigations matched url after normalization.
func (s *Site) Count(rawURL string) int {
	k := Key(rawURL)
	n := 0
	for _, nav := range s.Navigations() {
		if Key(nav) == k {
			n++
		}
	}
	return n
}

// Clicked returns the selectors clicked so far.
func (s *Site) Clicked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicked...)
}

// Page is a scripted tab.
type Page struct {
	site   *Site
	ua     string
	mu     sync.Mutex
	doc    string
	typed  map[string]string
	closed bool
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a standalone page on site.
func NewPage(site *Site) *Page {
	return &Page{site: site, ua: "browsertest", typed: make(map[string]string)}
}

// Load replaces the current document.
func (p *Page) Load(markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = markup
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(ctx context.Context, rawURL string, wait browser.WaitOptions) ([]byte, error) {
	if p.isClosed() {
		return nil, browser.ErrTabClosed
	}
	r, err := p.site.next(rawURL)
	if err != nil {
		return nil, err
	}
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	p.Load(r.HTML)
	if len(r.Body) > 0 {
		return r.Body, nil
	}
	return []byte(r.HTML), nil
}

func (p *Page) document() (*goquery.Document, error) {
	p.mu.Lock()
	markup := p.doc
	p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	if p.isClosed() {
		return false, browser.ErrTabClosed
	}
	doc, err := p.document()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	ok, err := p.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("browsertest: no element matches %q", selector)
	}

	p.site.mu.Lock()
	p.site.clicked = append(p.site.clicked, selector)
	h := p.site.clicks[selector]
	p.site.mu.Unlock()

	if h != nil {
		p.mu.Lock()
		typed := make(map[string]string, len(p.typed))
		for k, v := range p.typed {
			typed[k] = v
		}
		p.mu.Unlock()
		h(p, typed)
	}
	return nil
}

func (p *Page) ClickAndWait(ctx context.Context, selector string, wait browser.WaitOptions) error {
	return p.Click(ctx, selector)
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	ok, err := p.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("browsertest: no input matches %q", selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] = text
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if p.isClosed() {
		return "", browser.ErrTabClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc, nil
}

func (p *Page) UserAgent() string {
	return p.ua
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether the page was closed.
func (p *Page) Closed() bool {
	return p.isClosed()
}

// Browser hands out scripted pages that share one Site.
type Browser struct {
	Site *Site

	mu         sync.Mutex
	pages      []*Page
	exclusives int
	closed     bool
}

var _ browser.Browser = (*Browser)(nil)

// NewBrowser creates a Browser over site.
func NewBrowser(site *Site) *Browser {
	return &Browser{Site: site}
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrBrowserClosed
	}
	p := NewPage(b.Site)
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Exclusive(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrBrowserClosed
	}
	p := NewPage(b.Site)
	for _, old := range b.pages {
		_ = old.Close()
	}
	b.pages = []*Page{p}
	b.exclusives++
	return p, nil
}

// Exclusives returns how many exclusive tabs were opened.
func (b *Browser) Exclusives() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exclusives
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pages {
		_ = p.Close()
	}
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// ErrScripted is a convenience failure for scripted responses.
var ErrScripted = errors.New("browsertest: scripted failure")
