// Package browser exposes the small slice of a headless browser the pipeline
// needs: navigate to a URL and read the result, query the DOM, click and type.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTabClosed is returned by any Page method after the tab was closed,
	// typically because a later Exclusive call replaced it.
	ErrTabClosed = errors.New("browser: tab closed")
	// ErrBrowserClosed is returned when opening tabs on a closed browser.
	ErrBrowserClosed = errors.New("browser: closed")
)

// WaitOptions controls when a navigation counts as finished.
type WaitOptions struct {
	// Until is one of load, domcontentloaded, networkidle0, networkidle2.
	Until   string
	Timeout time.Duration
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and returns the document content: the text of JSON
	// and plain-text documents, the serialized markup of everything else.
	Navigate(ctx context.Context, url string, wait WaitOptions) ([]byte, error)
	Has(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	// ClickAndWait clicks selector and waits for the navigation it triggers.
	ClickAndWait(ctx context.Context, selector string, wait WaitOptions) error
	Type(ctx context.Context, selector, text string) error
	HTML(ctx context.Context) (string, error)
	UserAgent() string
	Close() error
}

// Browser owns the tabs. Only one tab is current after Exclusive; callers
// must not keep a Page across an Exclusive call.
type Browser interface {
	// Exclusive opens a fresh tab, then closes every other tab.
	Exclusive(ctx context.Context) (Page, error)
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Identity is how the tool introduces itself to the site.
type Identity struct {
	Name    string
	Version string
	Author  string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s (%s)", id.Name, id.Version, id.Author)
}

// UserAgent prefixes the browser's own user agent with the identity.
func (id Identity) UserAgent(base string) string {
	if base == "" {
		return id.String()
	}
	return id.String() + " " + base
}

// settleDelay is the quiet period applied after the load event for the
// network idle wait conditions.
func settleDelay(until string) time.Duration {
	switch until {
	case "networkidle0":
		return 500 * time.Millisecond
	case "networkidle2":
		return 250 * time.Millisecond
	default:
		return 0
	}
}
