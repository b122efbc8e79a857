package navigator

import (
	"context"
	"strings"
	"testing"
	"time"

	"e6pools/pkg/browser"
	"e6pools/pkg/browser/browsertest"
	errs "e6pools/pkg/errors"
	"e6pools/pkg/logger"
	"e6pools/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poolURL = "https://e621.test/pools/1.json"

func newTestNavigator(maxAttempts int) *Navigator {
	return New(Options{
		Wait:        browser.WaitOptions{Until: "load", Timeout: 20 * time.Millisecond},
		PollFactor:  1,
		MaxAttempts: maxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	})
}

func TestWithClient(t *testing.T) {
	assert.Equal(t, "https://x.test/a?_client=tool%2F1.0+%28me%29", WithClient("https://x.test/a", "tool/1.0 (me)"))
	assert.Equal(t, "https://x.test/a?_client=c&page=2", WithClient("https://x.test/a?page=2", "c"))
	assert.Equal(t, "https://x.test/a", WithClient("https://x.test/a", ""))
}

func TestFetchSuccess(t *testing.T) {
	site := browsertest.NewSite().On(poolURL, browsertest.JSON(`{"id":1}`))
	page := browsertest.NewPage(site)

	body, err := newTestNavigator(3).Fetch(context.Background(), page, poolURL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(body))

	navs := site.Navigations()
	require.Len(t, navs, 1)
	assert.True(t, strings.Contains(navs[0], "_client=browsertest"), navs[0])
}

func TestFetchRetriesNavigationErrors(t *testing.T) {
	site := browsertest.NewSite().On(poolURL,
		browsertest.Response{Err: browsertest.ErrScripted},
		browsertest.Response{Err: browsertest.ErrScripted},
		browsertest.JSON(`{"id":1}`),
	)

	body, err := newTestNavigator(5).Fetch(context.Background(), browsertest.NewPage(site), poolURL)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, 3, site.Count(poolURL))
}

func TestFetchRetriesSlowResponses(t *testing.T) {
	site := browsertest.NewSite().On(poolURL,
		browsertest.Response{Body: []byte("late"), Delay: time.Second},
		browsertest.JSON(`{"id":1}`),
	)

	start := time.Now()
	body, err := newTestNavigator(5).Fetch(context.Background(), browsertest.NewPage(site), poolURL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(body))
	assert.Equal(t, 2, site.Count(poolURL))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFetchAntiBotRestartsNavigation(t *testing.T) {
	challenge := browsertest.HTML(`<html><body><form><input type="submit" value="I am not a robot"></form></body></html>`)
	site := browsertest.NewSite().On(poolURL, challenge, browsertest.JSON(`{"id":1}`))

	body, err := newTestNavigator(5).Fetch(context.Background(), browsertest.NewPage(site), poolURL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(body))
	assert.Equal(t, 2, site.Count(poolURL))
	assert.Equal(t, []string{`[value="I am not a robot"]`}, site.Clicked())
}

func TestFetchAgeGateContinues(t *testing.T) {
	gate := browsertest.Response{
		Body: []byte("listing"),
		HTML: `<html><body><button id="guest-warning-accept">I am over 18</button></body></html>`,
	}
	site := browsertest.NewSite().On(poolURL, gate)

	body, err := newTestNavigator(5).Fetch(context.Background(), browsertest.NewPage(site), poolURL)
	require.NoError(t, err)
	assert.Equal(t, "listing", string(body))
	assert.Equal(t, 1, site.Count(poolURL))
	assert.Equal(t, []string{"#guest-warning-accept"}, site.Clicked())
}

func TestFetchExhausted(t *testing.T) {
	site := browsertest.NewSite().On(poolURL, browsertest.Response{Err: browsertest.ErrScripted})

	_, err := newTestNavigator(3).Fetch(context.Background(), browsertest.NewPage(site), poolURL)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeUnreachable))
	assert.ErrorIs(t, err, browsertest.ErrScripted)
	assert.Equal(t, 3, site.Count(poolURL))
}

func TestFetchCancelled(t *testing.T) {
	site := browsertest.NewSite().On(poolURL, browsertest.JSON(`{}`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestNavigator(0).Fetch(ctx, browsertest.NewPage(site), poolURL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, site.Count(poolURL))
}

func TestFetchCancelledWhileWaiting(t *testing.T) {
	site := browsertest.NewSite().On(poolURL, browsertest.Response{Err: browsertest.ErrScripted})
	nav := New(Options{
		Wait:        browser.WaitOptions{Timeout: 20 * time.Millisecond},
		PollFactor:  1,
		MaxAttempts: 0,
		Backoff:     &retry.ConstantBackoff{Delay: 5 * time.Millisecond},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err := nav.Fetch(ctx, browsertest.NewPage(site), poolURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, site.Count(poolURL), 1)
}

func TestFetchClosedTabIsNotRetried(t *testing.T) {
	site := browsertest.NewSite().On(poolURL, browsertest.JSON(`{}`))
	page := browsertest.NewPage(site)
	require.NoError(t, page.Close())

	_, err := newTestNavigator(5).Fetch(context.Background(), page, poolURL)
	assert.ErrorIs(t, err, browser.ErrTabClosed)
}

func TestNewDefaults(t *testing.T) {
	nav := New(Options{MaxAttempts: -1})
	assert.Equal(t, DefaultMaxAttempts, nav.opts.MaxAttempts)
	assert.Equal(t, DefaultTimeout*DefaultPollFactor, nav.AttemptDeadline())
	assert.Len(t, nav.opts.Resolvers, 2)
	assert.Equal(t, "networkidle0", nav.Wait().Until)
}
