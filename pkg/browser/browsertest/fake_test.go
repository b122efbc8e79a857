package browsertest

import (
	"context"
	"testing"

	"e6pools/pkg/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDropsClientParam(t *testing.T) {
	assert.Equal(t,
		Key("https://e621.net/posts.json?limit=30&tags=pool%3A1"),
		Key("https://e621.net/posts.json?tags=pool:1&limit=30&_client=x%2F1"))
}

func TestScriptedResponsesRepeatLast(t *testing.T) {
	site := NewSite().On("https://x.test/a", Response{Err: ErrScripted}, JSON(`{"ok":true}`))
	p := NewPage(site)
	ctx := context.Background()

	_, err := p.Navigate(ctx, "https://x.test/a", browser.WaitOptions{})
	assert.ErrorIs(t, err, ErrScripted)

	for i := 0; i < 2; i++ {
		body, err := p.Navigate(ctx, "https://x.test/a", browser.WaitOptions{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	}
	assert.Equal(t, 3, site.Count("https://x.test/a"))
}

func TestExclusiveClosesSiblings(t *testing.T) {
	b := NewBrowser(NewSite().Otherwise(HTML("<p>hi</p>")))
	ctx := context.Background()

	first, err := b.Exclusive(ctx)
	require.NoError(t, err)
	second, err := b.Exclusive(ctx)
	require.NoError(t, err)

	_, err = first.Navigate(ctx, "https://x.test/", browser.WaitOptions{})
	assert.ErrorIs(t, err, browser.ErrTabClosed)
	_, err = second.Navigate(ctx, "https://x.test/", browser.WaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 2, b.Exclusives())
}

func TestClickHandlerSeesTypedValues(t *testing.T) {
	site := NewSite().On("https://x.test/login",
		HTML(`<form><input name="name"><input name="commit" type="submit"></form>`))
	var got string
	site.OnClick(`input[name="commit"]`, func(p *Page, typed map[string]string) {
		got = typed[`input[name="name"]`]
		p.Load(`<div id="notice"><span>Welcome</span></div>`)
	})

	p := NewPage(site)
	ctx := context.Background()
	_, err := p.Navigate(ctx, "https://x.test/login", browser.WaitOptions{})
	require.NoError(t, err)
	require.NoError(t, p.Type(ctx, `input[name="name"]`, "alice"))
	require.NoError(t, p.ClickAndWait(ctx, `input[name="commit"]`, browser.WaitOptions{}))

	assert.Equal(t, "alice", got)
	ok, err := p.Has(ctx, "#notice span")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, p.Click(ctx, "#missing"))
}
