package site

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the site queried when no other is configured
	DefaultBaseURL = "https://e621.net"

	// DefaultPageSize is the number of posts requested per listing page
	DefaultPageSize = 30

	// MaxPageSize is the largest listing page the site serves
	MaxPageSize = 320
)

// Endpoints builds the URLs of one site instance.
type Endpoints struct {
	base string
}

// NewEndpoints returns endpoints rooted at base. An empty base selects
// DefaultBaseURL.
func NewEndpoints(base string) Endpoints {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return Endpoints{base: base}
}

// Base returns the site root without trailing slash.
func (e Endpoints) Base() string { return e.base }

// Home is the landing page, used to check the login state.
func (e Endpoints) Home() string { return e.base + "/" }

// Login is the login form.
func (e Endpoints) Login() string { return e.base + "/session/new" }

// SignOut ends the session.
func (e Endpoints) SignOut() string { return e.base + "/session/sign_out" }

// Pool is the JSON document of one pool.
func (e Endpoints) Pool(id int) string {
	return fmt.Sprintf("%s/pools/%d.json", e.base, id)
}

// Posts is one listing page (1-based) of the posts in pool id.
func (e Endpoints) Posts(id, page, limit int) string {
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}
	params := url.Values{}
	params.Set("tags", "pool:"+strconv.Itoa(id))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s/posts.json?%s", e.base, params.Encode())
}

// ListingPages returns how many listing pages of size pageSize hold
// postCount posts.
func ListingPages(postCount, pageSize int) int {
	if postCount <= 0 || pageSize <= 0 {
		return 0
	}
	return (postCount + pageSize - 1) / pageSize
}
