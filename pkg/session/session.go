// Package session signs the browser in to the site and out again.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"e6pools/pkg/browser"
	errs "e6pools/pkg/errors"
	"e6pools/pkg/logger"
	"e6pools/pkg/retry"
	"e6pools/pkg/site"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultAttempts   = 2
	DefaultRetryDelay = 1800 * time.Millisecond

	selectorUser     = `input[name="name"]`
	selectorPassword = `input[name="password"]`
	selectorSubmit   = `input[name="commit"]`
	selectorNotice   = "#notice span"
	selectorLoginBtn = `[title="Login or sign up"]`
)

var (
	// ErrIncorrectCredentials is returned when the site rejects the username
	// or password. It is never retried.
	ErrIncorrectCredentials = errors.New("session: incorrect username or password")
	// ErrLoginAmbiguous means the form could not be submitted and the site
	// still offers a login link afterwards.
	ErrLoginAmbiguous = errors.New("session: login could not be confirmed")
)

// Credentials are a site username and password.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either part is missing, which means a guest run.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// Fetcher loads a document into a page. *navigator.Navigator implements it.
type Fetcher interface {
	Fetch(ctx context.Context, page browser.Page, target string) ([]byte, error)
}

// Options configures a Manager.
type Options struct {
	Browser   browser.Browser
	Navigator Fetcher
	Endpoints site.Endpoints
	Wait      browser.WaitOptions
	// Attempts bounds the login attempts made when the outcome is unclear.
	Attempts   int
	RetryDelay time.Duration
	Logger     logger.Logger
}

// Manager tracks the login state of one browser.
type Manager struct {
	opts Options

	mu        sync.Mutex
	attempted bool
	loggedIn  bool
}

// NewManager returns a Manager, filling unset options with defaults.
func NewManager(opts Options) *Manager {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Manager{opts: opts}
}

// LoggedIn reports whether the last Login succeeded.
func (m *Manager) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loggedIn
}

// Login signs in with creds. Empty credentials are a no-op. Logging in while
// already signed in succeeds.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	if creds.Empty() {
		m.opts.Logger.Debug("No credentials, continuing as guest")
		return nil
	}

	m.mu.Lock()
	m.attempted = true
	m.mu.Unlock()

	log := m.opts.Logger.WithField("user", creds.Username)
	log.Info("Logging in")

	err := retry.Do(ctx, &retry.Config{
		MaxAttempts: m.opts.Attempts,
		Backoff:     &retry.ConstantBackoff{Delay: m.opts.RetryDelay},
		RetryIf: func(err error) bool {
			return errors.Is(err, ErrLoginAmbiguous)
		},
		Logger: m.opts.Logger,
	}, func(ctx context.Context, attempt int) error {
		return m.attempt(ctx, creds)
	})

	switch {
	case err == nil:
		m.mu.Lock()
		m.loggedIn = true
		m.mu.Unlock()
		log.Info("Logged in")
		return nil
	case errors.Is(err, ErrIncorrectCredentials):
		// A rejected login leaves nothing to sign out of.
		m.mu.Lock()
		m.attempted = false
		m.mu.Unlock()
		return errs.Wrap(errs.ErrorTypeCredentials, "login", ErrIncorrectCredentials)
	case ctx.Err() != nil:
		return ctx.Err()
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return errs.Wrapf(errs.ErrorTypeAuth, "login", exhausted.Last, "not logged in after %d attempts", exhausted.Attempts)
	}
	return errs.Wrap(errs.ErrorTypeAuth, "login", err)
}

func (m *Manager) attempt(ctx context.Context, creds Credentials) error {
	page, err := m.opts.Browser.Exclusive(ctx)
	if err != nil {
		return err
	}
	if _, err := m.opts.Navigator.Fetch(ctx, page, m.opts.Endpoints.Login()); err != nil {
		return err
	}

	submitErr := m.submit(ctx, page, creds)

	notice, err := m.notice(ctx, page)
	if err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(notice), "incorrect") {
		return ErrIncorrectCredentials
	}
	if submitErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.opts.Logger.WithError(submitErr).Warn("Login form submission failed, checking session")
	if strings.Contains(notice, "logged in") {
		return nil
	}

	if _, err := m.opts.Navigator.Fetch(ctx, page, m.opts.Endpoints.Home()); err != nil {
		return err
	}
	guest, err := page.Has(ctx, selectorLoginBtn)
	if err != nil {
		return err
	}
	if guest {
		return ErrLoginAmbiguous
	}
	return nil
}

func (m *Manager) submit(ctx context.Context, page browser.Page, creds Credentials) error {
	if err := page.Type(ctx, selectorUser, creds.Username); err != nil {
		return err
	}
	if err := page.Type(ctx, selectorPassword, creds.Password); err != nil {
		return err
	}
	return page.ClickAndWait(ctx, selectorSubmit, m.opts.Wait)
}

// notice returns the text of the flash notice, or "" when there is none.
func (m *Manager) notice(ctx context.Context, page browser.Page) (string, error) {
	markup, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, "login notice", err)
	}
	return strings.TrimSpace(doc.Find(selectorNotice).First().Text()), nil
}

// Logout signs out if Login was called with credentials that the site did
// not reject. Failures are only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	attempted := m.attempted
	m.mu.Unlock()
	if !attempted {
		return
	}

	page, err := m.opts.Browser.Exclusive(ctx)
	if err == nil {
		_, err = m.opts.Navigator.Fetch(ctx, page, m.opts.Endpoints.SignOut())
	}
	if err != nil {
		m.opts.Logger.WithError(err).Warn("Sign out failed")
		return
	}

	m.mu.Lock()
	m.loggedIn = false
	m.mu.Unlock()
	m.opts.Logger.Debug("Signed out")
}
