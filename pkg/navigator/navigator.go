// Package navigator fetches documents through a browser tab, riding out
// slow responses, transient navigation errors and bot challenges.
package navigator

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"e6pools/pkg/browser"
	errs "e6pools/pkg/errors"
	"e6pools/pkg/logger"
	"e6pools/pkg/ratelimit"
	"e6pools/pkg/retry"
)

const (
	DefaultPollFactor  = 8
	DefaultMaxAttempts = 10
	DefaultTimeout     = 5 * time.Second

	// ClientParam is the query parameter that identifies the tool to the site.
	ClientParam = "_client"
)

// Options configures a Navigator.
type Options struct {
	Wait browser.WaitOptions
	// PollFactor multiplies Wait.Timeout to give the deadline of one attempt.
	PollFactor int
	// MaxAttempts bounds the attempts per fetch; zero retries forever.
	MaxAttempts int
	Backoff     retry.BackoffStrategy
	// Cooldown is waited on before every navigation.
	Cooldown  ratelimit.Limiter
	Resolvers []ChallengeResolver
	Logger    logger.Logger
}

// Navigator performs resilient fetches.
type Navigator struct {
	opts Options
}

// New returns a Navigator, filling unset options with defaults.
func New(opts Options) *Navigator {
	if opts.Wait.Timeout <= 0 {
		opts.Wait.Timeout = DefaultTimeout
	}
	if opts.Wait.Until == "" {
		opts.Wait.Until = "networkidle0"
	}
	if opts.PollFactor <= 0 {
		opts.PollFactor = DefaultPollFactor
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}
	if opts.Cooldown == nil {
		opts.Cooldown = ratelimit.Unlimited()
	}
	if opts.Resolvers == nil {
		opts.Resolvers = DefaultResolvers()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Navigator{opts: opts}
}

// Wait returns the wait options used for navigations.
func (n *Navigator) Wait() browser.WaitOptions { return n.opts.Wait }

// AttemptDeadline is how long a single attempt may take.
func (n *Navigator) AttemptDeadline() time.Duration {
	return n.opts.Wait.Timeout * time.Duration(n.opts.PollFactor)
}

// WithClient adds the client identification parameter to target.
func WithClient(target, client string) string {
	if client == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		return target + sep + ClientParam + "=" + url.QueryEscape(client)
	}
	q := u.Query()
	q.Set(ClientParam, client)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch navigates page to target and returns the document body. Failed and
// timed out attempts and resolved anti-bot challenges restart the
// navigation. Once MaxAttempts attempts failed an ErrorTypeUnreachable
// error is returned. Cancellation of ctx is returned as is.
func (n *Navigator) Fetch(ctx context.Context, page browser.Page, target string) ([]byte, error) {
	full := WithClient(target, page.UserAgent())

	body, err := retry.DoWithResult(ctx, &retry.Config{
		MaxAttempts: n.opts.MaxAttempts,
		Backoff:     n.opts.Backoff,
		RetryIf:     errs.IsRetryableError,
		Logger:      n.opts.Logger,
	}, func(ctx context.Context, attempt int) ([]byte, error) {
		start := time.Now()
		body, err := n.attempt(ctx, page, full)
		logger.LogFetch(n.opts.Logger, target, attempt, time.Since(start), err)
		return body, err
	})
	if err == nil {
		return body, nil
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return nil, errs.Wrapf(errs.ErrorTypeUnreachable, "fetch", exhausted.Last,
			"%s unreachable after %d attempts", target, exhausted.Attempts)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, err
}

type navResult struct {
	body []byte
	err  error
}

// attempt runs one navigation bounded by AttemptDeadline.
func (n *Navigator) attempt(ctx context.Context, page browser.Page, target string) ([]byte, error) {
	if err := n.opts.Cooldown.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeTimeout, "cooldown", err)
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan navResult, 1)
	go func() {
		body, err := page.Navigate(attemptCtx, target, n.opts.Wait)
		done <- navResult{body: body, err: err}
	}()

	deadline := time.NewTimer(n.AttemptDeadline())
	defer deadline.Stop()

	var res navResult
	select {
	case res = <-done:
	case <-deadline.C:
		return nil, errs.New(errs.ErrorTypeTimeout, "navigate", "no response within "+n.AttemptDeadline().String())
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(res.err, browser.ErrTabClosed), errors.Is(res.err, browser.ErrBrowserClosed):
			// a closed tab never recovers
			return nil, res.err
		}
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "navigate", res.err)
	}

	for _, r := range n.opts.Resolvers {
		found, err := r.Resolve(ctx, page, n.opts.Wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errs.Wrap(errs.ErrorTypeChallenge, "resolve", err)
		}
		if !found {
			continue
		}
		n.opts.Logger.WithFields(map[string]interface{}{
			"challenge": r.Name(),
			"action":    r.Action().String(),
		}).Info("Challenge resolved")
		if r.Action() == ActionRetry {
			return nil, errs.New(errs.ErrorTypeChallenge, "navigate", r.Name()+" challenge answered")
		}
	}

	return res.body, nil
}
