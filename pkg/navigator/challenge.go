package navigator

import (
	"context"
	"fmt"

	"e6pools/pkg/browser"
)

// Action tells the navigator what to do after a challenge was resolved.
type Action int

const (
	// ActionContinue keeps the current result.
	ActionContinue Action = iota
	// ActionRetry restarts the navigation from scratch.
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionRetry:
		return "retry"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ChallengeResolver detects an interstitial the site may show in place of
// the requested document and dismisses it.
type ChallengeResolver interface {
	Name() string
	Action() Action
	// Resolve reports whether the challenge was present. When it was, it has
	// been dismissed by the time Resolve returns.
	Resolve(ctx context.Context, page browser.Page, wait browser.WaitOptions) (bool, error)
}

// SelectorResolver dismisses a challenge by clicking the element matched by
// Selector.
type SelectorResolver struct {
	Label    string
	Selector string
	Then     Action
	// AwaitNavigation waits for the navigation the click triggers.
	AwaitNavigation bool
}

func (r SelectorResolver) Name() string   { return r.Label }
func (r SelectorResolver) Action() Action { return r.Then }

func (r SelectorResolver) Resolve(ctx context.Context, page browser.Page, wait browser.WaitOptions) (bool, error) {
	found, err := page.Has(ctx, r.Selector)
	if err != nil || !found {
		return false, err
	}
	if r.AwaitNavigation {
		err = page.ClickAndWait(ctx, r.Selector, wait)
	} else {
		err = page.Click(ctx, r.Selector)
	}
	if err != nil {
		return true, fmt.Errorf("%s: %w", r.Label, err)
	}
	return true, nil
}

// AntiBot answers the "I am not a robot" form. The original request has to be
// repeated afterwards.
func AntiBot() ChallengeResolver {
	return SelectorResolver{
		Label:           "anti-bot",
		Selector:        `[value="I am not a robot"]`,
		Then:            ActionRetry,
		AwaitNavigation: true,
	}
}

// AgeGate accepts the guest content warning.
func AgeGate() ChallengeResolver {
	return SelectorResolver{
		Label:    "age-gate",
		Selector: "#guest-warning-accept",
		Then:     ActionContinue,
	}
}

// DefaultResolvers returns the resolvers for the challenges the site is
// known to show, in the order they are checked.
func DefaultResolvers() []ChallengeResolver {
	return []ChallengeResolver{AntiBot(), AgeGate()}
}
