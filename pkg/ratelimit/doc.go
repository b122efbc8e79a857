// Package ratelimit spaces out navigations and task launches.
//
// The navigator applies an Interval limiter as its cooldown between page
// fetches so the site's request budget is respected; the task queue uses
// another to stagger subprocess launches.
package ratelimit
