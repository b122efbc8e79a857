package main

import (
	"context"
	"errors"
	"time"

	"e6pools/internal/processor"
	"e6pools/pkg/auth"
	"e6pools/pkg/browser"
	"e6pools/pkg/catalog"
	"e6pools/pkg/config"
	"e6pools/pkg/logger"
	"e6pools/pkg/navigator"
	"e6pools/pkg/pack"
	"e6pools/pkg/pipeline"
	"e6pools/pkg/ratelimit"
	"e6pools/pkg/retry"
	"e6pools/pkg/session"
	"e6pools/pkg/site"
	"e6pools/pkg/storage"
	"e6pools/pkg/taskqueue"
	"e6pools/pkg/tools"
	"e6pools/pkg/ui"
)

// signOutTimeout bounds the sign-out after the run, which also happens when
// the run was interrupted.
const signOutTimeout = 30 * time.Second

// runDownload wires the pipeline from cfg, runs it over ids and returns the
// exit code.
func runDownload(ctx context.Context, cfg *config.Config, ids []int) int {
	log := logger.GetLogger()
	notifier := ui.NewNotifier(cfg.Notifications)
	ui.PrintBanner(version)
	ui.PrintInfo("Destination", cfg.Paths.DestDir)

	creds := resolveCredentials(cfg, log)
	if !creds.Empty() {
		ui.PrintInfo("Account", creds.Username)
	}

	cache, err := storage.NewCache(cfg.Paths.CacheDir)
	if err != nil {
		log.WithError(err).Error("Cache directory unusable")
		notifier.NotifyError(err)
		return exitFatal
	}

	identity := browser.Identity{
		Name:    cfg.Site.ClientName,
		Version: cfg.Site.ClientVersion,
		Author:  cfg.Site.ClientAuthor,
	}
	chrome, err := browser.NewChrome(ctx, browser.Options{
		Headless: !cfg.Browser.Display,
		ExecPath: cfg.Browser.ExecPath,
		Identity: identity,
		Logger:   log,
	})
	if err != nil {
		log.WithError(err).Error("Failed to start browser")
		notifier.NotifyError(err)
		return exitFatal
	}
	defer func() {
		if err := chrome.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser")
		}
	}()

	var history pipeline.History
	if cat, err := catalog.Open(cfg.CatalogPath()); err != nil {
		log.WithError(err).Warn("Run catalog unavailable, history will not be recorded")
	} else {
		defer cat.Close()
		history = cat
	}

	endpoints := site.NewEndpoints(cfg.Site.URL)
	wait := browser.WaitOptions{Until: cfg.Browser.WaitUntil, Timeout: cfg.Browser.WaitTimeout}
	nav := navigator.New(navigator.Options{
		Wait:        wait,
		PollFactor:  cfg.Browser.PollFactor,
		MaxAttempts: cfg.Browser.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.Browser.BackoffInitial,
			MaxDelay:     cfg.Browser.BackoffMax,
			Multiplier:   2,
			JitterFactor: 0.1,
		},
		Cooldown:  ratelimit.NewInterval(cfg.Browser.Cooldown, 1),
		Resolvers: navigator.DefaultResolvers(),
		Logger:    log,
	})
	sess := session.NewManager(session.Options{
		Browser:    chrome,
		Navigator:  nav,
		Endpoints:  endpoints,
		Wait:       wait,
		Attempts:   cfg.Browser.LoginAttempts,
		RetryDelay: cfg.Browser.LoginRetryDelay,
		Logger:     log,
	})

	runner := tools.ExecRunner{Logger: log}
	userAgent := cfg.Tools.UserAgent
	if userAgent == "" {
		userAgent = identity.String()
	}
	proc := processor.New(cache,
		tools.Fetcher{Runner: runner, Program: cfg.Tools.Curl, UserAgent: userAgent},
		tools.Transcoder{Runner: runner, CWebP: cfg.Tools.CWebP, GIF2WebP: cfg.Tools.GIF2WebP, Quality: cfg.Tools.Quality},
		log)
	packager := pack.New(pack.Options{
		DestDir:  cfg.Paths.DestDir,
		Cache:    cache,
		Archiver: tools.Archiver{Runner: runner, Program: cfg.Tools.SevenZip},
		Logger:   log,
	})

	progress := ui.NewProgress()
	queue := taskqueue.New(taskqueue.Options{
		Width:        cfg.Queue.Workers,
		Launch:       ratelimit.NewInterval(cfg.Queue.LaunchInterval, 1),
		PollInterval: cfg.Queue.PollInterval,
		Logger:       log,
		OnProgress:   progress.Update,
	})

	logger.LogComponentStart(log, "pipeline", map[string]interface{}{
		"pools":   len(ids),
		"workers": cfg.Queue.Workers,
		"cache":   cache.Root(),
		"site":    endpoints.Base(),
	})

	driver := pipeline.New(pipeline.Options{
		Browser:     chrome,
		Navigator:   nav,
		Session:     sess,
		Credentials: creds,
		Endpoints:   endpoints,
		PageSize:    cfg.Site.PageSize,
		Cache:       cache,
		Processor:   proc,
		Packager:    packager,
		Queue:       queue,
		History:     history,
		OnPhase:     progress.Phase,
		Logger:      log,
	})

	report, runErr := driver.Run(ctx, ids)
	progress.Finish()

	if !errors.Is(runErr, session.ErrIncorrectCredentials) {
		signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
		sess.Logout(signOutCtx)
		cancel()
	}

	code := runExitCode(report, runErr)
	switch {
	case errors.Is(runErr, session.ErrIncorrectCredentials):
		ui.PrintError("Login failed", "incorrect username or password")
		notifier.NotifyError(runErr)
	case errors.Is(runErr, context.Canceled):
		ui.PrintWarning("Interrupted")
	case runErr != nil:
		log.WithError(runErr).Error("Run failed")
		notifier.NotifyError(runErr)
	}
	if report != nil && runErr == nil {
		ui.PrintSummary(report)
		notifier.NotifyReport(report)
	}
	return code
}

// resolveCredentials prefers credentials from the environment and
// configuration, then a stored account. An empty result means anonymous.
func resolveCredentials(cfg *config.Config, log logger.Logger) session.Credentials {
	if cfg.HasCredentials() {
		return session.Credentials{Username: cfg.Credentials.Username, Password: cfg.Credentials.Password}
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential store unavailable")
		return session.Credentials{}
	}

	var account *auth.Account
	if cfg.Credentials.Account != "" {
		account, err = manager.Retrieve(cfg.Credentials.Account)
		if err != nil {
			log.WithError(err).WithField("account", cfg.Credentials.Account).Warn("Stored account not found, continuing anonymously")
			return session.Credentials{}
		}
	} else if account, err = manager.RetrieveDefault(); err != nil {
		return session.Credentials{}
	}
	return session.Credentials{Username: account.Username, Password: account.Password}
}
