// Package app wires every service together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/auth"
	"github.com/mmcdole/folio/internal/blog"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/cart"
	"github.com/mmcdole/folio/internal/config"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/resource"
	"github.com/mmcdole/folio/internal/session"
	"github.com/mmcdole/folio/internal/store"
	"github.com/mmcdole/folio/internal/toast"
)

// App is the explicit state container passed to the UI and the CLI
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store   *store.BoltStore
	Session *session.Session
	Client  *api.Client
	Cache   *cache.Cache
	Toasts  *toast.Center
	Auth    *auth.Service

	Skills     *resource.Service[domain.Skill]
	Projects   *resource.Service[domain.Project]
	Posts      *resource.Service[domain.Post]
	Activities *resource.Service[domain.Activity]

	Feed *blog.Feed
	Cart *cart.Cart

	mu           sync.Mutex
	cancel       context.CancelFunc
	group        *errgroup.Group
	unauthorized []func()
	signedOut    bool // set by the first 401, cleared by the next login
}

// New builds the application from configuration
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewBoltStore(cfg.Cache.Dir, cfg.API.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return NewWithStore(cfg, st, logger), nil
}

// NewWithStore builds the application on an already opened store
func NewWithStore(cfg *config.Config, st *store.BoltStore, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	retry := api.DefaultRetryPolicy()
	retry.MaxRetries = cfg.API.Retries
	if cfg.API.RetryBaseDelay > 0 {
		retry.BaseDelay = cfg.API.RetryBaseDelay
	}

	sess := session.New(st)
	client := api.NewClient(api.ClientConfig{
		BaseURL: cfg.API.URL,
		Timeout: cfg.API.Timeout,
		Retry:   retry,
	}, sess, logger)

	c := cache.New(st, logger, cfg.Cache.RefreshInterval)
	toasts := toast.NewCenter(cfg.UI.ToastDuration)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Session:    sess,
		Client:     client,
		Cache:      c,
		Toasts:     toasts,
		Auth:       auth.NewService(client, sess, c, logger),
		Skills:     resource.NewSkills(client, c, toasts, logger),
		Projects:   resource.NewProjects(client, c, toasts, logger),
		Posts:      resource.NewPosts(client, c, toasts, logger),
		Activities: resource.NewActivities(client, c, toasts, logger),
		Feed:       blog.NewFeed(client, api.DefaultPageSize, logger),
		Cart:       cart.New(st, logger),
	}

	client.OnUnauthorized(a.handleUnauthorized)
	a.Auth.OnLogin(func(domain.User) {
		a.mu.Lock()
		a.signedOut = false
		a.mu.Unlock()
	})
	return a
}

// OnUnauthorized registers fn to run whenever the server rejects the
// session
func (a *App) OnUnauthorized(fn func()) {
	a.mu.Lock()
	a.unauthorized = append(a.unauthorized, fn)
	a.mu.Unlock()
}

// handleUnauthorized runs once per lost session. Every watcher refetching
// with the same dead token gets its own 401; only the first one counts.
func (a *App) handleUnauthorized() {
	a.mu.Lock()
	if a.signedOut {
		a.mu.Unlock()
		return
	}
	a.signedOut = true
	fns := append([]func(){}, a.unauthorized...)
	a.mu.Unlock()

	a.Toasts.Notify(domain.NoticeError, domain.ErrUnauthorized.Error())
	for _, fn := range fns {
		fn()
	}
}

// Start runs the refresh ticker and the per-collection watchers until
// Close or until ctx ends
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	a.cancel = cancel
	a.group = g
	a.mu.Unlock()

	background := []func(context.Context){
		a.Cache.Run,
		a.Skills.Watch,
		a.Projects.Watch,
		a.Posts.Watch,
		a.Activities.Watch,
	}
	for _, run := range background {
		g.Go(func() error {
			run(ctx)
			return nil
		})
	}
	a.Logger.Info("background sync started", "interval", a.Config.Cache.RefreshInterval)
}

// Close stops background work and closes the store
func (a *App) Close() error {
	a.mu.Lock()
	cancel, g := a.cancel, a.group
	a.cancel, a.group = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		if err := g.Wait(); err != nil {
			a.Logger.Error("background task failed", "error", err)
		}
	}
	return a.Store.Close()
}
