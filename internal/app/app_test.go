package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/folio/internal/config"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/log"
	"github.com/mmcdole/folio/internal/store"
)

func newTestApp(t *testing.T, r http.Handler) *App {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.URL = srv.URL + "/api"
	cfg.API.Retries = 0
	cfg.Cache.RefreshInterval = time.Hour

	a := NewWithStore(cfg, store.NewMemoryStore(), log.NullLogger())
	t.Cleanup(func() { a.Close() })
	return a
}

func TestLoginFetchAndFailedUpdate(t *testing.T) {
	var sawToken atomic.Value
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token": "opaque", "user": map[string]any{"id": 1, "isAdmin": true}})
	})
	r.Get("/api/skills", func(w http.ResponseWriter, req *http.Request) {
		sawToken.Store(req.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":5,"name":"React","level":60}]`))
	})
	r.Put("/api/skills/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "maintenance"})
	})

	a := newTestApp(t, r)
	ctx := context.Background()

	_, err := a.Auth.Login(ctx, "admin", "pw")
	assert.Equal(t, err, nil)

	skills, err := a.Skills.Get(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, sawToken.Load(), "Bearer opaque")

	updated := skills[0]
	updated.Level = 80
	_, err = a.Skills.Update(ctx, updated)
	assert.NotEqual(t, err, nil)

	after, _ := a.Skills.Cached()
	assert.Equal(t, after[0].Level, 60)

	current, ok := a.Toasts.Current()
	assert.Equal(t, ok, true)
	assert.Equal(t, current.Level, domain.NoticeError)
	assert.Equal(t, current.Message, "maintenance")
}

func TestUnauthorizedResponseLogsOut(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/projects", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	a := newTestApp(t, r)
	assert.Equal(t, a.Session.Save("stale-token"), nil)

	var hooked atomic.Bool
	a.OnUnauthorized(func() { hooked.Store(true) })

	_, err := a.Projects.Get(context.Background())
	assert.Equal(t, errors.Is(err, domain.ErrUnauthorized), true)
	assert.Equal(t, a.Session.Token(), "")
	assert.Equal(t, hooked.Load(), true)

	current, _ := a.Toasts.Current()
	assert.Equal(t, current.Message, domain.ErrUnauthorized.Error())
}

func TestRepeatedUnauthorizedNotifiesOncePerSession(t *testing.T) {
	r := chi.NewRouter()
	for _, path := range []string{"/api/skills", "/api/projects", "/api/posts", "/api/activities"} {
		r.Get(path, func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token": "fresh", "user": map[string]any{"id": 1, "isAdmin": true}})
	})

	a := newTestApp(t, r)
	toasts := a.Toasts.Subscribe()
	var hooks atomic.Int32
	a.OnUnauthorized(func() { hooks.Add(1) })

	ctx := context.Background()
	assert.Equal(t, a.Session.Save("dead-token"), nil)
	a.Skills.Get(ctx)
	a.Projects.Get(ctx)
	a.Posts.Get(ctx)
	a.Activities.Get(ctx)
	assert.Equal(t, hooks.Load(), int32(1))
	assert.Equal(t, len(toasts), 1)

	_, err := a.Auth.Login(ctx, "admin", "pw")
	assert.Equal(t, err, nil)
	a.Skills.Get(ctx)
	assert.Equal(t, hooks.Load(), int32(2))
	assert.Equal(t, len(toasts), 2)
}

func TestStartAndClose(t *testing.T) {
	a := newTestApp(t, chi.NewRouter())
	a.Start(context.Background())
	a.Start(context.Background())
	assert.Equal(t, a.Close(), nil)
}
