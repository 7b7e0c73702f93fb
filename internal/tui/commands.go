package tui

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/auth"
	"github.com/mmcdole/folio/internal/blog"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/mutation"
	"github.com/mmcdole/folio/internal/resource"
	"github.com/mmcdole/folio/internal/toast"
)

// Command factories for async operations

// safe turns a panic inside cmd into a PanicMsg so the model can show the
// crash screen instead of tearing down the program
func safe(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = PanicMsg{Value: r, Stack: string(debug.Stack())}
			}
		}()
		return cmd()
	}
}

// LoadCollectionCmd returns the cached collection, fetching on a miss
func LoadCollectionCmd[T domain.Record[T]](svc *resource.Service[T]) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		items, err := svc.Get(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading " + string(svc.Key()), Key: svc.Key()}
		}
		return CollectionLoadedMsg{Key: svc.Key(), Count: len(items)}
	})
}

// RefreshCollectionCmd refetches a collection from the server
func RefreshCollectionCmd[T domain.Record[T]](svc *resource.Service[T]) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		items, err := svc.Fetch(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "refreshing " + string(svc.Key()), Key: svc.Key()}
		}
		return CollectionLoadedMsg{Key: svc.Key(), Count: len(items)}
	})
}

// UpdateCmd applies an optimistic update
func UpdateCmd[T domain.Record[T]](svc *resource.Service[T], item T) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := svc.Update(ctx, item)
		return MutationDoneMsg{Key: svc.Key(), Op: mutation.OpUpdate, ID: item.GetID(), Err: err}
	})
}

// DeleteCmd applies an optimistic delete
func DeleteCmd[T domain.Record[T]](svc *resource.Service[T], id string) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := svc.Delete(ctx, id)
		return MutationDoneMsg{Key: svc.Key(), Op: mutation.OpDelete, ID: id, Err: err}
	})
}

// SharePostCmd shares a post to a social network. Posts are shared by
// their numeric id when the server gave them one.
func SharePostCmd(client *api.Client, post domain.Post, network api.ShareNetwork) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		id := post.ID.String()
		if id == "" {
			id = post.Slug
		}
		message, err := client.SharePost(ctx, id, network)
		return PostSharedMsg{Slug: post.Slug, Network: network, Message: message, Err: err}
	})
}

// VerifySessionCmd checks the stored token against the server
func VerifySessionCmd(svc *auth.Service) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		user, err := svc.Verify(ctx)
		return SessionVerifiedMsg{User: user, Err: err}
	})
}

// LoginCmd submits the login form
func LoginCmd(svc *auth.Service, emailOrUsername, password string) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		user, err := svc.Login(ctx, emailOrUsername, password)
		return LoginResultMsg{User: user, Err: err}
	})
}

// SearchPostsCmd runs a server-side post search. A search replaced by a
// newer one produces no message.
func SearchPostsCmd(feed *blog.Feed, query string) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		posts, err := feed.Search(ctx, query)
		if errors.Is(err, blog.ErrSuperseded) {
			return nil
		}
		return PostsSearchedMsg{Query: query, Posts: posts, Err: err}
	})
}

// LoadMorePostsCmd appends the next page of the current search
func LoadMorePostsCmd(feed *blog.Feed) tea.Cmd {
	return safe(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		loaded, err := feed.LoadNext(ctx)
		return PostsPageMsg{Loaded: loaded, Err: err}
	})
}

// WaitForCacheEventCmd waits for the next cache change
func WaitForCacheEventCmd(ch <-chan cache.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return CacheEventMsg{Event: ev}
	}
}

// WaitForToastCmd waits for the next toast
func WaitForToastCmd(ch <-chan toast.Toast) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return ToastMsg{Toast: t}
	}
}

// WaitForAuthExpiredCmd waits for the server to reject the session
func WaitForAuthExpiredCmd(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return AuthRequiredMsg{}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// panicText renders a recovered value for the crash screen
func panicText(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
