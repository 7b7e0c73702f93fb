package tui

import (
	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/mutation"
	"github.com/mmcdole/folio/internal/toast"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
	Key     domain.ResourceKey // Collection the error belongs to, if any
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// CollectionLoadedMsg signals that a collection is in the cache
type CollectionLoadedMsg struct {
	Key   domain.ResourceKey
	Count int
}

// CacheEventMsg relays a cache change from the observer channel
type CacheEventMsg struct {
	Event cache.Event
}

// MutationDoneMsg signals that an optimistic mutation settled.
// Toasts for the outcome are raised by the coordinator.
type MutationDoneMsg struct {
	Key domain.ResourceKey
	Op  mutation.Op
	ID  string
	Err error
}

// ToastMsg signals that a new toast was raised
type ToastMsg struct {
	Toast toast.Toast
}

// AuthRequiredMsg signals that the server rejected the session
type AuthRequiredMsg struct{}

// SessionVerifiedMsg carries the result of checking the stored session
type SessionVerifiedMsg struct {
	User domain.User
	Err  error
}

// LoginResultMsg carries the result of the login form
type LoginResultMsg struct {
	User domain.User
	Err  error
}

// PostsSearchedMsg carries the first page of a server-side post search
type PostsSearchedMsg struct {
	Query string
	Posts []domain.Post
	Err   error
}

// PostsPageMsg signals that another page of search results was appended
type PostsPageMsg struct {
	Loaded bool
	Err    error
}

// PanicMsg carries a panic recovered inside a command
type PanicMsg struct {
	Value any
	Stack string
}

// TickMsg is sent periodically for toast expiry and the spinner
type TickMsg struct{}

// PostSharedMsg reports the outcome of sharing a post
type PostSharedMsg struct {
	Slug    string
	Network api.ShareNetwork
	Message string
	Err     error
}
