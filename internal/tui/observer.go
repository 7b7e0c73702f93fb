package tui

import "github.com/mmcdole/folio/internal/cache"

// ChannelObserver adapts cache events to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan<- cache.Event
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- cache.Event) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnEvent sends the event to the channel (non-blocking if full).
func (o *ChannelObserver) OnEvent(ev cache.Event) {
	select {
	case o.ch <- ev:
	default: // Non-blocking if channel full
	}
}

// signal does a non-blocking send of an empty value
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
