// Package toast keeps the single transient notification shown to the user.
package toast

import (
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/domain"
)

// DefaultDuration is how long a toast stays up
const DefaultDuration = 3 * time.Second

// Toast is one notification
type Toast struct {
	ID        uint64
	Level     domain.NoticeLevel
	Message   string
	ExpiresAt time.Time
}

// Center implements domain.Notifier. A new toast replaces the current one.
type Center struct {
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current *Toast
	nextID  uint64
	timer   *time.Timer
	subs    []chan Toast
}

// NewCenter creates a toast center; non-positive durations use
// DefaultDuration
func NewCenter(duration time.Duration) *Center {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Center{duration: duration, now: time.Now}
}

// Notify shows message, replacing any current toast
func (c *Center) Notify(level domain.NoticeLevel, message string) {
	if message == "" {
		return
	}

	c.mu.Lock()
	c.nextID++
	t := Toast{
		ID:        c.nextID,
		Level:     level,
		Message:   message,
		ExpiresAt: c.now().Add(c.duration),
	}
	c.current = &t
	if c.timer != nil {
		c.timer.Stop()
	}
	id := t.ID
	c.timer = time.AfterFunc(c.duration, func() { c.expire(id) })
	subs := c.subs
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- t:
		default: // Non-blocking if channel full
		}
	}
}

// Current returns the visible toast, if any
func (c *Center) Current() (Toast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.now().Before(c.current.ExpiresAt) {
		return Toast{}, false
	}
	return *c.current, true
}

// Dismiss hides the current toast
func (c *Center) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Subscribe returns a channel that receives every new toast. Slow readers
// miss toasts rather than block the sender.
func (c *Center) Subscribe() <-chan Toast {
	ch := make(chan Toast, 8)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Center) expire(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.ID == id {
		c.current = nil
	}
}
