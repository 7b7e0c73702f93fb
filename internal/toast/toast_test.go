package toast

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/folio/internal/domain"
)

func TestNotifyReplacesCurrent(t *testing.T) {
	c := NewCenter(time.Minute)

	_, ok := c.Current()
	assert.Equal(t, ok, false)

	c.Notify(domain.NoticeSuccess, "Skill updated")
	c.Notify(domain.NoticeError, "Request failed")

	cur, ok := c.Current()
	assert.Equal(t, ok, true)
	assert.Equal(t, cur.Level, domain.NoticeError)
	assert.Equal(t, cur.Message, "Request failed")

	c.Dismiss()
	_, ok = c.Current()
	assert.Equal(t, ok, false)
}

func TestToastExpires(t *testing.T) {
	c := NewCenter(10 * time.Millisecond)
	c.Notify(domain.NoticeInfo, "hello")

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Current()
	assert.Equal(t, ok, false)
}

func TestEmptyMessageIgnored(t *testing.T) {
	c := NewCenter(time.Minute)
	c.Notify(domain.NoticeError, "")
	_, ok := c.Current()
	assert.Equal(t, ok, false)
}

func TestSubscribe(t *testing.T) {
	c := NewCenter(time.Minute)
	ch := c.Subscribe()

	c.Notify(domain.NoticeError, "boom")
	select {
	case got := <-ch:
		assert.Equal(t, got.Message, "boom")
	case <-time.After(time.Second):
		t.Fatal("no toast delivered")
	}

	// A full channel never blocks Notify
	for i := 0; i < 20; i++ {
		c.Notify(domain.NoticeInfo, "spam")
	}
}

func TestDefaultDuration(t *testing.T) {
	c := NewCenter(0)
	assert.Equal(t, c.duration, DefaultDuration)
}
