// Package cart is the shopping cart state machine. Lines always have a
// positive quantity; totals are derived, never stored.
package cart

import (
	"log/slog"
	"sync"

	"github.com/mmcdole/folio/internal/domain"
)

// Persister saves and restores cart lines. domain.Store satisfies it.
type Persister interface {
	GetCart(dest any) bool
	SaveCart(lines any) error
}

// Cart holds the lines in insertion order
type Cart struct {
	persist Persister
	logger  *slog.Logger

	mu    sync.Mutex
	lines []domain.CartLine

	subMu sync.Mutex
	subs  []func([]domain.CartLine)
}

// New creates a cart, restoring saved lines. persist may be nil.
func New(persist Persister, logger *slog.Logger) *Cart {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cart{persist: persist, logger: logger}

	if persist != nil {
		var saved []domain.CartLine
		if persist.GetCart(&saved) {
			for _, l := range saved {
				if l.Quantity > 0 && l.Product.ID != "" {
					c.lines = append(c.lines, l)
				}
			}
		}
	}
	return c
}

// Add puts one unit of product in the cart, adding a line if needed
func (c *Cart) Add(product domain.Product) {
	c.update(func(lines []domain.CartLine) []domain.CartLine {
		if i := find(lines, product.ID); i >= 0 {
			lines[i].Quantity++
			return lines
		}
		return append(lines, domain.CartLine{Product: product, Quantity: 1})
	})
}

// SetQuantity sets the quantity of a line; n <= 0 removes it. Unknown
// products are ignored.
func (c *Cart) SetQuantity(productID string, n int) {
	c.update(func(lines []domain.CartLine) []domain.CartLine {
		i := find(lines, productID)
		if i < 0 {
			return lines
		}
		if n <= 0 {
			return append(lines[:i], lines[i+1:]...)
		}
		lines[i].Quantity = n
		return lines
	})
}

// Increment adds delta to a line's quantity, removing it at zero
func (c *Cart) Increment(productID string, delta int) {
	c.update(func(lines []domain.CartLine) []domain.CartLine {
		i := find(lines, productID)
		if i < 0 {
			return lines
		}
		n := lines[i].Quantity + delta
		if n <= 0 {
			return append(lines[:i], lines[i+1:]...)
		}
		lines[i].Quantity = n
		return lines
	})
}

// Remove drops a line
func (c *Cart) Remove(productID string) {
	c.SetQuantity(productID, 0)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.update(func([]domain.CartLine) []domain.CartLine { return nil })
}

// Items returns a copy of the lines
func (c *Cart) Items() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartLine{}, c.lines...)
}

// Count is the number of units across all lines
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Total is the sum of unit price times quantity, in cents
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return total(c.lines)
}

// FormattedTotal renders Total as "14.97"
func (c *Cart) FormattedTotal() string {
	return domain.FormatCents(c.Total())
}

// Subscribe registers fn to receive the lines after every change
func (c *Cart) Subscribe(fn func([]domain.CartLine)) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

func (c *Cart) update(fn func([]domain.CartLine) []domain.CartLine) {
	c.mu.Lock()
	next := fn(append([]domain.CartLine(nil), c.lines...))
	c.lines = next
	snapshot := append([]domain.CartLine{}, next...)
	c.mu.Unlock()

	if c.persist != nil {
		if err := c.persist.SaveCart(snapshot); err != nil {
			c.logger.Warn("failed to save cart", "error", err)
		}
	}

	c.subMu.Lock()
	subs := append([]func([]domain.CartLine){}, c.subs...)
	c.subMu.Unlock()
	for _, sub := range subs {
		sub(append([]domain.CartLine{}, snapshot...))
	}
}

func find(lines []domain.CartLine, productID string) int {
	for i, l := range lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func total(lines []domain.CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Subtotal()
	}
	return sum
}
