// Package events provides the in-process publish/subscribe hook that
// decouples the badge transfer engine from subsystems reacting to badge
// loss.
package events

import (
	"context"
	"errors"
	"sync"
)

// SpeciesLost is published when an owner's badge count for one species
// transitions from nonzero to zero.
type SpeciesLost struct {
	UserID  string // the owner who lost the species
	Species string // species identifier
}

// SpeciesLostHandler reacts to a SpeciesLost event. Handlers run after
// the transfer has committed; returning an error surfaces the failure to
// the transfer caller but does not undo the transfer.
type SpeciesLostHandler func(ctx context.Context, ev SpeciesLost) error

// Channel is a synchronous, in-process event channel. Publish fires all
// registered handlers in registration order.
type Channel struct {
	mu       sync.RWMutex
	handlers []SpeciesLostHandler
}

// NewChannel creates an empty Channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Subscribe appends a handler. Registration is additive and process-lifetime.
func (c *Channel) Subscribe(h SpeciesLostHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Publish runs every handler in registration order. All handlers run even
// if earlier ones fail; their errors are joined and returned.
func (c *Channel) Publish(ctx context.Context, ev SpeciesLost) error {
	c.mu.RLock()
	handlers := make([]SpeciesLostHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
