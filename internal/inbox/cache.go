// Package inbox caches the user's single received note.
package inbox

import (
	"context"
	"time"

	"dropnote/internal/cache"
	"dropnote/internal/model"
)

// View selects how old a cached inbox may be before a read refetches.
type View time.Duration

const (
	InboxView  = View(30 * time.Second)
	DetailView = View(15 * time.Second)
)

type Fetcher func(ctx context.Context) (*model.Note, error)

type Cache struct {
	slot *cache.Slot[*model.Note]
	now  func() time.Time
}

func New(fetch Fetcher, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		slot: cache.NewSlot(cache.Fetcher[*model.Note](fetch), cache.WithClock(now)),
		now:  now,
	}
}

// Current returns the inbox note, or nil for an empty inbox. Expired notes
// are reported as absent even before the cache is invalidated.
func (c *Cache) Current(ctx context.Context, view View) (*model.Note, error) {
	note, err := c.slot.Get(ctx, time.Duration(view))
	if err != nil {
		return nil, err
	}
	return c.visible(note), nil
}

// Note returns the inbox note only when its id is noteID.
func (c *Cache) Note(ctx context.Context, noteID string, view View) (*model.Note, error) {
	note, err := c.Current(ctx, view)
	if err != nil || note == nil || note.ID != noteID {
		return nil, err
	}
	return note, nil
}

// Peek serves the last known inbox without waiting, refreshing in the
// background when it is older than the view allows.
func (c *Cache) Peek(view View) (*model.Note, bool) {
	note, ok := c.slot.Peek(time.Duration(view))
	if !ok {
		return nil, false
	}
	return c.visible(note), true
}

// MarkReplied records a confirmed reply on the cached copy. It never
// flips replied back to false.
func (c *Cache) MarkReplied(noteID string) {
	c.slot.Update(func(n *model.Note) *model.Note {
		if n == nil || n.ID != noteID || n.Replied {
			return n
		}
		updated := *n
		updated.Replied = true
		return &updated
	})
}

func (c *Cache) Invalidate() { c.slot.Invalidate() }

func (c *Cache) Reset() { c.slot.Reset() }

func (c *Cache) Invalidations() int { return c.slot.Invalidations() }

func (c *Cache) Fetches() int { return c.slot.Fetches() }

func (c *Cache) visible(note *model.Note) *model.Note {
	if note == nil || note.Expired(c.now()) {
		return nil
	}
	out := *note
	return &out
}
