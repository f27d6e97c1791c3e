// Package feedback shows transient success and error notifications.
//
// Every notification lives on its own timer: nothing is deduplicated, capped
// or queued, so two errors raised a second apart disappear a second apart.
package feedback

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/logging"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

const (
	DefaultSuccessTTL = 3 * time.Second
	DefaultErrorTTL   = 5 * time.Second
)

type Notification struct {
	ID        string
	Kind      Kind
	Text      string
	ShownAt   time.Time
	ExpiresAt time.Time
}

// Listener observes shows (visible=true) and dismissals (visible=false).
type Listener func(n Notification, visible bool)

type Options struct {
	Clock      clock.Clock
	SuccessTTL time.Duration
	ErrorTTL   time.Duration
	Logger     *zap.Logger
}

type Channel struct {
	clock      clock.Clock
	successTTL time.Duration
	errorTTL   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	seq       int
	visible   map[string]entry
	listeners map[int]Listener
	nextSub   int
	closed    bool
}

type entry struct {
	n     Notification
	seq   int
	timer clock.Timer
}

func New(opts Options) *Channel {
	c := &Channel{
		clock:      opts.Clock,
		successTTL: opts.SuccessTTL,
		errorTTL:   opts.ErrorTTL,
		logger:     logging.OrNop(opts.Logger),
		visible:    map[string]entry{},
		listeners:  map[int]Listener{},
	}
	if c.clock == nil {
		c.clock = clock.System{}
	}
	if c.successTTL <= 0 {
		c.successTTL = DefaultSuccessTTL
	}
	if c.errorTTL <= 0 {
		c.errorTTL = DefaultErrorTTL
	}
	return c
}

func (c *Channel) Success(text string) Notification {
	return c.show(KindSuccess, text, c.successTTL)
}

func (c *Channel) Error(text string) Notification {
	return c.show(KindError, text, c.errorTTL)
}

func (c *Channel) show(kind Kind, text string, ttl time.Duration) Notification {
	now := c.clock.Now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      text,
		ShownAt:   now,
		ExpiresAt: now.Add(ttl),
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	c.seq++
	e := entry{n: n, seq: c.seq}
	c.visible[n.ID] = e
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	timer := c.clock.AfterFunc(ttl, func() { c.dismiss(n.ID) })
	c.mu.Lock()
	if cur, ok := c.visible[n.ID]; ok {
		cur.timer = timer
		c.visible[n.ID] = cur
	}
	c.mu.Unlock()

	if kind == KindError {
		c.logger.Warn("notification shown", zap.String("id", n.ID), zap.String("text", text))
	} else {
		c.logger.Info("notification shown", zap.String("id", n.ID), zap.String("text", text))
	}
	for _, l := range listeners {
		l(n, true)
	}
	return n
}

func (c *Channel) dismiss(id string) {
	c.mu.Lock()
	e, ok := c.visible[id]
	if ok {
		delete(c.visible, id)
	}
	listeners := c.snapshotListeners()
	c.mu.Unlock()
	if !ok {
		return
	}
	c.logger.Debug("notification dismissed", zap.String("id", id))
	for _, l := range listeners {
		l(e.n, false)
	}
}

func (c *Channel) snapshotListeners() []Listener {
	keys := make([]int, 0, len(c.listeners))
	for k := range c.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Listener, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.listeners[k])
	}
	return out
}

// Subscribe registers l and returns a function removing it.
func (c *Channel) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Visible returns the notifications currently shown, oldest first.
func (c *Channel) Visible() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]entry, 0, len(c.visible))
	for _, e := range c.visible {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Notification, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.n)
	}
	return out
}

// Close stops every pending timer and drops visible notifications without
// notifying listeners. Later calls to Success or Error show nothing.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, e := range c.visible {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.visible, id)
	}
}
