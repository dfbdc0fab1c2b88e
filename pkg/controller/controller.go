// Package controller owns a search session on the client side: the
// user's intent, its mirror in an addressable query string and the
// debounced remote fetch that keeps the visible results in sync.
//
// A single event-loop goroutine owns all session state. Public methods post
// events to it and wait for the result, timer callbacks and completed fetches
// post events too, so no state is shared between goroutines. Every dispatched
// fetch carries a sequence number and the encoded intent it was issued for;
// a response is applied only when both still match the latest request and the
// current intent, older ones are dropped.
package controller

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rubiojr/resdir/pkg/codec"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/log"
	"github.com/rubiojr/resdir/pkg/realtime"
)

// DefaultDebounce is the quiet period between the last mutation and the
// fetch it triggers.
const DefaultDebounce = 300 * time.Millisecond

// Fetcher runs a search for an encoded query string.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (*core.ResultPage, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, query string) (*core.ResultPage, error)

func (f FetcherFunc) Fetch(ctx context.Context, query string) (*core.ResultPage, error) {
	return f(ctx, query)
}

// FilterPatch is a shallow merge over the current filters: every non-nil
// field replaces that facet wholesale, nil fields are left alone.
type FilterPatch struct {
	Category   *[]string
	Services   *[]string
	Population *[]string
	Location   *string
}

// List is a helper for building FilterPatch list fields.
func List(values ...string) *[]string {
	return &values
}

// Text is a helper for building FilterPatch.Location.
func Text(s string) *string {
	return &s
}

// State is a snapshot of a session.
type State struct {
	Intent     intent.Intent
	Results    []core.Resource
	TotalCount int
	TotalPages int
	IsLoading  bool
	// Link is the canonical encoded form of Intent.
	Link string
}

// Option configures a Controller.
type Option func(*Controller)

func WithHistory(h History) Option {
	return func(c *Controller) { c.history = h }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithDebounce overrides DefaultDebounce. Negative values are treated as 0.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d < 0 {
			d = 0
		}
		c.debounce = d
	}
}

// WithPageSize fixes the page size of the session. Without it the size is
// taken from the hydrated link, or intent.DefaultPageSize.
func WithPageSize(n int) Option {
	return func(c *Controller) { c.pageSize = n }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSubscriberBuffer sets how many snapshots a slow subscriber may lag
// behind before older ones are dropped.
func WithSubscriberBuffer(n int) Option {
	return func(c *Controller) { c.bufSize = n }
}

// Controller drives one search session.
type Controller struct {
	fetcher  Fetcher
	history  History
	clock    clock.Clock
	debounce time.Duration
	pageSize int
	bufSize  int
	logger   *log.Logger
	hub      *realtime.Hub[State]

	events    chan event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// Owned by the loop goroutine.
	state    State
	timer    *clock.Timer
	timerGen uint64
	seq      uint64

	// Written by the loop right before stopped is closed.
	final State
}

// New starts a session hydrated from the history's current entry and
// schedules its first fetch.
func New(fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher:  fetcher,
		clock:    clock.New(),
		debounce: DefaultDebounce,
		logger:   log.ForService("controller"),
		events:   make(chan event),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.history == nil {
		c.history = NewMemoryHistory("")
	}
	c.hub = realtime.NewHub[State](c.bufSize)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	in := codec.DecodeString(c.history.Current())
	if c.pageSize > 0 {
		in.PageSize = c.pageSize
	} else {
		c.pageSize = in.PageSize
	}
	c.state = State{Intent: in, Link: codec.EncodeString(in)}
	c.logger.Debugf("session started with %q", c.state.Link)

	c.arm()
	go c.run()
	return c
}

// UpdateQuery replaces the free text.
func (c *Controller) UpdateQuery(text string) State {
	return c.mutate(func(in *intent.Intent) {
		in.Query = text
		in.Page = 1
	})
}

// UpdateFilters merges p into the current filters.
func (c *Controller) UpdateFilters(p FilterPatch) State {
	return c.mutate(func(in *intent.Intent) {
		if p.Category != nil {
			in.Filters.Category = slices.Clone(*p.Category)
		}
		if p.Services != nil {
			in.Filters.Services = slices.Clone(*p.Services)
		}
		if p.Population != nil {
			in.Filters.Population = slices.Clone(*p.Population)
		}
		if p.Location != nil {
			in.Filters.Location = *p.Location
		}
		in.Page = 1
	})
}

// UpdateSort sets the sort key and direction. Unknown values fall back to
// relevance and desc.
func (c *Controller) UpdateSort(by intent.SortBy, order intent.SortOrder) State {
	return c.mutate(func(in *intent.Intent) {
		in.SortBy = by
		in.SortOrder = order
		in.Page = 1
	})
}

// UpdatePage moves to page, clamped to 1. It is the only mutation that
// keeps the page.
func (c *Controller) UpdatePage(page int) State {
	return c.mutate(func(in *intent.Intent) {
		in.Page = max(page, 1)
	})
}

// ClearFilters drops every filter, keeping the query text and sort.
func (c *Controller) ClearFilters() State {
	return c.mutate(func(in *intent.Intent) {
		in.Filters = intent.Filters{}
		in.Page = 1
	})
}

// ClearAll returns to the default intent.
func (c *Controller) ClearAll() State {
	return c.mutate(func(in *intent.Intent) {
		*in = intent.Default()
	})
}

// Navigate replaces the intent with the one encoded in query, page
// included. It is meant for back/forward navigation, where the history has
// already moved to query and no new entry must be pushed.
func (c *Controller) Navigate(query string) State {
	return c.mutate(func(in *intent.Intent) {
		*in = codec.DecodeString(query)
	})
}

// Refresh cancels any pending debounce and fetches the current intent now.
func (c *Controller) Refresh() State {
	reply := make(chan State, 1)
	if !c.send(refresh{reply: reply}) {
		return c.State()
	}
	return <-reply
}

// State returns a snapshot of the session. After Close it returns the last
// state the session had.
func (c *Controller) State() State {
	reply := make(chan State, 1)
	if !c.send(snapshotRequest{reply: reply}) {
		<-c.stopped
		return c.final
	}
	return <-reply
}

// Subscribe returns a channel receiving a snapshot after every change,
// starting with the current state, and a function to stop the subscription.
// Slow subscribers miss intermediate snapshots but always get the latest.
// The channel is closed when the controller is closed.
func (c *Controller) Subscribe() (<-chan State, func()) {
	reply := make(chan subscription, 1)
	if !c.send(subscribeRequest{reply: reply}) {
		ch := make(chan State)
		close(ch)
		return ch, func() {}
	}
	sub := <-reply
	return sub.ch, func() { c.hub.Unregister(sub.id) }
}

// Close stops the session. Pending timers are cancelled, in-flight fetches
// receive a cancelled context and their results are ignored.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
}

func (c *Controller) mutate(apply func(*intent.Intent)) State {
	reply := make(chan State, 1)
	if !c.send(mutation{apply: apply, reply: reply}) {
		return c.State()
	}
	return <-reply
}

func (c *Controller) send(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}
