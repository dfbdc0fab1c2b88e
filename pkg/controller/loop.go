package controller

import (
	"errors"
	"slices"
	"strings"

	"github.com/rubiojr/resdir/pkg/codec"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
)

type event interface{}

type mutation struct {
	apply func(*intent.Intent)
	reply chan State
}

type refresh struct {
	reply chan State
}

type timerFired struct {
	gen uint64
}

type fetchDone struct {
	seq  uint64
	key  string
	page *core.ResultPage
	err  error
}

type snapshotRequest struct {
	reply chan State
}

type subscription struct {
	id uint64
	ch <-chan State
}

type subscribeRequest struct {
	reply chan subscription
}

var errEmptyResponse = errors.New("fetcher returned no page")

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.done:
			c.stopTimer()
			c.cancel()
			c.final = c.snapshot()
			c.hub.Close()
			c.logger.Debugf("session closed at %q", c.state.Link)
			return
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case mutation:
		c.applyMutation(ev)
	case refresh:
		c.stopTimer()
		c.dispatch()
		ev.reply <- c.snapshot()
	case timerFired:
		if ev.gen != c.timerGen || c.timer == nil {
			return
		}
		c.timer = nil
		c.dispatch()
	case fetchDone:
		c.settle(ev)
	case snapshotRequest:
		ev.reply <- c.snapshot()
	case subscribeRequest:
		id, ch := c.hub.Register()
		c.hub.Send(id, c.snapshot())
		ev.reply <- subscription{id: id, ch: ch}
	}
}

func (c *Controller) applyMutation(m mutation) {
	next := c.state.Intent.Clone()
	m.apply(&next)
	next = intent.Normalize(next)
	next.PageSize = c.pageSize

	link := codec.EncodeString(next)
	changed := link != c.state.Link
	c.state.Intent = next
	c.state.Link = link

	if changed {
		c.record(link)
		c.arm()
		c.publish()
	}
	m.reply <- c.snapshot()
}

// record pushes link unless the history already points at it.
func (c *Controller) record(link string) {
	if strings.TrimPrefix(c.history.Current(), "?") == link {
		return
	}
	c.history.Push(link)
}

// arm replaces the pending timer, if any. A callback from a replaced timer
// that already fired carries an old generation and is ignored.
func (c *Controller) arm() {
	c.stopTimer()
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(c.debounce, func() {
		c.send(timerFired{gen: gen})
	})
}

func (c *Controller) stopTimer() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) dispatch() {
	c.seq++
	seq, key := c.seq, c.state.Link
	c.logger.Debugf("request %d: %q", seq, key)

	c.state.IsLoading = true
	c.publish()

	go func() {
		page, err := c.fetcher.Fetch(c.ctx, key)
		c.send(fetchDone{seq: seq, key: key, page: page, err: err})
	}()
}

func (c *Controller) settle(ev fetchDone) {
	if ev.seq != c.seq || ev.key != c.state.Link {
		c.logger.Debugf("discarding stale response %d (latest %d)", ev.seq, c.seq)
		return
	}

	c.state.IsLoading = false
	err := ev.err
	if err == nil && ev.page == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.logger.Warnf("search %q failed: %v", ev.key, err)
		c.state.Results = nil
		c.state.TotalCount = 0
		c.state.TotalPages = 0
	} else {
		c.state.Results = ev.page.Items
		c.state.TotalCount = ev.page.TotalCount
		c.state.TotalPages = ev.page.TotalPages
	}
	c.publish()
}

func (c *Controller) snapshot() State {
	s := c.state
	s.Intent = s.Intent.Clone()
	s.Results = slices.Clone(s.Results)
	return s
}

func (c *Controller) publish() {
	c.hub.Broadcast(c.snapshot())
}
