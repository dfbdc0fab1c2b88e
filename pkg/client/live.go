package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/resdir/pkg/api"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/log"
)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("live fetcher closed")

// defaultHandshakeTimeout bounds the wait for the server's init frame when the
// caller's context carries no earlier deadline.
const defaultHandshakeTimeout = 10 * time.Second

type liveResult struct {
	page *core.ResultPage
	err  error
}

// LiveFetcher runs searches over one WebSocket connection to
// /api/resources/live. Concurrent fetches share the connection and are
// matched to responses by id. A broken connection is redialed on the next
// fetch.
type LiveFetcher struct {
	wsURL  string
	dialer *websocket.Dialer
	logger *log.Logger
	nextID atomic.Uint64

	handshakeTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan liveResult
	closed  bool

	writeMu sync.Mutex
}

// NewLiveFetcher returns a fetcher for the server at baseURL (http or https).
func NewLiveFetcher(baseURL string) (*LiveFetcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path += "/api/resources/live"

	return &LiveFetcher{
		wsURL:   u.String(),
		dialer:  websocket.DefaultDialer,
		logger:  log.ForService("live-client"),
		pending: make(map[string]chan liveResult),

		handshakeTimeout: defaultHandshakeTimeout,
	}, nil
}

func (f *LiveFetcher) Fetch(ctx context.Context, query string) (*core.ResultPage, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}

	id := strconv.FormatUint(f.nextID.Add(1), 10)
	ch := make(chan liveResult, 1)

	f.mu.Lock()
	f.pending[id] = ch
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.pending, id)
		f.mu.Unlock()
	}()

	f.writeMu.Lock()
	err = conn.WriteJSON(api.LiveRequest{ID: id, Query: query})
	f.writeMu.Unlock()
	if err != nil {
		f.drop(conn, fmt.Errorf("sending live request: %w", err))
		return nil, fmt.Errorf("sending live request: %w", err)
	}

	select {
	case res := <-ch:
		return res.page, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect returns the current connection, dialing when there is none.
func (f *LiveFetcher) connect(ctx context.Context) (*websocket.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.conn != nil {
		return f.conn, nil
	}

	conn, _, err := f.dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", f.wsURL, err)
	}

	init, err := f.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading live handshake: %w", err)
	}
	f.logger.Debugf("connected to %s (server %s)", f.wsURL, init.Version)

	f.conn = conn
	go f.readLoop(conn)
	return conn, nil
}

// handshake reads the init frame. The read gives up at the handshake timeout,
// the ctx deadline, or ctx cancellation, whichever comes first, since connect
// holds f.mu while it waits.
func (f *LiveFetcher) handshake(ctx context.Context, conn *websocket.Conn) (api.LiveResponse, error) {
	var init api.LiveResponse

	deadline := time.Now().Add(f.handshakeTimeout)
	ctxDeadline := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, ctxDeadline = d, true
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return init, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})

	err := conn.ReadJSON(&init)
	if !stop() && err == nil {
		// ctx ended after the frame arrived; the deadline may already be
		// forced into the past, so the connection is not safe to keep.
		err = ctx.Err()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return init, fmt.Errorf("%w (%v)", ctxErr, err)
		}
		// The socket deadline can fire just before the ctx timer does.
		if ctxDeadline && errors.Is(err, os.ErrDeadlineExceeded) {
			return init, fmt.Errorf("%w (%v)", context.DeadlineExceeded, err)
		}
		return init, err
	}
	if init.Type != api.LiveTypeInit {
		return init, fmt.Errorf("unexpected first message %q", init.Type)
	}
	return init, conn.SetReadDeadline(time.Time{})
}

func (f *LiveFetcher) readLoop(conn *websocket.Conn) {
	for {
		var resp api.LiveResponse
		if err := conn.ReadJSON(&resp); err != nil {
			f.drop(conn, fmt.Errorf("live connection lost: %w", err))
			return
		}

		var res liveResult
		switch {
		case resp.Type == api.LiveTypeError && resp.Error != nil:
			res.err = &APIError{Status: 500, Code: resp.Error.Error, Message: resp.Error.Message}
		case resp.Result != nil:
			res.page = resp.Result
		default:
			res.err = fmt.Errorf("malformed live response for %s", resp.ID)
		}

		f.mu.Lock()
		ch, ok := f.pending[resp.ID]
		f.mu.Unlock()
		if !ok {
			f.logger.Debugf("dropping response for unknown request %s", resp.ID)
			continue
		}
		select {
		case ch <- res:
		default:
		}
	}
}

// drop forgets conn and fails every fetch waiting on it.
func (f *LiveFetcher) drop(conn *websocket.Conn, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != conn {
		return
	}
	f.conn = nil
	conn.Close()
	for id, ch := range f.pending {
		select {
		case ch <- liveResult{err: err}:
		default:
		}
		delete(f.pending, id)
	}
}

// Close shuts the connection down. Further fetches fail with ErrClosed.
func (f *LiveFetcher) Close() error {
	f.mu.Lock()
	f.closed = true
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return nil
	}
	f.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	f.writeMu.Unlock()
	f.drop(conn, ErrClosed)
	return nil
}
