package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// defaultReadLimit bounds a single frame. Full renders of large pages are
// well above the websocket library's 32KiB default.
const defaultReadLimit = 16 << 20

// WSOptions configure a websocket transport.
type WSOptions struct {
	URL       string // ws:// or wss:// endpoint of the UI server
	Token     string // sent as a Bearer Authorization header when set
	Header    http.Header
	ReadLimit int64
}

// WS is a Transport over a single websocket connection.
type WS struct {
	opts WSOptions

	mu          sync.Mutex
	conn        *websocket.Conn
	handlers    Handlers
	outstanding map[string]pending
	closed      bool
	override    string
	routeTitle  string

	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	fault   sync.Once
}

type pending struct {
	kind  string
	start time.Time
}

// NewWS returns an unstarted websocket transport.
func NewWS(opts WSOptions) *WS {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	return &WS{opts: opts, outstanding: make(map[string]pending)}
}

// Init dials the server, starts the read loop and sends the init request.
func (t *WS) Init(ctx context.Context, req protocol.InitRequest, h Handlers) error {
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return ErrClosed
	case t.conn != nil:
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.mu.Unlock()

	dialOpts := &websocket.DialOptions{HTTPHeader: t.opts.Header.Clone()}
	if t.opts.Token != "" {
		if dialOpts.HTTPHeader == nil {
			dialOpts.HTTPHeader = http.Header{}
		}
		dialOpts.HTTPHeader.Set("Authorization", "Bearer "+t.opts.Token)
	}

	done := tuilog.Log.Timed("channel dial")
	conn, _, err := websocket.Dial(ctx, t.opts.URL, dialOpts)
	done()
	if err != nil {
		wsConnectsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("dial %s: %w", t.opts.URL, err)
	}
	wsConnectsTotal.WithLabelValues("ok").Inc()
	conn.SetReadLimit(t.opts.ReadLimit)

	loopCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.conn != nil || t.closed {
		t.mu.Unlock()
		cancel()
		conn.CloseNow()
		return ErrAlreadyStarted
	}
	t.conn = conn
	t.handlers = h
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.readLoop(loopCtx, conn)

	tuilog.Log.Info("Channel connected", "url", t.opts.URL)
	return t.send(ctx, protocol.NewInitRequest(req))
}

// Dispatch sends a user event. The round trip is outstanding from now until
// its final frame has been handled.
func (t *WS) Dispatch(ctx context.Context, ev protocol.EventEnvelope) error {
	return t.send(ctx, protocol.NewEventRequest(ev))
}

// HotReload asks the server to re-run the current page.
func (t *WS) HotReload(ctx context.Context) error {
	return t.send(ctx, protocol.NewHotReloadRequest())
}

func (t *WS) send(ctx context.Context, req protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", req.Type, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	conn := t.conn
	switch {
	case t.closed:
		t.mu.Unlock()
		return ErrClosed
	case conn == nil:
		t.mu.Unlock()
		return ErrNotStarted
	}
	t.outstanding[req.ID] = pending{kind: req.Type, start: time.Now()}
	inflight.Set(float64(len(t.outstanding)))
	t.mu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.mu.Lock()
		delete(t.outstanding, req.ID)
		inflight.Set(float64(len(t.outstanding)))
		t.mu.Unlock()
		err = fmt.Errorf("send %s request: %w", req.Type, err)
		if ctx.Err() == nil {
			t.fail(err)
		}
		return err
	}
	requestsTotal.WithLabelValues(req.Type).Inc()
	tuilog.Log.Debug("Request sent", "id", req.ID, "type", req.Type)
	return nil
}

func (t *WS) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(t.done)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				t.fail(ErrServerClosed)
				return
			}
			t.fail(fmt.Errorf("read frame: %w", err))
			return
		}

		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.fail(fmt.Errorf("decode frame: %w", err))
			return
		}
		framesTotal.Inc()

		if f.Render != nil {
			t.mu.Lock()
			t.routeTitle = f.Render.Title
			t.mu.Unlock()
		}
		if t.handlers.OnFrame != nil {
			t.handlers.OnFrame(ctx, f)
		}
		if f.Final {
			t.settle(f.RequestID)
		}
	}
}

func (t *WS) settle(id string) {
	t.mu.Lock()
	p, ok := t.outstanding[id]
	delete(t.outstanding, id)
	inflight.Set(float64(len(t.outstanding)))
	t.mu.Unlock()

	if !ok {
		tuilog.Log.Warn("Final frame for unknown request", "request_id", id)
		return
	}
	roundTripSeconds.WithLabelValues(p.kind).Observe(time.Since(p.start).Seconds())
	if t.handlers.OnSettled != nil {
		t.handlers.OnSettled(id)
	}
}

// fail closes the transport and reports err once.
func (t *WS) fail(err error) {
	t.fault.Do(func() {
		tuilog.Log.Error("Channel fault", "error", err)
		faultsTotal.Inc()

		t.mu.Lock()
		t.closed = true
		conn, cancel := t.conn, t.cancel
		t.outstanding = make(map[string]pending)
		inflight.Set(0)
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			conn.CloseNow()
		}

		if t.handlers.OnFault != nil {
			t.handlers.OnFault(err)
		}
	})
}

// IsBusy reports whether any round trip is outstanding.
func (t *WS) IsBusy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outstanding) > 0
}

func (t *WS) OverriddenTitle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.override
}

func (t *WS) SetOverriddenTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.override = title
}

func (t *WS) ResetOverriddenTitle() {
	t.SetOverriddenTitle("")
}

func (t *WS) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.override != "" {
		return t.override
	}
	return t.routeTitle
}

// Close ends the connection. Frames arriving afterwards are not delivered.
func (t *WS) Close() error {
	// Suppress the fault callback for a client-initiated close.
	t.fault.Do(func() {})

	t.mu.Lock()
	if t.closed && t.conn == nil {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn, cancel, done := t.conn, t.cancel, t.done
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	cancel()
	if err := conn.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
		tuilog.Log.Debug("Channel close handshake", "error", err)
	}
	<-done
	tuilog.Log.Info("Channel closed", "url", t.opts.URL)
	return nil
}
