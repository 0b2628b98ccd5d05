package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tabi-dev/tabi/internal/logging"
)

const (
	// writeWait bounds one socket write or ping.
	writeWait = 10 * time.Second

	// readWait bounds the gap between reads; pings keep it fed.
	readWait = 60 * time.Second

	// pingPeriod must stay under readWait.
	pingPeriod = (readWait * 9) / 10

	// maxMessageSize caps inbound frames. Clients never send payloads.
	maxMessageSize = 512
)

// hub tracks the connected live-reload sockets. The client map is owned
// exclusively by the run goroutine; everything else talks to it through
// channels, so no lock guards the map.
type hub struct {
	logger     logging.Logger
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func newHub(logger logging.Logger) *hub {
	if logger == nil {
		logger = logging.Discard()
	}

	return &hub{
		logger:     logger.WithComponent("reload"),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}
}

// run owns the client set until the hub closes or the context ends.
// Whatever the exit path, done is closed so pumps never block on a
// channel nobody reads, and every remaining socket is shut down.
func (h *hub) run(ctx context.Context) {
	clients := make(map[*client]struct{})

	defer func() {
		h.close()
		for c := range clients {
			c.shutdown(websocket.StatusGoingAway, "server shutting down")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-h.done:
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			h.logger.Debug(ctx, "reload client connected", "client", c.id, "total", len(clients))

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				c.shutdown(websocket.StatusNormalClosure, "")
				h.logger.Debug(ctx, "reload client disconnected", "client", c.id, "total", len(clients))
			}

		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// Send buffer full means the client stopped
					// draining; drop it rather than block the hub.
					delete(clients, c)
					c.shutdown(websocket.StatusPolicyViolation, "client too slow")
					h.logger.Debug(ctx, "reload client dropped", "client", c.id)
				}
			}
		}
	}
}

// broadcastReload queues one reload notification for every open socket.
// A closed hub swallows the call.
func (h *hub) broadcastReload() {
	select {
	case h.broadcast <- []byte(reloadMessage):
	case <-h.done:
	}
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// client is one browser's reload socket.
type client struct {
	id   string
	conn *websocket.Conn
	hub  *hub
	send chan []byte

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, h *hub) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  h,
		send: make(chan []byte, 16),
	}
}

// shutdown closes the socket and the send channel exactly once. The
// socket goes first so the close frame carries this status rather than
// the write pump's default. Called only from the hub goroutine or after
// unregistration, never from the pumps directly.
func (c *client) shutdown(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(status, reason)
		close(c.send)
	})
}

// unregister hands the client back to the hub, or shuts it down locally
// when the hub is already gone.
func (c *client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
		c.shutdown(websocket.StatusGoingAway, "server shutting down")
	}
}

// readPump drains the socket until it errors or closes. The browser
// client never sends application messages; the read loop exists to
// notice disconnects and enforce the read limit.
func (c *client) readPump(ctx context.Context) {
	defer c.unregister()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		readCtx, cancel := context.WithTimeout(ctx, readWait)
		_, _, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.hub.logger.Debug(ctx, "reload socket closed", "client", c.id, "reason", err.Error())
			}

			return
		}
	}
}

// writePump forwards queued messages and keepalive pings until the send
// channel closes or a write fails.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.unregister()

				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.unregister()

				return
			}
		}
	}
}
