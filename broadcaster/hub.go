package broadcaster

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"davietech/model"

	"github.com/goccy/go-json"
)

const DefaultHeartbeat = 30 * time.Second

var (
	errClosed      = errors.New("client closed")
	heartbeatFrame = []byte(": ping\n\n")
)

// Stream is the output side of one open event-stream response.
type Stream interface {
	io.Writer
	Flush() error
}

// Hub fans change events out to every open client. It is owned by the server
// and handed to both the stream handler and the publishers.
type Hub struct {
	mu        sync.Mutex
	clients   map[uint64]*Client
	nextID    atomic.Uint64
	heartbeat time.Duration
	logger    *slog.Logger
}

// New returns an empty hub. A non-positive heartbeat disables keep-alives.
func New(heartbeat time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:   make(map[uint64]*Client),
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Open registers a client, writes the initial connected event and starts the
// heartbeat. If the first write fails the returned client is already closed.
func (h *Hub) Open(stream Stream) *Client {
	c := &Client{
		ID:     h.nextID.Add(1),
		hub:    h,
		stream: stream,
		done:   make(chan struct{}),
	}

	// Hold the client's write lock across registration so no broadcast can
	// overtake the connected event.
	c.mu.Lock()
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	err := c.writeLocked(frame(model.ChangeEvent{Type: model.EventConnected}))
	c.mu.Unlock()

	if err != nil {
		h.logger.Debug("sse client failed on connect", "client", c.ID, "error", err)
		c.Close()
		return c
	}

	h.logger.Debug("sse client connected", "client", c.ID)
	if h.heartbeat > 0 {
		go c.keepAlive(h.heartbeat)
	}
	return c
}

// Broadcast writes ev to every registered client and returns how many received
// it. A client whose write fails is closed; the others are unaffected.
func (h *Hub) Broadcast(ev model.ChangeEvent) int {
	data := frame(ev)

	delivered := 0
	for _, c := range h.snapshot() {
		if err := c.write(data); err != nil {
			h.logger.Debug("dropping sse client", "client", c.ID, "error", err)
			c.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll closes every client, releasing their stream handlers.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		c.Close()
	}
}

func (h *Hub) snapshot() []*Client {
	h.mu.Lock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

func frame(ev model.ChangeEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		// ChangeEvent only holds strings.
		panic(err)
	}
	out := make([]byte, 0, len(data)+24)
	out = append(out, "event: message\ndata: "...)
	out = append(out, data...)
	return append(out, '\n', '\n')
}
