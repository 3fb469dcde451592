package broadcaster

import (
	"sync"
	"time"
)

// Client is one open event stream.
type Client struct {
	ID uint64

	hub    *Hub
	mu     sync.Mutex // serialises frames on stream
	stream Stream
	done   chan struct{}
	once   sync.Once
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops the heartbeat and unregisters the client. It waits for a write
// in progress, so the stream is untouched once Done is closed. Safe to call
// more than once; must not be called with mu held.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
		c.hub.remove(c.ID)
		c.hub.logger.Debug("sse client closed", "client", c.ID)
	})
}

func (c *Client) write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(p)
}

func (c *Client) writeLocked(p []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	if _, err := c.stream.Write(p); err != nil {
		return err
	}
	return c.stream.Flush()
}

func (c *Client) keepAlive(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.write(heartbeatFrame); err != nil {
				c.Close()
				return
			}
		}
	}
}
