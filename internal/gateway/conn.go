package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/wordwire/internal/event"
	"github.com/MrWong99/wordwire/internal/registry"
	"github.com/coder/websocket"
)

// wsConn adapts one accepted socket to [registry.Conn]. coder/websocket
// permits a single concurrent writer, so sends are serialized with a mutex;
// the per-write timeout keeps one stalled client from wedging whoever is
// fanning out to it.
type wsConn struct {
	ws      *websocket.Conn
	timeout time.Duration

	mu sync.Mutex
}

var _ registry.Conn = (*wsConn)(nil)

// Send encodes the envelope as one text frame and writes it.
func (c *wsConn) Send(ctx context.Context, ev event.Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("gateway: encode %s frame: %w", ev.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("gateway: write %s frame: %w", ev.Type, err)
	}
	return nil
}
