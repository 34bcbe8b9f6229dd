package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maumercado/queuectl/internal/events"
)

// EventStream is a live connection to the admin "/ws" event feed.
type EventStream struct {
	conn      *websocket.Conn
	events    chan *events.Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	connected bool
}

// Stream dials the admin server's WebSocket endpoint and returns a live
// EventStream. Close it when done.
func (c *Client) Stream(ctx context.Context) (*EventStream, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	es := &EventStream{
		conn:      conn,
		events:    make(chan *events.Event, 100),
		done:      make(chan struct{}),
		connected: true,
	}
	go es.readLoop()
	return es, nil
}

func (es *EventStream) readLoop() {
	defer func() {
		es.mu.Lock()
		es.connected = false
		es.mu.Unlock()
		close(es.events)
	}()

	for {
		_, raw, err := es.conn.ReadMessage()
		if err != nil {
			return
		}

		var evt events.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}

		select {
		case es.events <- &evt:
		case <-es.done:
			return
		}
	}
}

// Events returns the channel of incoming job-lifecycle events. The
// channel closes when the connection drops.
func (es *EventStream) Events() <-chan *events.Event { return es.events }

// Subscribe restricts the stream to only the given event types. Passing
// none resets the stream to receive everything.
func (es *EventStream) Subscribe(types ...events.EventType) error {
	es.mu.RLock()
	defer es.mu.RUnlock()
	if !es.connected {
		return fmt.Errorf("stream is closed")
	}

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return es.conn.WriteJSON(map[string][]string{"types": names})
}

// Close tears down the WebSocket connection.
func (es *EventStream) Close() error {
	var err error
	es.closeOnce.Do(func() {
		close(es.done)
		err = es.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		es.conn.Close()
	})
	return err
}
