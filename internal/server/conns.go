package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/interview-agent/internal/protocol"
)

// Conns tracks the live connection of each interview.
type Conns struct {
	mu    sync.Mutex
	conns map[string]*wsConn
}

func NewConns() *Conns {
	return &Conns{conns: make(map[string]*wsConn)}
}

// add registers conn for id and returns the connection it replaced.
func (c *Conns) add(id string, conn *wsConn) *wsConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.conns[id]
	c.conns[id] = conn
	return prev
}

// restore undoes add after a failed attach.
func (c *Conns) restore(id string, conn, prev *wsConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[id] != conn {
		return
	}
	if prev != nil {
		c.conns[id] = prev
	} else {
		delete(c.conns, id)
	}
}

// route picks the connection for a turn's messages: the connection attached
// when the turn finished, falling back to the one that submitted it.
func (c *Conns) route(id, connID string, from *wsConn) *wsConn {
	if connID == "" || connID == from.id {
		return from
	}
	c.mu.Lock()
	cur := c.conns[id]
	c.mu.Unlock()
	if cur != nil && cur.id == connID {
		return cur
	}
	return from
}

func (c *Conns) remove(id string, conn *wsConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[id] == conn {
		delete(c.conns, id)
	}
}

// Close sends final to the interview's connection, if any, and closes it.
func (c *Conns) Close(id string, final protocol.Outbound) {
	c.mu.Lock()
	conn := c.conns[id]
	delete(c.conns, id)
	c.mu.Unlock()
	if conn != nil {
		conn.closeWith(final)
	}
}

func (c *Conns) CloseAll(final protocol.Outbound) {
	c.mu.Lock()
	all := c.conns
	c.conns = make(map[string]*wsConn)
	c.mu.Unlock()

	for _, conn := range all {
		conn.closeWith(final)
	}
}

func (c *Conns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// wsConn serializes writes to one websocket. Sends wait until open is called
// so the attach frames always go out first.
type wsConn struct {
	id string
	ws *websocket.Conn

	ready     chan struct{}
	readyOnce sync.Once
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSConn(id string, ws *websocket.Conn) *wsConn {
	return &wsConn{id: id, ws: ws, ready: make(chan struct{})}
}

func (c *wsConn) open() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *wsConn) send(msg protocol.Outbound) error {
	<-c.ready
	return c.write(msg)
}

func (c *wsConn) sendAll(msgs []protocol.Outbound) error {
	for _, msg := range msgs {
		if err := c.send(msg); err != nil {
			return err
		}
	}
	return nil
}

// write skips the ready gate. Only the attach path uses it directly.
func (c *wsConn) write(msg protocol.Outbound) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) writeAll(msgs []protocol.Outbound) error {
	for _, msg := range msgs {
		if err := c.write(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// closeWith sends a last message when final is non-nil, then closes the socket.
func (c *wsConn) closeWith(final protocol.Outbound) {
	c.closeOnce.Do(func() {
		c.open()
		if final != nil {
			_ = c.send(final)
		}
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}
