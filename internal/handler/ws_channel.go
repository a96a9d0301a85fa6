package handler

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 75 * time.Second
	pingWait  = 5 * time.Second
)

var (
	errChannelClosed = errors.New("channel closed")
	errBufferFull    = errors.New("send buffer full")
)

// wsChannel adapts a gorilla connection to the hub's Channel interface:
// a buffered send queue drained by a single write pump. Send never blocks;
// a full buffer counts as a delivery failure.
type wsChannel struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSChannel(conn *websocket.Conn, sendBuffer int) *wsChannel {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	ch := &wsChannel{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go ch.writePump()
	return ch
}

func (c *wsChannel) Send(data []byte) error {
	select {
	case <-c.done:
		return errChannelClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errChannelClosed
	default:
		return errBufferFull
	}
}

// Ping writes a control frame; gorilla allows control writes concurrent with
// the write pump.
func (c *wsChannel) Ping() error {
	select {
	case <-c.done:
		return errChannelClosed
	default:
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWait))
}

func (c *wsChannel) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

func (c *wsChannel) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
