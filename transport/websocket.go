package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/wire"
)

const (
	wsSendBufferSize = 32
	wsCloseTimeout   = 10 * time.Second
)

// WSChannel is a packet channel over a WebSocket connection carrying one
// JSON text message per packet.
type WSChannel struct {
	conn   *websocket.Conn
	logger *log.Logger
	sendCh chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSChannel returns a channel over conn.
func NewWSChannel(conn *websocket.Conn, logger *log.Logger) *WSChannel {
	conn.SetReadLimit(MaxPacketSize)
	return &WSChannel{
		conn:   conn,
		logger: logger,
		sendCh: make(chan []byte, wsSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues r to be written as one text message.
func (c *WSChannel) Send(r *wire.Response) error {
	data, err := wire.Encode(r)
	if err != nil {
		return fmt.Errorf("encoding packet: %w", err)
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close sends a close frame and closes the connection.
func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		defer func() {
			_ = c.conn.Close()
			close(c.done)
		}()

		err = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsCloseTimeout),
		)
	})
	return err
}

// Serve reads messages and hands them to recv until the connection goes
// away, then waits for the channel to be closed.
func (c *WSChannel) Serve(recv Receiver) {
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		c.sendLoop()
	}()

	c.recvLoop(recv)
	<-sent
}

func (c *WSChannel) recvLoop(recv Receiver) {
	for {
		typ, buf, err := c.conn.ReadMessage()
		if err != nil {
			recv.OnClosed(c.closeError(err))
			return
		}
		if typ != websocket.TextMessage {
			recv.OnError(fmt.Errorf("unexpected websocket message type %d", typ))
			continue
		}

		c.logger.Debugf("transport:recv", "<- %s %s", packetName(buf), buf)
		recv.OnPacket(buf)
	}
}

func (c *WSChannel) sendLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.logger.Debugf("transport:send", "-> %s", data)
			if err := c.write(data); err != nil {
				c.logger.Debugf("transport:send", "%v", err)
				_ = c.conn.Close()
				<-c.done
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSChannel) write(data []byte) error {
	writer, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return err
	}
	return writer.Close()
}

func (c *WSChannel) closeError(err error) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return err
	}
	return nil
}
