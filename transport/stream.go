package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/wire"
)

// WritePacket writes data framed as `<decimal length>:<data>`.
func WritePacket(w io.Writer, data []byte) error {
	if _, err := io.WriteString(w, strconv.Itoa(len(data))+":"); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadPacket reads one `<decimal length>:<data>` packet. It returns io.EOF
// only when the stream ends between packets.
func ReadPacket(r *bufio.Reader) ([]byte, error) {
	var n, digits int
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && digits > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return nil, fmt.Errorf("invalid packet length character %q", b)
		}
		n = n*10 + int(b-'0')
		digits++
		if n > MaxPacketSize {
			return nil, ErrPacketTooLarge
		}
	}
	if digits == 0 {
		return nil, errors.New("packet length is missing")
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// StreamChannel is a packet channel over a byte stream using the
// length-prefixed framing.
type StreamChannel struct {
	conn   io.ReadWriteCloser
	logger *log.Logger

	mu sync.Mutex
	bw *bufio.Writer

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStreamChannel returns a channel framing packets over conn.
func NewStreamChannel(conn io.ReadWriteCloser, logger *log.Logger) *StreamChannel {
	return &StreamChannel{
		conn:   conn,
		logger: logger,
		bw:     bufio.NewWriter(conn),
		closed: make(chan struct{}),
	}
}

// Send writes r as one packet.
func (s *StreamChannel) Send(r *wire.Response) error {
	data, err := wire.Encode(r)
	if err != nil {
		return fmt.Errorf("encoding packet: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	s.logger.Debugf("transport:send", "-> %s", data)
	if err := WritePacket(s.bw, data); err != nil {
		return err
	}
	return s.bw.Flush()
}

// Close closes the underlying stream. Serve returns once it notices.
func (s *StreamChannel) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *StreamChannel) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Serve reads packets and hands them to recv until the stream ends. A
// framing error ends the stream too and is passed to OnClosed.
func (s *StreamChannel) Serve(recv Receiver) {
	br := bufio.NewReader(s.conn)
	for {
		data, err := ReadPacket(br)
		if err != nil {
			recv.OnClosed(s.closeError(err))
			return
		}
		s.logger.Debugf("transport:recv", "<- %s %s", packetName(data), data)
		recv.OnPacket(data)
	}
}

func (s *StreamChannel) closeError(err error) error {
	if errors.Is(err, io.EOF) || s.isClosed() || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
