package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitTimeout = 5 * time.Second

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Receiver remembering what it was handed.
type recorder struct {
	packets chan []byte
	errs    chan error
	closed  chan error

	// onPacket and onClosed run after a packet or the end of the
	// connection was recorded.
	onPacket func(data []byte)
	onClosed func()
}

func newRecorder() *recorder {
	return &recorder{
		packets: make(chan []byte, 16),
		errs:    make(chan error, 16),
		closed:  make(chan error, 1),
	}
}

func (r *recorder) OnPacket(data []byte) {
	r.packets <- data
	if r.onPacket != nil {
		r.onPacket(data)
	}
}

func (r *recorder) OnError(err error) { r.errs <- err }

func (r *recorder) OnClosed(err error) {
	r.closed <- err
	if r.onClosed != nil {
		r.onClosed()
	}
}

func (r *recorder) packet(t *testing.T) []byte {
	t.Helper()

	select {
	case p := <-r.packets:
		return p
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for a packet")
		return nil
	}
}

func (r *recorder) waitClosed(t *testing.T) error {
	t.Helper()

	select {
	case err := <-r.closed:
		return err
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for the channel to close")
		return nil
	}
}

func TestPacketName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "newSession", packetName([]byte(`{"name":"newSession","parameters":{}}`)))
	require.Equal(t, "-", packetName([]byte(`{"parameters":{}}`)))
	require.Equal(t, "-", packetName([]byte(`not json`)))
}
