package transport

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/tests/ws"
	"github.com/liuxd6825/marionette/wire"
)

func TestWSChannel(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	served := make(chan struct{})
	srv := ws.NewServer(t, ws.WithHandler("/marionette", func(conn *websocket.Conn) {
		defer close(served)

		ch := NewWSChannel(conn, log.NewNullLogger())
		rec.onPacket = func([]byte) {
			_ = ch.Send(wire.NewError(api.NewError(api.UnknownCommand, "getTitle")))
		}
		rec.onClosed = func() { _ = ch.Close() }
		ch.Serve(rec)
	}))

	conn := srv.Dial("/marionette")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"name":"getTitle"}`)))
	assert.Equal(t, `{"name":"getTitle"}`, string(rec.packet(t)))

	var resp struct {
		From  string `json:"from"`
		Error struct {
			Message string `json:"message"`
			Status  int    `json:"status"`
		} `json:"error"`
	}
	ws.ReadJSON(t, conn, &resp)
	assert.Equal(t, "0", resp.From)
	assert.Equal(t, "getTitle", resp.Error.Message)
	assert.Equal(t, 9, resp.Error.Status)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2}))
	select {
	case err := <-rec.errs:
		assert.EqualError(t, err, "unexpected websocket message type 2")
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for the error")
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.NoError(t, rec.waitClosed(t))
	<-served
}

func TestWSChannelAbnormalClosure(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	served := make(chan struct{})
	srv := ws.NewServer(t, ws.WithHandler("/marionette", func(conn *websocket.Conn) {
		defer close(served)

		ch := NewWSChannel(conn, log.NewNullLogger())
		rec.onClosed = func() { _ = ch.Close() }
		ch.Serve(rec)
	}))

	conn := srv.Dial("/marionette")
	require.NoError(t, conn.UnderlyingConn().Close())

	err := rec.waitClosed(t)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseAbnormalClosure, closeErr.Code)
	<-served

	select {
	case <-rec.packets:
		t.Fatal("no packet was sent")
	default:
	}
}
