/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Server is a WebSocket test server that endpoints can be attached to.
type Server struct {
	t          testing.TB
	Mux        *http.ServeMux
	ServerHTTP *httptest.Server
	Context    context.Context
}

// NewServer returns a fully configured and running WS test server.
func NewServer(t testing.TB, opts ...func(*Server)) *Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	s := &Server{
		t:          t,
		Mux:        mux,
		ServerHTTP: server,
		Context:    ctx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the ws:// URL of path.
func (s *Server) URL(path string) string {
	return "ws" + strings.TrimPrefix(s.ServerHTTP.URL, "http") + path
}

// Dial connects to path. The connection is closed when the test ends.
func (s *Server) Dial(path string) *websocket.Conn {
	s.t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(s.Context, s.URL(path), nil)
	require.NoError(s.t, err)
	_ = resp.Body.Close()
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WithHandler attaches a WebSocket handler running fn for every
// connection. The connection is closed once fn returns.
func WithHandler(path string, fn func(conn *websocket.Conn)) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		fn(conn)
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// WithClosureAbnormalHandler attaches an abnormal closure behavior to Server.
func WithClosureAbnormalHandler(path string) func(*Server) {
	return WithHandler(path, func(conn *websocket.Conn) {
		// Closing without a close message exchange.
		_ = conn.Close()
	})
}

// WithEchoHandler attaches a handler echoing text messages until the
// client closes the connection.
func WithEchoHandler(path string) func(*Server) {
	return WithHandler(path, func(conn *websocket.Conn) {
		for {
			typ, buf, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(typ, buf); err != nil {
				return
			}
		}
	})
}

// ReadJSON reads the next text message from conn into v.
func ReadJSON(t testing.TB, conn *websocket.Conn, v interface{}) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}
