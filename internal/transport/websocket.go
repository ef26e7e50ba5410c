// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	applog "dspctl/internal/log"

	"github.com/gorilla/websocket"
)

// SessionHeader carries the caller's session id on the websocket upgrade
// and on NATS requests.
const SessionHeader = "X-Dsp-Session"

var wsLog = applog.Named("websocket")

// wsTripper sends frames as binary websocket messages. Calls are serialized;
// the endpoint answers in order.
type wsTripper struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWebSocket connects to an endpoint server and performs the handshake.
func DialWebSocket(ctx context.Context, url string, hello Hello, timeout time.Duration) (*Client, error) {
	header := http.Header{}
	header.Set(SessionHeader, hello.Session.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := newClient(&wsTripper{conn: conn}, timeout)
	if err := c.hello(ctx, hello); err != nil {
		return nil, err
	}
	wsLog.Debugf("connected to %s", url)
	return c, nil
}

func (w *wsTripper) roundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline, _ := ctx.Deadline()
	w.conn.SetWriteDeadline(deadline)
	w.conn.SetReadDeadline(deadline)
	if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, err
	}
	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsTripper) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// WebSocketServer exposes an Endpoint on /ws.
type WebSocketServer struct {
	addr      string
	endpoint  *Endpoint
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	server    *http.Server
}

// NewWebSocketServer creates a server for ep. Call ListenAndServe to start
// it, or mount Handler in an existing mux.
func NewWebSocketServer(addr string, ep *Endpoint) *WebSocketServer {
	s := &WebSocketServer{
		addr:     addr,
		endpoint: ep,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the server's HTTP handler.
func (s *WebSocketServer) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until Close is called.
func (s *WebSocketServer) ListenAndServe() error {
	wsLog.Infof("serving endpoint on %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Warnf("upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(requestHeaderLen + MaxPayload)

	s.clientsMu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.clientsMu.Unlock()
	wsLog.Infof("client connected (session %s), total: %d", r.Header.Get(SessionHeader), n)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		n := len(s.clients)
		s.clientsMu.Unlock()
		conn.Close()
		wsLog.Infof("client disconnected, total: %d", n)
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		var req Request
		if err := req.UnmarshalBinary(data); err != nil {
			wsLog.Warnf("dropping client: %v", err)
			return
		}
		out, _ := s.endpoint.Handle(req).MarshalBinary()
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			wsLog.Warnf("write error: %v", err)
			return
		}
	}
}

// Close disconnects every client and stops the server.
func (s *WebSocketServer) Close() error {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()
	return s.server.Close()
}
