// Package phxtest runs an in-process channel server for tests.
package phxtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"pkt.systems/consoleshell/transport"
)

// JoinPolicy decides how the server answers a join. Returning reply=false
// leaves the join unanswered.
type JoinPolicy func(msg transport.Message) (status string, response transport.Payload, reply bool)

// AcceptAll acknowledges every join with an empty response.
func AcceptAll(transport.Message) (string, transport.Payload, bool) {
	return "ok", transport.EmptyPayload, true
}

// Server is a minimal channel server speaking the array-framed protocol.
type Server struct {
	t          testing.TB
	srv        *httptest.Server
	serializer transport.Serializer

	mu               sync.Mutex
	joinPolicy       JoinPolicy
	ignoreHeartbeats bool
	conns            []*websocket.Conn
	queries          []url.Values
	frames           []transport.Message
	received         chan transport.Message
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	serializer, err := transport.SerializerFor(transport.VersionV2)
	if err != nil {
		t.Fatalf("serializer: %v", err)
	}
	s := &Server{
		t:          t,
		serializer: serializer,
		joinPolicy: AcceptAll,
		received:   make(chan transport.Message, 1024),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL returns the socket endpoint without the transport suffix.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/socket"
}

// SetJoinPolicy replaces the join policy.
func (s *Server) SetJoinPolicy(policy JoinPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinPolicy = policy
}

// IgnoreHeartbeats stops acknowledging heartbeats.
func (s *Server) IgnoreHeartbeats(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreHeartbeats = ignore
}

// Connections returns the number of accepted connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// LastQuery returns the query of the most recent upgrade request.
func (s *Server) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

// Frames returns every received frame with the given event, in order.
func (s *Server) Frames(event string) []transport.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Message, 0, len(s.frames))
	for _, msg := range s.frames {
		if msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

// Expect waits for the next received frame with event, skipping others.
func (s *Server) Expect(event string, timeout time.Duration) transport.Message {
	s.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-s.received:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			s.t.Fatalf("timed out waiting for %s frame", event)
			return transport.Message{}
		}
	}
}

// Push sends a frame to the most recent connection.
func (s *Server) Push(msg transport.Message) {
	s.t.Helper()
	s.mu.Lock()
	var conn *websocket.Conn
	if len(s.conns) > 0 {
		conn = s.conns[len(s.conns)-1]
	}
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatalf("push %s: no connection", msg.Event)
		return
	}
	if err := s.write(conn, msg); err != nil {
		s.t.Fatalf("push %s: %v", msg.Event, err)
	}
}

// DropConnections closes every connection without a close handshake.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.CloseNow()
	}
}

// Close drops connections and stops the server.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.queries = append(s.queries, r.URL.Query())
	s.mu.Unlock()

	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		msg, err := s.serializer.Decode(data)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.frames = append(s.frames, msg)
		s.mu.Unlock()
		select {
		case s.received <- msg:
		default:
		}
		s.respond(conn, msg)
	}
}

func (s *Server) respond(conn *websocket.Conn, msg transport.Message) {
	s.mu.Lock()
	policy := s.joinPolicy
	ignoreHeartbeats := s.ignoreHeartbeats
	s.mu.Unlock()
	switch msg.Event {
	case "phx_join":
		status, response, reply := policy(msg)
		if reply {
			_ = s.write(conn, Reply(msg, status, response))
		}
	case "phx_leave":
		_ = s.write(conn, Reply(msg, "ok", transport.EmptyPayload))
	case "heartbeat":
		if !ignoreHeartbeats {
			_ = s.write(conn, Reply(msg, "ok", transport.EmptyPayload))
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg transport.Message) error {
	data, err := s.serializer.Encode(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Reply builds a phx_reply frame answering msg.
func Reply(msg transport.Message, status string, response transport.Payload) transport.Message {
	payload, _ := transport.EmptyPayload.Set("status", status)
	payload, _ = payload.SetRaw("response", response)
	return transport.Message{
		JoinRef: msg.JoinRef,
		Ref:     msg.Ref,
		Topic:   msg.Topic,
		Event:   "phx_reply",
		Payload: payload,
	}
}

// Output builds a stdo frame for the channel joined by join.
func Output(join transport.Message, message string) transport.Message {
	payload, _ := transport.EmptyPayload.Set("message", message)
	return transport.Message{
		JoinRef: join.JoinRef,
		Topic:   join.Topic,
		Event:   "stdo",
		Payload: payload,
	}
}
