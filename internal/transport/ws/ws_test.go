package ws

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"oreinfinium.net/internal/config"
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/server"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/transport/queue"
)

type events struct {
	connected    chan struct{}
	disconnected chan error
	failed       chan error
}

func newEvents() *events {
	return &events{
		connected:    make(chan struct{}, 1),
		disconnected: make(chan error, 1),
		failed:       make(chan error, 1),
	}
}

func (e *events) Connected()              { e.connected <- struct{}{} }
func (e *events) Disconnected(err error)  { e.disconnected <- err }
func (e *events) ConnectFailed(err error) { e.failed <- err }

func startServer(t *testing.T) string {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	w := server.New(config.Defaults(), cats, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	srv := httptest.NewServer(NewServer(w, logger).Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func hello(name string) protocol.InitialClientData {
	return protocol.InitialClientData{
		PlayerName:      name,
		ClientUUID:      uuid.NewString(),
		VersionMajor:    protocol.VersionMajor,
		VersionMinor:    protocol.VersionMinor,
		VersionRevision: protocol.VersionRevision,
	}
}

// waitFor polls q until a message of the given kind shows up.
func waitFor(t *testing.T, q *queue.Queue[protocol.Message], kind string) protocol.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range q.Drain() {
			if m.Kind() == kind {
				return m
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s within deadline", kind)
	return nil
}

func TestRoundTrip_JoinAndChat(t *testing.T) {
	url := startServer(t)

	q := &queue.Queue[protocol.Message]{}
	ev := newEvents()
	c := NewClient(ClientOptions{URL: url, Hello: hello("alice")}, q, ev)
	c.Connect(context.Background())

	select {
	case <-ev.connected:
	case err := <-ev.failed:
		t.Fatalf("connect failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("connect timed out")
	}

	ps := waitFor(t, q, protocol.KindPlayerSpawned).(*protocol.PlayerSpawned)
	if ps.PlayerName != "alice" {
		t.Fatalf("player name: got %q", ps.PlayerName)
	}

	if err := c.Send(&protocol.ChatSend{Message: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	chat := waitFor(t, q, protocol.KindChatMessage).(*protocol.ChatMessage)
	if chat.Message != "hello" || chat.PlayerName != "alice" {
		t.Fatalf("chat: %+v", chat)
	}

	_ = c.Close()
	select {
	case <-ev.disconnected:
	case <-time.After(5 * time.Second):
		t.Fatalf("no disconnect after Close")
	}
}

func TestRoundTrip_VersionMismatch(t *testing.T) {
	url := startServer(t)

	q := &queue.Queue[protocol.Message]{}
	ev := newEvents()
	h := hello("bob")
	h.VersionMajor++
	c := NewClient(ClientOptions{URL: url, Hello: h}, q, ev)
	c.Connect(context.Background())

	dr := waitFor(t, q, protocol.KindDisconnectReason).(*protocol.DisconnectReason)
	if dr.Reason != protocol.ReasonVersionMismatch {
		t.Fatalf("reason: got %q", dr.Reason)
	}
	select {
	case <-ev.disconnected:
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not close the connection")
	}
}

func TestRoundTrip_LagKeepsOrder(t *testing.T) {
	url := startServer(t)

	q := &queue.Queue[protocol.Message]{}
	ev := newEvents()
	opts := ClientOptions{URL: url, Hello: hello("carol"), LagMin: 5 * time.Millisecond, LagMax: 40 * time.Millisecond}
	c := NewClient(opts, q, ev)
	c.Connect(context.Background())
	defer c.Close()

	<-ev.connected
	waitFor(t, q, protocol.KindPlayerSpawned)

	for _, s := range []string{"one", "two", "three", "four"} {
		if err := c.Send(&protocol.ChatSend{Message: s}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	var got []string
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 4 && time.Now().Before(deadline) {
		for _, m := range q.Drain() {
			if cm, ok := m.(*protocol.ChatMessage); ok && cm.Sender == protocol.ChatSenderPlayer {
				got = append(got, cm.Message)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if strings.Join(got, ",") != "one,two,three,four" {
		t.Fatalf("order: got %v", got)
	}
}

func TestConnect_Failure(t *testing.T) {
	q := &queue.Queue[protocol.Message]{}
	ev := newEvents()
	c := NewClient(ClientOptions{URL: "ws://127.0.0.1:1/v1/ws", Hello: hello("dave")}, q, ev)
	c.Connect(context.Background())

	select {
	case err := <-ev.failed:
		if _, ok := err.(*ConnectError); !ok {
			t.Fatalf("want *ConnectError, got %T", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("no failure reported")
	}
	if err := c.Send(&protocol.KeepAlive{}); err != ErrNotConnected {
		t.Fatalf("send before connect: got %v", err)
	}
}

// frameSink accepts one connection and reports every text frame it read once
// the connection ends.
func frameSink(t *testing.T) (string, <-chan []string) {
	t.Helper()
	got := make(chan []string, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(rw, r, nil)
		if err != nil {
			got <- nil
			return
		}
		defer conn.Close()
		var frames []string
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				got <- frames
				return
			}
			frames = append(frames, string(b))
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), got
}

func TestWriteLoop_FlushOnlyOnLocalClose(t *testing.T) {
	cases := []struct {
		name  string
		local bool
		want  int
	}{
		{"local close flushes", true, 2},
		{"remote drop discards", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url, got := frameSink(t)
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			c := NewClient(ClientOptions{URL: url}, &queue.Queue[protocol.Message]{}, newEvents())
			c.out <- []byte(`{"type":"PING","data":{}}`)
			c.out <- []byte(`{"type":"PING","data":{}}`)
			if tc.local {
				c.flush.Store(true)
			}
			c.shutdown()
			c.writeLoop(conn)
			_ = conn.Close()

			select {
			case frames := <-got:
				if len(frames) != tc.want {
					t.Fatalf("frames: got %d want %d (%v)", len(frames), tc.want, frames)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("sink never finished")
			}
		})
	}
}
