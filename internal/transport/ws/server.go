package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/server"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
)

type Server struct {
	world *server.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *server.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out, done := s.handshake(r.Context(), conn)
		if done == nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. When the world drops the session it closes done
		// after queueing the final DisconnectReason, so drain before closing.
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					for {
						select {
						case b := <-out:
							if writeFrame(conn, b) != nil {
								return
							}
						default:
							_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
							return
						}
					}
				case b := <-out:
					if err := writeFrame(conn, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			m, err := protocol.Decode(msg)
			s.world.Submit(id, m, err)
		}
		cancel()

		s.world.Leave(id)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (uint64, chan []byte, <-chan struct{}) {
	_ = conn.SetReadDeadline(time.Now().Add(s.world.HandshakeTimeout()))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil, nil
	}

	m, err := protocol.Decode(msg)
	hello, ok := m.(*protocol.InitialClientData)
	if err != nil || !ok {
		s.reject(conn, &protocol.DisconnectReason{Reason: protocol.ReasonBadHandshake, Message: "expected " + protocol.KindInitialClientData})
		return 0, nil, nil
	}

	out := make(chan []byte, s.world.OutboundQueue())
	respCh := make(chan server.JoinResponse, 1)
	s.world.Join(server.JoinRequest{Hello: *hello, Out: out, Resp: respCh})
	var resp server.JoinResponse
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		return 0, nil, nil
	}
	if resp.Reject != nil {
		s.log.Printf("handshake rejected: name=%q reason=%s", hello.PlayerName, resp.Reject.Reason)
		s.reject(conn, resp.Reject)
		return 0, nil, nil
	}
	return resp.SessionID, out, resp.Done
}

func (s *Server) reject(conn *websocket.Conn, reason *protocol.DisconnectReason) {
	if b, err := protocol.Encode(reason); err == nil {
		_ = writeFrame(conn, b)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason.Reason), time.Now().Add(time.Second))
}

func writeFrame(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
