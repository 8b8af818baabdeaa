package ws

import (
	"sync"
	"time"

	"mpesa-callback-relay/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxMessageSize = 64 << 10

// Session is one upgraded connection. It implements ports.SessionConn.
// Frames are queued on a bounded channel and written by a single writer
// goroutine, so Send never blocks the dispatch worker.
type Session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
	log          zerolog.Logger
}

func newSession(id string, conn *websocket.Conn, buffer int, writeTimeout, pingInterval time.Duration, log zerolog.Logger) *Session {
	if buffer < 1 {
		buffer = 1
	}
	return &Session{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		log:          log.With().Str("session_id", id).Logger(),
	}
}

func (s *Session) SessionID() string { return s.id }

// Send queues a notification frame.
func (s *Session) Send(env *domain.Envelope) error {
	return s.enqueue(EventNotification, env)
}

// Close stops the writer, which sends a close frame and drops the
// connection. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) enqueue(event string, data interface{}) error {
	select {
	case <-s.done:
		return domain.ErrSessionClosed
	default:
	}

	b, err := encodeFrame(event, data)
	if err != nil {
		return err
	}

	select {
	case s.send <- b:
		return nil
	case <-s.done:
		return domain.ErrSessionClosed
	default:
		return domain.ErrSendBufferFull
	}
}

func (s *Session) readTimeout() time.Duration {
	return 2 * s.pingInterval
}

// writePump owns all writes to conn.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug().Err(err).Msg("write failed, closing session")
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.flush()
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeTimeout))
			return
		}
	}
}

// flush writes whatever is already queued before the close frame.
func (s *Session) flush() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
