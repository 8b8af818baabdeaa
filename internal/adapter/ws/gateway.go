package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"mpesa-callback-relay/config"
	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Gateway upgrades HTTP requests to push sessions and routes their join and
// leave events to the session registry.
type Gateway struct {
	registry ports.SessionRegistry
	tokens   ports.TokenService
	cfg      config.GatewayConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger

	wg sync.WaitGroup
}

// NewGateway creates a gateway. tokens may be nil, in which case the token
// query parameter is ignored.
func NewGateway(registry ports.SessionRegistry, tokens ports.TokenService, cfg config.GatewayConfig, log zerolog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		tokens:   tokens,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Desktop clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws_gateway").Logger(),
	}
}

// Handle serves GET /ws. It blocks until the session ends.
func (g *Gateway) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	g.wg.Add(1)
	defer g.wg.Done()

	s := newSession(uuid.New().String(), conn, g.cfg.SendBuffer, g.cfg.WriteTimeout, g.cfg.PingInterval, g.log)
	g.registry.Connect(s)
	defer func() {
		g.registry.Disconnect(s.id)
		s.Close()
	}()

	go s.writePump()

	g.autoJoin(s, c.Query("merchant_id"), c.Query("token"))
	g.readPump(s)
}

// autoJoin joins the rooms named in the handshake. A bad token is reported
// on the session but does not close it.
func (g *Gateway) autoJoin(s *Session, merchantID, token string) {
	keys := []string{merchantID}

	if token = strings.TrimSpace(token); token != "" && g.tokens != nil {
		claims, err := g.tokens.Validate(token)
		if err != nil {
			g.sendError(s, "invalid token")
		} else {
			keys = append(keys, claims.MerchantID)
		}
	}

	keys = domain.NormalizeKeys(keys...)
	if len(keys) == 0 {
		return
	}
	rooms, err := g.registry.Join(s.id, keys)
	if err != nil {
		return
	}
	primary := strings.TrimSpace(merchantID)
	if primary == "" {
		primary = keys[0]
	}
	g.reply(s, EventJoined, RoomsAck{Room: primary, Rooms: rooms})
}

func (g *Gateway) readPump(s *Session) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.readTimeout()))
	})

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("session read failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout()))
		if msgType != websocket.TextMessage {
			continue
		}
		g.handleFrame(s, msg)
	}
}

func (g *Gateway) handleFrame(s *Session, msg []byte) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		g.sendError(s, "invalid frame")
		return
	}

	switch f.Event {
	case EventJoin, EventLeave:
		var req domain.JoinRequest
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &req); err != nil {
				g.sendError(s, "invalid "+f.Event+" payload")
				return
			}
		}
		keys := req.Keys()
		if len(keys) == 0 {
			g.sendError(s, f.Event+" requires merchant_id, shop_code or shop_codes")
			return
		}

		if f.Event == EventJoin {
			rooms, err := g.registry.Join(s.id, keys)
			if err != nil {
				return
			}
			g.reply(s, EventJoined, RoomsAck{Room: primaryKey(req, keys), Rooms: rooms})
			return
		}
		rooms, err := g.registry.Leave(s.id, keys)
		if err != nil {
			return
		}
		g.reply(s, EventLeft, RoomsAck{Room: primaryKey(req, keys), Rooms: rooms})
	default:
		g.sendError(s, "unknown event: "+f.Event)
	}
}

func primaryKey(req domain.JoinRequest, keys []string) string {
	if m := strings.TrimSpace(req.MerchantID.String()); m != "" {
		return m
	}
	return keys[0]
}

func (g *Gateway) sendError(s *Session, msg string) {
	g.reply(s, EventError, ErrorData{Message: msg})
}

func (g *Gateway) reply(s *Session, event string, data interface{}) {
	if err := s.enqueue(event, data); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("failed to queue reply")
	}
}

// Shutdown closes every live session and waits for their handlers to return
// or ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	for _, conn := range g.registry.All() {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Info().Msg("websocket gateway stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
