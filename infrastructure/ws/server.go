package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"matchroom/auth"
	"matchroom/contract"
	"matchroom/runtime"
)

// Close codes for the session state machine: a distinct code for
// authentication failures, a distinct code for internal errors during
// accept/registration, the standard code for normal disconnects.
const (
	CloseAuthFailure   = runtime.CloseTokenExpired
	CloseInternalError = websocket.CloseInternalServerErr
	CloseNormal        = websocket.CloseNormalClosure
)

// pong is what clients answer to the liveness probe; it never reaches
// the dispatcher.
const pong = "__pong__"

// Server upgrades authenticated HTTP requests into registered sessions
// and runs each connection's read loop.
type Server struct {
	log        *slog.Logger
	upgrader   websocket.Upgrader
	issuer     *auth.TokenIssuer
	registry   contract.IRegistry
	dispatcher *runtime.Dispatcher
}

func NewServer(log *slog.Logger, issuer *auth.TokenIssuer,
	registry contract.IRegistry, dispatcher *runtime.Dispatcher) *Server {
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		issuer:     issuer,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// HandleWS is the session-establishment endpoint. The connection state
// machine is AUTHENTICATING -> ACTIVE: a missing, malformed, refresh-class
// or expired credential closes the transport with the auth close code
// and never reaches the dispatcher.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token, tokenErr := auth.ExtractToken(r)

	var userID string
	sctx := contract.SessionContext{}
	if tokenErr == nil {
		userID, sctx.TokenExp, tokenErr = s.issuer.Validate(token)
		sctx.UserID = userID
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	conn := NewConn(wsConn)

	if tokenErr != nil {
		s.log.Info("rejecting unauthenticated session", "error", tokenErr)
		_ = conn.Close(CloseAuthFailure, "authentication failed")
		return
	}

	s.registry.Register(userID, conn)
	s.log.Info("session active", "user_id", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer s.registry.Unregister(conn)

	s.readLoop(ctx, conn, sctx)
}

// readLoop reads frames in arrival order and hands each to the
// dispatcher, which schedules the handler independently so the loop
// continues immediately. Returns when the transport dies.
func (s *Server) readLoop(ctx context.Context, conn *Conn, sctx contract.SessionContext) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, CloseNormal, websocket.CloseGoingAway) {
				s.log.Warn("connection lost", "user_id", sctx.UserID, "error", err)
			} else {
				s.log.Info("connection closed", "user_id", sctx.UserID)
			}
			return
		}
		if len(data) == 0 || string(data) == pong {
			continue
		}
		s.dispatcher.DispatchRaw(ctx, conn, data, sctx)
	}
}
