package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"matchroom/contract"
	"matchroom/domain"
)

// CloseTokenExpired is the distinct close code for authentication
// failures, shared with the transport layer.
const CloseTokenExpired = 4403

// Dispatcher routes inbound frames to registered handlers. Each frame
// runs as its own goroutine so one slow handler never stalls the
// connection's read loop or other handlers; completion order is not
// guaranteed.
type Dispatcher struct {
	log      *slog.Logger
	registry contract.IRegistry
	handlers map[string]contract.Handler
	wg       sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry) *Dispatcher {
	return &Dispatcher{
		log:      log,
		registry: registry,
		handlers: make(map[string]contract.Handler),
	}
}

// Register binds a frame type to its handler. Not safe to call after
// the server starts accepting connections.
func (d *Dispatcher) Register(frameType string, handler contract.Handler) {
	d.handlers[frameType] = handler
}

// DispatchRaw processes one inbound text frame on an ACTIVE connection:
// expiry check, JSON decode, route, then hand off to a supervised
// handler goroutine. Protocol errors keep the connection open; an
// expired token closes it.
func (d *Dispatcher) DispatchRaw(ctx context.Context, sess contract.Session, raw []byte, sctx contract.SessionContext) {
	if !sctx.TokenExp.IsZero() && time.Now().After(sctx.TokenExp) {
		d.log.Info("closing session with expired token", "user_id", sctx.UserID)
		d.registry.SafeSend(sess, domain.ErrorFrame("", "token_expired"))
		_ = sess.Close(CloseTokenExpired, "token expired")
		d.registry.Unregister(sess)
		return
	}

	var frame domain.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.registry.SafeSend(sess, domain.ErrorFrame("", "invalid_json"))
		return
	}

	handler, ok := d.handlers[frame.Type]
	if !ok {
		d.registry.SafeSend(sess, domain.ErrorFrame(frame.RequestID,
			fmt.Sprintf("unknown_type:%s", frame.Type)))
		return
	}

	d.wg.Add(1)
	go d.runHandler(ctx, handler, sess, sctx.UserID, frame)
}

// runHandler executes one handler as an independent task. A panic is
// recovered here and converted into a single error stage addressed to
// the originating type and request id; it never reaches other tasks or
// the connection itself.
func (d *Dispatcher) runHandler(ctx context.Context, handler contract.Handler,
	sess contract.Session, userID string, frame domain.Frame) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", "type", frame.Type, "request_id", frame.RequestID, "panic", r)
			d.registry.SafeSend(sess, domain.StageFrame(frame.Type, frame.RequestID,
				"error", map[string]any{"message": fmt.Sprint(r)}))
		}
	}()

	handler.Handle(ctx, sess, userID, frame.RequestID, frame.Payload, frame.Meta)
}

// Wait blocks until every in-flight handler has finished. Used during
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
