//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"matchroom/domain"
)

// Session is one live bidirectional transport connection. The registry
// owns it exclusively once registered; handlers only ever send through
// it, never close or cache it.
type Session interface {
	SendJSON(v any) error
	SendText(text string) error
	Close(code int, reason string) error
}

// SessionContext travels with every dispatched frame of a connection.
type SessionContext struct {
	UserID   string
	TokenExp time.Time
}

// Handler processes one inbound frame. All communication back to the
// caller happens through the registry's send helpers, not a return
// value; errors escaping the handler are caught at the dispatch
// boundary.
type Handler interface {
	Handle(ctx context.Context, sess Session, userID, requestID string,
		payload json.RawMessage, meta map[string]any)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, sess Session, userID, requestID string,
	payload json.RawMessage, meta map[string]any)

func (f HandlerFunc) Handle(ctx context.Context, sess Session, userID, requestID string,
	payload json.RawMessage, meta map[string]any) {
	f(ctx, sess, userID, requestID, payload, meta)
}

// IRegistry is the single source of truth for who is reachable right now.
type IRegistry interface {
	Register(userID string, sess Session)
	Unregister(sess Session) (string, bool)
	AddToRoom(userID, roomID string)
	RemoveFromRoom(userID, roomID string)
	RoomMembers(roomID string) []string
	UserIDs() []string
	SafeSend(sess Session, frame domain.Outbound)
	SendToUser(userID string, frame domain.Outbound) int
	BroadcastToRoom(roomID string, frame domain.Outbound, excludeUser string) int
	CloseUserConnections(userID string)
}

// CacheStore is the ordered per-room message cache in front of the
// durable store. Append order is read order; entries survive until an
// explicit Clear.
type CacheStore interface {
	Append(roomID string, msg domain.CachedMessage) error
	ReadAll(roomID string) ([]domain.CachedMessage, error)
	Clear(roomID string) error
}

// ConversationRepository is the durable conversation record store,
// append-only per canonical pair and lower-cased topic.
type ConversationRepository interface {
	Find(pair domain.PairKey, topic string) ([]domain.StoredMessage, error)
	AppendMessages(pair domain.PairKey, topic string, msgs []domain.StoredMessage) error
}

// ReportRepository stores at most one relationship report per canonical
// pair. Create returns errors.ErrReportExists on a duplicate pair;
// UpdateAggregate returns errors.ErrReportNotFound when no report exists.
type ReportRepository interface {
	Find(pair domain.PairKey) (domain.ReportAggregate, error)
	Create(pair domain.PairKey, horoscope *float64) error
	UpdateAggregate(pair domain.PairKey, score float64) (domain.ReportAggregate, error)
}

// ProfileRepository resolves user profiles for the horoscope prompt.
type ProfileRepository interface {
	FindByID(id int64) (domain.Profile, error)
}

// Scorer is the external AI scoring service: prompt in, raw text out.
type Scorer interface {
	Score(ctx context.Context, prompt string) (string, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
