// Package runtime owns connection tracking, frame dispatch and the
// write-behind flush pipeline. It carries no business rules; those live
// in the handlers.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"matchroom/contract"
	"matchroom/domain"
)

type Set map[string]struct{}

// Registry is the single source of truth for which users are reachable
// right now and which rooms they occupy. All mutation goes through one
// mutex; the maps are the only shared mutable state in the process.
// Coarse-grained by choice: one critical section over sessions and
// rooms keeps the invariants easy to hold.
type Registry struct {
	mu        sync.Mutex
	log       *slog.Logger
	userConns map[string]map[contract.Session]struct{}
	connUser  map[contract.Session]string
	rooms     map[string]Set
	vacated   chan string
}

func NewRegistry(log *slog.Logger, vacancyBuffer int) *Registry {
	return &Registry{
		log:       log,
		userConns: make(map[string]map[contract.Session]struct{}),
		connUser:  make(map[contract.Session]string),
		rooms:     make(map[string]Set),
		vacated:   make(chan string, vacancyBuffer),
	}
}

// Vacated exposes the stream of rooms whose member set just became
// empty. The flush worker is its only consumer.
func (r *Registry) Vacated() <-chan string {
	return r.vacated
}

// Register adds a connection to a user's connection set. Idempotent if
// the connection is already present.
func (r *Registry) Register(userID string, sess contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.userConns[userID]
	if !ok {
		conns = make(map[contract.Session]struct{})
		r.userConns[userID] = conns
	}
	conns[sess] = struct{}{}
	r.connUser[sess] = userID
	r.log.Info("session registered", "user_id", userID)
}

// Unregister removes a connection from its user's set and from every
// room the user belonged to. Safe to call repeatedly on the same
// connection; the second call is a no-op returning ok=false.
// Rooms left empty as a result are emitted as vacated events.
func (r *Registry) Unregister(sess contract.Session) (string, bool) {
	r.mu.Lock()
	userID, known := r.connUser[sess]
	if !known {
		r.mu.Unlock()
		return "", false
	}
	delete(r.connUser, sess)

	var userGone bool
	if conns, ok := r.userConns[userID]; ok {
		delete(conns, sess)
		if len(conns) == 0 {
			delete(r.userConns, userID)
			userGone = true
		}
	}

	var emptied []string
	if userGone {
		emptied = r.dropFromAllRoomsLocked(userID)
	}
	r.mu.Unlock()

	r.log.Info("session unregistered", "user_id", userID)
	r.emitVacated(emptied)
	return userID, true
}

// dropFromAllRoomsLocked removes a user from every room and returns the
// rooms whose member set became empty. Caller holds the mutex.
func (r *Registry) dropFromAllRoomsLocked(userID string) []string {
	var emptied []string
	for roomID, members := range r.rooms {
		if _, in := members[userID]; !in {
			continue
		}
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
			emptied = append(emptied, roomID)
		}
	}
	return emptied
}

// AddToRoom adds a user to a room's member set, creating the room on
// first use. Joining the registry does not imply joining any room.
func (r *Registry) AddToRoom(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(Set)
		r.rooms[roomID] = members
	}
	members[userID] = struct{}{}
}

// RemoveFromRoom removes a user from a room. Removing the last member
// destroys the room entry and emits the same vacated event as a
// disconnect would.
func (r *Registry) RemoveFromRoom(userID, roomID string) {
	r.mu.Lock()
	var emptied []string
	if members, ok := r.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
			emptied = append(emptied, roomID)
		}
	}
	r.mu.Unlock()

	r.emitVacated(emptied)
}

// RoomMembers returns a snapshot of a room's member set.
func (r *Registry) RoomMembers(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	out := make([]string, 0, len(members))
	for userID := range members {
		out = append(out, userID)
	}
	return out
}

// UserIDs returns a snapshot of every user with at least one live
// connection.
func (r *Registry) UserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.userConns))
	for userID := range r.userConns {
		out = append(out, userID)
	}
	return out
}

// SafeSend delivers one frame to one session. A failed write means the
// transport is dead: the session is closed and unregistered.
func (r *Registry) SafeSend(sess contract.Session, frame domain.Outbound) {
	if err := sess.SendJSON(frame); err != nil {
		r.log.Error("send failed, dropping session", "error", err)
		_ = sess.Close(1011, "send failed")
		r.Unregister(sess)
	}
}

// SendToUser best-effort sends a frame to every live connection of a
// user. A failure on one connection removes that connection and does
// not abort sending to the others. Returns the number of successful
// sends.
func (r *Registry) SendToUser(userID string, frame domain.Outbound) int {
	r.mu.Lock()
	conns := make([]contract.Session, 0, len(r.userConns[userID]))
	for sess := range r.userConns[userID] {
		conns = append(conns, sess)
	}
	r.mu.Unlock()

	sent := 0
	for _, sess := range conns {
		if err := sess.SendJSON(frame); err != nil {
			r.log.Error("send failed", "user_id", userID, "error", err)
			_ = sess.Close(1011, "send failed")
			r.Unregister(sess)
			continue
		}
		sent++
	}
	return sent
}

// BroadcastToRoom sends a frame to every current member of a room
// except the excluded user, via SendToUser semantics per member.
func (r *Registry) BroadcastToRoom(roomID string, frame domain.Outbound, excludeUser string) int {
	sent := 0
	for _, userID := range r.RoomMembers(roomID) {
		if excludeUser != "" && userID == excludeUser {
			continue
		}
		sent += r.SendToUser(userID, frame)
	}
	return sent
}

// CloseUserConnections force-closes every live connection of a user.
func (r *Registry) CloseUserConnections(userID string) {
	r.mu.Lock()
	conns := make([]contract.Session, 0, len(r.userConns[userID]))
	for sess := range r.userConns[userID] {
		conns = append(conns, sess)
	}
	r.mu.Unlock()

	for _, sess := range conns {
		if err := sess.Close(1000, "closed by server"); err != nil {
			r.log.Error(fmt.Sprintf("error closing session for user %s", userID), "error", err)
		}
		r.Unregister(sess)
	}
}

// PingAll sends a liveness probe to every live connection. Dead
// connections are removed through the Unregister path. Returns the
// number of probes delivered.
func (r *Registry) PingAll(probe string) int {
	r.mu.Lock()
	conns := make([]contract.Session, 0, len(r.connUser))
	for sess := range r.connUser {
		conns = append(conns, sess)
	}
	r.mu.Unlock()

	sent := 0
	for _, sess := range conns {
		if err := sess.SendText(probe); err != nil {
			r.log.Warn("ping failed, dropping session", "error", err)
			_ = sess.Close(1011, "ping failed")
			r.Unregister(sess)
			continue
		}
		sent++
	}
	return sent
}

// emitVacated publishes vacancy events outside the critical section.
// The channel is buffered; if the flush worker has fallen this far
// behind we drop the event and the cached messages wait for the next
// vacancy of that room.
func (r *Registry) emitVacated(rooms []string) {
	for _, roomID := range rooms {
		select {
		case r.vacated <- roomID:
		default:
			r.log.Warn(fmt.Sprintf("vacancy channel full, dropping event for room %s", roomID))
		}
	}
}
