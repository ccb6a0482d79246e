package e2e

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"matchroom/ai"
	"matchroom/auth"
	"matchroom/contract"
	"matchroom/domain"
	"matchroom/handlers"
	"matchroom/infrastructure/ws"
	"matchroom/repositories"
	"matchroom/runtime"
)

// scriptedScorer returns canned model replies in call order.
type scriptedScorer struct {
	replies []string
	calls   int
}

func (s *scriptedScorer) Score(context.Context, string) (string, error) {
	reply := s.replies[s.calls%len(s.replies)]
	s.calls++
	return reply, nil
}

// stack is a full in-process deployment: real cache, real durable
// store, real registry and flush pipeline, scripted AI.
type stack struct {
	server        *httptest.Server
	issuer        *auth.TokenIssuer
	conversations contract.ConversationRepository
	reports       contract.ReportRepository
	cancel        context.CancelFunc
}

func startStack(t *testing.T, scorer contract.Scorer) *stack {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	cacheDB, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(repositories.Models()...))

	cache := repositories.NewRoomCache(cacheDB, log)
	conversations := repositories.NewConversationRepository(db, log)
	reports := repositories.NewReportRepository(db, log)
	profiles := repositories.NewProfileRepository(db, log)
	require.NoError(t, db.Create(&repositories.Profile{ID: 3, UserName: "ada", EmailID: "ada@example.com", Dob: "1990-01-01", PlaceOfBirth: "Paris"}).Error)
	require.NoError(t, db.Create(&repositories.Profile{ID: 5, UserName: "lin", EmailID: "lin@example.com", Dob: "1992-02-02", PlaceOfBirth: "Lyon"}).Error)

	analyzer := ai.NewAnalyzer(log, scorer)
	registry := runtime.NewRegistry(log, 16)
	dispatcher := runtime.NewDispatcher(log, registry)
	dispatcher.Register(domain.TypeChat, handlers.NewChatHandler(log, registry, cache))
	dispatcher.Register(domain.TypeAssess, handlers.NewAssessHandler(log, registry, conversations, reports, profiles, analyzer))
	dispatcher.Register(domain.TypeReport, handlers.NewReportHandler(log, registry, reports, profiles, analyzer))

	ctx, cancel := context.WithCancel(context.Background())
	flush := runtime.NewFlushWorker(log, cache, conversations, registry.Vacated())
	go func() { _ = flush.Run(ctx) }()

	issuer := auth.NewTokenIssuer("e2e-secret")
	wsServer := ws.NewServer(log, issuer, registry, dispatcher)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWS)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &stack{
		server:        server,
		issuer:        issuer,
		conversations: conversations,
		reports:       reports,
		cancel:        cancel,
	}
}

func (s *stack) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := s.issuer.Generate(userID, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrame reads the next JSON frame, skipping liveness probes.
func readFrame(t *testing.T, conn *websocket.Conn) domain.Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var frame domain.Outbound
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		if string(raw) == "__ping__" {
			continue
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	}
}

// readUntil keeps reading until a frame satisfies the predicate or the
// read deadline kills the test.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(domain.Outbound) bool) []domain.Outbound {
	t.Helper()
	var seen []domain.Outbound
	for {
		frame := readFrame(t, conn)
		seen = append(seen, frame)
		if pred(frame) {
			return seen
		}
	}
}

func Test_ChatFlow_DeliveredLiveAndFlushedOnVacancy(t *testing.T) {
	r := require.New(t)
	s := startStack(t, &scriptedScorer{replies: []string{"50%"}})

	// Given two connected users
	alice := s.dial(t, "3")
	bob := s.dial(t, "5")

	// When user 3 sends a message to user 5
	r.NoError(alice.WriteJSON(map[string]any{
		"type":       "chat",
		"request_id": "req-1",
		"payload":    map[string]any{"text": "hello", "to": "5"},
	}))

	// Then the sender is acked with the canonical room
	ack := readFrame(t, alice)
	r.Equal(domain.TypeAck, ack.Type)
	r.Equal("received", ack.Payload["status"])
	r.Equal("3_5", ack.Payload["room_id"])

	// Then the recipient receives it live
	msg := readFrame(t, bob)
	r.Equal(domain.TypeChat, msg.Type)
	r.Equal("hello", msg.Payload["text"])
	r.Equal("3", msg.Payload["sender"])

	// When both participants disconnect
	r.NoError(alice.Close())
	r.NoError(bob.Close())

	// Then the vacated room is flushed to the durable store
	pair := domain.NewPairKey(3, 5)
	r.Eventually(func() bool {
		msgs, err := s.conversations.Find(pair, "general")
		return err == nil && len(msgs) == 1 && msgs[0].Text == "hello"
	}, 5*time.Second, 50*time.Millisecond)
}

func Test_ReportFlow_StagesThenResult(t *testing.T) {
	r := require.New(t)
	s := startStack(t, &scriptedScorer{replies: []string{"61.25%"}})

	// Given a connected user with no existing report
	alice := s.dial(t, "3")

	// When a report about partner 5 is requested
	r.NoError(alice.WriteJSON(map[string]any{
		"type":       "report",
		"request_id": "req-9",
		"payload":    map[string]any{"partner_id": "5"},
	}))

	// Then stages stream in before the terminal result
	frames := readUntil(t, alice, func(f domain.Outbound) bool {
		return f.Type == domain.TypeReport && f.Payload["status"] == "done"
	})

	var stages []string
	for _, f := range frames {
		if stage, ok := f.Payload["stage"].(string); ok {
			stages = append(stages, stage)
		}
	}
	r.Equal([]string{
		"checking_report",
		"computing_horoscope",
		"computed_horoscope",
		"creating_report",
		"created_report",
		"creation_complete",
	}, stages)

	final := frames[len(frames)-1]
	result, ok := final.Payload["result"].(map[string]any)
	r.True(ok)
	r.Equal("61.25", result["horoscope_score"])
	r.Equal("None", result["sentiment_avg"])

	// Then a second request returns the stored report without
	// recomputing the horoscope
	r.NoError(alice.WriteJSON(map[string]any{
		"type":       "report",
		"request_id": "req-10",
		"payload":    map[string]any{"partner_id": "5"},
	}))
	frames = readUntil(t, alice, func(f domain.Outbound) bool {
		return f.Type == domain.TypeReport && f.Payload["status"] == "done"
	})
	for _, f := range frames {
		r.NotEqual("computing_horoscope", f.Payload["stage"])
	}
}

func Test_ExpiredToken_ClosedWithAuthCode(t *testing.T) {
	r := require.New(t)
	s := startStack(t, &scriptedScorer{replies: []string{"50%"}})

	// Given a token that is already expired
	token, err := s.issuer.Generate("3", -time.Minute)
	r.NoError(err)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token

	// When the client dials anyway (the upgrade itself succeeds)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	r.NoError(err)
	defer conn.Close()

	// Then the very first read observes the auth close code
	r.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	r.True(ok)
	r.Equal(ws.CloseAuthFailure, closeErr.Code)
}
