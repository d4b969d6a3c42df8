package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/rankedpoll/internal/adapters/realtime"
	"github.com/vncsmyrnk/rankedpoll/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
	"github.com/vncsmyrnk/rankedpoll/internal/core/services"
)

type testServer struct {
	*httptest.Server
	service ports.PollService
	hub     *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test wrap the poll service seen by the
// gateway.
func newTestServerWith(t *testing.T, wrap func(ports.PollService, *realtime.Hub) ports.PollService) *testServer {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewPollRepository(db, time.Hour)
	require.NoError(t, repo.InitSchema(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	tokens := services.NewTokenService("test-secret")
	service := services.NewPollService(repo, tokens, time.Hour, services.WithLogger(logger))
	hub := realtime.NewHub(logger)

	gatewayService := service
	if wrap != nil {
		gatewayService = wrap(service, hub)
	}

	handler := NewHandler(
		NewPollHandler(service),
		NewSocketHandler(gatewayService, tokens, hub, []string{"*"}, logger),
		tokens,
		[]string{"*"},
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, service: service, hub: hub}
}

func (s *testServer) post(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) session(t *testing.T, path string, body any) ports.PollSession {
	t.Helper()

	resp := s.post(t, path, body, "")
	require.Less(t, resp.StatusCode, 300)

	var session ports.PollSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return session
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(s.socketURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func (s *testServer) socketURL(token string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/polls/socket?token=" + token
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func readPoll(t *testing.T, conn *websocket.Conn) domain.Poll {
	t.Helper()

	e := readEvent(t, conn)
	require.Equal(t, realtime.EventPollUpdated, e.Event, "data: %s", e.Data)
	var poll domain.Poll
	require.NoError(t, json.Unmarshal(e.Data, &poll))
	return poll
}

func readException(t *testing.T, conn *websocket.Conn) realtime.Exception {
	t.Helper()

	e := readEvent(t, conn)
	require.Equal(t, realtime.EventException, e.Event)
	var ex realtime.Exception
	require.NoError(t, json.Unmarshal(e.Data, &ex))
	return ex
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func TestSocket_RejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(srv.socketURL("garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSocket_PollLifecycle(t *testing.T) {
	srv := newTestServer(t)

	admin := srv.session(t, "/polls", map[string]any{"topic": "Lunch", "votesPerVoter": 2, "name": "Ann"})
	pollID := admin.Poll.ID

	adminConn := srv.dial(t, admin.AccessToken)
	poll := readPoll(t, adminConn)
	assert.Len(t, poll.Participants, 1)
	assert.Contains(t, poll.Participants, poll.AdminID)

	guest := srv.session(t, "/polls/join", map[string]any{"pollID": pollID, "name": "Bob"})
	guestConn := srv.dial(t, guest.AccessToken)
	assert.Len(t, readPoll(t, adminConn).Participants, 2)
	assert.Len(t, readPoll(t, guestConn).Participants, 2)

	send(t, guestConn, actionNominate, map[string]any{"text": "Tacos"})
	readPoll(t, adminConn)
	poll = readPoll(t, guestConn)
	require.Len(t, poll.Nominations, 1)

	send(t, adminConn, actionNominate, map[string]any{"text": "Pho"})
	readPoll(t, guestConn)
	poll = readPoll(t, adminConn)
	require.Len(t, poll.Nominations, 2)

	var tacos, pho string
	for id, n := range poll.Nominations {
		switch n.Text {
		case "Tacos":
			tacos = id
		case "Pho":
			pho = id
		}
	}

	// Admin only actions are refused to the guest alone.
	send(t, guestConn, actionStartVote, nil)
	assert.Equal(t, domain.KindUnauthorized, readException(t, guestConn).Type)

	send(t, guestConn, actionSubmitRankings, map[string]any{"rankings": []string{tacos}})
	assert.Equal(t, domain.KindNotStarted, readException(t, guestConn).Type)

	send(t, adminConn, actionStartVote, nil)
	assert.True(t, readPoll(t, adminConn).HasStarted)
	assert.True(t, readPoll(t, guestConn).HasStarted)

	send(t, guestConn, actionSubmitRankings, map[string]any{"rankings": []string{tacos, pho}})
	readPoll(t, adminConn)
	readPoll(t, guestConn)

	send(t, adminConn, actionSubmitRankings, map[string]any{"rankings": []string{tacos}})
	readPoll(t, adminConn)
	readPoll(t, guestConn)

	send(t, adminConn, actionClosePoll, nil)
	poll = readPoll(t, adminConn)
	readPoll(t, guestConn)
	require.NotEmpty(t, poll.Results)
	assert.Equal(t, tacos, poll.Results[0].NominationID)
	assert.Equal(t, 2, poll.Results[0].Score)
}

func TestSocket_DisconnectBeforeStartRemovesParticipant(t *testing.T) {
	srv := newTestServer(t)

	admin := srv.session(t, "/polls", map[string]any{"topic": "Lunch", "votesPerVoter": 1, "name": "Ann"})
	adminConn := srv.dial(t, admin.AccessToken)
	readPoll(t, adminConn)

	guest := srv.session(t, "/polls/join", map[string]any{"pollID": admin.Poll.ID, "name": "Bob"})
	guestConn := srv.dial(t, guest.AccessToken)
	readPoll(t, adminConn)
	readPoll(t, guestConn)

	require.NoError(t, guestConn.Close())

	poll := readPoll(t, adminConn)
	assert.Len(t, poll.Participants, 1)
	assert.Eventually(t, func() bool { return srv.hub.RoomSize(admin.Poll.ID) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSocket_CancelPoll(t *testing.T) {
	srv := newTestServer(t)

	admin := srv.session(t, "/polls", map[string]any{"topic": "Lunch", "votesPerVoter": 1, "name": "Ann"})
	adminConn := srv.dial(t, admin.AccessToken)
	readPoll(t, adminConn)

	guest := srv.session(t, "/polls/join", map[string]any{"pollID": admin.Poll.ID, "name": "Bob"})
	guestConn := srv.dial(t, guest.AccessToken)
	readPoll(t, adminConn)
	readPoll(t, guestConn)

	send(t, guestConn, actionCancelPoll, nil)
	assert.Equal(t, domain.KindUnauthorized, readException(t, guestConn).Type)

	send(t, adminConn, actionCancelPoll, nil)
	assert.Equal(t, realtime.EventPollCancelled, readEvent(t, guestConn).Event)
	assert.Equal(t, realtime.EventPollCancelled, readEvent(t, adminConn).Event)

	require.NoError(t, guestConn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := guestConn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	_, err = srv.service.GetPoll(context.Background(), admin.Poll.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
	assert.Equal(t, 0, srv.hub.RoomSize(admin.Poll.ID))
}

func TestSocket_MalformedMessages(t *testing.T) {
	srv := newTestServer(t)

	admin := srv.session(t, "/polls", map[string]any{"topic": "Lunch", "votesPerVoter": 1, "name": "Ann"})
	conn := srv.dial(t, admin.AccessToken)
	readPoll(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, domain.KindValidationFailed, readException(t, conn).Type)

	send(t, conn, "dance", nil)
	assert.Equal(t, domain.KindValidationFailed, readException(t, conn).Type)

	send(t, conn, actionNominate, map[string]any{"text": ""})
	assert.Equal(t, domain.KindValidationFailed, readException(t, conn).Type)

	send(t, conn, actionRemoveNomination, map[string]any{"id": "missing"})
	assert.Equal(t, domain.KindNotFound, readException(t, conn).Type)

	// The connection survives rejected messages.
	send(t, conn, actionNominate, map[string]any{"text": "Tacos"})
	assert.Len(t, readPoll(t, conn).Nominations, 1)
}

func TestSocket_StrangerCannotJoinStartedPoll(t *testing.T) {
	srv := newTestServer(t)

	admin := srv.session(t, "/polls", map[string]any{"topic": "Lunch", "votesPerVoter": 1, "name": "Ann"})
	guest := srv.session(t, "/polls/join", map[string]any{"pollID": admin.Poll.ID, "name": "Bob"})

	adminConn := srv.dial(t, admin.AccessToken)
	readPoll(t, adminConn)
	send(t, adminConn, actionStartVote, nil)
	readPoll(t, adminConn)

	// Bob joined over REST but never connected before the start.
	guestConn := srv.dial(t, guest.AccessToken)
	assert.Equal(t, domain.KindAlreadyStarted, readException(t, guestConn).Type)

	require.NoError(t, guestConn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := guestConn.ReadMessage()
	assert.Error(t, err)
}

// broadcastingService pushes a snapshot to the poll's room while a
// connection is being admitted, as a concurrent mutation would.
type broadcastingService struct {
	ports.PollService
	hub *realtime.Hub
}

func (s broadcastingService) AddParticipant(ctx context.Context, pollID, userID, name string) (*domain.Poll, error) {
	if poll, err := s.PollService.GetPoll(ctx, pollID); err == nil {
		s.hub.Broadcast(poll)
	}
	return s.PollService.AddParticipant(ctx, pollID, userID, name)
}

func TestSocket_RefusedConnectionGetsNoSnapshot(t *testing.T) {
	srv := newTestServerWith(t, func(svc ports.PollService, hub *realtime.Hub) ports.PollService {
		return broadcastingService{PollService: svc, hub: hub}
	})

	admin := srv.session(t, "/polls", map[string]any{"topic": "Lunch", "votesPerVoter": 1, "name": "Ann"})
	guest := srv.session(t, "/polls/join", map[string]any{"pollID": admin.Poll.ID, "name": "Bob"})

	adminConn := srv.dial(t, admin.AccessToken)
	readPoll(t, adminConn)
	send(t, adminConn, actionStartVote, nil)
	readPoll(t, adminConn)

	// The admin's room receives a snapshot while Bob is being refused.
	guestConn := srv.dial(t, guest.AccessToken)
	assert.Equal(t, domain.KindAlreadyStarted, readException(t, guestConn).Type)
	assert.True(t, readPoll(t, adminConn).HasStarted)
	assert.Equal(t, 1, srv.hub.RoomSize(admin.Poll.ID))

	require.NoError(t, guestConn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := guestConn.ReadMessage()
	assert.Error(t, err)
}
