package http

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vncsmyrnk/rankedpoll/internal/adapters/realtime"
	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 32
)

type connState int32

const (
	stateConnecting connState = iota
	stateJoined
	stateLeft
)

// SocketHandler is the realtime gateway. Each connection is bound to the
// poll and participant named by its token.
type SocketHandler struct {
	service  ports.PollService
	tokens   ports.TokenService
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewSocketHandler(service ports.PollService, tokens ports.TokenService, hub *realtime.Hub, allowedOrigins []string, logger *slog.Logger) *SocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketHandler{
		service: service,
		tokens:  tokens,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Verify(socketToken(r))
	if err != nil {
		h.logger.Debug("socket rejected", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("socket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:     conn,
		identity: identity,
		send:     make(chan realtime.Event, sendQueueSize),
		done:     make(chan struct{}),
	}
	go c.writePump()

	h.serve(context.WithoutCancel(r.Context()), c)
}

func (h *SocketHandler) serve(ctx context.Context, c *client) {
	id := c.identity

	// The room is joined only once the participant is accepted, so a
	// refused connection never sees a snapshot.
	poll, err := h.service.AddParticipant(ctx, id.PollID, id.UserID, id.Name)
	if err != nil {
		c.state.Store(int32(stateLeft))
		h.reject(c, err)
		c.Evict()
		return
	}
	size := h.hub.Join(id.PollID, c)
	c.state.Store(int32(stateJoined))
	h.logger.Debug("participant connected", "poll_id", id.PollID, "user_id", id.UserID, "room_size", size)
	h.hub.Broadcast(poll)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("socket read failed", "poll_id", id.PollID, "error", err)
			}
			break
		}

		a, err := decodeAction(raw)
		if err == nil {
			err = h.dispatch(ctx, c, a)
		}
		if err != nil {
			h.reject(c, err)
		}
	}

	h.leave(ctx, c)
}

func (h *SocketHandler) dispatch(ctx context.Context, c *client, a action) error {
	id := c.identity
	if a.adminOnly() {
		if err := h.service.RequireAdmin(ctx, id.PollID, id.UserID); err != nil {
			return err
		}
	}

	var (
		poll *domain.Poll
		err  error
	)
	switch a := a.(type) {
	case removeParticipantAction:
		poll, err = h.service.RemoveParticipant(ctx, id.PollID, a.ID)
	case nominateAction:
		poll, err = h.service.AddNomination(ctx, ports.AddNominationInput{PollID: id.PollID, UserID: id.UserID, Text: a.Text})
	case removeNominationAction:
		poll, err = h.service.RemoveNomination(ctx, id.PollID, a.ID)
	case startVoteAction:
		poll, err = h.service.StartPoll(ctx, id.PollID, id.UserID)
	case submitRankingsAction:
		poll, err = h.service.SubmitRankings(ctx, ports.SubmitRankingsInput{PollID: id.PollID, UserID: id.UserID, Rankings: a.Rankings})
	case closePollAction:
		poll, err = h.service.ComputeResults(ctx, id.PollID, id.UserID)
	case cancelPollAction:
		if err := h.service.CancelPoll(ctx, id.PollID, id.UserID); err != nil {
			return err
		}
		h.hub.Cancel(id.PollID)
		return nil
	}
	if err != nil {
		return err
	}

	h.hub.Broadcast(poll)
	return nil
}

// leave moves a joined connection to its final state. A poll that is gone
// or already started is not broadcast.
func (h *SocketHandler) leave(ctx context.Context, c *client) {
	if !c.state.CompareAndSwap(int32(stateJoined), int32(stateLeft)) {
		return
	}
	c.Evict()

	id := c.identity
	size := h.hub.Leave(id.PollID, c)
	h.logger.Debug("participant disconnected", "poll_id", id.PollID, "user_id", id.UserID, "room_size", size)

	poll, err := h.service.RemoveParticipant(ctx, id.PollID, id.UserID)
	if err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			h.logger.Warn("failed to remove participant", "poll_id", id.PollID, "user_id", id.UserID, "error", err)
		}
		return
	}
	if !poll.HasStarted {
		h.hub.Broadcast(poll)
	}
}

// reject reports err to the offending connection only.
func (h *SocketHandler) reject(c *client, err error) {
	kind := domain.KindOf(err)
	message := err.Error()
	if kind == domain.KindStoreFailure {
		message = "internal error"
	}
	if !c.Deliver(realtime.ExceptionEvent(kind, message)) {
		c.Evict()
	}
}

// client is one websocket connection. The reader runs in the handler
// goroutine; writePump owns every write to conn.
type client struct {
	conn     *websocket.Conn
	identity domain.Identity
	send     chan realtime.Event
	done     chan struct{}
	once     sync.Once
	state    atomic.Int32
}

func (c *client) Deliver(e realtime.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- e:
		return true
	default:
		return false
	}
}

func (c *client) Evict() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e := <-c.send:
			if err := c.write(e); err != nil {
				c.Evict()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Evict()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued once the connection is evicted.
func (c *client) flush() {
	for {
		select {
		case e := <-c.send:
			if err := c.write(e); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(e realtime.Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(e)
}

// socketToken reads the identity token from the query string, a token
// header or a bearer authorization header, in that order.
func socketToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
