package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rummy-service/internal/service/game"
	"rummy-service/internal/service/session"
	"rummy-service/internal/service/table"
	pkgAuth "rummy-service/pkg/auth"
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/logger"
	"rummy-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type envelope struct {
	Event     string          `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TokenValidator checks that a token presented inside an event payload
// belongs to the connection's user. Satisfied by auth.Service.
type TokenValidator interface {
	ValidateUserToken(userID int64, token string) bool
}

type Handler struct {
	hub      *Hub
	sessions *session.Manager
	auth     TokenValidator
	tables   *table.Service
	game     *game.Service
}

func NewHandler(hub *Hub, sessions *session.Manager, auth TokenValidator, tables *table.Service, gameSvc *game.Service) *Handler {
	return &Handler{
		hub:      hub,
		sessions: sessions,
		auth:     auth,
		tables:   tables,
		game:     gameSvc,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// HandleWS authenticates the handshake and hands the connection to
// the pumps. A user reconnecting inside the grace window is put back
// in their table room and resynced with a fresh snapshot.
func (h *Handler) HandleWS(c *gin.Context) {
	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.SubjectID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), userID, conn, h)
	h.hub.add(client)
	sess := h.sessions.Connect(client.id, userID)

	logger.Log.Info("New WebSocket connection",
		zap.Int64("userID", userID),
		zap.String("connID", client.id),
	)

	if sess.TableID != "" {
		h.resync(client, sess.TableID)
	}

	client.run()
}

// resync rebinds a reconnected user to their table and pushes the
// authoritative snapshot plus their private hand.
func (h *Handler) resync(c *client, tableID string) {
	t, ok := h.game.Store().Table(tableID)
	if !ok {
		h.sessions.ClearSeat(c.id)
		return
	}
	h.hub.join(c, tableID)
	seat := -1
	for i, uid := range t.Seats {
		if uid == c.userID {
			seat = i
			break
		}
	}
	h.sessions.SetSeat(c.id, tableID, seat)

	if t.RoundID == "" {
		return
	}
	if view, err := h.game.Status(t.RoundID, c.userID); err == nil {
		c.enqueue(Outgoing{Event: "status", Code: 200, Data: view})
	}
	if hand, err := h.game.HandOf(t.RoundID, c.userID); err == nil {
		c.enqueue(Outgoing{Event: "my-card", Code: 200, Data: gin.H{"cards": hand}})
	}
}

func (h *Handler) onDisconnect(c *client) {
	h.hub.remove(c)
	h.sessions.Disconnect(c.id)
}

func (h *Handler) dispatch(c *client, env envelope) {
	if !h.sessions.Allow(c.id, env.Event) {
		// rate limit violations are dropped without an ack
		return
	}
	if h.sessions.Deduplicate(c.id, env.RequestID) {
		c.ack(env, response.OK(gin.H{"duplicate": true}))
		return
	}

	var ack response.Ack
	switch env.Event {
	case "get-table":
		ack = h.onGetTable(c, env)
	case "join-table":
		ack = h.onJoinTable(c, env)
	case "status":
		ack = h.onStatus(c)
	case "my-card":
		ack = h.onMyCard(c)
	case "get-card":
		ack = h.onDraw(c, game.DrawClosed)
	case "get-drop-card":
		ack = h.onDraw(c, game.DrawOpen)
	case "discardCard":
		ack = h.onDiscard(c, env)
	case "group-cards":
		ack = h.onGroupCards(c, env)
	case "pack-game":
		ack = h.onPack(c)
	case "declare":
		ack = h.onDeclare(c, env)
	case "leave-table":
		ack = h.onLeaveTable(c)
	default:
		ack = response.Fail(response.CodeBadRequest, "unknown event")
	}
	c.ack(env, ack)
}

func (c *client) ack(env envelope, ack response.Ack) {
	c.enqueue(Outgoing{
		Event:     env.Event,
		RequestID: env.RequestID,
		Code:      ack.Code,
		Message:   ack.Message,
		Data:      ack.Data,
	})
}

func (h *Handler) onGetTable(c *client, env envelope) response.Ack {
	var req struct {
		Token     string `json:"token"`
		BootValue int64  `json:"bootValue"`
		SeatCount int    `json:"seatCount"`
		Format    string `json:"format"`
	}
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return failFrom(appErr.ErrInvalidPayload)
	}
	if !h.validEventToken(c, req.Token) {
		return failFrom(appErr.ErrUnauthorized)
	}
	info, err := h.tables.GetTable(context.Background(), c.userID, req.BootValue, req.SeatCount, game.Format(req.Format))
	if err != nil {
		return failFrom(err)
	}
	return response.OK(info)
}

func (h *Handler) onJoinTable(c *client, env envelope) response.Ack {
	var req struct {
		Token   string `json:"token"`
		TableID string `json:"tableId"`
	}
	if err := json.Unmarshal(env.Data, &req); err != nil || req.TableID == "" {
		return failFrom(appErr.ErrInvalidPayload)
	}
	if !h.validEventToken(c, req.Token) {
		return failFrom(appErr.ErrUnauthorized)
	}
	info, err := h.tables.JoinTable(context.Background(), c.userID, req.TableID)
	if err != nil {
		return failFrom(err)
	}
	h.hub.join(c, info.TableID)
	h.sessions.SetSeat(c.id, info.TableID, info.Seat)
	return response.OK(info)
}

func (h *Handler) onStatus(c *client) response.Ack {
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	view, err := h.game.Status(roundID, c.userID)
	if err != nil {
		return failFrom(err)
	}
	return response.OK(view)
}

func (h *Handler) onMyCard(c *client) response.Ack {
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	hand, err := h.game.HandOf(roundID, c.userID)
	if err != nil {
		return failFrom(err)
	}
	return response.OK(gin.H{"cards": hand})
}

func (h *Handler) onDraw(c *client, from game.DrawSource) response.Ack {
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	var card game.Card
	if from == game.DrawClosed {
		card, err = h.game.DrawFromDeck(roundID, c.userID)
	} else {
		card, err = h.game.DrawFromDiscard(roundID, c.userID)
	}
	if err != nil {
		return failFrom(err)
	}
	return response.OK(gin.H{"card": card.Code()})
}

func (h *Handler) onDiscard(c *client, env envelope) response.Ack {
	var req struct {
		Card string `json:"card"`
	}
	if err := json.Unmarshal(env.Data, &req); err != nil || req.Card == "" {
		return failFrom(appErr.ErrInvalidPayload)
	}
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	if err := h.game.Discard(roundID, c.userID, req.Card); err != nil {
		return failFrom(err)
	}
	return response.OK(nil)
}

func (h *Handler) onGroupCards(c *client, env envelope) response.Ack {
	var req struct {
		Groups [][]string `json:"groups"`
	}
	if err := json.Unmarshal(env.Data, &req); err != nil || len(req.Groups) == 0 {
		return failFrom(appErr.ErrInvalidPayload)
	}
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	if err := h.game.GroupCards(roundID, c.userID, req.Groups); err != nil {
		return failFrom(err)
	}
	return response.OK(nil)
}

func (h *Handler) onPack(c *client) response.Ack {
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	if err := h.game.Pack(roundID, c.userID); err != nil {
		return failFrom(err)
	}
	return response.OK(nil)
}

func (h *Handler) onDeclare(c *client, env envelope) response.Ack {
	var req struct {
		Groups     [][]string `json:"groups"`
		FinishCard string     `json:"finishCard"`
	}
	if err := json.Unmarshal(env.Data, &req); err != nil || req.FinishCard == "" {
		return failFrom(appErr.ErrInvalidPayload)
	}
	roundID, err := h.roundOf(c.userID)
	if err != nil {
		return failFrom(err)
	}
	st, err := h.game.Declare(roundID, c.userID, req.Groups, req.FinishCard)
	if err != nil {
		return failFrom(err)
	}
	return response.OK(gin.H{
		"valid":    st.WinnerID == c.userID,
		"winnerId": st.WinnerID,
	})
}

func (h *Handler) onLeaveTable(c *client) response.Ack {
	sess, ok := h.sessions.Get(c.id)
	if !ok {
		return failFrom(appErr.ErrUnauthorized)
	}
	tableID := sess.TableID
	if err := h.tables.LeaveTable(context.Background(), c.userID); err != nil {
		return failFrom(err)
	}
	if tableID != "" {
		h.hub.leave(c, tableID)
	}
	h.sessions.ClearSeat(c.id)
	return response.OK(nil)
}

// validEventToken re-validates a token carried inside an event payload
// against the connection's user. The handshake already authenticated
// the socket, so an absent token passes; a present one must match.
func (h *Handler) validEventToken(c *client, token string) bool {
	if token == "" {
		return true
	}
	return h.auth.ValidateUserToken(c.userID, token)
}

func (h *Handler) roundOf(userID int64) (string, error) {
	t, _ := h.game.Store().TableOfUser(userID)
	if t == nil {
		return "", appErr.ErrTableNotFound
	}
	if t.RoundID == "" {
		return "", appErr.ErrRoundNotStarted
	}
	return t.RoundID, nil
}

func failFrom(err error) response.Ack {
	return response.Fail(codeFor(err), err.Error())
}

// codeFor maps engine sentinels onto the ack code registry.
func codeFor(err error) int {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized),
		errors.Is(err, appErr.ErrTableAccessDenied):
		return response.CodeUnauthorized
	case errors.Is(err, appErr.ErrInsufficientBalance):
		return response.CodeInsufficientFunds
	case errors.Is(err, appErr.ErrTableNotFound),
		errors.Is(err, appErr.ErrRoundNotFound),
		errors.Is(err, appErr.ErrHoldNotFound):
		return response.CodeNotFound
	case errors.Is(err, appErr.ErrAlreadySeated),
		errors.Is(err, appErr.ErrSeatProcessing),
		errors.Is(err, appErr.ErrTableFull),
		errors.Is(err, appErr.ErrRoundNotStarted),
		errors.Is(err, appErr.ErrNotYourTurn),
		errors.Is(err, appErr.ErrAlreadyDrawn),
		errors.Is(err, appErr.ErrMustDrawFirst),
		errors.Is(err, appErr.ErrAlreadyPacked),
		errors.Is(err, appErr.ErrOpenDrawCycle),
		errors.Is(err, appErr.ErrRoundSettled):
		return response.CodeConflict
	case errors.Is(err, appErr.ErrRateLimited):
		return response.CodeRateLimited
	case errors.Is(err, appErr.ErrInvalidPayload),
		errors.Is(err, appErr.ErrCardNotInHand),
		errors.Is(err, appErr.ErrIncompleteGroups),
		errors.Is(err, appErr.ErrBadPlayerCount),
		errors.Is(err, appErr.ErrDeckExhausted):
		return response.CodeBadRequest
	default:
		return response.CodeServerError
	}
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}
