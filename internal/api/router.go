package api

import (
	"errors"
	"net/http"

	"rummy-service/internal/middleware"
	"rummy-service/internal/service"
	"rummy-service/internal/ws"
	appErr "rummy-service/pkg/errors"
	"rummy-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Hub, services.Sessions, services.Auth, services.Table, services.Game)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/rummyService/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/sms/send", handler.SendSMSCode)
			authGroup.POST("/sms/login", handler.SMSLogin)
		}

		protected := v1.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/wallet", handler.GetWallet)
		}
	}

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/auth/login", handler.AdminLogin)

		protected := adminGroup.Group("/")
		protected.Use(middleware.AdminAuthRequired())
		{
			protected.POST("/tables/:tableId/bots", handler.AdminAddBot)
			protected.PUT("/tables/:tableId/deals", handler.AdminSetDeals)
			protected.PUT("/tables/:tableId/pool", handler.AdminSetPoolScore)
			protected.GET("/rounds/:roundId", handler.AdminRoundInfo)
			protected.POST("/rounds/:roundId/force-declare", handler.AdminForceDeclare)
		}
	}

	r.GET("/ws", wsHandler.HandleWS)
}

type smsSendBody struct {
	Phone string `json:"phone" binding:"required"`
}

type smsLoginBody struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forceDeclareBody struct {
	UserID int64 `json:"userId" binding:"required"`
}

type setDealsBody struct {
	Remaining *int `json:"remaining" binding:"required"`
}

type setPoolScoreBody struct {
	UserID int64 `json:"userId" binding:"required"`
	Score  *int  `json:"score" binding:"required"`
}

func (h *Handler) SendSMSCode(c *gin.Context) {
	var body smsSendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.services.Auth.SendSMS(c.Request.Context(), body.Phone); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	response.JSON(c, http.StatusOK, gin.H{}, "code sent")
}

func (h *Handler) SMSLogin(c *gin.Context) {
	var body smsLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.Login(c.Request.Context(), body.Phone, body.Code)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrInvalidPhone), errors.Is(err, appErr.ErrInvalidSMSCode):
			status = http.StatusBadRequest
		case errors.Is(err, appErr.ErrSMSCodeExpired):
			status = http.StatusGone
		case errors.Is(err, appErr.ErrUserBanned):
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.services.Wallet.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"wallet": wallet})
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Admin.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) AdminAddBot(c *gin.Context) {
	tableID := c.Param("tableId")
	if tableID == "" {
		response.Error(c, http.StatusBadRequest, "invalid table id")
		return
	}
	botID, seat, err := h.services.Admin.AddBot(c.Request.Context(), tableID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"botId": botID, "seat": seat})
}

func (h *Handler) AdminSetDeals(c *gin.Context) {
	var body setDealsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.services.Admin.SetDealsRemaining(c.Param("tableId"), *body.Remaining); err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"remaining": *body.Remaining})
}

func (h *Handler) AdminSetPoolScore(c *gin.Context) {
	var body setPoolScoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.services.Admin.SetPoolScore(c.Param("tableId"), body.UserID, *body.Score); err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"userId": body.UserID, "score": *body.Score})
}

func (h *Handler) AdminRoundInfo(c *gin.Context) {
	dump, err := h.services.Admin.RoundInfo(c.Param("roundId"))
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, dump)
}

func (h *Handler) AdminForceDeclare(c *gin.Context) {
	var body forceDeclareBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.services.Admin.ForceDeclare(c.Param("roundId"), body.UserID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, st)
}

func (h *Handler) handleEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrTableNotFound), errors.Is(err, appErr.ErrRoundNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrRoundNotStarted), errors.Is(err, appErr.ErrAlreadyPacked),
		errors.Is(err, appErr.ErrTableFull), errors.Is(err, appErr.ErrRoundSettled):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrUnauthorized), errors.Is(err, appErr.ErrInvalidPayload):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
