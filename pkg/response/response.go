package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Protocol response codes. The same registry is used for HTTP bodies
// and for websocket event acks.
const (
	CodeOK                = 200
	CodeBadRequest        = 400
	CodeUnauthorized      = 401
	CodeInsufficientFunds = 402
	CodeNotFound          = 404
	CodeConflict          = 409
	CodeRateLimited       = 429
	CodeServerError       = 500
)

type Body struct {
	Code int         `json:"code"`
	Data interface{} `json:"data"`
	Msg  string      `json:"msg"`
}

// Ack is the envelope returned for every inbound websocket event.
type Ack struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(data interface{}) Ack {
	return Ack{Code: CodeOK, Message: "success", Data: data}
}

func Fail(code int, message string) Ack {
	return Ack{Code: code, Message: message}
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func Error(c *gin.Context, status int, msg string) {
	JSON(c, status, gin.H{}, msg)
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{
		Code: status,
		Data: data,
		Msg:  msg,
	})
}
