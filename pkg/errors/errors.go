package errors

import "errors"

// Sentinel errors shared across services. Handlers map these to
// protocol response codes in pkg/response.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrSMSCodeExpired = errors.New("sms code expired")
	ErrInvalidSMSCode = errors.New("invalid sms code")
	ErrUserBanned     = errors.New("user banned")

	ErrTableNotFound     = errors.New("table not found")
	ErrTableFull         = errors.New("table full")
	ErrAlreadySeated     = errors.New("already seated at a table")
	ErrSeatProcessing    = errors.New("seat request already processing")
	ErrTableAccessDenied = errors.New("table access denied")

	ErrRoundNotFound    = errors.New("round not found")
	ErrRoundNotStarted  = errors.New("round not started")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyDrawn     = errors.New("already drawn this turn")
	ErrMustDrawFirst    = errors.New("must draw a card first")
	ErrAlreadyPacked    = errors.New("seat already packed")
	ErrCardNotInHand    = errors.New("card not in hand")
	ErrOpenDrawCycle    = errors.New("card drawn from open pile cannot finish this turn")
	ErrRoundSettled     = errors.New("round already settled")
	ErrDeckExhausted    = errors.New("draw pile exhausted")
	ErrBadPlayerCount   = errors.New("player count out of range")
	ErrIncompleteGroups = errors.New("groups do not cover the full hand")

	ErrHoldNotFound = errors.New("wallet hold not found")
	ErrRateLimited  = errors.New("rate limited")
)
