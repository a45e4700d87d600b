package gameerrors

import "errors"

// Code is the stable, wire-visible identifier of an error kind.
type Code string

const (
	CodeAuthenticationRequired      Code = "AUTHENTICATION_REQUIRED"
	CodeRoomNotFound                Code = "ROOM_NOT_FOUND"
	CodeRoomFull                    Code = "ROOM_FULL"
	CodeRoomNotWaiting              Code = "ROOM_NOT_WAITING"
	CodeAlreadyInRoom               Code = "ALREADY_IN_ROOM"
	CodeNotInRoom                   Code = "NOT_IN_ROOM"
	CodeNotYourTurn                 Code = "NOT_YOUR_TURN"
	CodeWrongPhase                  Code = "WRONG_PHASE"
	CodeInvalidHand                 Code = "INVALID_HAND"
	CodeHandDoesNotBeatLastPlay     Code = "HAND_DOES_NOT_BEAT_LAST_PLAY"
	CodeCannotPass                  Code = "CANNOT_PASS"
	CodeInsufficientOrUnreadyPlayer Code = "INSUFFICIENT_OR_UNREADY_PLAYERS"
	CodeGameAlreadyInProgress       Code = "GAME_ALREADY_IN_PROGRESS"
	CodeGameNotFound                Code = "GAME_NOT_FOUND"
	CodeInvalidBid                  Code = "INVALID_BID"
	CodeCardsNotInHand              Code = "CARDS_NOT_IN_HAND"
	CodeInvalidRoomSettings         Code = "INVALID_ROOM_SETTINGS"
	CodeInvalidMessage              Code = "INVALID_MESSAGE"
	CodeUnknownAction               Code = "UNKNOWN_ACTION"
	CodeSessionSuperseded           Code = "SESSION_SUPERSEDED"
	CodeInternal                    Code = "INTERNAL"
)

// Error is a validation or protocol failure reported to the acting client.
// Two Errors match under errors.Is when their codes are equal, so a
// specialised message still matches the sentinel of its kind.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New returns an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Sentinel errors shared by the room, game, ws and api packages.
var (
	ErrAuthenticationRequired   = New(CodeAuthenticationRequired, "authentication required")
	ErrRoomNotFound             = New(CodeRoomNotFound, "room not found")
	ErrRoomFull                 = New(CodeRoomFull, "room is full")
	ErrRoomNotWaiting           = New(CodeRoomNotWaiting, "room is not waiting for players")
	ErrAlreadyInRoom            = New(CodeAlreadyInRoom, "already a member of another room")
	ErrNotInRoom                = New(CodeNotInRoom, "not a member of this room")
	ErrNotYourTurn              = New(CodeNotYourTurn, "it is not your turn")
	ErrWrongPhase               = New(CodeWrongPhase, "action not allowed in the current phase")
	ErrInvalidHand              = New(CodeInvalidHand, "cards do not form a valid hand")
	ErrHandDoesNotBeatLastPlay  = New(CodeHandDoesNotBeatLastPlay, "hand does not beat the last play")
	ErrCannotPass               = New(CodeCannotPass, "you cannot pass now")
	ErrInsufficientOrUnready    = New(CodeInsufficientOrUnreadyPlayer, "exactly three ready players are required")
	ErrGameAlreadyInProgress    = New(CodeGameAlreadyInProgress, "game already in progress")
	ErrGameNotFound             = New(CodeGameNotFound, "game not found")
	ErrInvalidBid               = New(CodeInvalidBid, "bid must be between 0 and 3")
	ErrCardsNotInHand           = New(CodeCardsNotInHand, "cards are not in your hand")
	ErrInvalidRoomSettings      = New(CodeInvalidRoomSettings, "invalid room settings")
	ErrInvalidMessage           = New(CodeInvalidMessage, "invalid message")
	ErrUnknownAction            = New(CodeUnknownAction, "unknown action")
	ErrSessionSuperseded        = New(CodeSessionSuperseded, "connection replaced by a newer session")
	ErrInternal                 = New(CodeInternal, "internal server error")
)

// CodeOf returns the code carried by err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Public returns the message safe to show a client. Errors that are not an
// *Error are infrastructure failures and are replaced by a generic message.
func Public(err error) (Code, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return CodeInternal, ErrInternal.Message
}
