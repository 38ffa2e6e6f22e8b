package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes domain errors. Codes are stable so outer layers
// can map each condition to its own message or status.
type ErrorCode string

const (
	// CodeInvalidContent indicates a malformed post draft or command argument.
	CodeInvalidContent ErrorCode = "INVALID_CONTENT"

	// CodeNotFound indicates a post, battle or saved post id did not resolve.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyInBattle indicates the original post already has a battle.
	CodeAlreadyInBattle ErrorCode = "ALREADY_IN_BATTLE"

	// CodeBattleClosed indicates a vote on an inactive or expired battle.
	CodeBattleClosed ErrorCode = "BATTLE_CLOSED"

	// CodeQuotaExceeded indicates a rewind save was denied by the monthly quota.
	CodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// CodeInvalidState indicates a corrupt cross-reference. Reconciliation
	// logs these rather than returning them.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeAlreadyVoted indicates a repeat vote when one-vote-per-user is on.
	CodeAlreadyVoted ErrorCode = "ALREADY_VOTED"

	// CodeAlreadySaved indicates the post was already rewound this month.
	CodeAlreadySaved ErrorCode = "ALREADY_SAVED"
)

// Error is a recoverable domain failure returned to the caller.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the post, battle or saved-post id involved, if any.
	ID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, model.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidContent  = &Error{Code: CodeInvalidContent, Message: "invalid content"}
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyInBattle = &Error{Code: CodeAlreadyInBattle, Message: "post already in battle"}
	ErrBattleClosed    = &Error{Code: CodeBattleClosed, Message: "battle closed"}
	ErrQuotaExceeded   = &Error{Code: CodeQuotaExceeded, Message: "monthly rewind quota exceeded"}
	ErrInvalidState    = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrAlreadyVoted    = &Error{Code: CodeAlreadyVoted, Message: "already voted"}
	ErrAlreadySaved    = &Error{Code: CodeAlreadySaved, Message: "already saved this month"}
)

// NewInvalidContent creates an INVALID_CONTENT error.
func NewInvalidContent(message string) *Error {
	return &Error{Code: CodeInvalidContent, Message: message}
}

// NewNotFound creates a NOT_FOUND error for the given kind ("post", "battle", ...).
func NewNotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: kind + " not found", ID: id}
}

// NewAlreadyInBattle creates an ALREADY_IN_BATTLE error.
func NewAlreadyInBattle(postID, battleID string) *Error {
	return &Error{
		Code:    CodeAlreadyInBattle,
		Message: "post is already in battle " + battleID,
		ID:      postID,
	}
}

// NewBattleClosed creates a BATTLE_CLOSED error.
func NewBattleClosed(battleID string) *Error {
	return &Error{Code: CodeBattleClosed, Message: "battle is no longer accepting votes", ID: battleID}
}

// NewQuotaExceeded creates a QUOTA_EXCEEDED error.
func NewQuotaExceeded(used, max int) *Error {
	return &Error{
		Code:    CodeQuotaExceeded,
		Message: fmt.Sprintf("monthly rewind quota exhausted (%d/%d)", used, max),
	}
}

// NewInvalidState creates an INVALID_STATE error.
func NewInvalidState(message, id string) *Error {
	return &Error{Code: CodeInvalidState, Message: message, ID: id}
}

// NewAlreadyVoted creates an ALREADY_VOTED error.
func NewAlreadyVoted(battleID string) *Error {
	return &Error{Code: CodeAlreadyVoted, Message: "user has already voted in this battle", ID: battleID}
}

// NewAlreadySaved creates an ALREADY_SAVED error.
func NewAlreadySaved(postID string) *Error {
	return &Error{Code: CodeAlreadySaved, Message: "post already rewound this month", ID: postID}
}

// CodeOf extracts the ErrorCode from err. Returns "" for non-domain errors.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDomainError reports whether err is (or wraps) a domain *Error.
func IsDomainError(err error) bool {
	return CodeOf(err) != ""
}
