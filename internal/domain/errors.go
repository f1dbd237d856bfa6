package domain

import "errors"

// Error kinds
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
)

// Domain errors
var (
	ErrInvalidSortStrategy = kindError(ErrInvalidArgument, "unknown sort strategy")
	ErrInvalidVoteType     = kindError(ErrInvalidArgument, "vote type must be up or down")
	ErrInvalidUsername     = kindError(ErrInvalidArgument, "username must be 3-20 letters, numbers or underscores")
	ErrInvalidID           = kindError(ErrInvalidArgument, "malformed id")
	ErrInvalidRequest      = kindError(ErrInvalidArgument, "invalid request")
	ErrEmptyContent        = kindError(ErrInvalidArgument, "content is required")
	ErrMissingUser         = kindError(ErrInvalidArgument, "missing or malformed X-User-ID")
	ErrFieldTooLong        = kindError(ErrInvalidArgument, "field too long")
	ErrEmptyUpdate         = kindError(ErrInvalidArgument, "no fields to update")
	ErrInvalidCategory     = kindError(ErrInvalidArgument, "invalid category")

	ErrPostNotFound    = kindError(ErrNotFound, "post not found")
	ErrProfileNotFound = kindError(ErrNotFound, "profile not found")
	ErrCommentNotFound = kindError(ErrNotFound, "parent comment not found")
	ErrNotMember       = kindError(ErrNotFound, "not a member of this community")
	ErrFeedNotCached   = errors.New("feed not cached")

	ErrUsernameTaken   = kindError(ErrConflict, "username already taken")
	ErrProfileExists   = kindError(ErrConflict, "profile already exists")
	ErrAlreadyMember   = kindError(ErrConflict, "already a member of this community")
	ErrNotPostOwner    = kindError(ErrForbidden, "only the author can change a post")
	ErrNotProfileOwner = kindError(ErrForbidden, "profiles can only be edited by their owner")

	ErrInternalError = errors.New("internal server error")
)

// kindedError carries a message and the kind sentinel it belongs to.
type kindedError struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &kindedError{kind: kind, msg: msg}
}

func (e *kindedError) Error() string { return e.msg }

func (e *kindedError) Unwrap() error { return e.kind }

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArgument checks if an error was caused by bad caller input
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
