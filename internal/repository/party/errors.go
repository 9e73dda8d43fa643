package party

import "errors"

var (
	ErrPartyNotFound      = errors.New("party not found")
	ErrCodeSpaceExhausted = errors.New("failed to generate unique party code")
)
