package domain

import "errors"

var (
	ErrNotMember    = errors.New("not a party member")
	ErrNotHost      = errors.New("not the party host")
	ErrEmptyMessage = errors.New("message is empty")
	ErrInvalidTime  = errors.New("playback position must be a finite non-negative number")
)
