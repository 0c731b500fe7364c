package session

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrSessionEnded      = errors.New("session ended")
)
