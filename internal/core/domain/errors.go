package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrActionNotFound    = errors.New("control action not found")
	ErrShareNotFound     = errors.New("screen share not found")
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrNotSessionOwner   = errors.New("user does not own this session")
)
