package store

import "errors"

var (
	ErrCenterNotFound  = errors.New("center not found")
	ErrCounterNotFound = errors.New("counter not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrPhoneExists     = errors.New("phone already registered")
	ErrAlreadyQueued   = errors.New("user already queued at counter")
	ErrEmptyQueue      = errors.New("queue is empty")
)
