package transport

import "errors"

var (
	ErrMissingSessionID   = errors.New("session identifier is required")
	ErrConnectTimeout     = errors.New("connection timeout")
	ErrReconnectExhausted = errors.New("connection lost, reconnect attempts exhausted")
)
