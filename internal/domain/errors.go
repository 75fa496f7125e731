package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrSequenceGap  = errors.New("sequence gap")
	ErrStaleDelta   = errors.New("stale delta")
	ErrUngroupable  = errors.New("markets cannot be grouped into a complete outcome set")
	ErrRateLimited  = errors.New("rate limited")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrClosed       = errors.New("subscription closed")
)
