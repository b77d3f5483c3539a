package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownSource   = errors.New("unknown data source")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrStaleSymbol     = errors.New("symbol is no longer selected")
	ErrRateUnavailable = errors.New("quote conversion rate unavailable")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrReplayClosed    = errors.New("replay engine closed")
	ErrRetriesExceeded = errors.New("history fetch retries exceeded")
	ErrLockHeld        = errors.New("lock already held")
)
