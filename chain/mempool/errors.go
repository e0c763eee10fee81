package mempool

import "errors"

var (
	errEmptyBaseURL     = errors.New("mempool: base URL must not be empty")
	errInvalidRateLimit = errors.New("mempool: rate limit must be positive")
)
