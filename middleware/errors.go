package middleware

import "errors"

// Sentinel causes wrapped by this package's middleware into *pk.DispatchError.
var (
	ErrRateLimitExceeded = errors.New("middleware: rate limit exceeded")
	ErrUnauthenticated    = errors.New("middleware: missing or invalid credentials")
	ErrCacheBackend       = errors.New("middleware: cache backend error")
	ErrCompression        = errors.New("middleware: compression failed")
	ErrDecompression      = errors.New("middleware: decompression failed")
	ErrEncryption         = errors.New("middleware: encryption failed")
	ErrDecryption         = errors.New("middleware: decryption failed")
)
