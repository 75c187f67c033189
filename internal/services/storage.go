package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// withStorage runs a storage-port call under a bounded timeout with at most
// one retry on transient failure. Persistent failure comes back to the caller
// as-is for wrapping into a StorageError; never loop.
func withStorage(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	attempt := func() error {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(cctx)
	}

	err := attempt()
	if err == nil || !isTransient(err) {
		return err
	}
	// Give the connection pool a beat before the single retry.
	time.Sleep(50 * time.Millisecond)
	return attempt()
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}
