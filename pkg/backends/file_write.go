package backends

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Retry policy for transient write failures.
const (
	maxWriteRetries = 8
	writeRetryDelay = time.Millisecond
)

// writeFull writes all of p. Short writes continue with the remainder;
// EINTR and EAGAIN are retried a bounded number of times. Any other error
// is returned immediately.
func (a *AsyncFile) writeFull(p []byte) error {
	retries := 0
	for len(p) > 0 {
		n, err := a.write(a.fd, p)
		if n > 0 {
			p = p[n:]
		}
		if err == nil {
			if n <= 0 {
				if retries >= maxWriteRetries {
					return errors.Wrap(io.ErrShortWrite, "write log file")
				}
				retries++
			}
			continue
		}
		if !isRetryableWriteError(err) || retries >= maxWriteRetries {
			return errors.Wrap(err, "write log file")
		}
		retries++
		if errors.Is(err, unix.EAGAIN) {
			time.Sleep(writeRetryDelay)
		}
	}
	return nil
}

func isRetryableWriteError(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

// isDiskFullError checks if an error indicates disk is full
func isDiskFullError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EDQUOT) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full")
}
