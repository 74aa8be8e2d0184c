package retry

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// isTransientNetworkError checks for network-level failures worth retrying:
// timeouts, connection resets, refused connections, and temporary DNS
// failures.
func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && isTransientNetworkError(urlErr.Err) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ETIMEDOUT:
			return true
		}
	}

	// Last resort: message patterns from SDKs that wrap their transport
	// errors in plain strings.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"bad gateway",
		"gateway timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
