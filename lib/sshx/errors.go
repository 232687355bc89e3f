package sshx

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// AuthError means the remote sshd is reachable but rejected our
// credentials. It is terminal: retrying cannot help.
type AuthError struct {
	Host string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ssh authentication failed for %s: %v", e.Host, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TimeoutError means the host never accepted a connection within the
// allowed window.
type TimeoutError struct {
	Host     string
	Waited   time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ssh not available on %s after %s (%d attempts); check security groups and instance logs",
		e.Host, e.Waited, e.Attempts)
}

// CommandError carries the outcome of a remote command that exited
// non-zero. It is data, not a channel fault: callers decide what a
// failed command means for them.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Command)
}

// isAuthFailure reports whether a dial error was an authentication
// rejection rather than a transport problem
func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied")
}

// classifyDialError turns a raw dial error into a short operator-facing
// description of why the host is not ready yet
func classifyDialError(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS resolution failed"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connection timeout"
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection refused"
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return "network unreachable"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out"):
		return "connection timeout"
	case strings.Contains(msg, "refused"):
		return "connection refused"
	case strings.Contains(msg, "unreachable"):
		return "network unreachable"
	}
	return "SSH not ready"
}
