package sshx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newTestClient(dial Dialer) *Client {
	c := NewClient("203.0.113.10", "ubuntu", "")
	c.dial = dial
	c.sleep = func(time.Duration) {}
	c.keepAliveInterval = 0 // no live transport in tests
	return c
}

func TestConnectTimeoutIssuesExactAttemptCount(t *testing.T) {
	attempts := 0
	c := newTestClient(func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		attempts++
		return nil, fmt.Errorf("dial tcp %s: connect: connection refused", addr)
	})

	var reported []string
	err := c.Connect(context.Background(), ConnectOptions{
		MaxWait:       300 * time.Second,
		RetryInterval: 5 * time.Second,
		OnProgress: func(step, message, status string) {
			reported = append(reported, status)
		},
	})

	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 60, attempts)
	assert.Equal(t, 60, timeoutErr.Attempts)
	// one initial, one per failed attempt, one final error
	assert.Len(t, reported, 62)
	assert.Equal(t, "error", reported[len(reported)-1])
}

func TestConnectAuthFailureIsTerminal(t *testing.T) {
	attempts := 0
	slept := 0
	c := newTestClient(func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		attempts++
		return nil, errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [publickey]")
	})
	c.sleep = func(time.Duration) { slept++ }

	err := c.Connect(context.Background(), ConnectOptions{
		MaxWait:       300 * time.Second,
		RetryInterval: 5 * time.Second,
	})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, attempts, "auth failures must never be retried")
	assert.Equal(t, 0, slept)
}

func TestConnectSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	c := newTestClient(func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("dial tcp: connect: connection refused")
		}
		return &ssh.Client{}, nil
	})

	var statuses []string
	err := c.Connect(context.Background(), ConnectOptions{
		MaxWait:       60 * time.Second,
		RetryInterval: 5 * time.Second,
		OnProgress: func(step, message, status string) {
			statuses = append(statuses, status)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "success", statuses[len(statuses)-1])
}

func TestConnectHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		cancel()
		return nil, errors.New("dial tcp: connect: connection refused")
	})

	err := c.Connect(ctx, ConnectOptions{MaxWait: 60 * time.Second, RetryInterval: 5 * time.Second})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRequiresConnection(t *testing.T) {
	c := NewClient("203.0.113.10", "ubuntu", "")
	_, err := c.Run(context.Background(), "true", time.Second)
	require.Error(t, err)
}

func TestClassifyDialError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, "DNS resolution failed"},
		{"refused errno", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "connection refused"},
		{"refused text", errors.New("dial tcp 1.2.3.4:22: connect: connection refused"), "connection refused"},
		{"unreachable", &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, "network unreachable"},
		{"timeout text", errors.New("dial tcp 1.2.3.4:22: i/o timed out"), "connection timeout"},
		{"unknown", errors.New("ssh: handshake failed: EOF"), "SSH not ready"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyDialError(tc.err))
		})
	}
}

type countingSender struct {
	calls chan struct{}
}

func (s *countingSender) SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return true, nil, nil
}

func TestKeepAlivePingsCapturedConnection(t *testing.T) {
	c := NewClient("203.0.113.10", "ubuntu", "")
	c.keepAliveInterval = time.Millisecond

	sender := &countingSender{calls: make(chan struct{}, 16)}
	c.startKeepAlive(sender)

	// The loop must keep pinging the connection it was started with,
	// even after the client field is cleared.
	c.conn = nil

	for i := 0; i < 3; i++ {
		select {
		case <-sender.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("keep-alive stopped pinging")
		}
	}

	require.NoError(t, c.Close())
}

func TestCommandResultOk(t *testing.T) {
	assert.True(t, CommandResult{ExitCode: 0}.Ok())
	assert.False(t, CommandResult{ExitCode: 2}.Ok())
}
