// Package sshx provides the remote command channel used to drive a
// freshly-booted instance: connection establishment with retry and
// failure classification, command execution, and keep-alive.
package sshx

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// ProgressFunc receives connection progress updates
type ProgressFunc func(step, message, status string)

// Dialer establishes the underlying SSH transport. Swappable in tests.
type Dialer func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

// ConnectOptions bounds the connection retry loop
type ConnectOptions struct {
	MaxWait       time.Duration
	RetryInterval time.Duration
	OnProgress    ProgressFunc
}

// CommandResult is the outcome of one remote command
type CommandResult struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the command exited zero
func (r CommandResult) Ok() bool { return r.ExitCode == 0 }

// Client wraps an SSH connection to a single remote host
type Client struct {
	host    string
	user    string
	keyFile string

	dial              Dialer
	sleep             func(time.Duration)
	keepAliveInterval time.Duration

	conn     *ssh.Client
	stopKeep chan struct{}
}

// NewClient creates an unconnected client for host. keyFile may be
// empty when the ssh-agent or default keys should be used.
func NewClient(host, user, keyFile string) *Client {
	return &Client{
		host:              host,
		user:              user,
		keyFile:           keyFile,
		dial:              ssh.Dial,
		sleep:             time.Sleep,
		keepAliveInterval: 30 * time.Second,
	}
}

func (c *Client) clientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            c.user,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         20 * time.Second,
	}

	if c.keyFile != "" {
		key, err := os.ReadFile(c.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", c.keyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		cfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	}

	return cfg, nil
}

// Connect establishes the SSH connection, retrying once per
// RetryInterval until MaxWait elapses. Every failed attempt is
// classified and reported via OnProgress. Authentication failures are
// terminal and returned immediately. A fresh transport is dialed on
// every attempt; a client object that failed once is never reused.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	maxAttempts := int(opts.MaxWait / opts.RetryInterval)
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	report := opts.OnProgress
	if report == nil {
		report = func(string, string, string) {}
	}

	cfg, err := c.clientConfig()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(c.host, "22")
	report("SSH Connection", "Waiting for SSH to become available (cloud-init may be running)...", "in_progress")

	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial("tcp", addr, cfg)
		if err == nil {
			c.conn = conn
			c.startKeepAlive(conn)
			msg := fmt.Sprintf("SSH connection established after %ds (%d attempts)",
				int(time.Since(start).Seconds()), attempt)
			log.Printf("✅ %s: %s", c.host, msg)
			report("SSH Connection", msg, "success")
			return nil
		}

		if isAuthFailure(err) {
			// sshd answered, credentials are wrong. Retrying cannot help.
			report("SSH Connection", fmt.Sprintf("SSH authentication failed: %v", err), "error")
			return &AuthError{Host: c.host, Err: err}
		}

		kind := classifyDialError(err)
		report("SSH Connection",
			fmt.Sprintf("SSH not ready (%s), retrying %d/%d...", kind, attempt, maxAttempts),
			"in_progress")

		if attempt < maxAttempts {
			c.sleep(opts.RetryInterval)
		}
	}

	timeoutErr := &TimeoutError{Host: c.host, Waited: opts.MaxWait, Attempts: maxAttempts}
	report("SSH Connection", timeoutErr.Error(), "error")
	return timeoutErr
}

// requestSender is the slice of the SSH connection the keep-alive
// loop needs. *ssh.Client satisfies it.
type requestSender interface {
	SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error)
}

// startKeepAlive pings the server periodically so NAT and firewall
// state does not expire mid-deployment. The goroutine works on the
// connection it was started with; Close clearing c.conn cannot race it.
func (c *Client) startKeepAlive(conn requestSender) {
	if c.keepAliveInterval <= 0 {
		return
	}
	c.stopKeep = make(chan struct{})
	stop := c.stopKeep
	go func() {
		ticker := time.NewTicker(c.keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, _, err := conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// Run executes one command on the remote host. A non-zero exit is
// returned as data in the CommandResult, not as an error; errors are
// reserved for channel-level failures and timeouts.
func (c *Client) Run(ctx context.Context, command string, timeout time.Duration) (CommandResult, error) {
	if c.conn == nil {
		return CommandResult{}, fmt.Errorf("ssh client not connected")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return CommandResult{}, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err = <-done:
	case <-time.After(timeout):
		session.Close()
		return CommandResult{Command: command}, fmt.Errorf("command timed out after %s: %s", timeout, command)
	case <-ctx.Done():
		session.Close()
		return CommandResult{Command: command}, ctx.Err()
	}

	result := CommandResult{
		Command: command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("command failed on channel level: %w", err)
	}

	return result, nil
}

// RunSequence executes commands in order. When stopOnError is set,
// execution stops at the first non-zero exit; the partial results are
// always returned so the caller can report exactly which command failed.
func (c *Client) RunSequence(ctx context.Context, commands []string, stopOnError bool) ([]CommandResult, error) {
	results := make([]CommandResult, 0, len(commands))

	for _, cmd := range commands {
		result, err := c.Run(ctx, cmd, 0)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if stopOnError && !result.Ok() {
			log.Printf("Command failed, stopping sequence: %s", cmd)
			break
		}
	}

	return results, nil
}

// Host returns the remote host this client talks to
func (c *Client) Host() string { return c.host }

// Close shuts down the keep-alive loop and the connection
func (c *Client) Close() error {
	if c.stopKeep != nil {
		close(c.stopKeep)
		c.stopKeep = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
