package dronectl

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SSHDialer connects to the receiver host over SSH with password
// authentication. The zero host key callback accepts any host key: the
// receiver lives on a closed SDR network with no known_hosts provisioning.
// Deployments that do provision host keys should use WithHostKeyCallback.
type SSHDialer struct {
	// Host is the remote address
	Host string

	// Port is the SSH port
	Port int

	// User is the remote account
	User string

	// Secret is the authentication material; it is never logged
	Secret string

	// DialTimeout bounds TCP connect and SSH handshake
	DialTimeout time.Duration

	// HostKeyCallback verifies the remote host key
	HostKeyCallback ssh.HostKeyCallback
}

// SSHOption configures an SSHDialer
type SSHOption func(*SSHDialer)

// WithPort sets the SSH port
func WithPort(port int) SSHOption {
	return func(d *SSHDialer) {
		d.Port = port
	}
}

// WithDialTimeout sets the timeout for TCP connect and SSH handshake
func WithDialTimeout(timeout time.Duration) SSHOption {
	return func(d *SSHDialer) {
		d.DialTimeout = timeout
	}
}

// WithHostKeyCallback sets the host key verification callback
func WithHostKeyCallback(cb ssh.HostKeyCallback) SSHOption {
	return func(d *SSHDialer) {
		d.HostKeyCallback = cb
	}
}

// NewSSHDialer creates a dialer for the given host and credentials with
// default port, timeout, and host key handling, then applies options.
func NewSSHDialer(host, user, secret string, opts ...SSHOption) *SSHDialer {
	d := &SSHDialer{
		Host:            host,
		Port:            DefaultPort,
		User:            user,
		Secret:          secret,
		DialTimeout:     DefaultDialTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // closed network default, overridable
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Connect establishes the SSH session. The context cancels the TCP dial;
// the handshake is bounded by DialTimeout.
func (d *SSHDialer) Connect(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))

	conn, err := (&net.Dialer{Timeout: d.DialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: OpConnect, Host: d.Host, Err: err}
	}

	conf := &ssh.ClientConfig{
		User:            d.User,
		Auth:            []ssh.AuthMethod{ssh.Password(d.Secret)},
		HostKeyCallback: d.HostKeyCallback,
		Timeout:         d.DialTimeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, conf)
	if err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: OpConnect, Host: d.Host, Err: err}
	}

	return &sshSession{host: d.Host, client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// sshSession implements Session over an established *ssh.Client.
type sshSession struct {
	host   string
	client *ssh.Client
}

// Exec runs command on the remote host and waits for the remote shell to
// return. A remote non-zero exit status is data in ExecResult; only
// dispatch failures become errors. Cancelling the context tears the
// channel down and abandons the command.
func (s *sshSession) Exec(ctx context.Context, command string) (ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return ExecResult{}, err
	}

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return ExecResult{}, ctx.Err()
	case err := <-done:
		_ = sess.Close()

		res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}

		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitStatus = exitErr.ExitStatus()
			return res, nil
		}
		if err != nil {
			return ExecResult{}, err
		}
		return res, nil
	}
}

// Upload writes payload to remotePath over SFTP and applies mode.
func (s *sshSession) Upload(ctx context.Context, payload []byte, remotePath string, mode fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cl, err := sftp.NewClient(s.client)
	if err != nil {
		return err
	}
	defer func() { _ = cl.Close() }()

	f, err := cl.Create(remotePath)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return cl.Chmod(remotePath, mode)
}

// Host identifies the remote peer for reporting.
func (s *sshSession) Host() string {
	return s.host
}

// Close releases the underlying SSH connection.
func (s *sshSession) Close() error {
	return s.client.Close()
}
