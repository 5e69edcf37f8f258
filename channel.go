package dronectl

import (
	"context"
	"io/fs"
)

// Dialer establishes a remote execution session. Implementations own the
// transport mechanics (authentication, host keys); the controller only
// needs the resulting Session.
type Dialer interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is a single established channel to the remote host. A Session is
// not safe for concurrent use; the controller issues one operation at a
// time and closes the session on every exit path.
type Session interface {
	// Exec runs a command line on the remote host and blocks until the
	// remote shell returns. A non-zero remote exit status is reported in
	// ExecResult, not as an error; the error return covers dispatch
	// failures only.
	Exec(ctx context.Context, command string) (ExecResult, error)

	// Upload places payload at remotePath with the given mode.
	Upload(ctx context.Context, payload []byte, remotePath string, mode fs.FileMode) error

	// Host identifies the remote peer for reporting.
	Host() string

	// Close releases the session and its underlying connection.
	Close() error
}

// ExecResult captures the output of a completed remote command.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}
