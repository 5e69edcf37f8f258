package dronectl

import (
	"context"
	"fmt"
	"strings"
)

// Launcher issues a single detached start of the receiver init script.
// Start returns as soon as the remote shell accepts the command; the
// receiver stack may take arbitrarily long to initialize the radio, and
// the controller never holds a session open waiting for it.
type Launcher struct {
	dialer     Dialer
	entrypoint string
}

// LauncherOption configures a Launcher
type LauncherOption func(*Launcher)

// WithEntrypoint sets the init script invoked with the start argument
func WithEntrypoint(entrypoint string) LauncherOption {
	return func(l *Launcher) {
		if entrypoint != "" {
			l.entrypoint = entrypoint
		}
	}
}

// NewLauncher creates a Launcher over the given channel dialer.
func NewLauncher(dialer Dialer, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		dialer:     dialer,
		entrypoint: DefaultEntrypoint,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start dispatches "entrypoint start" on the remote host, detached from
// the session, and returns once the shell accepts it. Exactly one attempt:
// retrying a start that actually succeeded but acknowledged late would
// double-launch the stack. There is no readiness confirmation by design.
func (l *Launcher) Start(ctx context.Context) error {
	if l.entrypoint == "" {
		return ErrNoEntrypoint
	}

	sess, err := l.dialer.Connect(ctx)
	if err != nil {
		return wrapConnect(err)
	}
	defer func() { _ = sess.Close() }()

	// nohup plus redirected fds lets the remote shell return immediately
	// while the entrypoint keeps running after the session closes.
	cmd := fmt.Sprintf("nohup %s start >/dev/null 2>&1 &", shellQuote(l.entrypoint))

	res, err := sess.Exec(ctx, cmd)
	if err != nil {
		return &TransportError{Op: OpStart, Host: sess.Host(), Err: err}
	}
	if res.ExitStatus != 0 {
		return &TransportError{
			Op:   OpStart,
			Host: sess.Host(),
			Err:  fmt.Errorf("dispatch exited %d: %s", res.ExitStatus, strings.TrimSpace(res.Stderr)),
		}
	}

	return nil
}
