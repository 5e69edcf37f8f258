package dronectl

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Reaper discovers and forcibly terminates remote processes whose command
// lines contain known patterns. One Stop call is one remote batch:
// enumerate, match, kill the deduplicated union, re-enumerate. Running
// Stop against an already-stopped service is success, and running it
// twice is always safe.
type Reaper struct {
	dialer     Dialer
	remoteDir  string
	reportPath string

	// now stamps the per-call remote script name
	now func() time.Time
}

// ReaperOption configures a Reaper
type ReaperOption func(*Reaper)

// WithRemoteDir sets the remote scratch directory for the reap routine
func WithRemoteDir(dir string) ReaperOption {
	return func(r *Reaper) {
		if dir != "" {
			r.remoteDir = dir
		}
	}
}

// WithReportPath makes Stop also write the rendered report to a local
// file, atomically, after a successful run
func WithReportPath(path string) ReaperOption {
	return func(r *Reaper) {
		r.reportPath = path
	}
}

// NewReaper creates a Reaper over the given channel dialer.
func NewReaper(dialer Dialer, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		dialer:    dialer,
		remoteDir: DefaultRemoteDir,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Stop runs the discover-and-kill batch and returns its StopReport. It
// fails only on transport problems (connect, upload, dispatch) or a
// malformed remote reply; "nothing matched" and individual kill
// rejections are report data, not errors. The session is closed on every
// exit path.
func (r *Reaper) Stop(ctx context.Context, patterns PatternSet) (*StopReport, error) {
	if err := patterns.Validate(); err != nil {
		return nil, err
	}

	script, err := renderReapScript(patterns)
	if err != nil {
		return nil, err
	}

	sess, err := r.dialer.Connect(ctx)
	if err != nil {
		return nil, wrapConnect(err)
	}
	defer func() { _ = sess.Close() }()

	// Unique name per call so a concurrent or crashed run never collides.
	// The routine removes itself when it finishes.
	remotePath := path.Join(r.remoteDir, fmt.Sprintf("dronectl-reap-%d.sh", r.now().UnixNano()))

	if err := sess.Upload(ctx, script, remotePath, ScriptMode); err != nil {
		return nil, &TransportError{Op: OpUpload, Host: sess.Host(), Err: err}
	}

	res, err := sess.Exec(ctx, "sh "+shellQuote(remotePath))
	if err != nil {
		return nil, &TransportError{Op: OpExec, Host: sess.Host(), Err: err}
	}
	if res.ExitStatus != 0 {
		return nil, &TransportError{
			Op:   OpExec,
			Host: sess.Host(),
			Err:  fmt.Errorf("reap routine exited %d: %s", res.ExitStatus, strings.TrimSpace(res.Stderr)),
		}
	}

	report, err := parseStopReport(patterns, res.Stdout)
	if err != nil {
		return nil, err
	}
	report.Host = sess.Host()

	if r.reportPath != "" {
		if err := report.WriteFile(r.reportPath); err != nil {
			return report, fmt.Errorf("writing stop report: %w", err)
		}
	}

	return report, nil
}

// wrapConnect normalizes dialer failures to TransportError. The SSH dialer
// already wraps; other Dialer implementations may not.
func wrapConnect(err error) error {
	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}
	return &TransportError{Op: OpConnect, Err: err}
}
