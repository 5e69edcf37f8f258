package dronectl

import (
	"context"
	"io/fs"
)

// fakeUpload records one Upload call.
type fakeUpload struct {
	path    string
	payload []byte
	mode    fs.FileMode
}

// fakeSession is an in-memory Session for exercising the Reaper and
// Launcher without a remote host.
type fakeSession struct {
	host string

	uploads   []fakeUpload
	uploadErr error

	execs  []string
	execFn func(command string) (ExecResult, error)

	closed int
}

func (s *fakeSession) Exec(_ context.Context, command string) (ExecResult, error) {
	s.execs = append(s.execs, command)
	if s.execFn != nil {
		return s.execFn(command)
	}
	return ExecResult{}, nil
}

func (s *fakeSession) Upload(_ context.Context, payload []byte, remotePath string, mode fs.FileMode) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploads = append(s.uploads, fakeUpload{path: remotePath, payload: payload, mode: mode})
	return nil
}

func (s *fakeSession) Host() string {
	if s.host == "" {
		return "sdr-test"
	}
	return s.host
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// fakeDialer hands out a single fakeSession or fails.
type fakeDialer struct {
	sess     *fakeSession
	err      error
	connects int
}

func (d *fakeDialer) Connect(context.Context) (Session, error) {
	d.connects++
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}
