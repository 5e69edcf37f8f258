package dronectl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReaperStop(t *testing.T) {
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) {
			return ExecResult{Stdout: scenarioOutput}, nil
		},
	}
	dialer := &fakeDialer{sess: sess}

	rep, err := NewReaper(dialer).Stop(context.Background(), scenarioPatterns)
	if err != nil {
		t.Fatal(err)
	}

	if dialer.connects != 1 {
		t.Errorf("connects = %d, want 1", dialer.connects)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want 1", sess.closed)
	}
	if rep.Host != "sdr-test" {
		t.Errorf("Host = %q", rep.Host)
	}

	// The kill set is exactly the deduplicated match union.
	if got := rep.MatchedPIDs(); len(got) != 2 || got[0] != 100 || got[1] != 200 {
		t.Errorf("MatchedPIDs() = %v, want [100 200]", got)
	}
	for _, k := range rep.Kills {
		if k.PID != 100 && k.PID != 200 {
			t.Errorf("killed pid %d outside the match union", k.PID)
		}
	}

	// One upload, executable, under the scratch dir, executed by name.
	if len(sess.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(sess.uploads))
	}
	up := sess.uploads[0]
	if !strings.HasPrefix(up.path, DefaultRemoteDir+"/dronectl-reap-") || !strings.HasSuffix(up.path, ".sh") {
		t.Errorf("remote path = %q", up.path)
	}
	if up.mode != ScriptMode {
		t.Errorf("mode = %v, want %v", up.mode, ScriptMode)
	}
	if !strings.Contains(string(up.payload), "kill -9") {
		t.Error("uploaded payload is not the reap routine")
	}

	if len(sess.execs) != 1 {
		t.Fatalf("execs = %v, want exactly one", sess.execs)
	}
	if sess.execs[0] != "sh "+shellQuote(up.path) {
		t.Errorf("exec command = %q", sess.execs[0])
	}
}

func TestReaperStopNotRunning(t *testing.T) {
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) {
			return ExecResult{Stdout: ""}, nil
		},
	}
	rep, err := NewReaper(&fakeDialer{sess: sess}).Stop(context.Background(), scenarioPatterns)
	if err != nil {
		t.Fatal(err)
	}

	if rep.AnyMatched() {
		t.Error("AnyMatched() = true, want false")
	}
	if len(rep.Kills) != 0 {
		t.Errorf("Kills = %+v, want empty", rep.Kills)
	}
	if sess.closed != 1 {
		t.Error("session not closed")
	}
}

func TestReaperStopIdempotent(t *testing.T) {
	// First run kills both daemons; the second finds nothing and must
	// attempt zero terminations.
	calls := 0
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) {
			calls++
			if calls == 1 {
				return ExecResult{Stdout: scenarioOutput}, nil
			}
			return ExecResult{}, nil
		},
	}
	reaper := NewReaper(&fakeDialer{sess: sess})

	first, err := reaper.Stop(context.Background(), scenarioPatterns)
	if err != nil {
		t.Fatal(err)
	}
	if !first.AnyMatched() || len(first.Kills) != 2 {
		t.Fatalf("first run: matched=%v kills=%d", first.AnyMatched(), len(first.Kills))
	}

	second, err := reaper.Stop(context.Background(), scenarioPatterns)
	if err != nil {
		t.Fatal(err)
	}
	if second.AnyMatched() || len(second.Kills) != 0 {
		t.Errorf("second run: matched=%v kills=%d, want not running and zero kills",
			second.AnyMatched(), len(second.Kills))
	}
}

func TestReaperStopKillRejectedNotFatal(t *testing.T) {
	out := "MATCH|2|100|/usr/sbin/droneangle.sh -d\n" +
		"MATCH|3|200|/usr/sbin/done_dji_release --verbose\n" +
		"KILL|100|fail\n" +
		"KILL|200|ok\n"
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) {
			return ExecResult{Stdout: out}, nil
		},
	}

	rep, err := NewReaper(&fakeDialer{sess: sess}).Stop(context.Background(), scenarioPatterns)
	if err != nil {
		t.Fatalf("a rejected kill must not fail the operation: %v", err)
	}
	if len(rep.Kills) != 2 {
		t.Fatalf("Kills = %+v, want both attempts recorded", rep.Kills)
	}
	if rep.KillErr() == nil {
		t.Error("KillErr() = nil, want aggregate")
	}
}

func TestReaperStopInvalidPatterns(t *testing.T) {
	dialer := &fakeDialer{sess: &fakeSession{}}

	_, err := NewReaper(dialer).Stop(context.Background(), PatternSet{})
	if !errors.Is(err, ErrNoPatterns) {
		t.Errorf("err = %v, want ErrNoPatterns", err)
	}
	if dialer.connects != 0 {
		t.Error("connected despite invalid patterns")
	}
}

func TestReaperStopTransportErrors(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		dialer := &fakeDialer{err: errors.New("no route to host")}
		_, err := NewReaper(dialer).Stop(context.Background(), scenarioPatterns)

		var terr *TransportError
		if !errors.As(err, &terr) || terr.Op != OpConnect {
			t.Errorf("err = %v, want connect TransportError", err)
		}
	})

	t.Run("upload", func(t *testing.T) {
		sess := &fakeSession{uploadErr: errors.New("sftp refused")}
		_, err := NewReaper(&fakeDialer{sess: sess}).Stop(context.Background(), scenarioPatterns)

		var terr *TransportError
		if !errors.As(err, &terr) || terr.Op != OpUpload {
			t.Errorf("err = %v, want upload TransportError", err)
		}
		if sess.closed != 1 {
			t.Error("session leaked after upload failure")
		}
	})

	t.Run("dispatch", func(t *testing.T) {
		sess := &fakeSession{
			execFn: func(string) (ExecResult, error) {
				return ExecResult{}, errors.New("channel torn down")
			},
		}
		_, err := NewReaper(&fakeDialer{sess: sess}).Stop(context.Background(), scenarioPatterns)

		var terr *TransportError
		if !errors.As(err, &terr) || terr.Op != OpExec {
			t.Errorf("err = %v, want exec TransportError", err)
		}
		if sess.closed != 1 {
			t.Error("session leaked after dispatch failure")
		}
	})

	t.Run("nonzero exit", func(t *testing.T) {
		sess := &fakeSession{
			execFn: func(string) (ExecResult, error) {
				return ExecResult{ExitStatus: 127, Stderr: "sh: not found"}, nil
			},
		}
		_, err := NewReaper(&fakeDialer{sess: sess}).Stop(context.Background(), scenarioPatterns)

		var terr *TransportError
		if !errors.As(err, &terr) || terr.Op != OpExec {
			t.Errorf("err = %v, want exec TransportError", err)
		}
		if !strings.Contains(err.Error(), "sh: not found") {
			t.Errorf("err = %v, want remote stderr included", err)
		}
	})
}

func TestReaperStopMalformedOutput(t *testing.T) {
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) {
			return ExecResult{Stdout: "MATCH|garbage\n"}, nil
		},
	}
	_, err := NewReaper(&fakeDialer{sess: sess}).Stop(context.Background(), scenarioPatterns)
	if !errors.Is(err, ErrMalformedReport) {
		t.Errorf("err = %v, want ErrMalformedReport", err)
	}
}

func TestReaperStopUniqueRemoteNames(t *testing.T) {
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) { return ExecResult{}, nil },
	}
	stamp := time.Unix(0, 1)
	reaper := NewReaper(&fakeDialer{sess: sess}, WithRemoteDir("/var/tmp"))
	reaper.now = func() time.Time {
		stamp = stamp.Add(1)
		return stamp
	}

	for i := 0; i < 2; i++ {
		if _, err := reaper.Stop(context.Background(), scenarioPatterns); err != nil {
			t.Fatal(err)
		}
	}

	if len(sess.uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(sess.uploads))
	}
	if sess.uploads[0].path == sess.uploads[1].path {
		t.Errorf("remote names collided: %q", sess.uploads[0].path)
	}
	for _, up := range sess.uploads {
		if !strings.HasPrefix(up.path, "/var/tmp/") {
			t.Errorf("remote path %q not under configured scratch dir", up.path)
		}
	}
}

func TestReaperStopWritesReportFile(t *testing.T) {
	sess := &fakeSession{
		execFn: func(string) (ExecResult, error) {
			return ExecResult{Stdout: scenarioOutput}, nil
		},
	}
	path := filepath.Join(t.TempDir(), "last-stop.txt")

	rep, err := NewReaper(&fakeDialer{sess: sess}, WithReportPath(path)).
		Stop(context.Background(), scenarioPatterns)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != rep.Render() {
		t.Error("report file differs from Render()")
	}
}
