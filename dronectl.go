package dronectl

import (
	"io/fs"
	"time"
)

// Defaults for the receiver host and the remote reap protocol
const (
	// DefaultPort is the SSH port on the receiver host
	DefaultPort = 22

	// DefaultDialTimeout is the timeout for establishing the SSH connection
	DefaultDialTimeout = 5 * time.Second

	// DefaultRemoteDir is the remote scratch directory the reap routine is
	// uploaded to before execution
	DefaultRemoteDir = "/tmp"

	// DefaultEntrypoint is the init script that brings up the receiver stack
	DefaultEntrypoint = "/etc/init.d/S55drone"

	// ScriptMode is the file mode for the uploaded reap routine
	ScriptMode fs.FileMode = 0o755

	// ReportMode is the file mode for locally written stop reports
	ReportMode fs.FileMode = 0o644
)

// DefaultPatterns returns the command-line fragments that identify the
// receiver daemons. Each is matched as a literal, case-sensitive substring
// of a process's full command line, so wrapper scripts and interpreter
// prefixes still match.
func DefaultPatterns() PatternSet {
	return PatternSet{
		"/etc/init.d/S55drone",
		"/usr/sbin/droneangle.sh",
		"/usr/sbin/done_dji_release",
	}
}
