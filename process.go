package dronectl

import (
	"fmt"
	"strconv"
)

// ProcessRecord is one process from a remote enumeration snapshot. It is
// only meaningful within the snapshot that produced it; PIDs are
// host-local and recycled over time.
type ProcessRecord struct {
	// PID is the host-local process identifier
	PID int
	// Command is the full command line, arguments included
	Command string
}

// parsePID parses a host-local process identifier from the reap protocol.
func parsePID(s string) (int, error) {
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: bad pid %q", ErrMalformedReport, s)
	}
	return pid, nil
}
