package dronectl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// MatchResult is the set of processes whose command line contained one
// pattern. Results are kept in pattern insertion order, empty or not.
type MatchResult struct {
	Pattern   string
	Processes []ProcessRecord
}

// TerminationOutcome records whether the remote operating system accepted
// the kill signal for one PID. Acceptance does not confirm the process
// actually died; the residual list is the only post-kill observation.
type TerminationOutcome struct {
	PID      int
	Accepted bool
}

// StopReport is the structured outcome of one stop operation: per-pattern
// matches, termination outcomes for the deduplicated PID union, and a
// diagnostic re-scan of anything still matching afterwards.
type StopReport struct {
	// Host is the remote host the report describes
	Host string
	// Matches holds one entry per pattern, in insertion order
	Matches []MatchResult
	// Kills holds one entry per distinct matched PID
	Kills []TerminationOutcome
	// Residual lists processes still matching any pattern after the kill
	// pass, deduplicated by PID. Diagnostic only; never drives a retry.
	Residual []ProcessRecord
}

// AnyMatched reports whether at least one pattern matched a running
// process. False means the service was not running, which is success.
func (r *StopReport) AnyMatched() bool {
	for _, m := range r.Matches {
		if len(m.Processes) > 0 {
			return true
		}
	}
	return false
}

// MatchedPIDs returns the deduplicated union of matched PIDs, sorted.
func (r *StopReport) MatchedPIDs() []int {
	seen := make(map[int]struct{})
	var pids []int
	for _, m := range r.Matches {
		for _, p := range m.Processes {
			if _, ok := seen[p.PID]; ok {
				continue
			}
			seen[p.PID] = struct{}{}
			pids = append(pids, p.PID)
		}
	}
	sort.Ints(pids)
	return pids
}

// KillErr aggregates rejected termination signals into a MultiError.
// It is diagnostic: a rejected kill never fails the stop operation.
func (r *StopReport) KillErr() error {
	merr := &MultiError{}
	for _, k := range r.Kills {
		if !k.Accepted {
			merr.Add(fmt.Errorf("kill pid %d rejected", k.PID))
		}
	}
	return merr.Err()
}

// Render produces the human-readable report printed after a stop.
func (r *StopReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "stop report for %s\n", r.Host)

	if !r.AnyMatched() {
		fmt.Fprintf(&b, "  matched 0 of %d patterns: service not running\n", len(r.Matches))
		return b.String()
	}

	matched := 0
	for _, m := range r.Matches {
		if len(m.Processes) > 0 {
			matched++
		}
	}
	fmt.Fprintf(&b, "  matched %d of %d patterns\n", matched, len(r.Matches))

	for _, m := range r.Matches {
		if len(m.Processes) == 0 {
			fmt.Fprintf(&b, "  pattern %q: no match\n", m.Pattern)
			continue
		}
		fmt.Fprintf(&b, "  pattern %q:\n", m.Pattern)
		for _, p := range m.Processes {
			fmt.Fprintf(&b, "    pid %d  %s\n", p.PID, p.Command)
		}
	}

	for _, k := range r.Kills {
		if k.Accepted {
			fmt.Fprintf(&b, "  kill pid %d: accepted\n", k.PID)
		} else {
			fmt.Fprintf(&b, "  kill pid %d: rejected\n", k.PID)
		}
	}

	if len(r.Residual) == 0 {
		b.WriteString("  residual: none\n")
	} else {
		b.WriteString("  residual:\n")
		for _, p := range r.Residual {
			fmt.Fprintf(&b, "    pid %d  %s\n", p.PID, p.Command)
		}
	}

	return b.String()
}

// WriteFile writes the rendered report to path atomically.
func (r *StopReport) WriteFile(path string) error {
	return renameio.WriteFile(path, []byte(r.Render()), ReportMode)
}

// parseStopReport decodes the reap routine's line protocol. Lines outside
// the protocol (daemon chatter on the remote tty) are ignored; malformed
// protocol lines are an error.
func parseStopReport(patterns PatternSet, stdout string) (*StopReport, error) {
	rep := &StopReport{Matches: make([]MatchResult, len(patterns))}
	for i, p := range patterns {
		rep.Matches[i].Pattern = p
	}

	seenResidual := make(map[int]struct{})

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(line, "MATCH|"):
			idx, rec, err := parseScanLine(line, patterns)
			if err != nil {
				return nil, err
			}
			rep.Matches[idx-1].Processes = append(rep.Matches[idx-1].Processes, rec)

		case strings.HasPrefix(line, "KILL|"):
			parts := strings.SplitN(line, "|", 3)
			if len(parts) != 3 || (parts[2] != "ok" && parts[2] != "fail") {
				return nil, fmt.Errorf("%w: %q", ErrMalformedReport, line)
			}
			pid, err := parsePID(parts[1])
			if err != nil {
				return nil, err
			}
			rep.Kills = append(rep.Kills, TerminationOutcome{PID: pid, Accepted: parts[2] == "ok"})

		case strings.HasPrefix(line, "RESIDUAL|"):
			_, rec, err := parseScanLine(line, patterns)
			if err != nil {
				return nil, err
			}
			if _, ok := seenResidual[rec.PID]; !ok {
				seenResidual[rec.PID] = struct{}{}
				rep.Residual = append(rep.Residual, rec)
			}
		}
	}

	return rep, nil
}

// parseScanLine decodes a MATCH or RESIDUAL line into its pattern index
// and process record. The command must actually contain the pattern it
// claims to match: a scan line that fails this check cannot have been
// produced by the reap routine, so the reply is treated as corrupt rather
// than letting a forged line widen the kill set.
func parseScanLine(line string, patterns PatternSet) (int, ProcessRecord, error) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return 0, ProcessRecord{}, fmt.Errorf("%w: %q", ErrMalformedReport, line)
	}

	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 1 || idx > len(patterns) {
		return 0, ProcessRecord{}, fmt.Errorf("%w: bad pattern index in %q", ErrMalformedReport, line)
	}

	pid, err := parsePID(parts[2])
	if err != nil {
		return 0, ProcessRecord{}, err
	}

	if !strings.Contains(parts[3], patterns[idx-1]) {
		return 0, ProcessRecord{}, fmt.Errorf("%w: command in %q does not contain its pattern", ErrMalformedReport, line)
	}

	return idx, ProcessRecord{PID: pid, Command: strings.TrimSpace(parts[3])}, nil
}
